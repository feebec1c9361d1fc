// Package metricsvc records Prometheus metrics about grading & HTTP traffic.
package metricsvc

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/trezcool/autograder/core/quiz"
)

const namespace = "autograder"

type Recorder struct {
	submissions *prometheus.CounterVec
	scores      prometheus.Histogram
	expirations prometheus.Counter
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// NewRecorder registers the metrics with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		submissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Graded submissions, by trigger.",
		}, []string{"trigger"}),
		scores: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "score_percent",
			Help:      "Scores of the graded submissions.",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),
		expirations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timer_expirations_total",
			Help:      "Attempts whose time ran out.",
		}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by method, route & status code.",
		}, []string{"method", "route", "code"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies, by method & route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Graded is a quiz.SubmitHandler.
func (r *Recorder) Graded(_ context.Context, _ quiz.Quiz, gs quiz.GradedSubmission, _ quiz.Respondent) error {
	r.submissions.WithLabelValues(string(gs.Trigger)).Inc()
	r.scores.Observe(gs.Result.ScorePercent)
	return nil
}

func (r *Recorder) Expired(quiz.AttemptView) {
	r.expirations.Inc()
}

// ObserveRequest records a served HTTP request; route is the route pattern, not the raw path.
func (r *Recorder) ObserveRequest(method, route string, code int, elapsed time.Duration) {
	r.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	r.latency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
