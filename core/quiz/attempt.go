package quiz

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/autograder/core"
)

var (
	ErrAttemptNotFound = errors.New("attempt not found")
	ErrAttemptExists   = errors.New("an attempt is already running for this quiz")
	ErrAttemptClosed   = errors.New("attempt is closed")
)

type EventType string

const (
	EventTick      EventType = "tick"
	EventExpired   EventType = "expired"
	EventSubmitted EventType = "submitted"
	EventFailed    EventType = "failed"
)

type (
	// AttemptEvent is streamed to the subscribers of an Attempt.
	AttemptEvent struct {
		Type       EventType         `json:"type"`
		AttemptID  string            `json:"attempt_id"`
		Remaining  int               `json:"remaining_seconds"`
		Submission *GradedSubmission `json:"submission,omitempty"`
		Error      string            `json:"error,omitempty"`
	}

	AttemptView struct {
		ID           string    `json:"id"`
		QuizID       string    `json:"quiz_id"`
		RespondentID string    `json:"respondent_id"`
		StartedAt    time.Time `json:"started_at"`
		Deadline     time.Time `json:"deadline"`
		Remaining    int       `json:"remaining_seconds"`
		State        string    `json:"state"`
		Answers      Answers   `json:"answers"`
	}

	// Attempt is a timed answering session of one respondent on one Quiz.
	Attempt struct {
		ID         string
		Quiz       Quiz
		Respondent Respondent
		StartedAt  time.Time
		Deadline   time.Time

		timer *Timer

		mu      sync.Mutex
		answers Answers
		subs    map[chan AttemptEvent]struct{}
		closed  bool // final event sent
	}

	// SubmitFunc records the answers of an Attempt; the Tracker calls it exactly once per Attempt.
	SubmitFunc func(ctx context.Context, a *Attempt, trigger Trigger) (GradedSubmission, error)
)

func (a *Attempt) Answers() Answers {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append(Answers{}, a.answers...)
}

func (a *Attempt) View() AttemptView {
	return AttemptView{
		ID:           a.ID,
		QuizID:       a.Quiz.ID,
		RespondentID: a.Respondent.ID,
		StartedAt:    a.StartedAt,
		Deadline:     a.Deadline,
		Remaining:    a.timer.Remaining(),
		State:        a.timer.State().String(),
		Answers:      a.Answers(),
	}
}

func (a *Attempt) broadcast(evt AttemptEvent, last bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if last {
		a.closed = true
	}
	for ch := range a.subs {
		select {
		case ch <- evt:
		default: // full: drop the oldest event
			select {
			case <-ch:
			default:
			}
			ch <- evt
		}
		if last {
			close(ch)
			delete(a.subs, ch)
		}
	}
}

// Tracker keeps the running Attempts. It is safe for concurrent use.
type Tracker struct {
	submit   SubmitFunc
	interval time.Duration
	logger   core.Logger

	mu        sync.Mutex
	attempts  map[string]*Attempt // attemptID -> Attempt
	owners    map[string]string   // quizID/respondentID -> attemptID
	onExpired []func(AttemptView)
}

func NewTracker(submit SubmitFunc, logger core.Logger, interval time.Duration) *Tracker {
	return &Tracker{
		submit:   submit,
		interval: interval,
		logger:   logger,
		attempts: make(map[string]*Attempt),
		owners:   make(map[string]string),
	}
}

func ownerKey(quizID, respondentID string) string {
	return quizID + "/" + respondentID
}

// OnExpired registers a handler called when the timer of an Attempt expires, before its answers are submitted.
func (tr *Tracker) OnExpired(h func(AttemptView)) {
	tr.mu.Lock()
	tr.onExpired = append(tr.onExpired, h)
	tr.mu.Unlock()
}

// Start opens an Attempt on q for the respondent and starts its countdown.
func (tr *Tracker) Start(q Quiz, resp Respondent) (*Attempt, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	key := ownerKey(q.ID, resp.ID)
	if _, exists := tr.owners[key]; exists {
		return nil, ErrAttemptExists
	}

	timer, err := NewTimer(int(q.TimeLimit()/time.Second), tr.interval)
	if err != nil {
		return nil, errors.Wrap(err, "creating timer")
	}
	now := NowFunc().UTC()
	a := &Attempt{
		ID:         uuid.New().String(),
		Quiz:       q,
		Respondent: resp,
		StartedAt:  now,
		Deadline:   now.Add(q.TimeLimit()),
		timer:      timer,
		answers:    make(Answers, len(q.Questions)),
		subs:       make(map[chan AttemptEvent]struct{}),
	}
	timer.OnTick(func(remaining int) {
		a.broadcast(AttemptEvent{Type: EventTick, AttemptID: a.ID, Remaining: remaining}, false)
	})
	timer.OnExpired(func() { tr.expire(a) })

	tr.attempts[a.ID] = a
	tr.owners[key] = a.ID
	timer.Start()
	return a, nil
}

// Get returns the running Attempt if it belongs to respondentID.
func (tr *Tracker) Get(attemptID, respondentID string) (*Attempt, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	a, ok := tr.attempts[attemptID]
	if !ok || a.Respondent.ID != respondentID {
		return nil, ErrAttemptNotFound
	}
	return a, nil
}

// Running reports whether the respondent has a running Attempt on the quiz.
func (tr *Tracker) Running(quizID, respondentID string) bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	_, ok := tr.owners[ownerKey(quizID, respondentID)]
	return ok
}

// Select records the option picked for the question at index; a null option clears the answer.
func (tr *Tracker) Select(attemptID, respondentID string, index int, option null.Int) (*Attempt, error) {
	a, err := tr.Get(attemptID, respondentID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(a.Quiz.Questions) {
		return nil, core.NewValidationError(
			errors.New("invalid answer"),
			core.FieldError{Field: "index", Error: "no question at this index"},
		)
	}
	if option.Valid && (option.Int < 0 || option.Int >= len(a.Quiz.Questions[index].Options)) {
		return nil, core.NewValidationError(
			errors.New("invalid answer"),
			core.FieldError{Field: "option", Error: "no option at this index"},
		)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer.State() != Running {
		return nil, ErrAttemptClosed
	}
	a.answers[index] = option
	return a, nil
}

// Submit stops the countdown and records the answers selected so far.
func (tr *Tracker) Submit(ctx context.Context, attemptID, respondentID string) (GradedSubmission, error) {
	a, err := tr.Get(attemptID, respondentID)
	if err != nil {
		return GradedSubmission{}, err
	}
	if !a.timer.Stop() {
		return GradedSubmission{}, ErrAttemptClosed // expired: the timer submits
	}
	return tr.finish(ctx, a, TriggerExplicit)
}

// Subscribe returns a channel of the Attempt events; it is closed after the final event or on cancel.
func (tr *Tracker) Subscribe(attemptID, respondentID string) (<-chan AttemptEvent, func(), error) {
	a, err := tr.Get(attemptID, respondentID)
	if err != nil {
		return nil, nil, err
	}
	ch := make(chan AttemptEvent, 8)
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, nil, ErrAttemptClosed
	}
	a.subs[ch] = struct{}{}
	a.mu.Unlock()

	cancel := func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if _, ok := a.subs[ch]; ok {
			delete(a.subs, ch)
			close(ch)
		}
	}
	return ch, cancel, nil
}

// Close submits every running Attempt, as if their time was up.
func (tr *Tracker) Close(ctx context.Context) {
	tr.mu.Lock()
	running := make([]*Attempt, 0, len(tr.attempts))
	for _, a := range tr.attempts {
		running = append(running, a)
	}
	tr.mu.Unlock()

	for _, a := range running {
		if a.timer.Stop() {
			_, _ = tr.finish(ctx, a, TriggerTimer)
		}
	}
}

func (tr *Tracker) expire(a *Attempt) {
	view := a.View()
	a.broadcast(AttemptEvent{Type: EventExpired, AttemptID: a.ID}, false)

	tr.mu.Lock()
	handlers := append([]func(AttemptView){}, tr.onExpired...)
	tr.mu.Unlock()
	for _, h := range handlers {
		h(view)
	}
	_, _ = tr.finish(context.Background(), a, TriggerTimer)
}

func (tr *Tracker) finish(ctx context.Context, a *Attempt, trigger Trigger) (GradedSubmission, error) {
	defer tr.remove(a)

	graded, err := tr.submit(ctx, a, trigger)
	if err != nil {
		tr.logger.Error("submitting attempt", errors.Wrapf(err, "attempt %s (%s)", a.ID, trigger), core.Person{ID: a.Respondent.ID})
		a.broadcast(AttemptEvent{Type: EventFailed, AttemptID: a.ID, Error: err.Error()}, true)
		return GradedSubmission{}, err
	}
	a.broadcast(AttemptEvent{Type: EventSubmitted, AttemptID: a.ID, Submission: &graded}, true)
	return graded, nil
}

func (tr *Tracker) remove(a *Attempt) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	delete(tr.attempts, a.ID)
	delete(tr.owners, ownerKey(a.Quiz.ID, a.Respondent.ID))
}
