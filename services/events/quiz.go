package eventsvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/autograder/core"
	"github.com/trezcool/autograder/core/quiz"
)

// routing keys
const (
	KeyQuizGraded     = "quiz.graded"
	KeyAttemptExpired = "attempt.expired"
)

type (
	GradedEvent struct {
		QuizID       string       `json:"quiz_id"`
		SubmissionID string       `json:"submission_id"`
		RespondentID string       `json:"respondent_id"`
		Trigger      quiz.Trigger `json:"trigger"`
		CorrectCount int          `json:"correct_count"`
		TotalCount   int          `json:"total_count"`
		ScorePercent float64      `json:"score_percent"`
		Passed       bool         `json:"passed"`
		SubmittedAt  time.Time    `json:"submitted_at"`
	}

	ExpiredEvent struct {
		AttemptID    string    `json:"attempt_id"`
		QuizID       string    `json:"quiz_id"`
		RespondentID string    `json:"respondent_id"`
		Deadline     time.Time `json:"deadline"`
	}

	// QuizEvents turns quiz.Service hooks into broker events.
	QuizEvents struct {
		pub          Publisher
		passingScore float64
		logger       core.Logger
	}
)

func NewQuizEvents(pub Publisher, conf *core.Config, logger core.Logger) *QuizEvents {
	return &QuizEvents{pub: pub, passingScore: conf.Quiz.PassingScore, logger: logger}
}

// Graded is a quiz.SubmitHandler.
func (e *QuizEvents) Graded(ctx context.Context, _ quiz.Quiz, gs quiz.GradedSubmission, _ quiz.Respondent) error {
	return e.publish(ctx, KeyQuizGraded, GradedEvent{
		QuizID:       gs.QuizID,
		SubmissionID: gs.ID,
		RespondentID: gs.RespondentID,
		Trigger:      gs.Trigger,
		CorrectCount: gs.Result.CorrectCount,
		TotalCount:   gs.Result.TotalCount,
		ScorePercent: gs.Result.ScorePercent,
		Passed:       gs.Result.Passed(e.passingScore),
		SubmittedAt:  gs.SubmittedAt,
	})
}

// Expired is a quiz.Service timer expiry handler; failures are logged.
func (e *QuizEvents) Expired(v quiz.AttemptView) {
	err := e.publish(context.Background(), KeyAttemptExpired, ExpiredEvent{
		AttemptID:    v.ID,
		QuizID:       v.QuizID,
		RespondentID: v.RespondentID,
		Deadline:     v.Deadline,
	})
	if err != nil {
		e.logger.Error("publishing attempt expiry", err, core.Person{ID: v.RespondentID})
	}
}

func (e *QuizEvents) publish(ctx context.Context, key string, evt interface{}) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return errors.Wrapf(err, "encoding %s event", key)
	}
	return e.pub.Publish(ctx, key, body)
}
