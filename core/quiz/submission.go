package quiz

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/volatiletech/null/v8"
)

// Trigger tells what created a Submission.
type Trigger string

const (
	TriggerExplicit Trigger = "explicit"
	TriggerTimer    Trigger = "timer"
)

type (
	// Answers holds one selected option index per question; null means "no answer".
	Answers []null.Int

	Submission struct {
		ID           string    `json:"id"`
		QuizID       string    `json:"quiz_id"`
		RespondentID string    `json:"respondent_id"`
		Answers      Answers   `json:"answers"`
		Trigger      Trigger   `json:"trigger"`
		SubmittedAt  time.Time `json:"submitted_at"` // UTC, set by the store
	}

	// GradedSubmission is a Submission with its Result, recomputed from the Quiz on every read.
	GradedSubmission struct {
		Submission
		Result Result `json:"result"`
	}

	// Respondent identifies who answers a Quiz. Email is optional and only used for notifications.
	Respondent struct {
		ID    string
		Email string
		Name  string
	}

	SubmissionFilter struct {
		QuizID       string
		RespondentID string
	}
)

// Ints builds Answers from plain option indexes; negative values mean "no answer".
func Ints(indexes ...int) Answers {
	answers := make(Answers, 0, len(indexes))
	for _, idx := range indexes {
		if idx < 0 {
			answers = append(answers, null.Int{})
			continue
		}
		answers = append(answers, null.IntFrom(idx))
	}
	return answers
}

// Normalize returns answers resized to n entries: extras are dropped, missing ones are null.
func (a Answers) Normalize(n int) Answers {
	norm := make(Answers, n)
	copy(norm, a)
	return norm
}

func (a Answers) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

func (a *Answers) Scan(src interface{}) error {
	return scanJSON(src, a)
}

func grade(q Quiz, sub Submission) GradedSubmission {
	return GradedSubmission{Submission: sub, Result: Score(q, sub.Answers)}
}
