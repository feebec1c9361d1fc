// Package testutil holds fixtures shared by the tests of several packages.
package testutil

import (
	"context"
	"fmt"
	"net/mail"
	"testing"
	"time"

	"github.com/trezcool/autograder/core"
	"github.com/trezcool/autograder/core/quiz"
)

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(string, ...interface{}) {}

// Config returns a TEST configuration.
func Config() *core.Config {
	return &core.Config{
		Env:              "TEST",
		TestMode:         true,
		AppName:          "Autograder",
		SecretKey:        "test-secret",
		FrontendBaseURL:  "http://front.test",
		DefaultFromEmail: mail.Address{Name: "Autograder", Address: "noreply@test.test"},
		Quiz: core.QuizConfig{
			DefaultTimeLimit: 30,
			TickInterval:     time.Second,
			PassingScore:     60,
			GradeScale:       map[string]float64{"A": 90, "B": 80, "C": 70, "D": 60, "F": 0},
		},
	}
}

// NewQuiz returns a one-minute quiz with one two-option question per correct index.
func NewQuiz(title string, correct ...int) quiz.NewQuiz {
	nq := quiz.NewQuiz{Title: title, TimeLimitMinutes: 1}
	for i, idx := range correct {
		opts := []string{"a", "b"}
		for len(opts) <= idx {
			opts = append(opts, string(rune('a'+len(opts))))
		}
		nq.Questions = append(nq.Questions, quiz.Question{
			Text:               fmt.Sprintf("Question %d", i+1),
			Options:            opts,
			CorrectOptionIndex: idx,
		})
	}
	return nq
}

func CreateQuiz(t *testing.T, repo quiz.Repository, authorID, title string, correct ...int) quiz.Quiz {
	t.Helper()
	q, err := quiz.New(NewQuiz(title, correct...), authorID)
	if err != nil {
		t.Fatalf("CreateQuiz() failed: %v", err)
	}
	q, err = repo.CreateQuiz(context.Background(), q)
	if err != nil {
		t.Fatalf("CreateQuiz() failed: %v", err)
	}
	return q
}
