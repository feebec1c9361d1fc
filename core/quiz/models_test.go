package quiz

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/autograder/core"
)

func validNewQuiz() NewQuiz {
	return NewQuiz{
		Title:            "  Capitals ",
		TimeLimitMinutes: 5,
		Questions: []Question{
			{Text: "Capital of Kenya?", Options: []string{"Nairobi", "Mombasa"}, CorrectOptionIndex: 0},
			{Text: "Capital of DRC?", Options: []string{"Goma", "Lubumbashi", "Kinshasa"}, CorrectOptionIndex: 2},
		},
	}
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	require.Error(t, err)
	vErr, ok := errors.Cause(err).(*core.ValidationError)
	require.Truef(t, ok, "error = %T(%v), want *core.ValidationError", err, err)
	return vErr.FieldMap()
}

func TestNew(t *testing.T) {
	q, err := New(validNewQuiz(), "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, "Capitals", q.Title)
	assert.Equal(t, "teacher-1", q.AuthorID)
	assert.Len(t, q.Questions, 2)
	assert.Equal(t, Ints(0, 2), q.AnswerKey())
}

func TestQuiz_Validate(t *testing.T) {
	tooMany := validNewQuiz()
	for len(tooMany.Questions) <= MaxQuestions {
		tooMany.Questions = append(tooMany.Questions, tooMany.Questions[0])
	}

	tests := []struct {
		name       string
		mutate     func(nq *NewQuiz)
		wantFields []string
	}{
		{name: "valid", mutate: func(nq *NewQuiz) {}},
		{
			name:       "blank title",
			mutate:     func(nq *NewQuiz) { nq.Title = "   " },
			wantFields: []string{"title"},
		},
		{
			name:       "zero time limit",
			mutate:     func(nq *NewQuiz) { nq.TimeLimitMinutes = 0 },
			wantFields: []string{"time_limit_minutes"},
		},
		{
			name:       "negative time limit",
			mutate:     func(nq *NewQuiz) { nq.TimeLimitMinutes = -3 },
			wantFields: []string{"time_limit_minutes"},
		},
		{
			name:       "time limit over a day",
			mutate:     func(nq *NewQuiz) { nq.TimeLimitMinutes = MaxTimeLimit + 1 },
			wantFields: []string{"time_limit_minutes"},
		},
		{
			name:       "huge time limit",
			mutate:     func(nq *NewQuiz) { nq.TimeLimitMinutes = 40000000 },
			wantFields: []string{"time_limit_minutes"},
		},
		{
			name:   "time limit of a day",
			mutate: func(nq *NewQuiz) { nq.TimeLimitMinutes = MaxTimeLimit },
		},
		{
			name:       "title too long",
			mutate:     func(nq *NewQuiz) { nq.Title = strings.Repeat("t", 256) },
			wantFields: []string{"title"},
		},
		{
			name:       "no questions",
			mutate:     func(nq *NewQuiz) { nq.Questions = nil },
			wantFields: []string{"questions"},
		},
		{
			name:       "too many questions",
			mutate:     func(nq *NewQuiz) { nq.Questions = tooMany.Questions },
			wantFields: []string{"questions"},
		},
		{
			name:       "blank question text",
			mutate:     func(nq *NewQuiz) { nq.Questions[1].Text = "" },
			wantFields: []string{"questions[1].text"},
		},
		{
			name:       "single option",
			mutate:     func(nq *NewQuiz) { nq.Questions[0].Options = []string{"Nairobi"} },
			wantFields: []string{"questions[0].options"},
		},
		{
			name:       "blank option",
			mutate:     func(nq *NewQuiz) { nq.Questions[1].Options[1] = " " },
			wantFields: []string{"questions[1].options[1]"},
		},
		{
			name:       "correct index past the options",
			mutate:     func(nq *NewQuiz) { nq.Questions[1].CorrectOptionIndex = 3 },
			wantFields: []string{"questions[1].correct_option_index"},
		},
		{
			name:       "negative correct index",
			mutate:     func(nq *NewQuiz) { nq.Questions[0].CorrectOptionIndex = -1 },
			wantFields: []string{"questions[0].correct_option_index"},
		},
		{
			name: "every offending field is reported",
			mutate: func(nq *NewQuiz) {
				nq.Title = ""
				nq.TimeLimitMinutes = 0
				nq.Questions[0].CorrectOptionIndex = 2
			},
			wantFields: []string{"title", "time_limit_minutes", "questions[0].correct_option_index"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nq := validNewQuiz()
			tt.mutate(&nq)

			_, err := New(nq, "teacher-1")
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}
			flds := fieldErrors(t, err)
			assert.Len(t, flds, len(tt.wantFields))
			for _, f := range tt.wantFields {
				assert.Containsf(t, flds, f, "missing field error for %s", f)
			}
		})
	}
}

func TestQuiz_Validate_authorID(t *testing.T) {
	_, err := New(validNewQuiz(), strings.Repeat("a", 65))
	flds := fieldErrors(t, err)
	assert.Contains(t, flds, "author_id")
}

func TestQuiz_Validate_loaded(t *testing.T) {
	// a stored quiz is checked with the same rules
	q := newTestQuiz(0, 4)
	flds := fieldErrors(t, q.Validate())
	assert.Equal(t, "correct option index must point to one of the options", flds["questions[1].correct_option_index"])
}

func TestQuiz_Public(t *testing.T) {
	q, err := New(validNewQuiz(), "teacher-1")
	require.NoError(t, err)

	data, err := json.Marshal(q.Public())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "correct_option_index")
	assert.NotContains(t, string(data), "author_id")
	assert.Contains(t, string(data), "Kinshasa")
}

func TestAnswers_Normalize(t *testing.T) {
	tests := []struct {
		name    string
		answers Answers
		n       int
		want    Answers
	}{
		{name: "same length", answers: Ints(1, 0), n: 2, want: Ints(1, 0)},
		{name: "padded with nulls", answers: Ints(1), n: 3, want: Ints(1, -1, -1)},
		{name: "truncated", answers: Ints(1, 0, 2), n: 2, want: Ints(1, 0)},
		{name: "nil", n: 2, want: Ints(-1, -1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.answers.Normalize(tt.n))
		})
	}
}

func TestAnswers_ValueScan(t *testing.T) {
	in := Ints(2, -1, 0)
	v, err := in.Value()
	require.NoError(t, err)
	assert.Equal(t, `[2,null,0]`, string(v.([]byte)))

	var out Answers
	require.NoError(t, out.Scan(v))
	assert.Equal(t, in, out)

	assert.Error(t, out.Scan(42))
}
