package quiz

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/autograder/core"
)

const (
	MaxQuestions = 50
	MaxTimeLimit = 24 * 60 // minutes
)

var NowFunc = time.Now // mockable

type (
	Question struct {
		Text               string   `json:"text" validate:"notblank"`
		Options            []string `json:"options" validate:"min=2,dive,notblank"`
		CorrectOptionIndex int      `json:"correct_option_index"`
	}

	// Questions is stored as a JSON document.
	Questions []Question

	Quiz struct {
		ID               string    `json:"id"`
		Title            string    `json:"title" validate:"notblank,max=255"`
		TimeLimitMinutes int       `json:"time_limit_minutes" validate:"gt=0,lte=1440"`
		Questions        Questions `json:"questions" validate:"min=1,max=50,dive"`
		AuthorID         string    `json:"author_id" validate:"max=64"`
		CreatedAt        time.Time `json:"created_at"` // UTC
	}

	// NewQuiz contains information needed to author a new Quiz.
	NewQuiz struct {
		Title            string     `json:"title"`
		TimeLimitMinutes int        `json:"time_limit_minutes"`
		Questions        []Question `json:"questions"`
	}

	// PublicQuestion is a Question without its answer key.
	PublicQuestion struct {
		Text    string   `json:"text"`
		Options []string `json:"options"`
	}

	// PublicQuiz is what respondents get to see of a Quiz.
	PublicQuiz struct {
		ID               string           `json:"id"`
		Title            string           `json:"title"`
		TimeLimitMinutes int              `json:"time_limit_minutes"`
		Questions        []PublicQuestion `json:"questions"`
		CreatedAt        time.Time        `json:"created_at"`
	}

	QueryFilter struct {
		AuthorID string `query:"author_id"`
		Search   string `query:"search"`
	}
)

// New builds a Quiz from nq and validates it.
func New(nq NewQuiz, authorID string) (Quiz, error) {
	questions := make(Questions, 0, len(nq.Questions))
	for _, qn := range nq.Questions {
		options := make([]string, 0, len(qn.Options))
		for _, opt := range qn.Options {
			options = append(options, core.CleanString(opt))
		}
		questions = append(questions, Question{
			Text:               core.CleanString(qn.Text),
			Options:            options,
			CorrectOptionIndex: qn.CorrectOptionIndex,
		})
	}
	q := Quiz{
		Title:            core.CleanString(nq.Title),
		TimeLimitMinutes: nq.TimeLimitMinutes,
		Questions:        questions,
		AuthorID:         authorID,
	}
	if err := q.Validate(); err != nil {
		return Quiz{}, err
	}
	return q, nil
}

// Validate checks the Quiz invariants; it returns a *core.ValidationError listing every offending field.
func (q Quiz) Validate() error {
	if err := core.Validate.Struct(q); err != nil {
		return core.NewValidationErrorFrom(err, "invalid quiz")
	}
	return nil
}

func (q Quiz) TimeLimit() time.Duration {
	return time.Duration(q.TimeLimitMinutes) * time.Minute
}

// AnswerKey returns the correct option index of every question, in order.
func (q Quiz) AnswerKey() Answers {
	key := make(Answers, 0, len(q.Questions))
	for _, qn := range q.Questions {
		key = append(key, null.IntFrom(qn.CorrectOptionIndex))
	}
	return key
}

func (q Quiz) Public() PublicQuiz {
	questions := make([]PublicQuestion, 0, len(q.Questions))
	for _, qn := range q.Questions {
		questions = append(questions, PublicQuestion{Text: qn.Text, Options: qn.Options})
	}
	return PublicQuiz{
		ID:               q.ID,
		Title:            q.Title,
		TimeLimitMinutes: q.TimeLimitMinutes,
		Questions:        questions,
		CreatedAt:        q.CreatedAt,
	}
}

func (qs Questions) Value() (driver.Value, error) {
	if qs == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(qs)
}

func (qs *Questions) Scan(src interface{}) error {
	return scanJSON(src, qs)
}

func (qf *QueryFilter) Clean() {
	qf.AuthorID = core.CleanString(qf.AuthorID)
	qf.Search = core.CleanString(qf.Search)
}

func scanJSON(src interface{}, dest interface{}) error {
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	case nil:
		return nil
	default:
		return errors.Errorf("cannot scan %T into %T", src, dest)
	}
	return json.Unmarshal(data, dest)
}
