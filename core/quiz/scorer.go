package quiz

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
)

// Result is derived from a Quiz and a Submission; it is never stored.
type Result struct {
	CorrectCount int     `json:"correct_count"`
	TotalCount   int     `json:"total_count"`
	ScorePercent float64 `json:"score_percent"` // full precision, in [0, 100]
}

// Score compares answers with the quiz answer key, by position.
// Missing answers are incorrect, extra answers are ignored. A quiz without questions scores 0.
func Score(q Quiz, answers []null.Int) Result {
	res := Result{TotalCount: len(q.Questions)}
	for i, qn := range q.Questions {
		if i >= len(answers) {
			break
		}
		if ans := answers[i]; ans.Valid && ans.Int == qn.CorrectOptionIndex {
			res.CorrectCount++
		}
	}
	if res.TotalCount > 0 {
		res.ScorePercent = 100 * float64(res.CorrectCount) / float64(res.TotalCount)
	}
	return res
}

// Rounded returns the score rounded to one decimal place, for display only.
func (r Result) Rounded() float64 {
	f, _ := decimal.NewFromFloat(r.ScorePercent).Round(1).Float64()
	return f
}

// Display formats the score like "75.0%".
func (r Result) Display() string {
	return decimal.NewFromFloat(r.ScorePercent).StringFixed(1) + "%"
}

func (r Result) Passed(passingScore float64) bool {
	return r.ScorePercent >= passingScore
}

// Letter returns the letter of scale with the highest minimum the score reaches, or "" if none.
func (r Result) Letter(scale map[string]float64) string {
	letters := make([]string, 0, len(scale))
	for l := range scale {
		letters = append(letters, l)
	}
	sort.Slice(letters, func(i, j int) bool { return scale[letters[i]] > scale[letters[j]] })
	for _, l := range letters {
		if r.ScorePercent >= scale[l] {
			return l
		}
	}
	return ""
}
