package quiz

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/autograder/core"
)

var (
	correctIdxTag  = "correctidx"
	correctIdxText = "correct option index must point to one of the options"
)

func init() {
	core.Validate.RegisterStructValidation(questionStructValidation, Question{})
	core.RegisterCustomTranslation(correctIdxTag, correctIdxText)
}

// questionStructValidation checks that the correct option index is within the options range.
func questionStructValidation(sl validator.StructLevel) {
	qn, ok := sl.Current().Interface().(Question)
	if !ok {
		return
	}
	if qn.CorrectOptionIndex < 0 || qn.CorrectOptionIndex >= len(qn.Options) {
		sl.ReportError(qn.CorrectOptionIndex, "correct_option_index", "CorrectOptionIndex", correctIdxTag, "")
	}
}
