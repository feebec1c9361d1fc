package emailsvc

import (
	"context"
	"net/mail"
	"strconv"

	"github.com/trezcool/autograder/core"
	"github.com/trezcool/autograder/core/quiz"
)

const resultTemplate = "quiz_result"

type resultData struct {
	Name         string
	QuizTitle    string
	TimeUp       bool
	Score        string
	CorrectCount int
	TotalCount   int
	Letter       string
	Passed       bool
	PassingScore string
}

// ResultNotifier emails their result to the respondents who have an email address.
type ResultNotifier struct {
	mailSvc core.EmailService
	conf    core.QuizConfig
}

func NewResultNotifier(mailSvc core.EmailService, conf *core.Config) *ResultNotifier {
	return &ResultNotifier{mailSvc: mailSvc, conf: conf.Quiz}
}

// Notify is a quiz.SubmitHandler.
func (n *ResultNotifier) Notify(_ context.Context, q quiz.Quiz, gs quiz.GradedSubmission, resp quiz.Respondent) error {
	if resp.Email == "" {
		return nil
	}
	name := resp.Name
	if name == "" {
		name = resp.ID
	}

	n.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: resp.Name, Address: resp.Email}},
		Subject:      "Your result for " + q.Title,
		TemplateName: resultTemplate,
		TemplateData: resultData{
			Name:         name,
			QuizTitle:    q.Title,
			TimeUp:       gs.Trigger == quiz.TriggerTimer,
			Score:        gs.Result.Display(),
			CorrectCount: gs.Result.CorrectCount,
			TotalCount:   gs.Result.TotalCount,
			Letter:       gs.Result.Letter(n.conf.GradeScale),
			Passed:       gs.Result.Passed(n.conf.PassingScore),
			PassingScore: strconv.FormatFloat(n.conf.PassingScore, 'f', -1, 64) + "%",
		},
	})
	return nil
}
