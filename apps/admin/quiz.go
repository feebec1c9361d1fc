package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	echoapi "github.com/trezcool/autograder/apps/api/echo"
	"github.com/trezcool/autograder/core"
	"github.com/trezcool/autograder/core/quiz"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

// quizFile is the YAML definition of a quiz, eg.
//
//	title: Capitals
//	time_limit_minutes: 10
//	questions:
//	  - text: Capital of Kenya?
//	    options: [Nairobi, Mombasa]
//	    correct_option_index: 0
type quizFile struct {
	Title            string `yaml:"title"`
	TimeLimitMinutes int    `yaml:"time_limit_minutes"`
	Questions        []struct {
		Text               string   `yaml:"text"`
		Options            []string `yaml:"options"`
		CorrectOptionIndex int      `yaml:"correct_option_index"`
	} `yaml:"questions"`
}

func (f quizFile) toNewQuiz() quiz.NewQuiz {
	nq := quiz.NewQuiz{Title: f.Title, TimeLimitMinutes: f.TimeLimitMinutes}
	for _, qn := range f.Questions {
		nq.Questions = append(nq.Questions, quiz.Question{
			Text:               qn.Text,
			Options:            qn.Options,
			CorrectOptionIndex: qn.CorrectOptionIndex,
		})
	}
	return nq
}

func (cli *commandLine) importQuiz(path, authorID string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading quiz file")
	}
	var f quizFile
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return errors.Wrap(err, "parsing quiz file")
	}

	q, err := cli.svc.Create(context.Background(), authorID, f.toNewQuiz())
	if err != nil {
		var vErr *core.ValidationError
		if errors.As(err, &vErr) {
			for field, msg := range vErr.FieldMap() {
				fmt.Fprintf(cli.out, "  %s: %s\n", field, msg)
			}
		}
		return err
	}
	fmt.Fprintf(cli.out, "quiz %q imported: %s\n", q.Title, q.ID)
	return nil
}

func (cli *commandLine) results(quizID, format string) error {
	ctx := context.Background()
	q, err := cli.svc.Get(ctx, quizID)
	if err != nil {
		return err
	}
	results, err := cli.svc.Results(
		ctx,
		quiz.SubmissionFilter{QuizID: q.ID},
		core.DBOrdering{Field: quiz.OrderScore},
		core.DBOrdering{Field: quiz.OrderSubmittedAt, Ascending: true},
	)
	if err != nil {
		return err
	}

	switch format {
	case formatJSON:
		enc := json.NewEncoder(cli.out)
		for _, gs := range results {
			if err := enc.Encode(gs); err != nil {
				return errors.Wrap(err, "encoding result")
			}
		}
		return nil
	case formatTable:
		w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RESPONDENT\tSCORE\tCORRECT\tGRADE\tTRIGGER\tSUBMITTED AT")
		for _, gs := range results {
			fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\t%s\t%s\n",
				gs.RespondentID,
				gs.Result.Display(),
				gs.Result.CorrectCount,
				gs.Result.TotalCount,
				gs.Result.Letter(cli.conf.Quiz.GradeScale),
				gs.Trigger,
				gs.SubmittedAt.Format(time.RFC3339),
			)
		}
		return w.Flush()
	default:
		return errors.Errorf("unknown format %q", format)
	}
}

func (cli *commandLine) token(subject, email, name string, roles []string, ttl time.Duration) error {
	for _, role := range roles {
		if !isKnownRole(role) {
			return errors.Errorf("unknown role %q; expected one of %v", role, core.AllRoles)
		}
	}
	claims := echoapi.NewClaims(cli.conf.AppName, subject, email, name, roles, ttl)
	token, err := echoapi.GenerateToken(claims, cli.conf.SecretKey)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, token)
	return nil
}

func isKnownRole(role string) bool {
	for _, r := range core.AllRoles {
		if r == role {
			return true
		}
	}
	return false
}
