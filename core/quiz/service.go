package quiz

import (
	"context"
	"sort"
	"sync"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/autograder/core"
)

var (
	// errors
	ErrNotFound           = errors.New("quiz not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrAlreadySubmitted   = errors.New("answers were already submitted for this quiz")
)

// Orderings accepted by Service.Results. OrderScore is applied in memory, the others by the Repository.
const (
	OrderSubmittedAt  = "submitted_at"
	OrderRespondentID = "respondent_id"
	OrderScore        = "score"
)

var SubmissionOrderings = []string{OrderSubmittedAt, OrderRespondentID, OrderScore}

type (
	Repository interface {
		// CreateQuiz stores q; the store assigns its ID.
		CreateQuiz(ctx context.Context, q Quiz) (Quiz, error)
		LoadQuiz(ctx context.Context, id string) (Quiz, error)
		// QueryQuizzes applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Quiz.Title.
		QueryQuizzes(ctx context.Context, filter QueryFilter) ([]Quiz, error)
		// SaveSubmission stores sub; the store assigns its ID and SubmittedAt.
		// It returns ErrAlreadySubmitted if the respondent already submitted answers to the quiz.
		SaveSubmission(ctx context.Context, sub Submission) (Submission, error)
		GetSubmission(ctx context.Context, id string) (Submission, error)
		QuerySubmissions(ctx context.Context, filter SubmissionFilter, ordering ...core.DBOrdering) ([]Submission, error)
	}

	// SubmitHandler is called after a Submission is stored.
	SubmitHandler func(ctx context.Context, q Quiz, gs GradedSubmission, resp Respondent) error

	Service struct {
		repo     Repository
		conf     *core.Config
		logger   core.Logger
		attempts *Tracker

		mu       sync.RWMutex
		onSubmit []SubmitHandler
	}
)

func NewService(repo Repository, conf *core.Config, logger core.Logger) (*Service, error) {
	if err := vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(conf, "conf"),
		vala.IsNotNil(logger, "logger"),
	).Check(); err != nil {
		return nil, err
	}

	svc := &Service{repo: repo, conf: conf, logger: logger}
	svc.attempts = NewTracker(svc.submitAttempt, logger, conf.Quiz.TickInterval)
	return svc, nil
}

// OnSubmit registers h to run after every stored Submission, whatever its Trigger.
// Handler errors are logged and do not fail the submission.
func (svc *Service) OnSubmit(h SubmitHandler) {
	svc.mu.Lock()
	svc.onSubmit = append(svc.onSubmit, h)
	svc.mu.Unlock()
}

// OnTimerExpired registers h to run when the time of an attempt is up, before its answers are submitted.
func (svc *Service) OnTimerExpired(h func(AttemptView)) {
	svc.attempts.OnExpired(h)
}

func (svc *Service) Create(ctx context.Context, authorID string, nq NewQuiz) (Quiz, error) {
	if nq.TimeLimitMinutes == 0 {
		nq.TimeLimitMinutes = svc.conf.Quiz.DefaultTimeLimit
	}
	q, err := New(nq, authorID)
	if err != nil {
		return Quiz{}, err
	}
	q.CreatedAt = NowFunc().UTC()
	return svc.repo.CreateQuiz(ctx, q)
}

// Get loads a Quiz and checks it is still valid; a stored Quiz may predate the current rules.
func (svc *Service) Get(ctx context.Context, id string) (Quiz, error) {
	q, err := svc.repo.LoadQuiz(ctx, id)
	if err != nil {
		return Quiz{}, err
	}
	if err := q.Validate(); err != nil {
		return Quiz{}, errors.Wrapf(err, "loading quiz %s", id)
	}
	return q, nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Quiz, error) {
	filter.Clean()
	return svc.repo.QueryQuizzes(ctx, filter)
}

// Submit grades and stores answers given without an attempt.
func (svc *Service) Submit(ctx context.Context, quizID string, resp Respondent, answers Answers) (GradedSubmission, error) {
	q, err := svc.Get(ctx, quizID)
	if err != nil {
		return GradedSubmission{}, err
	}
	if svc.attempts.Running(q.ID, resp.ID) {
		return GradedSubmission{}, ErrAttemptExists
	}
	return svc.record(ctx, q, resp, answers, TriggerExplicit)
}

func (svc *Service) GetSubmission(ctx context.Context, id string) (GradedSubmission, error) {
	sub, err := svc.repo.GetSubmission(ctx, id)
	if err != nil {
		return GradedSubmission{}, err
	}
	q, err := svc.repo.LoadQuiz(ctx, sub.QuizID)
	if err != nil {
		return GradedSubmission{}, errors.Wrapf(err, "loading quiz of submission %s", id)
	}
	return grade(q, sub), nil
}

// Results returns the graded submissions matching filter.
func (svc *Service) Results(ctx context.Context, filter SubmissionFilter, ordering ...core.DBOrdering) ([]GradedSubmission, error) {
	var byScore *core.DBOrdering
	dbOrdering := make([]core.DBOrdering, 0, len(ordering))
	for i, ord := range ordering {
		if ord.Field == OrderScore {
			byScore = &ordering[i]
			continue
		}
		dbOrdering = append(dbOrdering, ord)
	}

	subs, err := svc.repo.QuerySubmissions(ctx, filter, dbOrdering...)
	if err != nil {
		return nil, err
	}

	quizzes := make(map[string]Quiz)
	results := make([]GradedSubmission, 0, len(subs))
	for _, sub := range subs {
		q, ok := quizzes[sub.QuizID]
		if !ok {
			if q, err = svc.repo.LoadQuiz(ctx, sub.QuizID); err != nil {
				return nil, errors.Wrapf(err, "loading quiz of submission %s", sub.ID)
			}
			quizzes[sub.QuizID] = q
		}
		results = append(results, grade(q, sub))
	}

	if byScore != nil {
		asc := byScore.Ascending
		sort.SliceStable(results, func(i, j int) bool {
			if asc {
				return results[i].Result.ScorePercent < results[j].Result.ScorePercent
			}
			return results[i].Result.ScorePercent > results[j].Result.ScorePercent
		})
	}
	return results, nil
}

// StartAttempt opens a timed attempt; its answers are submitted when the time is up.
func (svc *Service) StartAttempt(ctx context.Context, quizID string, resp Respondent) (AttemptView, error) {
	q, err := svc.Get(ctx, quizID)
	if err != nil {
		return AttemptView{}, err
	}
	prev, err := svc.repo.QuerySubmissions(ctx, SubmissionFilter{QuizID: q.ID, RespondentID: resp.ID})
	if err != nil {
		return AttemptView{}, err
	}
	if len(prev) > 0 {
		return AttemptView{}, ErrAlreadySubmitted
	}

	a, err := svc.attempts.Start(q, resp)
	if err != nil {
		return AttemptView{}, err
	}
	svc.logger.Info("attempt started", map[string]interface{}{"attempt": a.ID, "quiz": q.ID}, core.Person{ID: resp.ID, Email: resp.Email})
	return a.View(), nil
}

func (svc *Service) GetAttempt(attemptID, respondentID string) (AttemptView, error) {
	a, err := svc.attempts.Get(attemptID, respondentID)
	if err != nil {
		return AttemptView{}, err
	}
	return a.View(), nil
}

// AttemptQuiz returns the Quiz an attempt is running on.
func (svc *Service) AttemptQuiz(attemptID, respondentID string) (Quiz, error) {
	a, err := svc.attempts.Get(attemptID, respondentID)
	if err != nil {
		return Quiz{}, err
	}
	return a.Quiz, nil
}

func (svc *Service) SelectAnswer(attemptID, respondentID string, index int, option null.Int) (AttemptView, error) {
	a, err := svc.attempts.Select(attemptID, respondentID, index, option)
	if err != nil {
		return AttemptView{}, err
	}
	return a.View(), nil
}

func (svc *Service) SubmitAttempt(ctx context.Context, attemptID, respondentID string) (GradedSubmission, error) {
	return svc.attempts.Submit(ctx, attemptID, respondentID)
}

func (svc *Service) SubscribeAttempt(attemptID, respondentID string) (<-chan AttemptEvent, func(), error) {
	return svc.attempts.Subscribe(attemptID, respondentID)
}

// Close submits the running attempts.
func (svc *Service) Close(ctx context.Context) {
	svc.attempts.Close(ctx)
}

func (svc *Service) submitAttempt(ctx context.Context, a *Attempt, trigger Trigger) (GradedSubmission, error) {
	return svc.record(ctx, a.Quiz, a.Respondent, a.Answers(), trigger)
}

func (svc *Service) record(ctx context.Context, q Quiz, resp Respondent, answers Answers, trigger Trigger) (GradedSubmission, error) {
	sub, err := svc.repo.SaveSubmission(ctx, Submission{
		QuizID:       q.ID,
		RespondentID: resp.ID,
		Answers:      answers.Normalize(len(q.Questions)),
		Trigger:      trigger,
	})
	if err != nil {
		return GradedSubmission{}, err
	}
	gs := grade(q, sub)

	svc.mu.RLock()
	handlers := append([]SubmitHandler{}, svc.onSubmit...)
	svc.mu.RUnlock()
	for _, h := range handlers {
		if err := h(ctx, q, gs, resp); err != nil {
			svc.logger.Error("submit handler", errors.Wrapf(err, "submission %s", gs.ID), core.Person{ID: resp.ID, Email: resp.Email})
		}
	}
	return gs, nil
}
