package dummydb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/autograder/core"
	"github.com/trezcool/autograder/core/quiz"
)

var nowFunc = time.Now // mockable

type quizRepository struct {
	quizzes *quizTable
	subs    *submissionTable
}

var _ quiz.Repository = (*quizRepository)(nil) // interface compliance check

func NewQuizRepository(db *DB) quiz.Repository {
	return &quizRepository{quizzes: db.quiz, subs: db.submission}
}

func (repo *quizRepository) CreateQuiz(_ context.Context, q quiz.Quiz) (quiz.Quiz, error) {
	repo.quizzes.Lock()
	defer repo.quizzes.Unlock()

	q.ID = uuid.New().String()
	if q.CreatedAt.IsZero() {
		q.CreatedAt = nowFunc()
	}
	q.CreatedAt = q.CreatedAt.UTC()
	repo.quizzes.table[q.ID] = &q
	return q, nil
}

func (repo *quizRepository) LoadQuiz(_ context.Context, id string) (quiz.Quiz, error) {
	repo.quizzes.RLock()
	defer repo.quizzes.RUnlock()

	if q, ok := repo.quizzes.table[id]; ok {
		return *q, nil
	}
	return quiz.Quiz{}, quiz.ErrNotFound
}

func (repo *quizRepository) QueryQuizzes(_ context.Context, filter quiz.QueryFilter) ([]quiz.Quiz, error) {
	repo.quizzes.RLock()
	defer repo.quizzes.RUnlock()

	search := strings.ToLower(filter.Search)
	quizzes := make([]quiz.Quiz, 0, len(repo.quizzes.table))
	for _, q := range repo.quizzes.table {
		if filter.AuthorID != "" && q.AuthorID != filter.AuthorID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(q.Title), search) {
			continue
		}
		quizzes = append(quizzes, *q)
	}
	sort.Slice(quizzes, func(i, j int) bool {
		if quizzes[i].CreatedAt.Equal(quizzes[j].CreatedAt) {
			return quizzes[i].ID < quizzes[j].ID
		}
		return quizzes[i].CreatedAt.After(quizzes[j].CreatedAt)
	})
	return quizzes, nil
}

func (repo *quizRepository) SaveSubmission(_ context.Context, sub quiz.Submission) (quiz.Submission, error) {
	repo.quizzes.RLock()
	defer repo.quizzes.RUnlock()
	repo.subs.Lock()
	defer repo.subs.Unlock()

	if _, ok := repo.quizzes.table[sub.QuizID]; !ok {
		return quiz.Submission{}, quiz.ErrNotFound
	}
	for _, s := range repo.subs.table {
		if s.QuizID == sub.QuizID && s.RespondentID == sub.RespondentID {
			return quiz.Submission{}, quiz.ErrAlreadySubmitted
		}
	}

	sub.ID = uuid.New().String()
	sub.Answers = append(quiz.Answers{}, sub.Answers...)
	sub.SubmittedAt = nowFunc().UTC()
	repo.subs.table[sub.ID] = &sub
	return sub, nil
}

func (repo *quizRepository) GetSubmission(_ context.Context, id string) (quiz.Submission, error) {
	repo.subs.RLock()
	defer repo.subs.RUnlock()

	if s, ok := repo.subs.table[id]; ok {
		return *s, nil
	}
	return quiz.Submission{}, quiz.ErrSubmissionNotFound
}

func (repo *quizRepository) QuerySubmissions(
	_ context.Context,
	filter quiz.SubmissionFilter,
	ordering ...core.DBOrdering,
) ([]quiz.Submission, error) {
	repo.subs.RLock()
	defer repo.subs.RUnlock()

	subs := make([]quiz.Submission, 0)
	for _, s := range repo.subs.table {
		if filter.QuizID != "" && s.QuizID != filter.QuizID {
			continue
		}
		if filter.RespondentID != "" && s.RespondentID != filter.RespondentID {
			continue
		}
		subs = append(subs, *s)
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: quiz.OrderSubmittedAt, Ascending: true}, {Field: quiz.OrderRespondentID, Ascending: true}}
	}
	sort.SliceStable(subs, func(i, j int) bool {
		for _, ord := range ordering {
			if c := compareSubmissions(subs[i], subs[j], ord.Field); c != 0 {
				return (c < 0) == ord.Ascending
			}
		}
		return subs[i].ID < subs[j].ID
	})
	return subs, nil
}

func compareSubmissions(a, b quiz.Submission, field string) int {
	switch field {
	case quiz.OrderSubmittedAt:
		switch {
		case a.SubmittedAt.Before(b.SubmittedAt):
			return -1
		case a.SubmittedAt.After(b.SubmittedAt):
			return 1
		}
	case quiz.OrderRespondentID:
		return strings.Compare(a.RespondentID, b.RespondentID)
	}
	return 0
}
