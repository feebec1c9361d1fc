package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/autograder/core"
	"github.com/trezcool/autograder/core/quiz"
)

const (
	quizTable       = "quiz"
	submissionTable = "submission"
)

var (
	quizColumns       = []string{"id", "title", "time_limit_minutes", "questions", "author_id", "created_at"}
	submissionColumns = []string{"id", "quiz_id", "respondent_id", "answers", "trigger", "submitted_at"}

	submissionOrderings = map[string]string{
		quiz.OrderSubmittedAt:  "submitted_at",
		quiz.OrderRespondentID: "respondent_id",
	}
)

type (
	quizRow struct {
		ID               string         `db:"id"`
		Title            string         `db:"title"`
		TimeLimitMinutes int            `db:"time_limit_minutes"`
		Questions        quiz.Questions `db:"questions"`
		AuthorID         string         `db:"author_id"`
		CreatedAt        time.Time      `db:"created_at"`
	}

	submissionRow struct {
		ID           string       `db:"id"`
		QuizID       string       `db:"quiz_id"`
		RespondentID string       `db:"respondent_id"`
		Answers      quiz.Answers `db:"answers"`
		Trigger      string       `db:"trigger"`
		SubmittedAt  time.Time    `db:"submitted_at"`
	}

	quizRepository struct {
		exec core.DBExecutor
	}
)

var _ quiz.Repository = (*quizRepository)(nil) // interface compliance check

func NewQuizRepository(exec core.DBExecutor) *quizRepository {
	return &quizRepository{exec: exec}
}

func (r quizRow) toQuiz() quiz.Quiz {
	return quiz.Quiz{
		ID:               r.ID,
		Title:            r.Title,
		TimeLimitMinutes: r.TimeLimitMinutes,
		Questions:        r.Questions,
		AuthorID:         r.AuthorID,
		CreatedAt:        r.CreatedAt.UTC(),
	}
}

func (r submissionRow) toSubmission() quiz.Submission {
	return quiz.Submission{
		ID:           r.ID,
		QuizID:       r.QuizID,
		RespondentID: r.RespondentID,
		Answers:      r.Answers,
		Trigger:      quiz.Trigger(r.Trigger),
		SubmittedAt:  r.SubmittedAt.UTC(),
	}
}

func (repo quizRepository) CreateQuiz(ctx context.Context, q quiz.Quiz) (quiz.Quiz, error) {
	q.ID = uuid.New().String()
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now()
	}
	q.CreatedAt = q.CreatedAt.UTC()

	query, args, err := psql.Insert(quizTable).
		Columns(quizColumns...).
		Values(q.ID, q.Title, q.TimeLimitMinutes, q.Questions, q.AuthorID, q.CreatedAt).
		ToSql()
	if err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "building quiz insert")
	}
	if _, err = repo.exec.ExecContext(ctx, query, args...); err != nil {
		return quiz.Quiz{}, trapTooLongErr(err, "author_id", "inserting quiz")
	}
	return q, nil
}

func (repo quizRepository) LoadQuiz(ctx context.Context, id string) (quiz.Quiz, error) {
	if _, err := uuid.Parse(id); err != nil {
		return quiz.Quiz{}, quiz.ErrNotFound
	}
	query, args, err := psql.Select(quizColumns...).From(quizTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "building quiz select")
	}

	var row quizRow
	if err = repo.exec.GetContext(ctx, &row, query, args...); err != nil {
		return quiz.Quiz{}, trapNoRowsErr(err, quiz.ErrNotFound, "loading quiz")
	}
	return row.toQuiz(), nil
}

func (repo quizRepository) QueryQuizzes(ctx context.Context, filter quiz.QueryFilter) ([]quiz.Quiz, error) {
	qb := psql.Select(quizColumns...).From(quizTable).OrderBy("created_at DESC", "id")
	if filter.AuthorID != "" {
		qb = qb.Where(sq.Eq{"author_id": filter.AuthorID})
	}
	if filter.Search != "" {
		qb = qb.Where(sq.ILike{"title": "%" + filter.Search + "%"})
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building quizzes select")
	}

	var rows []quizRow
	if err = repo.exec.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying quizzes")
	}
	quizzes := make([]quiz.Quiz, 0, len(rows))
	for _, r := range rows {
		quizzes = append(quizzes, r.toQuiz())
	}
	return quizzes, nil
}

func (repo quizRepository) SaveSubmission(ctx context.Context, sub quiz.Submission) (quiz.Submission, error) {
	sub.ID = uuid.New().String()
	query, args, err := psql.Insert(submissionTable).
		Columns("id", "quiz_id", "respondent_id", "answers", "trigger").
		Values(sub.ID, sub.QuizID, sub.RespondentID, sub.Answers, string(sub.Trigger)).
		Suffix("RETURNING submitted_at").
		ToSql()
	if err != nil {
		return quiz.Submission{}, errors.Wrap(err, "building submission insert")
	}

	if err = repo.exec.QueryRowxContext(ctx, query, args...).Scan(&sub.SubmittedAt); err != nil {
		switch pqCode(err) {
		case uniqueViolation:
			return quiz.Submission{}, quiz.ErrAlreadySubmitted
		case foreignKeyViolation, invalidTextRepr:
			return quiz.Submission{}, quiz.ErrNotFound
		}
		return quiz.Submission{}, trapTooLongErr(err, "respondent_id", "inserting submission")
	}
	sub.SubmittedAt = sub.SubmittedAt.UTC()
	return sub, nil
}

func (repo quizRepository) GetSubmission(ctx context.Context, id string) (quiz.Submission, error) {
	if _, err := uuid.Parse(id); err != nil {
		return quiz.Submission{}, quiz.ErrSubmissionNotFound
	}
	query, args, err := psql.Select(submissionColumns...).From(submissionTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return quiz.Submission{}, errors.Wrap(err, "building submission select")
	}

	var row submissionRow
	if err = repo.exec.GetContext(ctx, &row, query, args...); err != nil {
		return quiz.Submission{}, trapNoRowsErr(err, quiz.ErrSubmissionNotFound, "getting submission")
	}
	return row.toSubmission(), nil
}

func (repo quizRepository) QuerySubmissions(
	ctx context.Context,
	filter quiz.SubmissionFilter,
	ordering ...core.DBOrdering,
) ([]quiz.Submission, error) {
	qb := psql.Select(submissionColumns...).From(submissionTable)
	if filter.QuizID != "" {
		if _, err := uuid.Parse(filter.QuizID); err != nil {
			return []quiz.Submission{}, nil
		}
		qb = qb.Where(sq.Eq{"quiz_id": filter.QuizID})
	}
	if filter.RespondentID != "" {
		qb = qb.Where(sq.Eq{"respondent_id": filter.RespondentID})
	}
	if clauses := orderBy(ordering, submissionOrderings); len(clauses) > 0 {
		qb = qb.OrderBy(clauses...)
	} else {
		qb = qb.OrderBy("submitted_at", "respondent_id")
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building submissions select")
	}

	var rows []submissionRow
	if err = repo.exec.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	subs := make([]quiz.Submission, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.toSubmission())
	}
	return subs, nil
}
