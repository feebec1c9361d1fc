package sqlxrepos

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/autograder/core"
	"github.com/trezcool/autograder/core/quiz"
	"github.com/trezcool/autograder/storage/database"
)

func TestOrderBy(t *testing.T) {
	ordering := []core.DBOrdering{
		{Field: quiz.OrderRespondentID, Ascending: true},
		{Field: "password; DROP TABLE quiz"},
		{Field: quiz.OrderScore},
		{Field: quiz.OrderSubmittedAt},
	}
	assert.Equal(t, []string{"respondent_id ASC", "submitted_at DESC"}, orderBy(ordering, submissionOrderings))
	assert.Empty(t, orderBy(nil, submissionOrderings))
}

func TestTrapTooLongErr(t *testing.T) {
	err := trapTooLongErr(&pq.Error{Code: stringTooLong}, "respondent_id", "inserting submission")
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "respondent_id is too long", vErr.FieldMap()["respondent_id"])

	err = trapTooLongErr(&pq.Error{Code: uniqueViolation}, "respondent_id", "inserting submission")
	assert.False(t, errors.As(err, &vErr))
	assert.Contains(t, err.Error(), "inserting submission")
}

// openTestDB connects to TEST_DATABASE_URL and migrates it; tests are skipped when it is unset.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}
	db, err := database.OpenURL(dsn)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db.DB, "up"))
	t.Cleanup(func() {
		_, _ = db.Exec("TRUNCATE quiz CASCADE")
		_ = db.Close()
	})
	return db
}

func TestQuizRepository(t *testing.T) {
	db := openTestDB(t)
	repo := NewQuizRepository(db)
	ctx := context.Background()

	q, err := quiz.New(quiz.NewQuiz{
		Title:            "Capitals",
		TimeLimitMinutes: 5,
		Questions: []quiz.Question{
			{Text: "Kenya?", Options: []string{"Nairobi", "Mombasa"}, CorrectOptionIndex: 0},
			{Text: "DRC?", Options: []string{"Goma", "Kinshasa"}, CorrectOptionIndex: 1},
		},
	}, "teacher-1")
	require.NoError(t, err)

	q, err = repo.CreateQuiz(ctx, q)
	require.NoError(t, err)
	_, err = uuid.Parse(q.ID)
	require.NoError(t, err)

	t.Run("load", func(t *testing.T) {
		got, err := repo.LoadQuiz(ctx, q.ID)
		require.NoError(t, err)
		assert.Equal(t, q.Questions, got.Questions)
		assert.Equal(t, q.Title, got.Title)

		_, err = repo.LoadQuiz(ctx, uuid.New().String())
		assert.Equal(t, quiz.ErrNotFound, err)
		_, err = repo.LoadQuiz(ctx, "not-a-uuid")
		assert.Equal(t, quiz.ErrNotFound, err)
	})

	t.Run("query", func(t *testing.T) {
		qs, err := repo.QueryQuizzes(ctx, quiz.QueryFilter{Search: "capi"})
		require.NoError(t, err)
		require.Len(t, qs, 1)
		qs, err = repo.QueryQuizzes(ctx, quiz.QueryFilter{AuthorID: "teacher-2"})
		require.NoError(t, err)
		assert.Empty(t, qs)
	})

	t.Run("submissions", func(t *testing.T) {
		sub, err := repo.SaveSubmission(ctx, quiz.Submission{
			QuizID:       q.ID,
			RespondentID: "student-1",
			Answers:      quiz.Ints(0, -1),
			Trigger:      quiz.TriggerTimer,
		})
		require.NoError(t, err)
		assert.False(t, sub.SubmittedAt.IsZero())

		_, err = repo.SaveSubmission(ctx, quiz.Submission{QuizID: q.ID, RespondentID: "student-1", Trigger: quiz.TriggerExplicit})
		assert.Equal(t, quiz.ErrAlreadySubmitted, err)
		_, err = repo.SaveSubmission(ctx, quiz.Submission{QuizID: uuid.New().String(), RespondentID: "student-1"})
		assert.Equal(t, quiz.ErrNotFound, err)
		_, err = repo.SaveSubmission(ctx, quiz.Submission{QuizID: q.ID, RespondentID: strings.Repeat("x", 65), Trigger: quiz.TriggerExplicit})
		var vErr *core.ValidationError
		assert.True(t, errors.As(err, &vErr))

		got, err := repo.GetSubmission(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, quiz.Ints(0, -1), got.Answers)
		assert.Equal(t, quiz.TriggerTimer, got.Trigger)

		subs, err := repo.QuerySubmissions(ctx, quiz.SubmissionFilter{QuizID: q.ID}, core.DBOrdering{Field: quiz.OrderSubmittedAt})
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, sub.ID, subs[0].ID)
	})
}
