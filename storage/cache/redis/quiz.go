// Package rediscache caches quizzes in Redis in front of a quiz.Repository.
package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/autograder/core"
	"github.com/trezcool/autograder/core/quiz"
)

const keyPrefix = "quiz:"

// NewClient connects to Redis and checks the connection.
func NewClient(ctx context.Context, conf core.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return rdb, nil
}

// QuizRepository reads quizzes through the cache. Quizzes are immutable once created,
// so entries only expire with their TTL. Cache failures fall back to the wrapped Repository.
type QuizRepository struct {
	quiz.Repository

	rdb    redis.Cmdable
	ttl    time.Duration
	logger core.Logger
}

var _ quiz.Repository = (*QuizRepository)(nil) // interface compliance check

func NewQuizRepository(repo quiz.Repository, rdb redis.Cmdable, ttl time.Duration, logger core.Logger) *QuizRepository {
	return &QuizRepository{Repository: repo, rdb: rdb, ttl: ttl, logger: logger}
}

func key(id string) string {
	return keyPrefix + id
}

func (repo *QuizRepository) CreateQuiz(ctx context.Context, q quiz.Quiz) (quiz.Quiz, error) {
	q, err := repo.Repository.CreateQuiz(ctx, q)
	if err != nil {
		return quiz.Quiz{}, err
	}
	repo.set(ctx, q)
	return q, nil
}

func (repo *QuizRepository) LoadQuiz(ctx context.Context, id string) (quiz.Quiz, error) {
	data, err := repo.rdb.Get(ctx, key(id)).Bytes()
	switch {
	case err == nil:
		var q quiz.Quiz
		if err = json.Unmarshal(data, &q); err == nil {
			return q, nil
		}
		repo.logger.Warn("decoding cached quiz", errors.Wrap(err, id))
	case err != redis.Nil:
		repo.logger.Warn("reading cached quiz", errors.Wrap(err, id))
	}

	q, err := repo.Repository.LoadQuiz(ctx, id)
	if err != nil {
		return quiz.Quiz{}, err
	}
	repo.set(ctx, q)
	return q, nil
}

func (repo *QuizRepository) set(ctx context.Context, q quiz.Quiz) {
	data, err := json.Marshal(q)
	if err != nil {
		repo.logger.Warn("encoding quiz for cache", errors.Wrap(err, q.ID))
		return
	}
	if err = repo.rdb.Set(ctx, key(q.ID), data, repo.ttl).Err(); err != nil {
		repo.logger.Warn("caching quiz", errors.Wrap(err, q.ID))
	}
}
