package repository

import (
	"context"

	"github.com/stemsi/exstem-assessment/internal/model"
)

// CreateQuiz inserts a new quiz.
func (r *Queries) CreateQuiz(ctx context.Context, q *model.Quiz) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO quizzes (title, time_limit_minutes, passing_score, max_attempts)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		q.Title, q.TimeLimitMinutes, q.PassingScore, q.MaxAttempts,
	).Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
	return mapErr(err)
}

// GetQuiz retrieves a quiz by ID.
func (r *Queries) GetQuiz(ctx context.Context, id int64) (*model.Quiz, error) {
	q := &model.Quiz{}
	err := r.db.QueryRow(ctx,
		`SELECT id, title, time_limit_minutes, passing_score, max_attempts, created_at, updated_at
		 FROM quizzes WHERE id = $1`, id,
	).Scan(&q.ID, &q.Title, &q.TimeLimitMinutes, &q.PassingScore, &q.MaxAttempts, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return q, nil
}
