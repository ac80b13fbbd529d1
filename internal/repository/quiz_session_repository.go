package repository

import (
	"context"

	"github.com/stemsi/exstem-assessment/internal/model"
)

// CreateSession inserts a new quiz session.
// The partial unique index on unscheduled sessions surfaces as ErrDuplicate.
func (r *Queries) CreateSession(ctx context.Context, s *model.QuizSession) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO quiz_sessions (quiz_id, title, time_limit_minutes, passing_score, max_questions, scheduled_start, scheduled_end)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		s.QuizID, s.Title, s.TimeLimitMinutes, s.PassingScore, s.MaxQuestions, s.ScheduledStart, s.ScheduledEnd,
	).Scan(&s.ID, &s.CreatedAt)
	return mapErr(err)
}

// GetSession retrieves a quiz session by ID.
func (r *Queries) GetSession(ctx context.Context, id int64) (*model.QuizSession, error) {
	s := &model.QuizSession{}
	err := r.db.QueryRow(ctx,
		`SELECT id, quiz_id, title, time_limit_minutes, passing_score, max_questions,
		        scheduled_start, scheduled_end, created_at
		 FROM quiz_sessions WHERE id = $1`, id,
	).Scan(&s.ID, &s.QuizID, &s.Title, &s.TimeLimitMinutes, &s.PassingScore, &s.MaxQuestions,
		&s.ScheduledStart, &s.ScheduledEnd, &s.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return s, nil
}

// HasUnscheduledSession reports whether the quiz already has a session without a start time.
func (r *Queries) HasUnscheduledSession(ctx context.Context, quizID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM quiz_sessions WHERE quiz_id = $1 AND scheduled_start IS NULL)`,
		quizID,
	).Scan(&exists)
	return exists, mapErr(err)
}
