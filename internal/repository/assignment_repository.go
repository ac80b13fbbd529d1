package repository

import (
	"context"
	"time"

	"github.com/stemsi/exstem-assessment/internal/model"
)

const assignmentColumns = `a.id, a.quiz_session_id, s.quiz_id, a.user_id, a.reassigned, a.status,
	a.user_started_at, a.user_ended_at, a.score, a.percentage, a.completion_reason, a.created_at`

// CreateAssignment inserts an assignment. A second assignment of the same user
// to the same session yields ErrDuplicate.
func (r *Queries) CreateAssignment(ctx context.Context, a *model.Assignment) error {
	a.Status = model.AssignmentStatusScheduled
	err := r.db.QueryRow(ctx,
		`INSERT INTO assignments (quiz_session_id, user_id, status)
		 VALUES ($1, $2, $3)
		 RETURNING id, reassigned, created_at`,
		a.QuizSessionID, a.UserID, a.Status,
	).Scan(&a.ID, &a.Reassigned, &a.CreatedAt)
	return mapErr(err)
}

// GetAssignment retrieves an assignment with its quiz ID resolved through the session.
func (r *Queries) GetAssignment(ctx context.Context, id int64) (*model.Assignment, error) {
	return r.getAssignment(ctx, `SELECT `+assignmentColumns+`
		FROM assignments a JOIN quiz_sessions s ON s.id = a.quiz_session_id
		WHERE a.id = $1`, id)
}

// LockAssignment is GetAssignment with a row lock held until the transaction ends.
func (r *Queries) LockAssignment(ctx context.Context, id int64) (*model.Assignment, error) {
	return r.getAssignment(ctx, `SELECT `+assignmentColumns+`
		FROM assignments a JOIN quiz_sessions s ON s.id = a.quiz_session_id
		WHERE a.id = $1
		FOR UPDATE OF a`, id)
}

func (r *Queries) getAssignment(ctx context.Context, query string, id int64) (*model.Assignment, error) {
	a := &model.Assignment{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.QuizSessionID, &a.QuizID, &a.UserID, &a.Reassigned, &a.Status,
		&a.UserStartedAt, &a.UserEndedAt, &a.Score, &a.Percentage, &a.CompletionReason, &a.CreatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return a, nil
}

// MarkAssignmentStarted moves the assignment to in_progress and records the start time.
func (r *Queries) MarkAssignmentStarted(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE assignments
		 SET status = $2, user_started_at = $3, user_ended_at = NULL
		 WHERE id = $1`,
		id, model.AssignmentStatusInProgress, at,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FinishAssignment writes the attempt summary onto the assignment.
func (r *Queries) FinishAssignment(ctx context.Context, id int64, sum model.AttemptSummary) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE assignments
		 SET status = $2, score = $3, percentage = $4, completion_reason = $5, user_ended_at = $6
		 WHERE id = $1`,
		id, sum.Status, sum.Score, sum.Percentage, sum.Reason, sum.EndedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Reassign opens the next attempt cycle and resets the assignment summary.
// It returns the new cycle number.
func (r *Queries) Reassign(ctx context.Context, id int64) (int, error) {
	var cycle int
	err := r.db.QueryRow(ctx,
		`UPDATE assignments
		 SET reassigned = reassigned + 1, status = $2,
		     user_started_at = NULL, user_ended_at = NULL,
		     score = NULL, percentage = NULL, completion_reason = NULL
		 WHERE id = $1
		 RETURNING reassigned`,
		id, model.AssignmentStatusScheduled,
	).Scan(&cycle)
	return cycle, mapErr(err)
}
