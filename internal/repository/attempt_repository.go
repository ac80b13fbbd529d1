package repository

import (
	"context"
	"time"

	"github.com/stemsi/exstem-assessment/internal/model"
)

const attemptColumns = `id, assignment_id, cycle, status, started_at, ended_at,
	score, percentage, completion_reason, created_at`

func scanAttempt(row interface{ Scan(dest ...any) error }) (*model.Attempt, error) {
	at := &model.Attempt{}
	err := row.Scan(&at.ID, &at.AssignmentID, &at.Cycle, &at.Status, &at.StartedAt, &at.EndedAt,
		&at.Score, &at.Percentage, &at.CompletionReason, &at.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return at, nil
}

// EnsureAttempt creates the attempt for (assignment, cycle) if absent and returns it locked.
// Concurrent callers serialize on the row lock and observe each other's committed work.
func (r *Queries) EnsureAttempt(ctx context.Context, assignmentID int64, cycle int) (*model.Attempt, error) {
	_, err := r.db.Exec(ctx,
		`INSERT INTO attempts (assignment_id, cycle, status)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (assignment_id, cycle) DO NOTHING`,
		assignmentID, cycle, model.AssignmentStatusScheduled,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return r.LockAttempt(ctx, assignmentID, cycle)
}

// FindAttempt retrieves the attempt for (assignment, cycle) without locking.
func (r *Queries) FindAttempt(ctx context.Context, assignmentID int64, cycle int) (*model.Attempt, error) {
	return scanAttempt(r.db.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE assignment_id = $1 AND cycle = $2`,
		assignmentID, cycle,
	))
}

// LockAttempt retrieves the attempt for (assignment, cycle) with FOR UPDATE.
// Callers must already hold the assignment lock (see Store.InTx).
func (r *Queries) LockAttempt(ctx context.Context, assignmentID int64, cycle int) (*model.Attempt, error) {
	return scanAttempt(r.db.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE assignment_id = $1 AND cycle = $2 FOR UPDATE`,
		assignmentID, cycle,
	))
}

// ListAttempts returns every cycle of an assignment, oldest first.
func (r *Queries) ListAttempts(ctx context.Context, assignmentID int64) ([]model.Attempt, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE assignment_id = $1 ORDER BY cycle`,
		assignmentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		at, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *at)
	}
	return attempts, rows.Err()
}

// MarkAttemptStarted records the start of an attempt.
func (r *Queries) MarkAttemptStarted(ctx context.Context, attemptID int64, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE attempts SET status = $2, started_at = $3 WHERE id = $1`,
		attemptID, model.AssignmentStatusInProgress, at,
	)
	return err
}

// FinishAttempt writes the final summary of an attempt.
func (r *Queries) FinishAttempt(ctx context.Context, attemptID int64, sum model.AttemptSummary) error {
	_, err := r.db.Exec(ctx,
		`UPDATE attempts
		 SET status = $2, score = $3, percentage = $4, completion_reason = $5, ended_at = $6
		 WHERE id = $1`,
		attemptID, sum.Status, sum.Score, sum.Percentage, sum.Reason, sum.EndedAt,
	)
	return err
}
