package repository

import "context"

// UpsertAnswer stores the answer for a question within one attempt, replacing any prior value.
func (r *Queries) UpsertAnswer(ctx context.Context, attemptID, questionID int64, value string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO answers (attempt_id, question_id, answer)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (attempt_id, question_id)
		 DO UPDATE SET answer = EXCLUDED.answer, updated_at = NOW()
		 RETURNING id`,
		attemptID, questionID, value,
	).Scan(&id)
	return id, mapErr(err)
}
