package repository

import (
	"context"

	"github.com/stemsi/exstem-assessment/internal/model"
)

// ListAssignedQuestions returns the assigned questions of an attempt in position order,
// joined with the question and any recorded answer.
func (r *Queries) ListAssignedQuestions(ctx context.Context, attemptID int64) ([]model.AssignedQuestion, error) {
	rows, err := r.db.Query(ctx,
		`SELECT aq.id, aq.attempt_id, aq.question_id, aq.position, aq.answer_id, aq.is_correct, aq.score, ans.answer,
		        q.id, q.quiz_id, q.question_text, q.options, q.correct_answer, q.difficulty, q.explanation,
		        q.is_active, q.created_at
		 FROM assigned_questions aq
		 JOIN questions q ON q.id = aq.question_id
		 LEFT JOIN answers ans ON ans.id = aq.answer_id
		 WHERE aq.attempt_id = $1
		 ORDER BY aq.position`, attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AssignedQuestion
	for rows.Next() {
		var aq model.AssignedQuestion
		q := &aq.Question
		if err := rows.Scan(
			&aq.ID, &aq.AttemptID, &aq.QuestionID, &aq.Position, &aq.AnswerID, &aq.IsCorrect, &aq.Score, &aq.UserAnswer,
			&q.ID, &q.QuizID, &q.QuestionText, &q.Options, &q.CorrectAnswer, &q.Difficulty, &q.Explanation,
			&q.IsActive, &q.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, aq)
	}
	return out, rows.Err()
}

// InsertAssignedQuestions bulk-inserts questions at positions 0..n-1 using UNNEST.
func (r *Queries) InsertAssignedQuestions(ctx context.Context, attemptID int64, questionIDs []int64) error {
	if len(questionIDs) == 0 {
		return nil
	}
	positions := make([]int32, len(questionIDs))
	for i := range positions {
		positions[i] = int32(i)
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO assigned_questions (attempt_id, question_id, position)
		 SELECT $1, u.question_id, u.position
		 FROM UNNEST($2::bigint[], $3::int[]) AS u(question_id, position)`,
		attemptID, questionIDs, positions,
	)
	return mapErr(err)
}

// RecordAnswerResult links an answer to its assigned question and stores the grading.
func (r *Queries) RecordAnswerResult(ctx context.Context, assignedQuestionID, answerID int64, correct bool) error {
	score := 0
	if correct {
		score = 1
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE assigned_questions SET answer_id = $2, is_correct = $3, score = $4 WHERE id = $1`,
		assignedQuestionID, answerID, correct, score,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountProgress counts assigned, answered (non-empty) and correct questions of an attempt.
func (r *Queries) CountProgress(ctx context.Context, attemptID int64) (model.AttemptProgress, error) {
	var p model.AttemptProgress
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE ans.answer IS NOT NULL AND ans.answer <> ''),
		        COUNT(*) FILTER (WHERE aq.is_correct)
		 FROM assigned_questions aq
		 LEFT JOIN answers ans ON ans.id = aq.answer_id
		 WHERE aq.attempt_id = $1`, attemptID,
	).Scan(&p.Total, &p.Answered, &p.Correct)
	return p, mapErr(err)
}
