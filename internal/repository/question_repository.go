package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stemsi/exstem-assessment/internal/model"
)

// CreateQuestions inserts a batch of questions for one quiz and returns them with IDs.
func (r *Queries) CreateQuestions(ctx context.Context, quizID int64, questions []model.Question) ([]model.Question, error) {
	created := make([]model.Question, 0, len(questions))
	for _, q := range questions {
		opts, err := json.Marshal(q.Options)
		if err != nil {
			return nil, fmt.Errorf("marshal options: %w", err)
		}
		if q.Difficulty == "" {
			q.Difficulty = model.DifficultyMedium
		}
		q.QuizID = quizID
		q.IsActive = true

		err = r.db.QueryRow(ctx,
			`INSERT INTO questions (quiz_id, question_text, options, correct_answer, difficulty, explanation)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id, created_at`,
			quizID, q.QuestionText, opts, q.CorrectAnswer, q.Difficulty, q.Explanation,
		).Scan(&q.ID, &q.CreatedAt)
		if err != nil {
			return nil, mapErr(err)
		}
		created = append(created, q)
	}
	return created, nil
}

// ListActiveQuestions retrieves the active question pool of a quiz in ID order.
func (r *Queries) ListActiveQuestions(ctx context.Context, quizID int64) ([]model.Question, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, quiz_id, question_text, options, correct_answer, difficulty, explanation, is_active, created_at
		 FROM questions
		 WHERE quiz_id = $1 AND is_active
		 ORDER BY id`, quizID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.QuizID, &q.QuestionText, &q.Options, &q.CorrectAnswer,
			&q.Difficulty, &q.Explanation, &q.IsActive, &q.CreatedAt); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
