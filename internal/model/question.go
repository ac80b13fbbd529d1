package model

import (
	"time"
)

// Difficulty grades a question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Question belongs to exactly one quiz. Options keep their authored order.
type Question struct {
	ID            int64      `json:"id"`
	QuizID        int64      `json:"quiz_id"`
	QuestionText  string     `json:"question_text"`
	Options       []string   `json:"options"`
	CorrectAnswer string     `json:"correct_answer"`
	Difficulty    Difficulty `json:"difficulty"`
	Explanation   string     `json:"explanation"`
	IsActive      bool       `json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
}

// AddQuestionRequest is the payload for adding a question to a quiz.
type AddQuestionRequest struct {
	QuestionText  string   `json:"question_text" binding:"required,min=1,max=2000"`
	Options       []string `json:"options" binding:"required,min=2,max=10,dive,required,max=500"`
	CorrectAnswer string   `json:"correct_answer" binding:"required,max=500"`
	Difficulty    string   `json:"difficulty" binding:"omitempty,oneof=easy medium hard"`
	Explanation   string   `json:"explanation" binding:"omitempty,max=4000"`
}

// AddQuestionsRequest wraps a batch of questions.
type AddQuestionsRequest struct {
	Questions []AddQuestionRequest `json:"questions" binding:"required,min=1,dive"`
}
