package model

import "time"

// Attempt is one reassignment cycle of an assignment. Its assigned questions
// and answers never mix with another attempt's.
type Attempt struct {
	ID               int64             `json:"id"`
	AssignmentID     int64             `json:"assignment_id"`
	Cycle            int               `json:"cycle"`
	Status           AssignmentStatus  `json:"status"`
	StartedAt        *time.Time        `json:"started_at,omitempty"`
	EndedAt          *time.Time        `json:"ended_at,omitempty"`
	Score            *int              `json:"score,omitempty"`
	Percentage       *float64          `json:"percentage,omitempty"`
	CompletionReason *CompletionReason `json:"completion_reason,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// AssignedQuestion binds one attempt to one question, with the recorded result.
type AssignedQuestion struct {
	ID         int64   `json:"id"`
	AttemptID  int64   `json:"attempt_id"`
	QuestionID int64   `json:"question_id"`
	Position   int     `json:"position"`
	AnswerID   *int64  `json:"answer_id,omitempty"`
	IsCorrect  *bool   `json:"is_correct,omitempty"`
	Score      *int    `json:"score,omitempty"`
	UserAnswer *string `json:"user_answer,omitempty"`

	Question Question `json:"question"`
}

// Answered reports whether a non-empty answer is recorded.
func (aq *AssignedQuestion) Answered() bool {
	return aq.AnswerID != nil && aq.UserAnswer != nil && *aq.UserAnswer != ""
}

// Answer is a user's value for one question within one attempt.
type Answer struct {
	ID         int64     `json:"id"`
	AttemptID  int64     `json:"attempt_id"`
	QuestionID int64     `json:"question_id"`
	Value      string    `json:"answer"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AssignedQuestionForStudent is the exam payload entry with the answer key withheld.
type AssignedQuestionForStudent struct {
	ID           int64      `json:"id"`
	QuestionID   int64      `json:"question_id"`
	Position     int        `json:"position"`
	QuestionText string     `json:"question_text"`
	Options      []string   `json:"options"`
	Difficulty   Difficulty `json:"difficulty,omitempty"`
}

// ForStudent strips the answer key and explanation.
func (aq *AssignedQuestion) ForStudent() AssignedQuestionForStudent {
	return AssignedQuestionForStudent{
		ID:           aq.ID,
		QuestionID:   aq.QuestionID,
		Position:     aq.Position,
		QuestionText: aq.Question.QuestionText,
		Options:      aq.Question.Options,
		Difficulty:   aq.Question.Difficulty,
	}
}

// WrongAnswer is returned after submission for every incorrect or unanswered question.
type WrongAnswer struct {
	AssignedQuestionID int64    `json:"assigned_question_id"`
	QuestionID         int64    `json:"question_id"`
	QuestionText       string   `json:"question_text"`
	Options            []string `json:"options"`
	CorrectAnswer      string   `json:"correct_answer"`
	UserAnswer         *string  `json:"user_answer"`
	Explanation        string   `json:"explanation,omitempty"`
}

// AssessmentResult is the outcome of ending an attempt.
type AssessmentResult struct {
	AssignmentID     int64            `json:"assignment_id"`
	AttemptID        int64            `json:"attempt_id"`
	Cycle            int              `json:"cycle"`
	Score            int              `json:"score"`
	TotalQuestions   int              `json:"total_questions"`
	Answered         int              `json:"answered"`
	Percentage       float64          `json:"percentage"`
	Status           AssignmentStatus `json:"status"`
	CompletionReason CompletionReason `json:"completion_reason"`
	WrongAnswers     []WrongAnswer    `json:"wrongAnswers"`
	EndedAt          time.Time        `json:"ended_at"`
}

// AssessmentState is the server view of a running attempt, used to resume after reload.
type AssessmentState struct {
	AssignmentID     int64            `json:"assignment_id"`
	AttemptID        int64            `json:"attempt_id"`
	Cycle            int              `json:"cycle"`
	Status           AssignmentStatus `json:"status"`
	StartedAt        *time.Time       `json:"user_started_at,omitempty"`
	TimeLimitSeconds int              `json:"time_limit_seconds"`
	RemainingSeconds int              `json:"remaining_seconds"`
}

// AttemptProgress counts the assigned questions of one attempt.
type AttemptProgress struct {
	Total    int `json:"total"`
	Answered int `json:"answered"`
	Correct  int `json:"correct"`
}

// Complete reports whether every assigned question has a non-empty answer.
func (p AttemptProgress) Complete() bool {
	return p.Total > 0 && p.Answered == p.Total
}

// AttemptSummary is written to both the attempt and its assignment when an attempt ends.
type AttemptSummary struct {
	Status     AssignmentStatus
	Score      int
	Percentage float64
	Reason     CompletionReason
	EndedAt    time.Time
}
