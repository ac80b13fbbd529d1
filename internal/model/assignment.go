package model

import "time"

// AssignmentStatus enumerates the lifecycle of an assignment.
type AssignmentStatus string

const (
	AssignmentStatusScheduled  AssignmentStatus = "scheduled"
	AssignmentStatusInProgress AssignmentStatus = "in_progress"
	AssignmentStatusPassed     AssignmentStatus = "passed"
	AssignmentStatusFailed     AssignmentStatus = "failed"
	AssignmentStatusTerminated AssignmentStatus = "terminated"
)

// Finished reports whether the status is terminal.
func (s AssignmentStatus) Finished() bool {
	switch s {
	case AssignmentStatusPassed, AssignmentStatusFailed, AssignmentStatusTerminated:
		return true
	}
	return false
}

// CompletionReason records why an attempt ended, independent of pass/fail.
type CompletionReason string

const (
	CompletionManual    CompletionReason = "manual"
	CompletionTimeout   CompletionReason = "timeout"
	CompletionViolation CompletionReason = "violation"
	CompletionForced    CompletionReason = "forced"
)

// Assignment binds one user to one quiz session. Reassigned is the current attempt cycle.
type Assignment struct {
	ID               int64             `json:"id"`
	QuizSessionID    int64             `json:"quiz_session_id"`
	QuizID           int64             `json:"quiz_id"`
	UserID           int64             `json:"user_id"`
	Reassigned       int               `json:"reassigned"`
	Status           AssignmentStatus  `json:"status"`
	UserStartedAt    *time.Time        `json:"user_started_at,omitempty"`
	UserEndedAt      *time.Time        `json:"user_ended_at,omitempty"`
	Score            *int              `json:"score,omitempty"`
	Percentage       *float64          `json:"percentage,omitempty"`
	CompletionReason *CompletionReason `json:"completion_reason,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// Matches reports whether the assignment belongs to the given quiz, session and user.
func (a *Assignment) Matches(quizID, sessionID, userID int64) bool {
	return a.QuizID == quizID && a.QuizSessionID == sessionID && a.UserID == userID
}

// CreateAssignmentRequest is the payload for assigning a session to a user.
type CreateAssignmentRequest struct {
	QuizSessionID int64 `json:"quiz_session_id" binding:"required,min=1"`
	UserID        int64 `json:"user_id" binding:"required,min=1"`
}

// StartAssessmentRequest is the payload for POST /assignments/start.
type StartAssessmentRequest struct {
	QuizID        int64 `json:"quiz_id" binding:"required,min=1"`
	UserID        int64 `json:"user_id" binding:"required,min=1"`
	AssignmentID  int64 `json:"assignment_id" binding:"required,min=1"`
	QuizSessionID int64 `json:"quiz_session_id" binding:"required,min=1"`
}

// SubmittedAnswer is one answer inside an end request. Either id may identify the question.
type SubmittedAnswer struct {
	AssignedQuestionID int64  `json:"assigned_question_id" binding:"omitempty,min=1"`
	QuestionID         int64  `json:"question_id" binding:"omitempty,min=1"`
	Answer             string `json:"answer" binding:"max=500"`
}

// EndAssessmentRequest is the payload for POST /assignments/end.
type EndAssessmentRequest struct {
	QuizID        int64             `json:"quiz_id" binding:"required,min=1"`
	UserID        int64             `json:"user_id" binding:"required,min=1"`
	AssignmentID  int64             `json:"assignment_id" binding:"required,min=1"`
	QuizSessionID int64             `json:"quiz_session_id" binding:"required,min=1"`
	PassingScore  *float64          `json:"passing_score" binding:"omitempty,min=0,max=100"`
	Answers       []SubmittedAnswer `json:"answers" binding:"max=500,dive"`
	Forced        bool              `json:"forced"`
	Reason        CompletionReason  `json:"reason" binding:"omitempty,oneof=manual timeout violation forced"`
}

// AttemptQuery identifies the current attempt in the query string of the question endpoints.
type AttemptQuery struct {
	UserID        int64 `form:"userId" binding:"required,min=1"`
	QuizSessionID int64 `form:"quizSessionId" binding:"required,min=1"`
	AssignmentID  int64 `form:"assignmentId" binding:"required,min=1"`
}

// StreamQuery is the query string of the exam runner WebSocket.
type StreamQuery struct {
	QuizID        int64 `form:"quizId" binding:"required,min=1"`
	QuizSessionID int64 `form:"quizSessionId" binding:"required,min=1"`
}
