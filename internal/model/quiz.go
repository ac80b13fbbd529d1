package model

import "time"

// Quiz owns a pool of questions and the defaults its sessions inherit.
type Quiz struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	TimeLimitMinutes int       `json:"time_limit_minutes"`
	PassingScore     float64   `json:"passing_score"`
	MaxAttempts      int       `json:"max_attempts"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// CreateQuizRequest is the payload for creating a quiz.
type CreateQuizRequest struct {
	Title            string  `json:"title" binding:"required,min=3,max=255"`
	TimeLimitMinutes int     `json:"time_limit_minutes" binding:"required,min=1,max=480"`
	PassingScore     float64 `json:"passing_score" binding:"min=0,max=100"`
	MaxAttempts      int     `json:"max_attempts" binding:"min=0,max=100"`
}
