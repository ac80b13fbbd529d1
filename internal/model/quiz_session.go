package model

import "time"

// QuizSession is a scheduled instance of a quiz. Nil limits fall back to the quiz defaults.
type QuizSession struct {
	ID               int64      `json:"id"`
	QuizID           int64      `json:"quiz_id"`
	Title            string     `json:"title"`
	TimeLimitMinutes *int       `json:"time_limit_minutes,omitempty"`
	PassingScore     *float64   `json:"passing_score,omitempty"`
	MaxQuestions     *int       `json:"max_questions,omitempty"`
	ScheduledStart   *time.Time `json:"scheduled_start,omitempty"`
	ScheduledEnd     *time.Time `json:"scheduled_end,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Unscheduled reports whether the session has no start time.
func (s *QuizSession) Unscheduled() bool {
	return s.ScheduledStart == nil
}

// OpenAt reports whether the schedule window admits a start at t.
func (s *QuizSession) OpenAt(t time.Time) bool {
	if s.ScheduledStart != nil && t.Before(*s.ScheduledStart) {
		return false
	}
	if s.ScheduledEnd != nil && t.After(*s.ScheduledEnd) {
		return false
	}
	return true
}

// EffectiveMaxQuestions returns the session limit or fallback when unset.
func (s *QuizSession) EffectiveMaxQuestions(fallback int) int {
	if s.MaxQuestions != nil && *s.MaxQuestions > 0 {
		return *s.MaxQuestions
	}
	return fallback
}

// EffectiveTimeLimit resolves session → quiz → fallback.
func (s *QuizSession) EffectiveTimeLimit(quiz *Quiz, fallback time.Duration) time.Duration {
	if s.TimeLimitMinutes != nil && *s.TimeLimitMinutes > 0 {
		return time.Duration(*s.TimeLimitMinutes) * time.Minute
	}
	if quiz != nil && quiz.TimeLimitMinutes > 0 {
		return time.Duration(quiz.TimeLimitMinutes) * time.Minute
	}
	return fallback
}

// EffectivePassingScore resolves session → quiz.
func (s *QuizSession) EffectivePassingScore(quiz *Quiz) float64 {
	if s.PassingScore != nil {
		return *s.PassingScore
	}
	if quiz != nil {
		return quiz.PassingScore
	}
	return 0
}

// CreateQuizSessionRequest is the payload for scheduling a quiz session.
type CreateQuizSessionRequest struct {
	Title            string     `json:"title" binding:"required,min=3,max=255"`
	TimeLimitMinutes *int       `json:"time_limit_minutes" binding:"omitempty,min=1,max=480"`
	PassingScore     *float64   `json:"passing_score" binding:"omitempty,min=0,max=100"`
	MaxQuestions     *int       `json:"max_questions" binding:"omitempty,min=1,max=500"`
	ScheduledStart   *time.Time `json:"scheduled_start" binding:"omitempty"`
	ScheduledEnd     *time.Time `json:"scheduled_end" binding:"omitempty"`
}
