package model

import "time"

// MonitorEventType enumerates live monitor events.
type MonitorEventType string

const (
	MonitorEventStarted   MonitorEventType = "started"
	MonitorEventViolation MonitorEventType = "violation"
	MonitorEventEnded     MonitorEventType = "ended"
)

// MonitorEvent is published on the session monitor channel. It is never persisted.
type MonitorEvent struct {
	Type         MonitorEventType `json:"type"`
	AssignmentID int64            `json:"assignment_id"`
	UserID       int64            `json:"user_id"`
	Cycle        int              `json:"cycle"`
	Status       AssignmentStatus `json:"status,omitempty"`
	Score        *int             `json:"score,omitempty"`
	Percentage   *float64         `json:"percentage,omitempty"`
	Reason       CompletionReason `json:"reason,omitempty"`
	Signal       string           `json:"signal,omitempty"`
	Violations   int              `json:"violations,omitempty"`
	At           time.Time        `json:"at"`
}

// MonitorEntry is one assignment row of a session monitor snapshot.
type MonitorEntry struct {
	AssignmentID  int64            `json:"assignment_id"`
	UserID        int64            `json:"user_id"`
	Cycle         int              `json:"cycle"`
	Status        AssignmentStatus `json:"status"`
	UserStartedAt *time.Time       `json:"user_started_at,omitempty"`
	Score         *int             `json:"score,omitempty"`
	Assigned      int              `json:"assigned"`
	Answered      int              `json:"answered"`
}
