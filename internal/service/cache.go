package service

import (
	"context"
	"time"

	"github.com/stemsi/exstem-assessment/internal/model"
)

// AttemptCache is the hot-path store for per-attempt data. Misses are not errors.
type AttemptCache interface {
	GetQuestions(ctx context.Context, attemptID int64) ([]model.AssignedQuestionForStudent, bool, error)
	SetQuestions(ctx context.Context, attemptID int64, qs []model.AssignedQuestionForStudent) error
	GetStartedAt(ctx context.Context, attemptID int64) (time.Time, bool, error)
	SetStartedAt(ctx context.Context, attemptID int64, at time.Time) error
	Clear(ctx context.Context, attemptID int64) error
}

// EventPublisher fans monitor events out to live observers.
type EventPublisher interface {
	Publish(ctx context.Context, sessionID int64, ev model.MonitorEvent) error
}
