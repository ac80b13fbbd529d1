package service

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/repository"
)

// MonitorService orchestrates the live session monitor.
type MonitorService struct {
	monitorRepo *repository.MonitorRepository
	log         zerolog.Logger
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(monitorRepo *repository.MonitorRepository, log zerolog.Logger) *MonitorService {
	return &MonitorService{
		monitorRepo: monitorRepo,
		log:         log.With().Str("component", "monitor_service").Logger(),
	}
}

// SessionSnapshot summarizes every assignment of a session.
type SessionSnapshot struct {
	SessionID       int64                `json:"session_id"`
	TotalAssigned   int                  `json:"total_assigned"`
	TotalInProgress int                  `json:"total_in_progress"`
	TotalFinished   int                  `json:"total_finished"`
	Entries         []model.MonitorEntry `json:"entries"`
}

// Snapshot returns the current progress of a session.
func (s *MonitorService) Snapshot(ctx context.Context, sessionID int64) (*SessionSnapshot, error) {
	entries, err := s.monitorRepo.GetSessionProgress(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	snap := &SessionSnapshot{
		SessionID:     sessionID,
		TotalAssigned: len(entries),
		Entries:       entries,
	}
	if snap.Entries == nil {
		snap.Entries = []model.MonitorEntry{}
	}
	for _, e := range entries {
		switch {
		case e.Status == model.AssignmentStatusInProgress:
			snap.TotalInProgress++
		case e.Status.Finished():
			snap.TotalFinished++
		}
	}
	return snap, nil
}

// Subscribe attaches to the live event channel of a session.
func (s *MonitorService) Subscribe(ctx context.Context, sessionID int64) *redis.PubSub {
	return s.monitorRepo.Subscribe(ctx, sessionID)
}

// Publish sends an event to live observers.
func (s *MonitorService) Publish(ctx context.Context, sessionID int64, ev model.MonitorEvent) error {
	return s.monitorRepo.Publish(ctx, sessionID, ev)
}
