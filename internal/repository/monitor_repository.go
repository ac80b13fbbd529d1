package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/model"
)

// MonitorRepository provides data access for the live session monitor.
// It combines PostgreSQL (assignment state) and Redis Pub/Sub (live events).
type MonitorRepository struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(pool *pgxpool.Pool, rdb *redis.Client) *MonitorRepository {
	return &MonitorRepository{pool: pool, rdb: rdb}
}

// GetSessionProgress returns every assignment of a session with the counts of its current attempt.
func (r *MonitorRepository) GetSessionProgress(ctx context.Context, sessionID int64) ([]model.MonitorEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.user_id, a.reassigned, a.status, a.user_started_at, a.score,
		        COUNT(aq.id), COUNT(aq.answer_id)
		 FROM assignments a
		 LEFT JOIN attempts t ON t.assignment_id = a.id AND t.cycle = a.reassigned
		 LEFT JOIN assigned_questions aq ON aq.attempt_id = t.id
		 WHERE a.quiz_session_id = $1
		 GROUP BY a.id
		 ORDER BY a.id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.MonitorEntry
	for rows.Next() {
		var e model.MonitorEntry
		if err := rows.Scan(&e.AssignmentID, &e.UserID, &e.Cycle, &e.Status, &e.UserStartedAt, &e.Score,
			&e.Assigned, &e.Answered); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Publish sends an event to the session monitor channel.
func (r *MonitorRepository) Publish(ctx context.Context, sessionID int64, ev model.MonitorEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, config.CacheKey.SessionMonitorChannel(sessionID), payload).Err()
}

// Subscribe attaches to the session monitor channel. The caller closes the returned PubSub.
func (r *MonitorRepository) Subscribe(ctx context.Context, sessionID int64) *redis.PubSub {
	return r.rdb.Subscribe(ctx, config.CacheKey.SessionMonitorChannel(sessionID))
}
