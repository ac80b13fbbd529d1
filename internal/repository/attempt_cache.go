package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/model"
)

const attemptCacheTTL = 24 * time.Hour

// AttemptCache keeps per-attempt hot data in Redis: the student question payload,
// the start timestamp and the answer draft. PostgreSQL stays the source of truth.
type AttemptCache struct {
	rdb *redis.Client
}

// NewAttemptCache creates a new AttemptCache.
func NewAttemptCache(rdb *redis.Client) *AttemptCache {
	return &AttemptCache{rdb: rdb}
}

// GetQuestions returns the cached payload. ok is false on a cache miss.
func (c *AttemptCache) GetQuestions(ctx context.Context, attemptID int64) ([]model.AssignedQuestionForStudent, bool, error) {
	raw, err := c.rdb.Get(ctx, config.CacheKey.AttemptQuestionsKey(attemptID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var qs []model.AssignedQuestionForStudent
	if err := json.Unmarshal(raw, &qs); err != nil {
		return nil, false, err
	}
	return qs, true, nil
}

// SetQuestions caches the payload of an attempt.
func (c *AttemptCache) SetQuestions(ctx context.Context, attemptID int64, qs []model.AssignedQuestionForStudent) error {
	raw, err := json.Marshal(qs)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, config.CacheKey.AttemptQuestionsKey(attemptID), raw, attemptCacheTTL).Err()
}

// GetStartedAt returns the cached start time. ok is false on a cache miss.
func (c *AttemptCache) GetStartedAt(ctx context.Context, attemptID int64) (time.Time, bool, error) {
	unix, err := c.rdb.Get(ctx, config.CacheKey.AttemptStartKey(attemptID)).Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.Unix(unix, 0).UTC(), true, nil
}

// SetStartedAt caches the start time of an attempt.
func (c *AttemptCache) SetStartedAt(ctx context.Context, attemptID int64, at time.Time) error {
	return c.rdb.Set(ctx, config.CacheKey.AttemptStartKey(attemptID), at.Unix(), attemptCacheTTL).Err()
}

// SaveDraft records one in-flight answer. An empty value clears it.
func (c *AttemptCache) SaveDraft(ctx context.Context, attemptID, assignedQuestionID int64, value string) error {
	key := config.CacheKey.AttemptDraftKey(attemptID)
	field := strconv.FormatInt(assignedQuestionID, 10)

	pipe := c.rdb.TxPipeline()
	if value == "" {
		pipe.HDel(ctx, key, field)
	} else {
		pipe.HSet(ctx, key, field, value)
	}
	pipe.Expire(ctx, key, attemptCacheTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// LoadDraft returns the in-flight answers of an attempt keyed by assigned question ID.
func (c *AttemptCache) LoadDraft(ctx context.Context, attemptID int64) (map[int64]string, error) {
	fields, err := c.rdb.HGetAll(ctx, config.CacheKey.AttemptDraftKey(attemptID)).Result()
	if err != nil {
		return nil, err
	}
	draft := make(map[int64]string, len(fields))
	for k, v := range fields {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		draft[id] = v
	}
	return draft, nil
}

// Clear drops every cached entry of an attempt.
func (c *AttemptCache) Clear(ctx context.Context, attemptID int64) error {
	return c.rdb.Del(ctx,
		config.CacheKey.AttemptQuestionsKey(attemptID),
		config.CacheKey.AttemptStartKey(attemptID),
		config.CacheKey.AttemptDraftKey(attemptID),
	).Err()
}
