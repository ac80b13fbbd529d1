package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// AttemptQuestionsKey returns the cache key for the student-facing question payload of one attempt.
func (r *CacheKeyStruct) AttemptQuestionsKey(attemptID int64) string {
	return fmt.Sprintf("attempt:%d:questions", attemptID)
}

// AttemptStartKey returns the cache key holding the Unix start time of one attempt.
func (r *CacheKeyStruct) AttemptStartKey(attemptID int64) string {
	return fmt.Sprintf("attempt:%d:started_at", attemptID)
}

// AttemptDraftKey returns the hash key holding in-flight answers of one attempt,
// keyed by assigned question ID.
func (r *CacheKeyStruct) AttemptDraftKey(attemptID int64) string {
	return fmt.Sprintf("attempt:%d:draft", attemptID)
}

// SessionMonitorChannel returns the Redis PubSub channel name for a quiz session monitor.
func (r *CacheKeyStruct) SessionMonitorChannel(sessionID int64) string {
	return fmt.Sprintf("quiz_session:%d:monitor", sessionID)
}

var CacheKey = NewCacheKeyStruct()
