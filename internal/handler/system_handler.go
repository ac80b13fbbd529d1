package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/response"
)

const healthTimeout = 2 * time.Second

// Probe checks one dependency.
type Probe func(ctx context.Context) error

// PostgresProbe pings the pool.
func PostgresProbe(pool *pgxpool.Pool) Probe {
	return pool.Ping
}

// RedisProbe pings the client.
func RedisProbe(rdb *redis.Client) Probe {
	return func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
}

// SystemHandler reports liveness and dependency readiness.
type SystemHandler struct {
	probes    map[string]Probe
	startTime time.Time
	log       zerolog.Logger
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(probes map[string]Probe, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		probes:    probes,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

// Health godoc
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Ready godoc
// GET /ready
// Responds 503 when any dependency fails its probe.
func (h *SystemHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	checks := make(map[string]string, len(h.probes))
	ready := true
	for name, probe := range h.probes {
		if err := probe(ctx); err != nil {
			h.log.Warn().Err(err).Str("dependency", name).Msg("Readiness probe failed")
			checks[name] = "down"
			ready = false
			continue
		}
		checks[name] = "up"
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	response.Success(c, status, gin.H{"ready": ready, "checks": checks})
}
