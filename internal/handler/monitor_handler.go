package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // keeps a slow query from blocking the SSE loop
)

var pingPayload = []byte(`{"type":"ping"}`)

// MonitorHandler streams the live progress of a quiz session to administrators.
type MonitorHandler struct {
	monitorService *service.MonitorService
	log            zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(monitorService *service.MonitorService, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		monitorService: monitorService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorSessionSSE godoc
// GET /api/v1/admin/sessions/:id/monitor
// Sends a snapshot, then forwards started/violation/ended events and periodic refreshes.
func (h *MonitorHandler) MonitorSessionSSE(c *gin.Context) {
	sessionID, ok := paramID(c, "id")
	if !ok {
		return
	}
	reqCtx := c.Request.Context()

	snap, err := h.snapshot(reqCtx, sessionID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.SSEvent("message", gin.H{"type": "snapshot", "data": snap})
	c.Writer.Flush()

	pubsub := h.monitorService.Subscribe(reqCtx, sessionID)
	defer pubsub.Close()
	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()
	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	log := h.log.With().Int64("session_id", sessionID).Logger()
	log.Info().Msg("Admin attached to live monitor SSE")

	// Refreshes are skipped until an event shows someone is taking the exam.
	active := snap.TotalInProgress > 0

	for {
		select {
		case <-reqCtx.Done():
			log.Info().Msg("Admin disconnected from live monitor SSE")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Payloads are already JSON; forward them untouched.
			c.Writer.Write([]byte("data: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
			active = true

		case <-refreshTicker.C:
			if !active {
				continue
			}
			snap, err := h.snapshot(reqCtx, sessionID)
			if err != nil {
				log.Warn().Err(err).Msg("Failed to refresh session progress")
				continue
			}
			c.SSEvent("message", gin.H{"type": "refresh", "data": snap})
			c.Writer.Flush()
			active = snap.TotalInProgress > 0

		case <-keepAliveTicker.C:
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(pingPayload)
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}

func (h *MonitorHandler) snapshot(parent context.Context, sessionID int64) (*service.SessionSnapshot, error) {
	ctx, cancel := context.WithTimeout(parent, refreshTimeout)
	defer cancel()
	return h.monitorService.Snapshot(ctx, sessionID)
}
