package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/middleware"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/proctor"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/runner"
	"github.com/stemsi/exstem-assessment/internal/service"
	"github.com/stemsi/exstem-assessment/internal/validator"
	ws "github.com/stemsi/exstem-assessment/internal/websocket"
)

const (
	tickInterval  = time.Second
	submitTimeout = 15 * time.Second
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// DraftStore keeps in-flight answers so a reconnecting client gets them back.
type DraftStore interface {
	SaveDraft(ctx context.Context, attemptID, assignedQuestionID int64, value string) error
	LoadDraft(ctx context.Context, attemptID int64) (map[int64]string, error)
}

// ExamAssigner selects the question set of an attempt.
type ExamAssigner interface {
	Assign(ctx context.Context, ref service.AttemptRef) ([]model.AssignedQuestionForStudent, error)
}

// ExamSessions starts, inspects and ends attempts.
type ExamSessions interface {
	Start(ctx context.Context, ref service.AttemptRef) (time.Time, error)
	State(ctx context.Context, assignmentID, userID int64) (*model.AssessmentState, error)
	End(ctx context.Context, p service.EndParams) (*model.AssessmentResult, error)
}

// WSHandler hosts the exam runner over a WebSocket.
type WSHandler struct {
	assigner    ExamAssigner
	assessments ExamSessions
	monitor     service.EventPublisher
	drafts      DraftStore
	policy      proctor.Policy
	log         zerolog.Logger
	upgrader    websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(
	assigner ExamAssigner,
	assessments ExamSessions,
	monitor service.EventPublisher,
	drafts DraftStore,
	policy proctor.Policy,
	log zerolog.Logger,
	allowedOrigins []string,
) *WSHandler {
	return &WSHandler{
		assigner:    assigner,
		assessments: assessments,
		monitor:     monitor,
		drafts:      drafts,
		policy:      policy,
		log:         log.With().Str("component", "ws_handler").Logger(),
		upgrader:    buildUpgrader(allowedOrigins),
	}
}

// attemptBackend drives the assessment service on behalf of a runner.
type attemptBackend struct {
	ref         service.AttemptRef
	assessments ExamSessions
}

func (b *attemptBackend) Start(ctx context.Context) (time.Time, error) {
	return b.assessments.Start(ctx, b.ref)
}

// Submit outlives a dropped connection: a forced submission must still land.
func (b *attemptBackend) Submit(ctx context.Context, sub runner.Submission) (*model.AssessmentResult, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), submitTimeout)
	defer cancel()
	return b.assessments.End(ctx, service.EndParams{
		AttemptRef: b.ref,
		Answers:    sub.Answers,
		Forced:     sub.Forced,
		Reason:     sub.Reason,
	})
}

// ExamStream godoc
// WS /ws/v1/assignments/:id/stream?token=&quizId=&quizSessionId=
// Assigns the questions, then runs the exam: accept, answer, clear, navigate, submit and signal.
func (h *WSHandler) ExamStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	assignmentID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var q model.StreamQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	ctx := c.Request.Context()
	ref := service.AttemptRef{
		QuizID:       q.QuizID,
		SessionID:    q.QuizSessionID,
		UserID:       claims.UserID,
		AssignmentID: assignmentID,
	}

	questions, err := h.assigner.Assign(ctx, ref)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	state, err := h.assessments.State(ctx, assignmentID, claims.UserID)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	if state.Status.Finished() {
		response.FailWithMessage(c, http.StatusConflict, response.ErrConflict, "This attempt has already ended.")
		return
	}

	draft, err := h.drafts.LoadDraft(ctx, state.AttemptID)
	if err != nil {
		h.log.Warn().Err(err).Int64("attempt_id", state.AttemptID).Msg("Draft load failed, starting with empty answers")
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewConn(raw)
	defer conn.Close()

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	s := &examStream{
		h:     h,
		conn:  conn,
		ref:   ref,
		state: state,
		log: h.log.With().
			Str("conn_id", uuid.NewString()).
			Int64("assignment_id", assignmentID).
			Int64("attempt_id", state.AttemptID).
			Int64("user_id", claims.UserID).
			Logger(),
	}

	r, err := runner.New(runner.Config{
		Questions: questions,
		Answers:   draft,
		TimeLimit: time.Duration(state.TimeLimitSeconds) * time.Second,
		Policy:    h.policy,
		Mobile:    proctor.IsMobileUserAgent(c.Request.UserAgent()),
		Backend:   &attemptBackend{ref: ref, assessments: h.assessments},
		Listener:  s,
	})
	if err != nil {
		conn.WriteError(err.Error())
		return
	}
	s.r = r

	s.log.Info().Int("questions", len(questions)).Int("restored_answers", len(draft)).Msg("Exam stream connected")
	conn.WriteTyped(ws.StateResponse{Event: ws.EventState, State: r.Snapshot(), Questions: questions})

	s.readLoop(streamCtx, c.Request.UserAgent())
}

// examStream is one connected exam runner.
type examStream struct {
	h     *WSHandler
	conn  *ws.Conn
	r     *runner.Runner
	ref   service.AttemptRef
	state *model.AssessmentState
	log   zerolog.Logger

	driveOnce sync.Once
}

func (s *examStream) readLoop(ctx context.Context, userAgent string) {
	for {
		var req ws.Request
		if err := s.conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn().Err(err).Msg("Unexpected close")
			} else {
				s.log.Debug().Msg("Connection closed")
			}
			return
		}

		switch req.Action {
		case ws.ActionAccept:
			s.handleAccept(ctx, req, userAgent)
		case ws.ActionAnswer:
			s.handleAnswer(ctx, req.AssignedQuestionID, req.Answer)
		case ws.ActionClear:
			s.handleAnswer(ctx, req.AssignedQuestionID, "")
		case ws.ActionNavigate:
			s.handleNavigate(req)
		case ws.ActionSubmit:
			if _, err := s.r.SubmitManual(ctx); err != nil {
				s.reportRunnerError(err)
			}
		case ws.ActionSignal:
			s.handleSignal(ctx, req)
		case ws.ActionPing:
			s.conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		default:
			s.log.Warn().Str("action", string(req.Action)).Msg("Unknown action")
			s.conn.WriteError("unknown action: " + string(req.Action))
		}

		if s.r.Phase() == runner.PhaseTerminal {
			s.conn.Shutdown("exam ended")
			return
		}
	}
}

func (s *examStream) handleAccept(ctx context.Context, req ws.Request, userAgent string) {
	var env proctor.Environment
	if req.Environment != nil {
		env = *req.Environment
	}
	if env.UserAgent == "" {
		env.UserAgent = userAgent
	}

	err := s.r.Accept(ctx, env)
	var gate *proctor.GateError
	switch {
	case errors.As(err, &gate):
		s.conn.WriteTyped(ws.ErrorResponse{Event: ws.EventError, Error: gate.Result.Message, Gate: &gate.Result})
		return
	case err != nil:
		// Start failures were already reported by the runner.
		if errors.Is(err, runner.ErrWrongPhase) {
			s.reportRunnerError(err)
		}
		return
	}

	s.driveOnce.Do(func() { go s.drive(ctx) })
}

func (s *examStream) handleAnswer(ctx context.Context, assignedQuestionID int64, value string) {
	if err := s.r.SetAnswer(assignedQuestionID, value); err != nil {
		s.reportRunnerError(err)
		return
	}
	if err := s.h.drafts.SaveDraft(ctx, s.state.AttemptID, assignedQuestionID, value); err != nil {
		s.log.Warn().Err(err).Int64("assigned_question_id", assignedQuestionID).Msg("Draft save failed")
	}
}

func (s *examStream) handleNavigate(req ws.Request) {
	var err error
	switch {
	case req.Index != nil:
		err = s.r.GoTo(*req.Index)
	case req.Target == ws.NavNext:
		_, err = s.r.Next()
	case req.Target == ws.NavPrevious:
		_, err = s.r.Previous()
	case req.Target == ws.NavFirstUnanswered:
		_, err = s.r.JumpToFirstUnanswered()
	default:
		s.conn.WriteError("navigate needs an index or a target of next, previous or first_unanswered")
		return
	}
	if err != nil {
		s.reportRunnerError(err)
	}
}

func (s *examStream) handleSignal(ctx context.Context, req ws.Request) {
	var sig proctor.Signal
	if req.Key != "" {
		if !proctor.IsDevtoolsShortcut(req.Key, req.Ctrl, req.Shift, req.Meta) {
			return
		}
		sig = proctor.SignalDevtoolsShortcut
	} else {
		parsed, err := proctor.ParseSignal(req.Signal)
		if err != nil {
			s.conn.WriteError(err.Error())
			return
		}
		sig = parsed
	}

	d, err := s.r.Observe(ctx, sig)
	if d.Action != proctor.ActionNone {
		s.publishViolation(ctx, d)
	}
	if err != nil {
		s.reportRunnerError(err)
	}
}

// drive ticks the runner once per second until the exam ends or the connection closes.
func (s *examStream) drive(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.r.Tick(ctx)
			snap := s.r.Snapshot()
			switch snap.Phase {
			case runner.PhaseTerminal:
				s.conn.Shutdown("exam ended")
				return
			case runner.PhaseActive:
				s.conn.WriteTyped(ws.TickResponse{Event: ws.EventTick, Remaining: snap.Remaining})
			}
		}
	}
}

func (s *examStream) publishViolation(ctx context.Context, d proctor.Decision) {
	ev := model.MonitorEvent{
		Type:         model.MonitorEventViolation,
		AssignmentID: s.ref.AssignmentID,
		UserID:       s.ref.UserID,
		Cycle:        s.state.Cycle,
		Signal:       string(d.Signal),
		Violations:   d.Violations,
		At:           time.Now().UTC(),
	}
	if err := s.h.monitor.Publish(ctx, s.ref.SessionID, ev); err != nil {
		s.log.Warn().Err(err).Str("signal", string(d.Signal)).Msg("Failed to publish violation")
	}
}

// reportRunnerError writes errors the runner did not already turn into events.
func (s *examStream) reportRunnerError(err error) {
	var incomplete *runner.IncompleteError
	switch {
	case errors.As(err, &incomplete):
	case errors.Is(err, runner.ErrWrongPhase),
		errors.Is(err, runner.ErrSubmitInProgress),
		errors.Is(err, runner.ErrUnknownQuestion),
		errors.Is(err, runner.ErrOutOfRange):
		s.conn.WriteError(err.Error())
	}
}

// OnEvent translates runner events into wire events.
func (s *examStream) OnEvent(ev runner.Event) {
	switch ev.Type {
	case runner.EventPhaseChanged, runner.EventIndexChanged:
		s.conn.WriteTyped(ws.StateResponse{Event: ws.EventState, State: s.r.Snapshot()})

	case runner.EventTimeWarning:
		s.conn.WriteTyped(ws.WarningResponse{Event: ws.EventWarning, Kind: ev.Type, Message: ev.Message})

	case runner.EventViolationWarn:
		resp := ws.WarningResponse{Event: ws.EventWarning, Kind: ev.Type, Message: ev.Message, Decision: ev.Decision}
		if ev.Decision != nil {
			resp.DurationMS = ev.Decision.WarningTTL.Milliseconds()
		}
		s.conn.WriteTyped(resp)

	case runner.EventIncomplete:
		resp := ws.IncompleteResponse{Event: ws.EventIncomplete, Message: ev.Message}
		if ev.Incomplete != nil {
			resp.Unanswered = ev.Incomplete.Unanswered
			resp.FirstUnanswered = ev.Incomplete.FirstUnanswered
		}
		s.conn.WriteTyped(resp)

	case runner.EventSubmitted:
		s.log.Info().Str("reason", string(ev.Reason)).Msg("Exam submitted over stream")
		s.conn.WriteTyped(ws.SubmittedResponse{Event: ws.EventSubmitted, Reason: ev.Reason, Result: ev.Result})

	case runner.EventSubmitting:
		if ev.Message != "" {
			s.conn.WriteTyped(ws.WarningResponse{Event: ws.EventWarning, Kind: ev.Type, Message: ev.Message})
		}

	case runner.EventSubmitFailed, runner.EventStartFailed:
		s.log.Error().Err(ev.Err).Str("event", string(ev.Type)).Msg("Runner backend call failed")
		s.conn.WriteError(ev.Message)
	}
}
