package websocket

import (
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/proctor"
	"github.com/stemsi/exstem-assessment/internal/runner"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAccept   Action = "accept"
	ActionAnswer   Action = "answer"
	ActionClear    Action = "clear"
	ActionNavigate Action = "navigate"
	ActionSubmit   Action = "submit"
	ActionSignal   Action = "signal"
	ActionPing     Action = "ping"
)

// Navigation targets of a navigate action.
const (
	NavNext            = "next"
	NavPrevious        = "previous"
	NavFirstUnanswered = "first_unanswered"
)

// Request is a client message. Only the fields of the given action are read.
type Request struct {
	Action Action `json:"action"`

	// accept
	Environment *proctor.Environment `json:"environment,omitempty"`

	// answer, clear
	AssignedQuestionID int64  `json:"assigned_question_id,omitempty"`
	Answer             string `json:"answer,omitempty"`

	// navigate: either a target or an absolute index.
	Target string `json:"target,omitempty"`
	Index  *int   `json:"index,omitempty"`

	// signal
	Signal string `json:"signal,omitempty"`
	// Key and modifiers of a key press; a devtools shortcut is reported as devtools_shortcut.
	Key   string `json:"key,omitempty"`
	Ctrl  bool   `json:"ctrl,omitempty"`
	Shift bool   `json:"shift,omitempty"`
	Meta  bool   `json:"meta,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState      Event = "state"
	EventTick       Event = "tick"
	EventWarning    Event = "warning"
	EventIncomplete Event = "incomplete"
	EventSubmitted  Event = "submitted"
	EventError      Event = "error"
	EventPong       Event = "pong"
)

// StateResponse carries the full runner state. It is sent on connect and after every phase or index change.
type StateResponse struct {
	Event     Event                              `json:"event"`
	State     runner.State                       `json:"state"`
	Questions []model.AssignedQuestionForStudent `json:"questions,omitempty"`
}

type TickResponse struct {
	Event     Event `json:"event"`
	Remaining int   `json:"remaining_seconds"`
}

// WarningResponse is a transient notice: the time warning or a violation warning.
type WarningResponse struct {
	Event      Event             `json:"event"`
	Kind       runner.EventType  `json:"kind"`
	Message    string            `json:"message"`
	Decision   *proctor.Decision `json:"decision,omitempty"`
	DurationMS int64             `json:"duration_ms,omitempty"`
}

type IncompleteResponse struct {
	Event           Event  `json:"event"`
	Unanswered      int    `json:"unanswered"`
	FirstUnanswered int    `json:"first_unanswered"`
	Message         string `json:"message"`
}

type SubmittedResponse struct {
	Event   Event                   `json:"event"`
	Reason  model.CompletionReason  `json:"reason"`
	Message string                  `json:"message,omitempty"`
	Result  *model.AssessmentResult `json:"result"`
}

type ErrorResponse struct {
	Event Event               `json:"event"`
	Error string              `json:"error"`
	Gate  *proctor.GateResult `json:"gate,omitempty"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
