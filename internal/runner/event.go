package runner

import (
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/proctor"
)

// EventType identifies a runner event.
type EventType string

const (
	EventPhaseChanged   EventType = "phase_changed"
	EventStartFailed    EventType = "start_failed"
	EventTimeWarning    EventType = "time_warning"
	EventViolationWarn  EventType = "violation_warning"
	EventIncomplete     EventType = "incomplete"
	EventSubmitting     EventType = "submitting"
	EventSubmitted      EventType = "submitted"
	EventSubmitFailed   EventType = "submit_failed"
	EventAnswerRecorded EventType = "answer_recorded"
	EventIndexChanged   EventType = "index_changed"
)

// Event is pushed to the Listener after the runner state has changed.
type Event struct {
	Type       EventType               `json:"type"`
	Phase      Phase                   `json:"phase"`
	Remaining  int                     `json:"remaining_seconds"`
	Index      int                     `json:"index"`
	Reason     model.CompletionReason  `json:"reason,omitempty"`
	Message    string                  `json:"message,omitempty"`
	Decision   *proctor.Decision       `json:"decision,omitempty"`
	Incomplete *IncompleteError        `json:"-"`
	Result     *model.AssessmentResult `json:"result,omitempty"`
	Err        error                   `json:"-"`
}

// Listener receives runner events. Calls are made without holding the runner lock,
// so a listener may call back into the runner.
type Listener interface {
	OnEvent(Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Event)

// OnEvent calls f(ev).
func (f ListenerFunc) OnEvent(ev Event) { f(ev) }
