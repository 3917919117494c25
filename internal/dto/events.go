package dto

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// EventKind categorizes a TraceEvent.
type EventKind string

const (
	KindPhaseStarted   EventKind = "phase_started"
	KindPhaseCompleted EventKind = "phase_completed"
	KindToolInvoked    EventKind = "tool_invoked"
	KindRouting        EventKind = "routing"
	KindProgress       EventKind = "progress"
	KindDecision       EventKind = "decision"
	KindError          EventKind = "error"
)

var kinds = []EventKind{
	KindPhaseStarted,
	KindPhaseCompleted,
	KindToolInvoked,
	KindRouting,
	KindProgress,
	KindDecision,
	KindError,
}

// EventKinds returns the supported event kinds.
func EventKinds() []EventKind {
	return slices.Clone(kinds)
}

// ParseEventKind validates a string as a known event kind.
func ParseEventKind(s string) (EventKind, error) {
	k := EventKind(s)
	if !slices.Contains(kinds, k) {
		return "", fmt.Errorf("%w: unknown event kind %q", ErrValidation, s)
	}
	return k, nil
}

// TraceEvent is an immutable, timestamped record appended to a run's
// ordered event log. ID allows downstream sinks to deduplicate.
type TraceEvent struct {
	ID        uuid.UUID      `json:"uid"`
	Kind      EventKind      `json:"kind"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Owner     string         `json:"owner,omitempty"`
	Message   string         `json:"message,omitempty"`
	Phase     string         `json:"phase,omitempty"`
}

// NewTraceEvent creates an event of the given kind stamped with the current
// UTC time. The payload is copied.
func NewTraceEvent(kind EventKind, payload map[string]any) (TraceEvent, error) {
	if _, err := ParseEventKind(string(kind)); err != nil {
		return TraceEvent{}, err
	}
	return TraceEvent{
		ID:        uuid.New(),
		Kind:      kind,
		Payload:   maps.Clone(payload),
		Timestamp: time.Now().UTC(),
	}, nil
}

// Validate reports whether the event carries a known kind.
func (e TraceEvent) Validate() error {
	_, err := ParseEventKind(string(e.Kind))
	return err
}

// WithOwner returns a copy of e attributed to owner.
func (e TraceEvent) WithOwner(owner string) TraceEvent {
	e.Owner = owner
	return e
}

// WithPhase returns a copy of e scoped to phase.
func (e TraceEvent) WithPhase(phase string) TraceEvent {
	e.Phase = phase
	return e
}

// WithMessage returns a copy of e carrying a human-readable message.
func (e TraceEvent) WithMessage(message string) TraceEvent {
	e.Message = message
	return e
}
