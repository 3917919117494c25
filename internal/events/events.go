// Package events appends trace events to the ordered event log held in run
// state. Emit and Merge are pure: they return a new state and never modify
// the events already recorded.
package events

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
	"github.com/cleverhoods/sagecompass-sub001/internal/state"
)

// Log returns a copy of the event log held by s.
func Log(s state.State) ([]dto.TraceEvent, error) {
	v, ok := s.Get(state.KeyEvents)
	if !ok || v == nil {
		return nil, nil
	}

	switch log := v.(type) {
	case []dto.TraceEvent:
		return slices.Clone(log), nil
	case []any:
		out := make([]dto.TraceEvent, 0, len(log))
		for i, item := range log {
			ev, ok := item.(dto.TraceEvent)
			if !ok {
				return nil, fmt.Errorf("%w: events[%d] has type %T", dto.ErrValidation, i, item)
			}
			out = append(out, ev)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: events has type %T", dto.ErrValidation, v)
	}
}

// Emit appends one event of kind with payload to the log held by s. On error
// s is returned unchanged.
func Emit(s state.State, kind dto.EventKind, payload map[string]any) (state.State, error) {
	ev, err := dto.NewTraceEvent(kind, payload)
	if err != nil {
		return s, err
	}
	return Merge(s, ev)
}

// Merge appends events to the log held by s, preserving their order. Every
// event is validated before any is applied. An event whose ID is already in
// the log, or repeats an earlier event of the batch, is skipped, so replaying
// a batch leaves the log unchanged.
func Merge(s state.State, events ...dto.TraceEvent) (state.State, error) {
	for i, ev := range events {
		if err := ev.Validate(); err != nil {
			return s, fmt.Errorf("event %d: %w", i, err)
		}
	}

	current, err := Log(s)
	if err != nil {
		return s, err
	}

	seen := make(map[uuid.UUID]struct{}, len(current)+len(events))
	for _, ev := range current {
		seen[ev.ID] = struct{}{}
	}

	next := make([]dto.TraceEvent, 0, len(current)+len(events))
	next = append(next, current...)
	for _, ev := range events {
		if ev.ID != uuid.Nil {
			if _, dup := seen[ev.ID]; dup {
				continue
			}
			seen[ev.ID] = struct{}{}
		}
		next = append(next, ev)
	}
	return s.Set(state.KeyEvents, next), nil
}
