package dto

import (
	"fmt"
	"maps"
	"slices"
)

// PhaseStatus is the lifecycle position of a reasoning phase.
type PhaseStatus string

const (
	StatusPending   PhaseStatus = "pending"
	StatusRunning   PhaseStatus = "running"
	StatusCompleted PhaseStatus = "completed"
	StatusFailed    PhaseStatus = "failed"
)

var statuses = []PhaseStatus{
	StatusPending,
	StatusRunning,
	StatusCompleted,
	StatusFailed,
}

// PhaseStatuses returns the valid phase statuses.
func PhaseStatuses() []PhaseStatus {
	return slices.Clone(statuses)
}

// ParsePhaseStatus validates a string as a known phase status.
func ParsePhaseStatus(s string) (PhaseStatus, error) {
	v := PhaseStatus(s)
	if !slices.Contains(statuses, v) {
		return "", fmt.Errorf("%w: unknown phase status %q", ErrValidation, s)
	}
	return v, nil
}

// Terminal reports whether the status ends a phase execution.
func (s PhaseStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// PhaseResult is the structured outcome of a single reasoning phase.
type PhaseResult struct {
	PhaseName string         `json:"phase_name"`
	Status    PhaseStatus    `json:"status"`
	Output    map[string]any `json:"output,omitempty"`
	Errors    []ErrorEntry   `json:"errors,omitempty"`
	RawOutput string         `json:"raw_output,omitempty"`

	// Evidence references the material a phase drew on. Items are opaque
	// to this layer.
	Evidence []map[string]any `json:"evidence,omitempty"`
}

// Validate checks the phase name and status.
func (r PhaseResult) Validate() error {
	if r.PhaseName == "" {
		return fmt.Errorf("%w: phase_name required", ErrValidation)
	}
	if _, err := ParsePhaseStatus(string(r.Status)); err != nil {
		return err
	}
	for i, e := range r.Errors {
		if _, err := ParseSeverity(string(e.Severity)); err != nil {
			return fmt.Errorf("errors[%d]: %w", i, err)
		}
	}
	return nil
}

// Clone returns a copy whose output map, error list and evidence items are
// not shared with r.
func (r PhaseResult) Clone() PhaseResult {
	r.Output = maps.Clone(r.Output)
	r.Errors = slices.Clone(r.Errors)
	if r.Evidence != nil {
		evidence := make([]map[string]any, len(r.Evidence))
		for i, item := range r.Evidence {
			evidence[i] = maps.Clone(item)
		}
		r.Evidence = evidence
	}
	return r
}
