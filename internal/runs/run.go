// Package runs implements the run archive domain for SageCompass.
// A run is one request evaluated by the workflow: its gating verdict,
// the phase results it produced and the trace events emitted on the way.
// Runs are persisted in postgres and exported as JSON reports to blob
// storage.
package runs

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cleverhoods/sagecompass-sub001/internal/ambiguity"
	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
	"github.com/cleverhoods/sagecompass-sub001/internal/phases"
)

// Run is an archived workflow request with its latest checkpointed verdict.
type Run struct {
	ID        uuid.UUID          `json:"id"`
	ThreadID  string             `json:"thread_id"`
	Input     string             `json:"input"`
	Decision  *string            `json:"decision"`
	Gating    *dto.GatingContext `json:"gating,omitempty"`
	Ambiguity *ambiguity.Context `json:"ambiguity,omitempty"`
	Errors    []dto.ErrorEntry   `json:"errors"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// CreateCommand carries the data needed to register a run. An empty
// ThreadID places the run in a thread of its own.
type CreateCommand struct {
	ThreadID string `json:"thread_id"`
	Input    string `json:"input"`
}

// ExecuteCommand carries the clarifications answering the questions a
// previous execution left pending. An empty command runs the workflow
// from the input alone.
type ExecuteCommand struct {
	Clarifications []ambiguity.Clarification `json:"clarifications,omitempty"`
}

// Validate rejects malformed clarifications.
func (c ExecuteCommand) Validate() error {
	for _, cl := range c.Clarifications {
		if err := cl.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	}
	return nil
}

// ToolCall is the archived outcome of a tool invocation against a run.
type ToolCall struct {
	Tool    string         `json:"tool"`
	Allowed bool           `json:"allowed"`
	Output  string         `json:"output"`
	Error   string         `json:"error,omitempty"`
	Event   dto.TraceEvent `json:"event"`
}

func newToolCall(ev dto.TraceEvent) ToolCall {
	call := ToolCall{Event: ev}
	call.Tool, _ = ev.Payload["tool"].(string)
	call.Allowed, _ = ev.Payload["allowed"].(bool)
	call.Output, _ = ev.Payload["result"].(string)
	call.Error, _ = ev.Payload["error"].(string)
	return call
}

// Phase is a checkpointed phase result.
type Phase struct {
	dto.PhaseResult
	UpdatedAt time.Time `json:"updated_at"`
}

// Report is the full archived view of a run. PendingQuestions lists the
// clarifying questions holding the run, if any.
type Report struct {
	Run              Run              `json:"run"`
	PendingQuestions []string         `json:"pending_questions,omitempty"`
	Summary          []phases.Summary `json:"summary"`
	Phases           []Phase          `json:"phases"`
	Events           []dto.TraceEvent `json:"events"`
}

// ExportResult reports where a run report was written.
type ExportResult struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
}
