// Package workflow provides the agent nodes the orchestration runtime
// schedules for a SageCompass run: the guardrail gate, the ambiguity scan
// and clarification pair, one node per reasoning phase, and tool
// invocation. Each node reads run state and
// returns the next state.
package workflow

import "errors"

// Error codes recorded on failed phase results and in the run error log.
const (
	CodeModelUnavailable   = "model_unavailable"
	CodeModelRequestFailed = "model_request_failed"
	CodeGuardrailsRejected = "guardrails_rejected"
	CodeToolFailed         = "tool_failed"
	CodeToolDenied         = "tool_denied"

	CodeAmbiguityScanFailed = "ambiguity_scan_failed"
)

// ErrRejected is recorded as the cause when the guard refuses a phase's
// model call.
var ErrRejected = errors.New("input rejected by guardrails")
