package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/cleverhoods/sagecompass-sub001/internal/ambiguity"
	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
	"github.com/cleverhoods/sagecompass-sub001/internal/guardrails"
	"github.com/cleverhoods/sagecompass-sub001/internal/llm"
	"github.com/cleverhoods/sagecompass-sub001/internal/phases"
	"github.com/cleverhoods/sagecompass-sub001/internal/state"
)

// PhaseNode returns the node for one reasoning phase. The phase's agent
// model is resolved per call and wrapped in the guardrail guard. The node
// marks the phase running, calls the model with the composed prompt,
// parses and validates the output, and merges the completed or failed
// result. Phase failures are recorded in state; the returned error is
// reserved for malformed state.
//
// Rerunning a phase that had completed resets every downstream phase to
// pending.
func PhaseNode(rt *Runtime, phase string) Node {
	rec := rt.recorder(OwnerPhases)

	return Owned(func(ctx context.Context, s state.State) (state.State, error) {
		if !Allowed(s) {
			next, err := rec.Emit(ctx, s, dto.KindRouting, phase, "phase skipped: gating is not go", nil)
			if err != nil {
				return s, fmt.Errorf("phase %s: %w", phase, err)
			}
			return next, nil
		}

		amb, err := ambiguity.FromState(s)
		if err != nil {
			return s, fmt.Errorf("phase %s: %w", phase, err)
		}
		if amb.Blocks(phase) {
			next, err := rec.Emit(ctx, s, dto.KindRouting, phase, "phase skipped: awaiting clarification", map[string]any{
				"pending": amb.PendingKeys(),
			})
			if err != nil {
				return s, fmt.Errorf("phase %s: %w", phase, err)
			}
			return next, nil
		}

		current, err := phases.FromState(s)
		if err != nil {
			return s, fmt.Errorf("phase %s: %w", phase, err)
		}
		previous, rerun, err := current.Result(phase)
		if err != nil {
			return s, fmt.Errorf("phase %s: %w", phase, err)
		}
		rerun = rerun && previous.Status == dto.StatusCompleted

		running := dto.PhaseResult{PhaseName: phase, Status: dto.StatusRunning, Output: previous.Output}
		next, err := phases.Update(s, running)
		if err != nil {
			return s, fmt.Errorf("phase %s: %w", phase, err)
		}
		next, err = rec.Emit(ctx, next, dto.KindPhaseStarted, phase, "", map[string]any{"rerun": rerun})
		if err != nil {
			return s, fmt.Errorf("phase %s: %w", phase, err)
		}

		result, content := runPhase(ctx, rt, next, phase, current)

		next, err = phases.Update(next, result)
		if err != nil {
			return s, fmt.Errorf("phase %s: %w", phase, err)
		}

		if content != "" {
			next, err = appendMessage(next, llm.Message{Role: llm.RoleAssistant, Content: content})
			if err != nil {
				return s, fmt.Errorf("phase %s: %w", phase, err)
			}
		}

		if result.Status == dto.StatusFailed {
			next, err = appendErrors(next, result.Errors...)
			if err != nil {
				return s, fmt.Errorf("phase %s: %w", phase, err)
			}
			next, err = rec.Emit(ctx, next, dto.KindError, phase, "phase failed", map[string]any{
				"codes": errorCodes(result.Errors),
			})
			if err != nil {
				return s, fmt.Errorf("phase %s: %w", phase, err)
			}
			rt.Logger.WarnContext(ctx, "phase failed", "phase", phase, "codes", errorCodes(result.Errors))
			return next, nil
		}

		next, err = rec.Emit(ctx, next, dto.KindPhaseCompleted, phase, "", map[string]any{
			"status":     string(result.Status),
			"has_output": len(result.Output) > 0,
		})
		if err != nil {
			return s, fmt.Errorf("phase %s: %w", phase, err)
		}

		if rerun {
			var reset []string
			next, reset, err = phases.InvalidateState(next, phase)
			if err != nil {
				return s, fmt.Errorf("phase %s: %w", phase, err)
			}
			if len(reset) > 0 {
				next, err = rec.Emit(ctx, next, dto.KindRouting, phase, "downstream phases invalidated", map[string]any{
					"reset": reset,
				})
				if err != nil {
					return s, fmt.Errorf("phase %s: %w", phase, err)
				}
			}
		}

		rt.Logger.InfoContext(ctx, "phase node complete", "phase", phase, "rerun", rerun)
		return next, nil
	}, OwnerPhases, state.OwnerNodes)
}

// runPhase performs the model call and returns the terminal result along
// with the raw model reply, if any.
func runPhase(ctx context.Context, rt *Runtime, s state.State, phase string, prior *phases.Phases) (dto.PhaseResult, string) {
	fail := func(code, message string, err error, raw string) dto.PhaseResult {
		return dto.PhaseResult{
			PhaseName: phase,
			Status:    dto.StatusFailed,
			Errors:    []dto.ErrorEntry{errorEntry(code, OwnerPhases, phase, message, err)},
			RawOutput: raw,
		}
	}

	model, err := rt.model(phase)
	if err != nil {
		return fail(CodeModelUnavailable, "no model is configured for this phase", err, ""), ""
	}

	system, err := ComposePrompt(ctx, rt.Prompts, phase, prior)
	if err != nil {
		return fail(CodeModelRequestFailed, "prompt could not be composed", err, ""), ""
	}

	text, transcript, err := input(s)
	if err != nil {
		return fail(CodeModelRequestFailed, "conversation could not be read", err, ""), ""
	}

	resp, err := model.Complete(ctx, composeMessages(system, transcript, text))
	if err != nil {
		return fail(CodeModelRequestFailed, "model request failed", err, ""), ""
	}
	if resp.Content == guardrails.RejectedMessage {
		return fail(CodeGuardrailsRejected, guardrails.RejectedMessage, ErrRejected, ""), resp.Content
	}

	result, err := phases.ParseOutput(phase, resp.Content)
	if err != nil {
		for i := range result.Errors {
			result.Errors[i].Owner = OwnerPhases
		}
		return result, resp.Content
	}

	schema, err := rt.schema(phase)
	if err != nil {
		return fail(CodeModelRequestFailed, "output schema is invalid", err, resp.Content), resp.Content
	}
	if schema != nil {
		validated, err := schema.ValidateResult(result)
		if err != nil && !errors.Is(err, dto.ErrValidation) {
			return fail(CodeModelRequestFailed, "output could not be validated", err, resp.Content), resp.Content
		}
		result = validated
		for i := range result.Errors {
			result.Errors[i].Owner = OwnerPhases
		}
	}

	return result, resp.Content
}

func errorCodes(entries []dto.ErrorEntry) []string {
	codes := make([]string, len(entries))
	for i, e := range entries {
		codes[i] = e.Code
	}
	return codes
}
