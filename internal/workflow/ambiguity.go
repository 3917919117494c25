package workflow

import (
	"context"
	"fmt"

	"github.com/cleverhoods/sagecompass-sub001/internal/ambiguity"
	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
	"github.com/cleverhoods/sagecompass-sub001/internal/guardrails"
	"github.com/cleverhoods/sagecompass-sub001/internal/llm"
	"github.com/cleverhoods/sagecompass-sub001/internal/state"
)

// AmbiguityScanNode returns the node that asks the ambiguity_scan agent
// which aspects of the request are unclear before phase runs. Items that
// pass the runtime thresholds are stored as the ambiguity context for
// phase; any such item holds phase until it is clarified.
//
// Without a configured scan agent the context is reset and left unchecked,
// so phase is not held. A failed scan is recorded in the error log and
// likewise does not hold phase.
func AmbiguityScanNode(rt *Runtime, phase string) Node {
	rec := rt.recorder(OwnerAmbiguityScan)

	return Owned(func(ctx context.Context, s state.State) (state.State, error) {
		if !Allowed(s) {
			next, err := rec.Emit(ctx, s, dto.KindRouting, phase, "ambiguity scan skipped: gating is not go", nil)
			if err != nil {
				return s, fmt.Errorf("ambiguity scan: %w", err)
			}
			return next, nil
		}

		unchecked := ambiguity.ToState(s, ambiguity.Reset(phase))

		model, err := rt.model(OwnerAmbiguityScan)
		if err != nil {
			next, err := rec.Emit(ctx, unchecked, dto.KindRouting, phase, "ambiguity scan skipped: no model configured", nil)
			if err != nil {
				return s, fmt.Errorf("ambiguity scan: %w", err)
			}
			rt.Logger.DebugContext(ctx, "ambiguity scan skipped", "phase", phase)
			return next, nil
		}

		text, transcript, err := input(s)
		if err != nil {
			return s, fmt.Errorf("ambiguity scan: %w", err)
		}

		items, err := scan(ctx, model, text, transcript)
		if err != nil {
			next, err2 := appendErrors(unchecked, errorEntry(
				CodeAmbiguityScanFailed, OwnerAmbiguityScan, phase, "ambiguity scan did not complete", err,
			))
			if err2 != nil {
				return s, fmt.Errorf("ambiguity scan: %w", err2)
			}
			next, err2 = rec.Emit(ctx, next, dto.KindError, phase, "ambiguity scan failed", map[string]any{
				"codes": []string{CodeAmbiguityScanFailed},
			})
			if err2 != nil {
				return s, fmt.Errorf("ambiguity scan: %w", err2)
			}
			rt.Logger.WarnContext(ctx, "ambiguity scan failed", "phase", phase, "error", err)
			return next, nil
		}

		c := ambiguity.Reset(phase)
		c.Checked = true
		c.Detected = ambiguity.Select(items, rt.thresholds())
		c.Eligible = len(c.Detected) == 0

		next, err := rec.Emit(ctx, ambiguity.ToState(s, c), dto.KindProgress, phase, "ambiguity scan complete", map[string]any{
			"detected": len(items),
			"pending":  c.PendingKeys(),
		})
		if err != nil {
			return s, fmt.Errorf("ambiguity scan: %w", err)
		}

		rt.Logger.InfoContext(ctx, "ambiguity scan complete",
			"phase", phase,
			"detected", len(items),
			"pending", len(c.Detected),
		)
		return next, nil
	}, OwnerAmbiguityScan, state.OwnerNodes)
}

func scan(ctx context.Context, model llm.Model, text string, transcript []llm.Message) ([]ambiguity.Item, error) {
	resp, err := model.Complete(ctx, composeMessages(ambiguity.Instructions, transcript, text))
	if err != nil {
		return nil, err
	}
	if resp.Content == guardrails.RejectedMessage {
		return nil, ErrRejected
	}
	return ambiguity.ParseScan(resp.Content)
}

// ClarificationNode returns the node that applies user clarifications to
// the ambiguity context. Each response is appended to the conversation as a
// user message so later phases see it. With no clarifications the node
// returns its input unchanged.
func ClarificationNode(rt *Runtime, clarifications []ambiguity.Clarification) Node {
	rec := rt.recorder(OwnerClarification)

	return Owned(func(ctx context.Context, s state.State) (state.State, error) {
		if len(clarifications) == 0 {
			return s, nil
		}

		c, err := ambiguity.FromState(s)
		if err != nil {
			return s, fmt.Errorf("clarification: %w", err)
		}

		next := s
		for _, cl := range clarifications {
			if c, err = c.Resolve(cl); err != nil {
				return s, fmt.Errorf("clarification: %w", err)
			}
			if next, err = appendMessage(next, llm.Message{Role: llm.RoleUser, Content: cl.Response}); err != nil {
				return s, fmt.Errorf("clarification: %w", err)
			}
		}

		next, err = rec.Emit(ctx, ambiguity.ToState(next, c), dto.KindProgress, c.TargetStep, "clarifications applied", map[string]any{
			"clarified": c.ClarifiedKeys(),
			"pending":   c.PendingKeys(),
		})
		if err != nil {
			return s, fmt.Errorf("clarification: %w", err)
		}
		return next, nil
	}, OwnerClarification, state.OwnerNodes)
}

// Awaiting reports whether s holds a phase for clarification, returning
// the pending ambiguity context.
func Awaiting(s state.State) (ambiguity.Context, bool) {
	c, err := ambiguity.FromState(s)
	if err != nil {
		return ambiguity.Context{}, false
	}
	return c, c.Blocks(c.TargetStep)
}
