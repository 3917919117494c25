package workflow

import (
	"context"
	"fmt"

	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
	"github.com/cleverhoods/sagecompass-sub001/internal/guardrails"
	"github.com/cleverhoods/sagecompass-sub001/internal/state"
)

// GuardrailsNode returns the gating node. It evaluates the run's original
// input, records the verdict in the gating context, and emits a decision
// event. A no-go verdict is recorded, not returned as an error.
func GuardrailsNode(rt *Runtime) Node {
	rec := rt.recorder(OwnerGuardrails)

	return Owned(func(ctx context.Context, s state.State) (state.State, error) {
		text, _, err := input(s)
		if err != nil {
			return s, fmt.Errorf("guardrails: %w", err)
		}

		g, err := guardrails.Gating(s)
		if err != nil {
			return s, fmt.Errorf("guardrails: %w", err)
		}
		g.OriginalInput = text

		result, err := guardrails.Check(ctx, text, rt.Guardrails, rt.Policy)
		if err != nil {
			return s, fmt.Errorf("guardrails: %w", err)
		}
		rt.observe(result)

		g = guardrails.UpdateGating(g, result)
		next := s.Set(state.KeyGating, g)

		next, err = rec.Emit(
			ctx, next, dto.KindDecision, "",
			"guardrails "+string(g.Decision),
			guardrails.GatingSummary(g),
		)
		if err != nil {
			return s, fmt.Errorf("guardrails: %w", err)
		}

		rt.Logger.InfoContext(
			ctx, "guardrails node complete",
			"decision", g.Decision,
			"reasons", result.Reasons,
		)
		return next, nil
	}, OwnerGuardrails, state.OwnerNodes)
}

// Allowed reports whether the gating context in s permits the run to
// continue. A run whose input has not been gated yet is not allowed.
func Allowed(s state.State) bool {
	g, err := guardrails.Gating(s)
	if err != nil || g.Guardrail == nil {
		return false
	}
	return g.Decision == dto.DecisionGo
}
