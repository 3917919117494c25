package workflow

import (
	"context"
	"fmt"

	"github.com/cleverhoods/sagecompass-sub001/internal/ambiguity"
	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
	"github.com/cleverhoods/sagecompass-sub001/internal/phases"
	"github.com/cleverhoods/sagecompass-sub001/internal/state"
)

// Step is a named node in execution order.
type Step struct {
	Name string
	Node Node
}

// Steps returns the guardrail gate, the ambiguity scan of the first phase,
// the clarification step applying clarifications, and one node per
// reasoning phase, in the order the orchestration runtime registers them.
func Steps(rt *Runtime, clarifications ...ambiguity.Clarification) []Step {
	steps := []Step{
		{Name: OwnerGuardrails, Node: GuardrailsNode(rt)},
		{Name: OwnerAmbiguityScan, Node: AmbiguityScanNode(rt, phases.ProblemFraming)},
		{Name: OwnerClarification, Node: ClarificationNode(rt, clarifications)},
	}
	for _, phase := range phases.Known() {
		steps = append(steps, Step{Name: phase, Node: PhaseNode(rt, phase)})
	}
	return steps
}

// Execute runs Steps in order against s for a single request. It stops
// after the gate when the decision is no-go, after clarification while
// ambiguities remain pending, and after the first failed phase. The
// returned state reflects every step that ran.
func Execute(ctx context.Context, rt *Runtime, s state.State, clarifications ...ambiguity.Clarification) (state.State, error) {
	for _, step := range Steps(rt, clarifications...) {
		if err := ctx.Err(); err != nil {
			return s, err
		}

		next, err := step.Node(ctx, s)
		if err != nil {
			return s, fmt.Errorf("execute %s: %w", step.Name, err)
		}
		s = next

		if step.Name == OwnerGuardrails && !Allowed(s) {
			rt.Logger.InfoContext(ctx, "run stopped at gate")
			return s, nil
		}
		if step.Name == OwnerClarification {
			if c, ok := Awaiting(s); ok {
				rt.Logger.InfoContext(ctx, "run awaiting clarification",
					"phase", c.TargetStep,
					"pending", c.PendingKeys(),
				)
				return s, nil
			}
		}
		if failed(s, step.Name) {
			rt.Logger.InfoContext(ctx, "run stopped at failed phase", "phase", step.Name)
			return s, nil
		}
	}
	return s, nil
}

func failed(s state.State, phase string) bool {
	p, err := phases.FromState(s)
	if err != nil {
		return false
	}
	r, ok, err := p.Result(phase)
	return err == nil && ok && r.Status == dto.StatusFailed
}
