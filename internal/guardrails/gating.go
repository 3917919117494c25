package guardrails

import (
	"fmt"
	"slices"

	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
	"github.com/cleverhoods/sagecompass-sub001/internal/llm"
	"github.com/cleverhoods/sagecompass-sub001/internal/state"
)

// Gating reads the gating context from s. A missing key yields the zero
// context.
func Gating(s state.State) (dto.GatingContext, error) {
	raw, ok := s.Get(state.KeyGating)
	if !ok || raw == nil {
		return dto.GatingContext{}, nil
	}

	switch g := raw.(type) {
	case dto.GatingContext:
		return g.Clone(), nil
	case *dto.GatingContext:
		return g.Clone(), nil
	case map[string]any:
		return dto.GatingContextFromMap(g)
	default:
		return dto.GatingContext{}, fmt.Errorf("%w: %s has type %T", dto.ErrValidation, state.KeyGating, raw)
	}
}

// ToGating builds a fresh gating context from a guardrail result.
func ToGating(result dto.GuardrailResult, originalInput string) dto.GatingContext {
	r := result
	return dto.GatingContext{
		OriginalInput: originalInput,
		Guardrail:     &r,
		Decision:      dto.DecisionFor(result),
		Rationale:     slices.Clone(result.Reasons),
	}
}

// UpdateGating attaches result to g. The original input is kept, the
// guardrail reasons are appended to the rationale, and a failing result
// forces a no-go decision.
func UpdateGating(g dto.GatingContext, result dto.GuardrailResult) dto.GatingContext {
	out := g.Clone()
	r := result
	out.Guardrail = &r
	out.Rationale = append(out.Rationale, result.Reasons...)

	if out.Decision == "" {
		out.Decision = dto.DecisionGo
	}
	if !result.Allowed() {
		out.Decision = dto.DecisionNoGo
	}
	return out
}

// GatingSummary returns a flat view of the guardrail outcome for logs and
// API responses.
func GatingSummary(g dto.GatingContext) map[string]any {
	if g.Guardrail == nil {
		return map[string]any{"checked": false}
	}
	return map[string]any{
		"checked":     true,
		"is_safe":     g.Guardrail.IsSafe,
		"is_in_scope": g.Guardrail.IsInScope,
		"reasons":     slices.Clone(g.Guardrail.Reasons),
		"decision":    string(g.Decision),
	}
}

// Gate evaluates the run's original input against cfg and stores the
// updated gating context in s. When the gating context carries no input yet,
// the latest user message is used and recorded as the original input.
func Gate(s state.State, cfg Config) (state.State, dto.GuardrailResult, error) {
	g, err := Gating(s)
	if err != nil {
		return s, dto.GuardrailResult{}, err
	}

	if g.OriginalInput == "" {
		msgs, err := Messages(s)
		if err != nil {
			return s, dto.GuardrailResult{}, err
		}
		g.OriginalInput, _ = llm.LastUserMessage(msgs)
	}

	result := Evaluate(g.OriginalInput, cfg)
	return s.Set(state.KeyGating, UpdateGating(g, result)), result, nil
}

// Messages reads the chat transcript from s.
func Messages(s state.State) ([]llm.Message, error) {
	raw, ok := s.Get(state.KeyMessages)
	if !ok || raw == nil {
		return nil, nil
	}

	switch msgs := raw.(type) {
	case []llm.Message:
		return slices.Clone(msgs), nil
	case []any:
		out := make([]llm.Message, 0, len(msgs))
		for i, item := range msgs {
			switch m := item.(type) {
			case llm.Message:
				out = append(out, m)
			case map[string]any:
				role, _ := m["role"].(string)
				content, _ := m["content"].(string)
				out = append(out, llm.Message{Role: llm.Role(role), Content: content})
			default:
				return nil, fmt.Errorf("%w: %s[%d] has type %T", dto.ErrValidation, state.KeyMessages, i, item)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s has type %T", dto.ErrValidation, state.KeyMessages, raw)
	}
}
