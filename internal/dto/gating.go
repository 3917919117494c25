package dto

import (
	"fmt"
	"slices"
)

// Decision is the gating outcome for a run.
type Decision string

const (
	DecisionGo   Decision = "go"
	DecisionNoGo Decision = "no-go"
)

// DecisionFor derives the gating decision from a guardrail result.
func DecisionFor(r GuardrailResult) Decision {
	if r.Allowed() {
		return DecisionGo
	}
	return DecisionNoGo
}

// GatingContext records the preflight checks applied to a run's input.
type GatingContext struct {
	OriginalInput string           `json:"original_input"`
	Guardrail     *GuardrailResult `json:"guardrail,omitempty"`
	Decision      Decision         `json:"decision,omitempty"`
	Rationale     []string         `json:"rationale,omitempty"`
}

// Clone returns a deep copy of g.
func (g GatingContext) Clone() GatingContext {
	out := g
	if g.Guardrail != nil {
		r := *g.Guardrail
		r.Reasons = slices.Clone(g.Guardrail.Reasons)
		r.MatchedKeywords = slices.Clone(g.Guardrail.MatchedKeywords)
		r.MatchedTopics = slices.Clone(g.Guardrail.MatchedTopics)
		out.Guardrail = &r
	}
	out.Rationale = slices.Clone(g.Rationale)
	return out
}

// GatingContextFromMap decodes the mapping form of a gating context.
func GatingContextFromMap(m map[string]any) (GatingContext, error) {
	var g GatingContext

	input, err := optionalString(m, "original_input")
	if err != nil {
		return g, err
	}
	g.OriginalInput = input

	decision, err := optionalString(m, "decision")
	if err != nil {
		return g, err
	}
	switch Decision(decision) {
	case "", DecisionGo, DecisionNoGo:
		g.Decision = Decision(decision)
	default:
		return g, fmt.Errorf("%w: unknown gating decision %q", ErrValidation, decision)
	}

	if g.Rationale, err = stringList(m["rationale"], "rationale"); err != nil {
		return g, err
	}

	switch raw := m["guardrail"].(type) {
	case nil:
	case GuardrailResult:
		g.Guardrail = &raw
	case *GuardrailResult:
		g.Guardrail = raw
	case map[string]any:
		r, err := guardrailFromMap(raw)
		if err != nil {
			return g, err
		}
		g.Guardrail = &r
	default:
		return g, fmt.Errorf("%w: guardrail must be a mapping, got %T", ErrValidation, raw)
	}

	return g, nil
}

func guardrailFromMap(m map[string]any) (GuardrailResult, error) {
	var r GuardrailResult
	var ok bool

	if r.IsSafe, ok = m["is_safe"].(bool); !ok {
		return r, fmt.Errorf("%w: guardrail.is_safe must be a bool", ErrValidation)
	}
	if r.IsInScope, ok = m["is_in_scope"].(bool); !ok {
		return r, fmt.Errorf("%w: guardrail.is_in_scope must be a bool", ErrValidation)
	}

	var err error
	if r.Reasons, err = stringList(m["reasons"], "guardrail.reasons"); err != nil {
		return r, err
	}
	if r.MatchedKeywords, err = stringList(m["matched_keywords"], "guardrail.matched_keywords"); err != nil {
		return r, err
	}
	if r.MatchedTopics, err = stringList(m["matched_topics"], "guardrail.matched_topics"); err != nil {
		return r, err
	}
	return r, nil
}

func stringList(v any, field string) ([]string, error) {
	switch list := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return slices.Clone(list), nil
	case []any:
		out := make([]string, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s[%d] must be a string, got %T", ErrValidation, field, i, item)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s must be a list, got %T", ErrValidation, field, v)
	}
}
