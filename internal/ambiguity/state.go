package ambiguity

import (
	"encoding/json"
	"fmt"

	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
	"github.com/cleverhoods/sagecompass-sub001/internal/state"
)

// FromState returns the ambiguity context held by s. A missing field yields
// the zero Context. A plain map, as produced by decoding a checkpoint, is
// converted through its JSON form.
func FromState(s state.State) (Context, error) {
	raw, ok := s.Get(state.KeyAmbiguity)
	if !ok || raw == nil {
		return Context{}, nil
	}

	switch v := raw.(type) {
	case Context:
		return v.clone(), nil
	case *Context:
		if v == nil {
			return Context{}, nil
		}
		return v.clone(), nil
	case map[string]any:
		data, err := json.Marshal(v)
		if err != nil {
			return Context{}, fmt.Errorf("%w: %s: %w", dto.ErrValidation, state.KeyAmbiguity, err)
		}
		var c Context
		if err := json.Unmarshal(data, &c); err != nil {
			return Context{}, fmt.Errorf("%w: %s: %w", dto.ErrValidation, state.KeyAmbiguity, err)
		}
		return c, nil
	default:
		return Context{}, fmt.Errorf("%w: %s has type %T", dto.ErrValidation, state.KeyAmbiguity, raw)
	}
}

// ToState returns s with c stored under state.KeyAmbiguity.
func ToState(s state.State, c Context) state.State {
	return s.Set(state.KeyAmbiguity, c.clone())
}

// Instructions is the system prompt for the ambiguity scan agent.
const Instructions = `You review a business request before it is framed as an AI problem.
List the aspects of the request that are ambiguous enough to change how the
problem would be framed. Reply with JSON only, in the form:

{"ambiguities": [{
  "key": "short_identifier",
  "description": "what is unclear",
  "clarifying_question": "one concise question to the user",
  "resolution_assumption": "the default assumption if the user does not answer",
  "resolution_impact_direction": "++ | + | 0 | - | --",
  "resolution_impact_value": 0.0,
  "importance": 0.01,
  "confidence": 0.01
}]}

importance and confidence are decimals between 0.01 and 0.99.
resolution_impact_value is between 0 and 1. Reply {"ambiguities": []} when
the request is clear.`
