package prompts

import (
	"encoding/json"
	"slices"

	"github.com/cleverhoods/sagecompass-sub001/internal/phases"
)

// Phase is the reasoning phase a prompt override targets.
type Phase string

// Phases that accept prompt overrides.
const (
	PhaseProblemFraming    Phase = phases.ProblemFraming
	PhaseGoalsKPIs         Phase = phases.GoalsKPIs
	PhaseFeasibility       Phase = phases.Feasibility
	PhaseDecisionSynthesis Phase = phases.DecisionSynthesis
)

var known = []Phase{
	PhaseProblemFraming,
	PhaseGoalsKPIs,
	PhaseFeasibility,
	PhaseDecisionSynthesis,
}

// Phases returns the phases that accept prompt overrides, in execution order.
func Phases() []Phase {
	return slices.Clone(known)
}

// UnmarshalJSON validates that the decoded string is a known phase.
func (p *Phase) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := ParsePhase(raw)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ParsePhase validates s as a known phase.
// Returns ErrInvalidPhase if the value is not recognized.
func ParsePhase(s string) (Phase, error) {
	v := Phase(s)
	if !slices.Contains(known, v) {
		return "", ErrInvalidPhase
	}
	return v, nil
}
