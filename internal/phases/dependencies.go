package phases

import (
	"slices"

	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
	"github.com/cleverhoods/sagecompass-sub001/internal/state"
)

// Known reasoning phases in execution order.
const (
	ProblemFraming    = "problem_framing"
	GoalsKPIs         = "goals_kpis"
	Feasibility       = "feasibility"
	DecisionSynthesis = "decision_synthesis"
)

var order = []string{
	ProblemFraming,
	GoalsKPIs,
	Feasibility,
	DecisionSynthesis,
}

// dependents maps a phase to the phases that consume its output directly.
var dependents = map[string][]string{
	ProblemFraming: {GoalsKPIs, Feasibility, DecisionSynthesis},
	GoalsKPIs:      {Feasibility, DecisionSynthesis},
	Feasibility:    {DecisionSynthesis},
}

// Known returns the reasoning phases in execution order.
func Known() []string {
	return slices.Clone(order)
}

// IsKnown reports whether name is a reasoning phase.
func IsKnown(name string) bool {
	return slices.Contains(order, name)
}

// Downstream returns every phase that transitively depends on phase, in
// execution order.
func Downstream(phase string) []string {
	seen := map[string]bool{}
	queue := slices.Clone(dependents[phase])

	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if seen[next] {
			continue
		}
		seen[next] = true
		queue = append(queue, dependents[next]...)
	}

	out := make([]string, 0, len(seen))
	for _, name := range order {
		if seen[name] {
			out = append(out, name)
		}
	}
	return out
}

// Invalidate returns a new mapping in which every recorded phase downstream
// of changed is reset to pending, along with the names that were reset.
// Outputs are retained so a rerun can compare against them.
func Invalidate(p *Phases, changed string) (*Phases, []string, error) {
	next := p.clone()
	var reset []string

	for _, name := range Downstream(changed) {
		r, ok, err := p.Result(name)
		if err != nil {
			return nil, nil, err
		}
		if !ok || r.Status == dto.StatusPending {
			continue
		}
		r.Status = dto.StatusPending
		next.entries.Set(name, ToEntry(r))
		reset = append(reset, name)
	}

	return next, reset, nil
}

// InvalidateState applies Invalidate to the phases held by s.
func InvalidateState(s state.State, changed string) (state.State, []string, error) {
	current, err := FromState(s)
	if err != nil {
		return s, nil, err
	}
	next, reset, err := Invalidate(current, changed)
	if err != nil {
		return s, nil, err
	}
	if len(reset) == 0 {
		return s, nil, nil
	}
	return s.Set(state.KeyPhases, next), reset, nil
}
