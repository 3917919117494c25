package phases

import (
	"fmt"
	"iter"
	"maps"
	"slices"

	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
	"github.com/cleverhoods/sagecompass-sub001/internal/state"
)

// Summary is a compact view of one phase.
type Summary struct {
	PhaseName string          `json:"phase_name"`
	Status    dto.PhaseStatus `json:"status"`
	HasOutput bool            `json:"has_output"`
	HasErrors bool            `json:"has_errors"`
}

// FromState reads the phases mapping from run state. A missing key yields an
// empty mapping. Plain maps written by other producers are accepted and
// ordered by name.
func FromState(s state.State) (*Phases, error) {
	v, ok := s.Get(state.KeyPhases)
	if !ok || v == nil {
		return New(), nil
	}

	switch p := v.(type) {
	case *Phases:
		return p, nil
	case map[string]any:
		out := New()
		for _, name := range slices.Sorted(maps.Keys(p)) {
			entry, ok := p[name].(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: phases[%s] has type %T", dto.ErrValidation, name, p[name])
			}
			out.entries.Set(name, cloneEntry(entry))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: phases has type %T", dto.ErrValidation, v)
	}
}

// Update merges result into the phases held by s and returns the new state.
// On error s is returned unchanged alongside the error.
func Update(s state.State, result dto.PhaseResult) (state.State, error) {
	current, err := FromState(s)
	if err != nil {
		return s, err
	}
	merged, err := Merge(current, result)
	if err != nil {
		return s, err
	}
	return s.Set(state.KeyPhases, merged), nil
}

// Summarize lazily yields one Summary per phase in insertion order. The
// sequence may be ranged over repeatedly; each pass reflects the same
// snapshot. Malformed phases yield nothing.
func Summarize(s state.State) iter.Seq[Summary] {
	p, err := FromState(s)
	if err != nil {
		return func(func(Summary) bool) {}
	}
	return p.Summary()
}

// Summary lazily yields one Summary per phase in insertion order.
func (p *Phases) Summary() iter.Seq[Summary] {
	return func(yield func(Summary) bool) {
		for name, entry := range p.All() {
			if !yield(summarize(name, entry)) {
				return
			}
		}
	}
}

func summarize(name string, entry map[string]any) Summary {
	status, _ := entry[FieldStatus].(string)

	sum := Summary{
		PhaseName: name,
		Status:    dto.PhaseStatus(status),
	}

	switch out := entry[FieldOutput].(type) {
	case map[string]any:
		sum.HasOutput = len(out) > 0
	}

	switch errs := entry[FieldErrors].(type) {
	case []any:
		sum.HasErrors = len(errs) > 0
	case []map[string]any:
		sum.HasErrors = len(errs) > 0
	case []dto.ErrorEntry:
		sum.HasErrors = len(errs) > 0
	}

	return sum
}
