// Package phases adapts between the dict-shaped phase entries stored in run
// state and typed dto.PhaseResult values. Every operation returns new values
// and leaves its inputs untouched.
package phases

import (
	"fmt"
	"iter"
	"maps"
	"slices"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
)

// Phases is an insertion-ordered mapping of phase name to phase entry.
// A Phases value is never modified after it is returned; Merge produces a
// new one.
type Phases struct {
	entries *orderedmap.OrderedMap[string, map[string]any]
}

// New creates an empty mapping.
func New() *Phases {
	return &Phases{entries: orderedmap.New[string, map[string]any]()}
}

// FromResults builds a mapping from results in order. Later results with a
// repeated name replace earlier ones in place.
func FromResults(results ...dto.PhaseResult) (*Phases, error) {
	p := New()
	for _, r := range results {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		p.entries.Set(r.PhaseName, ToEntry(r))
	}
	return p, nil
}

// Len returns the number of phases.
func (p *Phases) Len() int {
	if p == nil {
		return 0
	}
	return p.entries.Len()
}

// Get returns a copy of the entry for name.
func (p *Phases) Get(name string) (map[string]any, bool) {
	if p == nil {
		return nil, false
	}
	entry, ok := p.entries.Get(name)
	if !ok {
		return nil, false
	}
	return cloneEntry(entry), true
}

// Result returns the typed result for name.
func (p *Phases) Result(name string) (dto.PhaseResult, bool, error) {
	entry, ok := p.Get(name)
	if !ok {
		return dto.PhaseResult{}, false, nil
	}
	r, err := ToResult(entry)
	if err != nil {
		return dto.PhaseResult{}, true, fmt.Errorf("phase %s: %w", name, err)
	}
	return r, true, nil
}

// Names returns the phase names in insertion order.
func (p *Phases) Names() []string {
	names := make([]string, 0, p.Len())
	for name := range p.All() {
		names = append(names, name)
	}
	return names
}

// All iterates copies of the entries in insertion order.
func (p *Phases) All() iter.Seq2[string, map[string]any] {
	return func(yield func(string, map[string]any) bool) {
		if p == nil {
			return
		}
		for pair := p.entries.Oldest(); pair != nil; pair = pair.Next() {
			if !yield(pair.Key, cloneEntry(pair.Value)) {
				return
			}
		}
	}
}

// Results converts every entry to a typed result, in insertion order.
func (p *Phases) Results() ([]dto.PhaseResult, error) {
	results := make([]dto.PhaseResult, 0, p.Len())
	for name, entry := range p.All() {
		r, err := ToResult(entry)
		if err != nil {
			return nil, fmt.Errorf("phase %s: %w", name, err)
		}
		results = append(results, r)
	}
	return results, nil
}

// clone shares entry maps with p. Entries are never modified in place and
// leave the package only through cloneEntry.
func (p *Phases) clone() *Phases {
	next := New()
	if p == nil {
		return next
	}
	for pair := p.entries.Oldest(); pair != nil; pair = pair.Next() {
		next.entries.Set(pair.Key, pair.Value)
	}
	return next
}

func cloneEntry(entry map[string]any) map[string]any {
	next := maps.Clone(entry)
	for _, field := range []string{FieldErrors, FieldEvidence} {
		if list, ok := next[field].([]any); ok {
			items := slices.Clone(list)
			for i, item := range items {
				if m, ok := item.(map[string]any); ok {
					items[i] = maps.Clone(m)
				}
			}
			next[field] = items
		}
	}
	if out, ok := next[FieldOutput].(map[string]any); ok {
		next[FieldOutput] = maps.Clone(out)
	}
	return next
}

// Merge returns a new mapping with incoming applied. An existing phase keeps
// its position; a new phase is appended. Merging the same result twice
// yields an equal mapping.
func Merge(existing *Phases, incoming dto.PhaseResult) (*Phases, error) {
	if err := incoming.Validate(); err != nil {
		return nil, err
	}
	next := existing.clone()
	next.entries.Set(incoming.PhaseName, ToEntry(incoming))
	return next, nil
}
