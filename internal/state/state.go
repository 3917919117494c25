// Package state provides the run-state value that agent nodes read and
// return. A State is immutable: Set and Merge return a new State and leave
// the receiver untouched, so a node that fails can hand back its input.
package state

import (
	"maps"
	"slices"
)

// State is a key/value bag keyed by top-level run-state field names.
type State struct {
	data map[string]any
}

// New creates a State holding a shallow copy of data. A nil map yields an
// empty state.
func New(data map[string]any) State {
	return State{data: maps.Clone(data)}
}

// Get returns the value stored under key.
func (s State) Get(key string) (any, bool) {
	v, ok := s.data[key]
	return v, ok
}

// Set returns a new State with key bound to value.
func (s State) Set(key string, value any) State {
	next := make(map[string]any, len(s.data)+1)
	maps.Copy(next, s.data)
	next[key] = value
	return State{data: next}
}

// Merge returns a new State with every entry of updates applied.
func (s State) Merge(updates map[string]any) State {
	next := make(map[string]any, len(s.data)+len(updates))
	maps.Copy(next, s.data)
	maps.Copy(next, updates)
	return State{data: next}
}

// Keys returns the bound keys in sorted order.
func (s State) Keys() []string {
	return slices.Sorted(maps.Keys(s.data))
}

// Len returns the number of bound keys.
func (s State) Len() int {
	return len(s.data)
}

// Map returns a shallow copy of the underlying data.
func (s State) Map() map[string]any {
	return maps.Clone(s.data)
}
