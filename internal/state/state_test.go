package state_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
	"github.com/cleverhoods/sagecompass-sub001/internal/state"
)

func TestNewCopiesInput(t *testing.T) {
	data := map[string]any{"messages": []string{"hi"}}
	s := state.New(data)

	data["gating"] = "changed"

	if _, ok := s.Get("gating"); ok {
		t.Error("state observed caller mutation")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestSetIsImmutable(t *testing.T) {
	base := state.New(nil)
	next := base.Set(state.KeyPhases, "x")

	if _, ok := base.Get(state.KeyPhases); ok {
		t.Error("Set mutated the receiver")
	}

	v, ok := next.Get(state.KeyPhases)
	if !ok || v != "x" {
		t.Errorf("Get(phases) = %v, %v; want x, true", v, ok)
	}
}

func TestMerge(t *testing.T) {
	base := state.New(map[string]any{"a": 1, "b": 2})
	next := base.Merge(map[string]any{"b": 3, "c": 4})

	if v, _ := base.Get("b"); v != 2 {
		t.Errorf("base b = %v, want 2", v)
	}

	want := []string{"a", "b", "c"}
	if got := next.Keys(); !slices.Equal(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
	if v, _ := next.Get("b"); v != 3 {
		t.Errorf("merged b = %v, want 3", v)
	}
}

func TestMapReturnsCopy(t *testing.T) {
	s := state.New(map[string]any{"a": 1})
	m := s.Map()
	m["a"] = 2

	if v, _ := s.Get("a"); v != 1 {
		t.Errorf("Map() shares storage: a = %v", v)
	}
}

func TestValidateUpdate(t *testing.T) {
	tests := []struct {
		name    string
		update  map[string]any
		wantErr bool
	}{
		{"empty", map[string]any{}, false},
		{"known fields", map[string]any{"phases": nil, "events": nil, "gating": nil}, false},
		{"unknown field", map[string]any{"phases": nil, "scratch": 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := state.ValidateUpdate(tt.update)
			if tt.wantErr && !errors.Is(err, dto.ErrValidation) {
				t.Errorf("ValidateUpdate() = %v, want ErrValidation", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateUpdate() unexpected error: %v", err)
			}
		})
	}
}

func TestCanWrite(t *testing.T) {
	tests := []struct {
		field, owner string
		want         bool
	}{
		{state.KeyGating, "gating_guardrails", true},
		{state.KeyGating, "phase_nodes", false},
		{state.KeyPhases, state.OwnerPhaseNodes, true},
		{state.KeyPhases, state.OwnerGuardrails, false},
		{state.KeyAmbiguity, state.OwnerAmbiguityScan, true},
		{state.KeyAmbiguity, state.OwnerNodes, false},
		{state.KeyErrors, "nodes", true},
		{"unknown", "nodes", false},
	}

	for _, tt := range tests {
		if got := state.CanWrite(tt.field, tt.owner); got != tt.want {
			t.Errorf("CanWrite(%q, %q) = %v, want %v", tt.field, tt.owner, got, tt.want)
		}
	}
}

func TestValidateWrite(t *testing.T) {
	before := state.New(map[string]any{
		state.KeyPhases: map[string]any{"problem_framing": map[string]any{"status": "completed"}},
		"scratch":       1,
	})

	tests := []struct {
		name    string
		after   state.State
		writers []string
		wantErr bool
	}{
		{
			name:    "unchanged",
			after:   before.Set(state.KeyPhases, map[string]any{"problem_framing": map[string]any{"status": "completed"}}),
			writers: []string{state.OwnerGuardrails},
		},
		{
			name:    "owned field",
			after:   before.Set(state.KeyGating, "go"),
			writers: []string{state.OwnerGuardrails},
		},
		{
			name:    "any writer suffices",
			after:   before.Merge(map[string]any{state.KeyGating: "go", state.KeyEvents: []any{}}),
			writers: []string{state.OwnerGuardrails, state.OwnerNodes},
		},
		{
			name:    "changed field not owned",
			after:   before.Set(state.KeyPhases, map[string]any{}),
			writers: []string{state.OwnerGuardrails, state.OwnerNodes},
			wantErr: true,
		},
		{
			name:    "added field not owned",
			after:   before.Set(state.KeyAmbiguity, map[string]any{}),
			writers: []string{state.OwnerPhaseNodes},
			wantErr: true,
		},
		{
			name:    "unknown field",
			after:   before.Set("extra", true),
			writers: []string{state.OwnerNodes},
			wantErr: true,
		},
		{
			name:    "no writers",
			after:   before.Set(state.KeyErrors, []any{}),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := state.ValidateWrite(before, tt.after, tt.writers...)
			if tt.wantErr && !errors.Is(err, dto.ErrValidation) {
				t.Errorf("ValidateWrite() = %v, want ErrValidation", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateWrite() unexpected error: %v", err)
			}
		})
	}
}

func TestFieldsMatchRules(t *testing.T) {
	fields := state.Fields()
	rules := state.Rules()

	if len(fields) != len(rules) {
		t.Fatalf("len(Fields()) = %d, len(Rules()) = %d", len(fields), len(rules))
	}
	for i, r := range rules {
		if r.Field != fields[i] {
			t.Errorf("Fields()[%d] = %q, want %q", i, fields[i], r.Field)
		}
		if len(r.Owners) == 0 {
			t.Errorf("rule %q has no owners", r.Field)
		}
	}
}
