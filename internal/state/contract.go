package state

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
)

// Top-level run-state fields.
const (
	KeyGating    = "gating"
	KeyAmbiguity = "ambiguity"
	KeyMessages  = "messages"
	KeyPhases    = "phases"
	KeyErrors    = "errors"
	KeyEvents    = "events"
)

// Writers named by the ownership rules.
const (
	OwnerGuardrails    = "gating_guardrails"
	OwnerAmbiguityScan = "ambiguity_scan"
	OwnerClarification = "ambiguity_clarification"
	OwnerPhaseNodes    = "phase_nodes"
	OwnerNodes         = "nodes"
	OwnerMiddleware    = "middleware"
)

// OwnershipRule names the writers allowed to mutate a top-level field.
type OwnershipRule struct {
	Field     string
	Owners    []string
	Invariant string
}

var rules = []OwnershipRule{
	{
		Field:     KeyGating,
		Owners:    []string{OwnerGuardrails},
		Invariant: "gating contains guardrail metadata only",
	},
	{
		Field:     KeyAmbiguity,
		Owners:    []string{OwnerAmbiguityScan, OwnerClarification},
		Invariant: "ambiguity contains detection and clarification only",
	},
	{
		Field:     KeyMessages,
		Owners:    []string{OwnerNodes, OwnerMiddleware},
		Invariant: "messages are append only",
	},
	{
		Field:     KeyPhases,
		Owners:    []string{OwnerPhaseNodes},
		Invariant: "phase entries carry a valid status",
	},
	{
		Field:     KeyErrors,
		Owners:    []string{OwnerNodes},
		Invariant: "errors are append-only summaries",
	},
	{
		Field:     KeyEvents,
		Owners:    []string{OwnerNodes, OwnerMiddleware},
		Invariant: "events are append only",
	},
}

// Fields returns the known top-level field names.
func Fields() []string {
	fields := make([]string, len(rules))
	for i, r := range rules {
		fields[i] = r.Field
	}
	return fields
}

// Rules returns the ownership rules for every top-level field.
func Rules() []OwnershipRule {
	return slices.Clone(rules)
}

// ValidateUpdate rejects updates that introduce unknown top-level fields.
func ValidateUpdate(update map[string]any) error {
	known := Fields()

	var unknown []string
	for key := range update {
		if !slices.Contains(known, key) {
			unknown = append(unknown, key)
		}
	}

	if len(unknown) > 0 {
		slices.Sort(unknown)
		return fmt.Errorf("%w: unknown state fields: %s", dto.ErrValidation, strings.Join(unknown, ", "))
	}
	return nil
}

// CanWrite reports whether owner may mutate field.
func CanWrite(field, owner string) bool {
	for _, r := range rules {
		if r.Field == field {
			return slices.Contains(r.Owners, owner)
		}
	}
	return false
}

// ValidateWrite checks the top-level fields that differ between before and
// after against the ownership rules. Every added or changed field must be
// known and writable by at least one of writers. Fields present only in
// before are ignored; State has no delete.
func ValidateWrite(before, after State, writers ...string) error {
	changed := map[string]any{}
	for key, value := range after.data {
		prev, ok := before.data[key]
		if !ok || !reflect.DeepEqual(prev, value) {
			changed[key] = value
		}
	}

	if err := ValidateUpdate(changed); err != nil {
		return err
	}

	var denied []string
	for key := range changed {
		if !slices.ContainsFunc(writers, func(w string) bool { return CanWrite(key, w) }) {
			denied = append(denied, key)
		}
	}
	if len(denied) > 0 {
		slices.Sort(denied)
		return fmt.Errorf("%w: %s may not write %s",
			dto.ErrValidation, strings.Join(writers, ", "), strings.Join(denied, ", "))
	}
	return nil
}
