package phases

import (
	"fmt"
	"maps"

	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
)

// Entry keys.
const (
	FieldPhaseName = "phase_name"
	FieldStatus    = "status"
	FieldOutput    = "output"
	FieldErrors    = "errors"
	FieldRawOutput = "raw_output"
	FieldEvidence  = "evidence"
)

// ToResult converts a phase entry into a typed result. It fails with
// dto.ErrValidation when phase_name is missing or empty, when status is not
// a known value, or when output, errors or evidence have the wrong shape.
func ToResult(entry map[string]any) (dto.PhaseResult, error) {
	name, ok := entry[FieldPhaseName].(string)
	if !ok || name == "" {
		return dto.PhaseResult{}, fmt.Errorf("%w: phase_name required", dto.ErrValidation)
	}

	rawStatus, ok := entry[FieldStatus].(string)
	if !ok {
		return dto.PhaseResult{}, fmt.Errorf("%w: phase %s: status must be a string", dto.ErrValidation, name)
	}
	status, err := dto.ParsePhaseStatus(rawStatus)
	if err != nil {
		return dto.PhaseResult{}, fmt.Errorf("phase %s: %w", name, err)
	}

	result := dto.PhaseResult{
		PhaseName: name,
		Status:    status,
	}

	switch out := entry[FieldOutput].(type) {
	case nil:
	case map[string]any:
		result.Output = maps.Clone(out)
	default:
		return dto.PhaseResult{}, fmt.Errorf("%w: phase %s: output has type %T", dto.ErrValidation, name, out)
	}

	errs, err := toErrorEntries(entry[FieldErrors])
	if err != nil {
		return dto.PhaseResult{}, fmt.Errorf("phase %s: %w", name, err)
	}
	result.Errors = errs

	switch raw := entry[FieldRawOutput].(type) {
	case nil:
	case string:
		result.RawOutput = raw
	default:
		return dto.PhaseResult{}, fmt.Errorf("%w: phase %s: raw_output has type %T", dto.ErrValidation, name, raw)
	}

	evidence, err := toEvidence(entry[FieldEvidence])
	if err != nil {
		return dto.PhaseResult{}, fmt.Errorf("phase %s: %w", name, err)
	}
	result.Evidence = evidence

	return result, nil
}

// ToEntry converts a result into its dict-shaped entry. ToResult(ToEntry(r))
// equals r for any valid r, treating nil and empty collections alike.
func ToEntry(r dto.PhaseResult) map[string]any {
	output := maps.Clone(r.Output)
	if output == nil {
		output = map[string]any{}
	}

	errs := make([]any, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e.Map()
	}

	entry := map[string]any{
		FieldPhaseName: r.PhaseName,
		FieldStatus:    string(r.Status),
		FieldOutput:    output,
		FieldErrors:    errs,
	}
	if r.RawOutput != "" {
		entry[FieldRawOutput] = r.RawOutput
	}
	if len(r.Evidence) > 0 {
		evidence := make([]any, len(r.Evidence))
		for i, item := range r.Evidence {
			evidence[i] = maps.Clone(item)
		}
		entry[FieldEvidence] = evidence
	}
	return entry
}

func toEvidence(v any) ([]map[string]any, error) {
	switch list := v.(type) {
	case nil:
		return nil, nil
	case []map[string]any:
		out := make([]map[string]any, len(list))
		for i, item := range list {
			out[i] = maps.Clone(item)
		}
		return out, nil
	case []any:
		out := make([]map[string]any, 0, len(list))
		for i, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: evidence[%d] has type %T", dto.ErrValidation, i, item)
			}
			out = append(out, maps.Clone(m))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: evidence has type %T", dto.ErrValidation, v)
	}
}

func toErrorEntries(v any) ([]dto.ErrorEntry, error) {
	switch list := v.(type) {
	case nil:
		return nil, nil
	case []dto.ErrorEntry:
		return append([]dto.ErrorEntry(nil), list...), nil
	case []map[string]any:
		entries := make([]dto.ErrorEntry, 0, len(list))
		for i, m := range list {
			e, err := dto.ErrorEntryFromMap(m)
			if err != nil {
				return nil, fmt.Errorf("errors[%d]: %w", i, err)
			}
			entries = append(entries, e)
		}
		return entries, nil
	case []any:
		entries := make([]dto.ErrorEntry, 0, len(list))
		for i, item := range list {
			switch e := item.(type) {
			case dto.ErrorEntry:
				entries = append(entries, e)
			case map[string]any:
				parsed, err := dto.ErrorEntryFromMap(e)
				if err != nil {
					return nil, fmt.Errorf("errors[%d]: %w", i, err)
				}
				entries = append(entries, parsed)
			default:
				return nil, fmt.Errorf("%w: errors[%d] has type %T", dto.ErrValidation, i, item)
			}
		}
		return entries, nil
	default:
		return nil, fmt.Errorf("%w: errors has type %T", dto.ErrValidation, v)
	}
}
