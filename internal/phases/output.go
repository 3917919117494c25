package phases

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
	"github.com/cleverhoods/sagecompass-sub001/pkg/formatting"
)

// Error codes recorded on failed phase results.
const (
	CodeParseFailed  = "output_parse_failed"
	CodeSchemaFailed = "output_schema_invalid"
)

//go:embed schemas/*.json
var builtinSchemas embed.FS

// ParseOutput decodes raw model output (bare JSON or a fenced JSON block)
// into a completed result for phase. When decoding fails it returns a
// failed result carrying the raw text and an error entry, together with an
// error wrapping formatting.ErrParseFailed.
func ParseOutput(phase, raw string) (dto.PhaseResult, error) {
	out, err := formatting.Parse[map[string]any](raw)
	if err != nil {
		entry := dto.NewErrorEntry(CodeParseFailed, "model output was not valid JSON", dto.SeverityError)
		entry.Phase = phase
		return dto.PhaseResult{
			PhaseName: phase,
			Status:    dto.StatusFailed,
			Errors:    []dto.ErrorEntry{entry},
			RawOutput: raw,
		}, fmt.Errorf("phase %s: %w", phase, err)
	}

	return dto.PhaseResult{
		PhaseName: phase,
		Status:    dto.StatusCompleted,
		Output:    out,
		RawOutput: raw,
	}, nil
}

// Schema validates phase output against a compiled JSON schema.
type Schema struct {
	name   string
	schema *jsonschema.Schema
}

// CompileSchema compiles a JSON schema document. Failures wrap dto.ErrConfig.
func CompileSchema(name string, doc []byte) (*Schema, error) {
	var schemaDoc any
	if err := json.Unmarshal(doc, &schemaDoc); err != nil {
		return nil, fmt.Errorf("%w: schema %s: %w", dto.ErrConfig, name, err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("%w: schema %s: add resource: %w", dto.ErrConfig, name, err)
	}
	compiled, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("%w: schema %s: compile: %w", dto.ErrConfig, name, err)
	}

	return &Schema{name: name, schema: compiled}, nil
}

// BuiltinSchema returns the bundled output schema for phase, or nil when the
// phase has none.
func BuiltinSchema(phase string) (*Schema, error) {
	doc, err := builtinSchemas.ReadFile("schemas/" + phase + ".json")
	if err != nil {
		return nil, nil
	}
	return CompileSchema(phase, doc)
}

// Name returns the schema name.
func (s *Schema) Name() string {
	return s.name
}

// Validate checks output against the schema. Failures wrap dto.ErrValidation.
func (s *Schema) Validate(output map[string]any) error {
	data, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("%w: encode output: %w", dto.ErrValidation, err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: decode output: %w", dto.ErrValidation, err)
	}

	if err := s.schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: schema %s: %w", dto.ErrValidation, s.name, err)
	}
	return nil
}

// ValidateResult checks a completed result against the schema. On failure it
// returns a copy of the result marked failed with a schema error entry.
func (s *Schema) ValidateResult(r dto.PhaseResult) (dto.PhaseResult, error) {
	if r.Status != dto.StatusCompleted {
		return r, nil
	}
	if err := s.Validate(r.Output); err != nil {
		failed := r.Clone()
		failed.Status = dto.StatusFailed
		entry := dto.NewErrorEntry(CodeSchemaFailed, "model output did not match the expected structure", dto.SeverityError)
		entry.Phase = r.PhaseName
		failed.Errors = append(failed.Errors, entry)
		return failed, err
	}
	return r, nil
}
