package config

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
	"github.com/cleverhoods/sagecompass-sub001/internal/guardrails"
	"github.com/cleverhoods/sagecompass-sub001/internal/llm"
	"github.com/cleverhoods/sagecompass-sub001/internal/phases"
)

// Decode reads a declarative file into v. The format is chosen by
// extension: .yaml and .yml decode as YAML; .json and .jsonc decode as JSON
// with comments and trailing commas permitted.
func Decode(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", dto.ErrConfig, path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, v)
	case ".json", ".jsonc":
		err = json.Unmarshal(jsonc.ToJSON(data), v)
	default:
		return fmt.Errorf("%w: %s: unsupported extension %q", dto.ErrConfig, path, ext)
	}
	if err != nil {
		return fmt.Errorf("%w: parse %s: %w", dto.ErrConfig, path, err)
	}
	return nil
}

// LoadCatalog decodes and validates a provider and agent catalog.
func LoadCatalog(path string) (*llm.Catalog, error) {
	var catalog llm.Catalog
	if err := Decode(path, &catalog); err != nil {
		return nil, err
	}
	if err := catalog.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &catalog, nil
}

// Guardrails is the loaded guardrail policy: the normalized term lists and
// the optional compiled Rego module.
type Guardrails struct {
	Config guardrails.Config
	Policy *guardrails.Policy
}

// LoadGuardrails decodes a guardrails file. An empty path yields the
// unrestricted policy. A relative policy path resolves against the
// directory of the guardrails file.
func LoadGuardrails(ctx context.Context, path string) (*Guardrails, error) {
	if path == "" {
		return &Guardrails{Config: guardrails.Unrestricted()}, nil
	}

	var spec map[string]any
	if err := Decode(path, &spec); err != nil {
		return nil, err
	}

	cfg, err := guardrails.BuildConfig(spec)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	g := &Guardrails{Config: cfg}
	if cfg.PolicyPath == "" {
		return g, nil
	}

	policyPath := cfg.PolicyPath
	if !filepath.IsAbs(policyPath) {
		policyPath = filepath.Join(filepath.Dir(path), policyPath)
	}

	g.Policy, err = guardrails.LoadPolicy(ctx, policyPath)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// LoadSchemas compiles the output schema files named by the catalog's
// agents, keyed by agent. Relative paths resolve against dir. Agents
// without an output_schema are omitted.
func LoadSchemas(catalog *llm.Catalog, dir string) (map[string]*phases.Schema, error) {
	schemas := make(map[string]*phases.Schema)
	for _, name := range slices.Sorted(maps.Keys(catalog.Agents)) {
		path := catalog.Agents[name].OutputSchema
		if path == "" {
			continue
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: agent %s: read schema: %w", dto.ErrConfig, name, err)
		}
		s, err := phases.CompileSchema(name, data)
		if err != nil {
			return nil, err
		}
		schemas[name] = s
	}
	return schemas, nil
}
