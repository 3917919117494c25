package llm

import (
	"fmt"
	"maps"
	"slices"

	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
)

// Kind selects the provider SDK used for a model.
type Kind string

const (
	KindAnthropic Kind = "anthropic"
	KindOpenAI    Kind = "openai"
	KindOllama    Kind = "ollama"
	KindGoogle    Kind = "google"
)

var kinds = []Kind{KindAnthropic, KindOpenAI, KindOllama, KindGoogle}

// Kinds returns the supported provider kinds.
func Kinds() []Kind {
	return slices.Clone(kinds)
}

// RequiresKey reports whether the provider authenticates with an API key.
func (k Kind) RequiresKey() bool {
	return k != KindOllama
}

// Params are the generation parameters for a model. Zero values mean
// "use the provider default".
type Params struct {
	Model       string         `yaml:"model" json:"model"`
	Temperature *float64       `yaml:"temperature" json:"temperature,omitempty"`
	MaxTokens   int            `yaml:"max_tokens" json:"max_tokens,omitempty"`
	Options     map[string]any `yaml:"options" json:"options,omitempty"`
}

// Merge returns p overlaid with the non-zero fields of overlay. Options are
// merged key by key.
func (p Params) Merge(overlay Params) Params {
	out := p
	if overlay.Model != "" {
		out.Model = overlay.Model
	}
	if overlay.Temperature != nil {
		t := *overlay.Temperature
		out.Temperature = &t
	}
	if overlay.MaxTokens != 0 {
		out.MaxTokens = overlay.MaxTokens
	}
	if len(p.Options) > 0 || len(overlay.Options) > 0 {
		out.Options = make(map[string]any, len(p.Options)+len(overlay.Options))
		maps.Copy(out.Options, p.Options)
		maps.Copy(out.Options, overlay.Options)
	}
	return out
}

// ProviderConfig describes one provider entry of the catalog.
type ProviderConfig struct {
	Kind     Kind   `yaml:"kind" json:"kind"`
	KeyEnv   string `yaml:"key_env" json:"key_env,omitempty"`
	BaseURL  string `yaml:"base_url" json:"base_url,omitempty"`
	Defaults Params `yaml:"defaults" json:"defaults"`
}

func (c ProviderConfig) validate() error {
	if !slices.Contains(kinds, c.Kind) {
		return fmt.Errorf("unknown kind %q", c.Kind)
	}
	if c.Kind.RequiresKey() && c.KeyEnv == "" {
		return fmt.Errorf("key_env required for %s", c.Kind)
	}
	return nil
}

// AgentConfig binds an agent to a provider entry.
type AgentConfig struct {
	Provider     string `yaml:"provider" json:"provider"`
	Params       Params `yaml:"params" json:"params"`
	OutputSchema string `yaml:"output_schema" json:"output_schema,omitempty"`
}

// Catalog is the declarative provider and agent configuration.
type Catalog struct {
	Providers map[string]ProviderConfig `yaml:"providers" json:"providers"`
	Agents    map[string]AgentConfig    `yaml:"agents" json:"agents"`
}

// Validate checks every provider entry and every agent binding. Failures
// wrap dto.ErrConfig.
func (c *Catalog) Validate() error {
	for _, name := range slices.Sorted(maps.Keys(c.Providers)) {
		if err := c.Providers[name].validate(); err != nil {
			return fmt.Errorf("%w: provider %s: %w", dto.ErrConfig, name, err)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(c.Agents)) {
		agent := c.Agents[name]
		if agent.Provider == "" {
			return fmt.Errorf("%w: agent %s: provider required", dto.ErrConfig, name)
		}
		if _, ok := c.Providers[agent.Provider]; !ok {
			return fmt.Errorf("%w: agent %s: unknown provider %q", dto.ErrConfig, name, agent.Provider)
		}
	}
	return nil
}

// Merge overwrites providers and agents with the entries of overlay.
func (c *Catalog) Merge(overlay *Catalog) {
	if len(overlay.Providers) > 0 && c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig, len(overlay.Providers))
	}
	maps.Copy(c.Providers, overlay.Providers)

	if len(overlay.Agents) > 0 && c.Agents == nil {
		c.Agents = make(map[string]AgentConfig, len(overlay.Agents))
	}
	maps.Copy(c.Agents, overlay.Agents)
}
