package config

import (
	"fmt"
	"os"
)

const (
	EnvAgentsModelsFile     = "SAGECOMPASS_MODELS_FILE"
	EnvAgentsGuardrailsFile = "SAGECOMPASS_GUARDRAILS_FILE"
	EnvAgentsOwner          = "SAGECOMPASS_AGENTS_OWNER"
)

// AgentsConfig locates the declarative files that configure agent nodes.
// An empty GuardrailsFile applies the unrestricted guardrail policy.
type AgentsConfig struct {
	ModelsFile     string `toml:"models_file"`
	GuardrailsFile string `toml:"guardrails_file"`
	Owner          string `toml:"owner"`
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *AgentsConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *AgentsConfig) Merge(overlay *AgentsConfig) {
	if overlay.ModelsFile != "" {
		c.ModelsFile = overlay.ModelsFile
	}
	if overlay.GuardrailsFile != "" {
		c.GuardrailsFile = overlay.GuardrailsFile
	}
	if overlay.Owner != "" {
		c.Owner = overlay.Owner
	}
}

func (c *AgentsConfig) loadDefaults() {
	if c.ModelsFile == "" {
		c.ModelsFile = "models.yaml"
	}
	if c.Owner == "" {
		c.Owner = "sagecompass"
	}
}

func (c *AgentsConfig) loadEnv() {
	if v := os.Getenv(EnvAgentsModelsFile); v != "" {
		c.ModelsFile = v
	}
	if v := os.Getenv(EnvAgentsGuardrailsFile); v != "" {
		c.GuardrailsFile = v
	}
	if v := os.Getenv(EnvAgentsOwner); v != "" {
		c.Owner = v
	}
}

func (c *AgentsConfig) validate() error {
	if c.ModelsFile == "" {
		return fmt.Errorf("models_file required")
	}
	return nil
}
