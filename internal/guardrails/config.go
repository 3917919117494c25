// Package guardrails decides whether free-text input is safe and in scope
// for a declarative allow/block policy, and enforces that decision at the
// model and tool boundaries.
package guardrails

import (
	"fmt"
	"slices"
	"strings"

	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
)

// Declarative field names.
const (
	FieldAllowedTopics   = "allowed_topics"
	FieldBlockedKeywords = "blocked_keywords"
	FieldAllowedTools    = "allowed_tools"
	FieldPolicy          = "policy"
)

// Config is a normalized guardrail policy. Terms are trimmed, lower-cased,
// deduplicated and sorted. A Config is read-only once built.
type Config struct {
	AllowedTopics   []string `json:"allowed_topics"`
	BlockedKeywords []string `json:"blocked_keywords"`
	AllowedTools    []string `json:"allowed_tools,omitempty"`
	PolicyPath      string   `json:"policy,omitempty"`
}

// Unrestricted is the policy applied when no guardrail rules are configured:
// every input is safe and in scope, and every tool is allowed.
func Unrestricted() Config {
	return Config{}
}

// Restricted builds a Config directly from topic and keyword lists.
func Restricted(topics, keywords []string) Config {
	return Config{
		AllowedTopics:   normalize(topics),
		BlockedKeywords: normalize(keywords),
	}
}

// BuildConfig normalizes a declarative guardrail mapping. It fails with
// dto.ErrConfig when both allowed_topics and blocked_keywords are absent,
// when a field is not a list, or when a list entry is not a string.
// Present but empty lists are valid and impose no restriction.
func BuildConfig(spec map[string]any) (Config, error) {
	_, hasTopics := spec[FieldAllowedTopics]
	_, hasKeywords := spec[FieldBlockedKeywords]
	if !hasTopics && !hasKeywords {
		return Config{}, fmt.Errorf(
			"%w: guardrails require %s or %s",
			dto.ErrConfig, FieldAllowedTopics, FieldBlockedKeywords,
		)
	}

	var cfg Config
	var err error

	if cfg.AllowedTopics, err = terms(spec, FieldAllowedTopics); err != nil {
		return Config{}, err
	}
	if cfg.BlockedKeywords, err = terms(spec, FieldBlockedKeywords); err != nil {
		return Config{}, err
	}
	if cfg.AllowedTools, err = terms(spec, FieldAllowedTools); err != nil {
		return Config{}, err
	}

	if raw, ok := spec[FieldPolicy]; ok && raw != nil {
		path, ok := raw.(string)
		if !ok {
			return Config{}, fmt.Errorf("%w: %s must be a string, got %T", dto.ErrConfig, FieldPolicy, raw)
		}
		cfg.PolicyPath = strings.TrimSpace(path)
	}

	return cfg, nil
}

// Map returns the declarative form of c.
func (c Config) Map() map[string]any {
	m := map[string]any{
		FieldAllowedTopics:   slices.Clone(c.AllowedTopics),
		FieldBlockedKeywords: slices.Clone(c.BlockedKeywords),
	}
	if len(c.AllowedTools) > 0 {
		m[FieldAllowedTools] = slices.Clone(c.AllowedTools)
	}
	if c.PolicyPath != "" {
		m[FieldPolicy] = c.PolicyPath
	}
	return m
}

// ToolAllowed reports whether name passes the tool allowlist. An empty
// allowlist allows every tool.
func (c Config) ToolAllowed(name string) bool {
	if len(c.AllowedTools) == 0 {
		return true
	}
	_, found := slices.BinarySearch(c.AllowedTools, strings.ToLower(strings.TrimSpace(name)))
	return found
}

func terms(spec map[string]any, field string) ([]string, error) {
	raw, ok := spec[field]
	if !ok || raw == nil {
		return nil, nil
	}

	switch list := raw.(type) {
	case []string:
		return normalize(list), nil
	case []any:
		values := make([]string, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s[%d] must be a string, got %T", dto.ErrConfig, field, i, item)
			}
			values[i] = s
		}
		return normalize(values), nil
	default:
		return nil, fmt.Errorf("%w: %s must be a list, got %T", dto.ErrConfig, field, raw)
	}
}

func normalize(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
