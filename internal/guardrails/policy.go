package guardrails

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/open-policy-agent/opa/rego"

	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
)

// PolicyQuery is the rule a policy module must define: a set of deny
// messages.
const PolicyQuery = "data.sagecompass.guardrails.deny"

// DefaultPolicy rejects oversized input. It documents the input shape
// available to custom modules.
const DefaultPolicy = `
package sagecompass.guardrails

# input.text      raw user input
# input.lowered   lower-cased input
# input.result    keyword/topic verdict: is_safe, is_in_scope, reasons
# input.config    allowed_topics, blocked_keywords, allowed_tools

deny[msg] {
	count(input.text) > 20000
	msg := "Input exceeds maximum length."
}
`

// Policy is a compiled Rego module contributing additional deny reasons on
// top of keyword and topic matching.
type Policy struct {
	name  string
	query rego.PreparedEvalQuery
}

// NewPolicy compiles a Rego module.
func NewPolicy(ctx context.Context, name, module string) (*Policy, error) {
	r := rego.New(
		rego.Query(PolicyQuery),
		rego.Module(name, module),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: prepare guardrail policy %s: %w", dto.ErrConfig, name, err)
	}
	return &Policy{name: name, query: query}, nil
}

// LoadPolicy compiles the Rego module at path.
func LoadPolicy(ctx context.Context, path string) (*Policy, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read guardrail policy: %w", dto.ErrConfig, err)
	}
	return NewPolicy(ctx, filepath.Base(path), string(src))
}

// Name returns the module name.
func (p *Policy) Name() string {
	return p.name
}

// Deny evaluates the module and returns its sorted deny messages.
func (p *Policy) Deny(ctx context.Context, text string, cfg Config, result dto.GuardrailResult) ([]string, error) {
	input := map[string]any{
		"text":    text,
		"lowered": strings.ToLower(text),
		"result": map[string]any{
			"is_safe":     result.IsSafe,
			"is_in_scope": result.IsInScope,
			"reasons":     slices.Clone(result.Reasons),
		},
		"config": cfg.Map(),
	}

	rs, err := p.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("evaluate guardrail policy %s: %w", p.name, err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil, nil
	}

	values, ok := rs[0].Expressions[0].Value.([]any)
	if !ok {
		return nil, fmt.Errorf("guardrail policy %s: deny must be a set, got %T", p.name, rs[0].Expressions[0].Value)
	}

	var denies []string
	for _, v := range values {
		msg, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("guardrail policy %s: deny entries must be strings, got %T", p.name, v)
		}
		denies = append(denies, msg)
	}
	slices.Sort(denies)
	return denies, nil
}

// Apply evaluates the policy and folds any deny messages into result. A
// denial marks the input unsafe.
func (p *Policy) Apply(ctx context.Context, text string, cfg Config, result dto.GuardrailResult) (dto.GuardrailResult, error) {
	denies, err := p.Deny(ctx, text, cfg, result)
	if err != nil || len(denies) == 0 {
		return result, err
	}

	out := result
	out.IsSafe = false
	out.Reasons = nil
	for _, r := range result.Reasons {
		if r != dto.ReasonPassed {
			out.Reasons = append(out.Reasons, r)
		}
	}
	out.Reasons = append(out.Reasons, denies...)
	return out, nil
}
