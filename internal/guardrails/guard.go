package guardrails

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
	"github.com/cleverhoods/sagecompass-sub001/internal/llm"
	"github.com/cleverhoods/sagecompass-sub001/internal/tools"
)

const (
	RejectedMessage   = "Request rejected by guardrails."
	ToolDeniedMessage = "Tool not allowed by policy."
)

// ErrToolNotAllowed indicates a tool call outside the configured allowlist.
var ErrToolNotAllowed = errors.New("tool not allowed by policy")

// Guard enforces a guardrail Config at the model and tool boundaries. It
// wraps a model so the latest user message is checked before every call.
type Guard struct {
	model  llm.Model
	cfg    Config
	policy *Policy
	logger *slog.Logger
}

// NewGuard wraps model with cfg. policy may be nil.
func NewGuard(model llm.Model, cfg Config, policy *Policy, logger *slog.Logger) *Guard {
	return &Guard{
		model:  model,
		cfg:    cfg,
		policy: policy,
		logger: logger.With("component", "guardrails"),
	}
}

// Provider reports the wrapped model's provider.
func (g *Guard) Provider() llm.Kind { return g.model.Provider() }

// Name reports the wrapped model's name.
func (g *Guard) Name() string { return g.model.Name() }

// Check evaluates text against the keyword and topic rules and, when
// configured, the Rego policy.
func (g *Guard) Check(ctx context.Context, text string) (dto.GuardrailResult, error) {
	return Check(ctx, text, g.cfg, g.policy)
}

// Check evaluates text against cfg and folds in policy's deny reasons.
// policy may be nil.
func Check(ctx context.Context, text string, cfg Config, policy *Policy) (dto.GuardrailResult, error) {
	result := Evaluate(text, cfg)
	if policy == nil {
		return result, nil
	}
	return policy.Apply(ctx, text, cfg, result)
}

// Complete checks the latest user message and forwards messages to the
// wrapped model when it passes. A rejected request returns RejectedMessage
// without calling the model.
func (g *Guard) Complete(ctx context.Context, messages []llm.Message) (llm.Response, error) {
	text, ok := llm.LastUserMessage(messages)
	if !ok || text == "" {
		return g.model.Complete(ctx, messages)
	}

	result, err := g.Check(ctx, text)
	if err != nil {
		return llm.Response{}, err
	}

	if !result.Allowed() {
		g.logger.Warn(
			"guardrails blocked",
			"model", g.model.Name(),
			"reasons", result.Reasons,
		)
		return llm.Response{
			Content:  RejectedMessage,
			Model:    g.model.Name(),
			Provider: g.model.Provider(),
		}, nil
	}

	return g.model.Complete(ctx, messages)
}

// InvokeTool runs the named tool when cfg's allowlist permits it. A denied
// call returns ToolDeniedMessage with an error wrapping ErrToolNotAllowed.
func InvokeTool(ctx context.Context, cfg Config, registry *tools.Registry, name string, args json.RawMessage) (string, error) {
	if !cfg.ToolAllowed(name) {
		return ToolDeniedMessage, fmt.Errorf("%w: %s", ErrToolNotAllowed, name)
	}
	return registry.Invoke(ctx, name, args)
}
