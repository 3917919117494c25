package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
	"github.com/cleverhoods/sagecompass-sub001/internal/guardrails"
	"github.com/cleverhoods/sagecompass-sub001/internal/state"
	"github.com/cleverhoods/sagecompass-sub001/internal/tools"
)

// ToolNode returns a node that invokes a registered tool with args, subject
// to the guardrail tool allowlist, and emits a tool_invoked event. Denied or
// failed calls are appended to the run error log.
func ToolNode(rt *Runtime, name string, args json.RawMessage) Node {
	rec := rt.recorder(OwnerTools)
	registry := rt.Tools
	if registry == nil {
		registry = tools.NewRegistry()
	}

	return Owned(func(ctx context.Context, s state.State) (state.State, error) {
		out, err := guardrails.InvokeTool(ctx, rt.Guardrails, registry, name, args)

		payload := map[string]any{
			"tool":    name,
			"allowed": !errors.Is(err, guardrails.ErrToolNotAllowed),
			"result":  out,
		}
		if err != nil {
			payload["error"] = err.Error()
		}

		next, emitErr := rec.Emit(ctx, s, dto.KindToolInvoked, "", name, payload)
		if emitErr != nil {
			return s, fmt.Errorf("tool %s: %w", name, emitErr)
		}

		if err != nil {
			code := CodeToolFailed
			if errors.Is(err, guardrails.ErrToolNotAllowed) {
				code = CodeToolDenied
			}
			next, emitErr = appendErrors(next, errorEntry(code, OwnerTools, "", "tool call did not complete", err))
			if emitErr != nil {
				return s, fmt.Errorf("tool %s: %w", name, emitErr)
			}
			rt.Logger.WarnContext(ctx, "tool call failed", "tool", name, "error", err)
		}

		return next, nil
	}, OwnerTools)
}
