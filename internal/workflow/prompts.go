package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
	"github.com/cleverhoods/sagecompass-sub001/internal/llm"
	"github.com/cleverhoods/sagecompass-sub001/internal/phases"
	"github.com/cleverhoods/sagecompass-sub001/internal/prompts"
)

// ComposePrompt builds a system prompt by combining tunable instructions,
// the immutable output specification, and the completed outputs of the
// phases that precede phase. When no prior phase has completed, the prompt
// contains only instructions and spec.
func ComposePrompt(
	ctx context.Context,
	src prompts.Source,
	phase string,
	prior *phases.Phases,
) (string, error) {
	p := prompts.Phase(phase)

	instructions, err := src.Instructions(ctx, p)
	if err != nil {
		return "", fmt.Errorf("load instructions for %s: %w", phase, err)
	}

	spec, err := src.Spec(ctx, p)
	if err != nil {
		return "", fmt.Errorf("load spec for %s: %w", phase, err)
	}

	var sb strings.Builder
	sb.WriteString(instructions)
	sb.WriteString("\n\n")
	sb.WriteString(spec)

	outputs, err := priorOutputs(phase, prior)
	if err != nil {
		return "", err
	}
	if len(outputs) > 0 {
		data, err := json.MarshalIndent(outputs, "", "  ")
		if err != nil {
			return "", fmt.Errorf("serialize prior phases: %w", err)
		}
		sb.WriteString("\n\nResults from prior phases:\n\n")
		sb.Write(data)
	}

	return sb.String(), nil
}

// priorOutputs collects the outputs of completed phases that run before
// phase, keyed by phase name.
func priorOutputs(phase string, prior *phases.Phases) (map[string]any, error) {
	if prior == nil {
		return nil, nil
	}

	out := map[string]any{}
	for _, name := range phases.Known() {
		if name == phase {
			break
		}
		r, ok, err := prior.Result(name)
		if err != nil {
			return nil, err
		}
		if ok && r.Status == dto.StatusCompleted && len(r.Output) > 0 {
			out[name] = r.Output
		}
	}
	return out, nil
}

// composeMessages prepends the system prompt to the conversation. An empty
// transcript is replaced by the gating input as a single user turn.
func composeMessages(system string, transcript []llm.Message, input string) []llm.Message {
	msgs := make([]llm.Message, 0, len(transcript)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: system})

	for _, m := range transcript {
		if m.Role != llm.RoleSystem {
			msgs = append(msgs, m)
		}
	}
	if len(msgs) == 1 && input != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: input})
	}
	return msgs
}
