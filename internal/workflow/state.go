package workflow

import (
	"fmt"

	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
	"github.com/cleverhoods/sagecompass-sub001/internal/guardrails"
	"github.com/cleverhoods/sagecompass-sub001/internal/llm"
	"github.com/cleverhoods/sagecompass-sub001/internal/state"
)

// NewState seeds run state with a user request.
func NewState(input string) state.State {
	return state.New(map[string]any{
		state.KeyMessages: []llm.Message{{Role: llm.RoleUser, Content: input}},
		state.KeyGating:   dto.GatingContext{OriginalInput: input},
	})
}

// Errors returns the run-level error log held by s.
func Errors(s state.State) ([]dto.ErrorEntry, error) {
	raw, ok := s.Get(state.KeyErrors)
	if !ok || raw == nil {
		return nil, nil
	}
	entries, ok := raw.([]dto.ErrorEntry)
	if !ok {
		return nil, fmt.Errorf("%w: %s has type %T", dto.ErrValidation, state.KeyErrors, raw)
	}
	return entries, nil
}

func appendErrors(s state.State, entries ...dto.ErrorEntry) (state.State, error) {
	current, err := Errors(s)
	if err != nil {
		return s, err
	}
	next := make([]dto.ErrorEntry, 0, len(current)+len(entries))
	next = append(next, current...)
	next = append(next, entries...)
	return s.Set(state.KeyErrors, next), nil
}

func appendMessage(s state.State, msg llm.Message) (state.State, error) {
	current, err := guardrails.Messages(s)
	if err != nil {
		return s, err
	}
	return s.Set(state.KeyMessages, append(current, msg)), nil
}

// input returns the request under evaluation: the gating context's
// original input, else the latest user message.
func input(s state.State) (string, []llm.Message, error) {
	msgs, err := guardrails.Messages(s)
	if err != nil {
		return "", nil, err
	}
	g, err := guardrails.Gating(s)
	if err != nil {
		return "", nil, err
	}
	if g.OriginalInput != "" {
		return g.OriginalInput, msgs, nil
	}
	text, _ := llm.LastUserMessage(msgs)
	return text, msgs, nil
}

func errorEntry(code, owner, phase, message string, err error) dto.ErrorEntry {
	entry := dto.NewErrorEntry(code, message, dto.SeverityError)
	entry.Owner = owner
	entry.Phase = phase
	if err != nil {
		entry.Context = map[string]any{"cause": err.Error()}
	}
	return entry
}
