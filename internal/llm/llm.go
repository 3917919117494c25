// Package llm resolves per-agent model configuration into chat models backed
// by the provider SDKs.
package llm

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNoMessages indicates a completion was requested without messages.
	ErrNoMessages = errors.New("no messages to send")
	// ErrEmptyResponse indicates the provider returned no text.
	ErrEmptyResponse = errors.New("empty model response")
)

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Response is the text produced by a model.
type Response struct {
	Content  string `json:"content"`
	Model    string `json:"model"`
	Provider Kind   `json:"provider"`
}

// Model is a configured chat model.
type Model interface {
	// Complete sends messages and returns the model's reply.
	Complete(ctx context.Context, messages []Message) (Response, error)
	// Provider returns the provider kind backing the model.
	Provider() Kind
	// Name returns the provider model identifier.
	Name() string
}

// LastUserMessage returns the content of the most recent user message.
func LastUserMessage(messages []Message) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content, true
		}
	}
	return "", false
}

// splitSystem separates system messages, joined in order, from the
// conversation turns.
func splitSystem(messages []Message) (string, []Message) {
	var system []string
	turns := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	return strings.Join(system, "\n\n"), turns
}
