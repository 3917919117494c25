package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
)

const defaultOllamaURL = "http://localhost:11434"

type ollamaModel struct {
	client *api.Client
	params Params
}

func newOllama(b Binding, httpClient *http.Client) (*ollamaModel, error) {
	raw := b.Provider.BaseURL
	if raw == "" {
		raw = defaultOllamaURL
	}
	base, err := url.Parse(raw)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: agent %s: invalid ollama base_url %q", dto.ErrConfig, b.Agent, raw)
	}

	return &ollamaModel{
		client: api.NewClient(base, httpClient),
		params: b.Params,
	}, nil
}

func (m *ollamaModel) Provider() Kind { return KindOllama }

func (m *ollamaModel) Name() string { return m.params.Model }

func (m *ollamaModel) Complete(ctx context.Context, messages []Message) (Response, error) {
	if len(messages) == 0 {
		return Response{}, ErrNoMessages
	}

	msgs := make([]api.Message, len(messages))
	for i, msg := range messages {
		msgs[i] = api.Message{Role: string(msg.Role), Content: msg.Content}
	}

	options := make(map[string]any, len(m.params.Options)+2)
	for k, v := range m.params.Options {
		options[k] = v
	}
	if m.params.Temperature != nil {
		options["temperature"] = *m.params.Temperature
	}
	if m.params.MaxTokens > 0 {
		options["num_predict"] = m.params.MaxTokens
	}

	stream := false
	req := &api.ChatRequest{
		Model:    m.params.Model,
		Messages: msgs,
		Stream:   &stream,
		Options:  options,
	}

	var sb strings.Builder
	var model string
	err := m.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		model = resp.Model
		return nil
	})
	if err != nil {
		return Response{}, fmt.Errorf("ollama: %w", err)
	}
	if sb.Len() == 0 {
		return Response{}, fmt.Errorf("ollama: %w", ErrEmptyResponse)
	}

	return Response{
		Content:  sb.String(),
		Model:    model,
		Provider: KindOllama,
	}, nil
}
