package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicMaxTokens = 4096

type anthropicModel struct {
	client anthropic.Client
	params Params
}

func newAnthropic(b Binding, httpClient *http.Client) *anthropicModel {
	opts := []option.RequestOption{
		option.WithAPIKey(b.APIKey),
		option.WithHTTPClient(httpClient),
	}
	if b.Provider.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(b.Provider.BaseURL))
	}

	return &anthropicModel{
		client: anthropic.NewClient(opts...),
		params: b.Params,
	}
}

func (m *anthropicModel) Provider() Kind { return KindAnthropic }

func (m *anthropicModel) Name() string { return m.params.Model }

func (m *anthropicModel) Complete(ctx context.Context, messages []Message) (Response, error) {
	system, turns := splitSystem(messages)
	if len(turns) == 0 {
		return Response{}, ErrNoMessages
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.params.Model),
		MaxTokens: int64(m.params.MaxTokens),
		Messages:  make([]anthropic.MessageParam, 0, len(turns)),
	}
	if params.MaxTokens == 0 {
		params.MaxTokens = defaultAnthropicMaxTokens
	}
	if m.params.Temperature != nil {
		params.Temperature = anthropic.Float(*m.params.Temperature)
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system, Type: "text"}}
	}

	for _, t := range turns {
		role := anthropic.MessageParamRoleUser
		if t.Role == RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}
		params.Messages = append(params.Messages, anthropic.MessageParam{
			Role:    role,
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(t.Content)},
		})
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("anthropic: %w", err)
	}

	var sb strings.Builder
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	if sb.Len() == 0 {
		return Response{}, fmt.Errorf("anthropic: %w", ErrEmptyResponse)
	}

	return Response{
		Content:  sb.String(),
		Model:    string(resp.Model),
		Provider: KindAnthropic,
	}, nil
}
