package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

type openAIModel struct {
	client openai.Client
	params Params
}

func newOpenAI(b Binding, httpClient *http.Client) *openAIModel {
	opts := []option.RequestOption{
		option.WithAPIKey(b.APIKey),
		option.WithHTTPClient(httpClient),
	}
	if b.Provider.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(b.Provider.BaseURL))
	}

	return &openAIModel{
		client: openai.NewClient(opts...),
		params: b.Params,
	}
}

func (m *openAIModel) Provider() Kind { return KindOpenAI }

func (m *openAIModel) Name() string { return m.params.Model }

// Complete uses the Responses API. System messages become instructions and
// the remaining turns are flattened into a single input transcript.
func (m *openAIModel) Complete(ctx context.Context, messages []Message) (Response, error) {
	system, turns := splitSystem(messages)
	if len(turns) == 0 {
		return Response{}, ErrNoMessages
	}

	params := responses.ResponseNewParams{
		Model: m.params.Model,
		Input: responses.ResponseNewParamsInputUnion{OfString: openai.String(transcript(turns))},
	}
	if system != "" {
		params.Instructions = openai.String(system)
	}
	if m.params.MaxTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(m.params.MaxTokens))
	}
	if m.params.Temperature != nil {
		params.Temperature = openai.Float(*m.params.Temperature)
	}

	resp, err := m.client.Responses.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("openai: %w", err)
	}

	text := resp.OutputText()
	if text == "" {
		return Response{}, fmt.Errorf("openai: %w", ErrEmptyResponse)
	}

	return Response{
		Content:  text,
		Model:    string(resp.Model),
		Provider: KindOpenAI,
	}, nil
}

// transcript renders turns as plain text. A lone user turn is sent as is.
func transcript(turns []Message) string {
	if len(turns) == 1 && turns[0].Role == RoleUser {
		return turns[0].Content
	}

	var sb strings.Builder
	for i, t := range turns {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		switch t.Role {
		case RoleAssistant:
			sb.WriteString("Assistant: ")
		default:
			sb.WriteString("User: ")
		}
		sb.WriteString(t.Content)
	}
	return sb.String()
}
