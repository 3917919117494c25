package llm

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"google.golang.org/genai"
)

type googleModel struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	params     Params

	once    sync.Once
	client  *genai.Client
	initErr error
}

// newGoogle defers client creation to the first call because the genai
// constructor needs a context.
func newGoogle(b Binding, httpClient *http.Client) *googleModel {
	return &googleModel{
		apiKey:     b.APIKey,
		baseURL:    b.Provider.BaseURL,
		httpClient: httpClient,
		params:     b.Params,
	}
}

func (m *googleModel) Provider() Kind { return KindGoogle }

func (m *googleModel) Name() string { return m.params.Model }

func (m *googleModel) init(ctx context.Context) error {
	m.once.Do(func() {
		cfg := &genai.ClientConfig{
			APIKey:     m.apiKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: m.httpClient,
		}
		if m.baseURL != "" {
			cfg.HTTPOptions = genai.HTTPOptions{BaseURL: m.baseURL}
		}
		m.client, m.initErr = genai.NewClient(ctx, cfg)
	})
	return m.initErr
}

func (m *googleModel) Complete(ctx context.Context, messages []Message) (Response, error) {
	system, turns := splitSystem(messages)
	if len(turns) == 0 {
		return Response{}, ErrNoMessages
	}

	if err := m.init(ctx); err != nil {
		return Response{}, fmt.Errorf("google: create client: %w", err)
	}

	contents := make([]*genai.Content, len(turns))
	for i, t := range turns {
		role := "user"
		if t.Role == RoleAssistant {
			role = "model"
		}
		contents[i] = &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: t.Content}},
		}
	}

	config := &genai.GenerateContentConfig{}
	if m.params.Temperature != nil {
		t := float32(*m.params.Temperature)
		config.Temperature = &t
	}
	if m.params.MaxTokens > 0 {
		config.MaxOutputTokens = int32(m.params.MaxTokens)
	}
	if system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}

	result, err := m.client.Models.GenerateContent(ctx, m.params.Model, contents, config)
	if err != nil {
		return Response{}, fmt.Errorf("google: %w", err)
	}
	if result == nil || result.Text() == "" {
		return Response{}, fmt.Errorf("google: %w", ErrEmptyResponse)
	}

	return Response{
		Content:  result.Text(),
		Model:    m.params.Model,
		Provider: KindGoogle,
	}, nil
}
