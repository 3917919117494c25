package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
	"github.com/cleverhoods/sagecompass-sub001/internal/llm"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

func testCatalog(ollamaURL string) llm.Catalog {
	return llm.Catalog{
		Providers: map[string]llm.ProviderConfig{
			"claude": {
				Kind:     llm.KindAnthropic,
				KeyEnv:   "TEST_ANTHROPIC_KEY",
				Defaults: llm.Params{Model: "claude-sonnet", MaxTokens: 1024},
			},
			"gpt": {
				Kind:     llm.KindOpenAI,
				KeyEnv:   "TEST_OPENAI_KEY",
				Defaults: llm.Params{Model: "gpt-4o"},
			},
			"gemini": {
				Kind:     llm.KindGoogle,
				KeyEnv:   "TEST_GOOGLE_KEY",
				Defaults: llm.Params{Model: "gemini-2.0-flash"},
			},
			"local": {
				Kind:     llm.KindOllama,
				BaseURL:  ollamaURL,
				Defaults: llm.Params{Model: "llama3", Temperature: ptr(0.2)},
			},
		},
		Agents: map[string]llm.AgentConfig{
			"problem_framing": {Provider: "claude", Params: llm.Params{Temperature: ptr(0.1)}},
			"goals_kpis":      {Provider: "gpt"},
			"feasibility":     {Provider: "gemini"},
			"supervisor":      {Provider: "local", Params: llm.Params{MaxTokens: 256}},
		},
	}
}

func env(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func allKeys() func(string) string {
	return env(map[string]string{
		"TEST_ANTHROPIC_KEY": "a-key",
		"TEST_OPENAI_KEY":    "o-key",
		"TEST_GOOGLE_KEY":    "g-key",
	})
}

func TestParamsMerge(t *testing.T) {
	base := llm.Params{
		Model:       "base",
		Temperature: ptr(0.5),
		MaxTokens:   100,
		Options:     map[string]any{"top_p": 0.9, "seed": 1},
	}
	overlay := llm.Params{
		Temperature: ptr(0.0),
		Options:     map[string]any{"seed": 7},
	}

	got := base.Merge(overlay)

	assert.Equal(t, "base", got.Model)
	require.NotNil(t, got.Temperature)
	assert.Equal(t, 0.0, *got.Temperature)
	assert.Equal(t, 100, got.MaxTokens)
	assert.Equal(t, map[string]any{"top_p": 0.9, "seed": 7}, got.Options)
	assert.Equal(t, 1, base.Options["seed"], "base options must not be modified")
}

func TestCatalogValidate(t *testing.T) {
	tests := []struct {
		name    string
		catalog llm.Catalog
		wantErr bool
	}{
		{
			name:    "valid",
			catalog: testCatalog("http://localhost:11434"),
		},
		{
			name:    "empty",
			catalog: llm.Catalog{},
		},
		{
			name: "unknown kind",
			catalog: llm.Catalog{
				Providers: map[string]llm.ProviderConfig{"x": {Kind: "mystery"}},
			},
			wantErr: true,
		},
		{
			name: "missing key env",
			catalog: llm.Catalog{
				Providers: map[string]llm.ProviderConfig{"x": {Kind: llm.KindOpenAI}},
			},
			wantErr: true,
		},
		{
			name: "agent without provider",
			catalog: llm.Catalog{
				Agents: map[string]llm.AgentConfig{"a": {}},
			},
			wantErr: true,
		},
		{
			name: "agent with unknown provider",
			catalog: llm.Catalog{
				Agents: map[string]llm.AgentConfig{"a": {Provider: "nope"}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.catalog.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, dto.ErrConfig)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCatalogMerge(t *testing.T) {
	var c llm.Catalog
	c.Merge(&llm.Catalog{
		Agents: map[string]llm.AgentConfig{"a": {Provider: "p"}},
	})
	assert.Equal(t, "p", c.Agents["a"].Provider)
	assert.Nil(t, c.Providers)
}

func TestNewFactoryRejectsInvalidCatalog(t *testing.T) {
	_, err := llm.NewFactory(llm.Catalog{
		Agents: map[string]llm.AgentConfig{"a": {Provider: "missing"}},
	}, discard())
	assert.ErrorIs(t, err, dto.ErrConfig)
}

func TestFactoryResolve(t *testing.T) {
	f, err := llm.NewFactory(testCatalog("http://localhost:11434"), discard(), llm.WithEnv(allKeys()))
	require.NoError(t, err)

	b, err := f.Resolve("problem_framing")
	require.NoError(t, err)

	assert.Equal(t, "claude", b.ProviderName)
	assert.Equal(t, llm.KindAnthropic, b.Provider.Kind)
	assert.Equal(t, "claude-sonnet", b.Params.Model)
	assert.Equal(t, 1024, b.Params.MaxTokens)
	require.NotNil(t, b.Params.Temperature)
	assert.Equal(t, 0.1, *b.Params.Temperature)
	assert.Equal(t, "a-key", b.APIKey)
}

func TestFactoryResolveErrors(t *testing.T) {
	tests := []struct {
		name  string
		agent string
		env   map[string]string
	}{
		{name: "unknown agent", agent: "nobody", env: map[string]string{}},
		{name: "missing api key", agent: "goals_kpis", env: map[string]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := llm.NewFactory(testCatalog(""), discard(), llm.WithEnv(env(tt.env)))
			require.NoError(t, err)

			_, err = f.GetModelForAgent(tt.agent)
			assert.ErrorIs(t, err, dto.ErrConfig)
		})
	}
}

func TestFactoryResolveMissingModel(t *testing.T) {
	catalog := llm.Catalog{
		Providers: map[string]llm.ProviderConfig{"local": {Kind: llm.KindOllama}},
		Agents:    map[string]llm.AgentConfig{"a": {Provider: "local"}},
	}
	f, err := llm.NewFactory(catalog, discard())
	require.NoError(t, err)

	_, err = f.Resolve("a")
	assert.ErrorIs(t, err, dto.ErrConfig)
}

func TestFactoryOllamaNeedsNoKey(t *testing.T) {
	f, err := llm.NewFactory(testCatalog(""), discard(), llm.WithEnv(env(nil)))
	require.NoError(t, err)

	m, params, err := f.ForAgent("supervisor")
	require.NoError(t, err)
	assert.Equal(t, 256, params.MaxTokens)
	assert.Equal(t, llm.KindOllama, m.Provider())
	assert.Equal(t, "llama3", m.Name())
}

func TestFactoryForAgentKinds(t *testing.T) {
	f, err := llm.NewFactory(testCatalog("http://localhost:11434"), discard(), llm.WithEnv(allKeys()))
	require.NoError(t, err)

	want := map[string]llm.Kind{
		"problem_framing": llm.KindAnthropic,
		"goals_kpis":      llm.KindOpenAI,
		"feasibility":     llm.KindGoogle,
		"supervisor":      llm.KindOllama,
	}

	assert.Equal(t, []string{"feasibility", "goals_kpis", "problem_framing", "supervisor"}, f.Agents())

	for agent, kind := range want {
		m, err := f.GetModelForAgent(agent)
		require.NoError(t, err, agent)
		assert.Equal(t, kind, m.Provider(), agent)
	}
}

func TestFactoryResolveHook(t *testing.T) {
	var calls []string
	hook := func(agent string, kind llm.Kind, err error) {
		calls = append(calls, agent)
		if agent == "nobody" {
			assert.ErrorIs(t, err, dto.ErrConfig)
		}
	}

	f, err := llm.NewFactory(testCatalog(""), discard(), llm.WithEnv(allKeys()), llm.WithResolveHook(hook))
	require.NoError(t, err)

	_, _ = f.Resolve("goals_kpis")
	_, _ = f.Resolve("nobody")

	assert.Equal(t, []string{"goals_kpis", "nobody"}, calls)
}

func TestFactoryInvalidOllamaURL(t *testing.T) {
	f, err := llm.NewFactory(testCatalog("::not a url"), discard())
	require.NoError(t, err)

	_, err = f.GetModelForAgent("supervisor")
	assert.ErrorIs(t, err, dto.ErrConfig)
}

func TestOllamaComplete(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"model":"llama3","created_at":"2026-01-01T00:00:00Z","message":{"role":"assistant","content":"framed"},"done":true}`)
	}))
	defer srv.Close()

	f, err := llm.NewFactory(testCatalog(srv.URL), discard(), llm.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	m, err := f.GetModelForAgent("supervisor")
	require.NoError(t, err)

	resp, err := m.Complete(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "You are a supervisor."},
		{Role: llm.RoleUser, Content: "Frame this."},
	})
	require.NoError(t, err)

	assert.Equal(t, "framed", resp.Content)
	assert.Equal(t, "llama3", resp.Model)
	assert.Equal(t, llm.KindOllama, resp.Provider)

	assert.Equal(t, "llama3", received["model"])
	assert.Equal(t, false, received["stream"])
	options, ok := received["options"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0.2, options["temperature"])
	assert.Equal(t, float64(256), options["num_predict"])
	assert.Len(t, received["messages"], 2)
}

func TestOllamaCompleteEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"model":"llama3","created_at":"2026-01-01T00:00:00Z","message":{"role":"assistant","content":""},"done":true}`)
	}))
	defer srv.Close()

	f, err := llm.NewFactory(testCatalog(srv.URL), discard(), llm.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	m, err := f.GetModelForAgent("supervisor")
	require.NoError(t, err)

	_, err = m.Complete(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
	assert.True(t, errors.Is(err, llm.ErrEmptyResponse))
}

func TestAnthropicComplete(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "a-key", r.Header.Get("X-Api-Key"))
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet",
			"content": [{"type": "text", "text": "business framed"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 3, "output_tokens": 2}
		}`)
	}))
	defer srv.Close()

	catalog := testCatalog("")
	claude := catalog.Providers["claude"]
	claude.BaseURL = srv.URL
	catalog.Providers["claude"] = claude

	f, err := llm.NewFactory(catalog, discard(), llm.WithEnv(allKeys()), llm.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	m, err := f.GetModelForAgent("problem_framing")
	require.NoError(t, err)

	resp, err := m.Complete(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "Frame problems."},
		{Role: llm.RoleUser, Content: "We lose customers."},
	})
	require.NoError(t, err)

	assert.Equal(t, "business framed", resp.Content)
	assert.Equal(t, llm.KindAnthropic, resp.Provider)
	assert.Equal(t, "claude-sonnet", received["model"])
	assert.Equal(t, float64(1024), received["max_tokens"])
	assert.NotNil(t, received["system"])
}

func TestCompleteWithoutTurns(t *testing.T) {
	f, err := llm.NewFactory(testCatalog("http://localhost:11434"), discard(), llm.WithEnv(allKeys()))
	require.NoError(t, err)

	for _, agent := range []string{"problem_framing", "goals_kpis", "feasibility", "supervisor"} {
		m, err := f.GetModelForAgent(agent)
		require.NoError(t, err)

		var msgs []llm.Message
		if agent != "supervisor" {
			msgs = []llm.Message{{Role: llm.RoleSystem, Content: "only system"}}
		}
		_, err = m.Complete(context.Background(), msgs)
		assert.ErrorIs(t, err, llm.ErrNoMessages, agent)
	}
}

func TestLastUserMessage(t *testing.T) {
	msgs := []llm.Message{
		{Role: llm.RoleUser, Content: "first"},
		{Role: llm.RoleAssistant, Content: "reply"},
		{Role: llm.RoleUser, Content: "second"},
		{Role: llm.RoleAssistant, Content: "reply"},
	}

	got, ok := llm.LastUserMessage(msgs)
	assert.True(t, ok)
	assert.Equal(t, "second", got)

	_, ok = llm.LastUserMessage(nil)
	assert.False(t, ok)
}
