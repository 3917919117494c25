package llm

import (
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"os"
	"slices"

	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
)

// Binding is a resolved agent configuration: the provider entry, the merged
// generation parameters, and the API key read from the environment.
type Binding struct {
	Agent        string
	ProviderName string
	Provider     ProviderConfig
	Params       Params
	APIKey       string
	OutputSchema string
}

// ResolveHook observes each resolution attempt.
type ResolveHook func(agent string, kind Kind, err error)

// Option configures a Factory.
type Option func(*Factory)

// WithEnv replaces the environment lookup used for API keys.
func WithEnv(getenv func(string) string) Option {
	return func(f *Factory) { f.getenv = getenv }
}

// WithHTTPClient sets the HTTP client passed to provider SDKs.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Factory) { f.httpClient = client }
}

// WithResolveHook registers a hook called after every resolution.
func WithResolveHook(hook ResolveHook) Option {
	return func(f *Factory) { f.hook = hook }
}

// Factory maps agent names to configured models. It holds no model
// instances; every call constructs a new client.
type Factory struct {
	catalog    Catalog
	getenv     func(string) string
	httpClient *http.Client
	hook       ResolveHook
	logger     *slog.Logger
}

// NewFactory validates catalog and returns a Factory over it.
func NewFactory(catalog Catalog, logger *slog.Logger, opts ...Option) (*Factory, error) {
	if err := catalog.Validate(); err != nil {
		return nil, err
	}

	f := &Factory{
		catalog:    catalog,
		getenv:     os.Getenv,
		httpClient: http.DefaultClient,
		logger:     logger.With("system", "llm"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Agents returns the configured agent names in sorted order.
func (f *Factory) Agents() []string {
	return slices.Sorted(maps.Keys(f.catalog.Agents))
}

// Resolve looks up agent and produces its Binding. It fails with
// dto.ErrConfig when the agent or its provider is not configured, when no
// model is set, or when the provider's key variable is unset.
func (f *Factory) Resolve(agent string) (Binding, error) {
	b, err := f.resolve(agent)
	if f.hook != nil {
		f.hook(agent, b.Provider.Kind, err)
	}
	return b, err
}

func (f *Factory) resolve(agent string) (Binding, error) {
	ac, ok := f.catalog.Agents[agent]
	if !ok {
		return Binding{}, fmt.Errorf("%w: no provider mapping for agent %q", dto.ErrConfig, agent)
	}

	pc, ok := f.catalog.Providers[ac.Provider]
	if !ok {
		return Binding{}, fmt.Errorf("%w: agent %s: unknown provider %q", dto.ErrConfig, agent, ac.Provider)
	}

	b := Binding{
		Agent:        agent,
		ProviderName: ac.Provider,
		Provider:     pc,
		Params:       pc.Defaults.Merge(ac.Params),
		OutputSchema: ac.OutputSchema,
	}

	if b.Params.Model == "" {
		return b, fmt.Errorf("%w: agent %s: model not set", dto.ErrConfig, agent)
	}

	if pc.Kind.RequiresKey() {
		b.APIKey = f.getenv(pc.KeyEnv)
		if b.APIKey == "" {
			return b, fmt.Errorf("%w: agent %s: environment variable %s is not set", dto.ErrConfig, agent, pc.KeyEnv)
		}
	}

	return b, nil
}

// GetModelForAgent returns a configured model for agent.
func (f *Factory) GetModelForAgent(agent string) (Model, error) {
	m, _, err := f.ForAgent(agent)
	return m, err
}

// ForAgent returns a configured model for agent along with the merged
// parameters it was built with.
func (f *Factory) ForAgent(agent string) (Model, Params, error) {
	b, err := f.Resolve(agent)
	if err != nil {
		return nil, Params{}, err
	}

	var m Model
	switch b.Provider.Kind {
	case KindAnthropic:
		m = newAnthropic(b, f.httpClient)
	case KindOpenAI:
		m = newOpenAI(b, f.httpClient)
	case KindOllama:
		m, err = newOllama(b, f.httpClient)
	case KindGoogle:
		m = newGoogle(b, f.httpClient)
	default:
		err = fmt.Errorf("%w: unknown provider kind %q", dto.ErrConfig, b.Provider.Kind)
	}
	if err != nil {
		return nil, Params{}, err
	}

	f.logger.Debug(
		"model resolved",
		"agent", agent,
		"provider", b.ProviderName,
		"kind", b.Provider.Kind,
		"model", b.Params.Model,
	)
	return m, b.Params, nil
}
