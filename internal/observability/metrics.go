package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
	"github.com/cleverhoods/sagecompass-sub001/internal/llm"
)

// Metrics holds the service's Prometheus collectors on a private registry.
type Metrics struct {
	registry        *prometheus.Registry
	eventsTotal     *prometheus.CounterVec
	guardrailsTotal *prometheus.CounterVec
	resolvesTotal   *prometheus.CounterVec
	modelDuration   *prometheus.HistogramVec
}

// NewMetrics creates a registry with process and Go runtime collectors plus
// the service counters.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		eventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sagecompass_trace_events_total",
				Help: "Trace events recorded by kind and phase",
			},
			[]string{"kind", "phase"},
		),
		guardrailsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sagecompass_guardrail_decisions_total",
				Help: "Guardrail evaluations by outcome",
			},
			[]string{"decision", "safe", "in_scope"},
		),
		resolvesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sagecompass_model_resolutions_total",
				Help: "Agent model resolutions by provider kind and status",
			},
			[]string{"agent", "kind", "status"},
		),
		modelDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sagecompass_model_request_duration_seconds",
				Help:    "Duration of model completions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind", "model", "status"},
		),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Observe counts a recorded trace event.
func (m *Metrics) Observe(_ context.Context, ev dto.TraceEvent) {
	m.eventsTotal.WithLabelValues(string(ev.Kind), ev.Phase).Inc()
}

// ObserveGuardrail counts a guardrail verdict.
func (m *Metrics) ObserveGuardrail(r dto.GuardrailResult) {
	m.guardrailsTotal.WithLabelValues(
		string(dto.DecisionFor(r)),
		boolLabel(r.IsSafe),
		boolLabel(r.IsInScope),
	).Inc()
}

// ResolveHook returns an llm.ResolveHook counting model resolutions.
func (m *Metrics) ResolveHook() llm.ResolveHook {
	return func(agent string, kind llm.Kind, err error) {
		m.resolvesTotal.WithLabelValues(agent, string(kind), statusLabel(err)).Inc()
	}
}

// Instrument wraps model so each completion is timed.
func (m *Metrics) Instrument(model llm.Model) llm.Model {
	return &instrumented{Model: model, metrics: m}
}

type instrumented struct {
	llm.Model
	metrics *Metrics
}

func (i *instrumented) Complete(ctx context.Context, messages []llm.Message) (llm.Response, error) {
	start := time.Now()
	resp, err := i.Model.Complete(ctx, messages)
	i.metrics.modelDuration.
		WithLabelValues(string(i.Provider()), i.Name(), statusLabel(err)).
		Observe(time.Since(start).Seconds())
	return resp, err
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
