package workflow

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cleverhoods/sagecompass-sub001/internal/ambiguity"
	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
	"github.com/cleverhoods/sagecompass-sub001/internal/events"
	"github.com/cleverhoods/sagecompass-sub001/internal/guardrails"
	"github.com/cleverhoods/sagecompass-sub001/internal/llm"
	"github.com/cleverhoods/sagecompass-sub001/internal/phases"
	"github.com/cleverhoods/sagecompass-sub001/internal/prompts"
	"github.com/cleverhoods/sagecompass-sub001/internal/state"
	"github.com/cleverhoods/sagecompass-sub001/internal/tools"
)

// Node owners recorded on events and error entries.
const (
	OwnerGuardrails    = state.OwnerGuardrails
	OwnerAmbiguityScan = state.OwnerAmbiguityScan
	OwnerClarification = state.OwnerClarification
	OwnerPhases        = state.OwnerPhaseNodes
	OwnerTools         = state.OwnerNodes
)

// Node is a unit of work scheduled by the orchestration runtime.
type Node func(ctx context.Context, s state.State) (state.State, error)

// Owned wraps node so that its result may only change the top-level fields
// writers own. A violating result is discarded: the wrapped node returns
// its input state and an error wrapping dto.ErrValidation.
func Owned(node Node, writers ...string) Node {
	return func(ctx context.Context, s state.State) (state.State, error) {
		next, err := node(ctx, s)
		if err != nil {
			return next, err
		}
		if err := state.ValidateWrite(s, next, writers...); err != nil {
			return s, err
		}
		return next, nil
	}
}

// ModelSource resolves the model bound to an agent.
type ModelSource interface {
	ForAgent(agent string) (llm.Model, llm.Params, error)
}

// Monitor receives guardrail verdicts and instruments resolved models.
type Monitor interface {
	ObserveGuardrail(result dto.GuardrailResult)
	Instrument(model llm.Model) llm.Model
}

// Runtime bundles the dependencies that workflow nodes require.
// It is constructed by higher-level composition code from Infrastructure and Domain systems.
type Runtime struct {
	Models     ModelSource
	Prompts    prompts.Source
	Tools      *tools.Registry
	Guardrails guardrails.Config
	Policy     *guardrails.Policy
	Recorder   *events.Recorder
	Monitor    Monitor
	Logger     *slog.Logger

	// Schemas overrides the bundled output schema per phase.
	Schemas map[string]*phases.Schema

	// Ambiguity selects the scan items that hold a phase for
	// clarification. The zero value means ambiguity.DefaultThresholds.
	Ambiguity ambiguity.Thresholds

	builtins sync.Map
}

func (rt *Runtime) recorder(owner string) *events.Recorder {
	if rt.Recorder == nil {
		return events.NewRecorder(owner)
	}
	return rt.Recorder.WithOwner(owner)
}

func (rt *Runtime) schema(phase string) (*phases.Schema, error) {
	if s, ok := rt.Schemas[phase]; ok {
		return s, nil
	}
	if cached, ok := rt.builtins.Load(phase); ok {
		return cached.(*phases.Schema), nil
	}

	s, err := phases.BuiltinSchema(phase)
	if err != nil {
		return nil, err
	}
	rt.builtins.Store(phase, s)
	return s, nil
}

func (rt *Runtime) thresholds() ambiguity.Thresholds {
	if rt.Ambiguity == (ambiguity.Thresholds{}) {
		return ambiguity.DefaultThresholds()
	}
	return rt.Ambiguity
}

func (rt *Runtime) observe(result dto.GuardrailResult) {
	if rt.Monitor != nil {
		rt.Monitor.ObserveGuardrail(result)
	}
}

func (rt *Runtime) model(agent string) (llm.Model, error) {
	model, _, err := rt.Models.ForAgent(agent)
	if err != nil {
		return nil, err
	}
	if rt.Monitor != nil {
		model = rt.Monitor.Instrument(model)
	}
	return guardrails.NewGuard(model, rt.Guardrails, rt.Policy, rt.Logger), nil
}
