package api

import (
	"github.com/cleverhoods/sagecompass-sub001/internal/prompts"
	"github.com/cleverhoods/sagecompass-sub001/internal/runs"
	"github.com/cleverhoods/sagecompass-sub001/internal/workflow"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Prompts  prompts.System
	Runs     runs.System
	Workflow *workflow.Runtime
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(runtime *Runtime) *Domain {
	promptsSystem := prompts.New(
		runtime.Database.Connection(),
		runtime.Logger,
		runtime.Pagination,
	)

	wf := &workflow.Runtime{
		Models:     runtime.Models,
		Prompts:    promptsSystem,
		Tools:      runtime.Tools,
		Guardrails: runtime.Guardrails.Config,
		Policy:     runtime.Guardrails.Policy,
		Recorder:   runtime.Recorder,
		Monitor:    runtime.Metrics,
		Logger:     runtime.Logger.With("workflow", "run"),
		Schemas:    runtime.Schemas,
	}

	runsSystem := runs.New(
		runtime.Database.Connection(),
		wf,
		runtime.Storage,
		runtime.Logger,
		runtime.Pagination,
	)

	return &Domain{
		Prompts:  promptsSystem,
		Runs:     runsSystem,
		Workflow: wf,
	}
}
