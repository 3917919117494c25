package api

import (
	"net/http"

	"github.com/cleverhoods/sagecompass-sub001/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	runtime *Runtime,
) {
	routes.Register(
		mux,
		domain.Prompts.Handler().Routes(),
		domain.Runs.Handler().Routes(),
		newGuardrailsHandler(domain.Workflow, runtime.Logger).routes(),
		newReportsHandler(runtime.Storage, runtime.Logger, runtime.MaxListSize).routes(),
	)
}
