// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cleverhoods/sagecompass-sub001/internal/config"
	"github.com/cleverhoods/sagecompass-sub001/internal/infrastructure"
	"github.com/cleverhoods/sagecompass-sub001/pkg/auth"
	"github.com/cleverhoods/sagecompass-sub001/pkg/middleware"
	"github.com/cleverhoods/sagecompass-sub001/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware.
// When authentication is enabled the issuer is discovered before the module
// is returned.
func NewModule(ctx context.Context, cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, error) {
	runtime := NewRuntime(cfg, infra)
	domain := NewDomain(runtime)

	mux := http.NewServeMux()
	registerRoutes(mux, domain, runtime)

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Logger(runtime.Logger))
	m.Use(middleware.BodyLimit(cfg.API.MaxBodySizeBytes()))

	if cfg.Auth.Enabled {
		verifier, err := auth.NewVerifier(ctx, &cfg.Auth)
		if err != nil {
			return nil, fmt.Errorf("auth init failed: %w", err)
		}
		m.Use(auth.Middleware(verifier, runtime.Logger))
	}

	return m, nil
}
