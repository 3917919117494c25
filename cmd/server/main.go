package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cleverhoods/sagecompass-sub001/internal/config"
	"github.com/cleverhoods/sagecompass-sub001/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := NewServer(ctx, cfg)
	if err != nil {
		log.Fatal("server init failed:", err)
	}
	logger := srv.infra.Logger

	logger.Info(
		"sagecompass starting",
		"version", cfg.Version,
		"addr", cfg.Server.Addr(),
		"env", cfg.Env(),
	)

	if _, err := observability.AttachDebugger(ctx, logger); err != nil {
		logger.Error("debugger attach failed", "error", err)
	}

	if err := srv.Start(); err != nil {
		log.Fatal("server start failed:", err)
	}

	<-ctx.Done()

	if err := srv.Shutdown(cfg.ShutdownTimeoutDuration()); err != nil {
		logger.Error("shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("sagecompass stopped")
}
