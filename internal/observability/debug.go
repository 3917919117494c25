package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"strconv"
	"time"
)

const (
	EnvDebugHost = "SAGECOMPASS_DEBUG_HOST"
	EnvDebugPort = "SAGECOMPASS_DEBUG_PORT"
)

// Debugger is a running profiling endpoint.
type Debugger struct {
	server   *http.Server
	listener net.Listener
	logger   *slog.Logger
}

// Addr returns the bound address.
func (d *Debugger) Addr() string {
	return d.listener.Addr().String()
}

// Close stops the endpoint.
func (d *Debugger) Close(ctx context.Context) error {
	return d.server.Shutdown(ctx)
}

// AttachDebugger serves net/http/pprof on SAGECOMPASS_DEBUG_HOST and
// SAGECOMPASS_DEBUG_PORT. When either variable is unset it does nothing and
// returns a nil Debugger. The endpoint stops when ctx is cancelled.
func AttachDebugger(ctx context.Context, logger *slog.Logger) (*Debugger, error) {
	return attachDebugger(ctx, logger, os.Getenv)
}

func attachDebugger(ctx context.Context, logger *slog.Logger, getenv func(string) string) (*Debugger, error) {
	host := getenv(EnvDebugHost)
	port := getenv(EnvDebugPort)
	if host == "" || port == "" {
		return nil, nil
	}
	if p, err := strconv.Atoi(port); err != nil || p < 0 || p > 65535 {
		return nil, fmt.Errorf("invalid %s: %q", EnvDebugPort, port)
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(host, port))
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	d := &Debugger{
		server:   &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second},
		listener: ln,
		logger:   Component(logger, "debugger"),
	}

	go func() {
		if err := d.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Error("debugger stopped", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.server.Shutdown(shutdownCtx)
	}()

	d.logger.Info("debugger attached", "addr", d.Addr())
	return d, nil
}
