package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/openquant/collector/internal/module"
)

// Module runs the HTTP server inside the module lifecycle.
type Module struct {
	orchestrator Orchestrator
	logger       *zap.Logger

	cfg      Config
	server   *http.Server
	listener net.Listener
	serveErr chan error
}

// NewModule creates an uninitialized API module.
func NewModule(orchestrator Orchestrator, logger *zap.Logger) (*Module, error) {
	if orchestrator == nil {
		return nil, fmt.Errorf("api: orchestrator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Module{orchestrator: orchestrator, logger: logger.Named("api")}, nil
}

// Name implements module.Module.
func (m *Module) Name() string { return "api" }

// Initialize decodes the server settings.
func (m *Module) Initialize(_ context.Context, config map[string]any) error {
	var cfg Config
	if err := module.DecodeSettings(config, &cfg); err != nil {
		return fmt.Errorf("api settings: %w", err)
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	m.cfg = cfg
	return nil
}

// Start binds the listener and serves in the background. Binding happens
// here, not in the serve goroutine, so a taken port fails the startup
// sequence instead of surfacing later as an unhealthy module.
func (m *Module) Start(context.Context) error {
	listener, err := net.Listen("tcp", m.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", m.cfg.Addr, err)
	}
	m.listener = listener

	server := NewServer(m.orchestrator, m.cfg, m.logger)
	m.server = &http.Server{
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	m.serveErr = make(chan error, 1)
	go func() {
		if err := m.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.serveErr <- err
		}
		close(m.serveErr)
	}()

	m.logger.Info("http server listening", zap.String("addr", listener.Addr().String()))
	return nil
}

// Stop shuts the server down gracefully.
func (m *Module) Stop(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	if err := m.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// HealthCheck reports unhealthy when the serve goroutine has exited with an
// error.
func (m *Module) HealthCheck(context.Context) (module.Health, error) {
	select {
	case err, ok := <-m.serveErr:
		if ok && err != nil {
			return module.Health{}, fmt.Errorf("http server failed: %w", err)
		}
	default:
	}
	details := map[string]any{}
	if m.listener != nil {
		details["addr"] = m.listener.Addr().String()
	}
	return module.Health{Status: module.StatusHealthy, Details: details}, nil
}

// Addr returns the bound listen address, useful when Addr was ":0".
func (m *Module) Addr() string {
	if m.listener == nil {
		return ""
	}
	return m.listener.Addr().String()
}
