package queue

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/openquant/collector/internal/collector"
	"github.com/openquant/collector/internal/module"
)

// Module wraps a publisher backend in the module lifecycle.
type Module struct {
	publisher collector.Publisher
	logger    *zap.Logger
}

// NewModule creates the queue module around an existing publisher.
func NewModule(p collector.Publisher, logger *zap.Logger) (*Module, error) {
	if p == nil {
		return nil, fmt.Errorf("queue: publisher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Module{publisher: p, logger: logger.Named("queue")}, nil
}

// Name implements module.Module.
func (m *Module) Name() string { return "queue" }

// Initialize implements module.Module.
func (m *Module) Initialize(context.Context, map[string]any) error { return nil }

// Start implements module.Module.
func (m *Module) Start(context.Context) error {
	m.logger.Info("record publisher ready")
	return nil
}

// Stop implements module.Module. The publisher client stays open so a
// restart does not need to rebuild it; the app wiring owns the connection.
func (m *Module) Stop(context.Context) error {
	m.logger.Info("record publisher released")
	return nil
}

// HealthCheck reports healthy; publish failures surface per call in the
// collector.
func (m *Module) HealthCheck(context.Context) (module.Health, error) {
	return module.Health{Status: module.StatusHealthy}, nil
}
