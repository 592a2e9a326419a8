package archive

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/openquant/collector/internal/collector"
	"github.com/openquant/collector/internal/module"
)

// Module wraps an archive backend in the module lifecycle.
type Module struct {
	archive collector.Archive
	logger  *zap.Logger
}

// NewModule creates the archive module around an existing backend.
func NewModule(a collector.Archive, logger *zap.Logger) (*Module, error) {
	if a == nil {
		return nil, fmt.Errorf("archive: backend is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Module{archive: a, logger: logger.Named("archive")}, nil
}

// Name implements module.Module.
func (m *Module) Name() string { return "archive" }

// Initialize implements module.Module.
func (m *Module) Initialize(context.Context, map[string]any) error { return nil }

// Start implements module.Module.
func (m *Module) Start(context.Context) error {
	m.logger.Info("payload archive ready")
	return nil
}

// Stop implements module.Module. The backend client stays open so a restart
// does not need to rebuild it; the app wiring owns the connection.
func (m *Module) Stop(context.Context) error {
	m.logger.Info("payload archive released")
	return nil
}

// HealthCheck reports healthy; archive writes fail loudly at the call site.
func (m *Module) HealthCheck(context.Context) (module.Health, error) {
	return module.Health{Status: module.StatusHealthy}, nil
}
