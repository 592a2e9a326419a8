// Package storage owns the lifecycle of the record store shared by the
// collection pipeline.
package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/openquant/collector/internal/collector"
	"github.com/openquant/collector/internal/module"
)

// Module wraps a record store in the module lifecycle so dependents only
// start once the store is reachable and health checks keep probing it.
type Module struct {
	store  collector.RecordStore
	logger *zap.Logger
}

// New creates the storage module around an existing store.
func New(store collector.RecordStore, logger *zap.Logger) (*Module, error) {
	if store == nil {
		return nil, fmt.Errorf("storage: record store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Module{store: store, logger: logger.Named("storage")}, nil
}

// Name implements module.Module.
func (m *Module) Name() string { return "storage" }

// Initialize implements module.Module. The store is constructed by the app
// wiring, so there is nothing to decode here.
func (m *Module) Initialize(context.Context, map[string]any) error { return nil }

// Start verifies the store is reachable before dependents start.
func (m *Module) Start(ctx context.Context) error {
	if err := m.store.Ping(ctx); err != nil {
		return fmt.Errorf("storage unreachable: %w", err)
	}
	m.logger.Info("record store ready")
	return nil
}

// Stop implements module.Module. The store itself stays open so a restart
// can ping it again; the app wiring owns the connection pool.
func (m *Module) Stop(context.Context) error {
	m.logger.Info("record store released")
	return nil
}

// HealthCheck pings the store.
func (m *Module) HealthCheck(ctx context.Context) (module.Health, error) {
	if err := m.store.Ping(ctx); err != nil {
		return module.Health{}, fmt.Errorf("ping record store: %w", err)
	}
	return module.Health{Status: module.StatusHealthy}, nil
}
