package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openquant/collector/internal/logging"
	"github.com/openquant/collector/internal/module"
)

func loggingOptions() logging.Options {
	return logging.Options{Level: "error"}
}

// TestAppLifecycle assembles the full default module set on in-memory
// backends, starts it, and shuts it down again. Built once per test binary:
// the lifecycle sink registers against the default Prometheus registry.
func TestAppLifecycle(t *testing.T) {
	cfg := Config{
		Logging: loggingOptions(),
		Manager: ManagerConfig{
			StartConcurrency: 2,
			ShutdownTimeout:  10 * time.Second,
			CriticalModules:  []string{"storage"},
			JobBuffer:        4,
		},
		Collector: map[string]any{"workers": 1},
		Scheduler: map[string]any{
			"jobs": []any{
				map[string]any{
					"name": "cpi-monthly",
					"spec": "@hourly",
					"source": map[string]any{
						"name":     "cpi",
						"url":      "http://127.0.0.1:1/cpi",
						"series":   "CPI-U",
						"selector": "td.value",
					},
				},
			},
		},
		API: map[string]any{"addr": "127.0.0.1:0"},
	}
	cfg.Modules = defaultModules(cfg)

	ctx := context.Background()
	a, err := New(ctx, cfg)
	require.NoError(t, err)

	require.NoError(t, a.Start(ctx))
	require.True(t, a.Manager.IsRunning())

	status := a.Manager.Status()
	for _, name := range []string{"storage", "archive", "queue", "collector", "scheduler", "api"} {
		snap, ok := status[name]
		require.True(t, ok, "module %s missing from status", name)
		require.Equal(t, module.StateRunning.String(), snap.State, "module %s", name)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Manager.ShutdownTimeout)
	defer cancel()
	require.NoError(t, a.Shutdown(shutdownCtx))
	require.False(t, a.Manager.IsRunning())
}

func TestDefaultModulesOmitsIdleScheduler(t *testing.T) {
	cfg := Config{}
	for _, d := range defaultModules(cfg) {
		require.NotEqual(t, "scheduler", d.Name)
	}
}

func TestDescriptorModuleConfigDefaults(t *testing.T) {
	d := Descriptor{Name: "collector"}
	cfg := d.moduleConfig()
	require.True(t, cfg.Enabled)
	require.Equal(t, module.DefaultMaxRestartAttempts, cfg.MaxRestartAttempts)
	require.Equal(t, module.DefaultRestartDelay, cfg.RestartDelay)

	disabled := false
	zero := 0
	d = Descriptor{Name: "collector", Enabled: &disabled, MaxRestartAttempts: &zero}
	cfg = d.moduleConfig()
	require.False(t, cfg.Enabled)
	require.Zero(t, cfg.MaxRestartAttempts)
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	cfg := Config{
		Logging: loggingOptions(),
		Storage: StorageConfig{Driver: "oracle"},
	}
	_, err := New(context.Background(), cfg)
	require.ErrorContains(t, err, `unknown storage driver "oracle"`)
}
