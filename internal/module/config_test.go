package module

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestConfigValidateDefaults verifies zero durations are filled in and the
// factory name falls back to the module name.
func TestConfigValidateDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{Name: "quotes", Enabled: true}
	require.NoError(t, cfg.Validate())
	require.Equal(t, "quotes", cfg.Factory)
	require.Equal(t, DefaultHealthCheckInterval, cfg.HealthCheckInterval)
	require.Equal(t, DefaultHealthCheckTimeout, cfg.HealthCheckTimeout)
}

// TestConfigValidateRejects covers each invariant violation.
func TestConfigValidateRejects(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		cfg  Config
	}{
		{"empty name", Config{}},
		{"sub-second interval", Config{Name: "m", HealthCheckInterval: 100 * time.Millisecond}},
		{"negative timeout", Config{Name: "m", HealthCheckTimeout: -time.Second}},
		{"negative restarts", Config{Name: "m", MaxRestartAttempts: -1}},
		{"negative delay", Config{Name: "m", RestartDelay: -time.Second}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := tc.cfg
			require.Error(t, cfg.Validate())
		})
	}
}
