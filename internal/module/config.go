package module

import (
	"errors"
	"fmt"
	"time"
)

// Default tuning values. Validate fills the interval and timeout when left
// zero; the restart defaults are applied where descriptors are decoded, so an
// explicit zero can still mean "never restart automatically".
const (
	DefaultHealthCheckInterval = 30 * time.Second
	DefaultHealthCheckTimeout  = 10 * time.Second
	DefaultMaxRestartAttempts  = 3
	DefaultRestartDelay        = 5 * time.Second
)

// Config is the declarative description of a module, immutable once
// validated. The orchestrator treats the Config payload as opaque and hands
// it to the module's Initialize.
type Config struct {
	// Name is the unique registry key.
	Name string `mapstructure:"name" json:"name"`
	// Factory names the registered constructor; defaults to Name.
	Factory string `mapstructure:"factory" json:"factory"`
	// Enabled modules participate in StartAll; disabled ones are skipped.
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	// Settings is the opaque payload passed to Initialize.
	Settings map[string]any `mapstructure:"settings" json:"settings,omitempty"`
	// Dependencies lists module names that must be Running before this
	// module starts.
	Dependencies []string `mapstructure:"dependencies" json:"dependencies,omitempty"`
	// StartupOrder and ShutdownOrder sort modules ascending; ties keep
	// registration order.
	StartupOrder  int `mapstructure:"startup_order" json:"startup_order"`
	ShutdownOrder int `mapstructure:"shutdown_order" json:"shutdown_order"`
	// HealthCheckInterval is the pause between health-check iterations.
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval" json:"health_check_interval"`
	// HealthCheckTimeout bounds a single HealthCheck call.
	HealthCheckTimeout time.Duration `mapstructure:"health_check_timeout" json:"health_check_timeout"`
	// MaxRestartAttempts bounds automatic restarts; see Info.CanRestart.
	MaxRestartAttempts int `mapstructure:"max_restart_attempts" json:"max_restart_attempts"`
	// RestartDelay is the pause between stopping and restarting a module.
	RestartDelay time.Duration `mapstructure:"restart_delay" json:"restart_delay"`
}

// Validate checks field invariants and fills in defaults for zero values.
func (c *Config) Validate() error {
	if c.Name == "" {
		return errors.New("module config: name must not be empty")
	}
	if c.Factory == "" {
		c.Factory = c.Name
	}
	if c.HealthCheckInterval == 0 {
		c.HealthCheckInterval = DefaultHealthCheckInterval
	}
	if c.HealthCheckInterval < time.Second {
		return fmt.Errorf("module config %q: health_check_interval must be at least 1s, got %s", c.Name, c.HealthCheckInterval)
	}
	if c.HealthCheckTimeout == 0 {
		c.HealthCheckTimeout = DefaultHealthCheckTimeout
	}
	if c.HealthCheckTimeout < 0 {
		return fmt.Errorf("module config %q: health_check_timeout must not be negative", c.Name)
	}
	if c.MaxRestartAttempts < 0 {
		return fmt.Errorf("module config %q: max_restart_attempts must not be negative", c.Name)
	}
	if c.RestartDelay < 0 {
		return fmt.Errorf("module config %q: restart_delay must not be negative", c.Name)
	}
	return nil
}
