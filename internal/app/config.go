package app

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/openquant/collector/internal/logging"
	"github.com/openquant/collector/internal/module"
)

// Config is the application-level configuration decoded from Viper. It
// covers the infrastructure backends, the orchestrator tunables, and the
// per-module settings payloads.
type Config struct {
	Logging logging.Options `mapstructure:"logging"`
	Manager ManagerConfig   `mapstructure:"manager"`
	Storage StorageConfig   `mapstructure:"storage"`
	Archive ArchiveConfig   `mapstructure:"archive"`
	Queue   QueueConfig     `mapstructure:"queue"`

	// Collector, Scheduler, and API are passed through verbatim as the
	// settings payload of the matching module.
	Collector map[string]any `mapstructure:"collector"`
	Scheduler map[string]any `mapstructure:"scheduler"`
	API       map[string]any `mapstructure:"api"`

	// Modules overrides the default module set when present.
	Modules []Descriptor `mapstructure:"modules"`
}

// ManagerConfig tunes the module orchestrator.
type ManagerConfig struct {
	StartConcurrency int           `mapstructure:"start_concurrency"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout"`
	CriticalModules  []string      `mapstructure:"critical_modules"`
	// JobBuffer sizes the channel between the scheduler and the
	// collector workers.
	JobBuffer int `mapstructure:"job_buffer"`
}

// StorageConfig selects and configures the record store backend.
type StorageConfig struct {
	// Driver is "postgres" or "memory".
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Table  string `mapstructure:"table"`
}

// ArchiveConfig selects and configures the raw payload archive.
type ArchiveConfig struct {
	// Driver is "gcs", "fs", or "memory".
	Driver string `mapstructure:"driver"`
	// Bucket names the GCS bucket for the "gcs" driver.
	Bucket string `mapstructure:"bucket"`
	// BaseDir roots the "fs" driver.
	BaseDir string `mapstructure:"base_dir"`
}

// QueueConfig selects and configures the record announcement backend.
type QueueConfig struct {
	// Driver is "pubsub" or "memory".
	Driver    string `mapstructure:"driver"`
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// Descriptor is one module entry in the config file. Pointer fields
// distinguish "unset" from an explicit zero so max_restart_attempts: 0 can
// mean "never restart automatically".
type Descriptor struct {
	Name                string         `mapstructure:"name"`
	Factory             string         `mapstructure:"factory"`
	Enabled             *bool          `mapstructure:"enabled"`
	Settings            map[string]any `mapstructure:"settings"`
	Dependencies        []string       `mapstructure:"dependencies"`
	StartupOrder        int            `mapstructure:"startup_order"`
	ShutdownOrder       int            `mapstructure:"shutdown_order"`
	HealthCheckInterval time.Duration  `mapstructure:"health_check_interval"`
	HealthCheckTimeout  time.Duration  `mapstructure:"health_check_timeout"`
	MaxRestartAttempts  *int           `mapstructure:"max_restart_attempts"`
	RestartDelay        *time.Duration `mapstructure:"restart_delay"`
}

// moduleConfig translates the descriptor into the orchestrator's Config,
// applying the defaults for fields the file leaves unset.
func (d Descriptor) moduleConfig() module.Config {
	cfg := module.Config{
		Name:                d.Name,
		Factory:             d.Factory,
		Enabled:             true,
		Settings:            d.Settings,
		Dependencies:        d.Dependencies,
		StartupOrder:        d.StartupOrder,
		ShutdownOrder:       d.ShutdownOrder,
		HealthCheckInterval: d.HealthCheckInterval,
		HealthCheckTimeout:  d.HealthCheckTimeout,
		MaxRestartAttempts:  module.DefaultMaxRestartAttempts,
		RestartDelay:        module.DefaultRestartDelay,
	}
	if d.Enabled != nil {
		cfg.Enabled = *d.Enabled
	}
	if d.MaxRestartAttempts != nil {
		cfg.MaxRestartAttempts = *d.MaxRestartAttempts
	}
	if d.RestartDelay != nil {
		cfg.RestartDelay = *d.RestartDelay
	}
	return cfg
}

// LoadConfig decodes the global Viper state into a Config and fills in the
// default module set when the file declares none.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Manager.JobBuffer <= 0 {
		cfg.Manager.JobBuffer = 64
	}
	if len(cfg.Modules) == 0 {
		cfg.Modules = defaultModules(cfg)
	}
	return cfg, nil
}

// defaultModules assembles the standard module set: storage first, then the
// archive and queue backends, the collector workers on top of all three, the
// scheduler feeding the collector, and the API last.
func defaultModules(cfg Config) []Descriptor {
	modules := []Descriptor{
		{Name: "storage", StartupOrder: 10, ShutdownOrder: 60},
		{Name: "archive", StartupOrder: 20, ShutdownOrder: 50},
		{Name: "queue", StartupOrder: 20, ShutdownOrder: 50},
		{
			Name:          "collector",
			StartupOrder:  30,
			ShutdownOrder: 30,
			Dependencies:  []string{"storage", "archive", "queue"},
			Settings:      cfg.Collector,
		},
	}
	if schedulerHasJobs(cfg.Scheduler) {
		modules = append(modules, Descriptor{
			Name:          "scheduler",
			StartupOrder:  40,
			ShutdownOrder: 10,
			Dependencies:  []string{"collector"},
			Settings:      cfg.Scheduler,
		})
	}
	modules = append(modules, Descriptor{
		Name:          "api",
		StartupOrder:  50,
		ShutdownOrder: 20,
		Settings:      cfg.API,
	})
	return modules
}

// schedulerHasJobs reports whether the scheduler settings declare at least
// one job. An idle scheduler refuses to initialize, so it is omitted from
// the default module set instead.
func schedulerHasJobs(settings map[string]any) bool {
	raw, ok := settings["jobs"]
	if !ok {
		return false
	}
	switch jobs := raw.(type) {
	case []any:
		return len(jobs) > 0
	case []map[string]any:
		return len(jobs) > 0
	default:
		return false
	}
}
