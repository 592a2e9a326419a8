// Package config is responsible for initializing the application's
// configuration. It uses the Viper library to merge settings from a config
// file, environment variables, and built-in defaults into a unified view.
package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// Init sets up defaults, search paths, and environment variable mapping,
// then reads the configuration file. When cfgFile is non-empty it overrides
// the search paths and a read failure is fatal; otherwise a missing config
// file is tolerated and defaults plus environment variables apply. The
// returned path names the config file actually used, empty when none was
// found.
func Init(cfgFile string) (string, error) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Look for collector.{yaml,json,toml} in the usual places.
		viper.SetConfigName("collector")
		viper.AddConfigPath(".")                // Current working directory
		viper.AddConfigPath("/etc/collector/")  // System-wide configuration
		viper.AddConfigPath("$HOME/.collector") // User-specific configuration
	}

	setDefaults()

	// Enable Viper to read environment variables.
	viper.SetEnvPrefix("COLLECTOR") // e.g., COLLECTOR_API_ADDR=:9090
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && cfgFile == "" {
			// Proceed with defaults and environment variables.
			return "", nil
		}
		return "", err
	}
	return viper.ConfigFileUsed(), nil
}

// setDefaults seeds sensible values for every tunable so a bare deployment
// starts with in-memory backends and no scheduled jobs.
func setDefaults() {
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.development", false)

	viper.SetDefault("manager.start_concurrency", 4)
	viper.SetDefault("manager.shutdown_timeout", "30s")
	viper.SetDefault("manager.critical_modules", []string{"storage"})
	viper.SetDefault("manager.job_buffer", 64)

	viper.SetDefault("storage.driver", "memory")
	viper.SetDefault("storage.table", "records")
	viper.SetDefault("archive.driver", "memory")
	viper.SetDefault("queue.driver", "memory")

	const defaultUA = "openquant-collector/1.0 (+https://github.com/openquant/collector)"
	viper.SetDefault("collector.user_agent", defaultUA)
	viper.SetDefault("collector.workers", 2)
	viper.SetDefault("collector.topic", "records")
	viper.SetDefault("collector.fetch_timeout", "15s")
	viper.SetDefault("collector.headless_parallel", 0)
	viper.SetDefault("collector.rate_limit.default_rps", 1)
	viper.SetDefault("collector.rate_limit.default_burst", 2)

	viper.SetDefault("scheduler.run_on_start", false)

	viper.SetDefault("api.addr", ":8080")
	viper.SetDefault("api.request_timeout", "60s")
}
