package config

import (
	"maps"

	"github.com/lambda-feedback/procshell/internal/execution/launch"
	"github.com/lambda-feedback/procshell/internal/execution/shell"
	"github.com/lambda-feedback/procshell/util/conf"
)

type Config struct {
	// LogLevel is the log level for the application
	LogLevel string `conf:"log_level"`

	// LogFormat is the log format for the application
	LogFormat string `conf:"log_format"`

	// Shell is the configuration of created shells
	Shell shell.Config `conf:"shell"`

	// Launch is the configuration of the command environment
	Launch launch.Config `conf:"launch"`
}

var DefaultConfig = defaults()

func defaults() conf.DefaultConfig {
	cfg := conf.DefaultConfig{
		"log_level":  "info",
		"log_format": "production",
	}

	maps.Copy(cfg, conf.MergeDefaults("shell", conf.DefaultConfig{
		"wait_ancillary": shell.DefaultConfig.WaitAncillary,
		"queue_capacity": shell.DefaultConfig.QueueCapacity,
		"echo_prefix":    shell.DefaultConfig.EchoPrefix,
		"encoding":       shell.DefaultConfig.Encoding,
	}))

	maps.Copy(cfg, conf.MergeDefaults("launch", conf.DefaultConfig{
		"log_level_prefix": launch.DefaultConfig.LogLevelPrefix,
		"log_level":        launch.DefaultConfig.LogLevel,
		"debug_time_var":   launch.DefaultConfig.DebugTimeVar,
	}))

	return cfg
}
