package config_test

import (
	"testing"

	"github.com/lambda-feedback/procshell/config"
	"github.com/lambda-feedback/procshell/internal/execution/launch"
	"github.com/lambda-feedback/procshell/internal/execution/shell"
	"github.com/lambda-feedback/procshell/util/conf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg, err := conf.Parse[config.Config](conf.ParseOptions{
		Defaults:  config.DefaultConfig,
		EnvPrefix: "PROCSHELL_CONFIG_TEST_",
	})

	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "production", cfg.LogFormat)
	assert.Equal(t, shell.DefaultConfig, cfg.Shell)
	assert.Equal(t, launch.DefaultConfig, cfg.Launch)
}

func TestConfig_FromEnv(t *testing.T) {
	t.Setenv("PROCSHELL_CONFIG_TEST_SHELL__KILL_ON_TIMEOUT", "true")
	t.Setenv("PROCSHELL_CONFIG_TEST_LAUNCH__LOG_LEVEL_VAR", "MAVEN_OPTS")

	cfg, err := conf.Parse[config.Config](conf.ParseOptions{
		Defaults:  config.DefaultConfig,
		EnvPrefix: "PROCSHELL_CONFIG_TEST_",
	})

	require.NoError(t, err)
	assert.True(t, cfg.Shell.KillOnTimeout)
	assert.Equal(t, "MAVEN_OPTS", cfg.Launch.LogLevelVar)
	assert.Equal(t, 100, cfg.Shell.QueueCapacity)
}
