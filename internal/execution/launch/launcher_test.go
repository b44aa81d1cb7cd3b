package launch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lambda-feedback/procshell/internal/execution/shell"
	"github.com/lambda-feedback/procshell/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newLauncher(cfg Config, shellCfg shell.Config, inherited map[string]string) *Launcher {
	l := New(cfg, shellCfg, zap.NewNop())
	l.lookupEnv = func(key string) (string, bool) {
		v, ok := inherited[key]
		return v, ok
	}
	return l
}

func mavenConfig() Config {
	cfg := DefaultConfig
	cfg.LogLevelVar = "MAVEN_OPTS"
	return cfg
}

func writeEnvFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLauncher_Environment_AppendsLogLevel(t *testing.T) {
	l := newLauncher(mavenConfig(), shell.DefaultConfig, map[string]string{
		"MAVEN_OPTS": "-Xmx1g",
	})

	env, err := l.Environment(time.Now())

	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"MAVEN_OPTS": "-Xmx1g -Dorg.slf4j.simpleLogger.defaultLogLevel=off",
	}, env)
}

func TestLauncher_Environment_SetsLogLevelWithoutInheritedValue(t *testing.T) {
	l := newLauncher(mavenConfig(), shell.DefaultConfig, nil)

	env, err := l.Environment(time.Now())

	require.NoError(t, err)
	assert.Equal(t, "-Dorg.slf4j.simpleLogger.defaultLogLevel=off", env["MAVEN_OPTS"])
}

func TestLauncher_Environment_KeepsInheritedLogLevel(t *testing.T) {
	inherited := "-Dorg.slf4j.simpleLogger.defaultLogLevel=debug -Xmx1g"

	l := newLauncher(mavenConfig(), shell.DefaultConfig, map[string]string{
		"MAVEN_OPTS": inherited,
	})

	env, err := l.Environment(time.Now())

	require.NoError(t, err)
	assert.Equal(t, inherited, env["MAVEN_OPTS"])
}

func TestLauncher_Environment_DebugTime(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	shellCfg := shell.DefaultConfig
	shellCfg.Debug = true

	env, err := newLauncher(DefaultConfig, shellCfg, nil).Environment(created)

	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T12:30:00Z", env["MAVEN_EXEC_DEBUG_INIT_TIME"])
	assert.NotContains(t, env, "MAVEN_OPTS")
}

func TestLauncher_Environment_NoDebugTime(t *testing.T) {
	env, err := newLauncher(DefaultConfig, shell.DefaultConfig, nil).Environment(time.Now())

	require.NoError(t, err)
	assert.Empty(t, env)
}

func TestLauncher_Environment_LoadsEnvFiles(t *testing.T) {
	first := writeEnvFile(t, "FOO=foo\nBAR=bar\n")
	second := writeEnvFile(t, "BAR=override\nMAVEN_OPTS=-Xss4m\n")

	cfg := mavenConfig()
	cfg.EnvFiles = []string{first, second}

	env, err := newLauncher(cfg, shell.DefaultConfig, map[string]string{
		"MAVEN_OPTS": "-Xmx1g",
	}).Environment(time.Now())

	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"FOO":        "foo",
		"BAR":        "override",
		"MAVEN_OPTS": "-Xss4m -Dorg.slf4j.simpleLogger.defaultLogLevel=off",
	}, env)
}

func TestLauncher_Environment_MissingEnvFile(t *testing.T) {
	cfg := DefaultConfig
	cfg.EnvFiles = []string{filepath.Join(t.TempDir(), "missing.env")}

	_, err := newLauncher(cfg, shell.DefaultConfig, nil).Environment(time.Now())

	assert.Error(t, err)
}

func TestLauncher_Command_RunsWithOverlay(t *testing.T) {
	dir := util.Must(filepath.EvalSymlinks(t.TempDir()))

	cfg := mavenConfig()
	cfg.Dir = dir

	l := newLauncher(cfg, shell.DefaultConfig, nil)

	sh, err := l.Command([]string{"sh", "-c", `echo "$MAVEN_OPTS"; echo "$EXTRA"; pwd -P`}, map[string]string{
		"EXTRA": "extra",
	})
	require.NoError(t, err)

	lines, err := sh.RunToLines(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{
		"-Dorg.slf4j.simpleLogger.defaultLogLevel=off",
		"extra",
		dir,
	}, lines)
}
