package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testNested struct {
	Debug    bool   `conf:"debug"`
	Capacity int    `conf:"capacity"`
	Name     string `conf:"name"`
}

type testConfig struct {
	LogLevel string     `conf:"log_level"`
	Nested   testNested `conf:"nested"`
}

func TestTransformEnv(t *testing.T) {
	assert.Equal(t, "log_level", transformEnv("TEST_LOG_LEVEL", "TEST_"))
	assert.Equal(t, "nested.debug", transformEnv("TEST_NESTED__DEBUG", "TEST_"))
	assert.Equal(t, "nested.debug", transformEnv("NESTED__DEBUG", ""))
}

func TestMergeDefaults(t *testing.T) {
	merged := MergeDefaults("nested", DefaultConfig{"debug": true}, DefaultConfig{"capacity": 3})

	assert.Equal(t, DefaultConfig{"nested.debug": true, "nested.capacity": 3}, merged)
}

func TestParse_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"log_level":"warn","nested":{"capacity":10,"name":"file"}}`), 0o600))

	t.Setenv("PROCSHELL_TEST_NESTED__NAME", "env")

	cfg, err := Parse[testConfig](ParseOptions{
		Defaults: DefaultConfig{
			"log_level":       "info",
			"nested.debug":    true,
			"nested.capacity": 1,
		},
		EnvPrefix: "PROCSHELL_TEST_",
		FileName:  path,
	})

	require.NoError(t, err)
	assert.Equal(t, testConfig{
		LogLevel: "warn",
		Nested: testNested{
			Debug:    true,
			Capacity: 10,
			Name:     "env",
		},
	}, cfg)
}

func TestParse_MissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Parse[testConfig](ParseOptions{
		Defaults:  DefaultConfig{"log_level": "info"},
		EnvPrefix: "PROCSHELL_TEST_",
		FileName:  filepath.Join(t.TempDir(), "missing.json"),
	})

	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
}
