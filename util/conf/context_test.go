package conf

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigContext_RoundTrip(t *testing.T) {
	ctx := ContextWithConfig(context.Background(), testConfig{LogLevel: "debug"})

	cfg, err := GetConfigFromContext[testConfig](ctx)

	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestConfigContext_Missing(t *testing.T) {
	_, err := GetConfigFromContext[testConfig](context.Background())
	assert.Error(t, err)
}

func TestConfigContext_WrongType(t *testing.T) {
	ctx := ContextWithConfig(context.Background(), "config")

	_, err := GetConfigFromContext[testConfig](ctx)
	assert.Error(t, err)
}
