package config

import (
	"testing"
	"time"

	"botscan/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "GIN_MODE", "REMOTE_API_URL", "DATABASE_URL", "LOG_LEVEL", "NARRATION_SCALE"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "http://localhost:5000/api", cfg.Remote.URL)
	assert.Equal(t, 15*time.Second, cfg.Remote.Timeout)
	assert.True(t, cfg.Database.Offline())
	assert.Equal(t, 1.0, cfg.Session.NarrationScale)
	assert.Equal(t, 5*time.Second, cfg.Session.NoticeTTL)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.True(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.Profiling.Enabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("REMOTE_TIMEOUT", "2s")
	t.Setenv("DATABASE_URL", "postgres://localhost/botscan")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("NARRATION_SCALE", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Remote.Timeout)
	assert.False(t, cfg.Database.Offline())
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, 0.0, cfg.Session.NarrationScale)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"bad url", "REMOTE_API_URL", "not a url"},
		{"bad gin mode", "GIN_MODE", "loud"},
		{"bad port", "PORT", "http"},
		{"bad level", "LOG_LEVEL", "verbose"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}
}
