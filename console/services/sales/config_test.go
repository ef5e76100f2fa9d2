package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	conf, err := LoadConfig("")

	require.NoError(t, err)
	assert.Equal(t, "8080", conf.Port)
	assert.Equal(t, "http://localhost:8081", conf.API.BaseURL)
	assert.Equal(t, 30*time.Second, conf.API.Timeout)
	assert.Equal(t, 2*time.Second, conf.Compose.SuccessDisplayDelay)
	assert.Equal(t, 5*time.Second, conf.Compose.ErrorDismissDelay)
	assert.False(t, conf.Journal.Enabled)
	assert.Equal(t, DefaultJournalTimeout, conf.Journal.WriteTimeout)
	assert.Equal(t, "sales-console", conf.Telemetry.ServiceName)
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.localtia.test")
	t.Setenv("COMPOSE_ERROR_DISMISS_DELAY", "7s")
	t.Setenv("JOURNAL_ENABLED", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "jaeger:4318")
	t.Setenv("PORT", "9090")

	conf, err := LoadConfig("")

	require.NoError(t, err)
	assert.Equal(t, "https://api.localtia.test", conf.API.BaseURL)
	assert.Equal(t, 7*time.Second, conf.Compose.ErrorDismissDelay)
	assert.True(t, conf.Journal.Enabled)
	assert.Equal(t, "jaeger:4318", conf.Telemetry.OTLPEndpoint)
	assert.Equal(t, "9090", conf.Port)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.yaml")
	content := []byte(`
environment: development
api:
  base_url: http://backend:8081
  timeout: 10s
compose:
  success_display_delay: 1500ms
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	conf, err := LoadConfig(path)

	require.NoError(t, err)
	assert.Equal(t, "development", conf.Environment)
	assert.Equal(t, "http://backend:8081", conf.API.BaseURL)
	assert.Equal(t, 10*time.Second, conf.API.Timeout)
	assert.Equal(t, 1500*time.Millisecond, conf.Compose.SuccessDisplayDelay)
	assert.Equal(t, 5*time.Second, conf.Compose.ErrorDismissDelay)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))

	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	for _, env := range []string{"development", "production"} {
		logger, err := NewLogger(env)

		require.NoError(t, err)
		assert.NotNil(t, logger)
	}
}
