package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrigins(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"comma list", "http://localhost:3000, https://showcase.dev/", []string{"http://localhost:3000", "https://showcase.dev"}},
		{"json list", `["http://a.dev","http://b.dev"]`, []string{"http://a.dev", "http://b.dev"}},
		{"skips blanks", "http://a.dev,,", []string{"http://a.dev"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseOrigins(tt.raw))
		})
	}
}

func TestLoad_NoSecretDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("SECRET_KEY", "")

	cfg := Load()

	assert.Empty(t, cfg.Gemini.APIKey)
	assert.Empty(t, cfg.Auth.SecretKey)
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY is required")
	assert.Contains(t, err.Error(), "SECRET_KEY is required")
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("SECRET_KEY", "secret")
	t.Setenv("GEMINI_AGENT_MODEL", "google:gemini-2.0-flash")
	t.Setenv("GEMINI_REQUESTS_PER_MINUTE", "12")
	t.Setenv("WORKER_POLL_INTERVAL", "3s")
	t.Setenv("WORKER_STALE_AFTER", "45m")
	t.Setenv("WORKER_SHUTDOWN_TIMEOUT", "")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/showcase")

	cfg := Load()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "gemini-2.0-flash", cfg.Gemini.AgentModel)
	assert.Equal(t, 12, cfg.Gemini.RequestsPerMinute)
	assert.Equal(t, "3s", cfg.Worker.PollInterval.String())
	assert.Equal(t, 45*time.Minute, cfg.Worker.StaleAfter)
	assert.Equal(t, 30*time.Second, cfg.Worker.ShutdownTimeout)
	assert.Equal(t, "postgres://u:p@db:5432/showcase", cfg.GetDatabaseDSN())
	assert.Equal(t, "/api/v1", cfg.Server.APIPrefix)
}

func TestValidate_UnknownStorageBackend(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("SECRET_KEY", "secret")
	t.Setenv("STORAGE_BACKEND", "ftp")

	err := Load().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown STORAGE_BACKEND "ftp"`)
}
