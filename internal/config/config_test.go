package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MINIO_ACCESS_KEY_ID", "minio")
	t.Setenv("MINIO_SECRET_ACCESS_KEY", "minio-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, int64(10<<20), cfg.API.MaxResumeBytes)
	assert.False(t, cfg.Demo.Enabled)
	assert.Empty(t, cfg.AI.ProviderKey())
}

func TestLoadFromEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("API_PORT", "9090")
	t.Setenv("AI_PROVIDER", " Gemini ")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("AUTH_ACCESS_TTL", "5m")
	t.Setenv("DEMO_ENABLED", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.API.Port)
	assert.Equal(t, "gemini", cfg.AI.Provider)
	assert.Equal(t, "g-key", cfg.AI.ProviderKey())
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.True(t, cfg.Demo.Enabled)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.API.AllowedOrigins())
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	t.Run("missing minio credentials", func(t *testing.T) {
		t.Setenv("MINIO_ACCESS_KEY_ID", "")
		t.Setenv("MINIO_SECRET_ACCESS_KEY", "")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("unknown provider", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("AI_PROVIDER", "anthropic")
		_, err := Load()
		assert.ErrorContains(t, err, "unsupported ai provider")
	})
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, Name: "recruify", User: "u", Password: "p", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=recruify sslmode=disable", d.DSN())
}
