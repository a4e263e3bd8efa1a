package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "dev")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, cfg.Auth.JWTAccessTTL)
	assert.Equal(t, 720*time.Hour, cfg.Notification.TTL)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.True(t, cfg.App.Development())
	assert.Empty(t, cfg.Redis.URL)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("JWT_ACCESS_TTL", "forever")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_ACCESS_TTL")
}

func TestLoad_ProdRequiresSecrets(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "real-secret")
	t.Setenv("BACKUP_CODE_PEPPER", "real-pepper")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.App.Development())
}

func TestLoad_AllowedOrigins(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.AllowedOrigins)
}
