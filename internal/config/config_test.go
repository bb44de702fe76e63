package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func setStaticEnv(t *testing.T) {
	t.Setenv("AUTH_PROVIDER", "static")
	t.Setenv("AUTH_DOMAIN", "@example.com")
	t.Setenv("AUTH_ADMIN_EMAIL", "admin@example.com")
	t.Setenv("STATIC_USER_EMAIL", "dev@example.com")
	t.Setenv("SESSION_SECRET", testSecret)
}

func TestLoadDefaults(t *testing.T) {
	setStaticEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "example.com", cfg.Auth.Domain, "leading @ is stripped")
	assert.Equal(t, ProviderStatic, cfg.Auth.Provider)
	assert.Empty(t, cfg.Database.DSN)
	assert.Empty(t, cfg.Redis.Address)
	assert.Equal(t, 30*time.Second, cfg.Redis.StatsCacheTTL)
	assert.Equal(t, 12*time.Hour, cfg.Session.TTL)
	assert.True(t, cfg.Session.SecureCookie)
	assert.Equal(t, 256, cfg.Analytics.QueueSize)
	assert.Zero(t, cfg.Analytics.Retention)
	assert.Equal(t, slog.LevelInfo, cfg.Log.SlogLevel())
}

func TestLoadOverrides(t *testing.T) {
	setStaticEnv(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("SESSION_SECURE_COOKIE", "false")
	t.Setenv("ANALYTICS_RETENTION", "720h")
	t.Setenv("REDIS_ADDRESS", "localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, slog.LevelDebug, cfg.Log.SlogLevel())
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.False(t, cfg.Session.SecureCookie)
	assert.Equal(t, 720*time.Hour, cfg.Analytics.Retention)
	assert.Equal(t, "localhost:6379", cfg.Redis.Address)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	setStaticEnv(t)
	t.Setenv("SERVER_PORT", "not-a-port")
	t.Setenv("SESSION_TTL", "forever")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 12*time.Hour, cfg.Session.TTL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		valid bool
	}{
		{name: "static ok", valid: true},
		{name: "short secret", env: map[string]string{"SESSION_SECRET": "short"}},
		{name: "missing admin", env: map[string]string{"AUTH_ADMIN_EMAIL": ""}},
		{name: "bad admin email", env: map[string]string{"AUTH_ADMIN_EMAIL": "admin"}},
		{name: "missing domain", env: map[string]string{"AUTH_DOMAIN": ""}},
		{name: "unknown provider", env: map[string]string{"AUTH_PROVIDER": "saml"}},
		{name: "google without client", env: map[string]string{"AUTH_PROVIDER": "google"}},
		{
			name: "google with client",
			env: map[string]string{
				"AUTH_PROVIDER":        "google",
				"GOOGLE_CLIENT_ID":     "id.apps.googleusercontent.com",
				"GOOGLE_CLIENT_SECRET": "secret",
			},
			valid: true,
		},
		{name: "static without user", env: map[string]string{"STATIC_USER_EMAIL": ""}},
		{name: "bad port", env: map[string]string{"SERVER_PORT": "70000"}},
		{name: "bad log level", env: map[string]string{"LOG_LEVEL": "loud"}},
		{name: "zero queue", env: map[string]string{"ANALYTICS_QUEUE_SIZE": "0"}},
		{name: "negative retention", env: map[string]string{"ANALYTICS_RETENTION": "-1h"}},
		{name: "zero session ttl", env: map[string]string{"SESSION_TTL": "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setStaticEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
