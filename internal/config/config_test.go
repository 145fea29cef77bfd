package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "!", cfg.CommandPrefix)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "levels.db", cfg.DatabaseDSN)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 10*time.Second, cfg.TemporaryMessageTTL)
	assert.Equal(t, 5*time.Second, cfg.EffectTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.DashboardEnabled())
}

func TestLoad_Dashboard(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DASHBOARD_CLIENT_ID", "123")
	t.Setenv("DASHBOARD_CLIENT_SECRET", "secret")
	t.Setenv("DASHBOARD_CALLBACK_URL", "https://example.com/auth/discord/callback")
	t.Setenv("SESSION_SECRET", "0123456789abcdef0123456789abcdef")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.True(t, cfg.DashboardEnabled())
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	content := "DISCORD_TOKEN=from-file\nCOMMAND_PREFIX=?\nDATABASE_DSN=file.db\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	// t.Setenv restores the previous values once the file has populated them
	for _, k := range []string{"DISCORD_TOKEN", "COMMAND_PREFIX"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	t.Setenv("DATABASE_DSN", "env.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.DiscordToken)
	assert.Equal(t, "?", cfg.CommandPrefix)
	assert.Equal(t, "env.db", cfg.DatabaseDSN)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"missing token":  {"DISCORD_TOKEN": ""},
		"unknown driver": {"DISCORD_TOKEN": "token", "DATABASE_DRIVER": "mysql"},
		"bad channel":    {"DISCORD_TOKEN": "token", "PERSISTENT_CHANNEL_ID": "general"},
		"bad duration":   {"DISCORD_TOKEN": "token", "EFFECT_TIMEOUT": "soon"},
		"bad level":      {"DISCORD_TOKEN": "token", "LOG_LEVEL": "loud"},
		"dashboard without secret": {
			"DISCORD_TOKEN":          "token",
			"DASHBOARD_CLIENT_ID":    "123",
			"DASHBOARD_CALLBACK_URL": "https://example.com/auth/discord/callback",
			"SESSION_SECRET":         "0123456789abcdef0123456789abcdef",
		},
		"short session secret": {
			"DISCORD_TOKEN":           "token",
			"DASHBOARD_CLIENT_ID":     "123",
			"DASHBOARD_CLIENT_SECRET": "secret",
			"DASHBOARD_CALLBACK_URL":  "https://example.com/auth/discord/callback",
			"SESSION_SECRET":          "short",
		},
	}
	for name, vars := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range vars {
				t.Setenv(k, v)
			}
			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}
}
