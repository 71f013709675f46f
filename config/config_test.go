package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Server: ServerConfig{
			Address:           ":8080",
			ReadTimeout:       time.Second,
			WriteTimeout:      time.Second,
			IdleTimeout:       time.Second,
			ReadHeaderTimeout: time.Second,
			ShutdownTimeout:   time.Second,
		},
		Storage: StorageConfig{
			Adapter: "memory",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

func TestLoad(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "memory", cfg.Storage.Adapter)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, int64(15), cfg.Leveling.XPPerMessage)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GUILDKIT_SERVER_ADDR", ":7070")
	t.Setenv("GUILDKIT_LEVELING_COOLDOWN", "30s")
	t.Setenv("GUILDKIT_SECURITY_API_KEYS", "a,b")
	t.Setenv("GUILDKIT_REDIS_ADDR", "redis:6379")
	t.Setenv("GUILDKIT_DISCORD_APP_ID", "123")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Address)
	assert.Equal(t, 30*time.Second, cfg.Leveling.Cooldown)
	assert.Equal(t, []string{"a", "b"}, cfg.Security.APIKeys)
	assert.Equal(t, "redis:6379", cfg.Storage.Redis.Addr)
	assert.Equal(t, "123", cfg.Discord.AppID)
	assert.Equal(t, "/api", cfg.Server.PathPrefix, "unset variables keep defaults")
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guildkit.json")
	content := `{
		"environment": "testing",
		"server": {"address": ":9090"},
		"storage": {"adapter": "memory"},
		"discord": {"app_id": "42"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, EnvTesting, cfg.Environment)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "42", cfg.Discord.AppID)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout, "defaults survive partial files")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError string
	}{
		{"valid config", func(*Config) {}, ""},
		{"invalid environment", func(c *Config) { c.Environment = "" }, "environment cannot be empty"},
		{"invalid server timeout", func(c *Config) { c.Server.ReadTimeout = 0 }, "read_timeout must be positive"},
		{"unknown adapter", func(c *Config) { c.Storage.Adapter = "etcd" }, "adapter must be one of"},
		{"sql without dsn", func(c *Config) { c.Storage.Adapter = "sql" }, "sql config"},
		{"token in production", func(c *Config) { c.Environment = EnvProduction }, "token is required in production"},
		{"token without app", func(c *Config) { c.Discord.Token = "t" }, "app_id is required"},
		{"bad app id", func(c *Config) { c.Discord.AppID = "abc" }, "app_id"},
		{"negative xp", func(c *Config) { c.Leveling.XPPerMessage = -1 }, "xp_per_message"},
		{"bad webhook", func(c *Config) { c.Webhooks.Endpoints = []string{"ftp://x"}; c.Webhooks.Timeout = time.Second }, "endpoints[0]"},
		{"rate limit zero", func(c *Config) { c.Security.EnableRateLimit = true }, "requests_per_minute"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.expectError == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestProfiles(t *testing.T) {
	tests := []struct {
		name         string
		profileName  string
		expectConfig bool
		environment  Environment
	}{
		{"development", "development", true, EnvDevelopment},
		{"testing", "testing", true, EnvTesting},
		{"staging", "staging", true, EnvStaging},
		{"production", "production", true, EnvProduction},
		{"unknown", "unknown", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadProfile(tt.profileName)
			if tt.expectConfig {
				require.NoError(t, err)
				require.NotNil(t, cfg)
				assert.Equal(t, tt.environment, cfg.Environment)
			} else {
				assert.Error(t, err)
				assert.Nil(t, cfg)
			}
		})
	}
}

func TestLoadSecretsFromEnv(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
		return p
	}
	t.Setenv("GUILDKIT_DISCORD_TOKEN_FILE", write("token", "bot-token\n"))
	t.Setenv("GUILDKIT_SQL_DSN_FILE", write("dsn", "postgres://u:p@db/guildkit"))
	t.Setenv("GUILDKIT_SECURITY_API_KEYS_FILE", write("keys", "k1\n\nk2\n"))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadSecretsFromEnv(context.Background()))
	assert.Equal(t, "bot-token", cfg.Discord.Token)
	assert.Equal(t, "postgres://u:p@db/guildkit", cfg.Storage.SQL.DSN)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Security.APIKeys)
	assert.Empty(t, cfg.Storage.Redis.Password)
}

func TestLoadSecretsMissingFile(t *testing.T) {
	t.Setenv("GUILDKIT_DISCORD_TOKEN_FILE", filepath.Join(t.TempDir(), "absent"))
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadSecretsFromEnv(context.Background()))
}

func TestStringRedactsSecrets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Discord.Token = "super-secret"
	cfg.Storage.SQL.DSN = "postgres://u:pw@db"
	cfg.Security.APIKeys = []string{"key-1"}

	out := cfg.String()
	for _, secret := range []string{"super-secret", "postgres://u:pw@db", "key-1"} {
		assert.False(t, strings.Contains(out, secret), "leaked %q", secret)
	}
	assert.Contains(t, out, redacted)
	assert.Equal(t, "super-secret", cfg.Discord.Token, "original untouched")
	assert.Equal(t, []string{"key-1"}, cfg.Security.APIKeys)
}

func TestValidateConfigPath(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "c.json")
	txtPath := filepath.Join(dir, "c.txt")
	require.NoError(t, os.WriteFile(jsonPath, []byte("{}"), 0o600))
	require.NoError(t, os.WriteFile(txtPath, []byte("{}"), 0o600))

	tests := []struct {
		name        string
		path        string
		expectError bool
	}{
		{"valid json file", jsonPath, false},
		{"empty path", "", true},
		{"path traversal", "../../../etc/passwd", true},
		{"non-json file", txtPath, true},
		{"nonexistent file", filepath.Join(dir, "nonexistent.json"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfigPath(tt.path)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolveProductionWithSecretFiles(t *testing.T) {
	dir := t.TempDir()
	token := filepath.Join(dir, "token")
	dsn := filepath.Join(dir, "dsn")
	require.NoError(t, os.WriteFile(token, []byte("bot-token\n"), 0o600))
	require.NoError(t, os.WriteFile(dsn, []byte("postgres://u:p@db/guildkit"), 0o600))
	t.Setenv("GUILDKIT_DISCORD_TOKEN_FILE", token)
	t.Setenv("GUILDKIT_SQL_DSN_FILE", dsn)
	t.Setenv("GUILDKIT_DISCORD_APP_ID", "555")

	cfg, err := Resolve(context.Background(), "", "production")
	require.NoError(t, err)
	assert.Equal(t, EnvProduction, cfg.Environment)
	assert.Equal(t, "bot-token", cfg.Discord.Token)
	assert.Equal(t, "sql", cfg.Storage.Adapter)
	assert.True(t, cfg.Security.EnableRateLimit)
}

func TestResolveLayersFileOverProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guildkit.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server": {"address": ":9191"}}`), 0o600))

	cfg, err := Resolve(context.Background(), path, "development")
	require.NoError(t, err)
	assert.Equal(t, ":9191", cfg.Server.Address)
	assert.Equal(t, "debug", cfg.Logging.Level, "profile values survive")

	_, err = Resolve(context.Background(), "", "qa")
	assert.Error(t, err)
}
