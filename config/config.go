package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"guildkit/adapters/redis"
	"guildkit/adapters/sqlx"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

const redacted = "[REDACTED]"

// Config holds the complete application configuration
type Config struct {
	Environment Environment `json:"environment" env:"GUILDKIT_ENV"`
	Profile     string      `json:"profile" env:"GUILDKIT_PROFILE"`

	Discord   DiscordConfig   `json:"discord"`
	Leveling  LevelingConfig  `json:"leveling"`
	Server    ServerConfig    `json:"server"`
	Storage   StorageConfig   `json:"storage"`
	Logging   LoggingConfig   `json:"logging"`
	Security  SecurityConfig  `json:"security"`
	Webhooks  WebhookConfig   `json:"webhooks"`
	Analytics AnalyticsConfig `json:"analytics"`
}

// DiscordConfig holds the bot identity. An empty token runs the admin API
// without a gateway connection.
type DiscordConfig struct {
	Token          string `json:"token,omitempty" env:"GUILDKIT_DISCORD_TOKEN"`
	AppID          string `json:"app_id" env:"GUILDKIT_DISCORD_APP_ID"`
	FailureMessage string `json:"failure_message,omitempty" env:"GUILDKIT_DISCORD_FAILURE_MESSAGE"`
}

// LevelingConfig controls message XP.
type LevelingConfig struct {
	XPPerMessage int64         `json:"xp_per_message" env:"GUILDKIT_LEVELING_XP_PER_MESSAGE"`
	Cooldown     time.Duration `json:"cooldown" env:"GUILDKIT_LEVELING_COOLDOWN"`
	AsyncEvents  bool          `json:"async_events" env:"GUILDKIT_LEVELING_ASYNC_EVENTS"`
}

// ServerConfig holds admin HTTP server configuration
type ServerConfig struct {
	Address           string        `json:"address" env:"GUILDKIT_SERVER_ADDR"`
	PathPrefix        string        `json:"path_prefix" env:"GUILDKIT_SERVER_PATH_PREFIX"`
	CORSOrigin        string        `json:"cors_origin" env:"GUILDKIT_SERVER_CORS_ORIGIN"`
	ReadTimeout       time.Duration `json:"read_timeout" env:"GUILDKIT_SERVER_READ_TIMEOUT"`
	WriteTimeout      time.Duration `json:"write_timeout" env:"GUILDKIT_SERVER_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `json:"idle_timeout" env:"GUILDKIT_SERVER_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" env:"GUILDKIT_SERVER_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" env:"GUILDKIT_SERVER_SHUTDOWN_TIMEOUT"`
}

// StorageConfig holds storage adapter configuration
type StorageConfig struct {
	Adapter string       `json:"adapter" env:"GUILDKIT_STORAGE_ADAPTER"`
	Redis   redis.Config `json:"redis,omitempty"`
	SQL     sqlx.Config  `json:"sql,omitempty"`
	File    FileConfig   `json:"file,omitempty"`
}

// FileConfig holds JSON file storage configuration
type FileConfig struct {
	Path string `json:"path" env:"GUILDKIT_STORAGE_FILE_PATH"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string            `json:"level" env:"GUILDKIT_LOG_LEVEL"`
	Format     string            `json:"format" env:"GUILDKIT_LOG_FORMAT"`
	Output     string            `json:"output" env:"GUILDKIT_LOG_OUTPUT"`
	Attributes map[string]string `json:"attributes,omitempty" env:"GUILDKIT_LOG_ATTRIBUTES"`
}

// SecurityConfig holds admin API protection settings
type SecurityConfig struct {
	EnableRateLimit bool            `json:"enable_rate_limit" env:"GUILDKIT_SECURITY_RATE_LIMIT_ENABLED"`
	RateLimit       RateLimitConfig `json:"rate_limit,omitempty"`
	APIKeys         []string        `json:"api_keys,omitempty" env:"GUILDKIT_SECURITY_API_KEYS"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `json:"requests_per_minute" env:"GUILDKIT_SECURITY_RATE_LIMIT_RPM"`
	BurstSize         int           `json:"burst_size" env:"GUILDKIT_SECURITY_RATE_LIMIT_BURST"`
	CleanupInterval   time.Duration `json:"cleanup_interval" env:"GUILDKIT_SECURITY_RATE_LIMIT_CLEANUP"`
}

// WebhookConfig lists endpoints receiving domain events.
type WebhookConfig struct {
	Endpoints []string      `json:"endpoints,omitempty" env:"GUILDKIT_WEBHOOK_ENDPOINTS"`
	Timeout   time.Duration `json:"timeout" env:"GUILDKIT_WEBHOOK_TIMEOUT"`
}

// AnalyticsConfig toggles the in-process usage counters.
type AnalyticsConfig struct {
	Enabled bool `json:"enabled" env:"GUILDKIT_ANALYTICS_ENABLED"`
}

// Load loads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if err := ParseEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validateConfigPath validates that the config file path is safe
func validateConfigPath(path string) error {
	if path == "" {
		return errors.New("config file path cannot be empty")
	}

	cleanPath := filepath.Clean(path)

	if !strings.HasSuffix(strings.ToLower(cleanPath), ".json") {
		return errors.New("config file must have .json extension")
	}

	if _, err := os.Stat(cleanPath); err != nil {
		return fmt.Errorf("config file not accessible: %w", err)
	}

	return nil
}

// LoadFromFile loads configuration from a JSON file. Environment variables
// override file values.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := readFile(path, cfg); err != nil {
		return nil, err
	}

	if err := ParseEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Resolve layers configuration sources in order: profile (or defaults),
// optional JSON file, environment, then secret files. Validation runs last
// so a token supplied only through GUILDKIT_DISCORD_TOKEN_FILE still
// satisfies production checks.
func Resolve(ctx context.Context, path, profile string) (*Config, error) {
	cfg := DefaultConfig()
	if profile != "" {
		p, err := LoadProfile(profile)
		if err != nil {
			return nil, err
		}
		cfg = p
	}

	if path != "" {
		if err := readFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := ParseEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cfg.LoadSecretsFromEnv(ctx); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func readFile(path string, cfg *Config) error {
	if err := validateConfigPath(path); err != nil {
		return fmt.Errorf("invalid config file path: %w", err)
	}

	file, err := os.Open(path) // #nosec G304 - Path validated above
	if err != nil {
		return fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// DefaultConfig returns a configuration with sensible defaults for development
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Profile:     "default",
		Leveling: LevelingConfig{
			XPPerMessage: 15,
			Cooldown:     time.Minute,
		},
		Server: ServerConfig{
			Address:           ":8080",
			PathPrefix:        "/api",
			CORSOrigin:        "*",
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Storage: StorageConfig{
			Adapter: "memory",
			Redis:   redis.DefaultConfig(),
			SQL:     sqlx.DefaultConfig(sqlx.DriverPostgres),
			File: FileConfig{
				Path: "./data/guildkit.json",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			EnableRateLimit: false,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				BurstSize:         10,
				CleanupInterval:   5 * time.Minute,
			},
			APIKeys: []string{},
		},
		Webhooks: WebhookConfig{
			Timeout: 5 * time.Second,
		},
		Analytics: AnalyticsConfig{Enabled: true},
	}
}

// Validate validates the configuration and returns detailed error messages
func (c *Config) Validate() error {
	var errs []string

	if c.Environment == "" {
		errs = append(errs, "environment cannot be empty")
	}

	sections := []struct {
		name string
		err  error
	}{
		{"discord", c.Discord.Validate(c.Environment)},
		{"leveling", c.Leveling.Validate()},
		{"server", c.Server.Validate()},
		{"storage", c.Storage.Validate()},
		{"logging", c.Logging.Validate()},
		{"security", c.Security.Validate()},
		{"webhooks", c.Webhooks.Validate()},
	}
	for _, s := range sections {
		if s.err != nil {
			errs = append(errs, fmt.Sprintf("%s config: %v", s.name, s.err))
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// String returns a JSON representation of the config (with secrets redacted)
func (c *Config) String() string {
	cfg := *c

	if cfg.Discord.Token != "" {
		cfg.Discord.Token = redacted
	}
	if cfg.Storage.SQL.DSN != "" {
		cfg.Storage.SQL.DSN = redacted
	}
	if cfg.Storage.Redis.Password != "" {
		cfg.Storage.Redis.Password = redacted
	}
	if len(cfg.Security.APIKeys) > 0 {
		keys := make([]string, len(cfg.Security.APIKeys))
		for i := range keys {
			keys[i] = redacted
		}
		cfg.Security.APIKeys = keys
	}

	data, _ := json.MarshalIndent(cfg, "", "  ")
	return string(data)
}
