package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// ParseEnv overlays GUILDKIT_* environment variables onto target. Fields
// whose variable is unset keep their current value.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// secretFiles name files holding secrets, as mounted by container
// orchestrators.
type secretFiles struct {
	DiscordToken  string `env:"GUILDKIT_DISCORD_TOKEN_FILE,file"`
	SQLDSN        string `env:"GUILDKIT_SQL_DSN_FILE,file"`
	RedisPassword string `env:"GUILDKIT_REDIS_PASSWORD_FILE,file"`
	APIKeys       string `env:"GUILDKIT_SECURITY_API_KEYS_FILE,file"`
}

// LoadSecretsFromEnv replaces secrets with the contents of their *_FILE
// counterparts when those are set. API key files hold one key per line.
func (c *Config) LoadSecretsFromEnv(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var s secretFiles
	if err := env.Parse(&s); err != nil {
		return fmt.Errorf("load secret files: %w", err)
	}
	if v := strings.TrimSpace(s.DiscordToken); v != "" {
		c.Discord.Token = v
	}
	if v := strings.TrimSpace(s.SQLDSN); v != "" {
		c.Storage.SQL.DSN = v
	}
	if v := strings.TrimSpace(s.RedisPassword); v != "" {
		c.Storage.Redis.Password = v
	}
	if s.APIKeys != "" {
		var keys []string
		for _, line := range strings.Split(s.APIKeys, "\n") {
			if k := strings.TrimSpace(line); k != "" {
				keys = append(keys, k)
			}
		}
		c.Security.APIKeys = keys
	}
	return nil
}
