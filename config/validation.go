package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"guildkit/core"
)

func joinErrs(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.New(strings.Join(errs, "; "))
}

// oneOf reports an error when v is not among valid.
func oneOf(field, v string, valid ...string) string {
	if slices.Contains(valid, v) {
		return ""
	}
	return fmt.Sprintf("%s must be one of: %s", field, strings.Join(valid, ", "))
}

// Validate validates the bot identity. Production deployments need a token.
func (d *DiscordConfig) Validate(env Environment) error {
	var errs []string

	if env == EnvProduction && d.Token == "" {
		errs = append(errs, "token is required in production")
	}
	if d.AppID != "" {
		if err := core.ValidateSnowflake(d.AppID); err != nil {
			errs = append(errs, fmt.Sprintf("app_id: %v", err))
		}
	}
	if d.Token != "" && d.AppID == "" {
		errs = append(errs, "app_id is required when a token is set")
	}

	return joinErrs(errs)
}

// Validate validates message XP settings
func (l *LevelingConfig) Validate() error {
	var errs []string

	if l.XPPerMessage < 0 {
		errs = append(errs, "xp_per_message cannot be negative")
	}
	if l.Cooldown < 0 {
		errs = append(errs, "cooldown cannot be negative")
	}

	return joinErrs(errs)
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	var errs []string

	if s.Address == "" {
		errs = append(errs, "address cannot be empty")
	}
	if s.PathPrefix != "" && !strings.HasPrefix(s.PathPrefix, "/") {
		errs = append(errs, "path_prefix must start with /")
	}

	timeouts := []struct {
		name string
		ok   bool
	}{
		{"read_timeout", s.ReadTimeout > 0},
		{"write_timeout", s.WriteTimeout > 0},
		{"idle_timeout", s.IdleTimeout > 0},
		{"read_header_timeout", s.ReadHeaderTimeout > 0},
		{"shutdown_timeout", s.ShutdownTimeout > 0},
	}
	for _, t := range timeouts {
		if !t.ok {
			errs = append(errs, t.name+" must be positive")
		}
	}

	return joinErrs(errs)
}

// Validate validates storage configuration
func (s *StorageConfig) Validate() error {
	var errs []string

	if msg := oneOf("adapter", s.Adapter, "memory", "redis", "sql", "file"); msg != "" {
		errs = append(errs, msg)
	}

	switch s.Adapter {
	case "redis":
		if s.Redis.Addr == "" {
			errs = append(errs, "redis config: addr cannot be empty")
		}
	case "sql":
		if err := s.SQL.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("sql config: %v", err))
		}
	case "file":
		if err := s.File.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("file config: %v", err))
		}
	}

	return joinErrs(errs)
}

// Validate validates file storage configuration
func (f *FileConfig) Validate() error {
	if f.Path == "" {
		return errors.New("path cannot be empty")
	}
	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	var errs []string
	for _, msg := range []string{
		oneOf("level", l.Level, "debug", "info", "warn", "error"),
		oneOf("format", l.Format, "json", "text"),
		oneOf("output", l.Output, "stdout", "stderr"),
	} {
		if msg != "" {
			errs = append(errs, msg)
		}
	}
	return joinErrs(errs)
}

// Validate validates security settings.
func (s *SecurityConfig) Validate() error {
	var errs []string
	if s.EnableRateLimit {
		if s.RateLimit.RequestsPerMinute <= 0 {
			errs = append(errs, "rate_limit.requests_per_minute must be > 0 when rate limiting is enabled")
		}
		if s.RateLimit.BurstSize <= 0 {
			errs = append(errs, "rate_limit.burst_size must be > 0 when rate limiting is enabled")
		}
	}
	for i, key := range s.APIKeys {
		if strings.TrimSpace(key) == "" {
			errs = append(errs, fmt.Sprintf("api_keys[%d] is empty", i))
		}
	}
	return joinErrs(errs)
}

// Validate validates webhook endpoints.
func (w *WebhookConfig) Validate() error {
	var errs []string
	for i, e := range w.Endpoints {
		u, err := url.Parse(e)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("endpoints[%d] must be an absolute http(s) URL", i))
		}
	}
	if len(w.Endpoints) > 0 && w.Timeout <= 0 {
		errs = append(errs, "timeout must be positive")
	}
	return joinErrs(errs)
}
