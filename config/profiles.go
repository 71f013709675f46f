package config

import (
	"fmt"
	"time"
)

// LoadProfile returns the defaults for a named deployment profile. The
// result is not validated; secrets still have to be supplied.
func LoadProfile(name string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Profile = name

	switch Environment(name) {
	case EnvDevelopment:
		cfg.Environment = EnvDevelopment
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "text"
	case EnvTesting:
		cfg.Environment = EnvTesting
		cfg.Logging.Level = "warn"
		cfg.Leveling.Cooldown = 0
		cfg.Analytics.Enabled = false
	case EnvStaging:
		cfg.Environment = EnvStaging
		cfg.Storage.Adapter = "redis"
		cfg.Leveling.AsyncEvents = true
	case EnvProduction:
		cfg.Environment = EnvProduction
		cfg.Storage.Adapter = "sql"
		cfg.Storage.SQL.MigrateOnStart = true
		cfg.Server.CORSOrigin = ""
		cfg.Leveling.AsyncEvents = true
		cfg.Security.EnableRateLimit = true
		cfg.Security.RateLimit.CleanupInterval = 10 * time.Minute
	default:
		return nil, fmt.Errorf("unknown profile %q", name)
	}
	return cfg, nil
}
