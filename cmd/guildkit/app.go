package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/bwmarrin/discordgo"

	"guildkit/adapters/discord"
	"guildkit/adapters/jsonfile"
	mem "guildkit/adapters/memory"
	redisAdapter "guildkit/adapters/redis"
	sqlxAdapter "guildkit/adapters/sqlx"
	"guildkit/analytics"
	"guildkit/api/httpapi"
	"guildkit/config"
	"guildkit/core"
	"guildkit/engine"
	"guildkit/gamify"
	"guildkit/handlers/levels"
	"guildkit/integrations/webhook"
	"guildkit/interaction"
	"guildkit/realtime"
)

// flags carries command line input into the injector.
type flags struct {
	configPath string
	profile    string
}

// App aggregates the assembled bot components.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Hub      *realtime.Hub
	Kit      *gamify.Kit
	Session  *discordgo.Session // nil without a bot token
	Router   *interaction.Router
	Cooldown *engine.Cooldown
	Messages *discord.MessageXP
	Handler  http.Handler
	Server   *http.Server
}

func provideConfig(ctx context.Context, f flags) (*config.Config, error) {
	return config.Resolve(ctx, f.configPath, f.profile)
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return setupLogging(cfg)
}

func provideHub() *realtime.Hub {
	return realtime.NewHub()
}

func provideStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (engine.Storage, func(), error) {
	store, err := setupStorage(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if c, ok := store.(io.Closer); ok {
			if err := c.Close(); err != nil {
				log.Warn("close storage", "adapter", cfg.Storage.Adapter, "error", err)
			}
		}
	}
	return store, cleanup, nil
}

func provideStats(cfg *config.Config) *analytics.Service {
	if !cfg.Analytics.Enabled {
		return nil
	}
	return analytics.NewService()
}

func provideWebhooks(cfg *config.Config, log *slog.Logger) *webhook.Sink {
	if len(cfg.Webhooks.Endpoints) == 0 {
		return nil
	}
	return webhook.New(cfg.Webhooks.Endpoints,
		webhook.WithTimeout(cfg.Webhooks.Timeout),
		webhook.WithLogger(log),
	)
}

func provideSession(cfg *config.Config) (*discordgo.Session, error) {
	if cfg.Discord.Token == "" {
		return nil, nil
	}
	s, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages
	return s, nil
}

func provideKit(cfg *config.Config, log *slog.Logger, hub *realtime.Hub, storage engine.Storage, session *discordgo.Session, stats *analytics.Service, sink *webhook.Sink) (*gamify.Kit, func()) {
	mode := engine.DispatchSync
	if cfg.Leveling.AsyncEvents {
		mode = engine.DispatchAsync
	}
	opts := []gamify.Option{
		gamify.WithAppID(core.AppID(cfg.Discord.AppID)),
		gamify.WithStorage(storage),
		gamify.WithDispatchMode(mode),
		gamify.WithRealtime(hub),
		gamify.WithLogger(log),
	}
	if session != nil {
		opts = append(opts, gamify.WithGateway(discord.NewGateway(session)))
	}
	if stats != nil {
		opts = append(opts, gamify.WithHooks(stats.OnEvent))
	}
	if sink != nil {
		opts = append(opts, gamify.WithHooks(sink.OnEvent))
	}
	kit := gamify.New(opts...)
	return kit, kit.Close
}

func provideRouter(cfg *config.Config, log *slog.Logger, kit *gamify.Kit) *interaction.Router {
	var syncer levels.Syncer
	if kit.Sync != nil {
		syncer = kit.Sync
	}
	reg := levels.New(kit.App, kit, syncer).Register(interaction.NewRegistry())

	opts := []interaction.Option{
		interaction.WithLogger(log),
		interaction.WithHook(kit.Publish),
	}
	if cfg.Discord.FailureMessage != "" {
		opts = append(opts, interaction.WithFailureMessage(cfg.Discord.FailureMessage))
	}
	return interaction.NewRouter(reg, opts...)
}

func provideCooldown(cfg *config.Config) *engine.Cooldown {
	return engine.NewCooldown(cfg.Leveling.Cooldown)
}

func provideMessageXP(cfg *config.Config, log *slog.Logger, kit *gamify.Kit, cooldown *engine.Cooldown) *discord.MessageXP {
	return discord.NewMessageXP(kit, cooldown, cfg.Leveling.XPPerMessage, log)
}

func provideHandler(cfg *config.Config, log *slog.Logger, kit *gamify.Kit, storage engine.Storage, stats *analytics.Service) http.Handler {
	opts := httpapi.Options{
		PathPrefix:       cfg.Server.PathPrefix,
		AllowCORSOrigin:  cfg.Server.CORSOrigin,
		APIKeys:          cfg.Security.APIKeys,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
		RateLimitCleanup: cfg.Security.RateLimit.CleanupInterval,
		Stats:            stats,
		Logger:           log,
	}
	if p, ok := storage.(interface{ Ping(context.Context) error }); ok {
		opts.Ping = p.Ping
	}
	return httpapi.NewMux(kit, opts)
}

func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

// setupLogging configures the logger based on configuration.
func setupLogging(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	var out io.Writer = os.Stdout
	if cfg.Logging.Output == "stderr" {
		out = os.Stderr
	}

	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	if len(cfg.Logging.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(cfg.Logging.Attributes))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func convertAttributes(attrs map[string]string) []slog.Attr {
	result := make([]slog.Attr, 0, len(attrs))
	for k, v := range attrs {
		result = append(result, slog.String(k, v))
	}
	return result
}

// setupStorage creates the storage adapter named by configuration.
func setupStorage(_ context.Context, cfg *config.Config) (engine.Storage, error) {
	switch cfg.Storage.Adapter {
	case "memory":
		return mem.New(), nil
	case "redis":
		return redisAdapter.New(cfg.Storage.Redis)
	case "sql":
		return sqlxAdapter.New(cfg.Storage.SQL)
	case "file":
		return jsonfile.New(cfg.Storage.File.Path)
	default:
		return nil, fmt.Errorf("unknown storage adapter: %s", cfg.Storage.Adapter)
	}
}
