// Package gamify assembles the leveling producer, the reward role
// synchronizer, and the event consumers into one Kit.
package gamify

import (
	"context"
	"log/slog"

	mem "guildkit/adapters/memory"
	"guildkit/core"
	"guildkit/engine"
	"guildkit/realtime"
	"guildkit/rolesync"
)

// Option configures the Kit builder.
type Option func(*config)

type config struct {
	app     core.AppID
	storage engine.Storage
	rewards engine.RewardStore
	gateway rolesync.MembershipGateway
	message rolesync.MessageFunc
	mode    engine.DispatchMode
	rules   engine.RuleEngine
	hub     *realtime.Hub
	hooks   []func(context.Context, core.Event)
	log     *slog.Logger
}

// WithAppID sets the application whose reward configs are read.
func WithAppID(app core.AppID) Option { return func(c *config) { c.app = app } }

// WithStorage sets the persistence adapter. Adapters that also implement
// engine.RewardStore serve reward configs too.
func WithStorage(s engine.Storage) Option { return func(c *config) { c.storage = s } }

// WithRewardStore overrides where reward configs are read from.
func WithRewardStore(r engine.RewardStore) Option { return func(c *config) { c.rewards = r } }

// WithGateway enables reward role synchronization on every XP change.
func WithGateway(g rolesync.MembershipGateway) Option { return func(c *config) { c.gateway = g } }

// WithMessage overrides the level transition notification text.
func WithMessage(f rolesync.MessageFunc) Option { return func(c *config) { c.message = f } }

// WithRuleEngine sets the rule engine.
func WithRuleEngine(r engine.RuleEngine) Option { return func(c *config) { c.rules = r } }

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(c *config) { c.mode = m } }

// WithRealtime wires a realtime hub to receive all engine events.
func WithRealtime(h *realtime.Hub) Option { return func(c *config) { c.hub = h } }

// WithHooks subscribes h to every event type, e.g. analytics or webhooks.
func WithHooks(h ...func(context.Context, core.Event)) Option {
	return func(c *config) { c.hooks = append(c.hooks, h...) }
}

func WithLogger(l *slog.Logger) Option { return func(c *config) { c.log = l } }

// AllEvents lists every event type the Kit publishes.
var AllEvents = []core.EventType{
	core.EventXPAdded,
	core.EventLevelUp,
	core.EventLevelDown,
	core.EventRolesSynced,
	core.EventInteractionHandled,
}

// Kit is the assembled service.
type Kit struct {
	*engine.LevelingService

	App     core.AppID
	Rewards engine.RewardStore
	// Sync is nil when no gateway was configured.
	Sync *rolesync.Synchronizer
	Hub  *realtime.Hub
}

// New builds a Kit. Defaults:
//   - storage: in-memory
//   - rules: DefaultRuleEngine
//   - dispatch: async
func New(opts ...Option) *Kit {
	cfg := &config{mode: engine.DispatchAsync, rules: engine.DefaultRuleEngine(), log: slog.Default()}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.storage == nil {
		cfg.storage = mem.New()
	}
	if cfg.rewards == nil {
		if rs, ok := cfg.storage.(engine.RewardStore); ok {
			cfg.rewards = rs
		}
	}

	bus := engine.NewEventBus(cfg.mode)
	bus.SetLogger(cfg.log)
	kit := &Kit{
		LevelingService: engine.NewLevelingService(cfg.storage, bus, cfg.rules),
		App:             cfg.app,
		Rewards:         cfg.rewards,
		Hub:             cfg.hub,
	}

	for _, typ := range AllEvents {
		if cfg.hub != nil {
			bus.Subscribe(typ, cfg.hub.Broadcast)
		}
		for _, h := range cfg.hooks {
			bus.Subscribe(typ, h)
		}
	}

	if cfg.gateway != nil && cfg.rewards != nil {
		syncOpts := []rolesync.Option{rolesync.WithLogger(cfg.log), rolesync.WithPublisher(bus.Publish)}
		if cfg.message != nil {
			syncOpts = append(syncOpts, rolesync.WithMessage(cfg.message))
		}
		kit.Sync = rolesync.New(cfg.rewards, cfg.gateway, syncOpts...)
		bus.Subscribe(core.EventXPAdded, kit.onXPAdded)
	}
	return kit
}

// onXPAdded runs after the XP and level are committed.
func (k *Kit) onXPAdded(ctx context.Context, e core.Event) {
	k.Sync.Sync(ctx, k.App, e.Guild, e.Member, core.MemberLevelState{Level: e.Level, Transition: e.Transition})
}
