package analytics

import (
	"context"
	"time"

	"guildkit/core"
)

// BridgeHook fans one event source out to multiple hooks.
type BridgeHook struct{ hooks []Hook }

func NewBridge(hooks ...Hook) *BridgeHook { return &BridgeHook{hooks: hooks} }

func (b *BridgeHook) OnEvent(ctx context.Context, e core.Event) {
	for _, h := range b.hooks {
		h.OnEvent(ctx, e)
	}
}

// Snapshot is one guild's activity for a day.
type Snapshot struct {
	Guild        core.GuildID                `json:"guild_id"`
	Day          string                      `json:"day"`
	ActiveDaily  int                         `json:"active_daily"`
	ActiveWeekly int                         `json:"active_weekly"`
	XPAwarded    int64                       `json:"xp_awarded"`
	LevelUps     int64                       `json:"level_ups"`
	LevelDowns   int64                       `json:"level_downs"`
	RoleSyncs    int64                       `json:"role_syncs"`
	Interactions map[string]map[string]int64 `json:"interactions,omitempty"`
}

// Service combines the DAU counter and Metrics behind one hook.
type Service struct {
	dau     *DAU
	metrics *Metrics
	bridge  *BridgeHook
}

func NewService() *Service {
	s := &Service{dau: NewDAU(), metrics: NewMetrics()}
	s.bridge = NewBridge(s.dau, s.metrics)
	return s
}

func (s *Service) OnEvent(ctx context.Context, e core.Event) { s.bridge.OnEvent(ctx, e) }

// Snapshot reports day (UTC) for guild. Interaction usage is cumulative.
func (s *Service) Snapshot(guild core.GuildID, day time.Time) Snapshot {
	key := dayKey(day)
	gd := guildDay{guild, key}
	s.metrics.mu.RLock()
	snap := Snapshot{
		Guild:      guild,
		Day:        key,
		XPAwarded:  s.metrics.xpAwarded[gd],
		LevelUps:   s.metrics.levelUps[gd],
		LevelDowns: s.metrics.levelDowns[gd],
		RoleSyncs:  s.metrics.roleSyncs[gd],
	}
	s.metrics.mu.RUnlock()
	snap.ActiveDaily = s.dau.Count(guild, key)
	snap.ActiveWeekly = s.metrics.WeeklyActive(guild, day)
	snap.Interactions = s.metrics.InteractionUsage(guild)
	return snap
}
