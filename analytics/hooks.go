// Package analytics keeps in-process engagement counters fed by domain
// events.
package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"guildkit/core"
)

// Hook receives domain events for KPI aggregation.
type Hook interface {
	OnEvent(ctx context.Context, e core.Event)
}

func dayKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

func weekKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

type guildDay struct {
	guild core.GuildID
	key   string
}

// DAU tracks daily active members per guild.
type DAU struct {
	mu   sync.Mutex
	days map[guildDay]map[core.MemberID]struct{}
}

func NewDAU() *DAU { return &DAU{days: map[guildDay]map[core.MemberID]struct{}{}} }

func (d *DAU) OnEvent(_ context.Context, e core.Event) {
	if e.Member == "" {
		return
	}
	k := guildDay{e.Guild, dayKey(e.Time)}
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.days[k]
	if m == nil {
		m = map[core.MemberID]struct{}{}
		d.days[k] = m
	}
	m[e.Member] = struct{}{}
}

func (d *DAU) Count(guild core.GuildID, day string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.days[guildDay{guild, day}])
}

// Metrics aggregates leveling and interaction activity per guild and day.
type Metrics struct {
	mu sync.RWMutex

	weekly       map[guildDay]map[core.MemberID]struct{}
	xpAwarded    map[guildDay]int64
	levelUps     map[guildDay]int64
	levelDowns   map[guildDay]int64
	roleSyncs    map[guildDay]int64
	interactions map[core.GuildID]map[string]map[string]int64 // namespace -> outcome -> count
}

func NewMetrics() *Metrics {
	return &Metrics{
		weekly:       map[guildDay]map[core.MemberID]struct{}{},
		xpAwarded:    map[guildDay]int64{},
		levelUps:     map[guildDay]int64{},
		levelDowns:   map[guildDay]int64{},
		roleSyncs:    map[guildDay]int64{},
		interactions: map[core.GuildID]map[string]map[string]int64{},
	}
}

func (m *Metrics) OnEvent(_ context.Context, e core.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	day := guildDay{e.Guild, dayKey(e.Time)}
	if e.Member != "" {
		wk := guildDay{e.Guild, weekKey(e.Time)}
		if m.weekly[wk] == nil {
			m.weekly[wk] = map[core.MemberID]struct{}{}
		}
		m.weekly[wk][e.Member] = struct{}{}
	}

	switch e.Type {
	case core.EventXPAdded:
		if e.Delta > 0 {
			m.xpAwarded[day] += e.Delta
		}
	case core.EventLevelUp:
		m.levelUps[day]++
	case core.EventLevelDown:
		m.levelDowns[day]++
	case core.EventRolesSynced:
		m.roleSyncs[day]++
	case core.EventInteractionHandled:
		ns, _ := e.Metadata["namespace"].(string)
		outcome, _ := e.Metadata["outcome"].(string)
		byNS := m.interactions[e.Guild]
		if byNS == nil {
			byNS = map[string]map[string]int64{}
			m.interactions[e.Guild] = byNS
		}
		if byNS[ns] == nil {
			byNS[ns] = map[string]int64{}
		}
		byNS[ns][outcome]++
	}
}

// WeeklyActive returns distinct members seen in the ISO week containing t.
func (m *Metrics) WeeklyActive(guild core.GuildID, t time.Time) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.weekly[guildDay{guild, weekKey(t)}])
}

// InteractionUsage returns counts by namespace and outcome.
func (m *Metrics) InteractionUsage(guild core.GuildID) map[string]map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]map[string]int64, len(m.interactions[guild]))
	for ns, byOutcome := range m.interactions[guild] {
		cp := make(map[string]int64, len(byOutcome))
		for k, v := range byOutcome {
			cp[k] = v
		}
		out[ns] = cp
	}
	return out
}
