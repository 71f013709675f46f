package engine

import (
	"sync"
	"time"

	"guildkit/core"
)

type memberKey struct {
	guild  core.GuildID
	member core.MemberID
}

// Cooldown limits message XP to one award per member per window.
type Cooldown struct {
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	last map[memberKey]time.Time
}

func NewCooldown(window time.Duration) *Cooldown {
	return &Cooldown{window: window, now: time.Now, last: map[memberKey]time.Time{}}
}

// Allow reports whether member may earn XP now and, if so, starts a new window.
func (c *Cooldown) Allow(guild core.GuildID, member core.MemberID) bool {
	if c.window <= 0 {
		return true
	}
	k := memberKey{guild, member}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.last[k]; ok && now.Sub(t) < c.window {
		return false
	}
	c.last[k] = now
	return true
}

// Prune forgets windows that have elapsed.
func (c *Cooldown) Prune() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, t := range c.last {
		if now.Sub(t) >= c.window {
			delete(c.last, k)
		}
	}
}
