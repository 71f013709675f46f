// Package realtime fans domain events out to live subscribers such as
// admin dashboards.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"guildkit/core"
)

type subscriber struct {
	ch    chan core.Event
	guild core.GuildID
}

// Hub broadcasts events to subscribers. Slow subscribers miss events
// rather than block the publisher.
type Hub struct {
	mu      sync.RWMutex
	subs    map[int]subscriber
	next    int
	dropped atomic.Int64
}

func NewHub() *Hub { return &Hub{subs: map[int]subscriber{}} }

// Subscribe registers a receiver. A non-empty guild limits delivery to that
// guild's events.
func (h *Hub) Subscribe(buffer int, guild core.GuildID) (int, <-chan core.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	ch := make(chan core.Event, buffer)
	h.subs[id] = subscriber{ch: ch, guild: guild}
	return id, ch
}

func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(s.ch)
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped counts deliveries skipped because a subscriber was full.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

func (h *Hub) Broadcast(_ context.Context, ev core.Event) {
	// Sending under the read lock keeps Unsubscribe from closing a channel
	// mid-send; sends never block.
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		if s.guild != "" && s.guild != ev.Guild {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			h.dropped.Add(1)
		}
	}
}

// MarshalJSON encodes an event for WebSocket frames.
func MarshalJSON(ev core.Event) []byte {
	b, _ := json.Marshal(ev)
	return b
}
