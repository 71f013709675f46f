package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates domain events.
type EventType string

const (
	EventXPAdded            EventType = "xp_added"
	EventLevelUp            EventType = "level_up"
	EventLevelDown          EventType = "level_down"
	EventRolesSynced        EventType = "roles_synced"
	EventInteractionHandled EventType = "interaction_handled"
)

// Event represents an immutable domain event.
type Event struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Time       time.Time      `json:"time"`
	Guild      GuildID        `json:"guild_id,omitempty"`
	Member     MemberID       `json:"member_id,omitempty"`
	Delta      int64          `json:"delta,omitempty"`
	Total      int64          `json:"total,omitempty"`
	Level      int64          `json:"level,omitempty"`
	Transition Transition     `json:"transition,omitempty"`
	Role       RoleID         `json:"role_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func newEvent(typ EventType, guild GuildID, member MemberID) Event {
	return Event{ID: uuid.NewString(), Type: typ, Time: time.Now().UTC(), Guild: guild, Member: member}
}

// NewXPAdded is published for every XP change, whether or not the level moved.
func NewXPAdded(guild GuildID, member MemberID, delta, total, level int64, tr Transition) Event {
	e := newEvent(EventXPAdded, guild, member)
	e.Delta, e.Total, e.Level, e.Transition = delta, total, level, tr
	return e
}

// NewLevelChanged returns a level_up or level_down event for tr.
// It returns false for TransitionNone.
func NewLevelChanged(guild GuildID, member MemberID, level int64, tr Transition) (Event, bool) {
	var typ EventType
	switch tr {
	case TransitionLevelUp:
		typ = EventLevelUp
	case TransitionLevelDown:
		typ = EventLevelDown
	default:
		return Event{}, false
	}
	e := newEvent(typ, guild, member)
	e.Level, e.Transition = level, tr
	return e, true
}

func NewRolesSynced(guild GuildID, member MemberID, level int64, d SyncDecision) Event {
	e := newEvent(EventRolesSynced, guild, member)
	e.Level = level
	e.Role = d.Target
	e.Metadata = map[string]any{"removed": d.Remove, "added": d.Add}
	return e
}

// NewInteractionHandled records one routed component interaction.
func NewInteractionHandled(guild GuildID, member MemberID, namespace, outcome string) Event {
	e := newEvent(EventInteractionHandled, guild, member)
	e.Metadata = map[string]any{"namespace": namespace, "outcome": outcome}
	return e
}
