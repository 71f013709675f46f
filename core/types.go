package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// GuildID identifies a community (Discord guild).
type GuildID string

// MemberID identifies a member within a guild.
type MemberID string

// RoleID identifies a platform-side role.
type RoleID string

// ChannelID identifies a text channel.
type ChannelID string

// AppID identifies the bot application that owns a configuration.
type AppID string

var (
	ErrEmptyID   = errors.New("empty id")
	ErrInvalidID = errors.New("invalid id")
	ErrOverflow  = errors.New("integer overflow in AddSafe")
)

// RewardRoleRule grants Role to members at or above Level.
type RewardRoleRule struct {
	Role  RoleID `json:"role_id"`
	Level int64  `json:"level"`
}

// RewardConfig is the reward-role setup of one guild. An empty Channel
// disables level transition notifications.
type RewardConfig struct {
	Rules   []RewardRoleRule `json:"reward_roles"`
	Channel ChannelID        `json:"channel_id,omitempty"`
}

// Clone returns a deep copy.
func (c RewardConfig) Clone() RewardConfig {
	return RewardConfig{Rules: append([]RewardRoleRule(nil), c.Rules...), Channel: c.Channel}
}

// Roles returns the set of role ids referenced by the rules.
func (c RewardConfig) Roles() map[RoleID]struct{} {
	out := make(map[RoleID]struct{}, len(c.Rules))
	for _, r := range c.Rules {
		out[r.Role] = struct{}{}
	}
	return out
}

// Validate checks rule ids and thresholds.
func (c RewardConfig) Validate() error {
	for i, r := range c.Rules {
		if err := ValidateSnowflake(string(r.Role)); err != nil {
			return fmt.Errorf("reward_roles[%d].role_id: %w", i, err)
		}
		if r.Level < 0 {
			return fmt.Errorf("reward_roles[%d].level must be >= 0", i)
		}
	}
	if c.Channel != "" {
		if err := ValidateSnowflake(string(c.Channel)); err != nil {
			return fmt.Errorf("channel_id: %w", err)
		}
	}
	return nil
}

// Transition classifies the level change produced by one XP event.
type Transition string

const (
	TransitionNone      Transition = "none"
	TransitionLevelUp   Transition = "level_up"
	TransitionLevelDown Transition = "level_down"
)

// TransitionBetween reports how a member moved from old to next.
func TransitionBetween(old, next int64) Transition {
	switch {
	case next > old:
		return TransitionLevelUp
	case next < old:
		return TransitionLevelDown
	default:
		return TransitionNone
	}
}

// MemberLevelState is what the leveling producer hands the role synchronizer.
type MemberLevelState struct {
	Level      int64      `json:"level"`
	Transition Transition `json:"transition"`
}

// MemberState is the persisted leveling snapshot of one member.
type MemberState struct {
	Guild   GuildID   `json:"guild_id"`
	Member  MemberID  `json:"member_id"`
	XP      int64     `json:"xp"`
	Level   int64     `json:"level"`
	Updated time.Time `json:"updated"`
}

// SyncDecision is the derived plan for one role synchronization.
// An empty Target means the member should hold no reward role.
type SyncDecision struct {
	Target RoleID   `json:"target_role,omitempty"`
	Remove []RoleID `json:"roles_to_remove,omitempty"`
	Add    []RoleID `json:"roles_to_add,omitempty"`
	Notify bool     `json:"should_notify"`
}

// Noop reports whether the decision requires no mutation.
func (d SyncDecision) Noop() bool { return len(d.Remove) == 0 && len(d.Add) == 0 }

// AddSafe adds delta to base ensuring no signed overflow occurs.
func AddSafe(base int64, delta int64) (int64, error) {
	if (delta > 0 && base > math.MaxInt64-delta) || (delta < 0 && base < math.MinInt64-delta) {
		return 0, ErrOverflow
	}
	return base + delta, nil
}

// NormalizeGuildID trims whitespace and validates the snowflake format.
func NormalizeGuildID(id GuildID) (GuildID, error) {
	s := strings.TrimSpace(string(id))
	if err := ValidateSnowflake(s); err != nil {
		return "", err
	}
	return GuildID(s), nil
}

// NormalizeMemberID trims whitespace and validates the snowflake format.
func NormalizeMemberID(id MemberID) (MemberID, error) {
	s := strings.TrimSpace(string(id))
	if err := ValidateSnowflake(s); err != nil {
		return "", err
	}
	return MemberID(s), nil
}

// ValidateSnowflake accepts non-empty ascii digit strings.
func ValidateSnowflake(s string) error {
	if strings.TrimSpace(s) == "" {
		return ErrEmptyID
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return ErrInvalidID
		}
	}
	return nil
}

// LevelForXP computes a level from total XP using a sublinear curve.
// level = floor(sqrt(xp)/10), never below zero.
func LevelForXP(totalXP int64) int64 {
	if totalXP <= 0 {
		return 0
	}
	return int64(math.Floor(math.Sqrt(float64(totalXP)) / 10.0))
}
