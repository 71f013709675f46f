package engine

import (
	"context"

	"guildkit/core"
	"guildkit/rolesync"
)

// Storage abstracts persistence for leveling state.
type Storage interface {
	AddXP(ctx context.Context, guild core.GuildID, member core.MemberID, delta int64) (newTotal int64, err error)
	GetState(ctx context.Context, guild core.GuildID, member core.MemberID) (core.MemberState, error)
	SetLevel(ctx context.Context, guild core.GuildID, member core.MemberID, level int64) error
}

// MemberLister is implemented by storage that can enumerate a guild's
// members. The leveling service uses it to seed leaderboards after a
// restart; without it, boards only reflect XP earned since process start.
type MemberLister interface {
	ListMembers(ctx context.Context, guild core.GuildID) ([]core.MemberState, error)
}

// RewardStore persists reward-role configuration edited by guild admins.
type RewardStore interface {
	rolesync.RewardConfigProvider
	SetRewardConfig(ctx context.Context, app core.AppID, guild core.GuildID, cfg core.RewardConfig) error
}

// RuleEngine evaluates rules and emits derived events.
type RuleEngine interface {
	Evaluate(ctx context.Context, previous core.MemberState, trigger core.Event) []core.Event
}
