package discord

import (
	"context"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"guildkit/core"
	"guildkit/engine"
)

// XPAwarder is the leveling producer entry point.
type XPAwarder interface {
	AddXP(ctx context.Context, guild core.GuildID, member core.MemberID, delta int64) (core.MemberLevelState, error)
}

// MessageXP awards XP for guild messages.
type MessageXP struct {
	awarder  XPAwarder
	cooldown *engine.Cooldown
	amount   int64
	log      *slog.Logger
}

func NewMessageXP(awarder XPAwarder, cooldown *engine.Cooldown, amount int64, log *slog.Logger) *MessageXP {
	if log == nil {
		log = slog.Default()
	}
	return &MessageXP{awarder: awarder, cooldown: cooldown, amount: amount, log: log}
}

// OnMessageCreate is registered with discordgo's AddHandler.
func (h *MessageXP) OnMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil {
		return
	}
	h.Handle(context.Background(), m.Message)
}

// Handle awards XP for msg and reports whether any was awarded.
func (h *MessageXP) Handle(ctx context.Context, msg *discordgo.Message) bool {
	if msg == nil || msg.Author == nil || msg.Author.Bot || msg.GuildID == "" || h.amount == 0 {
		return false
	}
	guild, member := core.GuildID(msg.GuildID), core.MemberID(msg.Author.ID)
	if h.cooldown != nil && !h.cooldown.Allow(guild, member) {
		return false
	}
	state, err := h.awarder.AddXP(ctx, guild, member, h.amount)
	if err != nil {
		h.log.WarnContext(ctx, "failed to award message xp", "guild", guild, "member", member, "error", err)
		return false
	}
	if state.Transition != core.TransitionNone {
		h.log.DebugContext(ctx, "member level changed", "guild", guild, "member", member, "level", state.Level, "transition", state.Transition)
	}
	return true
}
