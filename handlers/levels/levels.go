// Package levels serves the "levels" component namespace: rank lookups,
// leaderboards, and on-demand reward role resyncs.
package levels

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"guildkit/core"
	"guildkit/interaction"
	"guildkit/leaderboard"
	"guildkit/rolesync"
)

const Namespace = "levels"

const (
	ActionRank = "rank"
	ActionTop  = "top"
	ActionSync = "sync"
)

const defaultTop = 5

// ErrUnknownAction is returned for actions this namespace does not serve.
var ErrUnknownAction = errors.New("unknown levels action")

// Source exposes the leveling producer's read side.
type Source interface {
	GetState(ctx context.Context, guild core.GuildID, member core.MemberID) (core.MemberState, error)
	Rank(ctx context.Context, guild core.GuildID, member core.MemberID) (int, error)
	Top(ctx context.Context, guild core.GuildID, n int) ([]leaderboard.Entry, error)
}

// Syncer runs a reward role sync for one member.
type Syncer interface {
	Sync(ctx context.Context, app core.AppID, guild core.GuildID, member core.MemberID, state core.MemberLevelState) rolesync.Outcome
}

// Handler implements the namespace.
type Handler struct {
	app    core.AppID
	source Source
	syncer Syncer
}

// New builds the handler. A nil syncer disables the sync action.
func New(app core.AppID, source Source, syncer Syncer) *Handler {
	return &Handler{app: app, source: source, syncer: syncer}
}

// Register adds the handler to reg under Namespace.
func (h *Handler) Register(reg *interaction.Registry) *interaction.Registry {
	return reg.Handle(Namespace, h.Handle)
}

// RankButton is the custom id of the rank button.
func RankButton() string { return interaction.NewIdentifier(Namespace, ActionRank) }

// TopButton is the custom id of a leaderboard button showing n entries.
func TopButton(n int) string {
	return interaction.NewIdentifier(Namespace, ActionTop, strconv.Itoa(n))
}

// SyncButton is the custom id of the resync button.
func SyncButton() string { return interaction.NewIdentifier(Namespace, ActionSync) }

func (h *Handler) Handle(ctx context.Context, ev *interaction.Event, id interaction.Identifier) error {
	switch id.Action {
	case ActionRank:
		return h.rank(ctx, ev)
	case ActionTop:
		return h.top(ctx, ev, id)
	case ActionSync:
		return h.sync(ctx, ev)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, id.Action)
	}
}

func (h *Handler) rank(ctx context.Context, ev *interaction.Event) error {
	st, err := h.source.GetState(ctx, ev.Guild, ev.Member)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	r, err := h.source.Rank(ctx, ev.Guild, ev.Member)
	if err != nil {
		return fmt.Errorf("load rank: %w", err)
	}
	pos := "unranked"
	if r > 0 {
		pos = "#" + strconv.Itoa(r)
	}
	return ev.Responder.RespondEphemeral(ctx, fmt.Sprintf("Level %d with %d XP, rank %s.", st.Level, st.XP, pos))
}

func (h *Handler) top(ctx context.Context, ev *interaction.Event, id interaction.Identifier) error {
	n := defaultTop
	if p := id.Param(0); p != "" {
		v, err := strconv.Atoi(p)
		if err != nil || v <= 0 {
			return fmt.Errorf("invalid leaderboard size %q", p)
		}
		n = min(v, 25)
	}
	entries, err := h.source.Top(ctx, ev.Guild, n)
	if err != nil {
		return fmt.Errorf("load leaderboard: %w", err)
	}
	if len(entries) == 0 {
		return ev.Responder.RespondEphemeral(ctx, "Nobody has earned XP yet.")
	}
	var b strings.Builder
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. <@%s> %d XP\n", i+1, e.Member, e.XP)
	}
	return ev.Responder.RespondEphemeral(ctx, strings.TrimSuffix(b.String(), "\n"))
}

// sync reconciles the pressing member's roles against their stored level.
// No transition is reported, so the sync never posts a notification.
func (h *Handler) sync(ctx context.Context, ev *interaction.Event) error {
	if h.syncer == nil {
		return ev.Responder.RespondEphemeral(ctx, "Reward roles are not enabled here.")
	}
	st, err := h.source.GetState(ctx, ev.Guild, ev.Member)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	out := h.syncer.Sync(ctx, h.app, ev.Guild, ev.Member, core.MemberLevelState{Level: st.Level, Transition: core.TransitionNone})
	var msg string
	switch {
	case out.Skipped == rolesync.SkipNoConfig:
		msg = "This server has no reward roles configured."
	case out.Skipped == rolesync.SkipInSync:
		msg = "Your reward roles are already up to date."
	case mutationFailed(out):
		msg = "Some role changes could not be applied. Please try again later."
	default:
		msg = "Your reward roles have been updated."
	}
	return ev.Responder.RespondEphemeral(ctx, msg)
}

// mutationFailed ignores verify and notify failures; the member's roles
// were still changed as requested.
func mutationFailed(out rolesync.Outcome) bool {
	for _, f := range out.Failures {
		switch f.Step {
		case rolesync.StepVerify, rolesync.StepRoleName, rolesync.StepNotify:
		default:
			return true
		}
	}
	return false
}
