// Package rolesync keeps a member's reward role in line with their level.
//
// A Synchronizer is best-effort: it never returns an error to its caller.
// Each step reports a *StepError internally and Sync logs them at the top.
//
// Concurrent Sync calls for the same member are not coordinated. Both may
// read the same role set and the later mutation wins; the next XP event
// converges the member again.
package rolesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"guildkit/core"
)

// RewardConfigProvider reads a guild's reward-role configuration.
// A nil config with a nil error means the guild has none.
type RewardConfigProvider interface {
	RewardConfig(ctx context.Context, app core.AppID, guild core.GuildID) (*core.RewardConfig, error)
}

// MembershipGateway reads and mutates platform-side membership.
// Every method may fail independently.
type MembershipGateway interface {
	MemberRoles(ctx context.Context, guild core.GuildID, member core.MemberID) ([]core.RoleID, error)
	AddRoles(ctx context.Context, guild core.GuildID, member core.MemberID, roles []core.RoleID) error
	RemoveRoles(ctx context.Context, guild core.GuildID, member core.MemberID, roles []core.RoleID) error
	RoleName(ctx context.Context, guild core.GuildID, role core.RoleID) (string, error)
	SendMessage(ctx context.Context, channel core.ChannelID, content string) error
}

// Step names one stage of a synchronization.
type Step string

const (
	StepLoadConfig  Step = "load_config"
	StepReadRoles   Step = "read_roles"
	StepRemoveRoles Step = "remove_roles"
	StepAddRoles    Step = "add_roles"
	StepVerify      Step = "verify"
	StepRoleName    Step = "role_name"
	StepNotify      Step = "notify"
	StepRecover     Step = "recover"
)

// StepError is a failure of a single step.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("%s: %v", e.Step, e.Err) }
func (e *StepError) Unwrap() error { return e.Err }

func stepErr(step Step, err error) *StepError { return &StepError{Step: step, Err: err} }

// ErrVerificationMismatch is reported when the re-read role set does not
// match the decision.
var ErrVerificationMismatch = errors.New("role state does not match intent")

// SkipReason explains why a sync ended without mutating anything.
type SkipReason string

const (
	SkipNone     SkipReason = ""
	SkipNoConfig SkipReason = "no_config"
	SkipInSync   SkipReason = "in_sync"
)

// Outcome describes what one Sync did. It is informational; callers are
// not expected to act on it.
type Outcome struct {
	Decision core.SyncDecision
	Skipped  SkipReason
	Failures []*StepError
	Verified bool
	Notified bool
}

// Failed reports whether step failed during the sync.
func (o Outcome) Failed(step Step) bool {
	for _, f := range o.Failures {
		if f.Step == step {
			return true
		}
	}
	return false
}

// MessageFunc renders the level transition notification.
// roleName is "" when the member holds no reward role afterwards.
type MessageFunc func(member core.MemberID, state core.MemberLevelState, roleName string) string

// DefaultMessage is the stock notification text.
func DefaultMessage(member core.MemberID, state core.MemberLevelState, roleName string) string {
	verb := "reached"
	if state.Transition == core.TransitionLevelDown {
		verb = "dropped to"
	}
	if roleName == "" {
		return fmt.Sprintf("<@%s> %s level %d and no longer holds a reward role.", member, verb, state.Level)
	}
	return fmt.Sprintf("<@%s> %s level %d and now holds the **%s** role.", member, verb, state.Level, roleName)
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

func WithLogger(l *slog.Logger) Option {
	return func(s *Synchronizer) {
		if l != nil {
			s.log = l
		}
	}
}

// WithPublisher receives a roles_synced event after every applied decision.
func WithPublisher(p func(context.Context, core.Event)) Option {
	return func(s *Synchronizer) { s.publish = p }
}

func WithMessage(f MessageFunc) Option {
	return func(s *Synchronizer) {
		if f != nil {
			s.message = f
		}
	}
}

// Synchronizer reconciles reward roles for one member at a time. Calls for
// the same member are not serialized; overlapping syncs may both mutate and
// the next sync converges.
type Synchronizer struct {
	config  RewardConfigProvider
	gateway MembershipGateway
	log     *slog.Logger
	publish func(context.Context, core.Event)
	message MessageFunc
}

func New(config RewardConfigProvider, gateway MembershipGateway, opts ...Option) *Synchronizer {
	if config == nil || gateway == nil {
		panic("rolesync.New requires non-nil config provider and gateway")
	}
	s := &Synchronizer{config: config, gateway: gateway, log: slog.Default(), message: DefaultMessage}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Sync reconciles member's reward role with state. It never fails; every
// step error is logged and reported in the Outcome.
func (s *Synchronizer) Sync(ctx context.Context, app core.AppID, guild core.GuildID, member core.MemberID, state core.MemberLevelState) Outcome {
	out := s.sync(ctx, app, guild, member, state)
	for _, f := range out.Failures {
		level := slog.LevelWarn
		if f.Step == StepVerify {
			level = slog.LevelInfo
		}
		s.log.Log(ctx, level, "role sync step failed",
			"guild", guild,
			"member", member,
			"level", state.Level,
			"step", string(f.Step),
			"error", f.Err)
	}
	return out
}

func (s *Synchronizer) sync(ctx context.Context, app core.AppID, guild core.GuildID, member core.MemberID, state core.MemberLevelState) (out Outcome) {
	defer func() {
		if p := recover(); p != nil {
			out.Failures = append(out.Failures, stepErr(StepRecover, fmt.Errorf("panic: %v", p)))
		}
	}()

	cfg, err := s.config.RewardConfig(ctx, app, guild)
	if err != nil {
		out.Failures = append(out.Failures, stepErr(StepLoadConfig, err))
		return out
	}
	if cfg == nil || len(cfg.Rules) == 0 {
		out.Skipped = SkipNoConfig
		return out
	}

	held, err := s.gateway.MemberRoles(ctx, guild, member)
	if err != nil {
		out.Failures = append(out.Failures, stepErr(StepReadRoles, err))
		return out
	}

	d := Decide(*cfg, state, held)
	out.Decision = d
	if d.Noop() {
		out.Skipped = SkipInSync
		return out
	}

	// Removals first: a failed addition must not leave two reward roles.
	if len(d.Remove) > 0 {
		if err := s.gateway.RemoveRoles(ctx, guild, member, d.Remove); err != nil {
			out.Failures = append(out.Failures, stepErr(StepRemoveRoles, err))
		}
	}
	if len(d.Add) > 0 {
		if err := s.gateway.AddRoles(ctx, guild, member, d.Add); err != nil {
			out.Failures = append(out.Failures, stepErr(StepAddRoles, err))
		}
	}

	if err := s.verify(ctx, *cfg, guild, member, d.Target); err != nil {
		out.Failures = append(out.Failures, err)
	} else {
		out.Verified = true
	}

	if s.publish != nil {
		s.publish(ctx, core.NewRolesSynced(guild, member, state.Level, d))
	}

	if d.Notify {
		if err := s.notify(ctx, *cfg, guild, member, state, d.Target, &out); err != nil {
			out.Failures = append(out.Failures, err)
		} else {
			out.Notified = true
		}
	}
	return out
}

func (s *Synchronizer) verify(ctx context.Context, cfg core.RewardConfig, guild core.GuildID, member core.MemberID, target core.RoleID) *StepError {
	after, err := s.gateway.MemberRoles(ctx, guild, member)
	if err != nil {
		return stepErr(StepVerify, err)
	}
	held := heldRewardRoles(cfg, after)
	_, hasTarget := held[target]
	want := 0
	if target != "" {
		want = 1
	}
	if len(held) != want || (target != "" && !hasTarget) {
		return stepErr(StepVerify, fmt.Errorf("%w: want %q, holding %d reward roles", ErrVerificationMismatch, target, len(held)))
	}
	return nil
}

func (s *Synchronizer) notify(ctx context.Context, cfg core.RewardConfig, guild core.GuildID, member core.MemberID, state core.MemberLevelState, target core.RoleID, out *Outcome) *StepError {
	name := ""
	if target != "" {
		n, err := s.gateway.RoleName(ctx, guild, target)
		if err != nil {
			// fall back to a role mention
			out.Failures = append(out.Failures, stepErr(StepRoleName, err))
			n = "<@&" + string(target) + ">"
		}
		name = n
	}
	if err := s.gateway.SendMessage(ctx, cfg.Channel, s.message(member, state, name)); err != nil {
		return stepErr(StepNotify, err)
	}
	return nil
}
