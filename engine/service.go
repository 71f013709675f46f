package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"guildkit/core"
	"guildkit/leaderboard"
)

// ErrDeltaZero is returned for XP changes of zero.
var ErrDeltaZero = errors.New("delta cannot be zero")

// LevelingService wires storage, event bus, and rules into the leveling
// producer. It commits XP and level before publishing anything, so
// subscribers always observe persisted state.
type LevelingService struct {
	storage Storage
	bus     *EventBus
	rules   RuleEngine

	mu     sync.Mutex
	boards map[core.GuildID]leaderboard.Board
}

func NewLevelingService(storage Storage, bus *EventBus, rules RuleEngine) *LevelingService {
	if storage == nil || bus == nil || rules == nil {
		panic("NewLevelingService requires non-nil storage, bus, and rules")
	}
	return &LevelingService{storage: storage, bus: bus, rules: rules, boards: map[core.GuildID]leaderboard.Board{}}
}

func DefaultRuleEngine() RuleEngine {
	return &simpleRuleEngine{rules: []core.Rule{core.LevelChangeRule{}}}
}

// Subscribe convenience method.
func (s *LevelingService) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	return s.bus.Subscribe(typ, handler)
}

func (s *LevelingService) Publish(ctx context.Context, ev core.Event) {
	s.bus.Publish(ctx, ev)
}

// AddXP records delta XP for a member and reports the resulting level and
// transition. Negative deltas are allowed and may produce a level-down.
//
// The previous level is read before the storage increment, so concurrent
// awards for the same member may both report LevelUp and write SetLevel out
// of order. A stale stored level is corrected by the member's next award.
func (s *LevelingService) AddXP(ctx context.Context, guild core.GuildID, member core.MemberID, delta int64) (core.MemberLevelState, error) {
	if delta == 0 {
		return core.MemberLevelState{}, ErrDeltaZero
	}
	g, err := core.NormalizeGuildID(guild)
	if err != nil {
		return core.MemberLevelState{}, fmt.Errorf("guild: %w", err)
	}
	m, err := core.NormalizeMemberID(member)
	if err != nil {
		return core.MemberLevelState{}, fmt.Errorf("member: %w", err)
	}

	prev, err := s.storage.GetState(ctx, g, m)
	if err != nil {
		return core.MemberLevelState{}, fmt.Errorf("load state: %w", err)
	}
	total, err := s.storage.AddXP(ctx, g, m, delta)
	if err != nil {
		return core.MemberLevelState{}, fmt.Errorf("add xp: %w", err)
	}

	level := core.LevelForXP(total)
	state := core.MemberLevelState{Level: level, Transition: core.TransitionBetween(prev.Level, level)}
	trigger := core.NewXPAdded(g, m, delta, total, level, state.Transition)

	derived := s.rules.Evaluate(ctx, prev, trigger)
	for _, d := range derived {
		if d.Type == core.EventLevelUp || d.Type == core.EventLevelDown {
			if err := s.storage.SetLevel(ctx, d.Guild, d.Member, d.Level); err != nil {
				return core.MemberLevelState{}, fmt.Errorf("set level: %w", err)
			}
		}
	}

	// An unloadable board is left unseeded; the next access reads the
	// committed total from storage.
	if b, err := s.board(ctx, g); err == nil {
		place(b, m, total)
	}
	s.bus.Publish(ctx, trigger)
	for _, d := range derived {
		s.bus.Publish(ctx, d)
	}
	return state, nil
}

// GetState returns the stored leveling snapshot of a member.
func (s *LevelingService) GetState(ctx context.Context, guild core.GuildID, member core.MemberID) (core.MemberState, error) {
	return s.storage.GetState(ctx, guild, member)
}

// Rank returns the member's 1-based position on the guild board, or 0 when
// the member has no XP.
func (s *LevelingService) Rank(ctx context.Context, guild core.GuildID, member core.MemberID) (int, error) {
	b, err := s.board(ctx, guild)
	if err != nil {
		return 0, err
	}
	return b.Rank(member), nil
}

// Top returns the n highest members of a guild.
func (s *LevelingService) Top(ctx context.Context, guild core.GuildID, n int) ([]leaderboard.Entry, error) {
	b, err := s.board(ctx, guild)
	if err != nil {
		return nil, err
	}
	return b.TopN(n), nil
}

func (s *LevelingService) Close() { s.bus.Close() }

// board returns the guild's leaderboard, seeding it from storage on first
// access when the storage can list members.
func (s *LevelingService) board(ctx context.Context, guild core.GuildID) (leaderboard.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.boards[guild]; ok {
		return b, nil
	}
	b := leaderboard.NewSkipList()
	if lister, ok := s.storage.(MemberLister); ok {
		members, err := lister.ListMembers(ctx, guild)
		if err != nil {
			return nil, fmt.Errorf("load leaderboard: %w", err)
		}
		for _, m := range members {
			place(b, m.Member, m.XP)
		}
	}
	s.boards[guild] = b
	return b, nil
}

// place keeps only members with positive XP on a board.
func place(b leaderboard.Board, member core.MemberID, xp int64) {
	if xp <= 0 {
		b.Remove(member)
		return
	}
	b.Update(member, xp)
}

type simpleRuleEngine struct{ rules []core.Rule }

func (s *simpleRuleEngine) Evaluate(ctx context.Context, previous core.MemberState, trigger core.Event) []core.Event {
	var out []core.Event
	for _, r := range s.rules {
		out = append(out, r.Evaluate(ctx, previous, trigger)...)
	}
	return out
}
