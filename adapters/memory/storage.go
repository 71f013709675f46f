package memory

import (
	"context"
	"sync"
	"time"

	"guildkit/core"
)

// Store is a concurrent in-memory Storage and RewardStore implementation.
type Store struct {
	members sync.Map // map[memberKey]*memberRecord

	mu      sync.RWMutex
	rewards map[rewardKey]core.RewardConfig
}

type memberKey struct {
	guild  core.GuildID
	member core.MemberID
}

type rewardKey struct {
	app   core.AppID
	guild core.GuildID
}

type memberRecord struct {
	mu    sync.Mutex
	state core.MemberState
}

func New() *Store { return &Store{rewards: map[rewardKey]core.RewardConfig{}} }

func (s *Store) getOrCreate(guild core.GuildID, member core.MemberID) *memberRecord {
	k := memberKey{guild, member}
	if v, ok := s.members.Load(k); ok {
		return v.(*memberRecord)
	}
	rec := &memberRecord{state: core.MemberState{Guild: guild, Member: member, Updated: time.Now().UTC()}}
	actual, _ := s.members.LoadOrStore(k, rec)
	return actual.(*memberRecord)
}

func (s *Store) AddXP(_ context.Context, guild core.GuildID, member core.MemberID, delta int64) (int64, error) {
	rec := s.getOrCreate(guild, member)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	next, err := core.AddSafe(rec.state.XP, delta)
	if err != nil {
		return 0, err
	}
	rec.state.XP = next
	rec.state.Updated = time.Now().UTC()
	return next, nil
}

func (s *Store) GetState(_ context.Context, guild core.GuildID, member core.MemberID) (core.MemberState, error) {
	rec := s.getOrCreate(guild, member)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.state, nil
}

func (s *Store) SetLevel(_ context.Context, guild core.GuildID, member core.MemberID, level int64) error {
	rec := s.getOrCreate(guild, member)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.state.Level = level
	rec.state.Updated = time.Now().UTC()
	return nil
}

// ListMembers returns the records of a guild in no particular order.
func (s *Store) ListMembers(_ context.Context, guild core.GuildID) ([]core.MemberState, error) {
	var out []core.MemberState
	s.members.Range(func(k, v any) bool {
		if k.(memberKey).guild != guild {
			return true
		}
		rec := v.(*memberRecord)
		rec.mu.Lock()
		out = append(out, rec.state)
		rec.mu.Unlock()
		return true
	})
	return out, nil
}

// RewardConfig returns nil when the guild has no configuration.
func (s *Store) RewardConfig(_ context.Context, app core.AppID, guild core.GuildID) (*core.RewardConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.rewards[rewardKey{app, guild}]
	if !ok {
		return nil, nil
	}
	cp := cfg.Clone()
	return &cp, nil
}

func (s *Store) SetRewardConfig(_ context.Context, app core.AppID, guild core.GuildID, cfg core.RewardConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rewards[rewardKey{app, guild}] = cfg.Clone()
	return nil
}

var _ interface {
	AddXP(context.Context, core.GuildID, core.MemberID, int64) (int64, error)
	GetState(context.Context, core.GuildID, core.MemberID) (core.MemberState, error)
	SetLevel(context.Context, core.GuildID, core.MemberID, int64) error
	ListMembers(context.Context, core.GuildID) ([]core.MemberState, error)
	RewardConfig(context.Context, core.AppID, core.GuildID) (*core.RewardConfig, error)
	SetRewardConfig(context.Context, core.AppID, core.GuildID, core.RewardConfig) error
} = (*Store)(nil)
