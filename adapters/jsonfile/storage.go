package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"guildkit/core"
)

// Store persists leveling state and reward configs to a single JSON file.
// Suitable for small single-guild deployments.
type Store struct {
	path string
	mu   sync.Mutex
	// in-memory cache for speed
	data document
}

type document struct {
	// Members is keyed by "guild/member".
	Members map[string]core.MemberState `json:"members"`
	// Rewards is keyed by "app/guild".
	Rewards map[string]core.RewardConfig `json:"rewards"`
}

func New(path string) (*Store, error) {
	s := &Store{path: path, data: document{Members: map[string]core.MemberState{}, Rewards: map[string]core.RewardConfig{}}}
	if err := s.load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return s, nil
}

func memberKey(guild core.GuildID, member core.MemberID) string { return string(guild) + "/" + string(member) }

func rewardKey(app core.AppID, guild core.GuildID) string { return string(app) + "/" + string(guild) }

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	for k, v := range doc.Members {
		s.data.Members[k] = v
	}
	for k, v := range doc.Rewards {
		s.data.Rewards[k] = v
	}
	return nil
}

func (s *Store) persist() error {
	tmp := s.path + ".tmp"
	b, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) get(guild core.GuildID, member core.MemberID) core.MemberState {
	if st, ok := s.data.Members[memberKey(guild, member)]; ok {
		return st
	}
	return core.MemberState{Guild: guild, Member: member, Updated: time.Now().UTC()}
}

func (s *Store) AddXP(_ context.Context, guild core.GuildID, member core.MemberID, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(guild, member)
	next, err := core.AddSafe(st.XP, delta)
	if err != nil {
		return 0, err
	}
	st.XP = next
	st.Updated = time.Now().UTC()
	s.data.Members[memberKey(guild, member)] = st
	if err := s.persist(); err != nil {
		return 0, err
	}
	return next, nil
}

func (s *Store) GetState(_ context.Context, guild core.GuildID, member core.MemberID) (core.MemberState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(guild, member), nil
}

func (s *Store) SetLevel(_ context.Context, guild core.GuildID, member core.MemberID, level int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(guild, member)
	st.Level = level
	st.Updated = time.Now().UTC()
	s.data.Members[memberKey(guild, member)] = st
	return s.persist()
}

// ListMembers returns the stored members of a guild.
func (s *Store) ListMembers(_ context.Context, guild core.GuildID) ([]core.MemberState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.MemberState
	for _, st := range s.data.Members {
		if st.Guild == guild {
			out = append(out, st)
		}
	}
	return out, nil
}

func (s *Store) RewardConfig(_ context.Context, app core.AppID, guild core.GuildID) (*core.RewardConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.data.Rewards[rewardKey(app, guild)]
	if !ok {
		return nil, nil
	}
	cp := cfg.Clone()
	return &cp, nil
}

func (s *Store) SetRewardConfig(_ context.Context, app core.AppID, guild core.GuildID, cfg core.RewardConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Rewards[rewardKey(app, guild)] = cfg.Clone()
	return s.persist()
}
