package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"guildkit/core"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string        `json:"addr" env:"GUILDKIT_REDIS_ADDR"`
	Password     string        `json:"password,omitempty" env:"GUILDKIT_REDIS_PASSWORD"`
	DB           int           `json:"db" env:"GUILDKIT_REDIS_DB"`
	PoolSize     int           `json:"pool_size" env:"GUILDKIT_REDIS_POOL_SIZE"`
	MinIdleConns int           `json:"min_idle_conns" env:"GUILDKIT_REDIS_MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `json:"dial_timeout" env:"GUILDKIT_REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `json:"read_timeout" env:"GUILDKIT_REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout" env:"GUILDKIT_REDIS_WRITE_TIMEOUT"`
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Store implements engine.Storage and engine.RewardStore on Redis.
// Data structure:
// - guild:{guild_id}:member:{member_id} -> hash {xp, level, updated}
// - guild:{guild_id}:rewards:{app_id}   -> JSON blob of RewardConfig
type Store struct {
	client *redis.Client
}

// New creates a new Redis-backed storage with the provided configuration
func New(config Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client}, nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping reports whether the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func memberKey(guild core.GuildID, member core.MemberID) string {
	return fmt.Sprintf("guild:%s:member:%s", guild, member)
}

// membersKey indexes the members of a guild that have earned XP.
func membersKey(guild core.GuildID) string {
	return fmt.Sprintf("guild:%s:members", guild)
}

func rewardsKey(app core.AppID, guild core.GuildID) string {
	return fmt.Sprintf("guild:%s:rewards:%s", guild, app)
}

// Lua script for atomic XP addition with overflow protection
var addXPScript = redis.NewScript(`
	local key = KEYS[1]
	local delta = tonumber(ARGV[1])
	local current = tonumber(redis.call('HGET', key, 'xp') or '0')
	local next_val = current + delta

	if next_val > 9223372036854775807 or next_val < -9223372036854775808 then
		return redis.error_reply('integer overflow')
	end

	redis.call('HSET', key, 'xp', next_val, 'updated', ARGV[2])
	redis.call('SADD', KEYS[2], ARGV[3])
	return next_val
`)

// AddXP atomically adds XP to a member with overflow protection
func (s *Store) AddXP(ctx context.Context, guild core.GuildID, member core.MemberID, delta int64) (int64, error) {
	if delta == 0 {
		return 0, errors.New("delta cannot be zero")
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	result, err := addXPScript.Run(ctx, s.client, []string{memberKey(guild, member), membersKey(guild)}, delta, now, string(member)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to add xp: %w", err)
	}

	total, ok := result.(int64)
	if !ok {
		return 0, errors.New("unexpected result type from Redis script")
	}
	return total, nil
}

type memberHash struct {
	XP      int64  `redis:"xp"`
	Level   int64  `redis:"level"`
	Updated string `redis:"updated"`
}

func (h memberHash) state(guild core.GuildID, member core.MemberID) core.MemberState {
	st := core.MemberState{Guild: guild, Member: member, XP: h.XP, Level: h.Level}
	if h.Updated != "" {
		if t, err := time.Parse(time.RFC3339Nano, h.Updated); err == nil {
			st.Updated = t
		}
	}
	return st
}

// GetState reads the member hash; a missing hash is a zero state.
func (s *Store) GetState(ctx context.Context, guild core.GuildID, member core.MemberID) (core.MemberState, error) {
	var row memberHash
	if err := s.client.HGetAll(ctx, memberKey(guild, member)).Scan(&row); err != nil {
		return core.MemberState{}, fmt.Errorf("failed to get member state: %w", err)
	}
	return row.state(guild, member), nil
}

// ListMembers reads every member indexed for the guild in one pipeline.
func (s *Store) ListMembers(ctx context.Context, guild core.GuildID) ([]core.MemberState, error) {
	ids, err := s.client.SMembers(ctx, membersKey(guild)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HGetAll(ctx, memberKey(guild, core.MemberID(id)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	out := make([]core.MemberState, 0, len(ids))
	for i, cmd := range cmds {
		var row memberHash
		if err := cmd.Scan(&row); err != nil {
			return nil, fmt.Errorf("failed to read member %s: %w", ids[i], err)
		}
		out = append(out, row.state(guild, core.MemberID(ids[i])))
	}
	return out, nil
}

// SetLevel stores the member's level
func (s *Store) SetLevel(ctx context.Context, guild core.GuildID, member core.MemberID, level int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.client.HSet(ctx, memberKey(guild, member), "level", level, "updated", now).Err(); err != nil {
		return fmt.Errorf("failed to set level: %w", err)
	}
	return nil
}

// RewardConfig returns nil when no configuration is stored.
func (s *Store) RewardConfig(ctx context.Context, app core.AppID, guild core.GuildID) (*core.RewardConfig, error) {
	data, err := s.client.Get(ctx, rewardsKey(app, guild)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reward config: %w", err)
	}
	var cfg core.RewardConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode reward config: %w", err)
	}
	return &cfg, nil
}

// SetRewardConfig replaces the stored configuration
func (s *Store) SetRewardConfig(ctx context.Context, app core.AppID, guild core.GuildID, cfg core.RewardConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, rewardsKey(app, guild), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set reward config: %w", err)
	}
	return nil
}
