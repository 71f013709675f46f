package sqlx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"guildkit/core"
)

// Driver names a supported database/sql driver.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
)

// Config holds SQL connection configuration
type Config struct {
	Driver          Driver        `json:"driver" env:"GUILDKIT_SQL_DRIVER"`
	DSN             string        `json:"dsn,omitempty" env:"GUILDKIT_SQL_DSN"`
	MaxOpenConns    int           `json:"max_open_conns" env:"GUILDKIT_SQL_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `json:"max_idle_conns" env:"GUILDKIT_SQL_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" env:"GUILDKIT_SQL_CONN_MAX_LIFETIME"`
	MigrateOnStart  bool          `json:"migrate_on_start" env:"GUILDKIT_SQL_MIGRATE"`
}

// DefaultConfig returns pool defaults for driver; DSN must be supplied.
func DefaultConfig(driver Driver) Config {
	return Config{
		Driver:          driver,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		MigrateOnStart:  true,
	}
}

// Validate checks driver and DSN.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverPostgres, DriverMySQL:
	default:
		return fmt.Errorf("driver must be one of: %s, %s", DriverPostgres, DriverMySQL)
	}
	if c.DSN == "" {
		return errors.New("dsn cannot be empty")
	}
	return nil
}

// Store implements engine.Storage and engine.RewardStore on a SQL database.
type Store struct {
	db     *sqlx.DB
	driver Driver
	now    func() time.Time
}

// New opens a pooled connection and optionally applies the schema.
func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := sqlx.Open(string(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := NewWithDB(db, cfg.Driver)
	if cfg.MigrateOnStart {
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewWithDB wraps an existing handle (useful for testing)
func NewWithDB(db *sqlx.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) Close() error { return s.db.Close() }

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

var schemas = map[Driver][]string{
	DriverPostgres: {
		`CREATE TABLE IF NOT EXISTS member_levels (
			guild_id VARCHAR(32) NOT NULL,
			member_id VARCHAR(32) NOT NULL,
			xp BIGINT NOT NULL DEFAULT 0,
			level BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (guild_id, member_id))`,
		`CREATE TABLE IF NOT EXISTS reward_roles (
			app_id VARCHAR(32) NOT NULL,
			guild_id VARCHAR(32) NOT NULL,
			role_id VARCHAR(32) NOT NULL,
			level BIGINT NOT NULL,
			position INT NOT NULL,
			PRIMARY KEY (app_id, guild_id, position))`,
		`CREATE TABLE IF NOT EXISTS reward_channels (
			app_id VARCHAR(32) NOT NULL,
			guild_id VARCHAR(32) NOT NULL,
			channel_id VARCHAR(32) NOT NULL,
			PRIMARY KEY (app_id, guild_id))`,
	},
	DriverMySQL: {
		`CREATE TABLE IF NOT EXISTS member_levels (
			guild_id VARCHAR(32) NOT NULL,
			member_id VARCHAR(32) NOT NULL,
			xp BIGINT NOT NULL DEFAULT 0,
			level BIGINT NOT NULL DEFAULT 0,
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			PRIMARY KEY (guild_id, member_id))`,
		`CREATE TABLE IF NOT EXISTS reward_roles (
			app_id VARCHAR(32) NOT NULL,
			guild_id VARCHAR(32) NOT NULL,
			role_id VARCHAR(32) NOT NULL,
			level BIGINT NOT NULL,
			position INT NOT NULL,
			PRIMARY KEY (app_id, guild_id, position))`,
		`CREATE TABLE IF NOT EXISTS reward_channels (
			app_id VARCHAR(32) NOT NULL,
			guild_id VARCHAR(32) NOT NULL,
			channel_id VARCHAR(32) NOT NULL,
			PRIMARY KEY (app_id, guild_id))`,
	},
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schemas[s.driver] {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// upserts holds the driver-specific statements that create a member row
// without failing when a concurrent writer created it first.
var upserts = map[Driver]struct{ ensureMember, setLevel string }{
	DriverPostgres: {
		ensureMember: `INSERT INTO member_levels (guild_id, member_id, xp, level, created_at, updated_at) VALUES (?, ?, 0, 0, ?, ?)
			ON CONFLICT (guild_id, member_id) DO NOTHING`,
		setLevel: `INSERT INTO member_levels (guild_id, member_id, xp, level, created_at, updated_at) VALUES (?, ?, 0, ?, ?, ?)
			ON CONFLICT (guild_id, member_id) DO UPDATE SET level = EXCLUDED.level, updated_at = EXCLUDED.updated_at`,
	},
	DriverMySQL: {
		ensureMember: `INSERT INTO member_levels (guild_id, member_id, xp, level, created_at, updated_at) VALUES (?, ?, 0, 0, ?, ?)
			ON DUPLICATE KEY UPDATE guild_id = guild_id`,
		setLevel: `INSERT INTO member_levels (guild_id, member_id, xp, level, created_at, updated_at) VALUES (?, ?, 0, ?, ?, ?)
			ON DUPLICATE KEY UPDATE level = VALUES(level), updated_at = VALUES(updated_at)`,
	},
}

// AddXP adds delta to the member's XP. The row is created first with an
// upsert so the following SELECT ... FOR UPDATE always has a row to lock,
// which serializes concurrent first awards.
func (s *Store) AddXP(ctx context.Context, guild core.GuildID, member core.MemberID, delta int64) (int64, error) {
	if delta == 0 {
		return 0, errors.New("delta cannot be zero")
	}
	var total int64
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		now := s.now()
		if _, err := tx.ExecContext(ctx, tx.Rebind(upserts[s.driver].ensureMember), guild, member, now, now); err != nil {
			return fmt.Errorf("failed to ensure member: %w", err)
		}
		var current int64
		if err := tx.GetContext(ctx, &current,
			tx.Rebind(`SELECT xp FROM member_levels WHERE guild_id = ? AND member_id = ? FOR UPDATE`),
			guild, member); err != nil {
			return fmt.Errorf("failed to read xp: %w", err)
		}
		next, err := core.AddSafe(current, delta)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			tx.Rebind(`UPDATE member_levels SET xp = ?, updated_at = ? WHERE guild_id = ? AND member_id = ?`),
			next, now, guild, member); err != nil {
			return fmt.Errorf("failed to update xp: %w", err)
		}
		total = next
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

type memberRow struct {
	Member    string    `db:"member_id"`
	XP        int64     `db:"xp"`
	Level     int64     `db:"level"`
	UpdatedAt time.Time `db:"updated_at"`
}

// GetState returns a zero state for unknown members.
func (s *Store) GetState(ctx context.Context, guild core.GuildID, member core.MemberID) (core.MemberState, error) {
	st := core.MemberState{Guild: guild, Member: member}
	var row memberRow
	err := s.db.GetContext(ctx, &row,
		s.db.Rebind(`SELECT member_id, xp, level, updated_at FROM member_levels WHERE guild_id = ? AND member_id = ?`),
		guild, member)
	if errors.Is(err, sql.ErrNoRows) {
		return st, nil
	}
	if err != nil {
		return core.MemberState{}, fmt.Errorf("failed to get member state: %w", err)
	}
	st.XP, st.Level, st.Updated = row.XP, row.Level, row.UpdatedAt
	return st, nil
}

// ListMembers returns the guild's members that hold XP.
func (s *Store) ListMembers(ctx context.Context, guild core.GuildID) ([]core.MemberState, error) {
	var rows []memberRow
	if err := s.db.SelectContext(ctx, &rows,
		s.db.Rebind(`SELECT member_id, xp, level, updated_at FROM member_levels WHERE guild_id = ? AND xp > 0`),
		guild); err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	out := make([]core.MemberState, 0, len(rows))
	for _, r := range rows {
		out = append(out, core.MemberState{Guild: guild, Member: core.MemberID(r.Member), XP: r.XP, Level: r.Level, Updated: r.UpdatedAt})
	}
	return out, nil
}

func (s *Store) SetLevel(ctx context.Context, guild core.GuildID, member core.MemberID, level int64) error {
	now := s.now()
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(upserts[s.driver].setLevel), guild, member, level, now, now); err != nil {
		return fmt.Errorf("failed to set level: %w", err)
	}
	return nil
}

type ruleRow struct {
	Role  string `db:"role_id"`
	Level int64  `db:"level"`
}

// RewardConfig returns nil when the guild has neither rules nor a channel.
func (s *Store) RewardConfig(ctx context.Context, app core.AppID, guild core.GuildID) (*core.RewardConfig, error) {
	var rows []ruleRow
	if err := s.db.SelectContext(ctx, &rows,
		s.db.Rebind(`SELECT role_id, level FROM reward_roles WHERE app_id = ? AND guild_id = ? ORDER BY position`),
		app, guild); err != nil {
		return nil, fmt.Errorf("failed to get reward roles: %w", err)
	}
	var channel string
	err := s.db.GetContext(ctx, &channel,
		s.db.Rebind(`SELECT channel_id FROM reward_channels WHERE app_id = ? AND guild_id = ?`),
		app, guild)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get reward channel: %w", err)
	}
	if len(rows) == 0 && channel == "" {
		return nil, nil
	}
	cfg := &core.RewardConfig{Channel: core.ChannelID(channel)}
	for _, r := range rows {
		cfg.Rules = append(cfg.Rules, core.RewardRoleRule{Role: core.RoleID(r.Role), Level: r.Level})
	}
	return cfg, nil
}

// SetRewardConfig replaces the guild's rules and channel atomically.
func (s *Store) SetRewardConfig(ctx context.Context, app core.AppID, guild core.GuildID, cfg core.RewardConfig) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			tx.Rebind(`DELETE FROM reward_roles WHERE app_id = ? AND guild_id = ?`), app, guild); err != nil {
			return fmt.Errorf("failed to clear reward roles: %w", err)
		}
		for i, r := range cfg.Rules {
			if _, err := tx.ExecContext(ctx,
				tx.Rebind(`INSERT INTO reward_roles (app_id, guild_id, role_id, level, position) VALUES (?, ?, ?, ?, ?)`),
				app, guild, r.Role, r.Level, i); err != nil {
				return fmt.Errorf("failed to insert reward role: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			tx.Rebind(`DELETE FROM reward_channels WHERE app_id = ? AND guild_id = ?`), app, guild); err != nil {
			return fmt.Errorf("failed to clear reward channel: %w", err)
		}
		if cfg.Channel != "" {
			if _, err := tx.ExecContext(ctx,
				tx.Rebind(`INSERT INTO reward_channels (app_id, guild_id, channel_id) VALUES (?, ?, ?)`),
				app, guild, cfg.Channel); err != nil {
				return fmt.Errorf("failed to insert reward channel: %w", err)
			}
		}
		return nil
	})
}
