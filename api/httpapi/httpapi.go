// Package httpapi exposes the admin REST API and event stream.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	wsadapter "guildkit/adapters/websocket"
	"guildkit/analytics"
	"guildkit/core"
	"guildkit/engine"
	"guildkit/gamify"
	"guildkit/leaderboard"
	"guildkit/rolesync"
)

const maxBodyBytes = 64 << 10

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// AllowCORSOrigin, if non-empty, enables basic CORS with the given origin (use "*" for any).
	AllowCORSOrigin string
	// APIKeys, if non-empty, enables static API key auth via Authorization: Bearer or X-API-Key.
	APIKeys []string
	// RateLimitEnabled toggles rate limiting.
	RateLimitEnabled bool
	// RateLimitRPM is the allowed requests per minute per client key.
	RateLimitRPM int
	// RateLimitBurst defines burst capacity.
	RateLimitBurst int
	// RateLimitCleanup evicts idle client limiters; zero keeps them forever.
	RateLimitCleanup time.Duration
	// Ping, if set, backs the storage health check.
	Ping func(context.Context) error
	// Stats, if set, serves guild analytics.
	Stats *analytics.Service
	Logger *slog.Logger
}

// MemberView is the member representation of the API.
type MemberView struct {
	Guild   core.GuildID  `json:"guild_id"`
	Member  core.MemberID `json:"member_id"`
	XP      int64         `json:"xp"`
	Level   int64         `json:"level"`
	Rank    int           `json:"rank"`
	Updated time.Time     `json:"updated"`
}

// XPResult is returned after an XP change.
type XPResult struct {
	Level      int64           `json:"level"`
	Transition core.Transition `json:"transition"`
	Member     MemberView      `json:"member"`
}

// SyncResult summarizes a manual role sync.
type SyncResult struct {
	Target   core.RoleID   `json:"target_role_id,omitempty"`
	Removed  []core.RoleID `json:"removed,omitempty"`
	Added    []core.RoleID `json:"added,omitempty"`
	Skipped  string        `json:"skipped,omitempty"`
	Verified bool          `json:"verified"`
	Failures []string      `json:"failures,omitempty"`
}

type server struct {
	kit   *gamify.Kit
	opts  Options
	log   *slog.Logger
	stats *analytics.Service
}

// NewMux builds an http.Handler exposing the admin API and WebSocket stream.
// Routes:
//   - GET  {prefix}/healthz
//   - GET  {prefix}/guilds/{guild}/members/{member}
//   - POST {prefix}/guilds/{guild}/members/{member}/xp?delta=50
//   - POST {prefix}/guilds/{guild}/members/{member}/sync
//   - GET  {prefix}/guilds/{guild}/leaderboard?limit=10
//   - GET  {prefix}/guilds/{guild}/rewards
//   - PUT  {prefix}/guilds/{guild}/rewards
//   - GET  {prefix}/guilds/{guild}/stats?day=2006-01-02
//   - WS   {prefix}/ws?guild={guild}
func NewMux(kit *gamify.Kit, opts Options) http.Handler {
	s := &server{kit: kit, opts: opts, log: opts.Logger, stats: opts.Stats}
	if s.log == nil {
		s.log = slog.Default()
	}
	p := func(method, path string) string { return method + " " + withPrefix(opts.PathPrefix, path) }

	mux := http.NewServeMux()
	mux.HandleFunc(p(http.MethodGet, "/healthz"), s.healthCheck)
	mux.HandleFunc(p(http.MethodGet, "/guilds/{guild}/members/{member}"), s.getMember)
	mux.HandleFunc(p(http.MethodPost, "/guilds/{guild}/members/{member}/xp"), s.addXP)
	mux.HandleFunc(p(http.MethodPost, "/guilds/{guild}/members/{member}/sync"), s.syncMember)
	mux.HandleFunc(p(http.MethodGet, "/guilds/{guild}/leaderboard"), s.leaderboard)
	mux.HandleFunc(p(http.MethodGet, "/guilds/{guild}/rewards"), s.getRewards)
	mux.HandleFunc(p(http.MethodPut, "/guilds/{guild}/rewards"), s.putRewards)
	mux.HandleFunc(p(http.MethodGet, "/guilds/{guild}/stats"), s.guildStats)
	if kit.Hub != nil {
		mux.Handle(withPrefix(opts.PathPrefix, "/ws"), wsadapter.Handler(kit.Hub, s.log))
	}

	allowed := keySet(opts.APIKeys)
	var handler http.Handler = mux
	if opts.AllowCORSOrigin != "" {
		handler = withCORS(handler, opts.AllowCORSOrigin)
	}
	if len(allowed) > 0 {
		handler = withAPIKeyAuth(handler, allowed)
	}
	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		handler = withRateLimit(handler, newRateLimiter(opts.RateLimitRPM, opts.RateLimitBurst, opts.RateLimitCleanup), allowed)
	}
	return handler
}

// healthCheck reports storage reachability.
func (s *server) healthCheck(w http.ResponseWriter, r *http.Request) {
	storage := "ok"
	status := http.StatusOK
	if s.opts.Ping != nil {
		if err := s.opts.Ping(r.Context()); err != nil {
			s.log.WarnContext(r.Context(), "health check failed", "error", err)
			storage = "failed"
			status = http.StatusServiceUnavailable
		}
	}
	body := map[string]any{"status": "healthy", "checks": map[string]any{"storage": storage}}
	if status != http.StatusOK {
		body["status"] = "unhealthy"
	}
	writeJSONStatus(w, status, body)
}

func (s *server) guildMember(w http.ResponseWriter, r *http.Request) (core.GuildID, core.MemberID, bool) {
	guild, ok := s.guild(w, r)
	if !ok {
		return "", "", false
	}
	member, err := core.NormalizeMemberID(core.MemberID(r.PathValue("member")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_member", err.Error(), nil)
		return "", "", false
	}
	return guild, member, true
}

func (s *server) guild(w http.ResponseWriter, r *http.Request) (core.GuildID, bool) {
	guild, err := core.NormalizeGuildID(core.GuildID(r.PathValue("guild")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_guild", err.Error(), nil)
		return "", false
	}
	return guild, true
}

func (s *server) memberView(ctx context.Context, guild core.GuildID, member core.MemberID) (MemberView, error) {
	st, err := s.kit.GetState(ctx, guild, member)
	if err != nil {
		return MemberView{}, err
	}
	rank, err := s.kit.Rank(ctx, guild, member)
	if err != nil {
		return MemberView{}, err
	}
	return MemberView{
		Guild:   guild,
		Member:  member,
		XP:      st.XP,
		Level:   st.Level,
		Rank:    rank,
		Updated: st.Updated,
	}, nil
}

func (s *server) getMember(w http.ResponseWriter, r *http.Request) {
	guild, member, ok := s.guildMember(w, r)
	if !ok {
		return
	}
	view, err := s.memberView(r.Context(), guild, member)
	if err != nil {
		s.internal(w, r, err)
		return
	}
	writeJSON(w, view)
}

// addXP runs the same producer path as chat messages, so negative deltas
// can demote members and trigger role sync.
func (s *server) addXP(w http.ResponseWriter, r *http.Request) {
	guild, member, ok := s.guildMember(w, r)
	if !ok {
		return
	}
	delta, err := strconv.ParseInt(r.URL.Query().Get("delta"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_delta", "delta must be an integer", nil)
		return
	}
	state, err := s.kit.AddXP(r.Context(), guild, member, delta)
	if err != nil {
		if errors.Is(err, engine.ErrDeltaZero) || errors.Is(err, core.ErrOverflow) {
			writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
			return
		}
		s.internal(w, r, err)
		return
	}
	view, err := s.memberView(r.Context(), guild, member)
	if err != nil {
		s.internal(w, r, err)
		return
	}
	writeJSON(w, XPResult{Level: state.Level, Transition: state.Transition, Member: view})
}

func (s *server) syncMember(w http.ResponseWriter, r *http.Request) {
	guild, member, ok := s.guildMember(w, r)
	if !ok {
		return
	}
	if s.kit.Sync == nil {
		writeError(w, http.StatusServiceUnavailable, "sync_unavailable", "no platform gateway configured", nil)
		return
	}
	st, err := s.kit.GetState(r.Context(), guild, member)
	if err != nil {
		s.internal(w, r, err)
		return
	}
	out := s.kit.Sync.Sync(r.Context(), s.kit.App, guild, member, core.MemberLevelState{Level: st.Level, Transition: core.TransitionNone})
	writeJSON(w, syncResult(out))
}

func syncResult(out rolesync.Outcome) SyncResult {
	res := SyncResult{
		Target:   out.Decision.Target,
		Removed:  out.Decision.Remove,
		Added:    out.Decision.Add,
		Skipped:  string(out.Skipped),
		Verified: out.Verified,
	}
	for _, f := range out.Failures {
		res.Failures = append(res.Failures, f.Error())
	}
	return res
}

func (s *server) leaderboard(w http.ResponseWriter, r *http.Request) {
	guild, ok := s.guild(w, r)
	if !ok {
		return
	}
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and 100", nil)
			return
		}
		limit = n
	}
	entries, err := s.kit.Top(r.Context(), guild, limit)
	if err != nil {
		s.internal(w, r, err)
		return
	}
	if entries == nil {
		entries = []leaderboard.Entry{}
	}
	writeJSON(w, entries)
}

func (s *server) getRewards(w http.ResponseWriter, r *http.Request) {
	guild, ok := s.guild(w, r)
	if !ok {
		return
	}
	if s.kit.Rewards == nil {
		writeError(w, http.StatusNotImplemented, "rewards_unavailable", "storage does not hold reward configs", nil)
		return
	}
	cfg, err := s.kit.Rewards.RewardConfig(r.Context(), s.kit.App, guild)
	if err != nil {
		s.internal(w, r, err)
		return
	}
	if cfg == nil {
		writeError(w, http.StatusNotFound, "not_found", "no reward config for guild", nil)
		return
	}
	writeJSON(w, cfg)
}

func (s *server) putRewards(w http.ResponseWriter, r *http.Request) {
	guild, ok := s.guild(w, r)
	if !ok {
		return
	}
	if s.kit.Rewards == nil {
		writeError(w, http.StatusNotImplemented, "rewards_unavailable", "storage does not hold reward configs", nil)
		return
	}
	var cfg core.RewardConfig
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error(), nil)
		return
	}
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_config", err.Error(), nil)
		return
	}
	if err := s.kit.Rewards.SetRewardConfig(r.Context(), s.kit.App, guild, cfg); err != nil {
		s.internal(w, r, err)
		return
	}
	s.log.InfoContext(r.Context(), "reward config updated", "guild", guild, "rules", len(cfg.Rules))
	writeJSON(w, cfg)
}

func (s *server) guildStats(w http.ResponseWriter, r *http.Request) {
	guild, ok := s.guild(w, r)
	if !ok {
		return
	}
	if s.stats == nil {
		writeError(w, http.StatusNotImplemented, "stats_unavailable", "analytics disabled", nil)
		return
	}
	day := time.Now().UTC()
	if v := r.URL.Query().Get("day"); v != "" {
		d, err := time.Parse(time.DateOnly, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_day", "day must be YYYY-MM-DD", nil)
			return
		}
		day = d
	}
	writeJSON(w, s.stats.Snapshot(guild, day))
}

func (s *server) internal(w http.ResponseWriter, r *http.Request, err error) {
	s.log.ErrorContext(r.Context(), "admin api request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "internal", "internal error", nil)
}

func withPrefix(prefix, path string) string {
	if prefix == "" || prefix == "/" {
		return path
	}
	if prefix[len(prefix)-1] == '/' {
		return prefix[:len(prefix)-1] + path
	}
	return prefix + path
}

func writeJSON(w http.ResponseWriter, v any) { writeJSONStatus(w, http.StatusOK, v) }

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string, details any) {
	writeJSONStatus(w, status, apiError{Code: code, Message: msg, Details: details})
}
