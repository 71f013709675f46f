// Package sdk is a typed client for the guildkit admin API.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"guildkit/core"
)

// Option configures the Client.
type Option func(*Client)

// Client provides typed access to the guildkit HTTP + WebSocket API.
type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	headers    http.Header
}

// NewClient constructs a new SDK client targeting the given baseURL (e.g., http://localhost:8080/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL:    baseURL,
		wsURL:      deriveWSURL(baseURL),
		httpClient: http.DefaultClient,
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithAPIKey adds an X-API-Key header to HTTP and WS calls.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if strings.TrimSpace(key) != "" {
			c.headers.Set("X-API-Key", key)
		}
	}
}

// WithHeader sets an arbitrary header applied to HTTP and WS calls.
func WithHeader(k, v string) Option {
	return func(c *Client) {
		if k != "" {
			c.headers.Set(k, v)
		}
	}
}

func memberPath(guild, member string) (string, error) {
	if strings.TrimSpace(guild) == "" {
		return "", ErrEmptyGuildID
	}
	if strings.TrimSpace(member) == "" {
		return "", ErrEmptyMemberID
	}
	return fmt.Sprintf("/guilds/%s/members/%s", url.PathEscape(guild), url.PathEscape(member)), nil
}

func guildPath(guild, suffix string) (string, error) {
	if strings.TrimSpace(guild) == "" {
		return "", ErrEmptyGuildID
	}
	return "/guilds/" + url.PathEscape(guild) + suffix, nil
}

// GetMember fetches a member's leveling state.
func (c *Client) GetMember(ctx context.Context, guild, member string) (Member, error) {
	p, err := memberPath(guild, member)
	if err != nil {
		return Member{}, err
	}
	var m Member
	err = c.do(ctx, http.MethodGet, p, nil, nil, &m)
	return m, err
}

// AddXP changes a member's XP by delta, which may be negative.
func (c *Client) AddXP(ctx context.Context, guild, member string, delta int64) (XPResult, error) {
	p, err := memberPath(guild, member)
	if err != nil {
		return XPResult{}, err
	}
	var res XPResult
	err = c.do(ctx, http.MethodPost, p+"/xp", url.Values{"delta": {strconv.FormatInt(delta, 10)}}, nil, &res)
	return res, err
}

// SyncMember reconciles a member's reward roles against the stored level.
func (c *Client) SyncMember(ctx context.Context, guild, member string) (SyncResult, error) {
	p, err := memberPath(guild, member)
	if err != nil {
		return SyncResult{}, err
	}
	var res SyncResult
	err = c.do(ctx, http.MethodPost, p+"/sync", nil, nil, &res)
	return res, err
}

// Leaderboard returns the top limit members of a guild.
func (c *Client) Leaderboard(ctx context.Context, guild string, limit int) ([]LeaderboardEntry, error) {
	p, err := guildPath(guild, "/leaderboard")
	if err != nil {
		return nil, err
	}
	var q url.Values
	if limit > 0 {
		q = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	var out []LeaderboardEntry
	err = c.do(ctx, http.MethodGet, p, q, nil, &out)
	return out, err
}

// GetRewards returns the guild's reward config, or nil when none is set.
func (c *Client) GetRewards(ctx context.Context, guild string) (*core.RewardConfig, error) {
	p, err := guildPath(guild, "/rewards")
	if err != nil {
		return nil, err
	}
	var cfg core.RewardConfig
	if err := c.do(ctx, http.MethodGet, p, nil, nil, &cfg); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

// PutRewards replaces the guild's reward config.
func (c *Client) PutRewards(ctx context.Context, guild string, cfg core.RewardConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	p, err := guildPath(guild, "/rewards")
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, p, nil, cfg, nil)
}

// Stats fetches a guild's analytics for day; the zero time means today.
func (c *Client) Stats(ctx context.Context, guild string, day time.Time) (Stats, error) {
	p, err := guildPath(guild, "/stats")
	if err != nil {
		return Stats{}, err
	}
	var q url.Values
	if !day.IsZero() {
		q = url.Values{"day": {day.UTC().Format(time.DateOnly)}}
	}
	var s Stats
	err = c.do(ctx, http.MethodGet, p, q, nil, &s)
	return s, err
}

// Health probes /healthz. An unhealthy service yields an *APIError.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var hs HealthStatus
	err := c.do(ctx, http.MethodGet, "/healthz", nil, nil, &hs)
	return hs, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, out)
}

// SubscribeEvents connects to the WebSocket stream and emits core.Event
// values, optionally limited to one guild. The returned channel closes when
// ctx is done or the connection drops.
func (c *Client) SubscribeEvents(ctx context.Context, guild string) (<-chan core.Event, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	target := c.wsURL
	if guild != "" {
		target += "?guild=" + url.QueryEscape(guild)
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, target, c.headers)
	if err != nil {
		return nil, err
	}

	out := make(chan core.Event, 32)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			var evt core.Event
			if err := conn.ReadJSON(&evt); err != nil {
				return
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (c *Client) applyHeaders(r *http.Request) {
	for k, vals := range c.headers {
		for _, v := range vals {
			r.Header.Add(k, v)
		}
	}
}

func deriveWSURL(httpBase string) string {
	u, err := url.Parse(httpBase)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		// leave as-is for custom schemes
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}
