package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"guildkit/core"
)

// Member mirrors the admin API member view.
type Member struct {
	GuildID  string    `json:"guild_id"`
	MemberID string    `json:"member_id"`
	XP       int64     `json:"xp"`
	Level    int64     `json:"level"`
	Rank     int       `json:"rank"`
	Updated  time.Time `json:"updated"`
}

// XPResult is returned by AddXP.
type XPResult struct {
	Level      int64           `json:"level"`
	Transition core.Transition `json:"transition"`
	Member     Member          `json:"member"`
}

// SyncResult is returned by SyncMember.
type SyncResult struct {
	TargetRoleID string   `json:"target_role_id,omitempty"`
	Removed      []string `json:"removed,omitempty"`
	Added        []string `json:"added,omitempty"`
	Skipped      string   `json:"skipped,omitempty"`
	Verified     bool     `json:"verified"`
	Failures     []string `json:"failures,omitempty"`
}

// LeaderboardEntry is one leaderboard row.
type LeaderboardEntry struct {
	MemberID string `json:"member_id"`
	XP       int64  `json:"xp"`
}

// Stats mirrors a guild's daily analytics snapshot.
type Stats struct {
	GuildID      string                      `json:"guild_id"`
	Day          string                      `json:"day"`
	ActiveDaily  int                         `json:"active_daily"`
	ActiveWeekly int                         `json:"active_weekly"`
	XPAwarded    int64                       `json:"xp_awarded"`
	LevelUps     int64                       `json:"level_ups"`
	LevelDowns   int64                       `json:"level_downs"`
	RoleSyncs    int64                       `json:"role_syncs"`
	Interactions map[string]map[string]int64 `json:"interactions,omitempty"`
}

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status string         `json:"status"`
	Checks map[string]any `json:"checks"`
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed: status %d: %s: %s", e.Status, e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}
	if target == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

var (
	// ErrEmptyGuildID is returned when guild id is empty.
	ErrEmptyGuildID = errors.New("guild id is required")
	// ErrEmptyMemberID is returned when member id is empty.
	ErrEmptyMemberID = errors.New("member id is required")
)
