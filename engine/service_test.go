package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mem "guildkit/adapters/memory"
	"guildkit/core"
	"guildkit/leaderboard"
)

func TestAddXPAndLevelUp(t *testing.T) {
	store := mem.New()
	bus := NewEventBus(DispatchSync)
	svc := NewLevelingService(store, bus, DefaultRuleEngine())

	var seen []core.Event
	svc.Subscribe(core.EventXPAdded, func(ctx context.Context, e core.Event) {
		// level must already be committed
		st, err := store.GetState(ctx, e.Guild, e.Member)
		require.NoError(t, err)
		assert.Equal(t, e.Level, st.Level)
		seen = append(seen, e)
	})
	levelUps := 0
	svc.Subscribe(core.EventLevelUp, func(context.Context, core.Event) { levelUps++ })

	state, err := svc.AddXP(context.Background(), "10", "20", 150)
	require.NoError(t, err)
	assert.Equal(t, core.MemberLevelState{Level: 1, Transition: core.TransitionLevelUp}, state)
	assert.Equal(t, 1, levelUps)

	state, err = svc.AddXP(context.Background(), "10", "20", 5)
	require.NoError(t, err)
	assert.Equal(t, core.TransitionNone, state.Transition)
	assert.Equal(t, 1, levelUps)

	require.Len(t, seen, 2)
	assert.Equal(t, int64(155), seen[1].Total)
}

func TestAddXPLevelDown(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	svc := NewLevelingService(mem.New(), bus, DefaultRuleEngine())
	downs := 0
	svc.Subscribe(core.EventLevelDown, func(context.Context, core.Event) { downs++ })

	_, err := svc.AddXP(context.Background(), "10", "20", 900)
	require.NoError(t, err)
	state, err := svc.AddXP(context.Background(), "10", "20", -600)
	require.NoError(t, err)

	assert.Equal(t, core.MemberLevelState{Level: 1, Transition: core.TransitionLevelDown}, state)
	assert.Equal(t, 1, downs)
}

func TestAddXPValidation(t *testing.T) {
	svc := NewLevelingService(mem.New(), NewEventBus(DispatchSync), DefaultRuleEngine())
	_, err := svc.AddXP(context.Background(), "10", "20", 0)
	assert.ErrorIs(t, err, ErrDeltaZero)
	_, err = svc.AddXP(context.Background(), "", "20", 1)
	assert.ErrorIs(t, err, core.ErrEmptyID)
	_, err = svc.AddXP(context.Background(), "10", "bob", 1)
	assert.ErrorIs(t, err, core.ErrInvalidID)
}

func TestRank(t *testing.T) {
	svc := NewLevelingService(mem.New(), NewEventBus(DispatchSync), DefaultRuleEngine())
	ctx := context.Background()
	_, _ = svc.AddXP(ctx, "10", "1", 10)
	_, _ = svc.AddXP(ctx, "10", "2", 30)
	_, _ = svc.AddXP(ctx, "11", "3", 99)

	rank := func(g core.GuildID, m core.MemberID) int {
		r, err := svc.Rank(ctx, g, m)
		require.NoError(t, err)
		return r
	}
	assert.Equal(t, 1, rank("10", "2"))
	assert.Equal(t, 2, rank("10", "1"))
	assert.Equal(t, 0, rank("10", "3"))
	top, err := svc.Top(ctx, "10", 10)
	require.NoError(t, err)
	assert.Len(t, top, 2)

	_, _ = svc.AddXP(ctx, "10", "1", -10)
	assert.Equal(t, 0, rank("10", "1"), "members without XP leave the board")
}

func TestLeaderboardSeedsFromStorage(t *testing.T) {
	ctx := context.Background()
	store := mem.New()
	_, _ = store.AddXP(ctx, "10", "1", 50)
	_, _ = store.AddXP(ctx, "10", "2", 80)
	_, _ = store.GetState(ctx, "10", "3") // zero-XP record

	svc := NewLevelingService(store, NewEventBus(DispatchSync), DefaultRuleEngine())
	r, err := svc.Rank(ctx, "10", "1")
	require.NoError(t, err)
	assert.Equal(t, 2, r)

	top, err := svc.Top(ctx, "10", 5)
	require.NoError(t, err)
	assert.Equal(t, []leaderboard.Entry{{Member: "2", XP: 80}, {Member: "1", XP: 50}}, top)
}

type failingLister struct{ *mem.Store }

func (failingLister) ListMembers(context.Context, core.GuildID) ([]core.MemberState, error) {
	return nil, errors.New("scan failed")
}

func TestLeaderboardLoadError(t *testing.T) {
	ctx := context.Background()
	svc := NewLevelingService(failingLister{mem.New()}, NewEventBus(DispatchSync), DefaultRuleEngine())

	_, err := svc.Rank(ctx, "10", "1")
	assert.ErrorContains(t, err, "scan failed")

	_, err = svc.AddXP(ctx, "10", "1", 5)
	assert.NoError(t, err, "XP is committed even when the board cannot load")
}

func TestCooldown(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCooldown(time.Minute)
	c.now = func() time.Time { return now }

	assert.True(t, c.Allow("1", "2"))
	assert.False(t, c.Allow("1", "2"))
	assert.True(t, c.Allow("1", "3"))

	now = now.Add(time.Minute)
	assert.True(t, c.Allow("1", "2"))

	now = now.Add(2 * time.Minute)
	c.Prune()
	assert.Empty(t, c.last)

	assert.True(t, NewCooldown(0).Allow("1", "2"))
}
