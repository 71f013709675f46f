package sdk

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mem "guildkit/adapters/memory"
	"guildkit/api/httpapi"
	"guildkit/core"
	"guildkit/engine"
	"guildkit/gamify"
	"guildkit/realtime"
)

func newTestServer(t *testing.T) (*httptest.Server, *gamify.Kit) {
	t.Helper()
	kit := gamify.New(
		gamify.WithAppID("900"),
		gamify.WithStorage(mem.New()),
		gamify.WithDispatchMode(engine.DispatchSync),
		gamify.WithRealtime(realtime.NewHub()),
	)
	srv := httptest.NewServer(httpapi.NewMux(kit, httpapi.Options{PathPrefix: "/api", APIKeys: []string{"k1"}}))
	t.Cleanup(func() {
		srv.Close()
		kit.Close()
	})
	return srv, kit
}

func TestClient_MembersAndHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	client, err := NewClient(srv.URL+"/api", WithAPIKey("k1"))
	require.NoError(t, err)
	ctx := context.Background()

	res, err := client.AddXP(ctx, "1", "2", 400)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Level)
	assert.Equal(t, core.TransitionLevelUp, res.Transition)

	m, err := client.GetMember(ctx, "1", "2")
	require.NoError(t, err)
	assert.Equal(t, "2", m.MemberID)
	assert.Equal(t, int64(400), m.XP)
	assert.Equal(t, 1, m.Rank)

	top, err := client.Leaderboard(ctx, "1", 5)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, LeaderboardEntry{MemberID: "2", XP: 400}, top[0])

	health, err := client.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)

	_, err = client.GetMember(ctx, "", "2")
	assert.ErrorIs(t, err, ErrEmptyGuildID)
}

func TestClient_Rewards(t *testing.T) {
	srv, _ := newTestServer(t)
	client, err := NewClient(srv.URL+"/api", WithAPIKey("k1"))
	require.NoError(t, err)
	ctx := context.Background()

	cfg, err := client.GetRewards(ctx, "1")
	require.NoError(t, err)
	assert.Nil(t, cfg)

	want := core.RewardConfig{Rules: []core.RewardRoleRule{{Role: "10", Level: 5}}, Channel: "7"}
	require.NoError(t, client.PutRewards(ctx, "1", want))

	cfg, err = client.GetRewards(ctx, "1")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, want, *cfg)
}

func TestClient_APIError(t *testing.T) {
	srv, _ := newTestServer(t)
	client, err := NewClient(srv.URL + "/api")
	require.NoError(t, err)

	_, err = client.GetMember(context.Background(), "1", "2")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.Status)
	assert.Equal(t, "unauthorized", apiErr.Code)

	_, err = client.SyncMember(context.Background(), "1", "2")
	require.Error(t, err)
}

func TestClient_SubscribeEvents(t *testing.T) {
	srv, kit := newTestServer(t)
	client, err := NewClient(srv.URL+"/api", WithAPIKey("k1"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	events, err := client.SubscribeEvents(ctx, "1")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return kit.Hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	_, err = kit.AddXP(ctx, "1", "2", 10)
	require.NoError(t, err)

	select {
	case evt := <-events:
		assert.Equal(t, core.EventXPAdded, evt.Type)
		assert.Equal(t, core.MemberID("2"), evt.Member)
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestDeriveWSURL(t *testing.T) {
	assert.Equal(t, "wss://bot.example/api/ws", deriveWSURL("https://bot.example/api"))
	assert.Equal(t, "ws://localhost:8080/ws", deriveWSURL("http://localhost:8080/"))
}
