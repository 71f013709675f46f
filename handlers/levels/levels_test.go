package levels

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mem "guildkit/adapters/memory"
	"guildkit/core"
	"guildkit/engine"
	"guildkit/interaction"
	"guildkit/rolesync"
)

type recorder struct{ replies []string }

func (r *recorder) RespondEphemeral(_ context.Context, content string) error {
	r.replies = append(r.replies, content)
	return nil
}

type fakeSyncer struct {
	out   rolesync.Outcome
	calls []core.MemberLevelState
}

func (f *fakeSyncer) Sync(_ context.Context, _ core.AppID, _ core.GuildID, _ core.MemberID, state core.MemberLevelState) rolesync.Outcome {
	f.calls = append(f.calls, state)
	return f.out
}

func setup(t *testing.T) (*engine.LevelingService, *fakeSyncer, *interaction.Router) {
	t.Helper()
	svc := engine.NewLevelingService(mem.New(), engine.NewEventBus(engine.DispatchSync), engine.DefaultRuleEngine())
	t.Cleanup(svc.Close)
	syncer := &fakeSyncer{}
	reg := New("900", svc, syncer).Register(interaction.NewRegistry())
	return svc, syncer, interaction.NewRouter(reg)
}

func press(router *interaction.Router, customID string) (*recorder, interaction.Result) {
	rec := &recorder{}
	res := router.Dispatch(context.Background(), &interaction.Event{
		CustomID:  customID,
		Origin:    interaction.OriginButton,
		Guild:     "1",
		Member:    "2",
		Responder: rec,
	})
	return rec, res
}

func TestRank(t *testing.T) {
	svc, _, router := setup(t)
	_, err := svc.AddXP(context.Background(), "1", "2", 400)
	require.NoError(t, err)

	rec, res := press(router, RankButton())
	assert.Equal(t, interaction.Handled, res)
	require.Len(t, rec.replies, 1)
	assert.Equal(t, "Level 2 with 400 XP, rank #1.", rec.replies[0])
}

func TestRankUnranked(t *testing.T) {
	_, _, router := setup(t)
	rec, _ := press(router, RankButton())
	assert.Equal(t, []string{"Level 0 with 0 XP, rank unranked."}, rec.replies)
}

func TestTop(t *testing.T) {
	svc, _, router := setup(t)
	ctx := context.Background()
	_, _ = svc.AddXP(ctx, "1", "2", 10)
	_, _ = svc.AddXP(ctx, "1", "3", 30)

	rec, res := press(router, TopButton(1))
	assert.Equal(t, interaction.Handled, res)
	assert.Equal(t, []string{"1. <@3> 30 XP"}, rec.replies)

	_, res = press(router, "levels:top:abc")
	assert.Equal(t, interaction.Failed, res)
}

func TestSyncUsesStoredLevelWithoutTransition(t *testing.T) {
	svc, syncer, router := setup(t)
	_, err := svc.AddXP(context.Background(), "1", "2", 900)
	require.NoError(t, err)

	syncer.out = rolesync.Outcome{Decision: core.SyncDecision{Target: "10", Add: []core.RoleID{"10"}}, Verified: true}
	rec, res := press(router, SyncButton())
	assert.Equal(t, interaction.Handled, res)
	require.Len(t, syncer.calls, 1)
	assert.Equal(t, core.MemberLevelState{Level: 3, Transition: core.TransitionNone}, syncer.calls[0])
	assert.Equal(t, []string{"Your reward roles have been updated."}, rec.replies)
}

func TestSyncReplies(t *testing.T) {
	cases := []struct {
		name string
		out  rolesync.Outcome
		want string
	}{
		{"no config", rolesync.Outcome{Skipped: rolesync.SkipNoConfig}, "This server has no reward roles configured."},
		{"in sync", rolesync.Outcome{Skipped: rolesync.SkipInSync}, "Your reward roles are already up to date."},
		{"add failed", rolesync.Outcome{Failures: []*rolesync.StepError{{Step: rolesync.StepAddRoles, Err: errors.New("x")}}}, "Some role changes could not be applied. Please try again later."},
		{"verify only", rolesync.Outcome{Failures: []*rolesync.StepError{{Step: rolesync.StepVerify, Err: rolesync.ErrVerificationMismatch}}}, "Your reward roles have been updated."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, syncer, router := setup(t)
			syncer.out = tc.out
			rec, _ := press(router, SyncButton())
			assert.Equal(t, []string{tc.want}, rec.replies)
		})
	}
}

func TestUnknownActionFails(t *testing.T) {
	_, _, router := setup(t)
	rec, res := press(router, "levels:prestige")
	assert.Equal(t, interaction.Failed, res)
	assert.Equal(t, []string{interaction.DefaultFailureMessage}, rec.replies)
}

func TestSyncDisabledWithoutSyncer(t *testing.T) {
	svc := engine.NewLevelingService(mem.New(), engine.NewEventBus(engine.DispatchSync), engine.DefaultRuleEngine())
	t.Cleanup(svc.Close)
	router := interaction.NewRouter(New("900", svc, nil).Register(interaction.NewRegistry()))

	rec, res := press(router, SyncButton())
	assert.Equal(t, interaction.Handled, res)
	assert.Equal(t, []string{"Reward roles are not enabled here."}, rec.replies)
}
