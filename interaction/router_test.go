package interaction

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guildkit/core"
)

type fakeResponder struct {
	messages []string
	err      error
}

func (f *fakeResponder) RespondEphemeral(_ context.Context, content string) error {
	f.messages = append(f.messages, content)
	return f.err
}

func newTestLogger() (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

func logLines(buf *bytes.Buffer) []string {
	s := strings.TrimSpace(buf.String())
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestParseIdentifier(t *testing.T) {
	id := ParseIdentifier("tickets:confirm:close")
	assert.Equal(t, "tickets", id.Namespace)
	assert.Equal(t, "confirm", id.Action)
	assert.Equal(t, []string{"close"}, id.Params)
	assert.Equal(t, []string{"confirm", "close"}, id.Rest())
	assert.Equal(t, "close", id.Param(0))
	assert.Equal(t, "", id.Param(1))

	bare := ParseIdentifier("levels")
	assert.Equal(t, "levels", bare.Namespace)
	assert.Empty(t, bare.Action)
	assert.Empty(t, bare.Rest())

	assert.Equal(t, "levels:rank:42", NewIdentifier("levels", "rank", "42"))
}

func TestDispatch_RoutesToNamespace(t *testing.T) {
	var gotRest []string
	var gotEvent *Event
	calls := 0
	reg := NewRegistry().Handle("tickets", func(_ context.Context, ev *Event, id Identifier) error {
		calls++
		gotEvent = ev
		gotRest = id.Rest()
		return nil
	})
	logger, buf := newTestLogger()
	r := NewRouter(reg, WithLogger(logger))

	ev := &Event{CustomID: "tickets:confirm:close", Origin: OriginButton}
	res := r.Dispatch(context.Background(), ev)

	assert.Equal(t, Handled, res)
	assert.Equal(t, 1, calls)
	assert.Same(t, ev, gotEvent)
	assert.Equal(t, []string{"confirm", "close"}, gotRest)
	assert.Empty(t, logLines(buf))
}

func TestDispatch_MissingHandler(t *testing.T) {
	calls := 0
	reg := NewRegistry().Handle("tickets", func(context.Context, *Event, Identifier) error {
		calls++
		return nil
	})

	t.Run("button logs once", func(t *testing.T) {
		logger, buf := newTestLogger()
		resp := &fakeResponder{}
		r := NewRouter(reg, WithLogger(logger))
		res := r.Dispatch(context.Background(), &Event{CustomID: "unknown:foo", Origin: OriginButton, Responder: resp})
		assert.Equal(t, Missed, res)
		lines := logLines(buf)
		require.Len(t, lines, 1)
		assert.Contains(t, lines[0], `"custom_id":"unknown:foo"`)
		assert.Contains(t, lines[0], `"namespace":"unknown"`)
		assert.Empty(t, resp.messages)
	})

	t.Run("select menu is silent", func(t *testing.T) {
		logger, buf := newTestLogger()
		resp := &fakeResponder{}
		r := NewRouter(reg, WithLogger(logger))
		res := r.Dispatch(context.Background(), &Event{CustomID: "unknown:foo", Origin: OriginSelectMenu, Responder: resp})
		assert.Equal(t, Missed, res)
		assert.Empty(t, logLines(buf))
		assert.Empty(t, resp.messages)
	})

	t.Run("empty id", func(t *testing.T) {
		logger, buf := newTestLogger()
		r := NewRouter(reg, WithLogger(logger))
		assert.Equal(t, Missed, r.Dispatch(context.Background(), &Event{Origin: OriginModal}))
		assert.Len(t, logLines(buf), 1)
	})

	assert.Zero(t, calls)
}

func TestDispatch_HandlerFailureIsContained(t *testing.T) {
	reg := NewRegistry().
		Handle("boom", func(context.Context, *Event, Identifier) error {
			return errors.New("database exploded: secret detail")
		}).
		Handle("panic", func(context.Context, *Event, Identifier) error {
			panic("nil map")
		})

	for _, ns := range []string{"boom", "panic"} {
		t.Run(ns, func(t *testing.T) {
			logger, buf := newTestLogger()
			resp := &fakeResponder{}
			r := NewRouter(reg, WithLogger(logger))

			res := r.Dispatch(context.Background(), &Event{CustomID: ns + ":go", Origin: OriginButton, Responder: resp})

			assert.Equal(t, Failed, res)
			require.Len(t, resp.messages, 1)
			assert.Equal(t, DefaultFailureMessage, resp.messages[0])
			assert.NotContains(t, resp.messages[0], "secret")
			lines := logLines(buf)
			require.Len(t, lines, 1)
			assert.Contains(t, lines[0], `"custom_id":"`+ns+`:go"`)
			assert.Contains(t, lines[0], `"level":"ERROR"`)
		})
	}
}

func TestDispatch_AckFailureStillOneLogEntry(t *testing.T) {
	reg := NewRegistry().Handle("x", func(context.Context, *Event, Identifier) error { return errors.New("fail") })
	logger, buf := newTestLogger()
	r := NewRouter(reg, WithLogger(logger), WithFailureMessage("nope"))
	resp := &fakeResponder{err: errors.New("interaction expired")}

	assert.Equal(t, Failed, r.Dispatch(context.Background(), &Event{CustomID: "x", Responder: resp}))
	assert.Equal(t, []string{"nope"}, resp.messages)
	lines := logLines(buf)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "interaction expired")
}

func TestDispatch_SubsequentEventsAfterFailure(t *testing.T) {
	ok := 0
	reg := NewRegistry().
		Handle("bad", func(context.Context, *Event, Identifier) error { panic("boom") }).
		Handle("good", func(context.Context, *Event, Identifier) error { ok++; return nil })
	logger, _ := newTestLogger()
	r := NewRouter(reg, WithLogger(logger))

	r.Dispatch(context.Background(), &Event{CustomID: "bad"})
	assert.Equal(t, Handled, r.Dispatch(context.Background(), &Event{CustomID: "good"}))
	assert.Equal(t, 1, ok)
}

func TestDispatch_Hook(t *testing.T) {
	var events []core.Event
	reg := NewRegistry().Handle("levels", func(context.Context, *Event, Identifier) error { return nil })
	logger, _ := newTestLogger()
	r := NewRouter(reg, WithLogger(logger), WithHook(func(_ context.Context, e core.Event) { events = append(events, e) }))

	r.Dispatch(context.Background(), &Event{CustomID: "levels:rank", Guild: "1", Member: "2"})
	r.Dispatch(context.Background(), &Event{CustomID: "gone", Origin: OriginSelectMenu})

	require.Len(t, events, 2)
	assert.Equal(t, core.EventInteractionHandled, events[0].Type)
	assert.Equal(t, "levels", events[0].Metadata["namespace"])
	assert.Equal(t, "handled", events[0].Metadata["outcome"])
	assert.Equal(t, "missed", events[1].Metadata["outcome"])
}

func TestDispatch_NilEvent(t *testing.T) {
	called := false
	reg := NewRegistry().Handle("levels", func(context.Context, *Event, Identifier) error { called = true; return nil })
	logger, buf := newTestLogger()
	r := NewRouter(reg, WithLogger(logger), WithHook(func(context.Context, core.Event) { called = true }))

	var res Result
	assert.NotPanics(t, func() { res = r.Dispatch(context.Background(), nil) })
	assert.Equal(t, Missed, res)
	assert.False(t, called)
	assert.Empty(t, logLines(buf))
}

func TestRegistry_Panics(t *testing.T) {
	h := func(context.Context, *Event, Identifier) error { return nil }
	assert.Panics(t, func() { NewRegistry().Handle("", h) })
	assert.Panics(t, func() { NewRegistry().Handle("a", nil) })
	assert.Panics(t, func() { NewRegistry().Handle("a", h).Handle("a", h) })
}

func TestRouter_TableIsSnapshot(t *testing.T) {
	h := func(context.Context, *Event, Identifier) error { return nil }
	reg := NewRegistry().Handle("a", h)
	r := NewRouter(reg)
	reg.Handle("b", h)
	assert.Equal(t, []string{"a"}, r.Namespaces())
}
