package engine

import (
	"context"
	"testing"
	"time"

	"guildkit/core"
)

func TestEventBusSync(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	count := 0
	bus.Subscribe(core.EventXPAdded, func(ctx context.Context, e core.Event) { count++ })
	bus.Publish(context.Background(), core.NewXPAdded("1", "2", 1, 1, 0, core.TransitionNone))
	if count != 1 {
		t.Fatalf("want 1 got %d", count)
	}
}

func TestEventBusAsync(t *testing.T) {
	bus := NewEventBus(DispatchAsync)
	defer bus.Close()
	ch := make(chan struct{})
	bus.Subscribe(core.EventXPAdded, func(ctx context.Context, e core.Event) { close(ch) })
	bus.Publish(context.Background(), core.NewXPAdded("1", "2", 1, 1, 0, core.TransitionNone))
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}

func TestEventBusUnsubscribeAndPanic(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	count := 0
	bus.Subscribe(core.EventLevelUp, func(context.Context, core.Event) { panic("bad subscriber") })
	unsub := bus.Subscribe(core.EventLevelUp, func(context.Context, core.Event) { count++ })

	ev, _ := core.NewLevelChanged("1", "2", 3, core.TransitionLevelUp)
	bus.Publish(context.Background(), ev)
	unsub()
	bus.Publish(context.Background(), ev)

	if count != 1 {
		t.Fatalf("want 1 got %d", count)
	}
}
