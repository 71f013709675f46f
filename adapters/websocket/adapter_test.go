package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"guildkit/core"
	"guildkit/realtime"
)

func dial(t *testing.T, url string) *gorillaws.Conn {
	t.Helper()
	conn, _, err := gorillaws.DefaultDialer.Dial("ws"+url[len("http"):], nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitSubscribers(t *testing.T, hub *realtime.Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() < n {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHandlerStreamsEvents(t *testing.T) {
	hub := realtime.NewHub()
	server := httptest.NewServer(Handler(hub, nil))
	defer server.Close()

	conn := dial(t, server.URL)
	waitSubscribers(t, hub, 1)

	hub.Broadcast(context.Background(), core.NewXPAdded("1", "2", 5, 5, 0, core.TransitionNone))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	var received core.Event
	if err := json.Unmarshal(msg, &received); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if received.Member != "2" || received.Type != core.EventXPAdded {
		t.Fatalf("unexpected event: %+v", received)
	}
}

func TestHandlerGuildFilter(t *testing.T) {
	for _, query := range []string{"?guild=1", "?guild=%201%20"} {
		t.Run(query, func(t *testing.T) {
			hub := realtime.NewHub()
			server := httptest.NewServer(Handler(hub, nil))
			defer server.Close()

			conn := dial(t, server.URL+query)
			waitSubscribers(t, hub, 1)

			hub.Broadcast(context.Background(), core.NewXPAdded("7", "2", 5, 5, 0, core.TransitionNone))
			hub.Broadcast(context.Background(), core.NewXPAdded("1", "3", 5, 5, 0, core.TransitionNone))

			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				t.Fatalf("read message: %v", err)
			}
			var received core.Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("decode event: %v", err)
			}
			if received.Guild != "1" || received.Member != "3" {
				t.Fatalf("unexpected event: %+v", received)
			}
		})
	}
}

func TestHandlerRejectsBadGuild(t *testing.T) {
	hub := realtime.NewHub()
	server := httptest.NewServer(Handler(hub, nil))
	defer server.Close()

	resp, err := http.Get(server.URL + "?guild=abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
