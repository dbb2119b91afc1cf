package web

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/sweeney/button-sensor/internal/logic"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	l, _ := test.NewNullLogger()
	hub := NewHub(l)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	ts, _ := newTestServer(t, Options{Hub: hub, Logger: l})
	return hub, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, hub.Clients())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubBroadcastEvent(t *testing.T) {
	hub, ts := startHub(t)
	a := dial(t, ts)
	b := dial(t, ts)
	waitClients(t, hub, 2)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	hub.BroadcastEvent(logic.Event{Button: "doorbell", Type: logic.EventClick, Count: 2}, at, false)

	for i, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("client %d: read: %v", i, err)
		}

		var msg EventMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("client %d: invalid JSON: %v", i, err)
		}
		if msg.Type != "event" || msg.Button != "doorbell" || msg.Event != "CLICK" || msg.Count != 2 {
			t.Errorf("client %d: unexpected message %+v", i, msg)
		}
		if msg.Timestamp != "2026-03-01T12:00:00Z" {
			t.Errorf("client %d: unexpected timestamp %s", i, msg.Timestamp)
		}
	}
}

func TestHubUnregistersClosedClient(t *testing.T) {
	hub, ts := startHub(t)
	conn := dial(t, ts)
	waitClients(t, hub, 1)

	conn.Close()
	waitClients(t, hub, 0)
}

func TestHubStopDisconnectsClients(t *testing.T) {
	l, _ := test.NewNullLogger()
	hub := NewHub(l)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	ts, _ := newTestServer(t, Options{Hub: hub, Logger: l})
	conn := dial(t, ts)
	waitClients(t, hub, 1)

	cancel()
	<-stopped

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected connection to be closed")
	}
	if hub.Clients() != 0 {
		t.Errorf("expected no clients, have %d", hub.Clients())
	}

	// Broadcasting after stop must not block.
	hub.Broadcast([]byte("late"))
}

func TestHubBroadcastWithoutClients(t *testing.T) {
	hub, _ := startHub(t)
	for i := 0; i < 200; i++ {
		hub.Broadcast([]byte("x"))
	}
}
