// internal/websocket/hub_test.go
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/metrics"
)

func startHub(t *testing.T) (*Hub, *metrics.Metrics, *httptest.Server, context.CancelFunc) {
	t.Helper()
	m := metrics.New()
	hub := NewHub(nil, m)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := NewClient(hub, conn)
		if hub.RegisterClient(c) {
			go c.WritePump()
			go c.ReadPump()
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(cancel)
	return hub, m, srv, cancel
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHubBroadcastsEnvelope(t *testing.T) {
	hub, m, srv, _ := startHub(t)
	conn := dial(t, srv)
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	hub.Broadcast(KindState, map[string]int{"tick": 7})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var env struct {
		Type    string         `json:"type"`
		Payload map[string]int `json:"payload"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	if env.Type != KindState || env.Payload["tick"] != 7 {
		t.Errorf("frame = %s", raw)
	}
	if got := testutil.ToFloat64(m.WebsocketClients); got != 1 {
		t.Errorf("websocket_clients = %v, want 1", got)
	}
}

func TestHubUnregistersOnClose(t *testing.T) {
	hub, _, srv, _ := startHub(t)
	conn := dial(t, srv)
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	conn.Close()
	waitFor(t, func() bool { return hub.ClientCount() == 0 })
}

func TestHubStopClosesClients(t *testing.T) {
	hub, _, srv, cancel := startHub(t)
	conn := dial(t, srv)
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	cancel()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected the connection to close after the hub stopped")
	}
	if hub.RegisterClient(&Client{Hub: hub, Send: make(chan []byte, 1)}) {
		t.Error("stopped hub accepted a client")
	}
}
