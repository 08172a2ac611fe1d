package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"drowsiness-service/internal/log"
	"drowsiness-service/internal/models"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(log.Discard())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("session"))
	}))

	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return hub, server
}

func dial(t *testing.T, server *httptest.Server, session string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/?session=" + session
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d clients, have %d", n, hub.ClientCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func readResult(t *testing.T, conn *websocket.Conn) models.FrameResult {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}

	var r models.FrameResult
	if err := json.Unmarshal(data, &r); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	return r
}

func TestNewHub(t *testing.T) {
	hub := NewHub(log.Discard())

	if hub.ClientCount() != 0 {
		t.Error("ClientCount should be 0 initially")
	}
}

func TestHub_SessionFilter(t *testing.T) {
	hub, server := startHub(t)

	conn := dial(t, server, "s1")
	waitForClients(t, hub, 1)

	hub.Publish(models.FrameResult{SessionID: "s2", TimestampMs: 1})
	hub.Publish(models.FrameResult{SessionID: "s1", TimestampMs: 2, IsNodEvent: true})

	r := readResult(t, conn)
	if r.SessionID != "s1" || r.TimestampMs != 2 || !r.IsNodEvent {
		t.Errorf("Expected only the s1 result, got %+v", r)
	}
}

func TestHub_SubscribeAll(t *testing.T) {
	hub, server := startHub(t)

	conn := dial(t, server, "")
	waitForClients(t, hub, 1)

	hub.Publish(models.FrameResult{SessionID: "s1", TimestampMs: 1})
	hub.Publish(models.FrameResult{SessionID: "s2", TimestampMs: 2})

	if r := readResult(t, conn); r.SessionID != "s1" {
		t.Errorf("Expected s1 first, got %s", r.SessionID)
	}
	if r := readResult(t, conn); r.SessionID != "s2" {
		t.Errorf("Expected s2 second, got %s", r.SessionID)
	}
}

func TestHub_ClientDisconnect(t *testing.T) {
	hub, server := startHub(t)

	conn := dial(t, server, "s1")
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}
