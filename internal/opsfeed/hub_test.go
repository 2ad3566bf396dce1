package opsfeed

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket/websockettest"

	"ringscoop/internal/logging"
)

func TestHubPublishesEventsToAttachedClients(t *testing.T) {
	hub := NewHub(0, logging.NewTestLogger())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websockettest.DialIgnoringPongs(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Give the server goroutine time to register the connection.
	time.Sleep(20 * time.Millisecond)

	hub.Publish(Event{Kind: LeaderTransition, RobotID: 3})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if ev.Kind != LeaderTransition || ev.RobotID != 3 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestHubRejectsConnectionsOverLimit(t *testing.T) {
	hub := NewHub(1, logging.NewTestLogger())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	first, _, err := websockettest.DialIgnoringPongs(url, nil)
	if err != nil {
		t.Fatalf("dial first: %v", err)
	}
	defer first.Close()
	time.Sleep(20 * time.Millisecond)

	// The handshake itself succeeds (capacity is only checked after
	// upgrade), but the hub closes this second connection immediately.
	second, _, err := websockettest.DialIgnoringPongs(url, nil)
	if err != nil {
		t.Fatalf("dial second: %v", err)
	}
	defer second.Close()

	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := second.ReadMessage(); err == nil {
		t.Fatalf("expected the over-capacity connection to be closed by the server")
	}
}

func TestNilHubPublishIsSafe(t *testing.T) {
	var hub *Hub
	hub.Publish(Event{Kind: OrderDispatched})
	if hub.ClientCount() != 0 {
		t.Fatalf("expected nil hub to report zero clients")
	}
}
