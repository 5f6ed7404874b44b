package trade_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rpv/catalog-engine/internal/trade"
)

func dialHub(t *testing.T, hub *trade.WSHub) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	// Registration races the dial return; give the hub loop a beat.
	time.Sleep(100 * time.Millisecond)
	return conn
}

func TestWSHub_BroadcastReachesClient(t *testing.T) {
	hub := trade.NewWSHub()
	go hub.Run()

	conn := dialHub(t, hub)

	hub.Broadcast(trade.WSMessage{Type: "trade_changed"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg trade.WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	if msg.Type != "trade_changed" {
		t.Errorf("type = %q, want trade_changed", msg.Type)
	}
}

func TestWSHub_ConcurrentBroadcasts(t *testing.T) {
	hub := trade.NewWSHub()
	go hub.Run()

	conn := dialHub(t, hub)

	// Fire broadcasts from several goroutines; the per-connection write
	// pump must serialize them onto the socket.
	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 5; j++ {
				hub.Broadcast(trade.WSMessage{Type: "catalog_changed"})
			}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("read after concurrent broadcasts: %v", err)
	}
}

func TestWSHub_BroadcastWithoutClientsDoesNotBlock(t *testing.T) {
	hub := trade.NewWSHub()
	go hub.Run()

	finished := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			hub.Broadcast(trade.WSMessage{Type: "trade_changed"})
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked with no clients connected")
	}
}
