package websocket_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/corvida/mangrove/internal/models"
	"github.com/corvida/mangrove/internal/websocket"
)

func dialTestHub(t *testing.T, hub *websocket.Hub) *gws.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		websocket.ServeWs(hub, w, r)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubBroadcastsProgress(t *testing.T) {
	hub := websocket.NewHub()
	go hub.Run()

	conn := dialTestHub(t, hub)
	// Give the hub a moment to register the client.
	time.Sleep(50 * time.Millisecond)

	sent := models.ProgressUpdate{
		JobID:    "series-sweep",
		SeriesID: 7,
		Chapter:  4,
		Message:  "Chapter 4 stored",
	}
	hub.BroadcastJSON(sent)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read broadcast: %v", err)
	}

	var got models.ProgressUpdate
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Broadcast is not valid JSON: %v", err)
	}
	if got.SeriesID != 7 || got.Chapter != 4 || got.Message != "Chapter 4 stored" {
		t.Errorf("Unexpected payload: %+v", got)
	}
}

func TestHubBroadcastReachesAllClients(t *testing.T) {
	hub := websocket.NewHub()
	go hub.Run()

	first := dialTestHub(t, hub)
	second := dialTestHub(t, hub)
	time.Sleep(50 * time.Millisecond)

	hub.BroadcastJSON(models.ProgressUpdate{JobID: "series-sweep", Message: "Pass finished", Done: true})

	for i, conn := range []*gws.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Client %d did not receive the broadcast: %v", i, err)
		}
		var got models.ProgressUpdate
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatal(err)
		}
		if !got.Done {
			t.Errorf("Client %d got unexpected payload: %+v", i, got)
		}
	}
}

func TestHubBroadcastWithNoClients(t *testing.T) {
	hub := websocket.NewHub()
	go hub.Run()

	// Must not block or panic with nobody listening.
	hub.BroadcastJSON(models.ProgressUpdate{JobID: "series-sweep", Message: "quiet"})
}
