package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tabletopd/tabletopd/internal/config"
	"github.com/tabletopd/tabletopd/internal/notify"
	"go.uber.org/zap"
)

func startGateway(t *testing.T, cfg config.WebSocketConfig) (*httptest.Server, *notify.Hub) {
	t.Helper()
	logger := zap.NewNop()
	hub := notify.NewHub(logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	srv := httptest.NewServer(Handler(cfg, hub, logger))
	t.Cleanup(srv.Close)
	return srv, hub
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestHealthz(t *testing.T) {
	srv, _ := startGateway(t, config.WebSocketConfig{})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSubscriberReceivesBroadcast(t *testing.T) {
	srv, hub := startGateway(t, config.WebSocketConfig{})

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws?game_id=g1"), nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	// Registration goes through the hub goroutine; give it a beat before
	// broadcasting.
	time.Sleep(50 * time.Millisecond)
	hub.Broadcast("g1", notify.Event{Type: notify.EventMoveApplied})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev notify.Event
	require.NoError(t, json.Unmarshal(payload, &ev))
	assert.Equal(t, notify.EventMoveApplied, ev.Type)
	assert.Equal(t, "g1", ev.GameID)
}

func TestSubscriberDoesNotReceiveOtherGames(t *testing.T) {
	srv, hub := startGateway(t, config.WebSocketConfig{})

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws?game_id=g1"), nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	time.Sleep(50 * time.Millisecond)
	hub.Broadcast("g2", notify.Event{Type: notify.EventMoveApplied})

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "no event should arrive for a foreign game")
}

func TestOriginRestriction(t *testing.T) {
	srv, _ := startGateway(t, config.WebSocketConfig{
		AllowedOrigins: []string{"https://games.example.com"},
	})

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws"), header)
	require.Error(t, err)
	if resp != nil {
		defer resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}

	header = http.Header{"Origin": []string{"https://games.example.com"}}
	conn, resp2, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws"), header)
	require.NoError(t, err)
	defer resp2.Body.Close()
	conn.Close()
}
