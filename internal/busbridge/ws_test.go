package busbridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/buzzwordmojo/nightwatch/internal/bus"
	"github.com/buzzwordmojo/nightwatch/internal/config"
	"github.com/buzzwordmojo/nightwatch/internal/events"
)

func TestWebSocketBridge_BroadcastsPublishedEvent(t *testing.T) {
	bridge := NewWebSocketBridge(config.WebSocketBridgeConfig{}, zap.NewNop())
	server := httptest.NewServer(http.HandlerFunc(bridge.handleTail))
	defer server.Close()

	b := bus.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := b.Subscribe(bus.TopicEvents)
	go bridge.broadcastLoop(ctx, b, bus.TopicEvents, sub)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/tail"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		bridge.mu.Lock()
		defer bridge.mu.Unlock()
		return len(bridge.clients) == 1
	}, time.Second, 5*time.Millisecond)

	b.Publish(bus.TopicEvents, "radar", events.Event{Detector: "radar"})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), "\"topic\":\"events\"")
	assert.Contains(t, string(data), "\"producer\":\"radar\"")
}

func TestWebSocketBridge_ClientRemovedOnDisconnect(t *testing.T) {
	bridge := NewWebSocketBridge(config.WebSocketBridgeConfig{}, zap.NewNop())
	server := httptest.NewServer(http.HandlerFunc(bridge.handleTail))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/tail"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		bridge.mu.Lock()
		defer bridge.mu.Unlock()
		return len(bridge.clients) == 1
	}, time.Second, 5*time.Millisecond)

	conn.Close()

	assert.Eventually(t, func() bool {
		bridge.mu.Lock()
		defer bridge.mu.Unlock()
		return len(bridge.clients) == 0
	}, time.Second, 5*time.Millisecond)
}
