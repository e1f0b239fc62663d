package busbridge

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/buzzwordmojo/nightwatch/internal/bus"
	"github.com/buzzwordmojo/nightwatch/internal/config"
)

// WebSocketBridge exposes a local, unauthenticated diagnostic endpoint that
// tails the events, channels and alerts bus topics, one JSON object per
// websocket text message — for a laptop on
// the same LAN to watch live signal traffic while debugging placement.
type WebSocketBridge struct {
	cfg      config.WebSocketBridgeConfig
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewWebSocketBridge builds a bridge; call Run to start serving.
func NewWebSocketBridge(cfg config.WebSocketBridgeConfig, logger *zap.Logger) *WebSocketBridge {
	return &WebSocketBridge{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run subscribes to the bus and serves the websocket endpoint until ctx is
// cancelled.
func (w *WebSocketBridge) Run(ctx context.Context, b *bus.Bus) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/tail", w.handleTail)

	server := &http.Server{Addr: w.cfg.Addr, Handler: mux}

	for _, t := range []bus.Topic{bus.TopicEvents, bus.TopicChannels, bus.TopicAlerts} {
		sub := b.Subscribe(t)
		go w.broadcastLoop(ctx, b, t, sub)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (w *WebSocketBridge) handleTail(rw http.ResponseWriter, r *http.Request) {
	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	w.mu.Lock()
	w.clients[conn] = struct{}{}
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		delete(w.clients, conn)
		w.mu.Unlock()
		conn.Close()
	}()

	// This endpoint is send-only; block on reads solely to detect client
	// disconnect (the client is not expected to send anything).
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (w *WebSocketBridge) broadcastLoop(ctx context.Context, b *bus.Bus, topic bus.Topic, sub *bus.Subscription) {
	defer b.Unsubscribe(sub)
	for {
		msg, ok := sub.Receive(ctx)
		if !ok {
			return
		}
		frame := map[string]interface{}{
			"topic":    string(topic),
			"producer": msg.Producer,
			"payload":  msg.Payload,
		}
		data, err := json.Marshal(frame)
		if err != nil {
			continue
		}
		w.broadcast(data)
	}
}

func (w *WebSocketBridge) broadcast(data []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for conn := range w.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			w.logger.Debug("ws tail write failed", zap.Error(err))
		}
	}
}
