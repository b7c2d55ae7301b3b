// internal/server/handlers/websocket.go

package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"aegis/internal/domain/feed"
)

// WebSocketConfig contains configuration for WebSocket connections
type WebSocketConfig struct {
	// Time allowed to write a message to the peer
	WriteWait time.Duration

	// Time allowed to read the next pong message from the peer
	PongWait time.Duration

	// Send pings to peer with this period
	PingPeriod time.Duration

	// Maximum message size allowed from peer
	MaxMessageSize int64
}

// DefaultWebSocketConfig returns the default WebSocket configuration
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     (60 * time.Second * 9) / 10,
		MaxMessageSize: 4096,
	}
}

// upgrader is used to upgrade HTTP connections to WebSocket
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// In production, this should be more restrictive
		return true
	},
}

// feedClient is one connected WebSocket consumer of the change feed
type feedClient struct {
	conn      *websocket.Conn
	subs      []feed.Subscription
	logger    *zap.Logger
	closed    chan struct{}
	closeOnce sync.Once
}

// FeedWebSocketHandler streams change-feed events to WebSocket clients.
// The streams query parameter selects which streams to follow; by default
// all three. Each client holds its own bus subscriptions, so a stalled
// connection never affects other clients.
func FeedWebSocketHandler(bus feed.Bus, logger *zap.Logger) http.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		streams := parseStreams(r.URL.Query().Get("streams"))
		if len(streams) == 0 {
			respondWithError(w, http.StatusBadRequest, "Unknown stream selection")
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("failed to upgrade to WebSocket", zap.Error(err))
			return
		}

		client := &feedClient{
			conn:   conn,
			logger: logger,
			closed: make(chan struct{}),
		}
		for _, stream := range streams {
			client.subs = append(client.subs, bus.Subscribe(stream))
		}

		go client.writePump()
		go client.readPump()
	}
}

// parseStreams turns a comma-separated stream list into stream names,
// defaulting to all three core streams
func parseStreams(raw string) []feed.Stream {
	if raw == "" {
		return []feed.Stream{feed.StreamPresence, feed.StreamDistressSignal, feed.StreamAlert}
	}

	var streams []feed.Stream
	for _, name := range strings.Split(raw, ",") {
		switch feed.Stream(strings.TrimSpace(name)) {
		case feed.StreamPresence:
			streams = append(streams, feed.StreamPresence)
		case feed.StreamDistressSignal:
			streams = append(streams, feed.StreamDistressSignal)
		case feed.StreamAlert:
			streams = append(streams, feed.StreamAlert)
		}
	}
	return streams
}

// readPump discards client messages and keeps the read deadline fresh via
// pong handling
func (c *feedClient) readPump() {
	config := DefaultWebSocketConfig()

	defer c.close()

	c.conn.SetReadLimit(config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(config.PongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
	}
}

// writePump forwards bus events to the connection and pings the peer
func (c *feedClient) writePump() {
	config := DefaultWebSocketConfig()
	ticker := time.NewTicker(config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	// Merge the per-stream subscriptions into one delivery channel.
	merged := make(chan feed.ChangeEvent, 64)
	for _, sub := range c.subs {
		go func(sub feed.Subscription) {
			for event := range sub.Events() {
				select {
				case merged <- event:
				case <-c.closed:
					return
				}
			}
		}(sub)
	}

	for {
		select {
		case <-c.closed:
			return
		case event := <-merged:
			c.conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			data, err := json.Marshal(event)
			if err != nil {
				c.logger.Warn("failed to encode change event", zap.Error(err))
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// close releases the client's subscriptions and the connection. Idempotent
// across the two pumps.
func (c *feedClient) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		for _, sub := range c.subs {
			sub.Unsubscribe()
		}
		c.conn.Close()
	})
}
