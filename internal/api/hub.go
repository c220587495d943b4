package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/geowatch-core/internal/infrastructure/config"
	"github.com/nerrad567/geowatch-core/internal/infrastructure/logging"
	"github.com/nerrad567/geowatch-core/internal/tracking"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// WSMessage is the envelope of every frame on the dashboard feed.
// Events carry the channel name in EventType.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload of subscribe and unsubscribe requests.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// subscribableChannels are the channels a dashboard may subscribe to.
var subscribableChannels = map[string]struct{}{
	tracking.ChannelAlert:  {},
	tracking.ChannelStatus: {},
}

// WebSocket defaults for unset config values.
const (
	defaultWSMaxMessageSize = 4096
	defaultWSPingInterval   = 30 // seconds
	defaultWSPongTimeout    = 10 // seconds
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Access is gated by the single-use ticket, not by Origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Hub fans monitor updates out to connected dashboards. It satisfies
// tracking.Broadcaster.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

// NewHub creates a hub. Zero config values select the defaults.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultWSMaxMessageSize
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultWSPingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = defaultWSPongTimeout
	}
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx ends, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client.
func (h *Hub) Register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("dashboard connected", "subject", c.subject, "clients", n)
}

// Unregister removes a client and closes its send channel. Only the call
// that removes the client closes the channel.
func (h *Hub) Unregister(c *WSClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		close(c.send)
		h.logger.Debug("dashboard disconnected", "subject", c.subject, "clients", n)
	}
}

// Broadcast sends payload as an event on channel to every subscribed client.
// Slow clients miss messages rather than block the monitor.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("encoding broadcast failed", "channel", channel, "error", err)
		return
	}

	for _, c := range h.subscribers(channel) {
		c.trySend(data)
	}
}

// subscribers snapshots the clients of channel so no hub lock is held
// while sending.
func (h *Hub) subscribers(channel string) []*WSClient {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []*WSClient
	for c := range h.clients {
		if c.isSubscribed(channel) {
			out = append(out, c)
		}
	}
	return out
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		close(c.send)
		if c.conn != nil {
			c.conn.Close()
		}
		delete(h.clients, c)
	}
}

// handleWebSocket upgrades GET /ws?ticket=... for a holder of a ticket
// from POST /auth/ws-ticket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		writeUnauthorized(w, "ticket query parameter is required")
		return
	}
	entry, ok := s.tickets.consume(ticket)
	if !ok {
		writeUnauthorized(w, "invalid or expired ticket")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := newWSClient(s.hub, conn, entry)
	s.hub.Register(c)

	t := timingsFrom(s.hub.cfg)
	go c.writePump(t)
	go c.readPump(t)
}
