package api

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/geowatch-core/internal/auth"
	"github.com/nerrad567/geowatch-core/internal/infrastructure/config"
)

// wsSendBufferSize is the per-client outbound queue length.
const wsSendBufferSize = 256

// WSClient is one connected dashboard.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu            sync.RWMutex
	subscriptions map[string]struct{}

	// Identity from the ticket.
	subject string
	role    auth.Role
}

func newWSClient(h *Hub, conn *websocket.Conn, entry ticketEntry) *WSClient {
	return &WSClient{
		hub:           h,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
		subject:       entry.subject,
		role:          entry.role,
	}
}

// wsTimings are the per-connection limits derived from config.
type wsTimings struct {
	maxMessage int64
	ping       time.Duration
	// readWait is how long a silent connection survives.
	readWait  time.Duration
	writeWait time.Duration
}

func timingsFrom(cfg config.WebSocketConfig) wsTimings {
	ping := time.Duration(cfg.PingInterval) * time.Second
	pong := time.Duration(cfg.PongTimeout) * time.Second
	return wsTimings{
		maxMessage: int64(cfg.MaxMessageSize),
		ping:       ping,
		readWait:   ping + pong,
		writeWait:  pong,
	}
}

// wsRequest is an inbound frame; the payload is decoded per type.
type wsRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (c *WSClient) readPump(t wsTimings) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(t.readWait)) }

	c.conn.SetReadLimit(t.maxMessage)
	extend() //nolint:errcheck // a failed deadline surfaces on the next read
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "subject", c.subject, "error", err)
			}
			return
		}
		extend() //nolint:errcheck // any frame counts as liveness
		c.handle(data)
	}
}

func (c *WSClient) writePump(t wsTimings) {
	ticker := time.NewTicker(t.ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(t.writeWait)) //nolint:errcheck // write reports the failure
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // connection is going away
				return
			}
			if write(websocket.TextMessage, data) != nil {
				return
			}
		case <-ticker.C:
			if write(websocket.PingMessage, nil) != nil {
				return
			}
		}
	}
}

func (c *WSClient) handle(data []byte) {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch req.Type {
	case WSTypeSubscribe:
		channels, ok := c.channels(req)
		if !ok {
			return
		}
		for _, ch := range channels {
			if _, known := subscribableChannels[ch]; !known {
				c.sendError(req.ID, "unknown channel: "+ch)
				return
			}
		}
		c.setSubscribed(channels, true)
		c.hub.logger.Info("dashboard subscribed", "subject", c.subject, "channels", channels)
		c.reply(req.ID, WSTypeResponse, map[string]any{"subscribed": channels})

	case WSTypeUnsubscribe:
		channels, ok := c.channels(req)
		if !ok {
			return
		}
		c.setSubscribed(channels, false)
		c.reply(req.ID, WSTypeResponse, map[string]any{"unsubscribed": channels})

	case WSTypePing:
		c.reply(req.ID, WSTypePong, nil)

	default:
		c.sendError(req.ID, "unknown message type: "+req.Type)
	}
}

// channels decodes the channel list of a subscribe or unsubscribe request,
// answering with an error frame when it is malformed.
func (c *WSClient) channels(req wsRequest) ([]string, bool) {
	var p WSSubscribePayload
	if len(req.Payload) == 0 || json.Unmarshal(req.Payload, &p) != nil {
		c.sendError(req.ID, "invalid "+req.Type+" payload")
		return nil, false
	}
	return p.Channels, true
}

func (c *WSClient) setSubscribed(channels []string, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		if on {
			c.subscriptions[ch] = struct{}{}
		} else {
			delete(c.subscriptions, ch)
		}
	}
}

func (c *WSClient) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

// trySend queues data without blocking. A full queue drops the frame; a
// closed one (client gone mid-broadcast) is ignored.
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // send on a channel closed by Unregister
	}()

	select {
	case c.send <- data:
	default:
	}
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err == nil {
		c.trySend(data)
	}
}

func (c *WSClient) sendError(id, message string) {
	c.reply(id, WSTypeError, map[string]string{"message": message})
}
