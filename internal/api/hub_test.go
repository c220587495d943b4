package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/geowatch-core/internal/auth"
	"github.com/nerrad567/geowatch-core/internal/infrastructure/config"
	"github.com/nerrad567/geowatch-core/internal/tracking"
)

func newTestHub() *Hub {
	return NewHub(config.WebSocketConfig{}, testLogger())
}

func newHubClient(h *Hub, channels ...string) *WSClient {
	c := &WSClient{
		hub:           h,
		send:          make(chan []byte, 4),
		subscriptions: make(map[string]struct{}),
		subject:       "org-1",
		role:          auth.RoleOrganizer,
	}
	for _, ch := range channels {
		c.subscriptions[ch] = struct{}{}
	}
	h.Register(c)
	return c
}

func TestNewHubDefaults(t *testing.T) {
	h := newTestHub()
	if h.cfg.MaxMessageSize != defaultWSMaxMessageSize || h.cfg.PingInterval != defaultWSPingInterval || h.cfg.PongTimeout != defaultWSPongTimeout {
		t.Errorf("cfg = %+v, want defaults", h.cfg)
	}
}

func TestHubBroadcast(t *testing.T) {
	h := newTestHub()
	alerts := newHubClient(h, tracking.ChannelAlert)
	status := newHubClient(h, tracking.ChannelStatus)

	if got := h.ClientCount(); got != 2 {
		t.Fatalf("ClientCount() = %d, want 2", got)
	}

	h.Broadcast(tracking.ChannelAlert, map[string]string{"participant_id": "p-1"})

	select {
	case data := <-alerts.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.Type != WSTypeEvent || msg.EventType != tracking.ChannelAlert {
			t.Errorf("message = %+v", msg)
		}
	default:
		t.Fatal("subscribed client received nothing")
	}

	select {
	case data := <-status.send:
		t.Errorf("unsubscribed client received %s", data)
	default:
	}
}

func TestHubUnregister(t *testing.T) {
	h := newTestHub()
	c := newHubClient(h, tracking.ChannelAlert)

	h.Unregister(c)
	h.Unregister(c) // second call must not close twice

	if got := h.ClientCount(); got != 0 {
		t.Errorf("ClientCount() = %d, want 0", got)
	}
	if _, ok := <-c.send; ok {
		t.Error("send channel still open after Unregister")
	}

	// Broadcasting to nobody is a no-op.
	h.Broadcast(tracking.ChannelAlert, nil)
}

func TestTicketStore(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ts := newTicketStore()
	ts.now = func() time.Time { return now }

	ticket := ts.issue("org-1", auth.RoleOrganizer)
	if len(ticket) != ticketBytes*2 {
		t.Errorf("ticket length = %d, want %d", len(ticket), ticketBytes*2)
	}

	entry, ok := ts.consume(ticket)
	if !ok || entry.subject != "org-1" || entry.role != auth.RoleOrganizer {
		t.Fatalf("consume() = %+v, %v", entry, ok)
	}
	if _, ok := ts.consume(ticket); ok {
		t.Error("ticket consumed twice")
	}

	expired := ts.issue("org-1", auth.RoleOrganizer)
	ts.issue("org-2", auth.RoleOrganizer)
	now = now.Add(ticketTTL)
	if _, ok := ts.consume(expired); ok {
		t.Error("expired ticket accepted")
	}
	if n := ts.cleanExpired(); n != 1 {
		t.Errorf("cleanExpired() = %d, want 1", n)
	}
}

func TestWSTicketEndpoint(t *testing.T) {
	f := newTestServer(t)

	if w := f.do(t, http.MethodPost, "/api/v1/auth/ws-ticket", testToken(t, "p-1", auth.RoleParticipant), ""); w.Code != http.StatusForbidden {
		t.Errorf("participant ticket status = %d, want 403", w.Code)
	}

	w := f.do(t, http.MethodPost, "/api/v1/auth/ws-ticket", testToken(t, "org-1", auth.RoleOrganizer), "")
	if w.Code != http.StatusOK {
		t.Fatalf("ticket status = %d", w.Code)
	}
	resp := decode[map[string]any](t, w)
	if resp["ticket"] == "" || resp["expires_in"] != float64(60) {
		t.Errorf("ticket response = %v", resp)
	}
}

func (f *apiFixture) wsTicket(t *testing.T) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/v1/auth/ws-ticket", testToken(t, "org-1", auth.RoleOrganizer), "")
	if w.Code != http.StatusOK {
		t.Fatalf("ticket status = %d", w.Code)
	}
	ticket, _ := decode[map[string]any](t, w)["ticket"].(string)
	return ticket
}

func readWS(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	//nolint:errcheck // test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func TestWebSocketRejectsMissingTicket(t *testing.T) {
	f := newTestServer(t)
	ts := httptest.NewServer(f.router)
	defer ts.Close()

	base := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	for _, url := range []string{base, base + "?ticket=bogus"} {
		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		if err == nil {
			t.Fatalf("Dial(%s) succeeded", url)
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("Dial(%s) response = %v, want 401", url, resp)
		}
	}
}

func TestWebSocketAlertFlow(t *testing.T) {
	f := newTestServer(t)
	ts := httptest.NewServer(f.router)
	defer ts.Close()

	ticket := f.wsTicket(t)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws?ticket=" + ticket

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	// The ticket is single-use.
	if _, resp, err := websocket.DefaultDialer.Dial(url, nil); err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Error("ticket accepted twice")
	}

	send := func(v any) {
		t.Helper()
		if err := conn.WriteJSON(v); err != nil {
			t.Fatalf("WriteJSON() error = %v", err)
		}
	}

	send(map[string]any{"type": "subscribe", "id": "1", "payload": map[string]any{"channels": []string{"devices"}}})
	if msg := readWS(t, conn); msg.Type != WSTypeError || msg.ID != "1" {
		t.Errorf("unknown channel reply = %+v, want error", msg)
	}

	send(map[string]any{"type": "ping", "id": "2"})
	if msg := readWS(t, conn); msg.Type != WSTypePong {
		t.Errorf("ping reply = %+v, want pong", msg)
	}

	send(map[string]any{"type": "subscribe", "id": "3", "payload": map[string]any{"channels": []string{tracking.ChannelAlert}}})
	if msg := readWS(t, conn); msg.Type != WSTypeResponse || msg.ID != "3" {
		t.Fatalf("subscribe reply = %+v", msg)
	}

	f.startTracking(t, "p-1", "att-1")
	p1 := testToken(t, "p-1", auth.RoleParticipant)
	f.do(t, http.MethodPost, "/api/v1/events/evt-1/participants/p-1/location", p1, bodyInside)
	f.do(t, http.MethodPost, "/api/v1/events/evt-1/participants/p-1/location", p1, bodyOutside)

	msg := readWS(t, conn)
	if msg.Type != WSTypeEvent || msg.EventType != tracking.ChannelAlert {
		t.Fatalf("broadcast = %+v, want tracking.alert event", msg)
	}
	payload, _ := msg.Payload.(map[string]any)
	if payload["participant_id"] != "p-1" {
		t.Errorf("alert payload = %v", payload)
	}
}
