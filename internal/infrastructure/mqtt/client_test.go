package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/geowatch-core/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "geowatch-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// recordingLogger implements Logger for tests.
type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Info(string, ...any) {}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}
	tests := []struct {
		got  string
		want string
	}{
		{topics.Location("evt-1", "p-1"), "geowatch/location/evt-1/p-1"},
		{topics.Alert("evt-1", "p-1"), "geowatch/alert/evt-1/p-1"},
		{topics.Status("evt-1", "p-1"), "geowatch/status/evt-1/p-1"},
		{topics.SystemStatus(), "geowatch/system/status"},
		{topics.AllLocations(), "geowatch/location/+/+"},
		{topics.EventAlerts("evt-1"), "geowatch/alert/evt-1/+"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("topic = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestParseLocationTopic(t *testing.T) {
	tests := []struct {
		topic       string
		event       string
		participant string
		ok          bool
	}{
		{"geowatch/location/evt-1/p-1", "evt-1", "p-1", true},
		{"geowatch/location/evt-1/", "", "", false},
		{"geowatch/location//p-1", "", "", false},
		{"geowatch/location/evt-1", "", "", false},
		{"geowatch/location/evt-1/p-1/extra", "", "", false},
		{"geowatch/status/evt-1/p-1", "", "", false},
		{"other/location/evt-1/p-1", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			event, participant, ok := ParseLocationTopic(tt.topic)
			if event != tt.event || participant != tt.participant || ok != tt.ok {
				t.Errorf("ParseLocationTopic(%q) = %q, %q, %v", tt.topic, event, participant, ok)
			}
		})
	}

	// Builder and parser agree.
	event, participant, ok := ParseLocationTopic(Topics{}.Location("evt-9", "p-9"))
	if !ok || event != "evt-9" || participant != "p-9" {
		t.Errorf("round trip = %q, %q, %v", event, participant, ok)
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "core", Password: "secret"}

	opts := buildClientOptions(cfg)
	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v", opts.Servers)
	}
	if opts.ClientID != "geowatch-test" || opts.Username != "core" || opts.Password != "secret" {
		t.Errorf("identity = %q/%q/%q", opts.ClientID, opts.Username, opts.Password)
	}
	if !opts.AutoReconnect || !opts.CleanSession {
		t.Error("AutoReconnect and CleanSession must be on")
	}

	cfg.Broker.TLS = true
	opts = buildClientOptions(cfg)
	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS 1.2 minimum not configured")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, "geowatch-test")

	if !opts.WillEnabled || opts.WillTopic != "geowatch/system/status" || !opts.WillRetained || opts.WillQos != 1 {
		t.Errorf("will = enabled %v topic %q retained %v qos %d", opts.WillEnabled, opts.WillTopic, opts.WillRetained, opts.WillQos)
	}

	var p presence
	if err := json.Unmarshal(opts.WillPayload, &p); err != nil {
		t.Fatalf("will payload not JSON: %v", err)
	}
	if p.Status != "offline" || p.Reason != "unexpected_disconnect" || p.ClientID != "geowatch-test" {
		t.Errorf("will payload = %+v", p)
	}
}

func TestValidationBeforeConnection(t *testing.T) {
	c := &Client{cfg: testConfig(), subscriptions: make(map[string]subscription)}
	noop := func(string, []byte) error { return nil }

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"publish empty topic", c.Publish("", []byte("x"), 1, false), ErrInvalidTopic},
		{"publish bad qos", c.Publish("geowatch/x", []byte("x"), 3, false), ErrInvalidQoS},
		{"publish too large", c.Publish("geowatch/x", make([]byte, maxPayloadSize+1), 1, false), ErrPublishFailed},
		{"publish disconnected", c.Publish("geowatch/x", []byte("x"), 1, false), ErrNotConnected},
		{"retained disconnected", c.PublishRetained("geowatch/x", []byte("x")), ErrNotConnected},
		{"subscribe empty topic", c.Subscribe("", 1, noop), ErrInvalidTopic},
		{"subscribe bad qos", c.Subscribe("geowatch/#", 3, noop), ErrInvalidQoS},
		{"subscribe nil handler", c.Subscribe("geowatch/#", 1, nil), ErrSubscribeFailed},
		{"subscribe disconnected", c.Subscribe("geowatch/#", 1, noop), ErrNotConnected},
		{"unsubscribe empty topic", c.Unsubscribe(""), ErrInvalidTopic},
		{"unsubscribe disconnected", c.Unsubscribe("geowatch/#"), ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("error = %v, want %v", tt.err, tt.want)
			}
		})
	}

	if c.SubscriptionCount() != 0 || c.HasSubscription("geowatch/#") {
		t.Error("failed subscribe left a tracked subscription")
	}
}

func TestHealthCheckDisconnected(t *testing.T) {
	c := &Client{}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() cancelled error = %v", err)
	}
}

func TestCloseNil(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v", err)
	}
}

func TestWrapHandler(t *testing.T) {
	logger := &recordingLogger{}
	c := &Client{}
	c.SetLogger(logger)

	var got []string
	handler := c.wrapHandler(func(topic string, payload []byte) error {
		got = append(got, topic+"="+string(payload))
		switch string(payload) {
		case "panic":
			panic("bad payload")
		case "fail":
			return errors.New("rejected")
		}
		return nil
	})

	var client pahomqtt.Client
	handler(client, fakeMessage{topic: "geowatch/location/e/p", payload: []byte("ok")})
	handler(client, fakeMessage{topic: "geowatch/location/e/p", payload: []byte("fail")})
	handler(client, fakeMessage{topic: "geowatch/location/e/p", payload: []byte("panic")})

	if len(got) != 3 {
		t.Fatalf("handler calls = %d, want 3", len(got))
	}
	if len(logger.warns) != 1 || !strings.Contains(logger.warns[0], "failed") {
		t.Errorf("warns = %v", logger.warns)
	}
	if len(logger.errors) != 1 || !strings.Contains(logger.errors[0], "panic") {
		t.Errorf("errors = %v", logger.errors)
	}

	// Without a logger failures are dropped silently.
	c.SetLogger(nil)
	handler(client, fakeMessage{topic: "t", payload: []byte("panic")})
}
