package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the variable holding the config file path.
const EnvConfigPath = "GEOWATCH_CONFIG"

// Config is the root configuration structure for the geowatch service.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
	Monitor   MonitorConfig   `yaml:"monitor"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeouts in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig lists the origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains dashboard feed settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings. TTLs are in minutes.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	Issuer         string `yaml:"issuer"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// MonitorConfig tunes the geofence monitor.
type MonitorConfig struct {
	// StaleGraceSeconds is how long a participant may go without a fix
	// before the silence counts as time outside.
	StaleGraceSeconds int `yaml:"stale_grace_seconds"`

	// TickIntervalSeconds is the cadence of per-participant outside timers.
	TickIntervalSeconds int `yaml:"tick_interval_seconds"`

	// SweepIntervalSeconds is the cadence of the event-wide backstop pass.
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`

	// DefaultMaxOutsideMinutes applies to events that set no limit.
	DefaultMaxOutsideMinutes int `yaml:"default_max_outside_minutes"`

	// IngestRetryLimit bounds retries after a concurrent write.
	IngestRetryLimit int `yaml:"ingest_retry_limit"`
}

// StaleGrace returns the stale grace period as a Duration.
func (m MonitorConfig) StaleGrace() time.Duration {
	return time.Duration(m.StaleGraceSeconds) * time.Second
}

// TickInterval returns the timer tick interval as a Duration.
func (m MonitorConfig) TickInterval() time.Duration {
	return time.Duration(m.TickIntervalSeconds) * time.Second
}

// SweepInterval returns the sweep interval as a Duration.
func (m MonitorConfig) SweepInterval() time.Duration {
	return time.Duration(m.SweepIntervalSeconds) * time.Second
}

// PathFromEnv returns $GEOWATCH_CONFIG, or fallback when unset.
func PathFromEnv(fallback string) string {
	if v := os.Getenv(EnvConfigPath); v != "" {
		return v
	}
	return fallback
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// Environment variables follow the pattern GEOWATCH_SECTION_KEY, for example
// GEOWATCH_DATABASE_PATH or GEOWATCH_MONITOR_STALE_GRACE_SECONDS.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be read or parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config with the built-in defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/geowatch.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "geowatch-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			Org:           "geowatch",
			Bucket:        "tracking",
			BatchSize:     500,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				Issuer:         "geowatch",
				AccessTokenTTL: 60,
			},
		},
		Monitor: MonitorConfig{
			StaleGraceSeconds:        180,
			TickIntervalSeconds:      1,
			SweepIntervalSeconds:     120,
			DefaultMaxOutsideMinutes: 15,
			IngestRetryLimit:         3,
		},
	}
}

// applyEnvOverrides applies GEOWATCH_* environment variables.
func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"GEOWATCH_DATABASE_PATH":  &cfg.Database.Path,
		"GEOWATCH_MQTT_HOST":      &cfg.MQTT.Broker.Host,
		"GEOWATCH_MQTT_USERNAME":  &cfg.MQTT.Auth.Username,
		"GEOWATCH_MQTT_PASSWORD":  &cfg.MQTT.Auth.Password,
		"GEOWATCH_API_HOST":       &cfg.API.Host,
		"GEOWATCH_INFLUXDB_URL":   &cfg.InfluxDB.URL,
		"GEOWATCH_INFLUXDB_TOKEN": &cfg.InfluxDB.Token,
		"GEOWATCH_LOG_LEVEL":      &cfg.Logging.Level,
		"GEOWATCH_JWT_SECRET":     &cfg.Security.JWT.Secret,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"GEOWATCH_MQTT_PORT":                           &cfg.MQTT.Broker.Port,
		"GEOWATCH_API_PORT":                            &cfg.API.Port,
		"GEOWATCH_MONITOR_STALE_GRACE_SECONDS":         &cfg.Monitor.StaleGraceSeconds,
		"GEOWATCH_MONITOR_TICK_INTERVAL_SECONDS":       &cfg.Monitor.TickIntervalSeconds,
		"GEOWATCH_MONITOR_SWEEP_INTERVAL_SECONDS":      &cfg.Monitor.SweepIntervalSeconds,
		"GEOWATCH_MONITOR_DEFAULT_MAX_OUTSIDE_MINUTES": &cfg.Monitor.DefaultMaxOutsideMinutes,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", key, err)
		}
		*dst = n
	}

	bools := map[string]*bool{
		"GEOWATCH_MQTT_ENABLED":     &cfg.MQTT.Enabled,
		"GEOWATCH_INFLUXDB_ENABLED": &cfg.InfluxDB.Enabled,
	}
	for key, dst := range bools {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", key, err)
		}
		*dst = b
	}
	return nil
}

// minJWTSecretLength is the shortest accepted HMAC secret.
const minJWTSecretLength = 32

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	// Forged tokens would let anyone report positions for any participant.
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set GEOWATCH_JWT_SECRET)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	m := c.Monitor
	if m.StaleGraceSeconds < 1 {
		errs = append(errs, "monitor.stale_grace_seconds must be positive")
	}
	if m.TickIntervalSeconds < 1 {
		errs = append(errs, "monitor.tick_interval_seconds must be positive")
	}
	if m.SweepIntervalSeconds < 1 {
		errs = append(errs, "monitor.sweep_interval_seconds must be positive")
	}
	if m.DefaultMaxOutsideMinutes < 1 {
		errs = append(errs, "monitor.default_max_outside_minutes must be positive")
	}
	if m.IngestRetryLimit < 0 {
		errs = append(errs, "monitor.ingest_retry_limit must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
