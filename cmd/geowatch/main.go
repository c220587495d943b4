// Geowatch Core - geofence attendance monitor.
//
// The service tracks checked-in participants against their event's
// geofence, accumulates time spent outside, raises alerts and marks
// attendance absent once the event's limit is exceeded.
//
// Locations arrive over HTTP (POST /api/v1/events/{id}/participants/{id}/location)
// or MQTT (geowatch/location/{event}/{participant}). Alerts go out over
// MQTT and the dashboard WebSocket feed.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/geowatch-core/internal/api"
	"github.com/nerrad567/geowatch-core/internal/attendance"
	"github.com/nerrad567/geowatch-core/internal/audit"
	"github.com/nerrad567/geowatch-core/internal/event"
	"github.com/nerrad567/geowatch-core/internal/infrastructure/config"
	"github.com/nerrad567/geowatch-core/internal/infrastructure/database"
	"github.com/nerrad567/geowatch-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/geowatch-core/internal/infrastructure/logging"
	"github.com/nerrad567/geowatch-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/geowatch-core/internal/tracking"
	"github.com/nerrad567/geowatch-core/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the service and blocks until ctx is cancelled.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting geowatch",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := config.PathFromEnv(defaultConfigPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "level", cfg.Logging.Level)

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	checks := map[string]api.HealthChecker{"database": db}
	auditRepo := audit.NewSQLiteRepository(db.DB)
	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))

	deps := tracking.Deps{
		Records:    tracking.NewSQLiteRepository(db.DB),
		Events:     event.NewSQLiteRepository(db.DB),
		Attendance: attendance.NewSQLiteRepository(db.DB),
		Audit:      auditRepo,
		Hub:        hub,
		Logger:     log.Component("tracking"),
		Config: tracking.Config{
			StaleGrace:               cfg.Monitor.StaleGrace(),
			TickInterval:             cfg.Monitor.TickInterval(),
			DefaultMaxOutsideMinutes: cfg.Monitor.DefaultMaxOutsideMinutes,
			IngestRetryLimit:         cfg.Monitor.IngestRetryLimit,
		},
	}

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() { log.Info("MQTT connected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		deps.Publisher = mqttClient
		checks["mqtt"] = mqttClient
	} else {
		log.Info("MQTT disabled")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, connErr := influxdb.Connect(cfg.InfluxDB)
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)

		deps.Telemetry = influxClient
		checks["influxdb"] = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	monitor, err := tracking.NewMonitor(deps)
	if err != nil {
		return fmt.Errorf("creating monitor: %w", err)
	}
	defer func() {
		log.Info("stopping outside timers", "active", monitor.Timers().Count())
		monitor.Close()
	}()

	resumed, err := monitor.ResumeTimers(ctx)
	if err != nil {
		return fmt.Errorf("resuming timers: %w", err)
	}
	log.Info("outside timers resumed", "count", resumed)

	sweeper := tracking.NewSweeper(monitor, cfg.Monitor.SweepInterval())
	sweeper.Start(ctx)
	defer sweeper.Stop()

	if mqttClient != nil {
		if subErr := subscribeLocations(ctx, mqttClient, byte(cfg.MQTT.QoS), monitor); subErr != nil {
			return subErr
		}
	}

	server, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   log.Component("api"),
		Tracker:  monitor,
		Audit:    auditRepo,
		DB:       db.DB,
		Hub:      hub,
		Checks:   checks,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// The hub is shared with the monitor, so its lifetime is owned here.
	go hub.Run(ctx)

	log.Info("initialisation complete", "address", server.Addr())

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse: API server, sweeper, monitor,
	// InfluxDB, MQTT, database.
	return nil
}

// subscribeLocations routes device location messages into the monitor.
// The subscription is restored by the client after every reconnect.
func subscribeLocations(ctx context.Context, client *mqtt.Client, qos byte, monitor *tracking.Monitor) error {
	topic := mqtt.Topics{}.AllLocations()
	err := client.Subscribe(topic, qos, func(t string, payload []byte) error {
		eventID, participantID, ok := mqtt.ParseLocationTopic(t)
		if !ok {
			return fmt.Errorf("unexpected location topic %q", t)
		}
		return monitor.HandleLocationMessage(ctx, eventID, participantID, payload)
	})
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	return nil
}
