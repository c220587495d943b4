// Package config loads and validates the geowatch service configuration.
//
// Values come from three layers, later layers winning:
//   - built-in defaults
//   - a YAML file
//   - GEOWATCH_* environment variables
//
// Secrets (MQTT password, InfluxDB token, JWT secret) belong in the
// environment, not in the file.
//
// Usage:
//
//	cfg, err := config.Load(config.PathFromEnv("configs/config.yaml"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	grace := cfg.Monitor.StaleGrace()
package config
