// Package logging provides the structured logger used across geowatch.
//
// Logger wraps log/slog. Every entry carries service=geowatch and the build
// version; components add their own name with Component:
//
//	logger := logging.New(cfg.Logging, version)
//	monitorLog := logger.Component("monitor")
//	monitorLog.Info("participant marked absent", "attendance_id", id)
//
// Configuration (config.yaml):
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Participant coordinates are logged at debug level only.
package logging
