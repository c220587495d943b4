package api

import (
	"database/sql"
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics is the response of GET /metrics: a point-in-time view for
// the organizer dashboard.
type SystemMetrics struct {
	Timestamp     time.Time         `json:"timestamp"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Tracking      TrackingMetrics   `json:"tracking"`
	Dashboards    int               `json:"dashboards"`
	Dependencies  map[string]string `json:"dependencies"`
	Database      DatabaseMetrics   `json:"database"`
	Runtime       RuntimeMetrics    `json:"runtime"`
}

// TrackingMetrics reports the monitor's live tickers; one runs per record
// whose outside timer is active.
type TrackingMetrics struct {
	ActiveTimers int `json:"active_timers"`
}

// DatabaseMetrics is a subset of sql.DBStats.
type DatabaseMetrics struct {
	OpenConnections int           `json:"open_connections"`
	InUse           int           `json:"in_use"`
	WaitCount       int64         `json:"wait_count"`
	WaitDuration    time.Duration `json:"wait_duration_ns"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines int     `json:"goroutines"`
	HeapMB     float64 `json:"heap_mb"`
	NumGC      uint32  `json:"num_gc"`
}

const bytesPerMB = 1 << 20

func databaseMetrics(db *sql.DB) DatabaseMetrics {
	if db == nil {
		return DatabaseMetrics{}
	}
	st := db.Stats()
	return DatabaseMetrics{
		OpenConnections: st.OpenConnections,
		InUse:           st.InUse,
		WaitCount:       st.WaitCount,
		WaitDuration:    st.WaitDuration,
	}
}

func runtimeMetrics() RuntimeMetrics {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return RuntimeMetrics{
		Goroutines: runtime.NumGoroutine(),
		HeapMB:     float64(ms.HeapAlloc) / bytesPerMB,
		NumGC:      ms.NumGC,
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	deps, _ := s.runChecks(r.Context())

	writeJSON(w, http.StatusOK, SystemMetrics{
		Timestamp:     time.Now().UTC(),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Tracking:      TrackingMetrics{ActiveTimers: s.tracker.Timers().Count()},
		Dashboards:    s.hub.ClientCount(),
		Dependencies:  deps,
		Database:      databaseMetrics(s.db),
		Runtime:       runtimeMetrics(),
	})
}
