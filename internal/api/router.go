package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/geowatch-core/internal/auth"
)

// healthCheckTimeout bounds each dependency check on /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// WebSocket authenticates with a ticket, validated in the handler.
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// Participant write path; ownership is checked per handler.
			r.Route("/events/{eventID}/participants/{participantID}", func(r chi.Router) {
				r.Post("/tracking", s.handleInitializeTracking)
				r.Delete("/tracking", s.handleStopTracking)
				r.Post("/location", s.handleReportLocation)
			})

			r.With(s.requirePermission(auth.PermEventMonitor)).Get("/events/{eventID}/status", s.handleEventStatus)
			r.With(s.requirePermission(auth.PermEventTeardown)).Post("/events/{eventID}/teardown", s.handleTeardown)
			r.With(s.requirePermission(auth.PermAlertAcknowledge)).Post("/tracking/{recordID}/alerts/{alertID}/ack", s.handleAcknowledgeAlert)
			r.With(s.requirePermission(auth.PermAuditRead)).Get("/audit", s.handleListAuditLogs)
			r.With(s.requirePermission(auth.PermEventMonitor)).Post("/auth/ws-ticket", s.handleWSTicket)
			r.With(s.requirePermission(auth.PermEventMonitor)).Get("/metrics", s.handleMetrics)
		})
	})

	return r
}

// runChecks runs every dependency check with its own timeout. It returns
// "ok" or the error text per dependency, and whether all passed.
func (s *Server) runChecks(ctx context.Context) (map[string]string, bool) {
	results := make(map[string]string, len(s.checks))
	healthy := true
	for name, c := range s.checks {
		checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		err := c.HealthCheck(checkCtx)
		cancel()
		if err != nil {
			results[name] = err.Error()
			healthy = false
			continue
		}
		results[name] = "ok"
	}
	return results, healthy
}

// handleHealth reports "ok", or "degraded" with 503 when any dependency
// check fails.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks, healthy := s.runChecks(r.Context())

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":  status,
		"version": s.version,
		"checks":  checks,
	})
}
