package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/geowatch-core/internal/audit"
	"github.com/nerrad567/geowatch-core/internal/auth"
	"github.com/nerrad567/geowatch-core/internal/event"
	"github.com/nerrad567/geowatch-core/internal/tracking"
)

// initializeRequest is the body of POST .../tracking.
type initializeRequest struct {
	AttendanceID string `json:"attendance_id"`
}

// locationResponse is returned for a fix that changed the record.
type locationResponse struct {
	RecordID                  string           `json:"record_id"`
	Status                    tracking.Status  `json:"status"`
	IsWithinGeofence          bool             `json:"is_within_geofence"`
	DistanceFromCenter        int              `json:"distance_from_center"`
	CurrentTimeOutsideSeconds int64            `json:"current_time_outside_seconds"`
	Alerts                    []tracking.Alert `json:"alerts"`
}

// participantScope reads the path ids and checks that the caller may write
// for the participant. It writes the error response and returns ok=false
// otherwise.
func (s *Server) participantScope(w http.ResponseWriter, r *http.Request) (eventID, participantID string, claims *auth.CustomClaims, ok bool) {
	eventID = chi.URLParam(r, "eventID")
	participantID = chi.URLParam(r, "participantID")
	claims = claimsFromContext(r.Context())

	if !auth.CanWriteParticipant(claims, participantID) {
		writeForbidden(w, "token does not cover this participant")
		return "", "", nil, false
	}
	return eventID, participantID, claims, true
}

// handleInitializeTracking starts or resumes tracking after check-in.
func (s *Server) handleInitializeTracking(w http.ResponseWriter, r *http.Request) {
	eventID, participantID, claims, ok := s.participantScope(w, r)
	if !ok {
		return
	}

	var req initializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	req.AttendanceID = strings.TrimSpace(req.AttendanceID)
	if req.AttendanceID == "" {
		writeValidationError(w, "attendance_id is required")
		return
	}

	rec, err := s.tracker.Initialize(r.Context(), eventID, participantID, req.AttendanceID)
	if err != nil {
		s.writeTrackingError(w, r, err)
		return
	}

	s.auditLog(audit.ActionTrackingStart, audit.EntityLocationStatus, rec.ID, claims.Subject,
		map[string]any{"event_id": eventID, "participant_id": participantID, "attendance_id": req.AttendanceID})
	writeJSON(w, http.StatusOK, rec)
}

// handleReportLocation ingests one fix. A fix the monitor ignores
// (completed event, inactive record) answers 204.
func (s *Server) handleReportLocation(w http.ResponseWriter, r *http.Request) {
	eventID, participantID, _, ok := s.participantScope(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "request body too large")
		return
	}
	report, err := tracking.DecodeReport(body)
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}

	out, err := s.tracker.Ingest(r.Context(), eventID, participantID, report)
	if err != nil {
		s.writeTrackingError(w, r, err)
		return
	}
	if out == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	alerts := out.Alerts
	if alerts == nil {
		alerts = []tracking.Alert{}
	}
	writeJSON(w, http.StatusOK, locationResponse{
		RecordID:                  out.Record.ID,
		Status:                    out.Record.Status,
		IsWithinGeofence:          out.Record.IsWithinGeofence,
		DistanceFromCenter:        out.Record.DistanceFromCenter,
		CurrentTimeOutsideSeconds: out.CurrentTimeOutside,
		Alerts:                    alerts,
	})
}

// handleStopTracking ends tracking, e.g. on check-out.
func (s *Server) handleStopTracking(w http.ResponseWriter, r *http.Request) {
	eventID, participantID, _, ok := s.participantScope(w, r)
	if !ok {
		return
	}

	rec, err := s.tracker.Stop(r.Context(), eventID, participantID)
	if err != nil {
		s.writeTrackingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleEventStatus returns the organizer dashboard rows.
func (s *Server) handleEventStatus(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	rows, err := s.tracker.QueryEventStatus(r.Context(), eventID)
	if err != nil {
		s.writeTrackingError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"event_id":     eventID,
		"participants": rows,
		"count":        len(rows),
	})
}

// handleTeardown stops tracking for every participant of an event.
func (s *Server) handleTeardown(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	n, err := s.tracker.Teardown(r.Context(), eventID)
	if err != nil {
		// Partial teardown: the records that did stop are reported.
		s.logger.Error("teardown incomplete", "event_id", eventID, "deactivated", n, "error", err)
		writeInternalError(w, "teardown incomplete")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"event_id": eventID, "deactivated": n})
}

// handleAcknowledgeAlert marks one alert of a record as seen.
func (s *Server) handleAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	recordID := chi.URLParam(r, "recordID")
	alertID := chi.URLParam(r, "alertID")

	rec, err := s.tracker.Acknowledge(r.Context(), recordID, alertID)
	if err != nil {
		s.writeTrackingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// writeTrackingError maps monitor errors to HTTP responses.
func (s *Server) writeTrackingError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, event.ErrEventNotFound):
		writeNotFound(w, "event not found")
	case errors.Is(err, tracking.ErrRecordNotFound):
		writeNotFound(w, "tracking record not found")
	case errors.Is(err, tracking.ErrAlertNotFound):
		writeNotFound(w, "alert not found")
	default:
		s.logger.Error("tracking request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeInternalError(w, "tracking operation failed")
	}
}
