package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/geowatch-core/internal/attendance"
	"github.com/nerrad567/geowatch-core/internal/audit"
	"github.com/nerrad567/geowatch-core/internal/event"
)

// Logger defines the logging interface used by the monitor.
// Compatible with *logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Publisher is the interface for publishing alerts and status to MQTT.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Broadcaster is the interface for pushing updates to WebSocket dashboards.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Telemetry receives time-series samples. Writes are fire-and-forget.
type Telemetry interface {
	WriteLocationFix(eventID, participantID string, lat, lon, accuracy float64, distanceMeters int, within bool, battery *float64, at time.Time)
	WriteOutsideTime(eventID, participantID string, totalSeconds int64, status string, at time.Time)
}

// WebSocket channels used for dashboard updates.
const (
	ChannelAlert  = "tracking.alert"
	ChannelStatus = "tracking.status"
)

// MQTT topic prefixes for outbound messages.
const (
	alertTopicPrefix  = "geowatch/alert/"
	statusTopicPrefix = "geowatch/status/"
)

// absenceNote is appended to the attendance record on automatic absence.
const absenceNote = "Automatically marked absent: exceeded maximum time outside the event area"

// Config tunes the monitor. Zero values select the defaults.
type Config struct {
	StaleGrace               time.Duration
	TickInterval             time.Duration
	DefaultMaxOutsideMinutes int
	IngestRetryLimit         int
}

// Deps holds the collaborators of a Monitor.
type Deps struct {
	Records    Repository
	Events     event.Repository
	Attendance attendance.Repository
	Audit      audit.Repository // optional
	Publisher  Publisher        // optional
	Hub        Broadcaster      // optional
	Telemetry  Telemetry        // optional
	Logger     Logger
	Config     Config
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Monitor is the facade over the geofence state machine.
//
// Thread Safety: all methods are safe for concurrent use. Operations on the
// same record are serialized; operations on different records run in parallel.
type Monitor struct {
	records    Repository
	events     event.Repository
	attendance attendance.Repository
	audit      audit.Repository
	publisher  Publisher
	hub        Broadcaster
	telemetry  Telemetry
	logger     Logger
	cfg        Config
	params     Params
	now        func() time.Time

	locks  *keyedMutex
	timers *TimerManager
}

// NewMonitor creates a monitor. Records, Events and Attendance are required.
func NewMonitor(deps Deps) (*Monitor, error) {
	if deps.Records == nil || deps.Events == nil || deps.Attendance == nil {
		return nil, fmt.Errorf("records, events and attendance repositories are required")
	}

	cfg := deps.Config
	if cfg.StaleGrace <= 0 {
		cfg.StaleGrace = DefaultStaleGrace
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.DefaultMaxOutsideMinutes <= 0 {
		cfg.DefaultMaxOutsideMinutes = event.DefaultMaxTimeOutsideMinutes
	}
	if cfg.IngestRetryLimit <= 0 {
		cfg.IngestRetryLimit = 3
	}

	m := &Monitor{
		records:    deps.Records,
		events:     deps.Events,
		attendance: deps.Attendance,
		audit:      deps.Audit,
		publisher:  deps.Publisher,
		hub:        deps.Hub,
		telemetry:  deps.Telemetry,
		logger:     deps.Logger,
		cfg:        cfg,
		now:        deps.Now,
		locks:      newKeyedMutex(),
	}
	if m.logger == nil {
		m.logger = noopLogger{}
	}
	if m.now == nil {
		m.now = time.Now
	}
	m.params = Params{StaleGrace: cfg.StaleGrace, DefaultMaxOutsideMinutes: cfg.DefaultMaxOutsideMinutes}
	m.timers = NewTimerManager(m.tick, m.logger)
	return m, nil
}

// Timers exposes the tick scheduler for health reporting and shutdown.
func (m *Monitor) Timers() *TimerManager {
	return m.timers
}

// Close stops every ticker and waits for in-flight ticks to finish.
func (m *Monitor) Close() {
	m.timers.StopAll()
}

// Initialize starts or resumes tracking of a participant's check-in.
//
// A first check-in creates a pessimistic baseline (outside, no fix). An
// existing record is reactivated; its timer is reset only when attendanceID
// names a different attendance session.
//
// Returns:
//   - *LocationStatus: the stored record
//   - error: event.ErrEventNotFound if the event does not exist
func (m *Monitor) Initialize(ctx context.Context, eventID, participantID, attendanceID string) (*LocationStatus, error) {
	if _, err := m.events.Get(ctx, eventID); err != nil {
		return nil, fmt.Errorf("loading event %s: %w", eventID, err)
	}

	key := eventID + "/" + participantID
	m.locks.Lock(key)
	defer m.locks.Unlock(key)

	for attempt := 0; ; attempt++ {
		now := m.now()

		existing, err := m.records.GetByParticipant(ctx, eventID, participantID)
		if errors.Is(err, ErrRecordNotFound) {
			rec := NewRecord("", eventID, participantID, attendanceID, now)
			err = m.records.Create(ctx, &rec)
			if errors.Is(err, ErrRecordExists) && attempt < m.cfg.IngestRetryLimit {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("creating location status: %w", err)
			}
			m.logger.Info("tracking initialized",
				"event_id", eventID, "participant_id", participantID, "attendance_id", attendanceID)
			m.publishStatus(&rec, 0)
			return &rec, nil
		}
		if err != nil {
			return nil, fmt.Errorf("loading location status: %w", err)
		}

		newSession := existing.AttendanceID != attendanceID
		next := Reactivate(*existing, attendanceID, now)
		err = m.records.Update(ctx, &next)
		if errors.Is(err, ErrVersionConflict) && attempt < m.cfg.IngestRetryLimit {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reactivating location status: %w", err)
		}

		if newSession {
			m.timers.Stop(next.ID)
		} else if next.OutsideTimer.IsActive {
			m.timers.Start(next.ID, m.cfg.TickInterval)
		}
		m.logger.Info("tracking reactivated",
			"event_id", eventID, "participant_id", participantID,
			"attendance_id", attendanceID, "new_session", newSession)
		m.publishStatus(&next, next.OutsideTimer.TotalTimeOutside)
		return &next, nil
	}
}

// Ingest applies a location report.
//
// Reports for completed events and inactive records are neutral no-ops:
// the result is (nil, nil). A participant without a record yields
// ErrRecordNotFound. A concurrent write between
// read and write is retried against the fresh record and discarded if the
// record has since been deactivated.
func (m *Monitor) Ingest(ctx context.Context, eventID, participantID string, report LocationReport) (*Outcome, error) {
	ev, err := m.events.Get(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("loading event %s: %w", eventID, err)
	}
	if ev.IsCompleted() {
		m.logger.Debug("location ignored: event completed", "event_id", eventID, "participant_id", participantID)
		return nil, nil
	}

	key := eventID + "/" + participantID
	m.locks.Lock(key)
	defer m.locks.Unlock(key)

	for attempt := 0; ; attempt++ {
		rec, err := m.records.GetByParticipant(ctx, eventID, participantID)
		if err != nil {
			return nil, fmt.Errorf("loading location status: %w", err)
		}
		if !rec.IsActive {
			m.logger.Debug("location ignored: tracking inactive", "record_id", rec.ID)
			return nil, nil
		}

		now := m.now()
		out := Evaluate(*rec, ev, FixSignal(report, now), m.params)
		out.Record.BatteryLevel = report.BatteryLevel

		err = m.apply(ctx, ev, &out)
		if errors.Is(err, ErrVersionConflict) {
			if attempt < m.cfg.IngestRetryLimit {
				m.logger.Debug("location status changed concurrently, retrying", "record_id", rec.ID, "attempt", attempt+1)
				continue
			}
			m.logger.Warn("location dropped after repeated conflicts", "record_id", rec.ID)
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		if report.BatteryLevel != nil {
			m.logger.Debug("device battery", "participant_id", participantID, "battery_level", *report.BatteryLevel)
		}
		if m.telemetry != nil {
			r := &out.Record
			m.telemetry.WriteLocationFix(eventID, participantID, report.Latitude, report.Longitude, report.Accuracy,
				r.DistanceFromCenter, r.IsWithinGeofence, report.BatteryLevel, now)
		}
		return &out, nil
	}
}

// Stop ends tracking for a participant, keeping the accumulated time.
func (m *Monitor) Stop(ctx context.Context, eventID, participantID string) (*LocationStatus, error) {
	key := eventID + "/" + participantID
	m.locks.Lock(key)
	defer m.locks.Unlock(key)

	for attempt := 0; ; attempt++ {
		rec, err := m.records.GetByParticipant(ctx, eventID, participantID)
		if err != nil {
			return nil, fmt.Errorf("loading location status: %w", err)
		}

		next := Deactivate(*rec, m.now())
		err = m.records.Update(ctx, &next)
		if errors.Is(err, ErrVersionConflict) && attempt < m.cfg.IngestRetryLimit {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("stopping location status: %w", err)
		}

		m.timers.Stop(next.ID)
		m.logger.Info("tracking stopped", "event_id", eventID, "participant_id", participantID,
			"total_time_outside", next.OutsideTimer.TotalTimeOutside)
		m.recordAudit(ctx, audit.ActionTrackingStop, &next, nil)
		m.publishStatus(&next, next.OutsideTimer.TotalTimeOutside)
		return &next, nil
	}
}

// Acknowledge marks one alert of a record as acknowledged. Timer and status
// are not touched.
func (m *Monitor) Acknowledge(ctx context.Context, recordID, alertID string) (*LocationStatus, error) {
	unlock, err := m.lockRecord(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("loading location status: %w", err)
	}
	defer unlock()

	for attempt := 0; ; attempt++ {
		rec, err := m.records.Get(ctx, recordID)
		if err != nil {
			return nil, fmt.Errorf("loading location status: %w", err)
		}

		next := rec.Clone()
		found := false
		for i := range next.AlertsSent {
			if next.AlertsSent[i].ID == alertID {
				next.AlertsSent[i].Acknowledged = true
				found = true
				break
			}
		}
		if !found {
			return nil, ErrAlertNotFound
		}

		err = m.records.Update(ctx, &next)
		if errors.Is(err, ErrVersionConflict) && attempt < m.cfg.IngestRetryLimit {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("acknowledging alert: %w", err)
		}

		m.recordAudit(ctx, audit.ActionAlertAck, &next, map[string]any{"alert_id": alertID})
		return &next, nil
	}
}

// QueryEventStatus returns the dashboard rows for an event. Records that
// are stale or timer-active are re-evaluated (and persisted) first.
// Participants whose attendance is registered or checked out are omitted.
func (m *Monitor) QueryEventStatus(ctx context.Context, eventID string) ([]ParticipantStatus, error) {
	ev, err := m.events.Get(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("loading event %s: %w", eventID, err)
	}

	records, err := m.records.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("listing location status: %w", err)
	}

	result := make([]ParticipantStatus, 0, len(records))
	for i := range records {
		rec := records[i]

		current := rec.OutsideTimer.TotalTimeOutside
		if rec.NeedsEvaluation(m.now(), m.cfg.StaleGrace) {
			out, err := m.evaluateTick(ctx, ev, rec.ID)
			if err != nil {
				m.logger.Warn("status refresh failed", "record_id", rec.ID, "error", err)
			} else if out != nil {
				rec = out.Record
				current = out.CurrentTimeOutside
			}
		}

		att, err := m.attendance.Find(ctx, rec.AttendanceID)
		if err != nil {
			if !errors.Is(err, attendance.ErrAttendanceNotFound) {
				m.logger.Warn("attendance lookup failed", "attendance_id", rec.AttendanceID, "error", err)
			}
			continue
		}
		if !att.Monitored() {
			continue
		}

		result = append(result, toParticipantStatus(&rec, current))
	}
	return result, nil
}

// Teardown deactivates every record of an event and releases their tickers.
// It returns the number of records deactivated.
func (m *Monitor) Teardown(ctx context.Context, eventID string) (int, error) {
	records, err := m.records.ListActiveByEvent(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("listing location status: %w", err)
	}

	count := 0
	var errs []error
	for i := range records {
		if err := m.deactivate(ctx, records[i].ID); err != nil {
			errs = append(errs, err)
			continue
		}
		count++
	}

	m.logger.Info("event tracking torn down", "event_id", eventID, "records", count)
	if m.audit != nil {
		entry := &audit.AuditLog{
			Action:     audit.ActionTeardown,
			EntityType: audit.EntityEvent,
			EntityID:   eventID,
			Source:     audit.SourceMonitor,
			Details:    map[string]any{"records": count},
		}
		if err := m.audit.Create(ctx, entry); err != nil {
			m.logger.Warn("audit write failed", "action", entry.Action, "error", err)
		}
	}
	return count, errors.Join(errs...)
}

func (m *Monitor) deactivate(ctx context.Context, recordID string) error {
	unlock, err := m.lockRecord(ctx, recordID)
	if err != nil {
		return fmt.Errorf("loading location status: %w", err)
	}
	defer unlock()

	for attempt := 0; ; attempt++ {
		rec, err := m.records.Get(ctx, recordID)
		if err != nil {
			return fmt.Errorf("loading location status: %w", err)
		}
		if !rec.IsActive {
			m.timers.Stop(recordID)
			return nil
		}

		next := Deactivate(*rec, m.now())
		err = m.records.Update(ctx, &next)
		if errors.Is(err, ErrVersionConflict) && attempt < m.cfg.IngestRetryLimit {
			continue
		}
		if err != nil {
			return fmt.Errorf("deactivating location status %s: %w", recordID, err)
		}
		m.timers.Stop(recordID)
		m.publishStatus(&next, next.OutsideTimer.TotalTimeOutside)
		return nil
	}
}

// ResumeTimers re-arms tickers for timer-active records of active events.
// Call once at startup, before the sweep begins.
func (m *Monitor) ResumeTimers(ctx context.Context) (int, error) {
	events, err := m.events.ListByLifecycle(ctx, event.LifecycleActive)
	if err != nil {
		return 0, fmt.Errorf("listing active events: %w", err)
	}

	resumed := 0
	for _, ev := range events {
		records, err := m.records.ListActiveByEvent(ctx, ev.ID)
		if err != nil {
			m.logger.Warn("listing records for resume failed", "event_id", ev.ID, "error", err)
			continue
		}
		for i := range records {
			if records[i].OutsideTimer.IsActive && !m.timers.Running(records[i].ID) {
				m.timers.Start(records[i].ID, m.cfg.TickInterval)
				resumed++
			}
		}
	}

	if resumed > 0 {
		m.logger.Info("outside timers resumed", "count", resumed)
	}
	return resumed, nil
}

// tick is the TickFunc driven by the TimerManager.
func (m *Monitor) tick(ctx context.Context, recordID string) (bool, error) {
	rec, err := m.records.Get(ctx, recordID)
	if errors.Is(err, ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return true, err
	}
	if !rec.IsActive || !rec.OutsideTimer.IsActive {
		return false, nil
	}

	ev, err := m.events.Get(ctx, rec.EventID)
	if err != nil {
		return true, fmt.Errorf("loading event %s: %w", rec.EventID, err)
	}

	out, err := m.evaluateTick(ctx, ev, recordID)
	if err != nil {
		return true, err
	}
	if out == nil {
		return false, nil
	}
	return out.Record.IsActive && out.Record.OutsideTimer.IsActive, nil
}

// evaluateTick re-runs the machine with a tick under the record lock.
// A nil outcome means the record is inactive.
func (m *Monitor) evaluateTick(ctx context.Context, ev *event.Event, recordID string) (*Outcome, error) {
	unlock, err := m.lockRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	for attempt := 0; ; attempt++ {
		rec, err := m.records.Get(ctx, recordID)
		if err != nil {
			return nil, err
		}
		if !rec.IsActive {
			return nil, nil
		}

		out := Evaluate(*rec, ev, TickSignal(m.now()), m.params)
		err = m.apply(ctx, ev, &out)
		if errors.Is(err, ErrVersionConflict) && attempt < m.cfg.IngestRetryLimit {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &out, nil
	}
}

// lockRecord takes the participant lock of recordID. Callers must reload
// the record after locking; anything read before the lock may be stale.
func (m *Monitor) lockRecord(ctx context.Context, recordID string) (func(), error) {
	rec, err := m.records.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}
	key := rec.EventID + "/" + rec.ParticipantID
	m.locks.Lock(key)
	return func() { m.locks.Unlock(key) }, nil
}

// apply persists an outcome and carries out its effects. The caller holds
// the record lock. On ErrVersionConflict nothing has happened.
func (m *Monitor) apply(ctx context.Context, ev *event.Event, out *Outcome) error {
	rec := &out.Record

	if out.Changed {
		if err := m.records.Update(ctx, rec); err != nil {
			return err
		}
	}

	for _, a := range out.Alerts {
		m.publishAlert(rec, a)
	}
	if out.Changed {
		m.publishStatus(rec, out.CurrentTimeOutside)
		if m.telemetry != nil {
			m.telemetry.WriteOutsideTime(rec.EventID, rec.ParticipantID, out.CurrentTimeOutside, string(rec.Status), m.now())
		}
	}

	// The absence write runs before the ticker is released and must not be
	// cut short when a tick cancels its own context.
	var err error
	if out.Has(EffectMarkAbsent) {
		absentCtx := context.WithoutCancel(ctx)
		if err = m.markAbsent(absentCtx, ev, rec, out.CurrentTimeOutside); err == nil {
			m.confirmAbsence(absentCtx, rec)
		}
	}

	for _, e := range out.Effects {
		switch e {
		case EffectStartTick:
			m.timers.Start(rec.ID, m.cfg.TickInterval)
		case EffectStopTick:
			m.timers.Stop(rec.ID)
		}
	}
	// A running timer must have a ticker, even if the one that owned it was lost.
	if rec.IsActive && rec.OutsideTimer.IsActive && !m.timers.Running(rec.ID) {
		m.timers.Start(rec.ID, m.cfg.TickInterval)
	}
	return err
}

// markAbsent performs the terminal attendance mutation. Failures are never
// swallowed: they are logged at error level and returned. The sweep's repair
// pass retries records left absent with a checked-in attendance.
func (m *Monitor) markAbsent(ctx context.Context, ev *event.Event, rec *LocationStatus, totalSeconds int64) error {
	mutated, err := m.attendance.MarkAbsent(ctx, rec.AttendanceID, m.now(), absenceNote)
	if err != nil {
		m.logger.Error("failed to mark attendance absent",
			"event_id", rec.EventID,
			"participant_id", rec.ParticipantID,
			"attendance_id", rec.AttendanceID,
			"error", err,
		)
		return fmt.Errorf("marking attendance %s absent: %w", rec.AttendanceID, err)
	}

	m.logger.Info("participant marked absent",
		"event_id", rec.EventID,
		"participant_id", rec.ParticipantID,
		"attendance_id", rec.AttendanceID,
		"total_time_outside", totalSeconds,
		"limit_minutes", int(ev.MaxTimeOutside(m.cfg.DefaultMaxOutsideMinutes)/time.Minute),
		"mutated", mutated,
	)
	if mutated {
		m.recordAudit(ctx, audit.ActionMarkAbsent, rec, map[string]any{
			"attendance_id":      rec.AttendanceID,
			"total_time_outside": totalSeconds,
		})
	}
	return nil
}

// confirmAbsence flags the pending exceeded_limit alert so the sweep's
// repair pass leaves the attendance alone from now on. The caller holds the
// record lock.
func (m *Monitor) confirmAbsence(ctx context.Context, rec *LocationStatus) {
	next := rec.Clone()
	for i := range next.AlertsSent {
		a := &next.AlertsSent[i]
		if a.Type == AlertExceededLimit && !a.Acknowledged {
			a.AbsenceRecorded = true
		}
	}
	if err := m.records.Update(ctx, &next); err != nil {
		m.logger.Warn("recording absence on location status failed", "record_id", rec.ID, "error", err)
		return
	}
	*rec = next
}

func (m *Monitor) recordAudit(ctx context.Context, action string, rec *LocationStatus, details map[string]any) {
	if m.audit == nil {
		return
	}
	if details == nil {
		details = map[string]any{}
	}
	details["event_id"] = rec.EventID
	details["participant_id"] = rec.ParticipantID

	entry := &audit.AuditLog{
		Action:     action,
		EntityType: audit.EntityLocationStatus,
		EntityID:   rec.ID,
		Source:     audit.SourceMonitor,
		Details:    details,
	}
	if err := m.audit.Create(ctx, entry); err != nil {
		m.logger.Warn("audit write failed", "action", action, "record_id", rec.ID, "error", err)
	}
}

// alertMessage is the payload of alert notifications.
type alertMessage struct {
	RecordID      string    `json:"record_id"`
	EventID       string    `json:"event_id"`
	ParticipantID string    `json:"participant_id"`
	AlertID       string    `json:"alert_id"`
	Type          AlertType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
}

func (m *Monitor) publishAlert(rec *LocationStatus, a Alert) {
	msg := alertMessage{
		RecordID:      rec.ID,
		EventID:       rec.EventID,
		ParticipantID: rec.ParticipantID,
		AlertID:       a.ID,
		Type:          a.Type,
		Timestamp:     a.Timestamp,
	}

	m.logger.Info("geofence alert", "record_id", rec.ID, "participant_id", rec.ParticipantID, "type", a.Type)

	if m.hub != nil {
		m.hub.Broadcast(ChannelAlert, msg)
	}
	if m.publisher != nil {
		payload, err := json.Marshal(msg)
		if err != nil {
			m.logger.Error("marshalling alert", "error", err)
			return
		}
		topic := alertTopicPrefix + rec.EventID + "/" + rec.ParticipantID
		if err := m.publisher.Publish(topic, payload, 1, false); err != nil {
			m.logger.Warn("publishing alert failed", "topic", topic, "error", err)
		}
	}
}

func (m *Monitor) publishStatus(rec *LocationStatus, currentTimeOutside int64) {
	if m.hub == nil && m.publisher == nil {
		return
	}
	status := toParticipantStatus(rec, currentTimeOutside)

	if m.hub != nil {
		m.hub.Broadcast(ChannelStatus, map[string]any{"event_id": rec.EventID, "status": status})
	}
	if m.publisher != nil {
		payload, err := json.Marshal(status)
		if err != nil {
			m.logger.Error("marshalling status", "error", err)
			return
		}
		topic := statusTopicPrefix + rec.EventID + "/" + rec.ParticipantID
		if err := m.publisher.Publish(topic, payload, 1, true); err != nil {
			m.logger.Warn("publishing status failed", "topic", topic, "error", err)
		}
	}
}

func toParticipantStatus(rec *LocationStatus, currentTimeOutside int64) ParticipantStatus {
	alerts := rec.AlertsSent
	if alerts == nil {
		alerts = []Alert{}
	}
	return ParticipantStatus{
		RecordID:                  rec.ID,
		ParticipantID:             rec.ParticipantID,
		AttendanceID:              rec.AttendanceID,
		CurrentLocation:           rec.CurrentLocation,
		IsWithinGeofence:          rec.IsWithinGeofence,
		DistanceFromCenter:        rec.DistanceFromCenter,
		OutsideTimer:              rec.OutsideTimer,
		Status:                    rec.Status,
		AlertsSent:                alerts,
		IsActive:                  rec.IsActive,
		LastLocationUpdate:        rec.LastLocationUpdate,
		CurrentTimeOutsideSeconds: currentTimeOutside,
	}
}
