package tracking

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/geowatch-core/internal/attendance"
	"github.com/nerrad567/geowatch-core/internal/audit"
	"github.com/nerrad567/geowatch-core/internal/event"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type published struct {
	topic    string
	payload  []byte
	retained bool
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []published
}

func (p *recordingPublisher) Publish(topic string, payload []byte, _ byte, retained bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, published{topic: topic, payload: payload, retained: retained})
	return nil
}

func (p *recordingPublisher) alerts(typ AlertType) []alertMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []alertMessage
	for _, m := range p.messages {
		if !strings.HasPrefix(m.topic, alertTopicPrefix) {
			continue
		}
		var msg alertMessage
		if err := json.Unmarshal(m.payload, &msg); err == nil && msg.Type == typ {
			out = append(out, msg)
		}
	}
	return out
}

type recordingHub struct {
	mu       sync.Mutex
	channels map[string]int
}

func (h *recordingHub) Broadcast(channel string, _ any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.channels == nil {
		h.channels = map[string]int{}
	}
	h.channels[channel]++
}

func (h *recordingHub) count(channel string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.channels[channel]
}

type recordingTelemetry struct {
	fixes   atomic.Int32
	outside atomic.Int32
}

func (r *recordingTelemetry) WriteLocationFix(string, string, float64, float64, float64, int, bool, *float64, time.Time) {
	r.fixes.Add(1)
}

func (r *recordingTelemetry) WriteOutsideTime(string, string, int64, string, time.Time) {
	r.outside.Add(1)
}

// flakyAttendance fails the first n MarkAbsent calls.
type flakyAttendance struct {
	attendance.Repository
	failures atomic.Int32
	calls    atomic.Int32
}

func (f *flakyAttendance) MarkAbsent(ctx context.Context, id string, at time.Time, note string) (bool, error) {
	f.calls.Add(1)
	if f.failures.Add(-1) >= 0 {
		return false, errors.New("database is locked")
	}
	return f.Repository.MarkAbsent(ctx, id, at, note)
}

type monitorFixture struct {
	db         *sql.DB
	monitor    *Monitor
	clock      *fakeClock
	publisher  *recordingPublisher
	hub        *recordingHub
	telemetry  *recordingTelemetry
	attendance *flakyAttendance
	audit      *audit.SQLiteRepository
	records    *SQLiteRepository
}

func newMonitorFixture(t *testing.T) *monitorFixture {
	t.Helper()
	return newMonitorFixtureWithDB(t, setupTestDB(t))
}

func newMonitorFixtureWithDB(t *testing.T, db *sql.DB) *monitorFixture {
	t.Helper()

	f := &monitorFixture{
		db:         db,
		clock:      &fakeClock{now: t0},
		publisher:  &recordingPublisher{},
		hub:        &recordingHub{},
		telemetry:  &recordingTelemetry{},
		attendance: &flakyAttendance{Repository: attendance.NewSQLiteRepository(db)},
		audit:      audit.NewSQLiteRepository(db),
		records:    NewSQLiteRepository(db),
	}

	m, err := NewMonitor(Deps{
		Records:    f.records,
		Events:     event.NewSQLiteRepository(db),
		Attendance: f.attendance,
		Audit:      f.audit,
		Publisher:  f.publisher,
		Hub:        f.hub,
		Telemetry:  f.telemetry,
		// Background tickers never fire during a test; ticks are driven by hand.
		Config: Config{TickInterval: time.Hour},
		Now:    f.clock.Now,
	})
	if err != nil {
		t.Fatalf("NewMonitor() error = %v", err)
	}
	t.Cleanup(m.Close)
	f.monitor = m
	return f
}

func (f *monitorFixture) attendanceRecord(t *testing.T, id string) *attendance.Record {
	t.Helper()
	rec, err := f.attendance.Find(context.Background(), id)
	if err != nil {
		t.Fatalf("attendance Find(%s) error = %v", id, err)
	}
	return rec
}

// leaveGeofence reports an inside baseline followed by an outside fix, which
// starts the participant's outside timer.
func (f *monitorFixture) leaveGeofence(t *testing.T, participantID string) {
	t.Helper()
	ctx := context.Background()
	for _, report := range []LocationReport{fixInside, fixOutside} {
		if _, err := f.monitor.Ingest(ctx, "evt-1", participantID, report); err != nil {
			t.Fatalf("Ingest(%s) error = %v", participantID, err)
		}
	}
}

func (f *monitorFixture) auditCount(t *testing.T, action string) int {
	t.Helper()
	res, err := f.audit.List(context.Background(), audit.Filter{Action: action})
	if err != nil {
		t.Fatalf("audit List() error = %v", err)
	}
	return res.Total
}

func TestNewMonitorRequiresRepositories(t *testing.T) {
	if _, err := NewMonitor(Deps{}); err == nil {
		t.Error("NewMonitor() with no repositories succeeded")
	}
}

func TestInitializeCreatesBaseline(t *testing.T) {
	f := newMonitorFixture(t)
	ctx := context.Background()

	rec, err := f.monitor.Initialize(ctx, "evt-1", "p-1", "att-1")
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if rec.Status != StatusOutside || rec.IsWithinGeofence || !rec.IsActive {
		t.Errorf("baseline = status %q within %v active %v", rec.Status, rec.IsWithinGeofence, rec.IsActive)
	}
	if rec.OutsideTimer.IsActive || rec.HasFix() {
		t.Error("baseline must have an idle timer and no fix")
	}
	if f.monitor.Timers().Running(rec.ID) {
		t.Error("ticker running for baseline record")
	}
	if f.hub.count(ChannelStatus) != 1 {
		t.Errorf("status broadcasts = %d, want 1", f.hub.count(ChannelStatus))
	}

	if _, err := f.monitor.Initialize(ctx, "evt-missing", "p-1", "att-1"); !errors.Is(err, event.ErrEventNotFound) {
		t.Errorf("Initialize() unknown event error = %v, want ErrEventNotFound", err)
	}
}

func TestInitializeSameSessionKeepsTotal(t *testing.T) {
	f := newMonitorFixture(t)
	ctx := context.Background()

	rec, _ := f.monitor.Initialize(ctx, "evt-1", "p-1", "att-1") //nolint:errcheck // covered above
	f.leaveGeofence(t, "p-1")
	f.clock.Advance(20 * time.Second)

	stopped, err := f.monitor.Stop(ctx, "evt-1", "p-1")
	if err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if stopped.OutsideTimer.TotalTimeOutside != 20 || stopped.IsActive {
		t.Errorf("after Stop total = %d active = %v", stopped.OutsideTimer.TotalTimeOutside, stopped.IsActive)
	}
	if f.monitor.Timers().Running(rec.ID) {
		t.Error("ticker still running after Stop")
	}

	f.clock.Advance(time.Hour)
	again, err := f.monitor.Initialize(ctx, "evt-1", "p-1", "att-1")
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if again.ID != rec.ID {
		t.Errorf("reinitialize created a new record: %s != %s", again.ID, rec.ID)
	}
	if again.OutsideTimer.TotalTimeOutside != 20 || !again.IsActive {
		t.Errorf("after reinit total = %d active = %v, want 20/true", again.OutsideTimer.TotalTimeOutside, again.IsActive)
	}
	if got := f.auditCount(t, audit.ActionTrackingStop); got != 1 {
		t.Errorf("stop_tracking audit entries = %d, want 1", got)
	}
}

func TestInitializeNewSessionResetsTimer(t *testing.T) {
	f := newMonitorFixture(t)
	ctx := context.Background()

	rec, _ := f.monitor.Initialize(ctx, "evt-1", "p-1", "att-1") //nolint:errcheck // covered above
	f.leaveGeofence(t, "p-1")
	f.clock.Advance(30 * time.Second)

	next, err := f.monitor.Initialize(ctx, "evt-1", "p-1", "att-2")
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if next.AttendanceID != "att-2" {
		t.Errorf("AttendanceID = %q, want att-2", next.AttendanceID)
	}
	if next.OutsideTimer.IsActive || next.OutsideTimer.TotalTimeOutside != 0 {
		t.Errorf("OutsideTimer = %+v, want reset", next.OutsideTimer)
	}
	if f.monitor.Timers().Running(rec.ID) {
		t.Error("ticker of the previous session still running")
	}
}

func TestIngestNoOps(t *testing.T) {
	f := newMonitorFixture(t)
	ctx := context.Background()

	out, err := f.monitor.Ingest(ctx, "evt-done", "p-1", fixOutside)
	if err != nil || out != nil {
		t.Errorf("Ingest() on completed event = %v, %v; want nil, nil", out, err)
	}

	if _, err := f.monitor.Ingest(ctx, "evt-1", "nobody", fixOutside); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("Ingest() without record error = %v, want ErrRecordNotFound", err)
	}

	f.monitor.Initialize(ctx, "evt-1", "p-1", "att-1") //nolint:errcheck // covered above
	f.monitor.Stop(ctx, "evt-1", "p-1")                //nolint:errcheck // covered above
	out, err = f.monitor.Ingest(ctx, "evt-1", "p-1", fixOutside)
	if err != nil || out != nil {
		t.Errorf("Ingest() on inactive record = %v, %v; want nil, nil", out, err)
	}
	if n := f.telemetry.fixes.Load(); n != 0 {
		t.Errorf("telemetry fixes = %d, want 0", n)
	}
}

func TestIngestLeftGeofence(t *testing.T) {
	f := newMonitorFixture(t)
	ctx := context.Background()

	rec, _ := f.monitor.Initialize(ctx, "evt-1", "p-1", "att-1") //nolint:errcheck // covered above

	battery := 0.8
	report := fixInside
	report.BatteryLevel = &battery
	out, err := f.monitor.Ingest(ctx, "evt-1", "p-1", report)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if out.Record.Status != StatusInside || len(out.Alerts) != 0 {
		t.Errorf("first fix inside: status %q alerts %d", out.Record.Status, len(out.Alerts))
	}

	f.clock.Advance(time.Second)
	out, err = f.monitor.Ingest(ctx, "evt-1", "p-1", fixOutside)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if len(out.Alerts) != 1 || out.Alerts[0].Type != AlertLeftGeofence {
		t.Fatalf("alerts = %+v, want one left_geofence", out.Alerts)
	}
	if !f.monitor.Timers().Running(rec.ID) {
		t.Error("ticker not started after leaving the geofence")
	}

	stored, err := f.records.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.Status != StatusOutside || !stored.OutsideTimer.IsActive {
		t.Errorf("stored status %q timer %+v", stored.Status, stored.OutsideTimer)
	}
	if stored.BatteryLevel != nil {
		t.Errorf("BatteryLevel = %v, want nil from the latest report", *stored.BatteryLevel)
	}

	if got := f.publisher.alerts(AlertLeftGeofence); len(got) != 1 || got[0].ParticipantID != "p-1" {
		t.Errorf("published left_geofence alerts = %+v", got)
	}
	if f.hub.count(ChannelAlert) != 1 {
		t.Errorf("alert broadcasts = %d, want 1", f.hub.count(ChannelAlert))
	}
	if n := f.telemetry.fixes.Load(); n != 2 {
		t.Errorf("telemetry fixes = %d, want 2", n)
	}
}

func TestTickExceedsLimitMarksAbsentOnce(t *testing.T) {
	f := newMonitorFixture(t)
	ctx := context.Background()

	rec, _ := f.monitor.Initialize(ctx, "evt-1", "p-1", "att-1") //nolint:errcheck // covered above
	f.monitor.Ingest(ctx, "evt-1", "p-1", fixInside)             //nolint:errcheck // covered elsewhere
	f.clock.Advance(time.Second)
	f.monitor.Ingest(ctx, "evt-1", "p-1", fixOutside) //nolint:errcheck // covered elsewhere

	f.clock.Advance(30 * time.Second)
	keep, err := f.monitor.tick(ctx, rec.ID)
	if err != nil || !keep {
		t.Fatalf("tick() before limit = %v, %v; want true, nil", keep, err)
	}

	f.clock.Advance(31 * time.Second)
	keep, err = f.monitor.tick(ctx, rec.ID)
	if err != nil {
		t.Fatalf("tick() at limit error = %v", err)
	}
	if keep {
		t.Error("tick() at limit asked to keep ticking")
	}

	for range 3 {
		f.clock.Advance(time.Second)
		if keep, err := f.monitor.tick(ctx, rec.ID); keep || err != nil {
			t.Errorf("tick() after absence = %v, %v; want false, nil", keep, err)
		}
	}

	stored, err := f.records.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.Status != StatusAbsent || stored.IsActive || stored.OutsideTimer.IsActive {
		t.Errorf("stored = status %q active %v timer %v", stored.Status, stored.IsActive, stored.OutsideTimer.IsActive)
	}
	if stored.OutsideTimer.TotalTimeOutside != 61 {
		t.Errorf("TotalTimeOutside = %d, want 61", stored.OutsideTimer.TotalTimeOutside)
	}

	att := f.attendanceRecord(t, "att-1")
	if att.Status != attendance.StatusAbsent {
		t.Errorf("attendance status = %q, want absent", att.Status)
	}
	if att.Notes != absenceNote {
		t.Errorf("attendance notes = %q", att.Notes)
	}
	if att.CheckOutTime == nil {
		t.Error("attendance check_out_time not set")
	}

	if n := f.attendance.calls.Load(); n != 1 {
		t.Errorf("MarkAbsent calls = %d, want 1", n)
	}
	if got := f.publisher.alerts(AlertExceededLimit); len(got) != 1 {
		t.Errorf("exceeded_limit alerts published = %d, want 1", len(got))
	}
	if got := f.auditCount(t, audit.ActionMarkAbsent); got != 1 {
		t.Errorf("mark_absent audit entries = %d, want 1", got)
	}
	if f.monitor.Timers().Running(rec.ID) {
		t.Error("ticker still running after absence")
	}
}

func TestConcurrentIngestAndTick(t *testing.T) {
	f := newMonitorFixture(t)
	ctx := context.Background()

	rec, _ := f.monitor.Initialize(ctx, "evt-1", "p-1", "att-1") //nolint:errcheck // covered above
	if _, err := f.monitor.Ingest(ctx, "evt-1", "p-1", fixInside); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			report := fixInside
			if i%2 == 0 {
				report = fixOutside
			}
			if _, err := f.monitor.Ingest(ctx, "evt-1", "p-1", report); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := f.monitor.tick(ctx, rec.ID); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent operation error = %v", err)
	}

	stored, err := f.records.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.OutsideTimer.IsActive == stored.IsWithinGeofence {
		t.Errorf("timer active %v with within %v", stored.OutsideTimer.IsActive, stored.IsWithinGeofence)
	}
	if stored.OutsideTimer.IsActive != f.monitor.Timers().Running(rec.ID) {
		t.Error("ticker state does not match the stored timer")
	}
}

// lockWaiters reports how many callers hold or wait for the lock of key.
func (m *Monitor) lockWaiters(key string) int {
	m.locks.mu.Lock()
	defer m.locks.mu.Unlock()
	if l, ok := m.locks.locks[key]; ok {
		return l.refs
	}
	return 0
}

func TestTickWaitingOnLockSeesReturn(t *testing.T) {
	f := newMonitorFixture(t)
	ctx := context.Background()

	rec, _ := f.monitor.Initialize(ctx, "evt-1", "p-1", "att-1") //nolint:errcheck // covered above
	f.leaveGeofence(t, "p-1")
	if !f.monitor.Timers().Running(rec.ID) {
		t.Fatal("ticker not started after leaving the geofence")
	}
	ev, err := event.NewSQLiteRepository(f.db).Get(ctx, "evt-1")
	if err != nil {
		t.Fatalf("event Get() error = %v", err)
	}

	const key = "evt-1/p-1"
	f.monitor.locks.Lock(key)

	type result struct {
		out *Outcome
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := f.monitor.evaluateTick(ctx, ev, rec.ID)
		done <- result{out, err}
	}()
	waitFor(t, 2*time.Second, func() bool { return f.monitor.lockWaiters(key) == 2 })

	// The participant returns while the tick is blocked.
	f.clock.Advance(10 * time.Second)
	stored, err := f.records.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	back := Evaluate(*stored, ev, FixSignal(fixInside, f.clock.Now()), f.monitor.params)
	if err := f.records.Update(ctx, &back.Record); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	f.monitor.Timers().Stop(rec.ID)
	f.monitor.locks.Unlock(key)

	var res result
	select {
	case res = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("evaluateTick() never returned")
	}
	if res.err != nil {
		t.Fatalf("evaluateTick() error = %v", res.err)
	}
	if res.out.Record.Status != StatusInside || res.out.Record.OutsideTimer.IsActive {
		t.Errorf("tick outcome = status %q timer %v, want inside/idle", res.out.Record.Status, res.out.Record.OutsideTimer.IsActive)
	}
	if f.monitor.Timers().Running(rec.ID) {
		t.Error("tick re-armed the ticker of a paused timer")
	}

	stored, err = f.records.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.OutsideTimer.IsActive || stored.Status != StatusInside {
		t.Errorf("stored = status %q timer %v, want inside/idle", stored.Status, stored.OutsideTimer.IsActive)
	}
	if stored.OutsideTimer.TotalTimeOutside != 10 {
		t.Errorf("TotalTimeOutside = %d, want 10", stored.OutsideTimer.TotalTimeOutside)
	}
}

func TestAcknowledge(t *testing.T) {
	f := newMonitorFixture(t)
	ctx := context.Background()

	rec, _ := f.monitor.Initialize(ctx, "evt-1", "p-1", "att-1") //nolint:errcheck // covered above
	f.monitor.Ingest(ctx, "evt-1", "p-1", fixInside)             //nolint:errcheck // covered elsewhere
	out, err := f.monitor.Ingest(ctx, "evt-1", "p-1", fixOutside)
	if err != nil || len(out.Alerts) != 1 {
		t.Fatalf("Ingest() = %+v, %v", out, err)
	}
	alertID := out.Alerts[0].ID

	acked, err := f.monitor.Acknowledge(ctx, rec.ID, alertID)
	if err != nil {
		t.Fatalf("Acknowledge() error = %v", err)
	}
	if !acked.AlertsSent[0].Acknowledged {
		t.Error("alert not acknowledged")
	}
	if !acked.OutsideTimer.IsActive || acked.Status != StatusOutside {
		t.Error("Acknowledge() changed timer or status")
	}

	if _, err := f.monitor.Acknowledge(ctx, rec.ID, "nope"); !errors.Is(err, ErrAlertNotFound) {
		t.Errorf("Acknowledge() unknown alert error = %v, want ErrAlertNotFound", err)
	}
	if _, err := f.monitor.Acknowledge(ctx, "nope", alertID); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("Acknowledge() unknown record error = %v, want ErrRecordNotFound", err)
	}
	if got := f.auditCount(t, audit.ActionAlertAck); got != 1 {
		t.Errorf("acknowledge_alert audit entries = %d, want 1", got)
	}
}

func TestQueryEventStatus(t *testing.T) {
	f := newMonitorFixture(t)
	ctx := context.Background()

	for _, p := range [][2]string{{"p-1", "att-1"}, {"p-2", "att-2"}, {"p-3", "att-3"}, {"p-4", "att-4"}} {
		if _, err := f.monitor.Initialize(ctx, "evt-1", p[0], p[1]); err != nil {
			t.Fatalf("Initialize(%s) error = %v", p[0], err)
		}
	}
	f.monitor.Ingest(ctx, "evt-1", "p-2", fixInside) //nolint:errcheck // covered elsewhere

	// p-1 never reports: silent past the grace period.
	f.clock.Advance(3*time.Minute + 30*time.Second)
	f.monitor.Ingest(ctx, "evt-1", "p-2", fixInside) //nolint:errcheck // covered elsewhere

	rows, err := f.monitor.QueryEventStatus(ctx, "evt-1")
	if err != nil {
		t.Fatalf("QueryEventStatus() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("QueryEventStatus() returned %d rows, want 2 (checked-in only)", len(rows))
	}

	byParticipant := map[string]ParticipantStatus{}
	for _, r := range rows {
		byParticipant[r.ParticipantID] = r
	}

	silent := byParticipant["p-1"]
	if silent.OutsideTimer.Reason != ReasonStale || !silent.OutsideTimer.IsActive {
		t.Errorf("p-1 timer = %+v, want active stale timer", silent.OutsideTimer)
	}
	if silent.CurrentTimeOutsideSeconds != 30 {
		t.Errorf("p-1 current time outside = %d, want 30", silent.CurrentTimeOutsideSeconds)
	}
	if !f.monitor.Timers().Running(silent.RecordID) {
		t.Error("ticker not armed for the stale record")
	}

	reporting := byParticipant["p-2"]
	if reporting.Status != StatusInside || reporting.CurrentTimeOutsideSeconds != 0 {
		t.Errorf("p-2 = status %q current %d", reporting.Status, reporting.CurrentTimeOutsideSeconds)
	}

	if _, err := f.monitor.QueryEventStatus(ctx, "evt-missing"); !errors.Is(err, event.ErrEventNotFound) {
		t.Errorf("QueryEventStatus() unknown event error = %v", err)
	}
}

func TestTeardown(t *testing.T) {
	f := newMonitorFixture(t)
	ctx := context.Background()

	f.monitor.Initialize(ctx, "evt-1", "p-1", "att-1") //nolint:errcheck // covered above
	f.monitor.Initialize(ctx, "evt-1", "p-2", "att-2") //nolint:errcheck // covered above
	f.leaveGeofence(t, "p-1")
	if f.monitor.Timers().Count() != 1 {
		t.Fatalf("Count() = %d before teardown, want 1", f.monitor.Timers().Count())
	}

	f.clock.Advance(10 * time.Second)
	n, err := f.monitor.Teardown(ctx, "evt-1")
	if err != nil {
		t.Fatalf("Teardown() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Teardown() = %d, want 2", n)
	}
	if f.monitor.Timers().Count() != 0 {
		t.Errorf("Count() = %d after teardown, want 0", f.monitor.Timers().Count())
	}

	active, err := f.records.ListActiveByEvent(ctx, "evt-1")
	if err != nil {
		t.Fatalf("ListActiveByEvent() error = %v", err)
	}
	if len(active) != 0 {
		t.Errorf("%d records still active", len(active))
	}

	p1, _ := f.records.GetByParticipant(ctx, "evt-1", "p-1") //nolint:errcheck // created above
	if p1.OutsideTimer.TotalTimeOutside != 10 {
		t.Errorf("p-1 total after teardown = %d, want 10", p1.OutsideTimer.TotalTimeOutside)
	}
	if got := f.auditCount(t, audit.ActionTeardown); got != 1 {
		t.Errorf("teardown audit entries = %d, want 1", got)
	}

	// Nothing left to tear down.
	if n, err := f.monitor.Teardown(ctx, "evt-1"); n != 0 || err != nil {
		t.Errorf("second Teardown() = %d, %v", n, err)
	}
}

func TestResumeTimers(t *testing.T) {
	db := setupTestDB(t)
	first := newMonitorFixtureWithDB(t, db)
	ctx := context.Background()

	rec, _ := first.monitor.Initialize(ctx, "evt-1", "p-1", "att-1") //nolint:errcheck // covered above
	first.monitor.Initialize(ctx, "evt-1", "p-2", "att-2")           //nolint:errcheck // covered above
	first.leaveGeofence(t, "p-1")
	first.monitor.Ingest(ctx, "evt-1", "p-2", fixInside)             //nolint:errcheck // covered elsewhere
	first.monitor.Close()

	second := newMonitorFixtureWithDB(t, db)
	n, err := second.monitor.ResumeTimers(ctx)
	if err != nil {
		t.Fatalf("ResumeTimers() error = %v", err)
	}
	if n != 1 {
		t.Errorf("ResumeTimers() = %d, want 1", n)
	}
	if !second.monitor.Timers().Running(rec.ID) {
		t.Error("ticker not resumed for the outside record")
	}

	if n, _ := second.monitor.ResumeTimers(ctx); n != 0 { //nolint:errcheck // checked above
		t.Errorf("second ResumeTimers() = %d, want 0", n)
	}
}
