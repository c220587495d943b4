package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/geowatch-core/internal/attendance"
	"github.com/nerrad567/geowatch-core/internal/event"
)

// DefaultSweepInterval is the cadence of the event-wide backstop pass.
const DefaultSweepInterval = 2 * time.Minute

// SweepResult summarizes one sweep pass.
type SweepResult struct {
	Events    int
	Evaluated int
	Rearmed   int
	Repaired  int
	Failures  int
}

// Sweeper periodically re-evaluates every active record of every active
// event. It recovers records whose ticker was lost and retries attendance
// writes that failed after a record went absent.
type Sweeper struct {
	monitor  *Monitor
	interval time.Duration
	logger   Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper creates a sweeper for m. A non-positive interval selects
// DefaultSweepInterval.
func NewSweeper(m *Monitor, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		monitor:  m,
		interval: interval,
		logger:   m.logger,
	}
}

// Start runs one pass immediately, then one per interval until ctx is
// cancelled or Stop is called. Calling Start twice is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)

		s.pass(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.pass(ctx)
			}
		}
	}(s.done)

	s.logger.Info("sweep scheduler started", "interval", s.interval)
}

// Stop halts the loop and waits for an in-flight pass to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Sweeper) pass(ctx context.Context) {
	start := time.Now()
	res, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error("sweep failed", "error", err)
		return
	}
	s.logger.Debug("sweep complete",
		"events", res.Events,
		"evaluated", res.Evaluated,
		"rearmed", res.Rearmed,
		"repaired", res.Repaired,
		"failures", res.Failures,
		"duration", time.Since(start),
	)
}

// RunOnce performs a single pass over all active events. Per-record and
// per-event failures are logged and counted; only failing to list events
// aborts the pass.
func (s *Sweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	events, err := s.monitor.events.ListByLifecycle(ctx, event.LifecycleActive)
	if err != nil {
		return res, fmt.Errorf("listing active events: %w", err)
	}

	for i := range events {
		if ctx.Err() != nil {
			return res, nil
		}
		res.Events++
		s.sweepEvent(ctx, &events[i], &res)
	}
	return res, nil
}

func (s *Sweeper) sweepEvent(ctx context.Context, ev *event.Event, res *SweepResult) {
	m := s.monitor

	records, err := m.records.ListByEvent(ctx, ev.ID)
	if err != nil {
		s.logger.Warn("sweep: listing records failed", "event_id", ev.ID, "error", err)
		res.Failures++
		return
	}

	now := m.now()
	for i := range records {
		rec := &records[i]

		if !rec.IsActive {
			if rec.Status == StatusAbsent && rec.AbsencePending() {
				repaired, err := s.repair(ctx, ev, rec.ID)
				if err != nil {
					res.Failures++
				} else if repaired {
					res.Repaired++
				}
			}
			continue
		}

		if !rec.NeedsEvaluation(now, m.cfg.StaleGrace) {
			continue
		}

		hadTicker := m.timers.Running(rec.ID)
		out, err := s.evaluate(ctx, ev, rec.ID)
		if err != nil {
			s.logger.Warn("sweep: evaluation failed", "record_id", rec.ID, "error", err)
			res.Failures++
			continue
		}
		res.Evaluated++
		if out != nil && !hadTicker && m.timers.Running(rec.ID) {
			res.Rearmed++
		}
	}
}

// evaluate isolates panics so one corrupt record cannot stop the pass.
func (s *Sweeper) evaluate(ctx context.Context, ev *event.Event, recordID string) (out *Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic evaluating %s: %v", recordID, r)
		}
	}()
	return s.monitor.evaluateTick(ctx, ev, recordID)
}

// repair retries the attendance mutation for a record that went absent
// while its attendance write failed. Once the write lands, or the attendance
// has already left checked_in, the alert is flagged and never retried.
func (s *Sweeper) repair(ctx context.Context, ev *event.Event, recordID string) (bool, error) {
	m := s.monitor

	unlock, err := m.lockRecord(ctx, recordID)
	if err != nil {
		return false, err
	}
	defer unlock()

	rec, err := m.records.Get(ctx, recordID)
	if err != nil {
		return false, err
	}
	if rec.IsActive || rec.Status != StatusAbsent || !rec.AbsencePending() {
		return false, nil
	}

	att, err := m.attendance.Find(ctx, rec.AttendanceID)
	if errors.Is(err, attendance.ErrAttendanceNotFound) {
		return false, nil
	}
	if err != nil {
		s.logger.Warn("sweep: attendance lookup failed", "attendance_id", rec.AttendanceID, "error", err)
		return false, err
	}
	if att.Status != attendance.StatusCheckedIn {
		m.confirmAbsence(ctx, rec)
		return false, nil
	}

	s.logger.Warn("sweep: retrying absence write",
		"event_id", rec.EventID, "participant_id", rec.ParticipantID, "attendance_id", rec.AttendanceID)
	if err := m.markAbsent(ctx, ev, rec, rec.OutsideTimer.TotalTimeOutside); err != nil {
		return false, err
	}
	m.confirmAbsence(ctx, rec)
	return true, nil
}
