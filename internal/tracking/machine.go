package tracking

import (
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/geowatch-core/internal/event"
	"github.com/nerrad567/geowatch-core/internal/geo"
)

// DefaultStaleGrace is how long a device may stay silent before the silence
// starts counting against the time-outside budget.
const DefaultStaleGrace = 3 * time.Minute

// SignalKind distinguishes a real location fix from a clock tick.
type SignalKind int

const (
	SignalTick SignalKind = iota
	SignalFix
)

// Signal is the input to one evaluation.
type Signal struct {
	Kind SignalKind
	At   time.Time
	Fix  Location // only for SignalFix
}

// FixSignal builds a fix signal observed at "at".
func FixSignal(report LocationReport, at time.Time) Signal {
	return Signal{
		Kind: SignalFix,
		At:   at,
		Fix: Location{
			Latitude:  report.Latitude,
			Longitude: report.Longitude,
			Accuracy:  report.Accuracy,
			Timestamp: at,
		},
	}
}

// TickSignal builds a tick signal at "at".
func TickSignal(at time.Time) Signal {
	return Signal{Kind: SignalTick, At: at}
}

// Effect is a side effect the caller must carry out after an evaluation.
type Effect string

const (
	EffectStartTick  Effect = "start_tick"
	EffectStopTick   Effect = "stop_tick"
	EffectMarkAbsent Effect = "mark_absent"
)

// Params tunes the transition function.
type Params struct {
	StaleGrace               time.Duration
	DefaultMaxOutsideMinutes int
	NewID                    func() string
}

func (p Params) withDefaults() Params {
	if p.StaleGrace <= 0 {
		p.StaleGrace = DefaultStaleGrace
	}
	if p.DefaultMaxOutsideMinutes <= 0 {
		p.DefaultMaxOutsideMinutes = event.DefaultMaxTimeOutsideMinutes
	}
	if p.NewID == nil {
		p.NewID = uuid.NewString
	}
	return p
}

// Outcome is the result of Evaluate.
type Outcome struct {
	Record             LocationStatus
	Alerts             []Alert
	Effects            []Effect
	CurrentTimeOutside int64
	// Changed is false when the record needs no write.
	Changed bool
	// Skipped is true when the record was inactive and left untouched.
	Skipped bool
}

// Has reports whether the outcome carries the effect.
func (o *Outcome) Has(e Effect) bool {
	for _, x := range o.Effects {
		if x == e {
			return true
		}
	}
	return false
}

// Terminal reports whether the evaluation deactivated the record.
func (o *Outcome) Terminal() bool {
	return !o.Skipped && !o.Record.IsActive
}

// Evaluate computes the next state of rec for one signal. It never mutates
// rec and performs no I/O.
func Evaluate(rec LocationStatus, ev *event.Event, sig Signal, p Params) Outcome {
	p = p.withDefaults()

	out := Outcome{Record: rec.Clone()}
	r := &out.Record
	if !r.IsActive {
		out.Skipped = true
		out.CurrentTimeOutside = r.OutsideTimer.TotalTimeOutside
		return out
	}

	now := sig.At
	timerWasActive := r.OutsideTimer.IsActive
	prevStatus := r.Status

	if sig.Kind == SignalFix {
		applyFix(&out, ev, sig.Fix, now, p)
	}

	// Accounting.
	var total int64
	staleness := now.Sub(r.LastLocationUpdate)
	switch {
	case r.OutsideTimer.IsActive:
		if r.OutsideTimer.CurrentSessionStart == nil {
			startTimer(r, r.OutsideTimer.Reason, now)
			out.Changed = true
		}
		total = r.OutsideTimer.TotalTimeOutside + elapsedSeconds(*r.OutsideTimer.CurrentSessionStart, now)
	case staleness > p.StaleGrace:
		anchor := r.LastLocationUpdate.Add(p.StaleGrace)
		startTimer(r, ReasonStale, anchor)
		out.Changed = true
		total = r.OutsideTimer.TotalTimeOutside + elapsedSeconds(anchor, now)
	default:
		total = r.OutsideTimer.TotalTimeOutside
	}
	out.CurrentTimeOutside = total

	// Limit check.
	limit := int64(ev.MaxTimeOutside(p.DefaultMaxOutsideMinutes) / time.Second)
	if total >= limit {
		if !r.HasPendingExceeded() {
			out.addAlert(AlertExceededLimit, now, p)
			out.Effects = append(out.Effects, EffectMarkAbsent)
		}
		r.Status = StatusAbsent
		freezeTimer(r, total)
		r.IsActive = false
		out.Effects = append(out.Effects, EffectStopTick)
		out.Changed = true
		return out
	}

	if r.IsWithinGeofence {
		r.Status = StatusInside
	} else {
		r.Status = StatusOutside
	}
	if r.Status != prevStatus {
		out.Changed = true
	}

	switch {
	case !timerWasActive && r.OutsideTimer.IsActive:
		out.Effects = append(out.Effects, EffectStartTick)
	case timerWasActive && !r.OutsideTimer.IsActive:
		out.Effects = append(out.Effects, EffectStopTick)
	}
	return out
}

// applyFix records a real fix and runs the geofence transition step.
func applyFix(out *Outcome, ev *event.Event, fix Location, now time.Time, p Params) {
	r := &out.Record
	out.Changed = true

	firstFix := !r.HasFix()
	wasInside := r.IsWithinGeofence

	point := geo.Point{Latitude: fix.Latitude, Longitude: fix.Longitude}
	inside := geo.Within(point, ev.Center, ev.RadiusMeters)

	// Unusable coordinates count as outside but never replace the last good position.
	if point.IsFinite() {
		r.CurrentLocation = fix
	} else {
		r.CurrentLocation.Timestamp = fix.Timestamp
	}
	r.IsWithinGeofence = inside
	r.DistanceFromCenter = geo.RoundMeters(geo.DistanceBetween(point, ev.Center))
	r.LastLocationUpdate = now

	// A real fix ends any silence session. The silent stretch stays in the total.
	resumedFromStale := false
	if r.OutsideTimer.IsActive && r.OutsideTimer.Reason == ReasonStale {
		pauseTimer(r, now)
		resumedFromStale = true
	}

	switch {
	case firstFix:
		// Baseline only, no transition alert either way.
		if inside && r.OutsideTimer.IsActive {
			pauseTimer(r, now)
		}
	case wasInside && !inside:
		out.addAlert(AlertLeftGeofence, now, p)
		startTimer(r, ReasonOutside, now)
	case !wasInside && inside && !resumedFromStale && r.OutsideTimer.IsActive:
		pauseTimer(r, now)
		out.addAlert(AlertReturned, now, p)
	}
	// Outside without a transition (first fix, still outside after silence)
	// leaves the timer idle. Time accrues again through leaving or silence.
}

func (o *Outcome) addAlert(t AlertType, at time.Time, p Params) {
	a := Alert{ID: p.NewID(), Type: t, Timestamp: at}
	o.Record.AlertsSent = append(o.Record.AlertsSent, a)
	o.Alerts = append(o.Alerts, a)
}

func startTimer(r *LocationStatus, reason TimerReason, at time.Time) {
	start := at
	r.OutsideTimer.IsActive = true
	r.OutsideTimer.Reason = reason
	r.OutsideTimer.CurrentSessionStart = &start
	if r.OutsideTimer.StartTime == nil {
		first := at
		r.OutsideTimer.StartTime = &first
	}
}

// pauseTimer folds the running session into the total and clears it.
func pauseTimer(r *LocationStatus, now time.Time) {
	if r.OutsideTimer.IsActive && r.OutsideTimer.CurrentSessionStart != nil {
		r.OutsideTimer.TotalTimeOutside += elapsedSeconds(*r.OutsideTimer.CurrentSessionStart, now)
	}
	r.OutsideTimer.IsActive = false
	r.OutsideTimer.Reason = ReasonNone
	r.OutsideTimer.CurrentSessionStart = nil
}

// freezeTimer stores total and stops the timer without touching Reason.
func freezeTimer(r *LocationStatus, total int64) {
	if total > r.OutsideTimer.TotalTimeOutside {
		r.OutsideTimer.TotalTimeOutside = total
	}
	r.OutsideTimer.IsActive = false
	r.OutsideTimer.CurrentSessionStart = nil
}

// elapsedSeconds returns whole seconds from start to now, never negative.
func elapsedSeconds(start, now time.Time) int64 {
	d := now.Sub(start)
	if d <= 0 {
		return 0
	}
	return int64(d / time.Second)
}

// Deactivate freezes the timer, keeping the time accumulated so far, and
// stops monitoring the record.
func Deactivate(rec LocationStatus, now time.Time) LocationStatus {
	r := rec.Clone()
	total := r.OutsideTimer.TotalTimeOutside
	if r.OutsideTimer.IsActive && r.OutsideTimer.CurrentSessionStart != nil {
		total += elapsedSeconds(*r.OutsideTimer.CurrentSessionStart, now)
	}
	freezeTimer(&r, total)
	r.IsActive = false
	return r
}

// Reactivate prepares an existing record for a check-in. A different
// attendance session resets the timer and settles any pending
// exceeded_limit alert from the previous session; the same session keeps
// all accumulated state. Alert history is never removed.
func Reactivate(rec LocationStatus, attendanceID string, now time.Time) LocationStatus {
	r := rec.Clone()

	if r.AttendanceID != attendanceID {
		r.AttendanceID = attendanceID
		r.OutsideTimer = OutsideTimer{}
		r.LastLocationUpdate = now
		for i := range r.AlertsSent {
			if r.AlertsSent[i].Type == AlertExceededLimit {
				r.AlertsSent[i].Acknowledged = true
			}
		}
	} else if !r.IsActive {
		// Resuming after stop: the grace window restarts, the total does not.
		r.LastLocationUpdate = now
	}

	r.IsActive = true
	return r
}

// NewRecord returns the pessimistic baseline for a first check-in: outside,
// no fix, timer idle.
func NewRecord(id, eventID, participantID, attendanceID string, now time.Time) LocationStatus {
	return LocationStatus{
		ID:                 id,
		EventID:            eventID,
		ParticipantID:      participantID,
		AttendanceID:       attendanceID,
		IsWithinGeofence:   false,
		Status:             StatusOutside,
		AlertsSent:         []Alert{},
		IsActive:           true,
		LastLocationUpdate: now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}
