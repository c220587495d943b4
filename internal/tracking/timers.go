package tracking

import (
	"context"
	"sync"
	"time"
)

// DefaultTickInterval is how often a running outside timer is re-evaluated.
const DefaultTickInterval = time.Second

// TickFunc handles one tick for a record. Returning false stops the ticker;
// an error is logged and the ticker keeps going.
type TickFunc func(ctx context.Context, recordID string) (bool, error)

// TimerManager owns one ticking goroutine per record whose outside timer runs.
//
// Invariant: every path that deactivates a record or pauses its timer calls
// Stop, and every TickFunc returns false once it finds its record inactive
// or its timer idle, so no goroutine outlives the state that justified it.
//
// Thread Safety: all methods are safe for concurrent use. Stop never blocks,
// so it may be called from inside a TickFunc.
type TimerManager struct {
	mu      sync.Mutex
	timers  map[string]*tickerHandle
	handler TickFunc
	logger  Logger
	wg      sync.WaitGroup
}

type tickerHandle struct {
	cancel context.CancelFunc
}

// NewTimerManager creates a manager that calls handler on every tick.
func NewTimerManager(handler TickFunc, logger Logger) *TimerManager {
	if logger == nil {
		logger = noopLogger{}
	}
	return &TimerManager{
		timers:  make(map[string]*tickerHandle),
		handler: handler,
		logger:  logger,
	}
}

// Start (re)starts the ticker for recordID, replacing any existing one.
func (m *TimerManager) Start(recordID string, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultTickInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &tickerHandle{cancel: cancel}

	m.mu.Lock()
	if old, ok := m.timers[recordID]; ok {
		old.cancel()
	}
	m.timers[recordID] = h
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(ctx, recordID, h, interval)

	m.logger.Debug("outside timer started", "record_id", recordID, "interval", interval)
}

// Stop cancels and forgets the ticker for recordID. Unknown IDs are ignored.
func (m *TimerManager) Stop(recordID string) {
	m.mu.Lock()
	h, ok := m.timers[recordID]
	if ok {
		delete(m.timers, recordID)
	}
	m.mu.Unlock()

	if ok {
		h.cancel()
		m.logger.Debug("outside timer stopped", "record_id", recordID)
	}
}

// Running reports whether a ticker exists for recordID.
func (m *TimerManager) Running(recordID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.timers[recordID]
	return ok
}

// Count returns the number of running tickers.
func (m *TimerManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// StopAll cancels every ticker and waits for their goroutines to exit.
// Must not be called from inside a TickFunc.
func (m *TimerManager) StopAll() {
	m.mu.Lock()
	for id, h := range m.timers {
		h.cancel()
		delete(m.timers, id)
	}
	m.mu.Unlock()

	m.wg.Wait()
}

func (m *TimerManager) run(ctx context.Context, recordID string, h *tickerHandle, interval time.Duration) {
	defer m.wg.Done()
	defer m.forget(recordID, h)

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !m.fire(ctx, recordID) {
				return
			}
		}
	}
}

// fire runs the handler once, isolating panics so one bad record cannot take
// the process down.
func (m *TimerManager) fire(ctx context.Context, recordID string) (keep bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("panic in tick handler", "record_id", recordID, "panic", r)
			keep = true
		}
	}()

	keep, err := m.handler(ctx, recordID)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		m.logger.Warn("tick failed", "record_id", recordID, "error", err)
		return true
	}
	return keep
}

// forget removes the entry only if it still belongs to this goroutine; a
// concurrent Start may already have replaced it.
func (m *TimerManager) forget(recordID string, h *tickerHandle) {
	m.mu.Lock()
	if cur, ok := m.timers[recordID]; ok && cur == h {
		delete(m.timers, recordID)
	}
	m.mu.Unlock()
	h.cancel()
}
