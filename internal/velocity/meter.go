// Package velocity tracks the rate of token discoveries over a sliding
// window, the market-heat signal surfaced next to the token list.
package velocity

import (
	"sync"
	"time"
)

// Meter counts events in a sliding time window. Safe for concurrent
// use; the aggregation engine records, readers poll.
type Meter struct {
	mu     sync.Mutex
	window time.Duration
	stamps []int64 // Unix milliseconds, ascending
}

// NewMeter creates a meter over the given window. A zero window
// defaults to one minute.
func NewMeter(window time.Duration) *Meter {
	if window <= 0 {
		window = time.Minute
	}
	return &Meter{window: window}
}

// Record adds one event at the given time (Unix milliseconds).
func (m *Meter) Record(atMs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prune(atMs)
	// Out-of-order stamps inside the window are tolerated; the count
	// only cares about membership, not ordering.
	m.stamps = append(m.stamps, atMs)
}

// Count returns the number of events inside the window ending at now.
func (m *Meter) Count(nowMs int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prune(nowMs)
	return len(m.stamps)
}

// PerMinute returns the event rate normalized to a one-minute window.
func (m *Meter) PerMinute(nowMs int64) float64 {
	n := m.Count(nowMs)
	return float64(n) * float64(time.Minute) / float64(m.window)
}

// prune drops stamps strictly older than the window; an entry exactly
// window-old still counts. Caller holds mu.
func (m *Meter) prune(nowMs int64) {
	cutoff := nowMs - m.window.Milliseconds()
	i := 0
	for i < len(m.stamps) && m.stamps[i] < cutoff {
		i++
	}
	if i > 0 {
		m.stamps = append(m.stamps[:0], m.stamps[i:]...)
	}
}
