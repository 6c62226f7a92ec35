package domain

import "time"

// PriceSnapshot is an immutable spot-price observation. It is replaced
// wholesale on each successful oracle poll and never partially updated,
// so readers may hold it without locking.
type PriceSnapshot struct {
	SolUSD     float64
	BtcUSD     float64
	ObservedAt int64 // Unix milliseconds; zero means never observed
}

// Age returns the time elapsed since the snapshot was taken.
func (p PriceSnapshot) Age(now time.Time) time.Duration {
	if p.ObservedAt == 0 {
		return time.Duration(1<<63 - 1)
	}
	return now.Sub(time.UnixMilli(p.ObservedAt))
}

// Stale reports whether the snapshot is older than threshold.
// A zero-value snapshot is always stale.
func (p PriceSnapshot) Stale(now time.Time, threshold time.Duration) bool {
	return p.Age(now) > threshold
}
