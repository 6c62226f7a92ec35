// Package candles folds trades into fixed-interval OHLC series, one
// bounded ring per token.
package candles

import (
	"time"

	"github.com/a2-stuff/pumpTUI/internal/domain"
	"github.com/a2-stuff/pumpTUI/internal/observability"
)

// Update carries the latest candle of a token after it changed in a
// way worth repainting.
type Update struct {
	Mint   string
	Candle domain.Candle
}

// Builder maintains per-token candle rings. Not safe for concurrent
// use: the aggregation engine is its single writer.
type Builder struct {
	interval time.Duration
	capacity int
	metrics  *observability.Metrics

	series  map[string][]domain.Candle
	emitted map[string]domain.Candle
	updates chan Update
}

// NewBuilder creates a builder with the given bucket interval and ring
// capacity. metrics may be nil.
func NewBuilder(interval time.Duration, capacity int, metrics *observability.Metrics) *Builder {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if capacity <= 0 {
		capacity = 96
	}
	return &Builder{
		interval: interval,
		capacity: capacity,
		metrics:  metrics,
		series:   make(map[string][]domain.Candle),
		emitted:  make(map[string]domain.Candle),
		updates:  make(chan Update, 256),
	}
}

// Updates returns the change feed. Sends never block: a slow consumer
// loses repaints, not state, since Series always has the full ring.
func (b *Builder) Updates() <-chan Update {
	return b.updates
}

// Apply folds one trade into the token's ring, backfilling flat candles
// over any quiet gap so the series stays contiguous.
func (b *Builder) Apply(mint string, price float64, side domain.TradeSide, atMs int64) {
	bucket := b.bucketStart(atMs)
	ring := b.series[mint]

	switch {
	case len(ring) == 0:
		ring = append(ring, newCandle(bucket, price))

	case bucket > ring[len(ring)-1].BucketStart:
		// Flat candles at the last close keep the x-axis contiguous
		// across quiet intervals.
		prev := ring[len(ring)-1]
		for bs := prev.BucketStart + b.interval.Milliseconds(); bs < bucket; bs += b.interval.Milliseconds() {
			ring = append(ring, domain.FlatCandle(bs, prev.Close))
		}
		ring = append(ring, newCandle(bucket, price))

	default:
		// Same bucket, or a late trade: fold into the newest candle so
		// totals never regress.
	}

	cur := &ring[len(ring)-1]
	if price > cur.High {
		cur.High = price
	}
	if price < cur.Low {
		cur.Low = price
	}
	cur.Close = price
	switch side {
	case domain.SideSell:
		cur.Sells++
	default:
		cur.Buys++
	}

	if len(ring) > b.capacity {
		ring = append(ring[:0], ring[len(ring)-b.capacity:]...)
	}
	b.series[mint] = ring

	b.maybeEmit(mint, *cur)
}

// Series returns a copy of the token's ring, oldest first.
func (b *Builder) Series(mint string) []domain.Candle {
	ring := b.series[mint]
	if len(ring) == 0 {
		return nil
	}
	out := make([]domain.Candle, len(ring))
	copy(out, ring)
	return out
}

// Drop forgets a token's ring.
func (b *Builder) Drop(mint string) {
	delete(b.series, mint)
	delete(b.emitted, mint)
}

// maybeEmit publishes the candle only when a repaint would look
// different: a new bucket, a close move, or buy/sell pressure flipping.
func (b *Builder) maybeEmit(mint string, c domain.Candle) {
	last, seen := b.emitted[mint]
	if seen &&
		last.BucketStart == c.BucketStart &&
		last.Close == c.Close &&
		pressureSign(last) == pressureSign(c) {
		if b.metrics != nil {
			b.metrics.CandleSuppressed.Inc()
		}
		return
	}

	b.emitted[mint] = c
	select {
	case b.updates <- Update{Mint: mint, Candle: c}:
		if b.metrics != nil {
			b.metrics.CandleEmissions.Inc()
		}
	default:
		if b.metrics != nil {
			b.metrics.CandleSuppressed.Inc()
		}
	}
}

// pressureSign classifies a candle as buy-heavy, balanced or
// sell-heavy. All three states are distinct for emission purposes.
func pressureSign(c domain.Candle) int {
	switch {
	case c.Buys > c.Sells:
		return 1
	case c.Buys < c.Sells:
		return -1
	default:
		return 0
	}
}

func (b *Builder) bucketStart(atMs int64) int64 {
	step := b.interval.Milliseconds()
	return atMs - atMs%step
}

func newCandle(bucketStart int64, price float64) domain.Candle {
	return domain.Candle{
		BucketStart: bucketStart,
		Open:        price,
		High:        price,
		Low:         price,
		Close:       price,
	}
}
