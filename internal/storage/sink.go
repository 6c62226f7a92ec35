// Package storage defines the durable store interfaces and the
// batching sink that feeds them from the live event path.
package storage

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/a2-stuff/pumpTUI/internal/config"
	"github.com/a2-stuff/pumpTUI/internal/domain"
	"github.com/a2-stuff/pumpTUI/internal/observability"
)

// maxQueue bounds the in-memory backlog per queue. The live path must
// never block on a slow database; overflow drops the oldest entries.
const maxQueue = 10000

// StateLookup fetches the current aggregated state for a mint. The
// sink uses it at flush time so archived rows carry the freshest
// counters instead of per-event deltas.
type StateLookup func(mint string) (*domain.TokenState, bool)

// Sink batches trades, candles and token updates toward the durable
// stores. Record* methods are called from the aggregation engine's
// writer path and only enqueue; flushing happens on Run's ticker or
// when a queue reaches the configured batch size. Any store may be
// nil, in which case its records are discarded.
type Sink struct {
	log     *zap.SugaredLogger
	metrics *observability.Metrics

	archive TokenArchive
	trades  TradeLog
	candles CandleLog
	lookup  StateLookup

	flushEvery time.Duration
	batchSize  int

	mu      sync.Mutex
	tradeQ  []*domain.Trade
	candleQ []*CandleRecord
	dirty   map[string]struct{}

	kick chan struct{}
}

// SinkStores carries the optional backends for NewSink.
type SinkStores struct {
	Archive TokenArchive
	Trades  TradeLog
	Candles CandleLog
	Lookup  StateLookup
}

// NewSink creates a sink. metrics may be nil.
func NewSink(cfg config.StorageConfig, stores SinkStores, log *zap.SugaredLogger, metrics *observability.Metrics) *Sink {
	flushEvery := cfg.FlushInterval.Duration
	if flushEvery <= 0 {
		flushEvery = 5 * time.Second
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Sink{
		log:        log,
		metrics:    metrics,
		archive:    stores.Archive,
		trades:     stores.Trades,
		candles:    stores.Candles,
		lookup:     stores.Lookup,
		flushEvery: flushEvery,
		batchSize:  batchSize,
		dirty:      make(map[string]struct{}),
		kick:       make(chan struct{}, 1),
	}
}

// RecordDiscovery marks the token dirty for the next archive flush.
func (s *Sink) RecordDiscovery(d *domain.Discovery) {
	s.markDirty(d.Mint)
}

// RecordTrade enqueues the trade and marks its token dirty.
func (s *Sink) RecordTrade(t *domain.Trade) {
	s.mu.Lock()
	s.tradeQ = append(s.tradeQ, t)
	if over := len(s.tradeQ) - maxQueue; over > 0 {
		s.tradeQ = s.tradeQ[over:]
	}
	s.dirty[t.Mint] = struct{}{}
	full := len(s.tradeQ) >= s.batchSize
	s.mu.Unlock()

	s.gauge()
	if full {
		s.nudge()
	}
}

// RecordMigration marks the token dirty for the next archive flush.
func (s *Sink) RecordMigration(m *domain.Migration) {
	s.markDirty(m.Mint)
}

// RecordCandle enqueues a candle repaint.
func (s *Sink) RecordCandle(mint string, c domain.Candle) {
	s.mu.Lock()
	s.candleQ = append(s.candleQ, &CandleRecord{Mint: mint, Candle: c})
	if over := len(s.candleQ) - maxQueue; over > 0 {
		s.candleQ = s.candleQ[over:]
	}
	full := len(s.candleQ) >= s.batchSize
	s.mu.Unlock()

	s.gauge()
	if full {
		s.nudge()
	}
}

// Run flushes on the configured interval until ctx is cancelled, then
// performs a final drain.
func (s *Sink) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.flushEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final drain on shutdown, bounded by its own timeout.
			drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			s.Flush(drainCtx)
			cancel()
			return ctx.Err()
		case <-ticker.C:
			s.Flush(ctx)
		case <-s.kick:
			s.Flush(ctx)
		}
	}
}

// Flush writes all queued batches. Failed batches are dropped with an
// error count rather than retried; the aggregation engine remains the
// source of truth.
func (s *Sink) Flush(ctx context.Context) {
	s.mu.Lock()
	trades := s.tradeQ
	candlesBatch := s.candleQ
	dirty := s.dirty
	s.tradeQ = nil
	s.candleQ = nil
	s.dirty = make(map[string]struct{})
	s.mu.Unlock()

	if s.trades != nil && len(trades) > 0 {
		if err := s.trades.InsertBulk(ctx, trades); err != nil {
			s.fail("trades", err)
		} else {
			s.ok("trades")
		}
	}

	if s.candles != nil && len(candlesBatch) > 0 {
		if err := s.candles.InsertBulk(ctx, candlesBatch); err != nil {
			s.fail("candles", err)
		} else {
			s.ok("candles")
		}
	}

	if s.archive != nil && s.lookup != nil && len(dirty) > 0 {
		failed := false
		for mint := range dirty {
			st, ok := s.lookup(mint)
			if !ok {
				continue
			}
			if err := s.archive.Upsert(ctx, st); err != nil {
				failed = true
				s.fail("archive", err)
			}
		}
		if !failed {
			s.ok("archive")
		}
	}

	s.gauge()
}

func (s *Sink) markDirty(mint string) {
	s.mu.Lock()
	s.dirty[mint] = struct{}{}
	s.mu.Unlock()
}

// nudge wakes Run without blocking the caller.
func (s *Sink) nudge() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Sink) gauge() {
	if s.metrics == nil {
		return
	}
	s.mu.Lock()
	depth := len(s.tradeQ) + len(s.candleQ)
	s.mu.Unlock()
	s.metrics.SinkQueueDepth.Set(float64(depth))
}

func (s *Sink) ok(sink string) {
	if s.metrics != nil {
		s.metrics.SinkBatchesFlushed.WithLabelValues(sink).Inc()
	}
}

func (s *Sink) fail(sink string, err error) {
	s.log.Errorw("sink flush failed", "sink", sink, "err", err)
	if s.metrics != nil {
		s.metrics.SinkErrors.WithLabelValues(sink).Inc()
	}
}
