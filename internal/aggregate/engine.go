// Package aggregate maintains the per-token running state. A single
// writer goroutine applies normalized events; readers get deep copies.
package aggregate

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/a2-stuff/pumpTUI/internal/candles"
	"github.com/a2-stuff/pumpTUI/internal/domain"
	"github.com/a2-stuff/pumpTUI/internal/idhash"
	"github.com/a2-stuff/pumpTUI/internal/normalize"
	"github.com/a2-stuff/pumpTUI/internal/observability"
	"github.com/a2-stuff/pumpTUI/internal/velocity"
)

// Recorder receives applied events for durable storage. Calls are made
// from the engine's writer path and must not block; sink
// implementations queue internally and drop on overflow.
type Recorder interface {
	RecordDiscovery(d *domain.Discovery)
	RecordTrade(t *domain.Trade)
	RecordMigration(m *domain.Migration)
	RecordCandle(mint string, c domain.Candle)
}

// dedupDefaultCap bounds the redelivery fingerprint window. Old
// fingerprints age out FIFO; a replay older than the window is applied
// again, which matches the feed's at-least-once reality.
const dedupDefaultCap = 16384

// Engine aggregates normalized events into TokenState records.
type Engine struct {
	log      *zap.SugaredLogger
	metrics  *observability.Metrics
	recorder Recorder

	mu      sync.RWMutex
	tokens  map[string]*domain.TokenState
	candles *candles.Builder
	meter   *velocity.Meter

	seen     map[string]struct{}
	seenFIFO []string
	dedupCap int

	events chan domain.Event
	now    func() time.Time
}

// Options carries the engine's collaborators. Candles and Meter are
// required; Recorder and Metrics may be nil.
type Options struct {
	Candles  *candles.Builder
	Meter    *velocity.Meter
	Recorder Recorder
	Metrics  *observability.Metrics
	DedupCap int
}

// New creates an engine.
func New(opts Options, log *zap.SugaredLogger) *Engine {
	if opts.DedupCap <= 0 {
		opts.DedupCap = dedupDefaultCap
	}
	return &Engine{
		log:      log,
		metrics:  opts.Metrics,
		recorder: opts.Recorder,
		tokens:   make(map[string]*domain.TokenState),
		candles:  opts.Candles,
		meter:    opts.Meter,
		seen:     make(map[string]struct{}, opts.DedupCap),
		dedupCap: opts.DedupCap,
		events:   make(chan domain.Event, 1024),
		now:      time.Now,
	}
}

// Submit queues an event for the writer goroutine. Blocks when the
// queue is full; the stream's own buffer absorbs bursts ahead of this.
func (e *Engine) Submit(ev domain.Event) {
	e.events <- ev
}

// Run is the single writer loop. It applies submitted events and
// forwards candle repaints to the recorder until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-e.events:
			e.Apply(ev)
		case u := <-e.candles.Updates():
			if e.recorder != nil {
				e.recorder.RecordCandle(u.Mint, u.Candle)
			}
		}
	}
}

// Apply folds one event into token state. Safe to call directly from
// replay tooling and tests; concurrent callers serialize on the lock.
func (e *Engine) Apply(ev domain.Event) {
	start := e.now()

	e.mu.Lock()
	switch v := ev.(type) {
	case *domain.Discovery:
		e.applyDiscovery(v)
	case *domain.Trade:
		e.applyTrade(v)
	case *domain.Migration:
		e.applyMigration(v)
	default:
		e.log.Warnw("unknown event type dropped", "kind", ev.Kind())
	}
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.ApplyLatency.Observe(e.now().Sub(start).Seconds())
		if e.meter != nil {
			e.metrics.DiscoveryPerMin.Set(e.meter.PerMinute(e.now().UnixMilli()))
		}
	}
}

// Token returns a deep copy of one token's state, candles included.
func (e *Engine) Token(mint string) (*domain.TokenState, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st, ok := e.tokens[mint]
	if !ok {
		return nil, false
	}
	cp := st.Clone()
	cp.Candles = e.candles.Series(mint)
	return cp, true
}

// Snapshot returns deep copies of every tracked token, most recently
// updated first.
func (e *Engine) Snapshot() []*domain.TokenState {
	e.mu.RLock()
	out := make([]*domain.TokenState, 0, len(e.tokens))
	for mint, st := range e.tokens {
		cp := st.Clone()
		cp.Candles = e.candles.Series(mint)
		out = append(out, cp)
	}
	e.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].LastUpdate != out[j].LastUpdate {
			return out[i].LastUpdate > out[j].LastUpdate
		}
		return out[i].Mint < out[j].Mint
	})
	return out
}

// DiscoveryRate returns tokens discovered per minute over the trailing
// window.
func (e *Engine) DiscoveryRate() float64 {
	if e.meter == nil {
		return 0
	}
	return e.meter.PerMinute(e.now().UnixMilli())
}

func (e *Engine) applyDiscovery(d *domain.Discovery) {
	if e.duplicate(idhash.EventFingerprint(d.Mint, d.Timestamp, d.Creator, "create", 0, d.Signature)) {
		return
	}

	st, exists := e.tokens[d.Mint]
	if !exists {
		st = &domain.TokenState{
			Mint:      d.Mint,
			PoolKind:  domain.PoolBondingCurve,
			DevStatus: domain.DevHolding,
			CreatedAt: d.Timestamp,
		}
		e.tokens[d.Mint] = st
		e.trackGauge()
	}

	// A trade or migration may have arrived first; the discovery only
	// backfills identity, it never resets counters or the pool kind.
	st.Name = d.Name
	st.Symbol = d.Symbol
	st.URI = d.URI
	st.Creator = d.Creator
	if st.CreatedAt == 0 || d.Timestamp < st.CreatedAt {
		st.CreatedAt = d.Timestamp
	}
	if d.MarketCapSol != nil {
		st.MarketCapSol = *d.MarketCapSol
	}
	e.touch(st, d.Timestamp)

	if e.meter != nil {
		e.meter.Record(d.Timestamp)
	}
	e.count(domain.EventDiscovery)
	if e.recorder != nil {
		e.recorder.RecordDiscovery(d)
	}

	if d.InitialTrade != nil {
		e.applyTrade(d.InitialTrade)
	}
}

func (e *Engine) applyTrade(t *domain.Trade) {
	if e.duplicate(idhash.EventFingerprint(t.Mint, t.Timestamp, t.Trader, string(t.Side), t.SolAmount, t.Signature)) {
		return
	}

	st, exists := e.tokens[t.Mint]
	if !exists {
		// First contact through a trade: a partial record on the
		// bonding curve until a discovery backfills identity.
		st = &domain.TokenState{
			Mint:      t.Mint,
			PoolKind:  domain.PoolBondingCurve,
			DevStatus: domain.DevHolding,
			CreatedAt: t.Timestamp,
		}
		e.tokens[t.Mint] = st
		e.trackGauge()
	}

	switch t.Side {
	case domain.SideSell:
		st.SellCount++
	default:
		st.BuyCount++
	}
	st.VolumeSol += t.SolAmount

	if t.PriceSol != nil {
		st.PriceSol = *t.PriceSol
	}
	if t.MarketCapSol != nil {
		st.MarketCapSol = *t.MarketCapSol
	}

	// Creator selling flips the dev flag, once. Only an on-curve
	// trader key counts: vault and PDA addresses can carry the
	// creator's tokens without the creator selling.
	if st.DevStatus == domain.DevHolding &&
		t.Side == domain.SideSell &&
		st.Creator != "" &&
		t.Trader == st.Creator &&
		normalize.IsOnCurve(t.Trader) {
		st.DevStatus = domain.DevSold
	}

	if t.PriceSol != nil {
		e.candles.Apply(t.Mint, *t.PriceSol, t.Side, t.Timestamp)
	}
	e.touch(st, t.Timestamp)

	e.count(domain.EventTrade)
	if e.recorder != nil {
		e.recorder.RecordTrade(t)
	}
}

func (e *Engine) applyMigration(m *domain.Migration) {
	if e.duplicate(idhash.EventFingerprint(m.Mint, m.Timestamp, "", "migrate", 0, m.Signature)) {
		return
	}

	st, exists := e.tokens[m.Mint]
	if !exists {
		// Migration-first: the token was never seen on the curve, it
		// enters tracking already on the AMM.
		st = &domain.TokenState{
			Mint:      m.Mint,
			PoolKind:  domain.PoolMigratedAMM,
			DevStatus: domain.DevHolding,
			CreatedAt: m.Timestamp,
		}
		e.tokens[m.Mint] = st
		e.trackGauge()
		if e.metrics != nil {
			e.metrics.Migrations.Inc()
		}
	} else if st.PoolKind != domain.PoolMigratedAMM {
		st.PoolKind = domain.PoolMigratedAMM
		if e.metrics != nil {
			e.metrics.Migrations.Inc()
		}
	}
	// Already migrated: the transition is one-way and idempotent, a
	// redelivered migration changes nothing.

	e.touch(st, m.Timestamp)
	e.count(domain.EventMigration)
	if e.recorder != nil {
		e.recorder.RecordMigration(m)
	}

	if m.SeedTrade != nil {
		e.applyTrade(m.SeedTrade)
	}
}

// duplicate registers a fingerprint, reporting true when it was already
// inside the window. Caller holds mu.
func (e *Engine) duplicate(fp string) bool {
	if _, ok := e.seen[fp]; ok {
		if e.metrics != nil {
			e.metrics.DuplicatesSeen.Inc()
		}
		return true
	}
	e.seen[fp] = struct{}{}
	e.seenFIFO = append(e.seenFIFO, fp)
	if len(e.seenFIFO) > e.dedupCap {
		evict := e.seenFIFO[0]
		e.seenFIFO = e.seenFIFO[1:]
		delete(e.seen, evict)
	}
	return false
}

func (e *Engine) touch(st *domain.TokenState, atMs int64) {
	if atMs > st.LastUpdate {
		st.LastUpdate = atMs
	}
}

func (e *Engine) trackGauge() {
	if e.metrics != nil {
		e.metrics.TokensTracked.Set(float64(len(e.tokens)))
	}
}

func (e *Engine) count(kind domain.EventKind) {
	if e.metrics != nil {
		e.metrics.EventsApplied.WithLabelValues(string(kind)).Inc()
	}
}
