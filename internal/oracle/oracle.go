// Package oracle polls DexScreener for SOL and BTC spot prices and
// publishes immutable snapshots for USD conversion.
package oracle

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/a2-stuff/pumpTUI/internal/config"
	"github.com/a2-stuff/pumpTUI/internal/domain"
	"github.com/a2-stuff/pumpTUI/internal/observability"
)

// pairsResponse is the subset of the DexScreener token endpoint we
// read. priceUsd comes back as a string.
type pairsResponse struct {
	Pairs []struct {
		PriceUSD  string `json:"priceUsd"`
		Liquidity struct {
			USD float64 `json:"usd"`
		} `json:"liquidity"`
	} `json:"pairs"`
}

// Oracle polls spot prices on a fixed interval. Readers call Snapshot
// at any time; writes go through an atomic pointer so a snapshot is
// never observed half-updated.
type Oracle struct {
	cfg     config.OracleConfig
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
	log     *zap.SugaredLogger
	metrics *observability.Metrics

	snap atomic.Pointer[domain.PriceSnapshot]
	now  func() time.Time
}

// New creates an oracle. metrics may be nil.
func New(cfg config.OracleConfig, log *zap.SugaredLogger, metrics *observability.Metrics) *Oracle {
	client := resty.New().
		SetBaseURL(cfg.Endpoint).
		SetTimeout(8 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "dexscreener",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Oracle{
		cfg:     cfg,
		http:    client,
		breaker: breaker,
		log:     log,
		metrics: metrics,
		now:     time.Now,
	}
}

// Run polls until the context is cancelled. The first fetch happens
// immediately so the UI does not wait a full interval for prices.
func (o *Oracle) Run(ctx context.Context) error {
	o.poll(ctx)

	ticker := time.NewTicker(o.cfg.PollInterval.Duration)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			o.poll(ctx)
		}
	}
}

// Snapshot returns the latest price snapshot. The zero value means no
// fetch has succeeded yet and reads as stale.
func (o *Oracle) Snapshot() domain.PriceSnapshot {
	if p := o.snap.Load(); p != nil {
		return *p
	}
	return domain.PriceSnapshot{}
}

// Stale reports whether the current snapshot is older than the
// configured threshold.
func (o *Oracle) Stale() bool {
	return o.Snapshot().Stale(o.now(), o.cfg.StaleAfter.Duration)
}

// poll fetches both assets and swaps in a fresh snapshot when at least
// the SOL leg succeeds. A failed poll keeps the previous snapshot; it
// just ages toward staleness.
func (o *Oracle) poll(ctx context.Context) {
	start := o.now()

	sol, solErr := o.fetchPrice(ctx, "sol", o.cfg.SolMint)
	btc, btcErr := o.fetchPrice(ctx, "btc", o.cfg.BtcMint)

	if o.metrics != nil {
		o.metrics.OracleFetchTime.Observe(o.now().Sub(start).Seconds())
	}

	if solErr != nil {
		o.log.Warnw("spot price fetch failed", "asset", "sol", "err", solErr)
		o.markStaleness()
		return
	}

	next := domain.PriceSnapshot{
		SolUSD:     sol,
		ObservedAt: o.now().UnixMilli(),
	}
	if btcErr != nil {
		// BTC is cosmetic; carry the previous value forward.
		o.log.Debugw("spot price fetch failed", "asset", "btc", "err", btcErr)
		next.BtcUSD = o.Snapshot().BtcUSD
	} else {
		next.BtcUSD = btc
	}

	o.snap.Store(&next)
	o.markStaleness()
}

func (o *Oracle) fetchPrice(ctx context.Context, asset, mint string) (float64, error) {
	result, err := o.breaker.Execute(func() (interface{}, error) {
		var body pairsResponse
		resp, err := o.http.R().
			SetContext(ctx).
			SetResult(&body).
			Get("/tokens/" + mint)
		if err != nil {
			return 0.0, err
		}
		if resp.IsError() {
			return 0.0, fmt.Errorf("dexscreener status %d", resp.StatusCode())
		}
		return bestPrice(&body)
	})

	if o.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		o.metrics.OracleFetches.WithLabelValues(asset, status).Inc()
	}
	if err != nil {
		return 0, err
	}
	return result.(float64), nil
}

// bestPrice picks the deepest pool's quote; thin pairs on the same
// mint can report junk prices.
func bestPrice(body *pairsResponse) (float64, error) {
	best := 0.0
	bestLiq := -1.0
	for _, p := range body.Pairs {
		price, err := strconv.ParseFloat(p.PriceUSD, 64)
		if err != nil || price <= 0 {
			continue
		}
		if p.Liquidity.USD > bestLiq {
			best = price
			bestLiq = p.Liquidity.USD
		}
	}
	if bestLiq < 0 {
		return 0, fmt.Errorf("no priced pairs in response")
	}
	return best, nil
}

func (o *Oracle) markStaleness() {
	if o.metrics == nil {
		return
	}
	if o.Stale() {
		o.metrics.OracleStale.Set(1)
	} else {
		o.metrics.OracleStale.Set(0)
	}
}
