package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/a2-stuff/pumpTUI/internal/aggregate"
	"github.com/a2-stuff/pumpTUI/internal/candles"
	"github.com/a2-stuff/pumpTUI/internal/config"
	"github.com/a2-stuff/pumpTUI/internal/domain"
	"github.com/a2-stuff/pumpTUI/internal/logging"
	"github.com/a2-stuff/pumpTUI/internal/normalize"
	"github.com/a2-stuff/pumpTUI/internal/observability"
	"github.com/a2-stuff/pumpTUI/internal/oracle"
	"github.com/a2-stuff/pumpTUI/internal/storage"
	chstore "github.com/a2-stuff/pumpTUI/internal/storage/clickhouse"
	"github.com/a2-stuff/pumpTUI/internal/storage/memory"
	"github.com/a2-stuff/pumpTUI/internal/storage/migrations"
	pgstore "github.com/a2-stuff/pumpTUI/internal/storage/postgres"
	"github.com/a2-stuff/pumpTUI/internal/stream"
	"github.com/a2-stuff/pumpTUI/internal/velocity"
)

func main() {
	configPath := flag.String("config", "", "Path to TOML config file (optional)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage regardless of configured DSNs")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger, *useMemory); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalw("fatal error", "err", err)
	}
	logger.Info("shutdown complete")
}

func run(cfg *config.Config, logger *zap.SugaredLogger, useMemory bool) error {
	metrics := observability.NewMetrics("pumptui")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown: first signal cancels, second forces exit, and
	// a stuck drain gets cut off after 30s.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigCh:
			logger.Infow("shutdown signal received", "signal", sig)
			cancel()
		case <-done:
			return
		}
		select {
		case sig := <-sigCh:
			logger.Errorw("second signal, forcing exit", "signal", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Error("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()
	defer close(done)

	stores, closeStores, err := openStores(ctx, cfg.Storage, useMemory, logger)
	if err != nil {
		return err
	}
	defer closeStores()

	builder := candles.NewBuilder(cfg.Candles.BucketWidth.Duration, cfg.Candles.Capacity, metrics)
	meter := velocity.NewMeter(cfg.Velocity.Window.Duration)

	var engine *aggregate.Engine
	stores.Lookup = func(mint string) (*domain.TokenState, bool) {
		return engine.Token(mint)
	}
	sink := storage.NewSink(cfg.Storage, stores, logger, metrics)

	engine = aggregate.New(aggregate.Options{
		Candles:  builder,
		Meter:    meter,
		Recorder: sink,
		Metrics:  metrics,
	}, logger)

	priceOracle := oracle.New(cfg.Oracle, logger, metrics)

	client := stream.New(stream.Config{
		Endpoint:      cfg.Stream.Endpoint,
		APIKey:        cfg.Stream.APIKey,
		ReconnectSeed: cfg.Stream.ReconnectSeed.Duration,
		ReconnectMax:  cfg.Stream.ReconnectMax.Duration,
		PingInterval:  cfg.Stream.PingInterval.Duration,
		ReadTimeout:   cfg.Stream.ReadTimeout.Duration,
		WriteTimeout:  cfg.Stream.WriteTimeout.Duration,
		MessageBuffer: cfg.Stream.MessageBuffer,
	}, logger, metrics)

	if err := client.SubscribeNewTokens(); err != nil {
		return fmt.Errorf("subscribe new tokens: %w", err)
	}
	if err := client.SubscribeMigrations(); err != nil {
		return fmt.Errorf("subscribe migrations: %w", err)
	}

	normalizer := normalize.New(domain.TradeSide(cfg.Stream.FallbackSide), logger, metrics)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return client.Run(gctx) })
	g.Go(func() error { return engine.Run(gctx) })
	g.Go(func() error { return priceOracle.Run(gctx) })
	g.Go(func() error { return sink.Run(gctx) })
	g.Go(func() error { return pump(gctx, client, normalizer, engine, logger) })
	g.Go(func() error { return watchLifecycle(gctx, client, logger) })

	if cfg.Metrics.Addr != "" {
		g.Go(func() error {
			return serveHTTP(gctx, cfg.Metrics.Addr, engine, priceOracle, logger)
		})
	}

	logger.Infow("started", "endpoint", cfg.Stream.Endpoint, "metrics", cfg.Metrics.Addr)
	return g.Wait()
}

// pump moves raw frames through the normalizer into the engine. A
// discovery also subscribes the new mint's trade feed so the token
// keeps updating after its create event.
func pump(ctx context.Context, client *stream.Client, n *normalize.Normalizer, engine *aggregate.Engine, logger *zap.SugaredLogger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-client.Messages():
			if !ok {
				return nil
			}
			ev, err := n.Normalize(msg.Data)
			if err != nil {
				// Discards are per-message outcomes, already counted.
				continue
			}
			if d, isDiscovery := ev.(*domain.Discovery); isDiscovery {
				if err := client.SubscribeTokenTrades(d.Mint); err != nil {
					logger.Warnw("subscribe token trades failed", "mint", d.Mint, "err", err)
				}
			}
			engine.Submit(ev)
		}
	}
}

// watchLifecycle logs connection transitions.
func watchLifecycle(ctx context.Context, client *stream.Client, logger *zap.SugaredLogger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-client.Lifecycle():
			if !ok {
				return nil
			}
			switch ev.State {
			case domain.ConnConnected:
				logger.Infow("feed connected", "session", ev.SessionID, "attempt", ev.Attempt)
			case domain.ConnReconnecting:
				logger.Warnw("feed reconnecting", "session", ev.SessionID, "attempt", ev.Attempt)
			case domain.ConnFailed:
				logger.Errorw("feed failed", "session", ev.SessionID, "attempt", ev.Attempt)
			}
		}
	}
}

// openStores wires the configured durable backends. Empty DSNs (or
// -use-memory) fall back to in-memory stores so the process runs
// without any database.
func openStores(ctx context.Context, cfg config.StorageConfig, useMemory bool, logger *zap.SugaredLogger) (storage.SinkStores, func(), error) {
	stores := storage.SinkStores{
		Archive: memory.NewTokenArchive(),
		Trades:  memory.NewTradeLog(),
		Candles: memory.NewCandleLog(),
	}
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if useMemory {
		return stores, closeAll, nil
	}

	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return stores, closeAll, fmt.Errorf("connect to postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			closeAll()
			return stores, func() {}, fmt.Errorf("postgres migrations: %w", err)
		}
		stores.Archive = pgstore.NewTokenArchive(pool)
		logger.Info("postgres token archive enabled")
	}

	if cfg.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			closeAll()
			return stores, func() {}, fmt.Errorf("clickhouse migrations: %w", err)
		}
		closers = append(closers, func() { conn.Close() })
		stores.Trades = chstore.NewTradeLog(conn)
		stores.Candles = chstore.NewCandleLog(conn)
		logger.Info("clickhouse trade and candle logs enabled")
	}

	return stores, closeAll, nil
}

// serveHTTP exposes metrics, health and a read-only token snapshot.
func serveHTTP(ctx context.Context, addr string, engine *aggregate.Engine, priceOracle *oracle.Oracle, logger *zap.SugaredLogger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/tokens", func(w http.ResponseWriter, r *http.Request) {
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		snap := engine.Snapshot()
		if len(snap) > limit {
			snap = snap[:limit]
		}
		prices := priceOracle.Snapshot()

		type tokenView struct {
			*domain.TokenState
			MarketCapUSD float64 `json:"market_cap_usd"`
			VolumeUSD    float64 `json:"volume_usd"`
			PriceStale   bool    `json:"price_stale"`
		}
		out := struct {
			DiscoveryPerMin float64     `json:"discovery_per_min"`
			Tokens          []tokenView `json:"tokens"`
		}{DiscoveryPerMin: engine.DiscoveryRate()}
		stale := priceOracle.Stale()
		for _, t := range snap {
			out.Tokens = append(out.Tokens, tokenView{
				TokenState:   t,
				MarketCapUSD: t.MarketCapUSD(prices),
				VolumeUSD:    t.VolumeUSD(prices),
				PriceStale:   stale,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	})

	server := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("http server error", "err", err)
			return err
		}
		return nil
	}
}
