// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Stream metrics
	MessagesReceived prometheus.Counter
	Reconnects       prometheus.Counter
	ConnectionState  prometheus.Gauge // 1 connected, 0 reconnecting
	PingLatency      prometheus.Histogram

	// Normalizer metrics
	EventsNormalized  *prometheus.CounterVec
	MessagesDiscarded *prometheus.CounterVec
	SidesInferred     *prometheus.CounterVec

	// Aggregation metrics
	EventsApplied    *prometheus.CounterVec
	DuplicatesSeen   prometheus.Counter
	TokensTracked    prometheus.Gauge
	Migrations       prometheus.Counter
	ApplyLatency     prometheus.Histogram
	DiscoveryPerMin  prometheus.Gauge
	CandleEmissions  prometheus.Counter
	CandleSuppressed prometheus.Counter

	// Oracle metrics
	OracleFetches   *prometheus.CounterVec
	OracleStale     prometheus.Gauge
	OracleFetchTime prometheus.Histogram

	// Sink metrics
	SinkBatchesFlushed *prometheus.CounterVec
	SinkErrors         *prometheus.CounterVec
	SinkQueueDepth     prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "pumptui"
	}

	return &Metrics{
		MessagesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "messages_received_total",
			Help:      "Total number of raw websocket messages received",
		}),
		Reconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "reconnects_total",
			Help:      "Total number of websocket reconnect attempts",
		}),
		ConnectionState: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "connected",
			Help:      "Whether the feed connection is currently established",
		}),
		PingLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "ping_latency_seconds",
			Help:      "Ping round-trip latency in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),

		EventsNormalized: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "normalize",
			Name:      "events_total",
			Help:      "Total number of normalized events by kind",
		}, []string{"kind"}),
		MessagesDiscarded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "normalize",
			Name:      "discarded_total",
			Help:      "Total number of discarded raw messages by reason",
		}, []string{"reason"}),
		SidesInferred: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "normalize",
			Name:      "sides_inferred_total",
			Help:      "Total number of trades whose side was inferred, by signal",
		}, []string{"signal"}),

		EventsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregate",
			Name:      "events_applied_total",
			Help:      "Total number of events applied to token state by kind",
		}, []string{"kind"}),
		DuplicatesSeen: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregate",
			Name:      "duplicates_total",
			Help:      "Total number of redelivered events rejected by fingerprint",
		}),
		TokensTracked: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "aggregate",
			Name:      "tokens_tracked",
			Help:      "Current number of token records",
		}),
		Migrations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregate",
			Name:      "migrations_total",
			Help:      "Total number of bonding-curve to AMM migrations applied",
		}),
		ApplyLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "aggregate",
			Name:      "apply_latency_seconds",
			Help:      "Event application latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		DiscoveryPerMin: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "aggregate",
			Name:      "discovery_per_minute",
			Help:      "Tokens discovered per minute over the trailing window",
		}),
		CandleEmissions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "candles",
			Name:      "emissions_total",
			Help:      "Total number of candle update notifications emitted",
		}),
		CandleSuppressed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "candles",
			Name:      "suppressed_total",
			Help:      "Total number of non-moving candle updates suppressed",
		}),

		OracleFetches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "fetches_total",
			Help:      "Total number of spot-price fetches by status",
		}, []string{"asset", "status"}),
		OracleStale: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "stale",
			Help:      "Whether the current price snapshot is past the staleness threshold",
		}),
		OracleFetchTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "fetch_duration_seconds",
			Help:      "Spot-price fetch duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		SinkBatchesFlushed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "batches_flushed_total",
			Help:      "Total number of batches flushed to durable sinks",
		}, []string{"sink"}),
		SinkErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "errors_total",
			Help:      "Total number of sink write errors",
		}, []string{"sink"}),
		SinkQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "queue_depth",
			Help:      "Current number of records waiting to be flushed",
		}),
	}
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
