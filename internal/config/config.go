// Package config defines the runtime configuration for the pump.fun
// stream aggregator and provides validation helpers.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration structure. Fields are populated from
// a TOML file and then optionally overridden by PUMPTUI_* environment
// variables.
type Config struct {
	Stream   StreamConfig   `toml:"stream"`
	Oracle   OracleConfig   `toml:"oracle"`
	Candles  CandleConfig   `toml:"candles"`
	Velocity VelocityConfig `toml:"velocity"`
	Storage  StorageConfig  `toml:"storage"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Log      LogConfig      `toml:"log"`
}

// StreamConfig holds websocket feed parameters.
type StreamConfig struct {
	Endpoint string `toml:"endpoint"`
	APIKey   string `toml:"api_key"`

	ReconnectSeed Duration `toml:"reconnect_seed"`
	ReconnectMax  Duration `toml:"reconnect_max"`
	PingInterval  Duration `toml:"ping_interval"`
	ReadTimeout   Duration `toml:"read_timeout"`
	WriteTimeout  Duration `toml:"write_timeout"`

	// FallbackSide classifies trades that carry no directional signal
	// at all. Must be "buy" or "sell".
	FallbackSide string `toml:"fallback_side"`

	// MessageBuffer is the raw message channel capacity.
	MessageBuffer int `toml:"message_buffer"`
}

// OracleConfig holds spot-price polling parameters.
type OracleConfig struct {
	Endpoint     string   `toml:"endpoint"`
	PollInterval Duration `toml:"poll_interval"`
	StaleAfter   Duration `toml:"stale_after"`
	SolMint      string   `toml:"sol_mint"`
	BtcMint      string   `toml:"btc_mint"`
}

// CandleConfig holds OHLC series parameters.
type CandleConfig struct {
	BucketWidth Duration `toml:"bucket_width"`
	Capacity    int      `toml:"capacity"`
}

// VelocityConfig holds the discovery-rate window.
type VelocityConfig struct {
	Window Duration `toml:"window"`
}

// StorageConfig selects the optional durable sinks. Empty DSNs disable
// the corresponding sink; the core runs fully in memory without them.
type StorageConfig struct {
	PostgresDSN   string   `toml:"postgres_dsn"`
	ClickhouseDSN string   `toml:"clickhouse_dsn"`
	FlushInterval Duration `toml:"flush_interval"`
	BatchSize     int      `toml:"batch_size"`
}

// MetricsConfig holds the Prometheus endpoint address.
type MetricsConfig struct {
	Addr string `toml:"addr"` // empty disables the metrics server
}

// LogConfig holds logger construction parameters.
type LogConfig struct {
	Level   string `toml:"level"`
	File    string `toml:"file"` // empty disables file output
	Console bool   `toml:"console"`
}

// Duration is a wrapper around time.Duration that supports TOML string
// decoding ("10s", "1m30s").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the built-in configuration. Values mirror the feed's
// published limits and the original dashboard's refresh cadence.
func Defaults() Config {
	return Config{
		Stream: StreamConfig{
			Endpoint:      "wss://pumpportal.fun/api/data",
			ReconnectSeed: Duration{1 * time.Second},
			ReconnectMax:  Duration{30 * time.Second},
			PingInterval:  Duration{10 * time.Second},
			ReadTimeout:   Duration{60 * time.Second},
			WriteTimeout:  Duration{10 * time.Second},
			FallbackSide:  "buy",
			MessageBuffer: 1024,
		},
		Oracle: OracleConfig{
			Endpoint:     "https://api.dexscreener.com/latest/dex",
			PollInterval: Duration{10 * time.Second},
			StaleAfter:   Duration{60 * time.Second},
			// Wrapped SOL and wrapped BTC (Portal) on Solana.
			SolMint: "So11111111111111111111111111111111111111112",
			BtcMint: "3NZ9JMVBmGAqocybic2c7LQCJScmgsAZ6vQqTDzcqmJh",
		},
		Candles: CandleConfig{
			BucketWidth: Duration{15 * time.Second},
			Capacity:    96,
		},
		Velocity: VelocityConfig{
			Window: Duration{60 * time.Second},
		},
		Storage: StorageConfig{
			FlushInterval: Duration{5 * time.Second},
			BatchSize:     500,
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
		Log: LogConfig{
			Level:   "info",
			File:    "logs/pumptui.log",
			Console: true,
		},
	}
}

// Validate checks cross-field constraints. Call after Load.
func (c *Config) Validate() error {
	if c.Stream.Endpoint == "" {
		return fmt.Errorf("stream.endpoint must not be empty")
	}
	if c.Stream.FallbackSide != "buy" && c.Stream.FallbackSide != "sell" {
		return fmt.Errorf("stream.fallback_side must be %q or %q, got %q", "buy", "sell", c.Stream.FallbackSide)
	}
	if c.Stream.ReconnectSeed.Duration <= 0 || c.Stream.ReconnectMax.Duration < c.Stream.ReconnectSeed.Duration {
		return fmt.Errorf("stream reconnect delays invalid: seed=%v max=%v", c.Stream.ReconnectSeed.Duration, c.Stream.ReconnectMax.Duration)
	}
	if c.Candles.BucketWidth.Duration <= 0 {
		return fmt.Errorf("candles.bucket_width must be positive")
	}
	if c.Candles.Capacity <= 0 {
		return fmt.Errorf("candles.capacity must be positive")
	}
	if c.Velocity.Window.Duration <= 0 {
		return fmt.Errorf("velocity.window must be positive")
	}
	if c.Oracle.PollInterval.Duration <= 0 {
		return fmt.Errorf("oracle.poll_interval must be positive")
	}
	if c.Storage.BatchSize <= 0 {
		return fmt.Errorf("storage.batch_size must be positive")
	}
	return nil
}
