package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies PUMPTUI_* environment variable overrides,
// and returns the final Config. An empty path skips the file and uses
// defaults plus environment only. The returned Config has NOT been
// validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known PUMPTUI_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
// This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Stream.Endpoint, "PUMPTUI_STREAM_ENDPOINT")
	setStr(&cfg.Stream.APIKey, "PUMPTUI_API_KEY")
	setStr(&cfg.Stream.FallbackSide, "PUMPTUI_FALLBACK_SIDE")

	setStr(&cfg.Oracle.Endpoint, "PUMPTUI_ORACLE_ENDPOINT")

	setStr(&cfg.Storage.PostgresDSN, "PUMPTUI_POSTGRES_DSN")
	setStr(&cfg.Storage.ClickhouseDSN, "PUMPTUI_CLICKHOUSE_DSN")
	setInt(&cfg.Storage.BatchSize, "PUMPTUI_STORAGE_BATCH_SIZE")

	setStr(&cfg.Metrics.Addr, "PUMPTUI_METRICS_ADDR")

	setStr(&cfg.Log.Level, "PUMPTUI_LOG_LEVEL")
	setStr(&cfg.Log.File, "PUMPTUI_LOG_FILE")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
