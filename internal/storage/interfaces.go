package storage

import (
	"context"

	"github.com/a2-stuff/pumpTUI/internal/domain"
)

// CreatorStats summarizes a creator wallet's history across every
// token it launched.
type CreatorStats struct {
	Creator        string
	TokensCreated  int64
	TokensMigrated int64
	TokensDevSold  int64
}

// CandleRecord ties a candle to its mint for durable storage.
type CandleRecord struct {
	Mint   string
	Candle domain.Candle
}

// TokenArchive provides durable storage of aggregated token records.
// Rows are keyed by mint and updated in place as the state evolves.
type TokenArchive interface {
	// Upsert inserts or refreshes the token's archived row.
	Upsert(ctx context.Context, t *domain.TokenState) error

	// GetByMint retrieves a token by mint. Returns ErrNotFound if not exists.
	GetByMint(ctx context.Context, mint string) (*domain.TokenState, error)

	// GetRecent retrieves the most recently updated tokens, newest first.
	GetRecent(ctx context.Context, limit int) ([]*domain.TokenState, error)

	// GetCreatorStats aggregates launch history for a creator wallet.
	// Returns ErrNotFound when the creator has no archived tokens.
	GetCreatorStats(ctx context.Context, creator string) (*CreatorStats, error)
}

// TradeLog provides append-only storage of individual trades.
type TradeLog interface {
	// InsertBulk appends a batch of trades.
	InsertBulk(ctx context.Context, trades []*domain.Trade) error

	// GetByMint retrieves trades for a mint, ordered by timestamp ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.Trade, error)

	// GetByTimeRange retrieves trades for a mint within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, mint string, start, end int64) ([]*domain.Trade, error)
}

// CandleLog provides append-only storage of closed candle buckets.
type CandleLog interface {
	// InsertBulk appends a batch of candle records.
	InsertBulk(ctx context.Context, records []*CandleRecord) error

	// GetByMint retrieves candles for a mint, ordered by bucket ASC.
	GetByMint(ctx context.Context, mint string) ([]domain.Candle, error)

	// GetByTimeRange retrieves candles for a mint within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, mint string, start, end int64) ([]domain.Candle, error)
}
