package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/a2-stuff/pumpTUI/internal/domain"
	"github.com/a2-stuff/pumpTUI/internal/storage"
)

// TokenArchive implements storage.TokenArchive using PostgreSQL.
type TokenArchive struct {
	pool *Pool
}

// NewTokenArchive creates a new TokenArchive.
func NewTokenArchive(pool *Pool) *TokenArchive {
	return &TokenArchive{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenArchive = (*TokenArchive)(nil)

// Upsert inserts or refreshes the token's archived row.
func (s *TokenArchive) Upsert(ctx context.Context, t *domain.TokenState) error {
	if t == nil || t.Mint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO tokens (
			mint, creator, name, symbol, uri, created_at,
			pool_kind, dev_status,
			price_sol, market_cap_sol, volume_sol,
			buy_count, sell_count, last_update
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (mint) DO UPDATE SET
			creator = EXCLUDED.creator,
			name = EXCLUDED.name,
			symbol = EXCLUDED.symbol,
			uri = EXCLUDED.uri,
			created_at = EXCLUDED.created_at,
			pool_kind = EXCLUDED.pool_kind,
			dev_status = EXCLUDED.dev_status,
			price_sol = EXCLUDED.price_sol,
			market_cap_sol = EXCLUDED.market_cap_sol,
			volume_sol = EXCLUDED.volume_sol,
			buy_count = EXCLUDED.buy_count,
			sell_count = EXCLUDED.sell_count,
			last_update = EXCLUDED.last_update
	`

	_, err := s.pool.Exec(ctx, query,
		t.Mint,
		t.Creator,
		t.Name,
		t.Symbol,
		t.URI,
		t.CreatedAt,
		string(t.PoolKind),
		string(t.DevStatus),
		t.PriceSol,
		t.MarketCapSol,
		t.VolumeSol,
		int64(t.BuyCount),
		int64(t.SellCount),
		t.LastUpdate,
	)
	if err != nil {
		return fmt.Errorf("upsert token: %w", err)
	}
	return nil
}

// GetByMint retrieves a token by mint. Returns ErrNotFound if not exists.
func (s *TokenArchive) GetByMint(ctx context.Context, mint string) (*domain.TokenState, error) {
	query := `
		SELECT mint, creator, name, symbol, uri, created_at,
		       pool_kind, dev_status,
		       price_sol, market_cap_sol, volume_sol,
		       buy_count, sell_count, last_update
		FROM tokens
		WHERE mint = $1
	`

	row := s.pool.QueryRow(ctx, query, mint)
	t, err := scanToken(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token by mint: %w", err)
	}
	return t, nil
}

// GetRecent retrieves the most recently updated tokens, newest first.
func (s *TokenArchive) GetRecent(ctx context.Context, limit int) ([]*domain.TokenState, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT mint, creator, name, symbol, uri, created_at,
		       pool_kind, dev_status,
		       price_sol, market_cap_sol, volume_sol,
		       buy_count, sell_count, last_update
		FROM tokens
		ORDER BY last_update DESC, mint ASC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*domain.TokenState
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token row: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token rows: %w", err)
	}
	return tokens, nil
}

// GetCreatorStats aggregates launch history for a creator wallet.
func (s *TokenArchive) GetCreatorStats(ctx context.Context, creator string) (*storage.CreatorStats, error) {
	if creator == "" {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT count(*),
		       count(*) FILTER (WHERE pool_kind = $2),
		       count(*) FILTER (WHERE dev_status = $3)
		FROM tokens
		WHERE creator = $1
	`

	stats := &storage.CreatorStats{Creator: creator}
	err := s.pool.QueryRow(ctx, query,
		creator, string(domain.PoolMigratedAMM), string(domain.DevSold),
	).Scan(&stats.TokensCreated, &stats.TokensMigrated, &stats.TokensDevSold)
	if err != nil {
		return nil, fmt.Errorf("get creator stats: %w", err)
	}
	if stats.TokensCreated == 0 {
		return nil, storage.ErrNotFound
	}
	return stats, nil
}

// scanToken scans a single row into TokenState.
func scanToken(row pgx.Row) (*domain.TokenState, error) {
	var t domain.TokenState
	var poolKind, devStatus string
	var buyCount, sellCount int64

	err := row.Scan(
		&t.Mint,
		&t.Creator,
		&t.Name,
		&t.Symbol,
		&t.URI,
		&t.CreatedAt,
		&poolKind,
		&devStatus,
		&t.PriceSol,
		&t.MarketCapSol,
		&t.VolumeSol,
		&buyCount,
		&sellCount,
		&t.LastUpdate,
	)
	if err != nil {
		return nil, err
	}

	t.PoolKind = domain.PoolKind(poolKind)
	t.DevStatus = domain.DevStatus(devStatus)
	t.BuyCount = uint64(buyCount)
	t.SellCount = uint64(sellCount)
	return &t, nil
}
