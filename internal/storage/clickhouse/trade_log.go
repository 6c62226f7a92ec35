package clickhouse

import (
	"context"
	"fmt"

	"github.com/a2-stuff/pumpTUI/internal/domain"
	"github.com/a2-stuff/pumpTUI/internal/storage"
)

// TradeLog implements storage.TradeLog using ClickHouse. The table is
// plain MergeTree: trades are deduplicated upstream by fingerprint, so
// the log takes batches as-is.
type TradeLog struct {
	conn *Conn
}

// NewTradeLog creates a new TradeLog.
func NewTradeLog(conn *Conn) *TradeLog {
	return &TradeLog{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeLog = (*TradeLog)(nil)

// InsertBulk appends a batch of trades.
func (s *TradeLog) InsertBulk(ctx context.Context, trades []*domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	for _, t := range trades {
		if t == nil || t.Mint == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trades (
			mint, timestamp_ms, side, side_inferred, trader, pool, signature,
			sol_amount, token_amount, price_sol, market_cap_sol
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, t := range trades {
		err = batch.Append(
			t.Mint, uint64(t.Timestamp), string(t.Side), boolToUInt8(t.SideInferred),
			t.Trader, t.Pool, t.Signature,
			t.SolAmount, t.TokenAmount, t.PriceSol, t.MarketCapSol,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByMint retrieves trades for a mint, ordered by timestamp ASC.
func (s *TradeLog) GetByMint(ctx context.Context, mint string) ([]*domain.Trade, error) {
	query := `
		SELECT mint, timestamp_ms, side, side_inferred, trader, pool, signature,
		       sol_amount, token_amount, price_sol, market_cap_sol
		FROM trades
		WHERE mint = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("query by mint: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetByTimeRange retrieves trades for a mint within [start, end] (inclusive).
func (s *TradeLog) GetByTimeRange(ctx context.Context, mint string, start, end int64) ([]*domain.Trade, error) {
	query := `
		SELECT mint, timestamp_ms, side, side_inferred, trader, pool, signature,
		       sol_amount, token_amount, price_sol, market_cap_sol
		FROM trades
		WHERE mint = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, mint, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// scanTrades scans multiple rows.
func scanTrades(rows chRows) ([]*domain.Trade, error) {
	var trades []*domain.Trade

	for rows.Next() {
		var t domain.Trade
		var timestampMs uint64
		var side string
		var inferred uint8

		err := rows.Scan(
			&t.Mint, &timestampMs, &side, &inferred,
			&t.Trader, &t.Pool, &t.Signature,
			&t.SolAmount, &t.TokenAmount, &t.PriceSol, &t.MarketCapSol,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}

		t.Timestamp = int64(timestampMs)
		t.Side = domain.TradeSide(side)
		t.SideInferred = inferred != 0
		trades = append(trades, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return trades, nil
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
