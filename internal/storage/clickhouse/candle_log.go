package clickhouse

import (
	"context"
	"fmt"

	"github.com/a2-stuff/pumpTUI/internal/domain"
	"github.com/a2-stuff/pumpTUI/internal/storage"
)

// CandleLog implements storage.CandleLog using ClickHouse. The table
// is ReplacingMergeTree keyed on (mint, bucket_start): repaints of a
// live bucket collapse to the latest version at merge time.
type CandleLog struct {
	conn *Conn
}

// NewCandleLog creates a new CandleLog.
func NewCandleLog(conn *Conn) *CandleLog {
	return &CandleLog{conn: conn}
}

// Compile-time interface check.
var _ storage.CandleLog = (*CandleLog)(nil)

// InsertBulk appends a batch of candle records.
func (s *CandleLog) InsertBulk(ctx context.Context, records []*storage.CandleRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if r == nil || r.Mint == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO candles (
			mint, bucket_start, open, high, low, close, buys, sells
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		c := r.Candle
		err = batch.Append(
			r.Mint, uint64(c.BucketStart),
			c.Open, c.High, c.Low, c.Close,
			uint32(c.Buys), uint32(c.Sells),
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

// GetByMint retrieves candles for a mint, ordered by bucket ASC.
func (s *CandleLog) GetByMint(ctx context.Context, mint string) ([]domain.Candle, error) {
	query := `
		SELECT bucket_start, open, high, low, close, buys, sells
		FROM candles FINAL
		WHERE mint = ?
		ORDER BY bucket_start ASC
	`

	rows, err := s.conn.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("query by mint: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// GetByTimeRange retrieves candles for a mint within [start, end] (inclusive).
func (s *CandleLog) GetByTimeRange(ctx context.Context, mint string, start, end int64) ([]domain.Candle, error) {
	query := `
		SELECT bucket_start, open, high, low, close, buys, sells
		FROM candles FINAL
		WHERE mint = ? AND bucket_start >= ? AND bucket_start <= ?
		ORDER BY bucket_start ASC
	`

	rows, err := s.conn.Query(ctx, query, mint, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// scanCandles scans multiple rows.
func scanCandles(rows chRows) ([]domain.Candle, error) {
	var candles []domain.Candle

	for rows.Next() {
		var c domain.Candle
		var bucketStart uint64
		var buys, sells uint32

		err := rows.Scan(
			&bucketStart, &c.Open, &c.High, &c.Low, &c.Close, &buys, &sells,
		)
		if err != nil {
			return nil, fmt.Errorf("scan candle row: %w", err)
		}

		c.BucketStart = int64(bucketStart)
		c.Buys = int(buys)
		c.Sells = int(sells)
		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candle rows: %w", err)
	}

	return candles, nil
}
