package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/a2-stuff/pumpTUI/internal/domain"
	"github.com/a2-stuff/pumpTUI/internal/storage"
)

// CandleLog is an in-memory implementation of storage.CandleLog.
// Re-inserts of the same bucket replace the previous row, matching the
// ReplacingMergeTree semantics of the ClickHouse backend.
type CandleLog struct {
	mu     sync.RWMutex
	byMint map[string]map[int64]domain.Candle
}

// NewCandleLog creates a new in-memory candle log.
func NewCandleLog() *CandleLog {
	return &CandleLog{
		byMint: make(map[string]map[int64]domain.Candle),
	}
}

var _ storage.CandleLog = (*CandleLog)(nil)

// InsertBulk appends a batch of candle records.
func (s *CandleLog) InsertBulk(_ context.Context, records []*storage.CandleRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if r == nil || r.Mint == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		buckets, ok := s.byMint[r.Mint]
		if !ok {
			buckets = make(map[int64]domain.Candle)
			s.byMint[r.Mint] = buckets
		}
		buckets[r.Candle.BucketStart] = r.Candle
	}
	return nil
}

// GetByMint retrieves candles for a mint, ordered by bucket ASC.
func (s *CandleLog) GetByMint(_ context.Context, mint string) ([]domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(mint, func(domain.Candle) bool { return true }), nil
}

// GetByTimeRange retrieves candles for a mint within [start, end] (inclusive).
func (s *CandleLog) GetByTimeRange(_ context.Context, mint string, start, end int64) ([]domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(mint, func(c domain.Candle) bool {
		return c.BucketStart >= start && c.BucketStart <= end
	}), nil
}

// sorted copies matching candles in bucket order. Caller holds mu.
func (s *CandleLog) sorted(mint string, keep func(domain.Candle) bool) []domain.Candle {
	var out []domain.Candle
	for _, c := range s.byMint[mint] {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BucketStart < out[j].BucketStart })
	return out
}
