package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/a2-stuff/pumpTUI/internal/domain"
	"github.com/a2-stuff/pumpTUI/internal/storage"
)

// TradeLog is an in-memory implementation of storage.TradeLog.
type TradeLog struct {
	mu     sync.RWMutex
	byMint map[string][]*domain.Trade
}

// NewTradeLog creates a new in-memory trade log.
func NewTradeLog() *TradeLog {
	return &TradeLog{
		byMint: make(map[string][]*domain.Trade),
	}
}

var _ storage.TradeLog = (*TradeLog)(nil)

// InsertBulk appends a batch of trades.
func (s *TradeLog) InsertBulk(_ context.Context, trades []*domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	for _, t := range trades {
		if t == nil || t.Mint == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range trades {
		cp := *t
		s.byMint[t.Mint] = append(s.byMint[t.Mint], &cp)
	}
	return nil
}

// GetByMint retrieves trades for a mint, ordered by timestamp ASC.
func (s *TradeLog) GetByMint(_ context.Context, mint string) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(mint, func(*domain.Trade) bool { return true }), nil
}

// GetByTimeRange retrieves trades for a mint within [start, end] (inclusive).
func (s *TradeLog) GetByTimeRange(_ context.Context, mint string, start, end int64) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(mint, func(t *domain.Trade) bool {
		return t.Timestamp >= start && t.Timestamp <= end
	}), nil
}

// sorted copies matching trades in timestamp order. Caller holds mu.
func (s *TradeLog) sorted(mint string, keep func(*domain.Trade) bool) []*domain.Trade {
	var out []*domain.Trade
	for _, t := range s.byMint[mint] {
		if keep(t) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}
