package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/a2-stuff/pumpTUI/internal/domain"
	"github.com/a2-stuff/pumpTUI/internal/storage"
)

// TokenArchive is an in-memory implementation of storage.TokenArchive.
type TokenArchive struct {
	mu     sync.RWMutex
	byMint map[string]*domain.TokenState
}

// NewTokenArchive creates a new in-memory token archive.
func NewTokenArchive() *TokenArchive {
	return &TokenArchive{
		byMint: make(map[string]*domain.TokenState),
	}
}

var _ storage.TokenArchive = (*TokenArchive)(nil)

// Upsert inserts or refreshes the token's archived row.
func (s *TokenArchive) Upsert(_ context.Context, t *domain.TokenState) error {
	if t == nil || t.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byMint[t.Mint] = t.Clone()
	return nil
}

// GetByMint retrieves a token by mint. Returns ErrNotFound if not exists.
func (s *TokenArchive) GetByMint(_ context.Context, mint string) (*domain.TokenState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.byMint[mint]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return t.Clone(), nil
}

// GetRecent retrieves the most recently updated tokens, newest first.
func (s *TokenArchive) GetRecent(_ context.Context, limit int) ([]*domain.TokenState, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	all := make([]*domain.TokenState, 0, len(s.byMint))
	for _, t := range s.byMint {
		all = append(all, t.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].LastUpdate != all[j].LastUpdate {
			return all[i].LastUpdate > all[j].LastUpdate
		}
		return all[i].Mint < all[j].Mint
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// GetCreatorStats aggregates launch history for a creator wallet.
func (s *TokenArchive) GetCreatorStats(_ context.Context, creator string) (*storage.CreatorStats, error) {
	if creator == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &storage.CreatorStats{Creator: creator}
	for _, t := range s.byMint {
		if t.Creator != creator {
			continue
		}
		stats.TokensCreated++
		if t.PoolKind == domain.PoolMigratedAMM {
			stats.TokensMigrated++
		}
		if t.DevStatus == domain.DevSold {
			stats.TokensDevSold++
		}
	}
	if stats.TokensCreated == 0 {
		return nil, storage.ErrNotFound
	}
	return stats, nil
}
