package memory

import (
	"context"
	"sort"
	"sync"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/storage"
)

// ActedPoolStore is an in-memory implementation of storage.ActedPoolStore.
type ActedPoolStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ActedPool // keyed by pool_address
}

// NewActedPoolStore creates a new in-memory acted-pool store.
func NewActedPoolStore() *ActedPoolStore {
	return &ActedPoolStore{
		data: make(map[string]*domain.ActedPool),
	}
}

// Compile-time interface check.
var _ storage.ActedPoolStore = (*ActedPoolStore)(nil)

// Insert records a pool as acted upon. Returns ErrDuplicateKey if pool_address exists.
func (s *ActedPoolStore) Insert(_ context.Context, p *domain.ActedPool) error {
	if p == nil || p.PoolAddress == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.PoolAddress]; exists {
		return storage.ErrDuplicateKey
	}

	poolCopy := *p
	s.data[p.PoolAddress] = &poolCopy
	return nil
}

// ListSince retrieves pools acted upon at or after the given timestamp.
func (s *ActedPoolStore) ListSince(_ context.Context, since int64) ([]*domain.ActedPool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ActedPool
	for _, p := range s.data {
		if p.ActedAt >= since {
			poolCopy := *p
			result = append(result, &poolCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ActedAt < result[j].ActedAt
	})

	return result, nil
}
