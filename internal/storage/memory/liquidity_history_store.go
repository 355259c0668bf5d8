package memory

import (
	"context"
	"sort"
	"sync"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/storage"
)

// LiquidityHistoryStore is an in-memory implementation of
// storage.LiquidityHistoryStore.
type LiquidityHistoryStore struct {
	mu   sync.RWMutex
	data []*domain.LiquiditySnapshot
}

// NewLiquidityHistoryStore creates a new in-memory liquidity history store.
func NewLiquidityHistoryStore() *LiquidityHistoryStore {
	return &LiquidityHistoryStore{}
}

// Compile-time interface check.
var _ storage.LiquidityHistoryStore = (*LiquidityHistoryStore)(nil)

// InsertBulk adds multiple snapshots.
func (s *LiquidityHistoryStore) InsertBulk(_ context.Context, snapshots []*domain.LiquiditySnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	for _, snap := range snapshots {
		if snap == nil || snap.PoolAddress == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, snap := range snapshots {
		snapCopy := *snap
		s.data = append(s.data, &snapCopy)
	}
	return nil
}

// GetByPool retrieves all snapshots for a pool, ordered by timestamp ASC.
func (s *LiquidityHistoryStore) GetByPool(_ context.Context, poolAddress string) ([]*domain.LiquiditySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.LiquiditySnapshot
	for _, snap := range s.data {
		if snap.PoolAddress == poolAddress {
			snapCopy := *snap
			result = append(result, &snapCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}

// GetByTimeRange retrieves snapshots for a pool within [start, end] (inclusive).
func (s *LiquidityHistoryStore) GetByTimeRange(_ context.Context, poolAddress string, start, end int64) ([]*domain.LiquiditySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.LiquiditySnapshot
	for _, snap := range s.data {
		if snap.PoolAddress == poolAddress && snap.TimestampMs >= start && snap.TimestampMs <= end {
			snapCopy := *snap
			result = append(result, &snapCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}
