package postgres

import (
	"context"
	"fmt"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/storage"
)

// ActedPoolStore implements storage.ActedPoolStore using PostgreSQL.
type ActedPoolStore struct {
	pool *Pool
}

// NewActedPoolStore creates a new ActedPoolStore.
func NewActedPoolStore(pool *Pool) *ActedPoolStore {
	return &ActedPoolStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ActedPoolStore = (*ActedPoolStore)(nil)

// Insert records a pool as acted upon. Returns ErrDuplicateKey if pool_address exists.
func (s *ActedPoolStore) Insert(ctx context.Context, p *domain.ActedPool) error {
	query := `
		INSERT INTO acted_pools (pool_address, target_mint, signature, acted_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.pool.Exec(ctx, query, p.PoolAddress, p.TargetMint, p.Signature, p.ActedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert acted pool: %w", err)
	}
	return nil
}

// ListSince retrieves pools acted upon at or after the given timestamp.
func (s *ActedPoolStore) ListSince(ctx context.Context, since int64) ([]*domain.ActedPool, error) {
	query := `
		SELECT pool_address, target_mint, signature, acted_at
		FROM acted_pools
		WHERE acted_at >= $1
		ORDER BY acted_at ASC, pool_address ASC
	`

	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("list acted pools: %w", err)
	}
	defer rows.Close()

	var pools []*domain.ActedPool
	for rows.Next() {
		var p domain.ActedPool
		if err := rows.Scan(&p.PoolAddress, &p.TargetMint, &p.Signature, &p.ActedAt); err != nil {
			return nil, fmt.Errorf("scan acted pool row: %w", err)
		}
		pools = append(pools, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate acted pool rows: %w", err)
	}

	return pools, nil
}
