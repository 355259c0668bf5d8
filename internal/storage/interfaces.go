package storage

import (
	"context"

	"solana-pool-sniper/internal/domain"
)

// SubmissionStore provides access to submissions storage.
type SubmissionStore interface {
	// Insert adds a new submission record. Returns ErrDuplicateKey if signature exists.
	Insert(ctx context.Context, r *domain.SubmissionRecord) error

	// UpdateStatus transitions a submission's status and attempt count.
	// Returns ErrNotFound if the signature does not exist.
	UpdateStatus(ctx context.Context, signature string, status domain.SubmissionStatus, attemptCount int, lastError string) error

	// GetBySignature retrieves a submission by signature. Returns ErrNotFound if not exists.
	GetBySignature(ctx context.Context, signature string) (*domain.SubmissionRecord, error)

	// GetByPool retrieves all submissions for a pool, ordered by submitted_at ASC.
	GetByPool(ctx context.Context, poolAddress string) ([]*domain.SubmissionRecord, error)

	// ListByStatus retrieves all submissions with the given status.
	ListByStatus(ctx context.Context, status domain.SubmissionStatus) ([]*domain.SubmissionRecord, error)
}

// ActedPoolStore provides access to acted_pools storage.
type ActedPoolStore interface {
	// Insert records a pool as acted upon. Returns ErrDuplicateKey if pool_address exists.
	Insert(ctx context.Context, p *domain.ActedPool) error

	// ListSince retrieves pools acted upon at or after the given Unix
	// millisecond timestamp, ordered by acted_at ASC.
	ListSince(ctx context.Context, since int64) ([]*domain.ActedPool, error)
}

// LiquidityHistoryStore provides access to liquidity_history storage.
type LiquidityHistoryStore interface {
	// InsertBulk adds multiple snapshots in one batch.
	InsertBulk(ctx context.Context, snapshots []*domain.LiquiditySnapshot) error

	// GetByPool retrieves all snapshots for a pool, ordered by timestamp ASC.
	GetByPool(ctx context.Context, poolAddress string) ([]*domain.LiquiditySnapshot, error)

	// GetByTimeRange retrieves snapshots for a pool within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, poolAddress string, start, end int64) ([]*domain.LiquiditySnapshot, error)
}
