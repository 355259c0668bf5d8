package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/storage"
)

// SubmissionStore implements storage.SubmissionStore using PostgreSQL.
type SubmissionStore struct {
	pool *Pool
}

// NewSubmissionStore creates a new SubmissionStore.
func NewSubmissionStore(pool *Pool) *SubmissionStore {
	return &SubmissionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SubmissionStore = (*SubmissionStore)(nil)

// Insert adds a new submission record. Returns ErrDuplicateKey if signature exists.
func (s *SubmissionStore) Insert(ctx context.Context, r *domain.SubmissionRecord) error {
	query := `
		INSERT INTO submissions (
			signature, pool_address, target_mint, quote_amount_in, min_amount_out,
			attempt_count, status, last_error, submitted_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.pool.Exec(ctx, query,
		r.Signature,
		r.PoolAddress,
		r.TargetMint,
		int64(r.QuoteAmountIn),
		int64(r.MinAmountOut),
		r.AttemptCount,
		string(r.Status),
		r.LastError,
		r.SubmittedAt,
		r.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// UpdateStatus transitions a submission's status and attempt count.
func (s *SubmissionStore) UpdateStatus(ctx context.Context, signature string, status domain.SubmissionStatus, attemptCount int, lastError string) error {
	query := `
		UPDATE submissions
		SET status = $2, attempt_count = $3, last_error = $4, updated_at = $5
		WHERE signature = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		signature, string(status), attemptCount, lastError, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("update submission status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetBySignature retrieves a submission by signature. Returns ErrNotFound if not exists.
func (s *SubmissionStore) GetBySignature(ctx context.Context, signature string) (*domain.SubmissionRecord, error) {
	query := `
		SELECT signature, pool_address, target_mint, quote_amount_in, min_amount_out,
		       attempt_count, status, last_error, submitted_at, updated_at
		FROM submissions
		WHERE signature = $1
	`

	row := s.pool.QueryRow(ctx, query, signature)
	r, err := scanSubmission(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get submission by signature: %w", err)
	}
	return r, nil
}

// GetByPool retrieves all submissions for a pool, ordered by submitted_at ASC.
func (s *SubmissionStore) GetByPool(ctx context.Context, poolAddress string) ([]*domain.SubmissionRecord, error) {
	query := `
		SELECT signature, pool_address, target_mint, quote_amount_in, min_amount_out,
		       attempt_count, status, last_error, submitted_at, updated_at
		FROM submissions
		WHERE pool_address = $1
		ORDER BY submitted_at ASC, signature ASC
	`

	rows, err := s.pool.Query(ctx, query, poolAddress)
	if err != nil {
		return nil, fmt.Errorf("get submissions by pool: %w", err)
	}
	defer rows.Close()

	return scanSubmissions(rows)
}

// ListByStatus retrieves all submissions with the given status.
func (s *SubmissionStore) ListByStatus(ctx context.Context, status domain.SubmissionStatus) ([]*domain.SubmissionRecord, error) {
	query := `
		SELECT signature, pool_address, target_mint, quote_amount_in, min_amount_out,
		       attempt_count, status, last_error, submitted_at, updated_at
		FROM submissions
		WHERE status = $1
		ORDER BY submitted_at ASC, signature ASC
	`

	rows, err := s.pool.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("list submissions by status: %w", err)
	}
	defer rows.Close()

	return scanSubmissions(rows)
}

// scanSubmission scans a single row into a SubmissionRecord.
func scanSubmission(row pgx.Row) (*domain.SubmissionRecord, error) {
	var r domain.SubmissionRecord
	var statusStr string
	var quoteIn, minOut int64

	err := row.Scan(
		&r.Signature,
		&r.PoolAddress,
		&r.TargetMint,
		&quoteIn,
		&minOut,
		&r.AttemptCount,
		&statusStr,
		&r.LastError,
		&r.SubmittedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.QuoteAmountIn = uint64(quoteIn)
	r.MinAmountOut = uint64(minOut)
	r.Status = domain.SubmissionStatus(statusStr)
	return &r, nil
}

// scanSubmissions scans multiple rows into a slice of SubmissionRecord.
func scanSubmissions(rows pgx.Rows) ([]*domain.SubmissionRecord, error) {
	var records []*domain.SubmissionRecord

	for rows.Next() {
		var r domain.SubmissionRecord
		var statusStr string
		var quoteIn, minOut int64

		err := rows.Scan(
			&r.Signature,
			&r.PoolAddress,
			&r.TargetMint,
			&quoteIn,
			&minOut,
			&r.AttemptCount,
			&statusStr,
			&r.LastError,
			&r.SubmittedAt,
			&r.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan submission row: %w", err)
		}

		r.QuoteAmountIn = uint64(quoteIn)
		r.MinAmountOut = uint64(minOut)
		r.Status = domain.SubmissionStatus(statusStr)
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submission rows: %w", err)
	}

	return records, nil
}
