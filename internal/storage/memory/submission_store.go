// Package memory provides in-memory storage implementations, used when
// the service runs without a database and as fakes in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/storage"
)

// SubmissionStore is an in-memory implementation of storage.SubmissionStore.
type SubmissionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SubmissionRecord // keyed by signature
}

// NewSubmissionStore creates a new in-memory submission store.
func NewSubmissionStore() *SubmissionStore {
	return &SubmissionStore{
		data: make(map[string]*domain.SubmissionRecord),
	}
}

// Compile-time interface check.
var _ storage.SubmissionStore = (*SubmissionStore)(nil)

// Insert adds a new submission record. Returns ErrDuplicateKey if signature exists.
func (s *SubmissionStore) Insert(_ context.Context, r *domain.SubmissionRecord) error {
	if r == nil || r.Signature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.Signature]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	recordCopy := *r
	s.data[r.Signature] = &recordCopy
	return nil
}

// UpdateStatus transitions a submission's status and attempt count.
func (s *SubmissionStore) UpdateStatus(_ context.Context, signature string, status domain.SubmissionStatus, attemptCount int, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, exists := s.data[signature]
	if !exists {
		return storage.ErrNotFound
	}

	r.Status = status
	r.AttemptCount = attemptCount
	r.LastError = lastError
	r.UpdatedAt = time.Now().UnixMilli()
	return nil
}

// GetBySignature retrieves a submission by signature. Returns ErrNotFound if not exists.
func (s *SubmissionStore) GetBySignature(_ context.Context, signature string) (*domain.SubmissionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[signature]
	if !exists {
		return nil, storage.ErrNotFound
	}

	recordCopy := *r
	return &recordCopy, nil
}

// GetByPool retrieves all submissions for a pool, ordered by submitted_at ASC.
func (s *SubmissionStore) GetByPool(_ context.Context, poolAddress string) ([]*domain.SubmissionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SubmissionRecord
	for _, r := range s.data {
		if r.PoolAddress == poolAddress {
			recordCopy := *r
			result = append(result, &recordCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].SubmittedAt < result[j].SubmittedAt
	})

	return result, nil
}

// ListByStatus retrieves all submissions with the given status.
func (s *SubmissionStore) ListByStatus(_ context.Context, status domain.SubmissionStatus) ([]*domain.SubmissionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SubmissionRecord
	for _, r := range s.data {
		if r.Status == status {
			recordCopy := *r
			result = append(result, &recordCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].SubmittedAt < result[j].SubmittedAt
	})

	return result, nil
}
