package domain

// SubmissionStatus is the lifecycle state of a submitted transaction.
type SubmissionStatus string

const (
	SubmissionPending   SubmissionStatus = "PENDING"
	SubmissionConfirmed SubmissionStatus = "CONFIRMED"
	SubmissionFailed    SubmissionStatus = "FAILED"
	SubmissionExpired   SubmissionStatus = "EXPIRED"
)

// Terminal reports whether no further transitions are possible.
func (s SubmissionStatus) Terminal() bool {
	switch s {
	case SubmissionConfirmed, SubmissionFailed, SubmissionExpired:
		return true
	}
	return false
}

// SubmissionRecord tracks one buy intent through submission and
// confirmation. Corresponds to the submissions table in PostgreSQL.
// The signature changes when an expired-blockhash transaction is rebuilt
// and resigned; the pool address ties retries back to the intent.
type SubmissionRecord struct {
	Signature     string // transaction signature (base58), PRIMARY KEY
	PoolAddress   string // intent reference
	TargetMint    string
	QuoteAmountIn uint64
	MinAmountOut  uint64
	AttemptCount  int // total sendTransaction attempts for the intent
	Status        SubmissionStatus
	LastError     string // last error text, empty when none
	SubmittedAt   int64  // Unix timestamp in milliseconds of first attempt
	UpdatedAt     int64  // Unix timestamp in milliseconds of last transition
}
