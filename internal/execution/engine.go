// Package execution signs, submits and confirms swap transactions.
// Each intent walks a per-intent state machine; intents for different
// pools run concurrently, bounded by a semaphore, and at most one
// submission is ever in flight per pool.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mr-tron/base58"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/observability"
	"solana-pool-sniper/internal/solana"
	"solana-pool-sniper/internal/storage"
	"solana-pool-sniper/internal/swap"
)

var (
	// ErrAlreadyInFlight means a submission for the pool is still
	// running; the new intent is dropped rather than queued.
	ErrAlreadyInFlight = errors.New("submission already in flight for pool")
	// ErrAttemptsExhausted means every submission attempt failed with a
	// transient error.
	ErrAttemptsExhausted = errors.New("submission attempts exhausted")
	// ErrRejected means the chain rejected the transaction; retrying
	// would fail identically.
	ErrRejected = errors.New("transaction rejected")
	// ErrExpired means the transaction could not be confirmed before
	// its blockhash expired, including rebuilds.
	ErrExpired = errors.New("transaction expired")
)

// errBlockhashDead marks expiry proven on chain: the block height has
// passed the transaction's lastValidBlockHeight, or the node no longer
// knows the blockhash. Only then is rebuilding safe; a transaction that
// merely timed out may still land, and a rebuilt duplicate would buy
// twice.
var errBlockhashDead = errors.New("blockhash past last valid block height")

// TransactionBuilder builds unsigned swap transactions for an intent.
// BuildSell unwinds a position through the same pool. Satisfied by
// *swap.Builder.
type TransactionBuilder interface {
	Build(ctx context.Context, intent *domain.BuyIntent) (*swap.UnsignedTransaction, error)
	BuildSell(ctx context.Context, intent *domain.BuyIntent, amountIn uint64) (*swap.UnsignedTransaction, error)
}

// Signer signs compiled transaction messages. Satisfied by *wallet.Wallet.
type Signer interface {
	Pubkey() string
	Sign(message []byte) []byte
}

// Config tunes the engine. Zero values get sane defaults.
type Config struct {
	// MaxSubmitAttempts bounds sendTransaction calls per intent,
	// counted across rebuilds.
	MaxSubmitAttempts int
	// MaxRebuilds bounds how many times an expired-blockhash
	// transaction is rebuilt and resigned.
	MaxRebuilds int
	// MaxConcurrent bounds intents executing at once.
	MaxConcurrent int
	// RetryDelay is the base backoff after a transient submit failure;
	// doubles per retry.
	RetryDelay time.Duration
	// ConfirmTimeout bounds how long one submission is polled before
	// it is considered expired.
	ConfirmTimeout time.Duration
	// ConfirmPollInterval is the status poll period.
	ConfirmPollInterval time.Duration
	// SellDelay, when positive, holds a confirmed buy for this long and
	// then sells the full token balance back into the quote mint. Zero
	// keeps the position.
	SellDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxSubmitAttempts <= 0 {
		c.MaxSubmitAttempts = 4
	}
	if c.MaxRebuilds <= 0 {
		c.MaxRebuilds = 2
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 8
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 200 * time.Millisecond
	}
	if c.ConfirmTimeout <= 0 {
		c.ConfirmTimeout = 45 * time.Second
	}
	if c.ConfirmPollInterval <= 0 {
		c.ConfirmPollInterval = 800 * time.Millisecond
	}
	return c
}

// Engine executes buy intents.
type Engine struct {
	rpc         solana.RPCClient
	builder     TransactionBuilder
	signer      Signer
	submissions storage.SubmissionStore
	acted       storage.ActedPoolStore
	cfg         Config
	logger      *log.Logger

	sem chan struct{}

	mu       sync.Mutex
	inflight map[string]struct{} // pool addresses being executed
}

// NewEngine creates an execution engine.
func NewEngine(rpc solana.RPCClient, builder TransactionBuilder, signer Signer,
	submissions storage.SubmissionStore, acted storage.ActedPoolStore,
	cfg Config, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	cfg = cfg.withDefaults()
	return &Engine{
		rpc:         rpc,
		builder:     builder,
		signer:      signer,
		submissions: submissions,
		acted:       acted,
		cfg:         cfg,
		logger:      logger,
		sem:         make(chan struct{}, cfg.MaxConcurrent),
		inflight:    make(map[string]struct{}),
	}
}

// Execute runs one intent to a terminal status. The returned record is
// the last submission; a non-nil error classifies why a terminal
// status other than Confirmed was reached.
func (e *Engine) Execute(ctx context.Context, intent *domain.BuyIntent) (*domain.SubmissionRecord, error) {
	if !e.acquirePool(intent.PoolAddress) {
		return nil, ErrAlreadyInFlight
	}
	defer e.releasePool(intent.PoolAddress)

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-e.sem }()

	observability.DefaultMetrics.InFlightIntents.Inc()
	defer observability.DefaultMetrics.InFlightIntents.Dec()

	return e.run(ctx, intent)
}

// run walks Building -> Signed -> Submitted -> terminal. Signing
// happens exactly once per build; a stale blockhash forces a rebuild,
// never a resign of the stale payload.
func (e *Engine) run(ctx context.Context, intent *domain.BuyIntent) (*domain.SubmissionRecord, error) {
	attempts := 0
	var record *domain.SubmissionRecord

	for rebuild := 0; rebuild <= e.cfg.MaxRebuilds; rebuild++ {
		tx, err := e.builder.Build(ctx, intent)
		if err != nil {
			return record, fmt.Errorf("build transaction: %w", err)
		}
		sigBytes := e.signer.Sign(tx.Message)
		signature := base58.Encode(sigBytes)
		signedTx := swap.AssembleTransaction(sigBytes, tx.Message)

		record = e.newRecord(ctx, intent, tx, signature, attempts)

		status, err := e.submitAndConfirm(ctx, intent, tx, signedTx, record, &attempts)
		switch status {
		case domain.SubmissionConfirmed:
			e.finish(ctx, record, domain.SubmissionConfirmed, attempts, "")
			e.recordActed(ctx, intent, record.Signature)
			if e.cfg.SellDelay > 0 {
				e.sellBack(ctx, intent)
			}
			return record, nil
		case domain.SubmissionFailed:
			e.finish(ctx, record, domain.SubmissionFailed, attempts, errText(err))
			return record, err
		case domain.SubmissionExpired:
			e.finish(ctx, record, domain.SubmissionExpired, attempts, errText(err))
			if !errors.Is(err, errBlockhashDead) {
				// The signed transaction may still land. Submitting a
				// rebuilt duplicate here would risk buying twice.
				return record, ErrExpired
			}
			if attempts >= e.cfg.MaxSubmitAttempts {
				return record, ErrAttemptsExhausted
			}
			e.logger.Printf("[execution] pool %s: blockhash expired, rebuilding (%d/%d)",
				intent.PoolAddress, rebuild+1, e.cfg.MaxRebuilds)
		default:
			return record, err
		}
	}

	return record, ErrExpired
}

// Sell sells the wallet's entire balance of the intent's target mint
// back into the quote mint through the intent's pool. A nil record with
// a nil error means there was nothing to sell.
func (e *Engine) Sell(ctx context.Context, intent *domain.BuyIntent) (*domain.SubmissionRecord, error) {
	if !e.acquirePool(intent.PoolAddress) {
		return nil, ErrAlreadyInFlight
	}
	defer e.releasePool(intent.PoolAddress)

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-e.sem }()

	return e.sell(ctx, intent)
}

// sellBack unwinds a confirmed buy after the hold window. Failures are
// logged, not returned; the buy already reached its terminal status and
// the position simply stays open.
func (e *Engine) sellBack(ctx context.Context, intent *domain.BuyIntent) {
	if err := sleepCtx(ctx, e.cfg.SellDelay); err != nil {
		return
	}
	if _, err := e.sell(ctx, intent); err != nil {
		e.logger.Printf("[execution] pool %s: sell back: %v", intent.PoolAddress, err)
	}
}

// sell walks the same build/sign/submit machinery as a buy, selling the
// full token balance. The blockhash-dead rebuild rule applies here too.
func (e *Engine) sell(ctx context.Context, intent *domain.BuyIntent) (*domain.SubmissionRecord, error) {
	ata, err := swap.AssociatedTokenAddress(e.signer.Pubkey(), intent.TargetMint)
	if err != nil {
		return nil, fmt.Errorf("derive token account: %w", err)
	}

	attempts := 0
	var record *domain.SubmissionRecord

	for rebuild := 0; rebuild <= e.cfg.MaxRebuilds; rebuild++ {
		bal, err := e.rpc.GetTokenAccountBalance(ctx, ata)
		if err != nil {
			return record, fmt.Errorf("token balance: %w", err)
		}
		if bal.Amount == 0 {
			return record, nil
		}

		tx, err := e.builder.BuildSell(ctx, intent, bal.Amount)
		if err != nil {
			return record, fmt.Errorf("build sell transaction: %w", err)
		}
		sigBytes := e.signer.Sign(tx.Message)
		signature := base58.Encode(sigBytes)
		signedTx := swap.AssembleTransaction(sigBytes, tx.Message)

		record = e.newRecord(ctx, intent, tx, signature, attempts)

		status, err := e.submitAndConfirm(ctx, intent, tx, signedTx, record, &attempts)
		switch status {
		case domain.SubmissionConfirmed:
			e.finish(ctx, record, domain.SubmissionConfirmed, attempts, "")
			e.logger.Printf("[execution] pool %s: sold %d of %s (sig %s)",
				intent.PoolAddress, bal.Amount, intent.TargetMint, signature)
			return record, nil
		case domain.SubmissionExpired:
			e.finish(ctx, record, domain.SubmissionExpired, attempts, errText(err))
			if !errors.Is(err, errBlockhashDead) {
				return record, ErrExpired
			}
			if attempts >= e.cfg.MaxSubmitAttempts {
				return record, ErrAttemptsExhausted
			}
		default:
			e.finish(ctx, record, status, attempts, errText(err))
			return record, err
		}
	}

	return record, ErrExpired
}

// submitAndConfirm drives one signed transaction: bounded resubmission
// with exponential backoff for transient errors, then confirmation
// polling. Returns the terminal status for this signature.
func (e *Engine) submitAndConfirm(ctx context.Context, intent *domain.BuyIntent,
	tx *swap.UnsignedTransaction, signedTx []byte,
	record *domain.SubmissionRecord, attempts *int) (domain.SubmissionStatus, error) {

	for {
		if *attempts >= e.cfg.MaxSubmitAttempts {
			return domain.SubmissionFailed, ErrAttemptsExhausted
		}
		*attempts++
		observability.DefaultMetrics.Submissions.Inc()
		if *attempts > 1 {
			observability.DefaultMetrics.SubmissionRetries.Inc()
		}

		_, err := e.rpc.SendTransaction(ctx, signedTx)
		if err == nil {
			break
		}
		if solana.IsBlockhashNotFound(err) {
			return domain.SubmissionExpired, fmt.Errorf("%w: %v", errBlockhashDead, err)
		}
		if solana.IsRejected(err) {
			e.logger.Printf("[execution] pool %s: rejected on submit: %v", intent.PoolAddress, err)
			return domain.SubmissionFailed, fmt.Errorf("%w: %v", ErrRejected, err)
		}
		if *attempts >= e.cfg.MaxSubmitAttempts {
			return domain.SubmissionFailed, fmt.Errorf("%w: %v", ErrAttemptsExhausted, err)
		}

		delay := e.cfg.RetryDelay << (*attempts - 1)
		e.logger.Printf("[execution] pool %s: transient submit error (attempt %d): %v, retrying in %s",
			intent.PoolAddress, *attempts, err, delay)
		if err := sleepCtx(ctx, delay); err != nil {
			return domain.SubmissionFailed, err
		}
	}

	e.updateRecord(ctx, record, domain.SubmissionPending, *attempts, "")
	return e.confirm(ctx, record.Signature, tx.LastValidBlockHeight)
}

// confirm polls signature status until confirmed, failed on chain, or
// expired. Expiry is judged in block-height units: slots run millions
// ahead of block height on mainnet, so comparing the slot against
// lastValidBlockHeight would declare every fresh transaction expired.
// Before any expiry verdict the status is re-checked once more, since
// transactions may confirm late.
func (e *Engine) confirm(ctx context.Context, signature string, lastValidBlockHeight uint64) (domain.SubmissionStatus, error) {
	deadline := time.Now().Add(e.cfg.ConfirmTimeout)

	for {
		status, err := e.checkStatus(ctx, signature)
		if err == nil && status != "" {
			return status, statusErr(status, signature)
		}
		if err != nil {
			e.logger.Printf("[execution] status poll %s: %v", signature, err)
		}

		height, err := e.rpc.GetBlockHeight(ctx)
		if err == nil && height > lastValidBlockHeight {
			// The transaction may have landed in one of the last valid
			// blocks; re-check before declaring it dead.
			status, err := e.checkStatus(ctx, signature)
			if err == nil && status != "" {
				return status, statusErr(status, signature)
			}
			return domain.SubmissionExpired, fmt.Errorf("%w: %w, block height %d past %d",
				ErrExpired, errBlockhashDead, height, lastValidBlockHeight)
		}

		if time.Now().After(deadline) {
			// Final re-check before declaring expiry. The blockhash is
			// still valid here, so the caller must not rebuild.
			status, err := e.checkStatus(ctx, signature)
			if err == nil && status != "" {
				return status, statusErr(status, signature)
			}
			return domain.SubmissionExpired, fmt.Errorf("%w: confirmation timeout, blockhash still valid", ErrExpired)
		}

		if err := sleepCtx(ctx, e.cfg.ConfirmPollInterval); err != nil {
			return domain.SubmissionExpired, err
		}
	}
}

// checkStatus returns the terminal status for a signature, or "" while
// still pending.
func (e *Engine) checkStatus(ctx context.Context, signature string) (domain.SubmissionStatus, error) {
	statuses, err := e.rpc.GetSignatureStatuses(ctx, []string{signature})
	if err != nil {
		return "", err
	}
	if len(statuses) == 0 || statuses[0] == nil {
		return "", nil
	}
	if statuses[0].Failed() {
		return domain.SubmissionFailed, nil
	}
	if statuses[0].Confirmed() {
		return domain.SubmissionConfirmed, nil
	}
	return "", nil
}

func statusErr(status domain.SubmissionStatus, signature string) error {
	if status == domain.SubmissionFailed {
		return fmt.Errorf("%w: transaction %s failed on chain", ErrRejected, signature)
	}
	return nil
}

func (e *Engine) newRecord(ctx context.Context, intent *domain.BuyIntent,
	tx *swap.UnsignedTransaction, signature string, attempts int) *domain.SubmissionRecord {
	now := time.Now().UnixMilli()
	record := &domain.SubmissionRecord{
		Signature:     signature,
		PoolAddress:   intent.PoolAddress,
		TargetMint:    intent.TargetMint,
		QuoteAmountIn: intent.QuoteAmountIn,
		MinAmountOut:  tx.MinAmountOut,
		AttemptCount:  attempts,
		Status:        domain.SubmissionPending,
		SubmittedAt:   now,
		UpdatedAt:     now,
	}
	if err := e.submissions.Insert(ctx, record); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		e.logger.Printf("[execution] insert submission %s: %v", signature, err)
	}
	return record
}

func (e *Engine) updateRecord(ctx context.Context, record *domain.SubmissionRecord,
	status domain.SubmissionStatus, attempts int, lastError string) {
	record.Status = status
	record.AttemptCount = attempts
	record.LastError = lastError
	if err := e.submissions.UpdateStatus(ctx, record.Signature, status, attempts, lastError); err != nil {
		e.logger.Printf("[execution] update submission %s: %v", record.Signature, err)
	}
}

func (e *Engine) finish(ctx context.Context, record *domain.SubmissionRecord,
	status domain.SubmissionStatus, attempts int, lastError string) {
	e.updateRecord(ctx, record, status, attempts, lastError)
	e.logger.Printf("[execution] pool %s: %s after %d attempts (sig %s)",
		record.PoolAddress, status, attempts, record.Signature)
}

func (e *Engine) recordActed(ctx context.Context, intent *domain.BuyIntent, signature string) {
	err := e.acted.Insert(ctx, &domain.ActedPool{
		PoolAddress: intent.PoolAddress,
		TargetMint:  intent.TargetMint,
		Signature:   signature,
		ActedAt:     time.Now().UnixMilli(),
	})
	if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		e.logger.Printf("[execution] record acted pool %s: %v", intent.PoolAddress, err)
	}
}

func (e *Engine) acquirePool(pool string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inflight[pool]; busy {
		return false
	}
	e.inflight[pool] = struct{}{}
	return true
}

func (e *Engine) releasePool(pool string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inflight, pool)
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
