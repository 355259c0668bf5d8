package execution

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mr-tron/base58"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/solana"
	"solana-pool-sniper/internal/solana/stub"
	"solana-pool-sniper/internal/storage/memory"
	"solana-pool-sniper/internal/swap"
	"solana-pool-sniper/internal/wallet"
)

// stubBuilder returns canned transactions, a fresh message per build so
// rebuilds produce distinct signatures.
type stubBuilder struct {
	mu         sync.Mutex
	calls      int
	sellCalls  int
	sellAmount uint64
	err        error
	gate       chan struct{} // when set, Build blocks until closed
}

func (b *stubBuilder) Build(_ context.Context, _ *domain.BuyIntent) (*swap.UnsignedTransaction, error) {
	b.mu.Lock()
	b.calls++
	n := b.calls
	gate := b.gate
	b.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if b.err != nil {
		return nil, b.err
	}
	return &swap.UnsignedTransaction{
		Message:              []byte(fmt.Sprintf("message-%d", n)),
		Blockhash:            fmt.Sprintf("blockhash-%d", n),
		LastValidBlockHeight: 1_000_000,
		ExpectedOut:          1_000_000,
		MinAmountOut:         950_000,
	}, nil
}

func (b *stubBuilder) BuildSell(_ context.Context, _ *domain.BuyIntent, amountIn uint64) (*swap.UnsignedTransaction, error) {
	b.mu.Lock()
	b.sellCalls++
	n := b.sellCalls
	b.sellAmount = amountIn
	b.mu.Unlock()

	if b.err != nil {
		return nil, b.err
	}
	return &swap.UnsignedTransaction{
		Message:              []byte(fmt.Sprintf("sell-message-%d", n)),
		Blockhash:            fmt.Sprintf("sell-blockhash-%d", n),
		LastValidBlockHeight: 1_000_000,
	}, nil
}

func (b *stubBuilder) buildCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func (b *stubBuilder) sellBuildCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sellCalls
}

func testIntent(pool string) *domain.BuyIntent {
	return &domain.BuyIntent{
		PoolAddress:    pool,
		TargetMint:     "Mint1",
		QuoteMint:      "So11111111111111111111111111111111111111112",
		MarketID:       "Market1",
		QuoteAmountIn:  100_000_000,
		MaxSlippageBps: 500,
	}
}

type testEnv struct {
	rpc         *stub.RPCClient
	builder     *stubBuilder
	wallet      *wallet.Wallet
	submissions *memory.SubmissionStore
	acted       *memory.ActedPoolStore
	engine      *Engine
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	w, err := wallet.FromBase58(base58.Encode(priv))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Millisecond
	}
	if cfg.ConfirmPollInterval == 0 {
		cfg.ConfirmPollInterval = time.Millisecond
	}
	if cfg.ConfirmTimeout == 0 {
		cfg.ConfirmTimeout = time.Second
	}

	env := &testEnv{
		rpc:         stub.NewRPCClient(),
		builder:     &stubBuilder{},
		wallet:      w,
		submissions: memory.NewSubmissionStore(),
		acted:       memory.NewActedPoolStore(),
	}
	env.engine = NewEngine(env.rpc, env.builder, w, env.submissions, env.acted, cfg, nil)
	return env
}

// signatureFor computes the signature the engine will derive for the
// nth build of the stub builder.
func (env *testEnv) signatureFor(n int) string {
	msg := []byte(fmt.Sprintf("message-%d", n))
	return base58.Encode(env.wallet.Sign(msg))
}

// sellSignatureFor is signatureFor for the nth sell build.
func (env *testEnv) sellSignatureFor(n int) string {
	msg := []byte(fmt.Sprintf("sell-message-%d", n))
	return base58.Encode(env.wallet.Sign(msg))
}

func confirmed() *solana.SignatureStatus {
	return &solana.SignatureStatus{ConfirmationStatus: "confirmed"}
}

func TestExecuteTransientRetriesThenConfirms(t *testing.T) {
	env := newTestEnv(t, Config{MaxSubmitAttempts: 4})
	env.rpc.SendErrs = []error{
		errors.New("connection reset"),
		errors.New("timeout"),
		errors.New("connection reset"),
	}
	env.rpc.SetStatus(env.signatureFor(1), confirmed())

	record, err := env.engine.Execute(context.Background(), testIntent("P1"))
	if err != nil {
		t.Fatal(err)
	}
	if record.Status != domain.SubmissionConfirmed {
		t.Errorf("status = %s, want CONFIRMED", record.Status)
	}
	if record.AttemptCount != 4 {
		t.Errorf("attempts = %d, want 4", record.AttemptCount)
	}
	if env.rpc.SendCalls != 4 {
		t.Errorf("send calls = %d, want 4", env.rpc.SendCalls)
	}

	// Confirmation recorded the pool as acted upon.
	acted, _ := env.acted.ListSince(context.Background(), 0)
	if len(acted) != 1 || acted[0].PoolAddress != "P1" {
		t.Errorf("acted pools = %+v", acted)
	}

	stored, err := env.submissions.GetBySignature(context.Background(), record.Signature)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != domain.SubmissionConfirmed || stored.AttemptCount != 4 {
		t.Errorf("stored record = %+v", stored)
	}
}

func TestExecuteRejectedIsFatal(t *testing.T) {
	env := newTestEnv(t, Config{MaxSubmitAttempts: 4})
	env.rpc.SendErrs = []error{
		&solana.RPCError{Code: -32002, Message: "Transaction simulation failed: custom program error: 0x1e"},
	}

	record, err := env.engine.Execute(context.Background(), testIntent("P1"))
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("err = %v, want ErrRejected", err)
	}
	if record.Status != domain.SubmissionFailed {
		t.Errorf("status = %s, want FAILED", record.Status)
	}
	if env.rpc.SendCalls != 1 {
		t.Errorf("send calls = %d, want 1 (no retry after rejection)", env.rpc.SendCalls)
	}
	if acted, _ := env.acted.ListSince(context.Background(), 0); len(acted) != 0 {
		t.Errorf("rejected intent recorded as acted: %+v", acted)
	}
}

func TestExecuteAttemptsExhausted(t *testing.T) {
	env := newTestEnv(t, Config{MaxSubmitAttempts: 3})
	env.rpc.SendErrs = []error{
		errors.New("transient 1"),
		errors.New("transient 2"),
		errors.New("transient 3"),
	}

	record, err := env.engine.Execute(context.Background(), testIntent("P1"))
	if !errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("err = %v, want ErrAttemptsExhausted", err)
	}
	if record.Status != domain.SubmissionFailed {
		t.Errorf("status = %s, want FAILED", record.Status)
	}
	if env.rpc.SendCalls != 3 {
		t.Errorf("send calls = %d, want 3", env.rpc.SendCalls)
	}
}

// A stale blockhash forces a rebuild with a new signature; the stale
// payload must never be resubmitted.
func TestExecuteStaleBlockhashRebuilds(t *testing.T) {
	env := newTestEnv(t, Config{MaxSubmitAttempts: 4, MaxRebuilds: 2})

	var sentPayloads [][]byte
	env.rpc.SendFunc = func(attempt int, signedTx []byte) (string, error) {
		sentPayloads = append(sentPayloads, append([]byte(nil), signedTx...))
		if attempt == 1 {
			return "", &solana.RPCError{Code: -32002, Message: "Blockhash not found"}
		}
		return "sig", nil
	}
	env.rpc.SetStatus(env.signatureFor(2), confirmed())

	record, err := env.engine.Execute(context.Background(), testIntent("P1"))
	if err != nil {
		t.Fatal(err)
	}
	if record.Status != domain.SubmissionConfirmed {
		t.Errorf("status = %s, want CONFIRMED", record.Status)
	}
	if env.builder.buildCalls() != 2 {
		t.Errorf("builds = %d, want 2 (rebuild after expiry)", env.builder.buildCalls())
	}
	if len(sentPayloads) != 2 {
		t.Fatalf("sends = %d, want 2", len(sentPayloads))
	}
	if string(sentPayloads[0]) == string(sentPayloads[1]) {
		t.Error("stale payload was resubmitted unchanged")
	}
	if record.Signature != env.signatureFor(2) {
		t.Error("final record does not carry the rebuilt signature")
	}

	// The first submission is archived as expired.
	first, err := env.submissions.GetBySignature(context.Background(), env.signatureFor(1))
	if err != nil {
		t.Fatal(err)
	}
	if first.Status != domain.SubmissionExpired {
		t.Errorf("first submission status = %s, want EXPIRED", first.Status)
	}
}

func TestExecuteExpiredAfterMaxRebuilds(t *testing.T) {
	env := newTestEnv(t, Config{MaxSubmitAttempts: 10, MaxRebuilds: 2})
	// Sends succeed but the chain has moved past every blockhash the
	// builder hands out.
	env.rpc.SetBlockHeight(2_000_000)

	record, err := env.engine.Execute(context.Background(), testIntent("P1"))
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("err = %v, want ErrExpired", err)
	}
	if record.Status != domain.SubmissionExpired {
		t.Errorf("status = %s, want EXPIRED", record.Status)
	}
	if env.builder.buildCalls() != 3 {
		t.Errorf("builds = %d, want 3 (initial + 2 rebuilds)", env.builder.buildCalls())
	}
}

// Mainnet slots run millions ahead of block height. A fresh transaction
// polled while the slot number dwarfs its lastValidBlockHeight must not
// be declared expired, or every buy would be rebuilt and submitted twice.
func TestExecuteSlotAheadOfBlockHeightIsNotExpiry(t *testing.T) {
	env := newTestEnv(t, Config{MaxSubmitAttempts: 4})
	env.rpc.SetSlot(250_000_000)
	env.rpc.SetBlockHeight(900_000) // below the builder's 1,000,000 bound
	late := &lateConfirmRPC{RPCClient: env.rpc, confirmAfter: 3, signature: env.signatureFor(1)}
	env.engine = NewEngine(late, env.builder, env.wallet, env.submissions, env.acted, Config{
		MaxSubmitAttempts:   4,
		RetryDelay:          time.Millisecond,
		ConfirmTimeout:      time.Second,
		ConfirmPollInterval: time.Millisecond,
	}, nil)

	record, err := env.engine.Execute(context.Background(), testIntent("P1"))
	if err != nil {
		t.Fatal(err)
	}
	if record.Status != domain.SubmissionConfirmed {
		t.Errorf("status = %s, want CONFIRMED", record.Status)
	}
	if env.builder.buildCalls() != 1 {
		t.Errorf("builds = %d, want 1 (no rebuild while blockhash valid)", env.builder.buildCalls())
	}
	if env.rpc.SendCalls != 1 {
		t.Errorf("send calls = %d, want 1", env.rpc.SendCalls)
	}
}

// A confirmation timeout with the blockhash still valid is terminal.
// The submitted transaction may yet land, so rebuilding would risk a
// second fill.
func TestExecuteConfirmTimeoutDoesNotRebuild(t *testing.T) {
	env := newTestEnv(t, Config{MaxSubmitAttempts: 10, MaxRebuilds: 2, ConfirmTimeout: 5 * time.Millisecond})
	// Block height stays at zero; the blockhash never provably dies.

	record, err := env.engine.Execute(context.Background(), testIntent("P1"))
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("err = %v, want ErrExpired", err)
	}
	if record.Status != domain.SubmissionExpired {
		t.Errorf("status = %s, want EXPIRED", record.Status)
	}
	if env.builder.buildCalls() != 1 {
		t.Errorf("builds = %d, want 1 (timeout must not rebuild)", env.builder.buildCalls())
	}
	if env.rpc.SendCalls != 1 {
		t.Errorf("send calls = %d, want 1", env.rpc.SendCalls)
	}
}

// After an apparent timeout the status is re-checked once before
// declaring expiry; a late confirmation is still caught.
func TestExecuteLateConfirmationCaught(t *testing.T) {
	env := newTestEnv(t, Config{MaxSubmitAttempts: 4, ConfirmTimeout: 2 * time.Millisecond, ConfirmPollInterval: 50 * time.Millisecond})
	late := &lateConfirmRPC{RPCClient: env.rpc, confirmAfter: 2, signature: env.signatureFor(1)}
	env.engine = NewEngine(late, env.builder, env.wallet, env.submissions, env.acted, Config{
		MaxSubmitAttempts:   4,
		RetryDelay:          time.Millisecond,
		ConfirmTimeout:      2 * time.Millisecond,
		ConfirmPollInterval: 50 * time.Millisecond,
	}, nil)

	record, err := env.engine.Execute(context.Background(), testIntent("P1"))
	if err != nil {
		t.Fatal(err)
	}
	if record.Status != domain.SubmissionConfirmed {
		t.Errorf("status = %s, want CONFIRMED", record.Status)
	}
}

// lateConfirmRPC reports the signature confirmed only from the Nth
// status poll onward.
type lateConfirmRPC struct {
	*stub.RPCClient
	mu           sync.Mutex
	polls        int
	confirmAfter int
	signature    string
}

func (c *lateConfirmRPC) GetSignatureStatuses(ctx context.Context, signatures []string) ([]*solana.SignatureStatus, error) {
	c.mu.Lock()
	c.polls++
	ready := c.polls >= c.confirmAfter
	c.mu.Unlock()

	if ready {
		c.RPCClient.SetStatus(c.signature, confirmed())
	}
	return c.RPCClient.GetSignatureStatuses(ctx, signatures)
}

func TestExecuteAtMostOneInFlightPerPool(t *testing.T) {
	env := newTestEnv(t, Config{MaxSubmitAttempts: 4})
	gate := make(chan struct{})
	env.builder.gate = gate
	env.rpc.SetStatus(env.signatureFor(1), confirmed())

	done := make(chan error, 1)
	go func() {
		_, err := env.engine.Execute(context.Background(), testIntent("P1"))
		done <- err
	}()

	// Wait for the first execution to hold the pool slot.
	for i := 0; i < 100; i++ {
		if env.builder.buildCalls() > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := env.engine.Execute(context.Background(), testIntent("P1")); !errors.Is(err, ErrAlreadyInFlight) {
		t.Errorf("err = %v, want ErrAlreadyInFlight", err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first execution failed: %v", err)
	}
}

func TestExecuteDistinctPoolsRunIndependently(t *testing.T) {
	env := newTestEnv(t, Config{MaxSubmitAttempts: 4, MaxConcurrent: 8})
	// All builds share the message sequence; confirm every signature.
	for i := 1; i <= 8; i++ {
		env.rpc.SetStatus(env.signatureFor(i), confirmed())
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		pool := fmt.Sprintf("P%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.engine.Execute(context.Background(), testIntent(pool))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("execution failed: %v", err)
		}
	}

	acted, _ := env.acted.ListSince(context.Background(), 0)
	if len(acted) != 8 {
		t.Errorf("acted pools = %d, want 8", len(acted))
	}
}

// With a hold window configured, a confirmed buy is followed by a sell
// of the full token balance through the same pool.
func TestExecuteSellsBackAfterHold(t *testing.T) {
	env := newTestEnv(t, Config{MaxSubmitAttempts: 4, SellDelay: time.Millisecond})
	env.rpc.SetStatus(env.signatureFor(1), confirmed())
	env.rpc.SetStatus(env.sellSignatureFor(1), confirmed())

	ata, err := swap.AssociatedTokenAddress(env.wallet.Pubkey(), "Mint1")
	if err != nil {
		t.Fatal(err)
	}
	env.rpc.TokenBalances[ata] = &solana.TokenAmount{Amount: 5000, Decimals: 6}

	record, err := env.engine.Execute(context.Background(), testIntent("P1"))
	if err != nil {
		t.Fatal(err)
	}
	if record.Status != domain.SubmissionConfirmed {
		t.Errorf("buy status = %s, want CONFIRMED", record.Status)
	}
	if env.builder.sellBuildCalls() != 1 {
		t.Fatalf("sell builds = %d, want 1", env.builder.sellBuildCalls())
	}
	if env.builder.sellAmount != 5000 {
		t.Errorf("sell amount = %d, want full balance 5000", env.builder.sellAmount)
	}
	if env.rpc.SendCalls != 2 {
		t.Errorf("send calls = %d, want 2 (buy and sell)", env.rpc.SendCalls)
	}

	sellRecord, err := env.submissions.GetBySignature(context.Background(), env.sellSignatureFor(1))
	if err != nil {
		t.Fatal(err)
	}
	if sellRecord.Status != domain.SubmissionConfirmed {
		t.Errorf("sell status = %s, want CONFIRMED", sellRecord.Status)
	}
}

func TestSellWithEmptyBalanceIsNoop(t *testing.T) {
	env := newTestEnv(t, Config{MaxSubmitAttempts: 4})

	record, err := env.engine.Sell(context.Background(), testIntent("P1"))
	if err != nil {
		t.Fatal(err)
	}
	if record != nil {
		t.Errorf("record = %+v, want nil for empty balance", record)
	}
	if env.rpc.SendCalls != 0 {
		t.Errorf("send calls = %d, want 0", env.rpc.SendCalls)
	}
}

func TestExecuteBuildFailure(t *testing.T) {
	env := newTestEnv(t, Config{MaxSubmitAttempts: 4})
	env.builder.err = swap.ErrQuoteUnavailable

	_, err := env.engine.Execute(context.Background(), testIntent("P1"))
	if !errors.Is(err, swap.ErrQuoteUnavailable) {
		t.Errorf("err = %v, want ErrQuoteUnavailable", err)
	}
	if env.rpc.SendCalls != 0 {
		t.Errorf("send calls = %d, want 0", env.rpc.SendCalls)
	}
}
