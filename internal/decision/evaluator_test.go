package decision

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"solana-pool-sniper/internal/domain"
)

func testConfig() Config {
	return Config{
		BuyAmountLamports:    100_000_000, // 0.1 SOL
		MaxSlippageBps:       500,
		MinLiquidityLamports: 20_000_000_000,  // 20 SOL
		MaxLiquidityLamports: 150_000_000_000, // 150 SOL
		MintDenylist:         []string{"BadMint111"},
		Cooldown:             time.Hour,
		DeadlineSlots:        300,
		MaxTrackedPools:      100,
	}
}

func testEvent(pool string, liquidity uint64) *domain.PoolEvent {
	return &domain.PoolEvent{
		Kind:             domain.PoolCreated,
		PoolAddress:      pool,
		BaseMint:         "Mint" + pool,
		QuoteMint:        "So11111111111111111111111111111111111111112",
		MarketID:         "Market" + pool,
		InitialLiquidity: liquidity,
		Slot:             100,
	}
}

func TestEvaluateEmitsIntent(t *testing.T) {
	e := NewEvaluator(testConfig(), nil)

	intent, rej := e.Evaluate(testEvent("P1", 30_000_000_000))
	if rej != nil {
		t.Fatalf("rejected: %s", rej.Reason)
	}
	if intent.PoolAddress != "P1" || intent.TargetMint != "MintP1" {
		t.Errorf("identity = %q/%q", intent.PoolAddress, intent.TargetMint)
	}
	if intent.QuoteAmountIn != 100_000_000 {
		t.Errorf("quote amount = %d, want configured 100000000", intent.QuoteAmountIn)
	}
	if intent.MaxSlippageBps != 500 {
		t.Errorf("slippage = %d", intent.MaxSlippageBps)
	}
	if intent.DeadlineSlot != 400 {
		t.Errorf("deadline slot = %d, want 400", intent.DeadlineSlot)
	}
}

func TestEvaluateBelowMinimumLiquidity(t *testing.T) {
	cfg := testConfig()
	e := NewEvaluator(cfg, nil)

	intent, rej := e.Evaluate(testEvent("P1", cfg.MinLiquidityLamports-1))
	if intent != nil {
		t.Fatalf("expected rejection, got intent %+v", intent)
	}
	if rej.Reason != ReasonBelowMinLiq {
		t.Errorf("reason = %q, want %q", rej.Reason, ReasonBelowMinLiq)
	}
}

func TestEvaluateAboveMaximumLiquidity(t *testing.T) {
	cfg := testConfig()
	e := NewEvaluator(cfg, nil)

	intent, rej := e.Evaluate(testEvent("P1", cfg.MaxLiquidityLamports+1))
	if intent != nil {
		t.Fatalf("expected rejection, got intent %+v", intent)
	}
	if rej.Reason != ReasonAboveMaxLiq {
		t.Errorf("reason = %q, want %q", rej.Reason, ReasonAboveMaxLiq)
	}
}

func TestEvaluateMaxLiquidityDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.MaxLiquidityLamports = 0
	e := NewEvaluator(cfg, nil)

	if intent, rej := e.Evaluate(testEvent("P1", 500_000_000_000)); intent == nil {
		t.Errorf("expected intent with upper bound disabled, rejected: %s", rej.Reason)
	}
}

func TestEvaluateDenylistedMint(t *testing.T) {
	e := NewEvaluator(testConfig(), nil)
	ev := testEvent("P1", 30_000_000_000)
	ev.BaseMint = "BadMint111"

	intent, rej := e.Evaluate(ev)
	if intent != nil {
		t.Fatalf("expected rejection, got intent %+v", intent)
	}
	if rej.Reason != ReasonDenylisted {
		t.Errorf("reason = %q, want %q", rej.Reason, ReasonDenylisted)
	}
}

func TestEvaluateCooldownSuppressesSecondEvent(t *testing.T) {
	e := NewEvaluator(testConfig(), nil)

	if _, rej := e.Evaluate(testEvent("P1", 30_000_000_000)); rej != nil {
		t.Fatalf("first event rejected: %s", rej.Reason)
	}
	intent, rej := e.Evaluate(testEvent("P1", 30_000_000_000))
	if intent != nil {
		t.Fatalf("expected cooldown rejection, got intent %+v", intent)
	}
	if rej.Reason != ReasonCooldown {
		t.Errorf("reason = %q, want %q", rej.Reason, ReasonCooldown)
	}
}

func TestEvaluateCooldownExpires(t *testing.T) {
	e := NewEvaluator(testConfig(), nil)
	now := time.Unix(1700000000, 0)
	e.recent.now = func() time.Time { return now }

	if _, rej := e.Evaluate(testEvent("P1", 30_000_000_000)); rej != nil {
		t.Fatalf("first event rejected: %s", rej.Reason)
	}

	now = now.Add(2 * time.Hour)
	if intent, rej := e.Evaluate(testEvent("P1", 30_000_000_000)); intent == nil {
		t.Errorf("expected intent after cooldown expiry, rejected: %s", rej.Reason)
	}
}

// A rejected event must not start the pool's cooldown: a later eligible
// event for the same pool still produces an intent.
func TestRejectionDoesNotStartCooldown(t *testing.T) {
	cfg := testConfig()
	e := NewEvaluator(cfg, nil)

	if intent, _ := e.Evaluate(testEvent("P1", cfg.MinLiquidityLamports-1)); intent != nil {
		t.Fatal("expected rejection")
	}
	if intent, rej := e.Evaluate(testEvent("P1", 30_000_000_000)); intent == nil {
		t.Errorf("expected intent, rejected: %s", rej.Reason)
	}
}

func TestPreloadWarmStartsCooldown(t *testing.T) {
	e := NewEvaluator(testConfig(), nil)
	e.Preload([]domain.ActedPool{
		{PoolAddress: "P1", ActedAt: time.Now().UnixMilli()},
	})

	intent, rej := e.Evaluate(testEvent("P1", 30_000_000_000))
	if intent != nil {
		t.Fatalf("expected cooldown rejection after preload, got intent %+v", intent)
	}
	if rej.Reason != ReasonCooldown {
		t.Errorf("reason = %q, want %q", rej.Reason, ReasonCooldown)
	}
}

// Concurrent events for the same pool must produce exactly one intent.
func TestEvaluateConcurrentSamePool(t *testing.T) {
	e := NewEvaluator(testConfig(), nil)

	const n = 32
	var wg sync.WaitGroup
	results := make(chan *domain.BuyIntent, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			intent, _ := e.Evaluate(testEvent("P1", 30_000_000_000))
			results <- intent
		}()
	}
	wg.Wait()
	close(results)

	emitted := 0
	for intent := range results {
		if intent != nil {
			emitted++
		}
	}
	if emitted != 1 {
		t.Errorf("emitted %d intents for one pool, want 1", emitted)
	}
}

// Concurrent events for distinct pools all pass independently.
func TestEvaluateConcurrentDistinctPools(t *testing.T) {
	e := NewEvaluator(testConfig(), nil)

	const n = 32
	var wg sync.WaitGroup
	results := make(chan *domain.BuyIntent, n)
	for i := 0; i < n; i++ {
		pool := fmt.Sprintf("P%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			intent, _ := e.Evaluate(testEvent(pool, 30_000_000_000))
			results <- intent
		}()
	}
	wg.Wait()
	close(results)

	emitted := 0
	seen := make(map[string]bool)
	for intent := range results {
		if intent == nil {
			continue
		}
		emitted++
		if seen[intent.PoolAddress] {
			t.Errorf("duplicate intent for %s", intent.PoolAddress)
		}
		seen[intent.PoolAddress] = true
	}
	if emitted != n {
		t.Errorf("emitted %d intents, want %d", emitted, n)
	}
}

func TestRecencySetSizeBound(t *testing.T) {
	s := newRecencySet(time.Hour, 10)
	for i := 0; i < 50; i++ {
		s.checkAndAdd(fmt.Sprintf("P%d", i))
	}
	if got := s.len(); got > 10 {
		t.Errorf("set size = %d, want <= 10", got)
	}
}
