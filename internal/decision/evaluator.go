// Package decision applies eligibility rules to pool events and turns
// the ones that pass into buy intents. Rules run in a fixed order and
// short-circuit on the first failure, so every rejection carries exactly
// one reason.
package decision

import (
	"log"
	"time"

	"solana-pool-sniper/internal/domain"
)

// Rejection reasons, stable strings used as metric labels.
const (
	ReasonDenylisted    = "mint denylisted"
	ReasonBelowMinLiq   = "below minimum liquidity"
	ReasonAboveMaxLiq   = "above maximum liquidity"
	ReasonCooldown      = "cooldown active"
	ReasonInvalidIntent = "invalid intent"
)

// Config holds the eligibility rules. Read-only after construction.
type Config struct {
	BuyAmountLamports    uint64
	MaxSlippageBps       int
	MinLiquidityLamports uint64
	// MaxLiquidityLamports rejects pools above an upper bound; large
	// initial liquidity usually means an established token relaunch,
	// not a fresh pool worth sniping. Zero disables the rule.
	MaxLiquidityLamports uint64
	MintDenylist         []string
	Cooldown             time.Duration
	// DeadlineSlots bounds how far past the observed slot a buy is
	// still worth executing.
	DeadlineSlots uint64
	// MaxTrackedPools caps the recency set size.
	MaxTrackedPools int
}

// Rejection explains why a pool event did not produce a buy intent.
type Rejection struct {
	PoolAddress string
	Reason      string
}

// Evaluator filters pool events. The recency set is the only mutable
// state and is internally synchronized; Evaluate is safe to call from
// multiple goroutines.
type Evaluator struct {
	cfg      Config
	denylist map[string]struct{}
	recent   *recencySet
	logger   *log.Logger
}

// NewEvaluator creates an evaluator from the given rule config.
func NewEvaluator(cfg Config, logger *log.Logger) *Evaluator {
	if logger == nil {
		logger = log.Default()
	}
	denylist := make(map[string]struct{}, len(cfg.MintDenylist))
	for _, m := range cfg.MintDenylist {
		denylist[m] = struct{}{}
	}
	return &Evaluator{
		cfg:      cfg,
		denylist: denylist,
		recent:   newRecencySet(cfg.Cooldown, cfg.MaxTrackedPools),
		logger:   logger,
	}
}

// Evaluate applies the rules to one pool event. Returns either a buy
// intent or a rejection, never both. A successful evaluation records
// the pool in the recency set, so at most one intent is emitted per
// pool per cooldown window even under concurrent events.
func (e *Evaluator) Evaluate(ev *domain.PoolEvent) (*domain.BuyIntent, *Rejection) {
	if _, ok := e.denylist[ev.BaseMint]; ok {
		return nil, e.reject(ev, ReasonDenylisted)
	}

	if ev.InitialLiquidity < e.cfg.MinLiquidityLamports {
		return nil, e.reject(ev, ReasonBelowMinLiq)
	}
	if e.cfg.MaxLiquidityLamports > 0 && ev.InitialLiquidity > e.cfg.MaxLiquidityLamports {
		return nil, e.reject(ev, ReasonAboveMaxLiq)
	}

	// Cooldown last: a rejected event must not poison the recency set.
	if !e.recent.checkAndAdd(ev.PoolAddress) {
		return nil, e.reject(ev, ReasonCooldown)
	}

	intent := &domain.BuyIntent{
		PoolAddress:    ev.PoolAddress,
		TargetMint:     ev.BaseMint,
		QuoteMint:      ev.QuoteMint,
		MarketID:       ev.MarketID,
		QuoteAmountIn:  e.cfg.BuyAmountLamports,
		MaxSlippageBps: e.cfg.MaxSlippageBps,
		DeadlineSlot:   ev.Slot + e.cfg.DeadlineSlots,
		CreatedAt:      time.Now().UnixMilli(),
	}
	if err := intent.Validate(); err != nil {
		e.logger.Printf("[decision] invalid intent for pool %s: %v", ev.PoolAddress, err)
		return nil, e.reject(ev, ReasonInvalidIntent)
	}
	return intent, nil
}

// Preload seeds the recency set from previously acted-on pools, so a
// restart inside the cooldown window does not buy the same pool twice.
func (e *Evaluator) Preload(pools []domain.ActedPool) {
	for _, p := range pools {
		e.recent.add(p.PoolAddress, time.UnixMilli(p.ActedAt))
	}
}

// TrackedPools reports the recency set size, for metrics.
func (e *Evaluator) TrackedPools() int {
	return e.recent.len()
}

func (e *Evaluator) reject(ev *domain.PoolEvent, reason string) *Rejection {
	return &Rejection{PoolAddress: ev.PoolAddress, Reason: reason}
}
