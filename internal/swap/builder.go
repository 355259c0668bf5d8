package swap

import (
	"context"
	"errors"
	"fmt"
	"log"

	"solana-pool-sniper/internal/discovery"
	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/solana"
)

var (
	// ErrQuoteUnavailable means pool reserves imply an output below the
	// dust threshold; no transaction is worth building.
	ErrQuoteUnavailable = errors.New("swap quote unavailable")
	// ErrDeadlineExceeded means the chain has moved past the intent's
	// deadline slot.
	ErrDeadlineExceeded = errors.New("intent deadline exceeded")
	// ErrPoolUnavailable means pool or market state could not be
	// fetched or decoded.
	ErrPoolUnavailable = errors.New("pool state unavailable")
)

// BuilderConfig tunes transaction construction. Read-only.
type BuilderConfig struct {
	PriorityFeeMicroLamports uint64
	ComputeUnitLimit         uint32
	// DustThreshold is the minimum acceptable expected output in raw
	// token units.
	DustThreshold uint64
}

// UnsignedTransaction is a compiled, not yet signed swap transaction.
// Built once per intent; a stale blockhash requires a rebuild, never a
// reuse of this message.
type UnsignedTransaction struct {
	Message              []byte
	Blockhash            string
	LastValidBlockHeight uint64
	ExpectedOut          uint64
	MinAmountOut         uint64
}

// Builder assembles swap transactions from buy intents and live pool
// state.
type Builder struct {
	rpc    solana.RPCClient
	owner  string // wallet pubkey, fee payer and swap signer
	cfg    BuilderConfig
	logger *log.Logger
}

// NewBuilder creates a transaction builder for the given wallet owner.
func NewBuilder(rpc solana.RPCClient, owner string, cfg BuilderConfig, logger *log.Logger) *Builder {
	if logger == nil {
		logger = log.Default()
	}
	return &Builder{rpc: rpc, owner: owner, cfg: cfg, logger: logger}
}

// Build fetches pool and market state, quotes the swap and compiles an
// unsigned transaction. Instruction order is fixed: compute budget,
// token account setup, swap.
func (b *Builder) Build(ctx context.Context, intent *domain.BuyIntent) (*UnsignedTransaction, error) {
	if intent.DeadlineSlot > 0 {
		slot, err := b.rpc.GetSlot(ctx)
		if err != nil {
			return nil, fmt.Errorf("get slot: %w", err)
		}
		if slot > intent.DeadlineSlot {
			return nil, ErrDeadlineExceeded
		}
	}
	return b.build(ctx, intent, intent.QuoteMint, intent.TargetMint, intent.QuoteAmountIn)
}

// BuildSell compiles a transaction selling amountIn of the intent's
// target mint back into the quote mint through the same pool. No
// deadline applies: a position unwinds whenever its holder decides.
func (b *Builder) BuildSell(ctx context.Context, intent *domain.BuyIntent, amountIn uint64) (*UnsignedTransaction, error) {
	return b.build(ctx, intent, intent.TargetMint, intent.QuoteMint, amountIn)
}

func (b *Builder) build(ctx context.Context, intent *domain.BuyIntent, inMint, outMint string, amountIn uint64) (*UnsignedTransaction, error) {
	pool, market, err := b.fetchState(ctx, intent)
	if err != nil {
		return nil, err
	}

	inVault, outVault, err := orientVaults(pool, inMint)
	if err != nil {
		return nil, err
	}

	inBal, err := b.rpc.GetTokenAccountBalance(ctx, inVault)
	if err != nil {
		return nil, fmt.Errorf("in vault balance: %w", err)
	}
	outBal, err := b.rpc.GetTokenAccountBalance(ctx, outVault)
	if err != nil {
		return nil, fmt.Errorf("out vault balance: %w", err)
	}

	expected := ExpectedOut(amountIn, inBal.Amount, outBal.Amount)
	if expected < b.cfg.DustThreshold || expected == 0 {
		return nil, fmt.Errorf("%w: expected output %d below threshold %d",
			ErrQuoteUnavailable, expected, b.cfg.DustThreshold)
	}
	minOut := ApplySlippage(expected, intent.MaxSlippageBps)

	instrs, err := b.assembleInstructions(intent, pool, market, inMint, outMint, amountIn, minOut)
	if err != nil {
		return nil, err
	}

	bh, err := b.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("get latest blockhash: %w", err)
	}

	msg, err := CompileMessage(b.owner, bh.Blockhash, instrs)
	if err != nil {
		return nil, fmt.Errorf("compile message: %w", err)
	}

	return &UnsignedTransaction{
		Message:              msg,
		Blockhash:            bh.Blockhash,
		LastValidBlockHeight: bh.LastValidBlockHeight,
		ExpectedOut:          expected,
		MinAmountOut:         minOut,
	}, nil
}

func (b *Builder) fetchState(ctx context.Context, intent *domain.BuyIntent) (*discovery.PoolState, *discovery.MarketState, error) {
	accs, err := b.rpc.GetMultipleAccounts(ctx, []string{intent.PoolAddress, intent.MarketID})
	if err != nil {
		return nil, nil, fmt.Errorf("fetch pool accounts: %w", err)
	}
	if len(accs) != 2 || accs[0] == nil || accs[1] == nil {
		return nil, nil, fmt.Errorf("%w: pool or market account missing", ErrPoolUnavailable)
	}
	if accs[0].Owner != discovery.RaydiumAMMV4 {
		return nil, nil, fmt.Errorf("%w: pool owned by %s", ErrPoolUnavailable, accs[0].Owner)
	}

	pool, err := discovery.DecodePoolState(accs[0].Data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrPoolUnavailable, err)
	}
	market, err := discovery.DecodeMarketState(accs[1].Data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrPoolUnavailable, err)
	}
	return pool, market, nil
}

// orientVaults picks the vaults holding the input and output mints.
// Pool state keeps coin/pc sides as created; the spent mint may be on
// either side.
func orientVaults(pool *discovery.PoolState, inMint string) (in, out string, err error) {
	switch inMint {
	case pool.QuoteMint:
		return pool.QuoteVault, pool.BaseVault, nil
	case pool.BaseMint:
		return pool.BaseVault, pool.QuoteVault, nil
	default:
		return "", "", fmt.Errorf("%w: pool does not trade %s", ErrPoolUnavailable, inMint)
	}
}

func (b *Builder) assembleInstructions(intent *domain.BuyIntent, pool *discovery.PoolState, market *discovery.MarketState, inMint, outMint string, amountIn, minOut uint64) ([]Instruction, error) {
	userSource, err := AssociatedTokenAddress(b.owner, inMint)
	if err != nil {
		return nil, fmt.Errorf("derive source token account: %w", err)
	}
	userDest, err := AssociatedTokenAddress(b.owner, outMint)
	if err != nil {
		return nil, fmt.Errorf("derive destination token account: %w", err)
	}
	vaultSigner, err := SerumVaultSigner(market.OwnAddress, market.VaultSignerNonce, pool.MarketProgramID)
	if err != nil {
		return nil, fmt.Errorf("derive vault signer: %w", err)
	}

	var instrs []Instruction
	if b.cfg.ComputeUnitLimit > 0 {
		instrs = append(instrs, SetComputeUnitLimit(b.cfg.ComputeUnitLimit))
	}
	if b.cfg.PriorityFeeMicroLamports > 0 {
		instrs = append(instrs, SetComputeUnitPrice(b.cfg.PriorityFeeMicroLamports))
	}
	instrs = append(instrs, CreateATAIdempotent(b.owner, b.owner, outMint, userDest))
	instrs = append(instrs, SwapBaseIn(SwapAccounts{
		AMMProgram:    discovery.RaydiumAMMV4,
		AMM:           intent.PoolAddress,
		AMMAuthority:  discovery.RaydiumAuthorityV4,
		OpenOrders:    pool.OpenOrders,
		TargetOrders:  pool.TargetOrders,
		PoolCoinVault: pool.BaseVault,
		PoolPcVault:   pool.QuoteVault,
		SerumProgram:  pool.MarketProgramID,
		SerumMarket:   market.OwnAddress,
		SerumBids:     market.Bids,
		SerumAsks:     market.Asks,
		SerumEventQ:   market.EventQueue,
		SerumCoinVlt:  market.BaseVault,
		SerumPcVault:  market.QuoteVault,
		SerumSigner:   vaultSigner,
		UserSource:    userSource,
		UserDest:      userDest,
		UserOwner:     b.owner,
	}, amountIn, minOut))

	return instrs, nil
}
