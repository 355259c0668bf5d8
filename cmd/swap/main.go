// Command swap performs a one-shot manual buy into a Raydium pool, or
// with --sell unwinds the wallet's position in it. Useful for verifying
// wallet, RPC and pool wiring without running the watcher. Endpoints
// and the wallet come from SNIPER_* environment variables; the pool and
// sizing come from flags.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"time"

	"solana-pool-sniper/internal/config"
	"solana-pool-sniper/internal/discovery"
	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/execution"
	"solana-pool-sniper/internal/solana"
	"solana-pool-sniper/internal/storage/memory"
	"solana-pool-sniper/internal/swap"
	"solana-pool-sniper/internal/wallet"
)

func main() {
	poolAddr := flag.String("pool", "", "Raydium AMM pool address (base58)")
	amount := flag.Uint64("amount", 0, "Lamports of SOL to spend (default from config)")
	slippageBps := flag.Int("slippage-bps", 0, "Max slippage in basis points (default from config)")
	sell := flag.Bool("sell", false, "Sell the wallet's full balance of the pool's token instead of buying")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall timeout")
	flag.Parse()

	logger := log.New(os.Stdout, "[swap] ", log.LstdFlags)

	if *poolAddr == "" {
		logger.Fatal("--pool is required")
	}

	cfg := config.Load()
	if cfg.RPCEndpoint == "" {
		logger.Fatal("SNIPER_RPC_ENDPOINT is required")
	}
	if *amount == 0 {
		*amount = cfg.BuyAmountLamports
	}
	if *slippageBps == 0 {
		*slippageBps = cfg.MaxSlippageBps
	}

	w, err := loadWallet(cfg)
	if err != nil {
		logger.Fatalf("Load wallet: %v", err)
	}
	logger.Printf("Wallet: %s", w.Pubkey())

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rpc := solana.NewHTTPClient(cfg.RPCEndpoint)

	intent, err := buildIntent(ctx, rpc, *poolAddr, *amount, *slippageBps)
	if err != nil {
		logger.Fatalf("Inspect pool: %v", err)
	}
	if *sell {
		logger.Printf("Selling %s back into SOL (slippage %d bps)",
			intent.TargetMint, intent.MaxSlippageBps)
	} else {
		logger.Printf("Buying %s for %d lamports (slippage %d bps)",
			intent.TargetMint, intent.QuoteAmountIn, intent.MaxSlippageBps)
	}

	builder := swap.NewBuilder(rpc, w.Pubkey(), swap.BuilderConfig{
		PriorityFeeMicroLamports: cfg.PriorityFeeMicroLamports,
		ComputeUnitLimit:         cfg.ComputeUnitLimit,
	}, logger)

	engine := execution.NewEngine(rpc, builder, w,
		memory.NewSubmissionStore(), memory.NewActedPoolStore(),
		execution.Config{
			MaxSubmitAttempts: cfg.MaxSubmitAttempts,
			MaxRebuilds:       cfg.MaxRebuilds,
			RetryDelay:        cfg.RetryDelay,
			ConfirmTimeout:    cfg.ConfirmTimeout,
		}, logger)

	var record *domain.SubmissionRecord
	if *sell {
		record, err = engine.Sell(ctx, intent)
	} else {
		record, err = engine.Execute(ctx, intent)
	}
	if record != nil {
		logger.Printf("Signature: %s status=%s attempts=%d",
			record.Signature, record.Status, record.AttemptCount)
	}
	if err != nil {
		logger.Fatalf("Swap failed: %v", err)
	}
	if *sell && record == nil {
		logger.Println("Nothing to sell")
		return
	}
	logger.Println("Swap confirmed")
}

// buildIntent reads the live pool state and derives the market and
// target mint from the pool address alone.
func buildIntent(ctx context.Context, rpc solana.RPCClient, poolAddr string, amount uint64, slippageBps int) (*domain.BuyIntent, error) {
	acc, err := rpc.GetAccountInfo(ctx, poolAddr)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, swap.ErrPoolUnavailable
	}
	state, err := discovery.DecodePoolState(acc.Data)
	if err != nil {
		return nil, err
	}

	targetMint := state.BaseMint
	if targetMint == discovery.WSOL {
		targetMint = state.QuoteMint
	}

	intent := &domain.BuyIntent{
		PoolAddress:    poolAddr,
		TargetMint:     targetMint,
		QuoteMint:      discovery.WSOL,
		MarketID:       state.MarketID,
		QuoteAmountIn:  amount,
		MaxSlippageBps: slippageBps,
		CreatedAt:      time.Now().UnixMilli(),
	}
	if err := intent.Validate(); err != nil {
		return nil, err
	}
	return intent, nil
}

func loadWallet(cfg config.Config) (*wallet.Wallet, error) {
	if cfg.WalletKeypairPath != "" {
		return wallet.Load(cfg.WalletKeypairPath)
	}
	if cfg.WalletPrivateKey != "" {
		return wallet.FromBase58(cfg.WalletPrivateKey)
	}
	return nil, errors.New("set SNIPER_WALLET_KEYPAIR_PATH or SNIPER_WALLET_PRIVATE_KEY")
}
