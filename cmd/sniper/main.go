// Command sniper watches for new Raydium liquidity pools and buys into
// the ones that pass the eligibility rules. Configuration comes from
// SNIPER_* environment variables (a .env file is honored).
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"solana-pool-sniper/internal/config"
	"solana-pool-sniper/internal/decision"
	"solana-pool-sniper/internal/discovery"
	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/execution"
	"solana-pool-sniper/internal/observability"
	"solana-pool-sniper/internal/pipeline"
	"solana-pool-sniper/internal/solana"
	"solana-pool-sniper/internal/storage"
	chstore "solana-pool-sniper/internal/storage/clickhouse"
	"solana-pool-sniper/internal/storage/memory"
	"solana-pool-sniper/internal/storage/migrations"
	pgstore "solana-pool-sniper/internal/storage/postgres"
	"solana-pool-sniper/internal/swap"
	"solana-pool-sniper/internal/wallet"
)

func main() {
	logger := log.New(os.Stdout, "[sniper] ", log.LstdFlags|log.Lshortfile)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Fatal(err)
	}

	// Start metrics server if enabled
	if cfg.MetricsAddr != "" {
		go func() {
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			for range ticker.C {
				observability.DefaultMetrics.UptimeSeconds.Inc()
			}
		}()
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err := run(ctx, logger, cfg)

	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Sniper failed: %v", err)
	}
	logger.Println("Sniper stopped")
}

func run(ctx context.Context, logger *log.Logger, cfg config.Config) error {
	w, err := loadWallet(cfg)
	if err != nil {
		return err
	}
	logger.Printf("Wallet loaded: %s", w.Pubkey())

	rpc := solana.NewHTTPClient(cfg.RPCEndpoint)

	ws, err := solana.NewWSClient(ctx, cfg.WSEndpoint, nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	submissions, acted, cleanup, err := setupPostgres(ctx, logger, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer cleanup()

	liquidityStore, chCleanup, err := setupClickhouse(ctx, logger, cfg.ClickhouseDSN)
	if err != nil {
		return err
	}
	defer chCleanup()

	evaluator := decision.NewEvaluator(decision.Config{
		BuyAmountLamports:    cfg.BuyAmountLamports,
		MaxSlippageBps:       cfg.MaxSlippageBps,
		MinLiquidityLamports: cfg.MinLiquidityLamports,
		MaxLiquidityLamports: cfg.MaxLiquidityLamports,
		MintDenylist:         cfg.MintDenylist,
		Cooldown:             cfg.Cooldown,
		DeadlineSlots:        cfg.DeadlineSlots,
	}, logger)

	// Warm the cooldown set so a restart does not re-buy pools acted
	// on within the window.
	since := time.Now().Add(-cfg.Cooldown).UnixMilli()
	if pools, err := acted.ListSince(ctx, since); err != nil {
		logger.Printf("Warning: could not preload acted pools: %v", err)
	} else if len(pools) > 0 {
		warm := make([]domain.ActedPool, len(pools))
		for i, p := range pools {
			warm[i] = *p
		}
		evaluator.Preload(warm)
		logger.Printf("Preloaded %d recently acted pools", len(pools))
	}

	builder := swap.NewBuilder(rpc, w.Pubkey(), swap.BuilderConfig{
		PriorityFeeMicroLamports: cfg.PriorityFeeMicroLamports,
		ComputeUnitLimit:         cfg.ComputeUnitLimit,
	}, logger)

	engine := execution.NewEngine(rpc, builder, w, submissions, acted, execution.Config{
		MaxSubmitAttempts: cfg.MaxSubmitAttempts,
		MaxRebuilds:       cfg.MaxRebuilds,
		MaxConcurrent:     cfg.MaxConcurrentBuys,
		RetryDelay:        cfg.RetryDelay,
		ConfirmTimeout:    cfg.ConfirmTimeout,
		SellDelay:         cfg.SellDelay,
	}, logger)

	runner := pipeline.NewRunner(pipeline.Options{
		WS:             ws,
		Normalizer:     discovery.NewNormalizer(rpc, logger, discovery.NewRaydiumParser()),
		Evaluator:      evaluator,
		Executor:       engine,
		LiquidityStore: liquidityStore,
		Logger:         logger,
	})

	logger.Printf("Watching for new pools, buy=%d lamports slippage=%d bps",
		cfg.BuyAmountLamports, cfg.MaxSlippageBps)
	return runner.Run(ctx)
}

func loadWallet(cfg config.Config) (*wallet.Wallet, error) {
	if cfg.WalletKeypairPath != "" {
		return wallet.Load(cfg.WalletKeypairPath)
	}
	return wallet.FromBase58(cfg.WalletPrivateKey)
}

// setupPostgres connects and migrates, falling back to in-memory
// stores when no DSN is configured.
func setupPostgres(ctx context.Context, logger *log.Logger, dsn string) (storage.SubmissionStore, storage.ActedPoolStore, func(), error) {
	if dsn == "" {
		logger.Println("No Postgres DSN, using in-memory submission stores")
		return memory.NewSubmissionStore(), memory.NewActedPoolStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, dsn)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	logger.Println("Connected to PostgreSQL")
	return pgstore.NewSubmissionStore(pool), pgstore.NewActedPoolStore(pool), pool.Close, nil
}

// setupClickhouse connects and migrates, falling back to an in-memory
// history store when no DSN is configured.
func setupClickhouse(ctx context.Context, logger *log.Logger, dsn string) (storage.LiquidityHistoryStore, func(), error) {
	if dsn == "" {
		logger.Println("No ClickHouse DSN, using in-memory liquidity history")
		return memory.NewLiquidityHistoryStore(), func() {}, nil
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	logger.Println("Connected to ClickHouse")
	return chstore.NewLiquidityHistoryStore(conn), func() { conn.Close() }, nil
}
