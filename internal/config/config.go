// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the sniper needs to run. Populated from
// SNIPER_* environment variables on top of built-in defaults.
type Config struct {
	// Endpoints
	RPCEndpoint string
	WSEndpoint  string

	// Wallet. Either a keypair file (solana-keygen JSON array) or a
	// base58 private key; the file wins when both are set.
	WalletKeypairPath string
	WalletPrivateKey  string

	// Eligibility rules
	BuyAmountLamports    uint64
	MaxSlippageBps       int
	MinLiquidityLamports uint64
	MaxLiquidityLamports uint64 // 0 disables the upper bound
	MintDenylist         []string
	Cooldown             time.Duration
	DeadlineSlots        uint64

	// Execution
	MaxConcurrentBuys        int
	MaxSubmitAttempts        int
	MaxRebuilds              int
	RetryDelay               time.Duration
	ConfirmTimeout           time.Duration
	PriorityFeeMicroLamports uint64
	ComputeUnitLimit         uint32
	// SellDelay, when positive, holds each confirmed buy for this long
	// and then sells the position back into SOL. Zero keeps positions.
	SellDelay time.Duration

	// Storage. Empty DSNs fall back to in-memory stores.
	PostgresDSN   string
	ClickhouseDSN string

	// Observability
	MetricsAddr string
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		BuyAmountLamports:        100_000_000, // 0.1 SOL
		MaxSlippageBps:           500,
		MinLiquidityLamports:     10_000_000_000, // 10 SOL
		Cooldown:                 time.Hour,
		DeadlineSlots:            300, // ~2 minutes
		MaxConcurrentBuys:        8,
		MaxSubmitAttempts:        4,
		MaxRebuilds:              2,
		RetryDelay:               200 * time.Millisecond,
		ConfirmTimeout:           45 * time.Second,
		PriorityFeeMicroLamports: 25_000,
		ComputeUnitLimit:         120_000,
		MetricsAddr:              ":9090",
	}
}

// Load reads a .env file if present, applies SNIPER_* environment
// variables on top of the defaults, and returns the result. The
// returned Config has not been validated; call Validate after Load.
func Load() Config {
	_ = godotenv.Load()

	cfg := Defaults()

	setStr(&cfg.RPCEndpoint, "SNIPER_RPC_ENDPOINT")
	setStr(&cfg.WSEndpoint, "SNIPER_WS_ENDPOINT")
	setStr(&cfg.WalletKeypairPath, "SNIPER_WALLET_KEYPAIR_PATH")
	setStr(&cfg.WalletPrivateKey, "SNIPER_WALLET_PRIVATE_KEY")

	setUint64(&cfg.BuyAmountLamports, "SNIPER_BUY_AMOUNT_LAMPORTS")
	setInt(&cfg.MaxSlippageBps, "SNIPER_MAX_SLIPPAGE_BPS")
	setUint64(&cfg.MinLiquidityLamports, "SNIPER_MIN_LIQUIDITY_LAMPORTS")
	setUint64(&cfg.MaxLiquidityLamports, "SNIPER_MAX_LIQUIDITY_LAMPORTS")
	setStringSlice(&cfg.MintDenylist, "SNIPER_MINT_DENYLIST")
	setDuration(&cfg.Cooldown, "SNIPER_COOLDOWN")
	setUint64(&cfg.DeadlineSlots, "SNIPER_DEADLINE_SLOTS")

	setInt(&cfg.MaxConcurrentBuys, "SNIPER_MAX_CONCURRENT_BUYS")
	setInt(&cfg.MaxSubmitAttempts, "SNIPER_MAX_SUBMIT_ATTEMPTS")
	setInt(&cfg.MaxRebuilds, "SNIPER_MAX_REBUILDS")
	setDuration(&cfg.RetryDelay, "SNIPER_RETRY_DELAY")
	setDuration(&cfg.ConfirmTimeout, "SNIPER_CONFIRM_TIMEOUT")
	setUint64(&cfg.PriorityFeeMicroLamports, "SNIPER_PRIORITY_FEE_MICROLAMPORTS")
	setUint32(&cfg.ComputeUnitLimit, "SNIPER_COMPUTE_UNIT_LIMIT")
	setDuration(&cfg.SellDelay, "SNIPER_SELL_DELAY")

	setStr(&cfg.PostgresDSN, "SNIPER_POSTGRES_DSN")
	setStr(&cfg.ClickhouseDSN, "SNIPER_CLICKHOUSE_DSN")
	setStr(&cfg.MetricsAddr, "SNIPER_METRICS_ADDR")

	return cfg
}

// Validate checks the invariants a running sniper depends on.
func (c Config) Validate() error {
	if c.RPCEndpoint == "" {
		return fmt.Errorf("config: SNIPER_RPC_ENDPOINT is required")
	}
	if c.WSEndpoint == "" {
		return fmt.Errorf("config: SNIPER_WS_ENDPOINT is required")
	}
	if c.WalletKeypairPath == "" && c.WalletPrivateKey == "" {
		return fmt.Errorf("config: a wallet is required, set SNIPER_WALLET_KEYPAIR_PATH or SNIPER_WALLET_PRIVATE_KEY")
	}
	if c.BuyAmountLamports == 0 {
		return fmt.Errorf("config: SNIPER_BUY_AMOUNT_LAMPORTS must be > 0")
	}
	if c.MaxSlippageBps < 0 || c.MaxSlippageBps > 10000 {
		return fmt.Errorf("config: SNIPER_MAX_SLIPPAGE_BPS %d outside [0, 10000]", c.MaxSlippageBps)
	}
	if c.MaxLiquidityLamports != 0 && c.MaxLiquidityLamports < c.MinLiquidityLamports {
		return fmt.Errorf("config: max liquidity %d below min liquidity %d",
			c.MaxLiquidityLamports, c.MinLiquidityLamports)
	}
	if c.MaxConcurrentBuys <= 0 {
		return fmt.Errorf("config: SNIPER_MAX_CONCURRENT_BUYS must be > 0")
	}
	if c.MaxSubmitAttempts <= 0 {
		return fmt.Errorf("config: SNIPER_MAX_SUBMIT_ATTEMPTS must be > 0")
	}
	return nil
}

// Typed env-var helpers. Each only mutates the target when the
// variable is present and parses cleanly.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint32(dst *uint32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			*dst = uint32(n)
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
