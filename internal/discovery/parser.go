// Package discovery normalizes raw chain log notifications into typed
// pool events. Parsing is per-program: each registered parser knows one
// DEX program's log shapes, and anything unrecognized is discarded
// rather than treated as a failure.
package discovery

import "solana-pool-sniper/internal/domain"

// Known program IDs.
const (
	// RaydiumAMMV4 is the Raydium AMM v4 program ID.
	RaydiumAMMV4 = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"
	// RaydiumAuthorityV4 is the AMM authority PDA.
	RaydiumAuthorityV4 = "5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1"
	// OpenBook is the OpenBook (Serum v3 fork) market program ID.
	OpenBook = "srmqPvymJeFKQ4zGQed1GFppgkRHL9kaELCbyksJtPX"
	// CreatePoolFeeAccount receives the fee paid on every Raydium pool
	// creation; subscribing to its mentions captures every new pool.
	CreatePoolFeeAccount = "7YttLkHDoNj9wyDur5pM1ejNaAvT9X4eqaYcHQqtj2G5"
	// WSOL is the wrapped SOL mint.
	WSOL = "So11111111111111111111111111111111111111112"
)

// RawPoolEvent is a parser's extraction from one transaction's logs.
// Orientation (which side is quote) and missing identity fields are
// resolved by the Normalizer before a domain.PoolEvent is emitted.
type RawPoolEvent struct {
	Kind        domain.PoolEventKind
	PoolAddress string
	BaseMint    string // coin-side mint, may be empty for deposits
	QuoteMint   string // pc-side mint, may be empty for deposits
	MarketID    string
	BaseVault   string
	QuoteVault  string
	CoinAmount  uint64 // coin-side amount observed in the event
	PcAmount    uint64 // pc-side amount observed in the event
}

// Parser extracts pool events for a single DEX program.
type Parser interface {
	// ProgramID returns the program this parser understands.
	ProgramID() string

	// Parse extracts a raw pool event from transaction logs and the
	// transaction's account keys. Returns nil when the logs contain no
	// pool-creation or liquidity-add signature for this program.
	Parse(logs []string, accountKeys []string) *RawPoolEvent
}
