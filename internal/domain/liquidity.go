package domain

// LiquiditySnapshot is one observation of pool reserves.
// Corresponds to the liquidity_history table in ClickHouse.
type LiquiditySnapshot struct {
	PoolAddress  string
	BaseMint     string
	QuoteMint    string
	BaseReserve  uint64 // base vault balance, raw token units
	QuoteReserve uint64 // quote vault balance, lamports
	Slot         uint64
	TimestampMs  int64
}

// ActedPool records a pool the sniper has already acted upon.
// Used to warm the cooldown set across restarts.
// Corresponds to the acted_pools table in PostgreSQL.
type ActedPool struct {
	PoolAddress string
	TargetMint  string
	Signature   string // submission signature that acted on the pool
	ActedAt     int64  // Unix timestamp in milliseconds
}
