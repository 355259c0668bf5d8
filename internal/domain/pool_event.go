package domain

// PoolEventKind distinguishes the chain events the normalizer emits.
type PoolEventKind string

const (
	// PoolCreated is a new AMM pool initialization.
	PoolCreated PoolEventKind = "pool_created"
	// LiquidityAdded is a deposit into an existing pool.
	LiquidityAdded PoolEventKind = "liquidity_added"
)

// PoolEvent represents a normalized pool creation or liquidity event.
// Immutable once constructed by the normalizer.
type PoolEvent struct {
	Kind        PoolEventKind
	PoolAddress string // AMM pool account (base58)
	BaseMint    string // pool base token mint
	QuoteMint   string // pool quote token mint (WSOL for tradeable pools)
	MarketID    string // OpenBook market account
	BaseVault   string // pool base token vault
	QuoteVault  string // pool quote token vault
	// InitialLiquidity is the quote-denominated liquidity observed at
	// pool creation, in lamports. Zero when unknown from the event.
	InitialLiquidity uint64
	TxSignature      string
	Slot             uint64
	ObservedAt       int64 // Unix timestamp in milliseconds
}
