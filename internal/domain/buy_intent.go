package domain

import "fmt"

// BuyIntent is a validated decision to buy into a pool.
// Owned exclusively by the pipeline stage processing it.
type BuyIntent struct {
	PoolAddress    string
	TargetMint     string // mint being bought
	QuoteMint      string // mint being spent (WSOL)
	MarketID       string
	QuoteAmountIn  uint64 // lamports of quote to spend
	MaxSlippageBps int    // [0, 10000]
	DeadlineSlot   uint64 // intent is dropped if this slot has passed, 0 = no deadline
	CreatedAt      int64  // Unix timestamp in milliseconds
}

// Validate enforces the intent invariants.
func (i *BuyIntent) Validate() error {
	if i.PoolAddress == "" {
		return fmt.Errorf("buy intent: empty pool address")
	}
	if i.TargetMint == "" {
		return fmt.Errorf("buy intent: empty target mint")
	}
	if i.QuoteAmountIn == 0 {
		return fmt.Errorf("buy intent: quote_amount_in must be > 0")
	}
	if i.MaxSlippageBps < 0 || i.MaxSlippageBps > 10000 {
		return fmt.Errorf("buy intent: max_slippage_bps %d outside [0, 10000]", i.MaxSlippageBps)
	}
	return nil
}
