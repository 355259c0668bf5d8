package discovery

import (
	"context"
	"log"
	"strings"
	"time"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/solana"
)

// Drop reasons reported by Normalize. Dropped notifications are normal
// operation, not errors; the reasons feed metrics and debug logs.
const (
	DropRevertedTx      = "reverted transaction"
	DropTxNotFound      = "transaction not found"
	DropNoParser        = "no parser for program"
	DropUnrecognized    = "unrecognized logs"
	DropPoolNotFound    = "pool account not found"
	DropWrongOwner      = "unexpected pool account owner"
	DropBadPoolState    = "malformed pool state"
	DropNoWSOLSide      = "pool has no WSOL side"
)

// Normalizer converts raw log notifications into domain pool events.
// It owns the parser registry and resolves event identity that logs
// alone don't carry (deposit events name the pool but not its mints).
type Normalizer struct {
	rpc     solana.RPCClient
	parsers []Parser
	logger  *log.Logger
	now     func() time.Time

	// Transaction lookups retry briefly: the RPC node serving
	// getTransaction may lag the one that emitted the notification by a
	// moment even at confirmed commitment.
	lookupAttempts int
	lookupDelay    time.Duration
}

// NewNormalizer creates a normalizer with the given parsers.
func NewNormalizer(rpc solana.RPCClient, logger *log.Logger, parsers ...Parser) *Normalizer {
	if logger == nil {
		logger = log.Default()
	}
	return &Normalizer{
		rpc:            rpc,
		parsers:        parsers,
		logger:         logger,
		now:            time.Now,
		lookupAttempts: 3,
		lookupDelay:    250 * time.Millisecond,
	}
}

// Normalize turns one log notification into a pool event. A nil event
// with a non-empty reason means the notification was dropped; this is
// the common case since most subscribed transactions are swaps or
// unrelated program calls.
func (n *Normalizer) Normalize(ctx context.Context, notif solana.LogNotification) (*domain.PoolEvent, string) {
	if notif.Err != nil {
		return nil, DropRevertedTx
	}

	// Cheap pre-check before paying for a getTransaction round trip.
	parser := n.matchParser(notif.Logs)
	if parser == nil {
		return nil, DropNoParser
	}

	tx, err := n.lookupTransaction(ctx, notif.Signature)
	if err != nil {
		n.logger.Printf("[normalizer] getTransaction %s: %v", notif.Signature, err)
		return nil, DropTxNotFound
	}
	if tx == nil || tx.Message == nil {
		return nil, DropTxNotFound
	}
	if tx.Meta != nil && tx.Meta.Err != nil {
		return nil, DropRevertedTx
	}

	logs := notif.Logs
	if tx.Meta != nil && len(tx.Meta.LogMessages) > 0 {
		logs = tx.Meta.LogMessages
	}

	raw := parser.Parse(logs, tx.Message.AccountKeys)
	if raw == nil {
		return nil, DropUnrecognized
	}

	if raw.Kind == domain.LiquidityAdded {
		if reason := n.enrichDeposit(ctx, raw); reason != "" {
			return nil, reason
		}
	}

	return n.orient(raw, notif)
}

// lookupTransaction fetches the notified transaction, retrying a
// bounded number of times before the caller drops the notification.
func (n *Normalizer) lookupTransaction(ctx context.Context, signature string) (*solana.Transaction, error) {
	var tx *solana.Transaction
	var err error
	for attempt := 0; attempt < n.lookupAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(n.lookupDelay):
			}
		}
		tx, err = n.rpc.GetTransaction(ctx, signature)
		if err == nil && tx != nil {
			return tx, nil
		}
	}
	return tx, err
}

// matchParser returns the first parser whose program was invoked in
// the logs, or nil.
func (n *Normalizer) matchParser(logs []string) Parser {
	for _, p := range n.parsers {
		marker := "Program " + p.ProgramID() + " invoke"
		for _, l := range logs {
			if strings.Contains(l, marker) {
				return p
			}
		}
	}
	return nil
}

// enrichDeposit fills pool identity from on-chain state. Deposit logs
// carry only amounts; mints, vaults and market come from the pool
// account. Also verifies the account really is a Raydium pool before
// trusting the extracted address.
func (n *Normalizer) enrichDeposit(ctx context.Context, raw *RawPoolEvent) string {
	acc, err := n.rpc.GetAccountInfo(ctx, raw.PoolAddress)
	if err != nil {
		n.logger.Printf("[normalizer] getAccountInfo %s: %v", raw.PoolAddress, err)
		return DropPoolNotFound
	}
	if acc == nil {
		return DropPoolNotFound
	}
	if acc.Owner != RaydiumAMMV4 {
		return DropWrongOwner
	}
	state, err := DecodePoolState(acc.Data)
	if err != nil {
		n.logger.Printf("[normalizer] decode pool %s: %v", raw.PoolAddress, err)
		return DropBadPoolState
	}
	raw.BaseMint = state.BaseMint
	raw.QuoteMint = state.QuoteMint
	raw.BaseVault = state.BaseVault
	raw.QuoteVault = state.QuoteVault
	raw.MarketID = state.MarketID
	return ""
}

// orient fixes the event so QuoteMint is always WSOL. Raydium pools
// put SOL on either side; downstream code assumes the quote side is
// the one spent, so a pool with WSOL as its coin mint gets flipped.
func (n *Normalizer) orient(raw *RawPoolEvent, notif solana.LogNotification) (*domain.PoolEvent, string) {
	ev := &domain.PoolEvent{
		Kind:        raw.Kind,
		PoolAddress: raw.PoolAddress,
		MarketID:    raw.MarketID,
		TxSignature: notif.Signature,
		Slot:        notif.Slot,
		ObservedAt:  n.now().UnixMilli(),
	}

	switch {
	case raw.QuoteMint == WSOL:
		ev.BaseMint = raw.BaseMint
		ev.QuoteMint = raw.QuoteMint
		ev.BaseVault = raw.BaseVault
		ev.QuoteVault = raw.QuoteVault
		ev.InitialLiquidity = raw.PcAmount
	case raw.BaseMint == WSOL:
		ev.BaseMint = raw.QuoteMint
		ev.QuoteMint = raw.BaseMint
		ev.BaseVault = raw.QuoteVault
		ev.QuoteVault = raw.BaseVault
		ev.InitialLiquidity = raw.CoinAmount
	default:
		return nil, DropNoWSOLSide
	}

	return ev, ""
}
