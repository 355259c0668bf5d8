package discovery

import (
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"
)

// Raydium AMM v4 pool state account layout. The account is a packed
// struct: 32 u64 config fields, five u128/u64 swap counters, then the
// pubkey block. Only the pubkeys the sniper needs are decoded.
const (
	poolStateLen          = 752
	poolBaseVaultOffset   = 336
	poolQuoteVaultOffset  = 368
	poolBaseMintOffset    = 400
	poolQuoteMintOffset   = 432
	poolOpenOrdersOffset  = 496
	poolMarketIDOffset    = 528
	poolMarketProgOffset  = 560
	poolTargetOrdsOffset  = 592
	poolBaseDecimalOffset = 32 // u64, base token decimals
)

// PoolState is the subset of Raydium pool account state the sniper uses.
type PoolState struct {
	BaseDecimals    uint8
	BaseVault       string
	QuoteVault      string
	BaseMint        string
	QuoteMint       string
	OpenOrders      string
	MarketID        string
	MarketProgramID string
	TargetOrders    string
}

// DecodePoolState decodes a Raydium AMM v4 pool account.
func DecodePoolState(data []byte) (*PoolState, error) {
	if len(data) != poolStateLen {
		return nil, fmt.Errorf("pool state: expected %d bytes, got %d", poolStateLen, len(data))
	}
	return &PoolState{
		BaseDecimals:    uint8(binary.LittleEndian.Uint64(data[poolBaseDecimalOffset:])),
		BaseVault:       pubkeyAt(data, poolBaseVaultOffset),
		QuoteVault:      pubkeyAt(data, poolQuoteVaultOffset),
		BaseMint:        pubkeyAt(data, poolBaseMintOffset),
		QuoteMint:       pubkeyAt(data, poolQuoteMintOffset),
		OpenOrders:      pubkeyAt(data, poolOpenOrdersOffset),
		MarketID:        pubkeyAt(data, poolMarketIDOffset),
		MarketProgramID: pubkeyAt(data, poolMarketProgOffset),
		TargetOrders:    pubkeyAt(data, poolTargetOrdsOffset),
	}, nil
}

// OpenBook market account layout: 5 bytes padding + 8 bytes account
// flags, then the field block. Offsets match the market struct the
// OpenBook program serializes.
const (
	marketStateLen          = 388
	marketOwnAddressOffset  = 13
	marketVaultNonceOffset  = 45
	marketBaseMintOffset    = 53
	marketQuoteMintOffset   = 85
	marketBaseVaultOffset   = 117
	marketQuoteVaultOffset  = 165
	marketRequestQueueOff   = 221
	marketEventQueueOffset  = 253
	marketBidsOffset        = 285
	marketAsksOffset        = 317
)

// MarketState is the subset of OpenBook market state the sniper uses.
type MarketState struct {
	OwnAddress       string
	VaultSignerNonce uint64
	BaseMint         string
	QuoteMint        string
	BaseVault        string
	QuoteVault       string
	EventQueue       string
	Bids             string
	Asks             string
}

// DecodeMarketState decodes an OpenBook market account.
func DecodeMarketState(data []byte) (*MarketState, error) {
	if len(data) != marketStateLen {
		return nil, fmt.Errorf("market state: expected %d bytes, got %d", marketStateLen, len(data))
	}
	return &MarketState{
		OwnAddress:       pubkeyAt(data, marketOwnAddressOffset),
		VaultSignerNonce: binary.LittleEndian.Uint64(data[marketVaultNonceOffset:]),
		BaseMint:         pubkeyAt(data, marketBaseMintOffset),
		QuoteMint:        pubkeyAt(data, marketQuoteMintOffset),
		BaseVault:        pubkeyAt(data, marketBaseVaultOffset),
		QuoteVault:       pubkeyAt(data, marketQuoteVaultOffset),
		EventQueue:       pubkeyAt(data, marketEventQueueOffset),
		Bids:             pubkeyAt(data, marketBidsOffset),
		Asks:             pubkeyAt(data, marketAsksOffset),
	}, nil
}

func pubkeyAt(data []byte, offset int) string {
	return base58.Encode(data[offset : offset+32])
}
