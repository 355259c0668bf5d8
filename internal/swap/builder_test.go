package swap

import (
	"context"
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/mr-tron/base58"

	"solana-pool-sniper/internal/discovery"
	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/solana"
	"solana-pool-sniper/internal/solana/stub"
)

// Raw account layout offsets, mirrored here to build fixtures.
const (
	fixPoolLen        = 752
	fixPoolBaseVault  = 336
	fixPoolQuoteVault = 368
	fixPoolBaseMint   = 400
	fixPoolQuoteMint  = 432
	fixPoolOpenOrders = 496
	fixPoolMarketID   = 528
	fixPoolMarketPrg  = 560
	fixPoolTargetOrds = 592

	fixMarketLen        = 388
	fixMarketOwnAddr    = 13
	fixMarketVaultNonce = 45
	fixMarketBaseVault  = 117
	fixMarketQuoteVault = 165
	fixMarketEventQueue = 253
	fixMarketBids       = 285
	fixMarketAsks       = 317
)

func fixKey(b byte) []byte {
	k := make([]byte, 32)
	for i := range k {
		k[i] = b
	}
	return k
}

type builderFixture struct {
	rpc    *stub.RPCClient
	owner  string
	intent *domain.BuyIntent
}

func newBuilderFixture(t *testing.T) *builderFixture {
	t.Helper()

	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	owner := base58.Encode(pub)

	pool := base58.Encode(fixKey(0x10))
	marketID := base58.Encode(fixKey(0x20))
	targetMint := base58.Encode(fixKey(0x44))
	baseVault := base58.Encode(fixKey(0x11))
	quoteVault := base58.Encode(fixKey(0x12))

	wsolRaw, err := base58.Decode(discovery.WSOL)
	if err != nil {
		t.Fatal(err)
	}

	// The vault signer nonce must derive to an off-curve address.
	nonce := uint64(0)
	for ; nonce < 256; nonce++ {
		if _, err := SerumVaultSigner(marketID, nonce, discovery.OpenBook); err == nil {
			break
		}
	}
	if nonce == 256 {
		t.Fatal("no valid vault signer nonce")
	}

	poolData := make([]byte, fixPoolLen)
	copy(poolData[fixPoolBaseVault:], fixKey(0x11))
	copy(poolData[fixPoolQuoteVault:], fixKey(0x12))
	copy(poolData[fixPoolBaseMint:], fixKey(0x44))
	copy(poolData[fixPoolQuoteMint:], wsolRaw)
	copy(poolData[fixPoolOpenOrders:], fixKey(0x13))
	copy(poolData[fixPoolMarketID:], fixKey(0x20))
	openBookRaw, _ := base58.Decode(discovery.OpenBook)
	copy(poolData[fixPoolMarketPrg:], openBookRaw)
	copy(poolData[fixPoolTargetOrds:], fixKey(0x14))

	marketData := make([]byte, fixMarketLen)
	copy(marketData[fixMarketOwnAddr:], fixKey(0x20))
	binary.LittleEndian.PutUint64(marketData[fixMarketVaultNonce:], nonce)
	copy(marketData[fixMarketBaseVault:], fixKey(0x21))
	copy(marketData[fixMarketQuoteVault:], fixKey(0x22))
	copy(marketData[fixMarketEventQueue:], fixKey(0x23))
	copy(marketData[fixMarketBids:], fixKey(0x24))
	copy(marketData[fixMarketAsks:], fixKey(0x25))

	rpc := stub.NewRPCClient()
	rpc.Slot = 100
	rpc.Blockhash = solana.LatestBlockhash{
		Blockhash:            base58.Encode(fixKey(0x77)),
		LastValidBlockHeight: 5000,
	}
	rpc.Accounts[pool] = &solana.AccountInfo{Owner: discovery.RaydiumAMMV4, Data: poolData}
	rpc.Accounts[marketID] = &solana.AccountInfo{Owner: discovery.OpenBook, Data: marketData}
	rpc.TokenBalances[quoteVault] = &solana.TokenAmount{Amount: 100_000_000_000, Decimals: 9}
	rpc.TokenBalances[baseVault] = &solana.TokenAmount{Amount: 1_000_000_000_000, Decimals: 6}

	return &builderFixture{
		rpc:   rpc,
		owner: owner,
		intent: &domain.BuyIntent{
			PoolAddress:    pool,
			TargetMint:     targetMint,
			QuoteMint:      discovery.WSOL,
			MarketID:       marketID,
			QuoteAmountIn:  1_000_000_000,
			MaxSlippageBps: 500,
			DeadlineSlot:   400,
		},
	}
}

func TestBuildSwapTransaction(t *testing.T) {
	f := newBuilderFixture(t)
	b := NewBuilder(f.rpc, f.owner, BuilderConfig{
		PriorityFeeMicroLamports: 10_000,
		ComputeUnitLimit:         200_000,
		DustThreshold:            1,
	}, nil)

	tx, err := b.Build(context.Background(), f.intent)
	if err != nil {
		t.Fatal(err)
	}

	wantExpected := ExpectedOut(f.intent.QuoteAmountIn, 100_000_000_000, 1_000_000_000_000)
	if tx.ExpectedOut != wantExpected {
		t.Errorf("expected out = %d, want %d", tx.ExpectedOut, wantExpected)
	}
	if tx.MinAmountOut > tx.ExpectedOut {
		t.Errorf("minOut %d > expected %d", tx.MinAmountOut, tx.ExpectedOut)
	}
	if tx.Blockhash != f.rpc.Blockhash.Blockhash {
		t.Errorf("blockhash = %q", tx.Blockhash)
	}
	if tx.LastValidBlockHeight != 5000 {
		t.Errorf("last valid block height = %d", tx.LastValidBlockHeight)
	}
	if len(tx.Message) == 0 {
		t.Error("empty message")
	}
	// Header: owner is the only signer.
	if tx.Message[0] != 1 {
		t.Errorf("num signers = %d, want 1", tx.Message[0])
	}
}

// A sell routes through the same pool with the sides reversed: the
// target mint goes in, the quote mint comes out, priced off the
// reversed reserves.
func TestBuildSellReversesSwapSides(t *testing.T) {
	f := newBuilderFixture(t)
	b := NewBuilder(f.rpc, f.owner, BuilderConfig{
		PriorityFeeMicroLamports: 10_000,
		ComputeUnitLimit:         200_000,
		DustThreshold:            1,
	}, nil)

	tx, err := b.BuildSell(context.Background(), f.intent, 1_000_000_000)
	if err != nil {
		t.Fatal(err)
	}

	wantExpected := ExpectedOut(1_000_000_000, 1_000_000_000_000, 100_000_000_000)
	if tx.ExpectedOut != wantExpected {
		t.Errorf("expected out = %d, want %d", tx.ExpectedOut, wantExpected)
	}
	if tx.MinAmountOut > tx.ExpectedOut {
		t.Errorf("minOut %d > expected %d", tx.MinAmountOut, tx.ExpectedOut)
	}
	if len(tx.Message) == 0 {
		t.Error("empty message")
	}
}

// Selling is not bound by the intent's deadline slot; a position can be
// unwound long after the buy window closed.
func TestBuildSellIgnoresDeadline(t *testing.T) {
	f := newBuilderFixture(t)
	f.rpc.SetSlot(f.intent.DeadlineSlot + 1)
	b := NewBuilder(f.rpc, f.owner, BuilderConfig{DustThreshold: 1}, nil)

	if _, err := b.BuildSell(context.Background(), f.intent, 1_000_000_000); err != nil {
		t.Fatal(err)
	}
}

func TestBuildDeadlineExceeded(t *testing.T) {
	f := newBuilderFixture(t)
	f.rpc.SetSlot(f.intent.DeadlineSlot + 1)
	b := NewBuilder(f.rpc, f.owner, BuilderConfig{DustThreshold: 1}, nil)

	_, err := b.Build(context.Background(), f.intent)
	if !errors.Is(err, ErrDeadlineExceeded) {
		t.Errorf("err = %v, want ErrDeadlineExceeded", err)
	}
}

func TestBuildQuoteUnavailableOnDust(t *testing.T) {
	f := newBuilderFixture(t)
	b := NewBuilder(f.rpc, f.owner, BuilderConfig{DustThreshold: 1 << 62}, nil)

	_, err := b.Build(context.Background(), f.intent)
	if !errors.Is(err, ErrQuoteUnavailable) {
		t.Errorf("err = %v, want ErrQuoteUnavailable", err)
	}
}

func TestBuildQuoteUnavailableOnEmptyReserves(t *testing.T) {
	f := newBuilderFixture(t)
	quoteVault := base58.Encode(fixKey(0x12))
	f.rpc.TokenBalances[quoteVault] = &solana.TokenAmount{Amount: 0}
	b := NewBuilder(f.rpc, f.owner, BuilderConfig{DustThreshold: 1}, nil)

	_, err := b.Build(context.Background(), f.intent)
	if !errors.Is(err, ErrQuoteUnavailable) {
		t.Errorf("err = %v, want ErrQuoteUnavailable", err)
	}
}

func TestBuildMissingPoolAccount(t *testing.T) {
	f := newBuilderFixture(t)
	delete(f.rpc.Accounts, f.intent.PoolAddress)
	b := NewBuilder(f.rpc, f.owner, BuilderConfig{DustThreshold: 1}, nil)

	_, err := b.Build(context.Background(), f.intent)
	if !errors.Is(err, ErrPoolUnavailable) {
		t.Errorf("err = %v, want ErrPoolUnavailable", err)
	}
}

func TestBuildWrongPoolOwner(t *testing.T) {
	f := newBuilderFixture(t)
	f.rpc.Accounts[f.intent.PoolAddress].Owner = SystemProgram
	b := NewBuilder(f.rpc, f.owner, BuilderConfig{DustThreshold: 1}, nil)

	_, err := b.Build(context.Background(), f.intent)
	if !errors.Is(err, ErrPoolUnavailable) {
		t.Errorf("err = %v, want ErrPoolUnavailable", err)
	}
}

// Each build fetches a fresh blockhash so a rebuild after expiry never
// reuses the stale one.
func TestBuildFetchesFreshBlockhash(t *testing.T) {
	f := newBuilderFixture(t)
	b := NewBuilder(f.rpc, f.owner, BuilderConfig{DustThreshold: 1}, nil)

	if _, err := b.Build(context.Background(), f.intent); err != nil {
		t.Fatal(err)
	}
	f.rpc.Blockhash = solana.LatestBlockhash{
		Blockhash:            base58.Encode(fixKey(0x78)),
		LastValidBlockHeight: 6000,
	}
	tx2, err := b.Build(context.Background(), f.intent)
	if err != nil {
		t.Fatal(err)
	}
	if tx2.Blockhash != base58.Encode(fixKey(0x78)) {
		t.Errorf("second build blockhash = %q, want refreshed", tx2.Blockhash)
	}
	if f.rpc.BlockhashCalls != 2 {
		t.Errorf("blockhash calls = %d, want 2", f.rpc.BlockhashCalls)
	}
}
