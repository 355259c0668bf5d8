package discovery

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"testing"

	"solana-pool-sniper/internal/domain"
)

func initAccountKeys() []string {
	keys := make([]string, 20)
	for i := range keys {
		keys[i] = fmt.Sprintf("Account%d", i)
	}
	keys[initAmmIDIndex] = "PoolAddr"
	keys[initBaseMintIndex] = "BaseMint"
	keys[initQuoteMintIndex] = "QuoteMint"
	keys[initBaseVaultIndex] = "BaseVault"
	keys[initPcVaultIndex] = "QuoteVault"
	keys[initMarketIndex] = "MarketID"
	return keys
}

func TestRaydiumParserInit(t *testing.T) {
	p := NewRaydiumParser()
	logs := []string{
		"Program " + RaydiumAMMV4 + " invoke [1]",
		"Program log: initialize2: InitializeInstruction2 { nonce: 254, open_time: 0, init_pc_amount: 30000000000, init_coin_amount: 1000000000000 }",
		"Program " + RaydiumAMMV4 + " success",
	}

	ev := p.Parse(logs, initAccountKeys())
	if ev == nil {
		t.Fatal("expected event, got nil")
	}
	if ev.Kind != domain.PoolCreated {
		t.Errorf("kind = %q, want %q", ev.Kind, domain.PoolCreated)
	}
	if ev.PoolAddress != "PoolAddr" {
		t.Errorf("pool = %q, want PoolAddr", ev.PoolAddress)
	}
	if ev.BaseMint != "BaseMint" || ev.QuoteMint != "QuoteMint" {
		t.Errorf("mints = %q/%q", ev.BaseMint, ev.QuoteMint)
	}
	if ev.MarketID != "MarketID" {
		t.Errorf("market = %q", ev.MarketID)
	}
	if ev.PcAmount != 30000000000 {
		t.Errorf("pc amount = %d, want 30000000000", ev.PcAmount)
	}
	if ev.CoinAmount != 1000000000000 {
		t.Errorf("coin amount = %d, want 1000000000000", ev.CoinAmount)
	}
}

func TestRaydiumParserDeposit(t *testing.T) {
	payload := make([]byte, 17)
	payload[0] = rayLogDeposit
	binary.LittleEndian.PutUint64(payload[1:], 5000000)     // max_coin
	binary.LittleEndian.PutUint64(payload[9:], 12000000000) // max_pc

	p := NewRaydiumParser()
	logs := []string{
		"Program " + RaydiumAMMV4 + " invoke [1]",
		"Program log: ray_log: " + base64.StdEncoding.EncodeToString(payload),
	}
	keys := []string{"TokenProgram", "PoolAddr", "Authority"}

	ev := p.Parse(logs, keys)
	if ev == nil {
		t.Fatal("expected event, got nil")
	}
	if ev.Kind != domain.LiquidityAdded {
		t.Errorf("kind = %q, want %q", ev.Kind, domain.LiquidityAdded)
	}
	if ev.PoolAddress != "PoolAddr" {
		t.Errorf("pool = %q, want PoolAddr", ev.PoolAddress)
	}
	if ev.CoinAmount != 5000000 || ev.PcAmount != 12000000000 {
		t.Errorf("amounts = %d/%d", ev.CoinAmount, ev.PcAmount)
	}
}

func TestRaydiumParserIgnoresWithdraw(t *testing.T) {
	payload := make([]byte, 17)
	payload[0] = rayLogWithdraw

	p := NewRaydiumParser()
	logs := []string{
		"Program " + RaydiumAMMV4 + " invoke [1]",
		"Program log: ray_log: " + base64.StdEncoding.EncodeToString(payload),
	}

	if ev := p.Parse(logs, []string{"A", "B"}); ev != nil {
		t.Errorf("expected nil for withdraw log, got %+v", ev)
	}
}

func TestRaydiumParserIgnoresUnrelatedLogs(t *testing.T) {
	p := NewRaydiumParser()
	logs := []string{
		"Program TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA invoke [1]",
		"Program log: Instruction: Transfer",
	}

	if ev := p.Parse(logs, initAccountKeys()); ev != nil {
		t.Errorf("expected nil for unrelated logs, got %+v", ev)
	}
}

func TestRaydiumParserMalformedInit(t *testing.T) {
	p := NewRaydiumParser()
	logs := []string{
		"Program " + RaydiumAMMV4 + " invoke [1]",
		"Program log: initialize2: InitializeInstruction2 { nonce: 254, open_time: 0, init_pc_amount: 30000000000, init_coin_amount: 1000000000000 }",
	}

	// Too few account keys for the fixed init layout.
	if ev := p.Parse(logs, []string{"A", "B", "C"}); ev != nil {
		t.Errorf("expected nil for short account keys, got %+v", ev)
	}
}
