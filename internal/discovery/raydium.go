package discovery

import (
	"encoding/base64"
	"encoding/binary"
	"regexp"
	"strconv"
	"strings"

	"solana-pool-sniper/internal/domain"
)

// Account key positions within a Raydium initialize2 transaction.
// The pool-init transaction has a stable account layout; the original
// AMM instruction places these accounts at fixed indices.
const (
	initAmmIDIndex     = 4
	initBaseMintIndex  = 8
	initQuoteMintIndex = 9
	initBaseVaultIndex = 10
	initPcVaultIndex   = 11
	initMarketIndex    = 16
)

// depositPoolIndex is the AMM pool position in a deposit transaction's
// account keys. Deposits don't identify mints in logs; the normalizer
// verifies the account and fills identity from on-chain pool state.
const depositPoolIndex = 1

// ray_log instruction discriminators.
const (
	rayLogInit     = 0x00
	rayLogDeposit  = 0x03
	rayLogWithdraw = 0x04
)

// RaydiumParser parses Raydium AMM v4 pool-init and deposit events.
type RaydiumParser struct {
	initPattern   *regexp.Regexp
	rayLogPattern *regexp.Regexp
}

// NewRaydiumParser creates a Raydium AMM v4 parser.
func NewRaydiumParser() *RaydiumParser {
	return &RaydiumParser{
		// Raydium logs the init parameters in debug-format:
		// "initialize2: InitializeInstruction2 { nonce: 254, open_time: 0,
		//  init_pc_amount: 30000000000, init_coin_amount: 10000000 }"
		initPattern:   regexp.MustCompile(`initialize2: InitializeInstruction2 \{ nonce: (\d+), open_time: (\d+), init_pc_amount: (\d+), init_coin_amount: (\d+) \}`),
		rayLogPattern: regexp.MustCompile(`ray_log: ([A-Za-z0-9+/=]+)`),
	}
}

// Compile-time interface check.
var _ Parser = (*RaydiumParser)(nil)

// ProgramID returns the Raydium AMM v4 program ID.
func (p *RaydiumParser) ProgramID() string {
	return RaydiumAMMV4
}

// Parse extracts a pool-init or deposit event from transaction logs.
func (p *RaydiumParser) Parse(logs []string, accountKeys []string) *RawPoolEvent {
	if !p.invoked(logs) {
		return nil
	}

	if ev := p.parseInit(logs, accountKeys); ev != nil {
		return ev
	}
	return p.parseDeposit(logs, accountKeys)
}

func (p *RaydiumParser) invoked(logs []string) bool {
	marker := "Program " + RaydiumAMMV4 + " invoke"
	for _, l := range logs {
		if strings.Contains(l, marker) {
			return true
		}
	}
	return false
}

// parseInit handles pool creation. Amounts come from the logged init
// parameters, identity from the transaction's account keys.
func (p *RaydiumParser) parseInit(logs []string, accountKeys []string) *RawPoolEvent {
	var pcAmount, coinAmount uint64
	found := false
	for _, l := range logs {
		m := p.initPattern.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		pc, errPc := strconv.ParseUint(m[3], 10, 64)
		coin, errCoin := strconv.ParseUint(m[4], 10, 64)
		if errPc != nil || errCoin != nil {
			return nil
		}
		pcAmount, coinAmount = pc, coin
		found = true
		break
	}
	if !found {
		return nil
	}

	if len(accountKeys) <= initMarketIndex {
		return nil
	}

	return &RawPoolEvent{
		Kind:        domain.PoolCreated,
		PoolAddress: accountKeys[initAmmIDIndex],
		BaseMint:    accountKeys[initBaseMintIndex],
		QuoteMint:   accountKeys[initQuoteMintIndex],
		BaseVault:   accountKeys[initBaseVaultIndex],
		QuoteVault:  accountKeys[initPcVaultIndex],
		MarketID:    accountKeys[initMarketIndex],
		CoinAmount:  coinAmount,
		PcAmount:    pcAmount,
	}
}

// parseDeposit handles liquidity adds, signaled by a ray_log payload
// with the deposit discriminator: disc(1) + max_coin(8) + max_pc(8) ...
func (p *RaydiumParser) parseDeposit(logs []string, accountKeys []string) *RawPoolEvent {
	for _, l := range logs {
		m := p.rayLogPattern.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(m[1])
		if err != nil || len(data) < 17 {
			continue
		}
		if data[0] != rayLogDeposit {
			continue
		}
		if len(accountKeys) <= depositPoolIndex {
			return nil
		}
		return &RawPoolEvent{
			Kind:        domain.LiquidityAdded,
			PoolAddress: accountKeys[depositPoolIndex],
			CoinAmount:  binary.LittleEndian.Uint64(data[1:9]),
			PcAmount:    binary.LittleEndian.Uint64(data[9:17]),
		}
	}
	return nil
}
