package swap

import "encoding/binary"

// AccountMeta describes one account referenced by an instruction.
type AccountMeta struct {
	Pubkey     string
	IsSigner   bool
	IsWritable bool
}

// Instruction is a single on-chain instruction before compilation.
type Instruction struct {
	ProgramID string
	Accounts  []AccountMeta
	Data      []byte
}

// Compute budget instruction discriminators.
const (
	computeBudgetSetUnitLimit = 0x02
	computeBudgetSetUnitPrice = 0x03
)

// SetComputeUnitLimit caps the transaction's compute units.
func SetComputeUnitLimit(units uint32) Instruction {
	data := make([]byte, 5)
	data[0] = computeBudgetSetUnitLimit
	binary.LittleEndian.PutUint32(data[1:], units)
	return Instruction{ProgramID: ComputeBudgetPrg, Data: data}
}

// SetComputeUnitPrice sets the priority fee in micro-lamports per
// compute unit.
func SetComputeUnitPrice(microLamports uint64) Instruction {
	data := make([]byte, 9)
	data[0] = computeBudgetSetUnitPrice
	binary.LittleEndian.PutUint64(data[1:], microLamports)
	return Instruction{ProgramID: ComputeBudgetPrg, Data: data}
}

// CreateATAIdempotent creates the owner's associated token account for
// mint, as a no-op when it already exists. Discriminator 1 is the
// CreateIdempotent variant.
func CreateATAIdempotent(payer, owner, mint, ata string) Instruction {
	return Instruction{
		ProgramID: AssociatedTokenPrg,
		Accounts: []AccountMeta{
			{Pubkey: payer, IsSigner: true, IsWritable: true},
			{Pubkey: ata, IsWritable: true},
			{Pubkey: owner},
			{Pubkey: mint},
			{Pubkey: SystemProgram},
			{Pubkey: TokenProgram},
		},
		Data: []byte{1},
	}
}

// raydiumSwapBaseIn is the swap_base_in instruction discriminator.
const raydiumSwapBaseIn = 9

// SwapAccounts carries every account the Raydium swap instruction
// references, in resolution order rather than wire order.
type SwapAccounts struct {
	AMMProgram    string
	AMM           string
	AMMAuthority  string
	OpenOrders    string
	TargetOrders  string
	PoolCoinVault string
	PoolPcVault   string
	SerumProgram  string
	SerumMarket   string
	SerumBids     string
	SerumAsks     string
	SerumEventQ   string
	SerumCoinVlt  string
	SerumPcVault  string
	SerumSigner   string
	UserSource    string
	UserDest      string
	UserOwner     string
}

// SwapBaseIn builds the Raydium AMM v4 swap_base_in instruction: spend
// exactly amountIn, receive at least minAmountOut or fail on chain. The
// account order is fixed by the program.
func SwapBaseIn(a SwapAccounts, amountIn, minAmountOut uint64) Instruction {
	data := make([]byte, 17)
	data[0] = raydiumSwapBaseIn
	binary.LittleEndian.PutUint64(data[1:], amountIn)
	binary.LittleEndian.PutUint64(data[9:], minAmountOut)

	return Instruction{
		ProgramID: a.AMMProgram,
		Accounts: []AccountMeta{
			{Pubkey: TokenProgram},
			{Pubkey: a.AMM, IsWritable: true},
			{Pubkey: a.AMMAuthority},
			{Pubkey: a.OpenOrders, IsWritable: true},
			{Pubkey: a.TargetOrders, IsWritable: true},
			{Pubkey: a.PoolCoinVault, IsWritable: true},
			{Pubkey: a.PoolPcVault, IsWritable: true},
			{Pubkey: a.SerumProgram},
			{Pubkey: a.SerumMarket, IsWritable: true},
			{Pubkey: a.SerumBids, IsWritable: true},
			{Pubkey: a.SerumAsks, IsWritable: true},
			{Pubkey: a.SerumEventQ, IsWritable: true},
			{Pubkey: a.SerumCoinVlt, IsWritable: true},
			{Pubkey: a.SerumPcVault, IsWritable: true},
			{Pubkey: a.SerumSigner},
			{Pubkey: a.UserSource, IsWritable: true},
			{Pubkey: a.UserDest, IsWritable: true},
			{Pubkey: a.UserOwner, IsSigner: true, IsWritable: true},
		},
		Data: data,
	}
}
