// Package swap builds Raydium AMM swap transactions: constant-product
// quoting, program-derived account resolution, instruction encoding and
// legacy message compilation.
package swap

import "math/big"

// Raydium AMM v4 swap fee: 25 bps taken from the input amount.
const (
	swapFeeNumerator   = 25
	swapFeeDenominator = 10000
)

// bpsDenominator for slippage math.
const bpsDenominator = 10000

// ExpectedOut computes the constant-product output for amountIn against
// the given reserves, after the pool fee. Matches the on-chain formula:
// fee is deducted from the input, then out = Rout*in' / (Rin + in').
func ExpectedOut(amountIn, reserveIn, reserveOut uint64) uint64 {
	if amountIn == 0 || reserveIn == 0 || reserveOut == 0 {
		return 0
	}

	in := new(big.Int).SetUint64(amountIn)
	in.Mul(in, big.NewInt(swapFeeDenominator-swapFeeNumerator))
	in.Div(in, big.NewInt(swapFeeDenominator))

	rIn := new(big.Int).SetUint64(reserveIn)
	rOut := new(big.Int).SetUint64(reserveOut)

	num := new(big.Int).Mul(rOut, in)
	den := new(big.Int).Add(rIn, in)
	out := num.Div(num, den)

	if !out.IsUint64() {
		return 0
	}
	return out.Uint64()
}

// ApplySlippage reduces an expected output by the slippage tolerance.
// The result is always <= expectedOut.
func ApplySlippage(expectedOut uint64, slippageBps int) uint64 {
	if slippageBps <= 0 {
		return expectedOut
	}
	if slippageBps >= bpsDenominator {
		return 0
	}
	out := new(big.Int).SetUint64(expectedOut)
	out.Mul(out, big.NewInt(int64(bpsDenominator-slippageBps)))
	out.Div(out, big.NewInt(bpsDenominator))
	return out.Uint64()
}
