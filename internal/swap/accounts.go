package swap

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Core program IDs.
const (
	SystemProgram      = "11111111111111111111111111111111"
	TokenProgram       = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	AssociatedTokenPrg = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
	ComputeBudgetPrg   = "ComputeBudget111111111111111111111111111111"
)

var errNoValidBump = errors.New("no valid program address bump found")

// pdaMarker is appended to the seed material of every program-derived
// address per the runtime's derivation scheme.
var pdaMarker = []byte("ProgramDerivedAddress")

// CreateProgramAddress derives an address from seeds and a program ID.
// Fails when the resulting point lies on the ed25519 curve, since a PDA
// must have no corresponding private key.
func CreateProgramAddress(seeds [][]byte, programID string) (string, error) {
	prg, err := base58.Decode(programID)
	if err != nil {
		return "", fmt.Errorf("decode program id: %w", err)
	}

	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > 32 {
			return "", errors.New("seed exceeds 32 bytes")
		}
		h.Write(seed)
	}
	h.Write(prg)
	h.Write(pdaMarker)
	sum := h.Sum(nil)

	// On-curve hashes are invalid PDAs; SetBytes succeeds only for
	// canonical curve points.
	if _, err := new(edwards25519.Point).SetBytes(sum); err == nil {
		return "", errors.New("derived address is on curve")
	}
	return base58.Encode(sum), nil
}

// FindProgramAddress finds the PDA and bump seed for the given seeds,
// trying bumps from 255 downward.
func FindProgramAddress(seeds [][]byte, programID string) (string, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		addr, err := CreateProgramAddress(append(seeds, []byte{byte(bump)}), programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
	}
	return "", 0, errNoValidBump
}

// AssociatedTokenAddress derives the canonical token account for a
// wallet and mint.
func AssociatedTokenAddress(wallet, mint string) (string, error) {
	walletB, err := base58.Decode(wallet)
	if err != nil {
		return "", fmt.Errorf("decode wallet: %w", err)
	}
	tokenPrgB, err := base58.Decode(TokenProgram)
	if err != nil {
		return "", err
	}
	mintB, err := base58.Decode(mint)
	if err != nil {
		return "", fmt.Errorf("decode mint: %w", err)
	}
	addr, _, err := FindProgramAddress([][]byte{walletB, tokenPrgB, mintB}, AssociatedTokenPrg)
	return addr, err
}

// SerumVaultSigner derives the market's vault signer from the nonce
// stored in market state. The seed is the market address plus the
// nonce as a little-endian u64.
func SerumVaultSigner(marketID string, nonce uint64, serumProgram string) (string, error) {
	marketB, err := base58.Decode(marketID)
	if err != nil {
		return "", fmt.Errorf("decode market id: %w", err)
	}
	nonceB := make([]byte, 8)
	binary.LittleEndian.PutUint64(nonceB, nonce)
	return CreateProgramAddress([][]byte{marketB, nonceB}, serumProgram)
}
