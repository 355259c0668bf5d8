package swap

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// compiledKey is one entry of the message account table with merged
// privilege flags across all instructions referencing it.
type compiledKey struct {
	pubkey   string
	signer   bool
	writable bool
}

// CompileMessage serializes instructions into a legacy transaction
// message: header, account table, blockhash, compiled instructions.
// The fee payer is forced to the first slot of the account table.
func CompileMessage(feePayer, recentBlockhash string, instrs []Instruction) ([]byte, error) {
	keys := collectKeys(feePayer, instrs)
	index := make(map[string]int, len(keys))
	for i, k := range keys {
		index[k.pubkey] = i
	}

	var numSigners, numReadonlySigned, numReadonlyUnsigned int
	for _, k := range keys {
		if k.signer {
			numSigners++
			if !k.writable {
				numReadonlySigned++
			}
		} else if !k.writable {
			numReadonlyUnsigned++
		}
	}

	buf := []byte{byte(numSigners), byte(numReadonlySigned), byte(numReadonlyUnsigned)}

	buf = appendShortvecLen(buf, len(keys))
	for _, k := range keys {
		kb, err := base58.Decode(k.pubkey)
		if err != nil || len(kb) != 32 {
			return nil, fmt.Errorf("invalid account key %q", k.pubkey)
		}
		buf = append(buf, kb...)
	}

	bh, err := base58.Decode(recentBlockhash)
	if err != nil || len(bh) != 32 {
		return nil, fmt.Errorf("invalid blockhash %q", recentBlockhash)
	}
	buf = append(buf, bh...)

	buf = appendShortvecLen(buf, len(instrs))
	for _, ix := range instrs {
		buf = append(buf, byte(index[ix.ProgramID]))
		buf = appendShortvecLen(buf, len(ix.Accounts))
		for _, acc := range ix.Accounts {
			buf = append(buf, byte(index[acc.Pubkey]))
		}
		buf = appendShortvecLen(buf, len(ix.Data))
		buf = append(buf, ix.Data...)
	}

	return buf, nil
}

// AssembleTransaction prepends the signature table to a compiled
// message. Single-signer transactions only; the fee payer's signature
// covers the whole message.
func AssembleTransaction(signature []byte, message []byte) []byte {
	tx := appendShortvecLen(nil, 1)
	tx = append(tx, signature...)
	return append(tx, message...)
}

// collectKeys builds the ordered account table: writable signers,
// readonly signers, writable non-signers, readonly non-signers, with
// the fee payer pinned first. Flags merge across instructions.
func collectKeys(feePayer string, instrs []Instruction) []compiledKey {
	merged := map[string]*compiledKey{
		feePayer: {pubkey: feePayer, signer: true, writable: true},
	}
	var order []string
	order = append(order, feePayer)

	touch := func(pubkey string, signer, writable bool) {
		k, ok := merged[pubkey]
		if !ok {
			k = &compiledKey{pubkey: pubkey}
			merged[pubkey] = k
			order = append(order, pubkey)
		}
		k.signer = k.signer || signer
		k.writable = k.writable || writable
	}

	for _, ix := range instrs {
		for _, acc := range ix.Accounts {
			touch(acc.Pubkey, acc.IsSigner, acc.IsWritable)
		}
		touch(ix.ProgramID, false, false)
	}

	var out []compiledKey
	appendClass := func(signer, writable bool) {
		for _, pk := range order {
			if pk == feePayer {
				continue
			}
			k := merged[pk]
			if k.signer == signer && k.writable == writable {
				out = append(out, *k)
			}
		}
	}

	out = append(out, *merged[feePayer])
	appendClass(true, true)
	appendClass(true, false)
	appendClass(false, true)
	appendClass(false, false)
	return out
}

// appendShortvecLen appends a compact-u16 length prefix.
func appendShortvecLen(buf []byte, n int) []byte {
	for {
		if n < 0x80 {
			return append(buf, byte(n))
		}
		buf = append(buf, byte(n&0x7f)|0x80)
		n >>= 7
	}
}
