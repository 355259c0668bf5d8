// Package wallet loads the signing keypair and signs transaction
// messages. Supports the standard JSON keypair file (64-byte array as
// written by solana-keygen) and a raw base58-encoded secret key.
package wallet

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mr-tron/base58"
)

var errBadKeyLength = errors.New("keypair must be 64 bytes (secret || public)")

// Wallet holds the signing key. Immutable after construction.
type Wallet struct {
	priv   ed25519.PrivateKey
	pubkey string
}

// Load reads a JSON keypair file.
func Load(path string) (*Wallet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keypair file: %w", err)
	}
	// The file is a JSON array of byte values, not a base64 string.
	var ints []int
	if err := json.Unmarshal(raw, &ints); err != nil {
		return nil, fmt.Errorf("parse keypair file: %w", err)
	}
	bytes := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("keypair byte %d out of range: %d", i, v)
		}
		bytes[i] = byte(v)
	}
	return fromBytes(bytes)
}

// FromBase58 parses a base58-encoded 64-byte keypair.
func FromBase58(encoded string) (*Wallet, error) {
	bytes, err := base58.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	return fromBytes(bytes)
}

func fromBytes(bytes []byte) (*Wallet, error) {
	if len(bytes) != ed25519.PrivateKeySize {
		return nil, errBadKeyLength
	}
	priv := ed25519.PrivateKey(bytes)
	return &Wallet{
		priv:   priv,
		pubkey: base58.Encode(priv.Public().(ed25519.PublicKey)),
	}, nil
}

// Pubkey returns the base58 public key.
func (w *Wallet) Pubkey() string {
	return w.pubkey
}

// Sign signs a compiled transaction message.
func (w *Wallet) Sign(message []byte) []byte {
	return ed25519.Sign(w.priv, message)
}
