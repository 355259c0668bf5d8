package solana

import "context"

// RPCClient defines the Solana RPC HTTP surface used by the sniper.
type RPCClient interface {
	// GetTransaction retrieves a transaction by signature.
	// Returns nil if the transaction is not found.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetAccountInfo retrieves account info by public key.
	// Returns nil if the account does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetMultipleAccounts retrieves several accounts in one call.
	// Missing accounts are nil in the returned slice, which always has
	// the same length as pubkeys.
	GetMultipleAccounts(ctx context.Context, pubkeys []string) ([]*AccountInfo, error)

	// GetTokenAccountBalance retrieves an SPL token account balance.
	GetTokenAccountBalance(ctx context.Context, pubkey string) (*TokenAmount, error)

	// GetLatestBlockhash retrieves a recent blockhash and the last block
	// height at which it remains valid.
	GetLatestBlockhash(ctx context.Context) (*LatestBlockhash, error)

	// SendTransaction submits a signed, serialized transaction and
	// returns its signature. Preflight is skipped; the node's JSON-RPC
	// rejection surfaces as *RPCError.
	SendTransaction(ctx context.Context, signedTx []byte) (string, error)

	// GetSignatureStatuses retrieves confirmation status for signatures.
	// Unknown signatures are nil in the returned slice.
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error)

	// GetSlot retrieves the current slot.
	GetSlot(ctx context.Context) (uint64, error)

	// GetBlockHeight retrieves the current block height. Block height
	// trails the slot number because skipped slots produce no block;
	// blockhash validity is bounded in block-height units.
	GetBlockHeight(ctx context.Context) (uint64, error)
}
