// Package stub provides in-memory fakes of the solana interfaces for tests.
package stub

import (
	"context"
	"sync"

	"solana-pool-sniper/internal/solana"
)

// RPCClient implements solana.RPCClient for testing. Map fields seed
// responses; the error hooks let tests script failure sequences.
type RPCClient struct {
	mu sync.Mutex

	Transactions  map[string]*solana.Transaction
	Accounts      map[string]*solana.AccountInfo
	TokenBalances map[string]*solana.TokenAmount
	Statuses      map[string]*solana.SignatureStatus
	Blockhash     solana.LatestBlockhash
	Slot          uint64
	BlockHeight   uint64

	// SendFunc, when set, overrides SendTransaction. Attempt counts
	// start at 1.
	SendFunc func(attempt int, signedTx []byte) (string, error)

	// SendErrs is a queue of errors returned by successive
	// SendTransaction calls before SentSignature succeeds.
	SendErrs      []error
	SentSignature string

	SendCalls      int
	BlockhashCalls int
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Transactions:  make(map[string]*solana.Transaction),
		Accounts:      make(map[string]*solana.AccountInfo),
		TokenBalances: make(map[string]*solana.TokenAmount),
		Statuses:      make(map[string]*solana.SignatureStatus),
		Blockhash:     solana.LatestBlockhash{Blockhash: "11111111111111111111111111111111", LastValidBlockHeight: 1000},
		SentSignature: "StubSignature1111111111111111111111111111111",
	}
}

// Compile-time interface check.
var _ solana.RPCClient = (*RPCClient)(nil)

// GetTransaction retrieves a transaction from the stub store.
// Returns nil when unknown, matching the HTTP client.
func (c *RPCClient) GetTransaction(_ context.Context, signature string) (*solana.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Transactions[signature], nil
}

// GetAccountInfo retrieves an account from the stub store.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Accounts[pubkey], nil
}

// GetMultipleAccounts retrieves accounts from the stub store.
func (c *RPCClient) GetMultipleAccounts(_ context.Context, pubkeys []string) ([]*solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	accounts := make([]*solana.AccountInfo, len(pubkeys))
	for i, pk := range pubkeys {
		accounts[i] = c.Accounts[pk]
	}
	return accounts, nil
}

// GetTokenAccountBalance retrieves a balance from the stub store.
func (c *RPCClient) GetTokenAccountBalance(_ context.Context, pubkey string) (*solana.TokenAmount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if amt, ok := c.TokenBalances[pubkey]; ok {
		return amt, nil
	}
	return &solana.TokenAmount{}, nil
}

// GetLatestBlockhash returns the seeded blockhash.
func (c *RPCClient) GetLatestBlockhash(_ context.Context) (*solana.LatestBlockhash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.BlockhashCalls++
	bh := c.Blockhash
	return &bh, nil
}

// SendTransaction runs the scripted error queue, then succeeds.
func (c *RPCClient) SendTransaction(_ context.Context, signedTx []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SendCalls++
	if c.SendFunc != nil {
		return c.SendFunc(c.SendCalls, signedTx)
	}
	if len(c.SendErrs) > 0 {
		err := c.SendErrs[0]
		c.SendErrs = c.SendErrs[1:]
		return "", err
	}
	return c.SentSignature, nil
}

// GetSignatureStatuses retrieves statuses from the stub store.
func (c *RPCClient) GetSignatureStatuses(_ context.Context, signatures []string) ([]*solana.SignatureStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	statuses := make([]*solana.SignatureStatus, len(signatures))
	for i, sig := range signatures {
		statuses[i] = c.Statuses[sig]
	}
	return statuses, nil
}

// GetSlot returns the seeded slot.
func (c *RPCClient) GetSlot(_ context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Slot, nil
}

// SetStatus seeds a signature status (safe for concurrent use).
func (c *RPCClient) SetStatus(signature string, status *solana.SignatureStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Statuses[signature] = status
}

// GetBlockHeight returns the seeded block height.
func (c *RPCClient) GetBlockHeight(_ context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.BlockHeight, nil
}

// SetSlot updates the current slot (safe for concurrent use).
func (c *RPCClient) SetSlot(slot uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Slot = slot
}

// SetBlockHeight updates the current block height (safe for
// concurrent use).
func (c *RPCClient) SetBlockHeight(height uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.BlockHeight = height
}
