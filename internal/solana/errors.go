package solana

import (
	"errors"
	"fmt"
	"strings"
)

// RPCError represents a JSON-RPC 2.0 error returned by the node.
// These are node-level rejections (simulation failure, invalid
// transaction, slippage guard) and are not retried by the client.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// IsRejected reports whether err is a node-level JSON-RPC rejection,
// as opposed to a transport fault worth retrying.
func IsRejected(err error) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr)
}

// IsBlockhashNotFound reports whether err indicates the transaction's
// blockhash is unknown to the node (typically expired). Such
// transactions are permanently invalid and must be rebuilt.
func IsBlockhashNotFound(err error) bool {
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		return false
	}
	return strings.Contains(strings.ToLower(rpcErr.Message), "blockhash not found")
}
