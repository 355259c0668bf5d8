package solana

import "context"

// WSClient defines the Solana WebSocket subscription surface.
type WSClient interface {
	// SubscribeLogs subscribes to transaction logs matching the filter.
	// The returned channel stays open across transparent reconnects and
	// closes only when the client is closed.
	SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error)

	// Close closes the WebSocket connection and all subscriptions.
	Close() error
}

// LogsFilter defines a logsSubscribe filter.
type LogsFilter struct {
	// Mentions filters logs mentioning any of these addresses.
	// Empty subscribes to all logs.
	Mentions []string
	// Commitment for notifications ("processed", "confirmed",
	// "finalized"). Defaults to "confirmed", the earliest level at
	// which getTransaction can resolve the notified signature.
	Commitment string
}

// LogNotification is one logsSubscribe message.
type LogNotification struct {
	Signature string
	Slot      uint64
	Logs      []string
	Err       interface{} // non-nil when the observed transaction reverted
}
