package stub

import (
	"context"
	"sync"

	"solana-pool-sniper/internal/solana"
)

// WSClient implements solana.WSClient for testing. Tests push
// notifications into Notifications; Close ends the stream.
type WSClient struct {
	Notifications chan solana.LogNotification

	// Filter records the filter passed to SubscribeLogs.
	Filter solana.LogsFilter

	// SubscribeErr, when set, fails SubscribeLogs.
	SubscribeErr error

	closeOnce sync.Once
}

// NewWSClient creates a new stub WebSocket client.
func NewWSClient() *WSClient {
	return &WSClient{
		Notifications: make(chan solana.LogNotification, 64),
	}
}

// Compile-time interface check.
var _ solana.WSClient = (*WSClient)(nil)

// SubscribeLogs returns the test-controlled notification channel.
func (c *WSClient) SubscribeLogs(_ context.Context, filter solana.LogsFilter) (<-chan solana.LogNotification, error) {
	if c.SubscribeErr != nil {
		return nil, c.SubscribeErr
	}
	c.Filter = filter
	return c.Notifications, nil
}

// Close closes the notification channel. Safe to call more than once.
func (c *WSClient) Close() error {
	c.closeOnce.Do(func() { close(c.Notifications) })
	return nil
}
