package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"solana-pool-sniper/internal/observability"
)

// WSConfig configures WebSocket client behavior.
type WSConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the exponential reconnect backoff.
	MaxReconnectDelay time.Duration
	// PingInterval is the keepalive ping period.
	PingInterval time.Duration
	// ReadTimeout bounds a single read; must exceed PingInterval.
	ReadTimeout time.Duration
	// WriteTimeout bounds a single write.
	WriteTimeout time.Duration
	// SubscribeTimeout bounds the wait for a subscription confirmation.
	SubscribeTimeout time.Duration
	// ChannelBuffer is the per-subscription notification buffer. When a
	// downstream consumer falls behind and the buffer fills, further
	// notifications are dropped with a logged warning; nothing buffers
	// unbounded.
	ChannelBuffer int
	// Logger for connection lifecycle events. Defaults to log.Default().
	Logger *log.Logger
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		SubscribeTimeout:  30 * time.Second,
		ChannelBuffer:     1024,
	}
}

// WSClientImpl implements WSClient using gorilla/websocket.
// A single read loop owns the connection: on read failure it reconnects
// with exponential backoff and replays every active subscription before
// resuming dispatch.
type WSClientImpl struct {
	endpoint string
	config   WSConfig
	logger   *log.Logger

	conn   *websocket.Conn
	connMu sync.Mutex

	closed    atomic.Bool
	requestID atomic.Uint64
	dropped   atomic.Uint64

	mu      sync.Mutex
	subs    map[int64]*wsSubscription // keyed by server subscription ID
	pending map[uint64]*pendingSub    // keyed by request ID

	done chan struct{}
	wg   sync.WaitGroup
}

type wsSubscription struct {
	filter LogsFilter
	ch     chan LogNotification
}

// pendingSub is a subscription awaiting its server confirmation. The
// read loop moves it into subs before dispatching anything else, so a
// notification sent right behind the confirmation is never lost.
type pendingSub struct {
	sub     *wsSubscription
	confirm chan int64 // nil when replayed after a reconnect
}

// NewWSClient connects to the endpoint and starts the read and ping loops.
func NewWSClient(ctx context.Context, endpoint string, config *WSConfig) (*WSClientImpl, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	c := &WSClientImpl{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger,
		subs:     make(map[int64]*wsSubscription),
		pending:  make(map[uint64]*pendingSub),
		done:     make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

// Compile-time interface check.
var _ WSClient = (*WSClientImpl)(nil)

func (c *WSClientImpl) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	return nil
}

// SubscribeLogs subscribes to transaction logs matching the filter.
func (c *WSClientImpl) SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("client closed")
	}

	sub := &wsSubscription{
		filter: filter,
		ch:     make(chan LogNotification, c.config.ChannelBuffer),
	}
	if err := c.sendSubscribe(ctx, sub, true); err != nil {
		return nil, err
	}

	return sub.ch, nil
}

// sendSubscribe writes a logsSubscribe request for the subscription.
// The read loop binds the subscription to its server ID when the
// confirmation arrives; with wait set, this blocks until then.
func (c *WSClientImpl) sendSubscribe(ctx context.Context, sub *wsSubscription, wait bool) error {
	reqID := c.requestID.Add(1)

	var filterParam interface{}
	if len(sub.filter.Mentions) > 0 {
		filterParam = map[string]interface{}{"mentions": sub.filter.Mentions}
	} else {
		filterParam = "all"
	}
	commitment := sub.filter.Commitment
	if commitment == "" {
		commitment = "confirmed"
	}

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "logsSubscribe",
		Params: []interface{}{
			filterParam,
			map[string]string{"commitment": commitment},
		},
	}

	var confirmCh chan int64
	if wait {
		confirmCh = make(chan int64, 1)
	}
	c.mu.Lock()
	c.pending[reqID] = &pendingSub{sub: sub, confirm: confirmCh}
	c.mu.Unlock()

	clearPending := func() {
		c.mu.Lock()
		delete(c.pending, reqID)
		c.mu.Unlock()
	}

	if err := c.writeJSON(req); err != nil {
		clearPending()
		return fmt.Errorf("write subscribe: %w", err)
	}
	if !wait {
		return nil
	}

	select {
	case _, ok := <-confirmCh:
		if !ok {
			return fmt.Errorf("client closed")
		}
		return nil
	case <-time.After(c.config.SubscribeTimeout):
		clearPending()
		// The confirmation may have raced the timeout; it already
		// registered the subscription, so honor it.
		select {
		case <-confirmCh:
			return nil
		default:
		}
		return fmt.Errorf("subscription confirmation timeout after %s", c.config.SubscribeTimeout)
	case <-c.done:
		return fmt.Errorf("client closed")
	case <-ctx.Done():
		clearPending()
		return ctx.Err()
	}
}

func (c *WSClientImpl) writeJSON(v interface{}) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return c.conn.WriteJSON(v)
}

// Close closes the connection and all subscription channels.
func (c *WSClientImpl) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.mu.Lock()
	for id, sub := range c.subs {
		close(sub.ch)
		delete(c.subs, id)
	}
	for id, p := range c.pending {
		if p.confirm != nil {
			close(p.confirm)
		}
		delete(c.pending, id)
	}
	c.mu.Unlock()

	c.wg.Wait()
	return nil
}

// Dropped returns the number of notifications discarded because a
// subscriber's buffer was full.
func (c *WSClientImpl) Dropped() uint64 {
	return c.dropped.Load()
}

// readLoop reads messages and dispatches them. On a read error it
// reconnects in place (exponential backoff) and resubscribes every
// active filter, preserving the subscriber channels.
func (c *WSClientImpl) readLoop() {
	defer c.wg.Done()

	delay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn != nil {
			conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
			_, message, err := conn.ReadMessage()
			if err == nil {
				delay = c.config.ReconnectDelay
				c.handleMessage(message)
				continue
			}
			if c.closed.Load() {
				return
			}
			c.logger.Printf("[ws] read error, reconnecting in %s: %v", delay, err)
		}

		select {
		case <-c.done:
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > c.config.MaxReconnectDelay {
			delay = c.config.MaxReconnectDelay
		}

		c.reconnect()
	}
}

// reconnect replaces the connection and replays active subscriptions.
func (c *WSClientImpl) reconnect() {
	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		c.logger.Printf("[ws] reconnect failed: %v", err)
		return
	}

	observability.DefaultMetrics.WSReconnects.Inc()
	c.resubscribeAll()
	c.logger.Printf("[ws] reconnected to %s", c.endpoint)
}

// resubscribeAll re-issues every active subscription on the fresh
// connection, preserving the subscriber channels. It only writes the
// requests; the read loop rebinds each subscription to its new server
// ID when the confirmation frame arrives. Waiting here would deadlock,
// since this runs on the read loop that delivers the confirmations.
func (c *WSClientImpl) resubscribeAll() {
	c.mu.Lock()
	old := c.subs
	c.subs = make(map[int64]*wsSubscription, len(old))
	c.mu.Unlock()

	for _, sub := range old {
		if err := c.sendSubscribe(context.Background(), sub, false); err != nil {
			c.logger.Printf("[ws] resubscribe failed: %v", err)
		}
	}
}

// handleMessage routes one incoming frame.
func (c *WSClientImpl) handleMessage(message []byte) {
	// Subscription confirmation. The subscription must be live in subs
	// before this returns: the very next frame may be a notification on
	// the new ID, and dispatch finds it there or drops it.
	var resp wsSubscribeResponse
	if err := json.Unmarshal(message, &resp); err == nil && resp.Result > 0 && resp.ID > 0 {
		c.mu.Lock()
		p, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
			c.subs[resp.Result] = p.sub
		}
		c.mu.Unlock()
		if ok && p.confirm != nil {
			select {
			case p.confirm <- resp.Result:
			default:
			}
		}
		return
	}

	// Logs notification
	var notif wsNotification
	if err := json.Unmarshal(message, &notif); err == nil && notif.Method == "logsNotification" && notif.Params != nil {
		c.dispatch(&notif)
		return
	}

	// Error response
	var errResp struct {
		ID    uint64    `json:"id"`
		Error *RPCError `json:"error"`
	}
	if err := json.Unmarshal(message, &errResp); err == nil && errResp.Error != nil {
		c.logger.Printf("[ws] error response: %v", errResp.Error)
	}
}

func (c *WSClientImpl) dispatch(notif *wsNotification) {
	subID := notif.Params.Subscription
	value := notif.Params.Result.Value

	ln := LogNotification{
		Signature: value.Signature,
		Logs:      value.Logs,
		Err:       value.Err,
	}
	if notif.Params.Result.Context != nil {
		ln.Slot = notif.Params.Result.Context.Slot
	}

	c.mu.Lock()
	sub, ok := c.subs[subID]
	c.mu.Unlock()
	if !ok {
		return
	}

	select {
	case sub.ch <- ln:
	default:
		// Subscriber is saturated. A stale pool event is worthless and
		// the read loop must never block.
		observability.DefaultMetrics.WSDroppedMessages.Inc()
		n := c.dropped.Add(1)
		if n%100 == 1 {
			c.logger.Printf("[ws] subscriber buffer full, dropped %d notifications total", n)
		}
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (c *WSClientImpl) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				// A failed ping surfaces as a read error; the read loop
				// owns reconnection.
				c.conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.connMu.Unlock()
		}
	}
}

// WebSocket message types

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsSubscribeResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Result  int64  `json:"result"` // subscription ID
}

type wsNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext  `json:"context"`
	Value   wsLogsValue `json:"value"`
}

type wsContext struct {
	Slot uint64 `json:"slot"`
}

type wsLogsValue struct {
	Signature string      `json:"signature"`
	Logs      []string    `json:"logs"`
	Err       interface{} `json:"err"`
}
