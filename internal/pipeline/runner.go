// Package pipeline wires the sniper stages together: WebSocket log
// notifications flow through normalization and evaluation into the
// execution engine over bounded channels. A slow stage sheds load by
// dropping with a logged warning instead of buffering without bound.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"solana-pool-sniper/internal/decision"
	"solana-pool-sniper/internal/discovery"
	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/execution"
	"solana-pool-sniper/internal/observability"
	"solana-pool-sniper/internal/solana"
	"solana-pool-sniper/internal/storage"
)

// Executor runs a buy intent to a terminal status.
// Satisfied by *execution.Engine.
type Executor interface {
	Execute(ctx context.Context, intent *domain.BuyIntent) (*domain.SubmissionRecord, error)
}

// Options contains configuration for creating a Runner.
type Options struct {
	WS         solana.WSClient
	Normalizer *discovery.Normalizer
	Evaluator  *decision.Evaluator
	Executor   Executor

	// LiquidityStore receives reserve snapshots observed on pool events.
	// Optional; nil disables history recording.
	LiquidityStore storage.LiquidityHistoryStore

	// Mentions overrides the logsSubscribe mentions filter.
	// Default: the Raydium pool creation fee account, which every
	// initialize2 transaction pays into.
	Mentions []string

	NormalizeWorkers   int           // default: 4
	ExecuteWorkers     int           // default: 8
	NotificationBuffer int           // default: 256
	IntentBuffer       int           // default: 64
	SnapshotFlush      time.Duration // default: 5s
	Logger             *log.Logger
}

// Runner consumes the log subscription and drives intents to execution.
type Runner struct {
	ws             solana.WSClient
	normalizer     *discovery.Normalizer
	evaluator      *decision.Evaluator
	executor       Executor
	liquidityStore storage.LiquidityHistoryStore

	mentions         []string
	normalizeWorkers int
	executeWorkers   int
	notifBuffer      int
	intentBuffer     int
	snapshotFlush    time.Duration
	logger           *log.Logger

	snapMu    sync.Mutex
	snapshots []*domain.LiquiditySnapshot

	stats Stats
}

// Stats counts what the runner has seen. Safe for concurrent reads.
type Stats struct {
	Notifications atomic.Int64
	Normalized    atomic.Int64
	Dropped       atomic.Int64
	Rejected      atomic.Int64
	Intents       atomic.Int64
	Executed      atomic.Int64
}

// NewRunner creates a pipeline runner.
func NewRunner(opts Options) *Runner {
	mentions := opts.Mentions
	if len(mentions) == 0 {
		mentions = []string{discovery.CreatePoolFeeAccount}
	}

	normalizeWorkers := opts.NormalizeWorkers
	if normalizeWorkers <= 0 {
		normalizeWorkers = 4
	}
	executeWorkers := opts.ExecuteWorkers
	if executeWorkers <= 0 {
		executeWorkers = 8
	}
	notifBuffer := opts.NotificationBuffer
	if notifBuffer <= 0 {
		notifBuffer = 256
	}
	intentBuffer := opts.IntentBuffer
	if intentBuffer <= 0 {
		intentBuffer = 64
	}
	snapshotFlush := opts.SnapshotFlush
	if snapshotFlush <= 0 {
		snapshotFlush = 5 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Runner{
		ws:               opts.WS,
		normalizer:       opts.Normalizer,
		evaluator:        opts.Evaluator,
		executor:         opts.Executor,
		liquidityStore:   opts.LiquidityStore,
		mentions:         mentions,
		normalizeWorkers: normalizeWorkers,
		executeWorkers:   executeWorkers,
		notifBuffer:      notifBuffer,
		intentBuffer:     intentBuffer,
		snapshotFlush:    snapshotFlush,
		logger:           logger,
	}
}

// Stats returns the runner's counters.
func (r *Runner) Stats() *Stats {
	return &r.stats
}

// Run subscribes to logs and processes notifications until the context
// is cancelled or the subscription closes. Workers finish the item they
// hold before exiting; buffered snapshots are flushed on the way out.
func (r *Runner) Run(ctx context.Context) error {
	// Confirmed commitment, not processed: the normalizer resolves
	// account keys with getTransaction, which only returns confirmed
	// transactions. Subscribing earlier would drop nearly every event
	// as not-yet-found.
	logsCh, err := r.ws.SubscribeLogs(ctx, solana.LogsFilter{
		Mentions:   r.mentions,
		Commitment: "confirmed",
	})
	if err != nil {
		return fmt.Errorf("subscribe logs: %w", err)
	}
	r.logger.Printf("[pipeline] subscribed, mentions=%v workers=%d/%d",
		r.mentions, r.normalizeWorkers, r.executeWorkers)

	notifCh := make(chan solana.LogNotification, r.notifBuffer)
	intentCh := make(chan *domain.BuyIntent, r.intentBuffer)

	var normWG sync.WaitGroup
	for i := 0; i < r.normalizeWorkers; i++ {
		normWG.Add(1)
		go func() {
			defer normWG.Done()
			r.normalizeLoop(ctx, notifCh, intentCh)
		}()
	}

	var execWG sync.WaitGroup
	for i := 0; i < r.executeWorkers; i++ {
		execWG.Add(1)
		go func() {
			defer execWG.Done()
			r.executeLoop(ctx, intentCh)
		}()
	}

	drain := func() {
		close(notifCh)
		normWG.Wait()
		close(intentCh)
		execWG.Wait()
		r.flushSnapshots(context.WithoutCancel(ctx))
	}

	flushTicker := time.NewTicker(r.snapshotFlush)
	defer flushTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Println("[pipeline] stopping, draining workers")
			drain()
			return ctx.Err()

		case notif, ok := <-logsCh:
			if !ok {
				drain()
				return errors.New("log subscription closed")
			}
			r.stats.Notifications.Add(1)
			observability.RecordNotification()
			select {
			case notifCh <- notif:
			default:
				r.stats.Dropped.Add(1)
				observability.RecordChannelDrop("notifications")
				r.logger.Printf("[pipeline] notification channel full, dropping tx %s", notif.Signature)
			}
			observability.DefaultMetrics.ChannelDepth.WithLabelValues("notifications").Set(float64(len(notifCh)))

		case <-flushTicker.C:
			r.flushSnapshots(ctx)
		}
	}
}

func (r *Runner) normalizeLoop(ctx context.Context, notifCh <-chan solana.LogNotification, intentCh chan<- *domain.BuyIntent) {
	for notif := range notifCh {
		ev, dropReason := r.normalizer.Normalize(ctx, notif)
		if ev == nil {
			if dropReason != "" {
				r.stats.Dropped.Add(1)
				observability.RecordEventDropped(dropReason)
			}
			continue
		}

		r.stats.Normalized.Add(1)
		observability.RecordEventNormalized(string(ev.Kind))
		observability.DefaultMetrics.LastEventTimestamp.Set(float64(ev.ObservedAt) / 1000)
		r.bufferSnapshot(ev)

		intent, rejection := r.evaluator.Evaluate(ev)
		observability.DefaultMetrics.CooldownSetSize.Set(float64(r.evaluator.TrackedPools()))
		if rejection != nil {
			r.stats.Rejected.Add(1)
			observability.RecordIntentRejected(rejection.Reason)
			r.logger.Printf("[pipeline] pool %s rejected: %s", rejection.PoolAddress, rejection.Reason)
			continue
		}

		r.stats.Intents.Add(1)
		observability.RecordIntentEmitted()
		r.logger.Printf("[pipeline] buy intent pool=%s mint=%s liquidity=%d slot=%d",
			intent.PoolAddress, intent.TargetMint, ev.InitialLiquidity, ev.Slot)

		select {
		case intentCh <- intent:
		default:
			observability.RecordChannelDrop("intents")
			r.logger.Printf("[pipeline] intent channel full, dropping pool %s", intent.PoolAddress)
		}
	}
}

func (r *Runner) executeLoop(ctx context.Context, intentCh <-chan *domain.BuyIntent) {
	for intent := range intentCh {
		record, err := r.executor.Execute(ctx, intent)
		r.stats.Executed.Add(1)
		if err != nil {
			if errors.Is(err, execution.ErrAlreadyInFlight) {
				continue
			}
			r.logger.Printf("[pipeline] execute pool %s: %v", intent.PoolAddress, err)
		}
		if record != nil {
			observability.RecordOutcome(string(record.Status))
			observability.DefaultMetrics.DetectionToSubmit.Observe(
				float64(record.SubmittedAt-intent.CreatedAt) / 1000)
		}
	}
}

// bufferSnapshot records the quote-side reserve observed on the event.
// The base reserve is not carried by pool events; the builder reads it
// live when quoting.
func (r *Runner) bufferSnapshot(ev *domain.PoolEvent) {
	if r.liquidityStore == nil || ev.InitialLiquidity == 0 {
		return
	}
	snap := &domain.LiquiditySnapshot{
		PoolAddress:  ev.PoolAddress,
		BaseMint:     ev.BaseMint,
		QuoteMint:    ev.QuoteMint,
		QuoteReserve: ev.InitialLiquidity,
		Slot:         ev.Slot,
		TimestampMs:  ev.ObservedAt,
	}
	r.snapMu.Lock()
	r.snapshots = append(r.snapshots, snap)
	r.snapMu.Unlock()
}

func (r *Runner) flushSnapshots(ctx context.Context) {
	r.snapMu.Lock()
	pending := r.snapshots
	r.snapshots = nil
	r.snapMu.Unlock()

	if len(pending) == 0 || r.liquidityStore == nil {
		return
	}
	if err := r.liquidityStore.InsertBulk(ctx, pending); err != nil {
		r.logger.Printf("[pipeline] flush %d liquidity snapshots: %v", len(pending), err)
	}
}
