package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/storage"
)

// LiquidityHistoryStore implements storage.LiquidityHistoryStore using
// ClickHouse.
type LiquidityHistoryStore struct {
	conn *Conn
}

// NewLiquidityHistoryStore creates a new LiquidityHistoryStore.
func NewLiquidityHistoryStore(conn *Conn) *LiquidityHistoryStore {
	return &LiquidityHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.LiquidityHistoryStore = (*LiquidityHistoryStore)(nil)

// InsertBulk adds multiple snapshots in one batch. Duplicates are not
// rejected; MergeTree does not enforce uniqueness and observations are
// naturally keyed by (pool, timestamp) at query time.
func (s *LiquidityHistoryStore) InsertBulk(ctx context.Context, snapshots []*domain.LiquiditySnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO liquidity_history (
			pool_address, base_mint, quote_mint, base_reserve, quote_reserve, slot, timestamp_ms
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, snap := range snapshots {
		err = batch.Append(
			snap.PoolAddress, snap.BaseMint, snap.QuoteMint,
			snap.BaseReserve, snap.QuoteReserve, snap.Slot, uint64(snap.TimestampMs),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByPool retrieves all snapshots for a pool, ordered by timestamp ASC.
func (s *LiquidityHistoryStore) GetByPool(ctx context.Context, poolAddress string) ([]*domain.LiquiditySnapshot, error) {
	query := `
		SELECT pool_address, base_mint, quote_mint, base_reserve, quote_reserve, slot, timestamp_ms
		FROM liquidity_history
		WHERE pool_address = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, poolAddress)
	if err != nil {
		return nil, fmt.Errorf("query by pool: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// GetByTimeRange retrieves snapshots for a pool within [start, end] (inclusive).
func (s *LiquidityHistoryStore) GetByTimeRange(ctx context.Context, poolAddress string, start, end int64) ([]*domain.LiquiditySnapshot, error) {
	query := `
		SELECT pool_address, base_mint, quote_mint, base_reserve, quote_reserve, slot, timestamp_ms
		FROM liquidity_history
		WHERE pool_address = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, poolAddress, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// scanSnapshots scans multiple rows.
func scanSnapshots(rows driver.Rows) ([]*domain.LiquiditySnapshot, error) {
	var snapshots []*domain.LiquiditySnapshot

	for rows.Next() {
		var snap domain.LiquiditySnapshot
		var timestampMs uint64

		err := rows.Scan(
			&snap.PoolAddress, &snap.BaseMint, &snap.QuoteMint,
			&snap.BaseReserve, &snap.QuoteReserve, &snap.Slot, &timestampMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan liquidity history row: %w", err)
		}

		snap.TimestampMs = int64(timestampMs)
		snapshots = append(snapshots, &snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate liquidity history rows: %w", err)
	}

	return snapshots, nil
}
