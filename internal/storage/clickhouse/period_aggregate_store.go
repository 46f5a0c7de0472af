package clickhouse

import (
	"context"
	"fmt"
	"time"

	"wallet-pnl-lab/internal/domain"
	"wallet-pnl-lab/internal/storage"
)

// PeriodAggregateStore implements storage.PeriodAggregateStore using ClickHouse.
// Same ReplacingMergeTree scheme as DailyRecordStore, keyed by
// (wallet, account, granularity, period_key).
type PeriodAggregateStore struct {
	conn *Conn
}

// NewPeriodAggregateStore creates a new PeriodAggregateStore.
func NewPeriodAggregateStore(conn *Conn) *PeriodAggregateStore {
	return &PeriodAggregateStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PeriodAggregateStore = (*PeriodAggregateStore)(nil)

const insertPeriodBatch = `
	INSERT INTO period_aggregates (
		wallet, account, granularity, period_key, start_date, end_date,
		net_flow, trade_pnl_sum, cumulative_pnl_at_end, period_pnl,
		capital_start, capital_end, chained_return_pct,
		op_count, gross_gain_sum, gross_loss_sum, updated_at
	)
`

const selectPeriodColumns = `
	wallet, account, granularity, period_key, start_date, end_date,
	net_flow, trade_pnl_sum, cumulative_pnl_at_end, period_pnl,
	capital_start, capital_end, chained_return_pct,
	op_count, gross_gain_sum, gross_loss_sum
`

// Upsert inserts or replaces the aggregate for (scope, granularity, period_key).
func (s *PeriodAggregateStore) Upsert(ctx context.Context, a *domain.PeriodAggregate) error {
	if a == nil || a.Wallet == "" || !a.Granularity.IsValid() {
		return storage.ErrInvalidInput
	}
	return s.UpsertBulk(ctx, []*domain.PeriodAggregate{a})
}

// UpsertBulk inserts or replaces multiple aggregates.
func (s *PeriodAggregateStore) UpsertBulk(ctx context.Context, aggregates []*domain.PeriodAggregate) error {
	if len(aggregates) == 0 {
		return nil
	}

	for _, a := range aggregates {
		if a == nil || a.Wallet == "" || !a.Granularity.IsValid() {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, insertPeriodBatch)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	now := time.Now().UTC()
	for _, a := range aggregates {
		err = batch.Append(
			a.Wallet, a.Account, a.Granularity.String(), a.PeriodKey,
			a.StartDate.Time(time.UTC), a.EndDate.Time(time.UTC),
			a.NetFlow, a.TradePnlSum, a.CumulativePnlAtEnd, a.PeriodPnl,
			a.CapitalStart, a.CapitalEnd, a.ChainedReturnPct,
			uint32(a.OpCount), a.GrossGainSum, a.GrossLossSum,
			now,
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

// GetByScopeGranularity retrieves scope aggregates of one granularity, ordered by period_key ASC.
func (s *PeriodAggregateStore) GetByScopeGranularity(ctx context.Context, scope domain.Scope, g domain.Granularity) ([]*domain.PeriodAggregate, error) {
	query := `
		SELECT ` + selectPeriodColumns + `
		FROM period_aggregates FINAL
		WHERE wallet = ? AND account = ? AND granularity = ?
		ORDER BY period_key ASC
	`

	rows, err := s.conn.Query(ctx, query, scope.Wallet, scope.Account, g.String())
	if err != nil {
		return nil, fmt.Errorf("query by scope granularity: %w", err)
	}
	defer rows.Close()

	return scanPeriodAggregates(rows)
}

// GetByKey retrieves the aggregate for (scope, granularity, period_key). Returns ErrNotFound if not exists.
func (s *PeriodAggregateStore) GetByKey(ctx context.Context, scope domain.Scope, g domain.Granularity, periodKey string) (*domain.PeriodAggregate, error) {
	query := `
		SELECT ` + selectPeriodColumns + `
		FROM period_aggregates FINAL
		WHERE wallet = ? AND account = ? AND granularity = ? AND period_key = ?
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query, scope.Wallet, scope.Account, g.String(), periodKey)
	if err != nil {
		return nil, fmt.Errorf("query by key: %w", err)
	}
	defer rows.Close()

	aggregates, err := scanPeriodAggregates(rows)
	if err != nil {
		return nil, err
	}
	if len(aggregates) == 0 {
		return nil, storage.ErrNotFound
	}
	return aggregates[0], nil
}

// DeleteByScope removes all aggregates for a scope, every granularity.
func (s *PeriodAggregateStore) DeleteByScope(ctx context.Context, scope domain.Scope) error {
	query := `ALTER TABLE period_aggregates DELETE WHERE wallet = ? AND account = ?`

	if err := s.conn.Exec(ctx, query, scope.Wallet, scope.Account); err != nil {
		return fmt.Errorf("delete by scope: %w", err)
	}
	return nil
}

// scanPeriodAggregates scans multiple rows into a slice of PeriodAggregate.
func scanPeriodAggregates(rows chRows) ([]*domain.PeriodAggregate, error) {
	var aggregates []*domain.PeriodAggregate

	for rows.Next() {
		var a domain.PeriodAggregate
		var granularity string
		var startDate, endDate time.Time
		var opCount uint32

		err := rows.Scan(
			&a.Wallet, &a.Account, &granularity, &a.PeriodKey,
			&startDate, &endDate,
			&a.NetFlow, &a.TradePnlSum, &a.CumulativePnlAtEnd, &a.PeriodPnl,
			&a.CapitalStart, &a.CapitalEnd, &a.ChainedReturnPct,
			&opCount, &a.GrossGainSum, &a.GrossLossSum,
		)
		if err != nil {
			return nil, fmt.Errorf("scan period aggregate row: %w", err)
		}

		a.Granularity = domain.Granularity(granularity)
		a.StartDate = domain.DateFromTime(startDate)
		a.EndDate = domain.DateFromTime(endDate)
		a.OpCount = int(opCount)
		aggregates = append(aggregates, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate period aggregate rows: %w", err)
	}

	return aggregates, nil
}
