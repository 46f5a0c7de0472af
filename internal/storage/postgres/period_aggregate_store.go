package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"wallet-pnl-lab/internal/domain"
	"wallet-pnl-lab/internal/storage"
)

// PeriodAggregateStore implements storage.PeriodAggregateStore using PostgreSQL.
type PeriodAggregateStore struct {
	pool *Pool
}

// NewPeriodAggregateStore creates a new PeriodAggregateStore.
func NewPeriodAggregateStore(pool *Pool) *PeriodAggregateStore {
	return &PeriodAggregateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PeriodAggregateStore = (*PeriodAggregateStore)(nil)

const upsertPeriodQuery = `
	INSERT INTO period_aggregates (
		wallet, account, granularity, period_key, start_date, end_date,
		net_flow, trade_pnl_sum, cumulative_pnl_at_end, period_pnl,
		capital_start, capital_end, chained_return_pct,
		op_count, gross_gain_sum, gross_loss_sum, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, now())
	ON CONFLICT (wallet, account, granularity, period_key) DO UPDATE SET
		start_date = EXCLUDED.start_date,
		end_date = EXCLUDED.end_date,
		net_flow = EXCLUDED.net_flow,
		trade_pnl_sum = EXCLUDED.trade_pnl_sum,
		cumulative_pnl_at_end = EXCLUDED.cumulative_pnl_at_end,
		period_pnl = EXCLUDED.period_pnl,
		capital_start = EXCLUDED.capital_start,
		capital_end = EXCLUDED.capital_end,
		chained_return_pct = EXCLUDED.chained_return_pct,
		op_count = EXCLUDED.op_count,
		gross_gain_sum = EXCLUDED.gross_gain_sum,
		gross_loss_sum = EXCLUDED.gross_loss_sum,
		updated_at = now()
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

	_, err := s.pool.Exec(ctx, upsertPeriodQuery, periodArgs(a)...)
	if err != nil {
		return fmt.Errorf("upsert period aggregate: %w", err)
	}
	return nil
}

// UpsertBulk inserts or replaces multiple aggregates.
func (s *PeriodAggregateStore) UpsertBulk(ctx context.Context, aggregates []*domain.PeriodAggregate) error {
	if len(aggregates) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, a := range aggregates {
		if a == nil || a.Wallet == "" || !a.Granularity.IsValid() {
			return storage.ErrInvalidInput
		}
		if _, err := tx.Exec(ctx, upsertPeriodQuery, periodArgs(a)...); err != nil {
			return fmt.Errorf("upsert period aggregate in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByScopeGranularity retrieves scope aggregates of one granularity, ordered by period_key ASC.
func (s *PeriodAggregateStore) GetByScopeGranularity(ctx context.Context, scope domain.Scope, g domain.Granularity) ([]*domain.PeriodAggregate, error) {
	query := `
		SELECT ` + selectPeriodColumns + `
		FROM period_aggregates
		WHERE wallet = $1 AND account = $2 AND granularity = $3
		ORDER BY period_key ASC
	`

	rows, err := s.pool.Query(ctx, query, scope.Wallet, scope.Account, g.String())
	if err != nil {
		return nil, fmt.Errorf("get period aggregates: %w", err)
	}
	defer rows.Close()

	return scanPeriodAggregates(rows)
}

// GetByKey retrieves the aggregate for (scope, granularity, period_key). Returns ErrNotFound if not exists.
func (s *PeriodAggregateStore) GetByKey(ctx context.Context, scope domain.Scope, g domain.Granularity, periodKey string) (*domain.PeriodAggregate, error) {
	query := `
		SELECT ` + selectPeriodColumns + `
		FROM period_aggregates
		WHERE wallet = $1 AND account = $2 AND granularity = $3 AND period_key = $4
	`

	row := s.pool.QueryRow(ctx, query, scope.Wallet, scope.Account, g.String(), periodKey)

	a, err := scanPeriodAggregate(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get period aggregate by key: %w", err)
	}
	return a, nil
}

// DeleteByScope removes all aggregates for a scope, every granularity.
func (s *PeriodAggregateStore) DeleteByScope(ctx context.Context, scope domain.Scope) error {
	query := `DELETE FROM period_aggregates WHERE wallet = $1 AND account = $2`

	if _, err := s.pool.Exec(ctx, query, scope.Wallet, scope.Account); err != nil {
		return fmt.Errorf("delete period aggregates by scope: %w", err)
	}
	return nil
}

func periodArgs(a *domain.PeriodAggregate) []any {
	return []any{
		a.Wallet,
		a.Account,
		a.Granularity.String(),
		a.PeriodKey,
		a.StartDate.Time(time.UTC),
		a.EndDate.Time(time.UTC),
		a.NetFlow,
		a.TradePnlSum,
		a.CumulativePnlAtEnd,
		a.PeriodPnl,
		a.CapitalStart,
		a.CapitalEnd,
		a.ChainedReturnPct,
		a.OpCount,
		a.GrossGainSum,
		a.GrossLossSum,
	}
}

func scanPeriodAggregate(row pgx.Row) (*domain.PeriodAggregate, error) {
	var a domain.PeriodAggregate
	var granularity string
	var startDate, endDate time.Time

	err := row.Scan(
		&a.Wallet,
		&a.Account,
		&granularity,
		&a.PeriodKey,
		&startDate,
		&endDate,
		&a.NetFlow,
		&a.TradePnlSum,
		&a.CumulativePnlAtEnd,
		&a.PeriodPnl,
		&a.CapitalStart,
		&a.CapitalEnd,
		&a.ChainedReturnPct,
		&a.OpCount,
		&a.GrossGainSum,
		&a.GrossLossSum,
	)
	if err != nil {
		return nil, err
	}
	a.Granularity = domain.Granularity(granularity)
	a.StartDate = domain.DateFromTime(startDate)
	a.EndDate = domain.DateFromTime(endDate)

	return &a, nil
}

// scanPeriodAggregates scans multiple rows into a slice of PeriodAggregate.
func scanPeriodAggregates(rows pgx.Rows) ([]*domain.PeriodAggregate, error) {
	var aggregates []*domain.PeriodAggregate

	for rows.Next() {
		a, err := scanPeriodAggregate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan period aggregate row: %w", err)
		}
		aggregates = append(aggregates, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate period aggregate rows: %w", err)
	}

	return aggregates, nil
}
