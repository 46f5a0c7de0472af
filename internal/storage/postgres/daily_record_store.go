package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"wallet-pnl-lab/internal/domain"
	"wallet-pnl-lab/internal/storage"
)

// DailyRecordStore implements storage.DailyRecordStore using PostgreSQL.
type DailyRecordStore struct {
	pool *Pool
}

// NewDailyRecordStore creates a new DailyRecordStore.
func NewDailyRecordStore(pool *Pool) *DailyRecordStore {
	return &DailyRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DailyRecordStore = (*DailyRecordStore)(nil)

const upsertDailyQuery = `
	INSERT INTO daily_records (
		wallet, account, date, net_flow, trade_pnl, cumulative_pnl, capital,
		return_pct, op_count, gross_gain, gross_loss, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
	ON CONFLICT (wallet, account, date) DO UPDATE SET
		net_flow = EXCLUDED.net_flow,
		trade_pnl = EXCLUDED.trade_pnl,
		cumulative_pnl = EXCLUDED.cumulative_pnl,
		capital = EXCLUDED.capital,
		return_pct = EXCLUDED.return_pct,
		op_count = EXCLUDED.op_count,
		gross_gain = EXCLUDED.gross_gain,
		gross_loss = EXCLUDED.gross_loss,
		updated_at = now()
`

const selectDailyColumns = `
	wallet, account, date, net_flow, trade_pnl, cumulative_pnl, capital,
	return_pct, op_count, gross_gain, gross_loss
`

// Upsert inserts or replaces the record for (scope, date).
func (s *DailyRecordStore) Upsert(ctx context.Context, r *domain.DailyRecord) error {
	if r == nil || r.Wallet == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, upsertDailyQuery, dailyArgs(r)...)
	if err != nil {
		return fmt.Errorf("upsert daily record: %w", err)
	}
	return nil
}

// UpsertBulk inserts or replaces multiple records.
func (s *DailyRecordStore) UpsertBulk(ctx context.Context, records []*domain.DailyRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range records {
		if r == nil || r.Wallet == "" {
			return storage.ErrInvalidInput
		}
		if _, err := tx.Exec(ctx, upsertDailyQuery, dailyArgs(r)...); err != nil {
			return fmt.Errorf("upsert daily record in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByScope retrieves all records for a scope, ordered by date ASC.
func (s *DailyRecordStore) GetByScope(ctx context.Context, scope domain.Scope) ([]*domain.DailyRecord, error) {
	query := `
		SELECT ` + selectDailyColumns + `
		FROM daily_records
		WHERE wallet = $1 AND account = $2
		ORDER BY date ASC
	`

	rows, err := s.pool.Query(ctx, query, scope.Wallet, scope.Account)
	if err != nil {
		return nil, fmt.Errorf("get daily records by scope: %w", err)
	}
	defer rows.Close()

	return scanDailyRecords(rows)
}

// GetByDate retrieves the record for (scope, date). Returns ErrNotFound if not exists.
func (s *DailyRecordStore) GetByDate(ctx context.Context, scope domain.Scope, date domain.Date) (*domain.DailyRecord, error) {
	query := `
		SELECT ` + selectDailyColumns + `
		FROM daily_records
		WHERE wallet = $1 AND account = $2 AND date = $3
	`

	row := s.pool.QueryRow(ctx, query, scope.Wallet, scope.Account, date.Time(time.UTC))

	r, err := scanDailyRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get daily record by date: %w", err)
	}
	return r, nil
}

// DeleteByScope removes all records for a scope.
func (s *DailyRecordStore) DeleteByScope(ctx context.Context, scope domain.Scope) error {
	query := `DELETE FROM daily_records WHERE wallet = $1 AND account = $2`

	if _, err := s.pool.Exec(ctx, query, scope.Wallet, scope.Account); err != nil {
		return fmt.Errorf("delete daily records by scope: %w", err)
	}
	return nil
}

func dailyArgs(r *domain.DailyRecord) []any {
	return []any{
		r.Wallet,
		r.Account,
		r.Date.Time(time.UTC),
		r.NetFlow,
		r.TradePnl,
		r.CumulativePnl,
		r.Capital,
		r.ReturnPct,
		r.OpCount,
		r.GrossGain,
		r.GrossLoss,
	}
}

func scanDailyRecord(row pgx.Row) (*domain.DailyRecord, error) {
	var r domain.DailyRecord
	var date time.Time

	err := row.Scan(
		&r.Wallet,
		&r.Account,
		&date,
		&r.NetFlow,
		&r.TradePnl,
		&r.CumulativePnl,
		&r.Capital,
		&r.ReturnPct,
		&r.OpCount,
		&r.GrossGain,
		&r.GrossLoss,
	)
	if err != nil {
		return nil, err
	}
	r.Date = domain.DateFromTime(date)

	return &r, nil
}

// scanDailyRecords scans multiple rows into a slice of DailyRecord.
func scanDailyRecords(rows pgx.Rows) ([]*domain.DailyRecord, error) {
	var records []*domain.DailyRecord

	for rows.Next() {
		r, err := scanDailyRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan daily record row: %w", err)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily record rows: %w", err)
	}

	return records, nil
}
