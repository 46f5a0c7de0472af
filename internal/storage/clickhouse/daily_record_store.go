package clickhouse

import (
	"context"
	"fmt"
	"time"

	"wallet-pnl-lab/internal/domain"
	"wallet-pnl-lab/internal/storage"
)

// DailyRecordStore implements storage.DailyRecordStore using ClickHouse.
// Rows live in a ReplacingMergeTree keyed by (wallet, account, date) with
// updated_at as the version column, so an upsert is a plain insert and reads
// use FINAL to collapse superseded versions.
type DailyRecordStore struct {
	conn *Conn
}

// NewDailyRecordStore creates a new DailyRecordStore.
func NewDailyRecordStore(conn *Conn) *DailyRecordStore {
	return &DailyRecordStore{conn: conn}
}

// Compile-time interface check.
var _ storage.DailyRecordStore = (*DailyRecordStore)(nil)

const insertDailyBatch = `
	INSERT INTO daily_records (
		wallet, account, date, net_flow, trade_pnl, cumulative_pnl, capital,
		return_pct, op_count, gross_gain, gross_loss, updated_at
	)
`

// Upsert inserts or replaces the record for (scope, date).
func (s *DailyRecordStore) Upsert(ctx context.Context, r *domain.DailyRecord) error {
	if r == nil || r.Wallet == "" {
		return storage.ErrInvalidInput
	}
	return s.UpsertBulk(ctx, []*domain.DailyRecord{r})
}

// UpsertBulk inserts or replaces multiple records.
func (s *DailyRecordStore) UpsertBulk(ctx context.Context, records []*domain.DailyRecord) error {
	if len(records) == 0 {
		return nil
	}

	for _, r := range records {
		if r == nil || r.Wallet == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, insertDailyBatch)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	now := time.Now().UTC()
	for _, r := range records {
		err = batch.Append(
			r.Wallet, r.Account, r.Date.Time(time.UTC),
			r.NetFlow, r.TradePnl, r.CumulativePnl, r.Capital,
			r.ReturnPct, uint32(r.OpCount), r.GrossGain, r.GrossLoss,
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

// GetByScope retrieves all records for a scope, ordered by date ASC.
func (s *DailyRecordStore) GetByScope(ctx context.Context, scope domain.Scope) ([]*domain.DailyRecord, error) {
	query := `
		SELECT wallet, account, date, net_flow, trade_pnl, cumulative_pnl, capital,
		       return_pct, op_count, gross_gain, gross_loss
		FROM daily_records FINAL
		WHERE wallet = ? AND account = ?
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, scope.Wallet, scope.Account)
	if err != nil {
		return nil, fmt.Errorf("query by scope: %w", err)
	}
	defer rows.Close()

	return scanDailyRecords(rows)
}

// GetByDate retrieves the record for (scope, date). Returns ErrNotFound if not exists.
func (s *DailyRecordStore) GetByDate(ctx context.Context, scope domain.Scope, date domain.Date) (*domain.DailyRecord, error) {
	query := `
		SELECT wallet, account, date, net_flow, trade_pnl, cumulative_pnl, capital,
		       return_pct, op_count, gross_gain, gross_loss
		FROM daily_records FINAL
		WHERE wallet = ? AND account = ? AND date = ?
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query, scope.Wallet, scope.Account, date.Time(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("query by date: %w", err)
	}
	defer rows.Close()

	records, err := scanDailyRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, storage.ErrNotFound
	}
	return records[0], nil
}

// DeleteByScope removes all records for a scope.
func (s *DailyRecordStore) DeleteByScope(ctx context.Context, scope domain.Scope) error {
	query := `ALTER TABLE daily_records DELETE WHERE wallet = ? AND account = ?`

	if err := s.conn.Exec(ctx, query, scope.Wallet, scope.Account); err != nil {
		return fmt.Errorf("delete by scope: %w", err)
	}
	return nil
}

// scanDailyRecords scans multiple rows into a slice of DailyRecord.
func scanDailyRecords(rows chRows) ([]*domain.DailyRecord, error) {
	var records []*domain.DailyRecord

	for rows.Next() {
		var r domain.DailyRecord
		var date time.Time
		var opCount uint32

		err := rows.Scan(
			&r.Wallet, &r.Account, &date,
			&r.NetFlow, &r.TradePnl, &r.CumulativePnl, &r.Capital,
			&r.ReturnPct, &opCount, &r.GrossGain, &r.GrossLoss,
		)
		if err != nil {
			return nil, fmt.Errorf("scan daily record row: %w", err)
		}

		r.Date = domain.DateFromTime(date)
		r.OpCount = int(opCount)
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily record rows: %w", err)
	}

	return records, nil
}
