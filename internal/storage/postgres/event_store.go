package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"wallet-pnl-lab/internal/domain"
	"wallet-pnl-lab/internal/storage"
)

// EventStore implements storage.EventStore using PostgreSQL.
type EventStore struct {
	pool *Pool
}

// NewEventStore creates a new EventStore.
func NewEventStore(pool *Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

const insertEventQuery = `
	INSERT INTO transaction_events (
		event_id, wallet, account, tx_hash, block_number, log_index, timestamp, kind, value
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

const selectEventColumns = `
	event_id, wallet, account, tx_hash, block_number, log_index, timestamp, kind, value
`

// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
func (s *EventStore) Insert(ctx context.Context, e *domain.TransactionEvent) error {
	if e == nil || e.EventID == "" || e.Wallet == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertEventQuery,
		e.EventID,
		e.Wallet,
		e.Account,
		e.TxHash,
		e.BlockNumber,
		e.LogIndex,
		e.Timestamp,
		e.Kind.String(),
		e.Value,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *EventStore) InsertBulk(ctx context.Context, events []*domain.TransactionEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range events {
		if e == nil || e.EventID == "" || e.Wallet == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, insertEventQuery,
			e.EventID,
			e.Wallet,
			e.Account,
			e.TxHash,
			e.BlockNumber,
			e.LogIndex,
			e.Timestamp,
			e.Kind.String(),
			e.Value,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert event in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByScope retrieves all events for a scope, ordered by timestamp ASC.
func (s *EventStore) GetByScope(ctx context.Context, scope domain.Scope) ([]*domain.TransactionEvent, error) {
	query := `
		SELECT ` + selectEventColumns + `
		FROM transaction_events
		WHERE wallet = $1 AND ($2 = '' OR account = $2)
		ORDER BY timestamp ASC, block_number ASC, log_index ASC
	`

	rows, err := s.pool.Query(ctx, query, scope.Wallet, scope.Account)
	if err != nil {
		return nil, fmt.Errorf("get events by scope: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetSince retrieves scope events with timestamp >= since, ordered by timestamp ASC.
func (s *EventStore) GetSince(ctx context.Context, scope domain.Scope, since int64) ([]*domain.TransactionEvent, error) {
	query := `
		SELECT ` + selectEventColumns + `
		FROM transaction_events
		WHERE wallet = $1 AND ($2 = '' OR account = $2) AND timestamp >= $3
		ORDER BY timestamp ASC, block_number ASC, log_index ASC
	`

	rows, err := s.pool.Query(ctx, query, scope.Wallet, scope.Account, since)
	if err != nil {
		return nil, fmt.Errorf("get events since: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// Accounts retrieves the distinct non-empty account IDs seen for a wallet.
func (s *EventStore) Accounts(ctx context.Context, wallet string) ([]string, error) {
	query := `
		SELECT DISTINCT account
		FROM transaction_events
		WHERE wallet = $1 AND account <> ''
		ORDER BY account ASC
	`

	rows, err := s.pool.Query(ctx, query, wallet)
	if err != nil {
		return nil, fmt.Errorf("get accounts: %w", err)
	}
	defer rows.Close()

	var accounts []string
	for rows.Next() {
		var acct string
		if err := rows.Scan(&acct); err != nil {
			return nil, fmt.Errorf("scan account row: %w", err)
		}
		accounts = append(accounts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate account rows: %w", err)
	}

	return accounts, nil
}

// LastBlock retrieves the highest block number stored for a wallet, 0 when none.
func (s *EventStore) LastBlock(ctx context.Context, wallet string) (uint64, error) {
	query := `
		SELECT COALESCE(MAX(block_number), 0)
		FROM transaction_events
		WHERE wallet = $1
	`

	var last int64
	if err := s.pool.QueryRow(ctx, query, wallet).Scan(&last); err != nil {
		return 0, fmt.Errorf("get last block: %w", err)
	}
	if last < 0 {
		last = 0
	}
	return uint64(last), nil
}

// scanEvents scans multiple rows into a slice of TransactionEvent.
func scanEvents(rows pgx.Rows) ([]*domain.TransactionEvent, error) {
	var events []*domain.TransactionEvent

	for rows.Next() {
		var e domain.TransactionEvent
		var kind string

		err := rows.Scan(
			&e.EventID,
			&e.Wallet,
			&e.Account,
			&e.TxHash,
			&e.BlockNumber,
			&e.LogIndex,
			&e.Timestamp,
			&kind,
			&e.Value,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		e.Kind = domain.OpKind(kind)

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}

	return events, nil
}
