package storage

import (
	"context"

	"wallet-pnl-lab/internal/domain"
)

// EventStore provides access to transaction_events storage. Events are
// append-only: ingestion inserts, recompute only reads.
type EventStore interface {
	// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
	Insert(ctx context.Context, e *domain.TransactionEvent) error

	// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, events []*domain.TransactionEvent) error

	// GetByScope retrieves all events for a scope, ordered by timestamp ASC.
	GetByScope(ctx context.Context, scope domain.Scope) ([]*domain.TransactionEvent, error)

	// GetSince retrieves scope events with timestamp >= since, ordered by timestamp ASC.
	GetSince(ctx context.Context, scope domain.Scope, since int64) ([]*domain.TransactionEvent, error)

	// Accounts retrieves the distinct non-empty account IDs seen for a wallet.
	Accounts(ctx context.Context, wallet string) ([]string, error)

	// LastBlock retrieves the highest block number stored for a wallet, 0 when none.
	LastBlock(ctx context.Context, wallet string) (uint64, error)
}

// DailyRecordStore provides access to daily_records storage. Recompute is an
// idempotent full rewrite, so Upsert replaces any existing (scope, date) row.
type DailyRecordStore interface {
	// Upsert inserts or replaces the record for (scope, date).
	Upsert(ctx context.Context, r *domain.DailyRecord) error

	// UpsertBulk inserts or replaces multiple records.
	UpsertBulk(ctx context.Context, records []*domain.DailyRecord) error

	// GetByScope retrieves all records for a scope, ordered by date ASC.
	GetByScope(ctx context.Context, scope domain.Scope) ([]*domain.DailyRecord, error)

	// GetByDate retrieves the record for (scope, date). Returns ErrNotFound if not exists.
	GetByDate(ctx context.Context, scope domain.Scope, date domain.Date) (*domain.DailyRecord, error)

	// DeleteByScope removes all records for a scope.
	DeleteByScope(ctx context.Context, scope domain.Scope) error
}

// PeriodAggregateStore provides access to period_aggregates storage.
type PeriodAggregateStore interface {
	// Upsert inserts or replaces the aggregate for (scope, granularity, period_key).
	Upsert(ctx context.Context, a *domain.PeriodAggregate) error

	// UpsertBulk inserts or replaces multiple aggregates.
	UpsertBulk(ctx context.Context, aggregates []*domain.PeriodAggregate) error

	// GetByScopeGranularity retrieves scope aggregates of one granularity, ordered by period_key ASC.
	GetByScopeGranularity(ctx context.Context, scope domain.Scope, g domain.Granularity) ([]*domain.PeriodAggregate, error)

	// GetByKey retrieves the aggregate for (scope, granularity, period_key). Returns ErrNotFound if not exists.
	GetByKey(ctx context.Context, scope domain.Scope, g domain.Granularity, periodKey string) (*domain.PeriodAggregate, error)

	// DeleteByScope removes all aggregates for a scope, every granularity.
	DeleteByScope(ctx context.Context, scope domain.Scope) error
}
