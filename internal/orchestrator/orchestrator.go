// Package orchestrator coordinates the reporting pipeline.
// It recomputes daily series and period rollups from stored events.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"wallet-pnl-lab/internal/analytics"
	"wallet-pnl-lab/internal/domain"
	"wallet-pnl-lab/internal/storage"
)

// Orchestrator recomputes derived metrics for a wallet.
// Flow: enumerate scopes → build daily series → roll up periods.
type Orchestrator struct {
	eventStore  storage.EventStore
	dailyStore  storage.DailyRecordStore
	periodStore storage.PeriodAggregateStore

	wallet   string
	location *time.Location

	verbose bool
}

// Options for creating Orchestrator.
type Options struct {
	EventStore  storage.EventStore
	DailyStore  storage.DailyRecordStore
	PeriodStore storage.PeriodAggregateStore

	Wallet   string
	Location *time.Location // Default: UTC

	Verbose bool
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Orchestrator{
		eventStore:  opts.EventStore,
		dailyStore:  opts.DailyStore,
		periodStore: opts.PeriodStore,
		wallet:      opts.Wallet,
		location:    loc,
		verbose:     opts.Verbose,
	}
}

// RunResult contains results from one recompute.
type RunResult struct {
	ScopesProcessed   int
	RecordsWritten    int
	AggregatesWritten int
	Errors            []string
}

// Run recomputes every scope of the wallet: the wallet itself plus one scope
// per sub-account seen in the event history. Each scope is rewritten in full;
// a failing scope is recorded and the rest still run.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{}

	o.log("Phase 1: Enumerating scopes...")
	scopes, err := o.loadScopes(ctx)
	if err != nil {
		return nil, fmt.Errorf("phase 1 (enumerate scopes) failed: %w", err)
	}
	o.log("  Found %d scopes", len(scopes))

	o.log("Phase 2: Recomputing series and rollups...")
	for _, scope := range scopes {
		records, aggregates, err := o.recomputeScope(ctx, scope)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("recompute %s: %v", scope, err))
			continue
		}
		result.ScopesProcessed++
		result.RecordsWritten += records
		result.AggregatesWritten += aggregates
	}

	o.log("Recompute completed: %d scopes, %d daily records, %d aggregates (%d errors)",
		result.ScopesProcessed, result.RecordsWritten, result.AggregatesWritten, len(result.Errors))

	return result, nil
}

// Trailing computes the trailing-24h snapshot for a scope as of now. It is
// derived on demand rather than stored, so it never goes stale between runs.
func (o *Orchestrator) Trailing(ctx context.Context, scope domain.Scope, now int64) (domain.TrailingSnapshot, error) {
	events, err := o.eventStore.GetByScope(ctx, scope)
	if err != nil {
		return domain.TrailingSnapshot{}, fmt.Errorf("load events: %w", err)
	}
	flat := derefEvents(events)
	series := analytics.BuildSeries(scope, flat, o.location)
	return analytics.TrailingWindow(flat, series, now, o.location), nil
}

// loadScopes returns the wallet scope plus one scope per known account.
func (o *Orchestrator) loadScopes(ctx context.Context) ([]domain.Scope, error) {
	accounts, err := o.eventStore.Accounts(ctx, o.wallet)
	if err != nil {
		return nil, err
	}

	scopes := make([]domain.Scope, 0, len(accounts)+1)
	scopes = append(scopes, domain.Scope{Wallet: o.wallet})
	for _, account := range accounts {
		scopes = append(scopes, domain.Scope{Wallet: o.wallet, Account: account})
	}
	return scopes, nil
}

// recomputeScope rebuilds one scope from scratch: its daily series and every
// granularity of period aggregates.
func (o *Orchestrator) recomputeScope(ctx context.Context, scope domain.Scope) (int, int, error) {
	events, err := o.eventStore.GetByScope(ctx, scope)
	if err != nil {
		return 0, 0, fmt.Errorf("load events: %w", err)
	}

	series := analytics.BuildSeries(scope, derefEvents(events), o.location)
	aggregates := analytics.Rollup(scope, series)

	if err := o.dailyStore.DeleteByScope(ctx, scope); err != nil {
		return 0, 0, fmt.Errorf("clear daily records: %w", err)
	}
	if err := o.dailyStore.UpsertBulk(ctx, refRecords(series)); err != nil {
		return 0, 0, fmt.Errorf("store daily records: %w", err)
	}

	if err := o.periodStore.DeleteByScope(ctx, scope); err != nil {
		return 0, 0, fmt.Errorf("clear aggregates: %w", err)
	}
	if err := o.periodStore.UpsertBulk(ctx, refAggregates(aggregates)); err != nil {
		return 0, 0, fmt.Errorf("store aggregates: %w", err)
	}

	o.log("  %s: %d days, %d aggregates", scope, len(series), len(aggregates))
	return len(series), len(aggregates), nil
}

func derefEvents(events []*domain.TransactionEvent) []domain.TransactionEvent {
	out := make([]domain.TransactionEvent, 0, len(events))
	for _, e := range events {
		if e != nil {
			out = append(out, *e)
		}
	}
	return out
}

func refRecords(records []domain.DailyRecord) []*domain.DailyRecord {
	out := make([]*domain.DailyRecord, len(records))
	for i := range records {
		out[i] = &records[i]
	}
	return out
}

func refAggregates(aggregates []domain.PeriodAggregate) []*domain.PeriodAggregate {
	out := make([]*domain.PeriodAggregate, len(aggregates))
	for i := range aggregates {
		out[i] = &aggregates[i]
	}
	return out
}

func (o *Orchestrator) log(format string, args ...interface{}) {
	if o.verbose {
		log.Printf("[orchestrator] "+format, args...)
	}
}
