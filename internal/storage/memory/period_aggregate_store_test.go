package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"wallet-pnl-lab/internal/domain"
	"wallet-pnl-lab/internal/storage"
)

func TestPeriodAggregateStore_UpsertAndGet(t *testing.T) {
	store := NewPeriodAggregateStore()
	ctx := context.Background()

	agg := &domain.PeriodAggregate{
		Wallet:           "0xwallet",
		Granularity:      domain.GranularityMonth,
		PeriodKey:        "2024-03",
		StartDate:        domain.Date{Year: 2024, Month: time.March, Day: 1},
		EndDate:          domain.Date{Year: 2024, Month: time.March, Day: 31},
		PeriodPnl:        50,
		ChainedReturnPct: 4.5,
	}

	if err := store.Upsert(ctx, agg); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.GetByKey(ctx, domain.Scope{Wallet: "0xwallet"}, domain.GranularityMonth, "2024-03")
	if err != nil {
		t.Fatalf("GetByKey failed: %v", err)
	}
	if got.PeriodPnl != 50 {
		t.Errorf("PeriodPnl mismatch: got %f, want %f", got.PeriodPnl, 50.0)
	}
}

func TestPeriodAggregateStore_UpsertReplaces(t *testing.T) {
	store := NewPeriodAggregateStore()
	ctx := context.Background()

	first := &domain.PeriodAggregate{Wallet: "0xwallet", Granularity: domain.GranularityYear, PeriodKey: "2024", PeriodPnl: 50}
	if err := store.Upsert(ctx, first); err != nil {
		t.Fatalf("First upsert failed: %v", err)
	}

	second := &domain.PeriodAggregate{Wallet: "0xwallet", Granularity: domain.GranularityYear, PeriodKey: "2024", PeriodPnl: 75}
	if err := store.Upsert(ctx, second); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	got, _ := store.GetByKey(ctx, domain.Scope{Wallet: "0xwallet"}, domain.GranularityYear, "2024")
	if got.PeriodPnl != 75 {
		t.Errorf("Expected replaced PeriodPnl 75, got %f", got.PeriodPnl)
	}
}

func TestPeriodAggregateStore_GetByScopeGranularity(t *testing.T) {
	store := NewPeriodAggregateStore()
	ctx := context.Background()

	aggs := []*domain.PeriodAggregate{
		{Wallet: "0xwallet", Granularity: domain.GranularityMonth, PeriodKey: "2024-03"},
		{Wallet: "0xwallet", Granularity: domain.GranularityMonth, PeriodKey: "2024-01"},
		{Wallet: "0xwallet", Granularity: domain.GranularityMonth, PeriodKey: "2024-02"},
		{Wallet: "0xwallet", Granularity: domain.GranularityWeek, PeriodKey: "2024-W09"},
		{Wallet: "0xwallet", Account: "a1", Granularity: domain.GranularityMonth, PeriodKey: "2024-01"},
	}
	if err := store.UpsertBulk(ctx, aggs); err != nil {
		t.Fatalf("UpsertBulk failed: %v", err)
	}

	result, err := store.GetByScopeGranularity(ctx, domain.Scope{Wallet: "0xwallet"}, domain.GranularityMonth)
	if err != nil {
		t.Fatalf("GetByScopeGranularity failed: %v", err)
	}

	if len(result) != 3 {
		t.Fatalf("Expected 3 month aggregates, got %d", len(result))
	}
	for i, want := range []string{"2024-01", "2024-02", "2024-03"} {
		if result[i].PeriodKey != want {
			t.Errorf("Position %d: expected %s, got %s", i, want, result[i].PeriodKey)
		}
	}
}

func TestPeriodAggregateStore_NotFound(t *testing.T) {
	store := NewPeriodAggregateStore()
	ctx := context.Background()

	_, err := store.GetByKey(ctx, domain.Scope{Wallet: "0xwallet"}, domain.GranularityAll, "all")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestPeriodAggregateStore_DeleteByScope(t *testing.T) {
	store := NewPeriodAggregateStore()
	ctx := context.Background()

	aggs := []*domain.PeriodAggregate{
		{Wallet: "0xwallet", Granularity: domain.GranularityMonth, PeriodKey: "2024-01"},
		{Wallet: "0xwallet", Granularity: domain.GranularityAll, PeriodKey: "all"},
		{Wallet: "0xother", Granularity: domain.GranularityMonth, PeriodKey: "2024-01"},
	}
	if err := store.UpsertBulk(ctx, aggs); err != nil {
		t.Fatalf("UpsertBulk failed: %v", err)
	}

	if err := store.DeleteByScope(ctx, domain.Scope{Wallet: "0xwallet"}); err != nil {
		t.Fatalf("DeleteByScope failed: %v", err)
	}

	for _, g := range domain.AllGranularities() {
		rows, _ := store.GetByScopeGranularity(ctx, domain.Scope{Wallet: "0xwallet"}, g)
		if len(rows) != 0 {
			t.Errorf("Granularity %s: expected 0 rows after delete, got %d", g, len(rows))
		}
	}

	other, _ := store.GetByScopeGranularity(ctx, domain.Scope{Wallet: "0xother"}, domain.GranularityMonth)
	if len(other) != 1 {
		t.Errorf("Expected other wallet untouched, got %d rows", len(other))
	}
}

func TestPeriodAggregateStore_InvalidGranularity(t *testing.T) {
	store := NewPeriodAggregateStore()
	ctx := context.Background()

	agg := &domain.PeriodAggregate{Wallet: "0xwallet", Granularity: "decade", PeriodKey: "2020s"}
	if err := store.Upsert(ctx, agg); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
