package orchestrator

import (
	"context"
	"math"
	"testing"
	"time"

	"wallet-pnl-lab/internal/domain"
	"wallet-pnl-lab/internal/storage/memory"
)

const testWallet = "0xWallet"

type testStores struct {
	events  *memory.EventStore
	daily   *memory.DailyRecordStore
	periods *memory.PeriodAggregateStore
}

func createTestStores() testStores {
	return testStores{
		events:  memory.NewEventStore(),
		daily:   memory.NewDailyRecordStore(),
		periods: memory.NewPeriodAggregateStore(),
	}
}

func newTestOrchestrator(stores testStores) *Orchestrator {
	return New(Options{
		EventStore:  stores.events,
		DailyStore:  stores.daily,
		PeriodStore: stores.periods,
		Wallet:      testWallet,
	})
}

func dayTS(day string, hour int) int64 {
	t, _ := time.Parse("2006-01-02", day)
	return t.Add(time.Duration(hour) * time.Hour).Unix()
}

func seedEvent(t *testing.T, store *memory.EventStore, id, account string, ts int64, kind domain.OpKind, value float64) {
	t.Helper()
	err := store.Insert(context.Background(), &domain.TransactionEvent{
		EventID:   id,
		Wallet:    testWallet,
		Account:   account,
		TxHash:    "0x" + id,
		Timestamp: ts,
		Kind:      kind,
		Value:     value,
	})
	if err != nil {
		t.Fatalf("seed event %s: %v", id, err)
	}
}

func TestOrchestrator_Run_EmptyStore(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()

	result, err := newTestOrchestrator(stores).Run(ctx)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	// The wallet scope always runs, even with no events.
	if result.ScopesProcessed != 1 {
		t.Errorf("expected 1 scope, got %d", result.ScopesProcessed)
	}
	if result.RecordsWritten != 0 || result.AggregatesWritten != 0 {
		t.Errorf("expected nothing written, got %+v", result)
	}
}

func TestOrchestrator_Run_WithEvents(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()

	// Two accounts, two days. Day 1: both deposit. Day 2: acc-1 trades up,
	// acc-2 trades down.
	seedEvent(t, stores.events, "e1", "acc-1", dayTS("2024-03-04", 10), domain.OpKindCapitalAdd, 1000)
	seedEvent(t, stores.events, "e2", "acc-2", dayTS("2024-03-04", 11), domain.OpKindCapitalAdd, 500)
	seedEvent(t, stores.events, "e3", "acc-1", dayTS("2024-03-05", 9), domain.OpKindTrade, 50)
	seedEvent(t, stores.events, "e4", "acc-2", dayTS("2024-03-05", 15), domain.OpKindTrade, -20)

	result, err := newTestOrchestrator(stores).Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Wallet scope + acc-1 + acc-2, each with 2 days.
	if result.ScopesProcessed != 3 {
		t.Fatalf("expected 3 scopes, got %d", result.ScopesProcessed)
	}
	if result.RecordsWritten != 6 {
		t.Errorf("expected 6 daily records, got %d", result.RecordsWritten)
	}
	if len(result.Errors) != 0 {
		t.Errorf("unexpected errors: %v", result.Errors)
	}

	// Wallet scope threads capital across both accounts.
	walletScope := domain.Scope{Wallet: testWallet}
	records, err := stores.daily.GetByScope(ctx, walletScope)
	if err != nil {
		t.Fatalf("GetByScope failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 wallet records, got %d", len(records))
	}
	if math.Abs(records[0].Capital-1500) > 1e-9 {
		t.Errorf("day 1 capital = %v, want 1500", records[0].Capital)
	}
	if math.Abs(records[1].Capital-1530) > 1e-9 {
		t.Errorf("day 2 capital = %v, want 1530", records[1].Capital)
	}
	if math.Abs(records[1].CumulativePnl-30) > 1e-9 {
		t.Errorf("day 2 cumulative pnl = %v, want 30", records[1].CumulativePnl)
	}

	// Account scope sees only its own events.
	accScope := domain.Scope{Wallet: testWallet, Account: "acc-2"}
	accRecords, err := stores.daily.GetByScope(ctx, accScope)
	if err != nil {
		t.Fatalf("GetByScope failed: %v", err)
	}
	if len(accRecords) != 2 {
		t.Fatalf("expected 2 account records, got %d", len(accRecords))
	}
	if math.Abs(accRecords[1].Capital-480) > 1e-9 {
		t.Errorf("acc-2 day 2 capital = %v, want 480", accRecords[1].Capital)
	}

	// Every granularity rolled up, including the all-time bucket.
	aggs, err := stores.periods.GetByScopeGranularity(ctx, walletScope, domain.GranularityAll)
	if err != nil {
		t.Fatalf("GetByScopeGranularity failed: %v", err)
	}
	if len(aggs) != 1 {
		t.Fatalf("expected 1 all-time aggregate, got %d", len(aggs))
	}
	if math.Abs(aggs[0].PeriodPnl-30) > 1e-9 {
		t.Errorf("all-time pnl = %v, want 30", aggs[0].PeriodPnl)
	}
}

func TestOrchestrator_Run_Idempotent(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()

	seedEvent(t, stores.events, "e1", "acc-1", dayTS("2024-03-04", 10), domain.OpKindCapitalAdd, 1000)
	seedEvent(t, stores.events, "e2", "acc-1", dayTS("2024-03-05", 9), domain.OpKindTrade, 50)

	orch := newTestOrchestrator(stores)
	first, err := orch.Run(ctx)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	second, err := orch.Run(ctx)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if first.RecordsWritten != second.RecordsWritten {
		t.Errorf("record counts differ between runs: %d vs %d", first.RecordsWritten, second.RecordsWritten)
	}

	records, err := stores.daily.GetByScope(ctx, domain.Scope{Wallet: testWallet})
	if err != nil {
		t.Fatalf("GetByScope failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records after rerun, got %d", len(records))
	}
}

func TestOrchestrator_Trailing(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()

	seedEvent(t, stores.events, "e1", "acc-1", dayTS("2024-03-04", 10), domain.OpKindCapitalAdd, 1000)
	seedEvent(t, stores.events, "e2", "acc-1", dayTS("2024-03-06", 9), domain.OpKindTrade, 50)
	seedEvent(t, stores.events, "e3", "acc-1", dayTS("2024-03-06", 11), domain.OpKindTrade, -10)

	orch := newTestOrchestrator(stores)
	now := dayTS("2024-03-06", 12)

	snap, err := orch.Trailing(ctx, domain.Scope{Wallet: testWallet}, now)
	if err != nil {
		t.Fatalf("Trailing failed: %v", err)
	}
	if math.Abs(snap.Pnl24h-40) > 1e-9 {
		t.Errorf("trailing pnl = %v, want 40", snap.Pnl24h)
	}
	if snap.Ops24h != 2 {
		t.Errorf("trailing ops = %d, want 2", snap.Ops24h)
	}
	if math.Abs(snap.GrossGain24h-50) > 1e-9 || math.Abs(snap.GrossLoss24h-10) > 1e-9 {
		t.Errorf("trailing gross = %v / %v, want 50 / 10", snap.GrossGain24h, snap.GrossLoss24h)
	}
}
