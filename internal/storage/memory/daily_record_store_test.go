package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"wallet-pnl-lab/internal/domain"
	"wallet-pnl-lab/internal/storage"
)

func TestDailyRecordStore_UpsertAndGet(t *testing.T) {
	store := NewDailyRecordStore()
	ctx := context.Background()

	record := &domain.DailyRecord{
		Wallet:    "0xwallet",
		Date:      domain.Date{Year: 2024, Month: time.March, Day: 1},
		NetFlow:   1000,
		TradePnl:  100,
		Capital:   1100,
		ReturnPct: 9.3,
	}

	if err := store.Upsert(ctx, record); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.GetByDate(ctx, domain.Scope{Wallet: "0xwallet"}, record.Date)
	if err != nil {
		t.Fatalf("GetByDate failed: %v", err)
	}
	if got.Capital != 1100 {
		t.Errorf("Capital mismatch: got %f, want %f", got.Capital, 1100.0)
	}
}

func TestDailyRecordStore_UpsertReplaces(t *testing.T) {
	store := NewDailyRecordStore()
	ctx := context.Background()

	date := domain.Date{Year: 2024, Month: time.March, Day: 1}
	first := &domain.DailyRecord{Wallet: "0xwallet", Date: date, Capital: 1100}
	if err := store.Upsert(ctx, first); err != nil {
		t.Fatalf("First upsert failed: %v", err)
	}

	second := &domain.DailyRecord{Wallet: "0xwallet", Date: date, Capital: 1200}
	if err := store.Upsert(ctx, second); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	got, _ := store.GetByDate(ctx, domain.Scope{Wallet: "0xwallet"}, date)
	if got.Capital != 1200 {
		t.Errorf("Expected replaced capital 1200, got %f", got.Capital)
	}

	all, _ := store.GetByScope(ctx, domain.Scope{Wallet: "0xwallet"})
	if len(all) != 1 {
		t.Errorf("Expected 1 record after replace, got %d", len(all))
	}
}

func TestDailyRecordStore_GetByScopeOrdered(t *testing.T) {
	store := NewDailyRecordStore()
	ctx := context.Background()

	records := []*domain.DailyRecord{
		{Wallet: "0xwallet", Date: domain.Date{Year: 2024, Month: time.March, Day: 3}},
		{Wallet: "0xwallet", Date: domain.Date{Year: 2024, Month: time.March, Day: 1}},
		{Wallet: "0xwallet", Date: domain.Date{Year: 2024, Month: time.February, Day: 28}},
		{Wallet: "0xwallet", Account: "a1", Date: domain.Date{Year: 2024, Month: time.March, Day: 2}},
	}
	if err := store.UpsertBulk(ctx, records); err != nil {
		t.Fatalf("UpsertBulk failed: %v", err)
	}

	result, err := store.GetByScope(ctx, domain.Scope{Wallet: "0xwallet"})
	if err != nil {
		t.Fatalf("GetByScope failed: %v", err)
	}

	if len(result) != 3 {
		t.Fatalf("Expected 3 wallet-scope records, got %d", len(result))
	}
	for i := 1; i < len(result); i++ {
		if !result[i-1].Date.Before(result[i].Date) {
			t.Errorf("Results not ordered: %s before %s", result[i-1].Date, result[i].Date)
		}
	}
}

func TestDailyRecordStore_NotFound(t *testing.T) {
	store := NewDailyRecordStore()
	ctx := context.Background()

	_, err := store.GetByDate(ctx, domain.Scope{Wallet: "0xwallet"}, domain.Date{Year: 2024, Month: time.March, Day: 1})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestDailyRecordStore_DeleteByScope(t *testing.T) {
	store := NewDailyRecordStore()
	ctx := context.Background()

	records := []*domain.DailyRecord{
		{Wallet: "0xwallet", Date: domain.Date{Year: 2024, Month: time.March, Day: 1}},
		{Wallet: "0xwallet", Date: domain.Date{Year: 2024, Month: time.March, Day: 2}},
		{Wallet: "0xwallet", Account: "a1", Date: domain.Date{Year: 2024, Month: time.March, Day: 1}},
	}
	if err := store.UpsertBulk(ctx, records); err != nil {
		t.Fatalf("UpsertBulk failed: %v", err)
	}

	if err := store.DeleteByScope(ctx, domain.Scope{Wallet: "0xwallet"}); err != nil {
		t.Fatalf("DeleteByScope failed: %v", err)
	}

	wallet, _ := store.GetByScope(ctx, domain.Scope{Wallet: "0xwallet"})
	if len(wallet) != 0 {
		t.Errorf("Expected 0 wallet-scope records after delete, got %d", len(wallet))
	}

	// Account scope untouched
	account, _ := store.GetByScope(ctx, domain.Scope{Wallet: "0xwallet", Account: "a1"})
	if len(account) != 1 {
		t.Errorf("Expected account-scope record to survive, got %d", len(account))
	}
}

func TestDailyRecordStore_CopyOnRead(t *testing.T) {
	store := NewDailyRecordStore()
	ctx := context.Background()

	date := domain.Date{Year: 2024, Month: time.March, Day: 1}
	if err := store.Upsert(ctx, &domain.DailyRecord{Wallet: "0xwallet", Date: date, Capital: 1100}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, _ := store.GetByDate(ctx, domain.Scope{Wallet: "0xwallet"}, date)
	got.Capital = -1

	again, _ := store.GetByDate(ctx, domain.Scope{Wallet: "0xwallet"}, date)
	if again.Capital != 1100 {
		t.Errorf("Stored record mutated through returned copy: %f", again.Capital)
	}
}
