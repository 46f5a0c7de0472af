package analytics

import (
	"math"
	"testing"
	"time"

	"wallet-pnl-lab/internal/domain"
)

func TestDayReturn_TimeWeightedSeed(t *testing.T) {
	// Single trade of -50 at noon against a seed of 1100:
	// capital is 1100 for the first 12h and 1050 for the last 12h,
	// so avgCapital = 1075 and the return is -50/1075*100.
	events := []domain.TransactionEvent{
		event(domain.OpKindTrade, -50, ts(2024, time.March, 2, 12)),
	}

	got := DayReturn(events, 1100, time.UTC)
	want := -50.0 / 1075.0 * 100

	if math.Abs(got-want) > 1e-9 {
		t.Errorf("DayReturn: got %f, want %f", got, want)
	}
	if got >= 0 {
		t.Errorf("expected a small negative return, got %f", got)
	}
}

func TestDayReturn_IntraDayDepositWeighted(t *testing.T) {
	// Deposit at 18:00 only counts for the final quarter of the day:
	// avg = (1000*0.75 + 2000*0.25) = 1250.
	events := []domain.TransactionEvent{
		event(domain.OpKindCapitalAdd, 1000, ts(2024, time.March, 2, 18)),
		event(domain.OpKindTrade, 125, ts(2024, time.March, 2, 18)),
	}

	got := DayReturn(events, 1000, time.UTC)
	want := 125.0 / 1250.0 * 100 // 10%

	if math.Abs(got-want) > 1e-9 {
		t.Errorf("DayReturn: got %f, want %f", got, want)
	}
}

func TestDayReturn_ZeroAvgCapitalGuard(t *testing.T) {
	events := []domain.TransactionEvent{
		event(domain.OpKindTrade, -10, ts(2024, time.March, 2, 12)),
	}

	got := DayReturn(events, 0, time.UTC)
	if got != 0 {
		t.Errorf("expected 0%% with zero capital, got %f", got)
	}
	if math.IsNaN(got) || math.IsInf(got, 0) {
		t.Errorf("expected finite value, got %f", got)
	}
}

func TestDayReturn_OutOfOrderTimestampsClamped(t *testing.T) {
	// The second event is before the first; elapsed time never decreases.
	events := []domain.TransactionEvent{
		event(domain.OpKindTrade, 10, ts(2024, time.March, 2, 12)),
		event(domain.OpKindTrade, 10, ts(2024, time.March, 2, 6)),
	}

	got := DayReturn(events, 1000, time.UTC)
	if math.IsNaN(got) || got <= 0 {
		t.Errorf("expected positive finite return, got %f", got)
	}
}

func TestDayReturn_DuplicateTimestamps(t *testing.T) {
	at := ts(2024, time.March, 2, 12)
	events := []domain.TransactionEvent{
		event(domain.OpKindTrade, 10, at),
		event(domain.OpKindTrade, 20, at),
	}

	got := DayReturn(events, 1000, time.UTC)
	// capital 1000 until noon, 1030 after; avg = 1015.
	want := 30.0 / 1015.0 * 100

	if math.Abs(got-want) > 1e-9 {
		t.Errorf("DayReturn: got %f, want %f", got, want)
	}
}

func TestDayReturn_UnknownKindDoesNotMutateCapital(t *testing.T) {
	events := []domain.TransactionEvent{
		event(domain.OpKindUnknown, 10000, ts(2024, time.March, 2, 6)),
		event(domain.OpKindTrade, 100, ts(2024, time.March, 2, 12)),
	}

	got := DayReturn(events, 1000, time.UTC)
	// Unknown value must not inflate capital: 1000 until noon, 1100 after.
	want := 100.0 / 1050.0 * 100

	if math.Abs(got-want) > 1e-9 {
		t.Errorf("DayReturn: got %f, want %f", got, want)
	}
}

func TestDayReturn_EmptyEvents(t *testing.T) {
	if got := DayReturn(nil, 500, time.UTC); got != 0 {
		t.Errorf("expected 0 for empty day, got %f", got)
	}
}
