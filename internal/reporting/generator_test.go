package reporting

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"wallet-pnl-lab/internal/domain"
	"wallet-pnl-lab/internal/storage/memory"
)

const testWallet = "0xWallet"

func date(s string) domain.Date {
	t, _ := time.Parse("2006-01-02", s)
	return domain.DateFromTime(t)
}

func seedStores(t *testing.T) (*memory.EventStore, *memory.DailyRecordStore, *memory.PeriodAggregateStore) {
	t.Helper()
	ctx := context.Background()

	events := memory.NewEventStore()
	daily := memory.NewDailyRecordStore()
	periods := memory.NewPeriodAggregateStore()

	for _, e := range []*domain.TransactionEvent{
		{EventID: "e1", Wallet: testWallet, TxHash: "0x1", Timestamp: date("2024-03-04").Unix(time.UTC) + 3600,
			Kind: domain.OpKindCapitalAdd, Value: 1000},
		{EventID: "e2", Wallet: testWallet, TxHash: "0x2", Timestamp: date("2024-03-05").Unix(time.UTC) + 3600,
			Kind: domain.OpKindTrade, Value: 50},
	} {
		if err := events.Insert(ctx, e); err != nil {
			t.Fatalf("seed event: %v", err)
		}
	}

	records := []*domain.DailyRecord{
		{Wallet: testWallet, Date: date("2024-03-04"), NetFlow: 1000, Capital: 1000, OpCount: 0},
		{Wallet: testWallet, Date: date("2024-03-05"), TradePnl: 50, CumulativePnl: 50,
			Capital: 1050, ReturnPct: 5, OpCount: 1, GrossGain: 50},
	}
	if err := daily.UpsertBulk(ctx, records); err != nil {
		t.Fatalf("seed daily: %v", err)
	}

	agg := &domain.PeriodAggregate{
		Wallet: testWallet, Granularity: domain.GranularityMonth, PeriodKey: "2024-03",
		StartDate: date("2024-03-01"), EndDate: date("2024-03-31"),
		NetFlow: 1000, PeriodPnl: 50, CapitalEnd: 1050, ChainedReturnPct: 5, OpCount: 1,
	}
	if err := periods.Upsert(ctx, agg); err != nil {
		t.Fatalf("seed aggregate: %v", err)
	}

	return events, daily, periods
}

func TestGeneratorGenerate(t *testing.T) {
	events, daily, periods := seedStores(t)

	clock := date("2024-03-05").Time(time.UTC).Add(6 * time.Hour)
	gen := NewGenerator(events, daily, periods).WithClock(func() time.Time { return clock })

	report, err := gen.Generate(context.Background(), domain.Scope{Wallet: testWallet})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if report.Wallet != testWallet || report.Account != "" {
		t.Errorf("unexpected report identity: %s/%s", report.Wallet, report.Account)
	}
	if !report.GeneratedAt.Equal(clock) {
		t.Errorf("GeneratedAt = %v, want %v", report.GeneratedAt, clock)
	}

	if report.Summary.Days != 2 {
		t.Errorf("summary days = %d, want 2", report.Summary.Days)
	}
	if report.Summary.FirstDate != "2024-03-04" || report.Summary.LastDate != "2024-03-05" {
		t.Errorf("summary dates = %s..%s", report.Summary.FirstDate, report.Summary.LastDate)
	}
	if math.Abs(report.Summary.CapitalEnd-1050) > 1e-9 {
		t.Errorf("summary capital = %v, want 1050", report.Summary.CapitalEnd)
	}
	if math.Abs(report.Summary.CumulativePnl-50) > 1e-9 {
		t.Errorf("summary cumulative pnl = %v, want 50", report.Summary.CumulativePnl)
	}

	// The trade at 2024-03-05 01:00 is within 24h of the clock.
	if math.Abs(report.Trailing.Pnl24h-50) > 1e-9 || report.Trailing.Ops24h != 1 {
		t.Errorf("unexpected trailing snapshot: %+v", report.Trailing)
	}

	if len(report.Periods) != len(domain.AllGranularities()) {
		t.Fatalf("expected %d period sections, got %d", len(domain.AllGranularities()), len(report.Periods))
	}
	var monthSection *PeriodSection
	for i := range report.Periods {
		if report.Periods[i].Granularity == domain.GranularityMonth {
			monthSection = &report.Periods[i]
		}
	}
	if monthSection == nil || len(monthSection.Rows) != 1 {
		t.Fatalf("expected one month row, got %+v", monthSection)
	}
	if monthSection.Rows[0].PeriodKey != "2024-03" {
		t.Errorf("month period key = %s", monthSection.Rows[0].PeriodKey)
	}

	if len(report.Daily) != 2 {
		t.Errorf("expected 2 daily rows, got %d", len(report.Daily))
	}
}

func TestGeneratorEmptyScope(t *testing.T) {
	events, daily, periods := seedStores(t)

	gen := NewGenerator(events, daily, periods)
	report, err := gen.Generate(context.Background(), domain.Scope{Wallet: "0xOther"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if report.Summary.Days != 0 || len(report.Daily) != 0 {
		t.Errorf("expected empty report, got %+v", report.Summary)
	}
}

func TestRenderMarkdown(t *testing.T) {
	events, daily, periods := seedStores(t)

	clock := date("2024-03-05").Time(time.UTC).Add(6 * time.Hour)
	gen := NewGenerator(events, daily, periods).WithClock(func() time.Time { return clock })
	report, err := gen.Generate(context.Background(), domain.Scope{Wallet: testWallet})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	md := RenderMarkdown(report)
	for _, want := range []string{
		"# Wallet Performance Report",
		"Wallet: " + testWallet,
		"| Days | 2 |",
		"## Trailing 24h",
		"## Rollup: month",
		"| 2024-03 |",
		"## Daily Series",
		"| 2024-03-05 |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
	if strings.Contains(md, "Account:") {
		t.Error("wallet-scope report should not name an account")
	}
}

func TestRenderCSV(t *testing.T) {
	rows := []DailyRow{
		{Date: "2024-03-04", NetFlow: 1000, Capital: 1000},
		{Date: "2024-03-05", TradePnl: 50, CumulativePnl: 50, Capital: 1050, ReturnPct: 5, OpCount: 1},
	}
	out := RenderDailyCSV(rows)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "date,net_flow") {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.HasPrefix(lines[2], "2024-03-05,0.000000,50.000000") {
		t.Errorf("unexpected row: %s", lines[2])
	}

	periodRows := []PeriodRow{{PeriodKey: "2024-03", StartDate: "2024-03-01", EndDate: "2024-03-31", PeriodPnl: 50, OpCount: 1}}
	out = RenderPeriodCSV(periodRows)
	if !strings.Contains(out, "2024-03,2024-03-01,2024-03-31") {
		t.Errorf("unexpected period csv: %s", out)
	}
}
