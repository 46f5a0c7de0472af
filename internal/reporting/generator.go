package reporting

import (
	"context"
	"time"

	"wallet-pnl-lab/internal/analytics"
	"wallet-pnl-lab/internal/domain"
	"wallet-pnl-lab/internal/storage"
)

// Generator produces reports from stored data.
type Generator struct {
	eventStore  storage.EventStore
	dailyStore  storage.DailyRecordStore
	periodStore storage.PeriodAggregateStore
	location    *time.Location
	now         func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(
	eventStore storage.EventStore,
	dailyStore storage.DailyRecordStore,
	periodStore storage.PeriodAggregateStore,
) *Generator {
	return &Generator{
		eventStore:  eventStore,
		dailyStore:  dailyStore,
		periodStore: periodStore,
		location:    time.UTC,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithLocation sets the timezone used for day bucketing in the trailing
// snapshot.
func (g *Generator) WithLocation(loc *time.Location) *Generator {
	g.location = loc
	return g
}

// Generate produces the complete performance report for one scope.
func (g *Generator) Generate(ctx context.Context, scope domain.Scope) (*Report, error) {
	now := g.now()

	records, err := g.dailyStore.GetByScope(ctx, scope)
	if err != nil {
		return nil, err
	}

	periods := make([]PeriodSection, 0, len(domain.AllGranularities()))
	for _, granularity := range domain.AllGranularities() {
		aggs, err := g.periodStore.GetByScopeGranularity(ctx, scope, granularity)
		if err != nil {
			return nil, err
		}
		periods = append(periods, PeriodSection{
			Granularity: granularity,
			Rows:        periodRows(aggs),
		})
	}

	trailing, err := g.generateTrailing(ctx, scope, now)
	if err != nil {
		return nil, err
	}

	return &Report{
		GeneratedAt: now,
		Wallet:      scope.Wallet,
		Account:     scope.Account,
		Summary:     summarize(records),
		Trailing:    trailing,
		Periods:     periods,
		Daily:       dailyRows(records),
	}, nil
}

// generateTrailing derives the 24h snapshot from raw events so it reflects
// transactions newer than the last recompute.
func (g *Generator) generateTrailing(ctx context.Context, scope domain.Scope, now time.Time) (domain.TrailingSnapshot, error) {
	events, err := g.eventStore.GetByScope(ctx, scope)
	if err != nil {
		return domain.TrailingSnapshot{}, err
	}

	flat := make([]domain.TransactionEvent, 0, len(events))
	for _, e := range events {
		if e != nil {
			flat = append(flat, *e)
		}
	}

	series := analytics.BuildSeries(scope, flat, g.location)
	return analytics.TrailingWindow(flat, series, now.Unix(), g.location), nil
}

// summarize condenses the daily series into headline figures. The last record
// carries the running totals; flows and gross sums are accumulated over all
// rows.
func summarize(records []*domain.DailyRecord) SeriesSummary {
	if len(records) == 0 {
		return SeriesSummary{}
	}

	summary := SeriesSummary{
		Days:      len(records),
		FirstDate: records[0].Date.String(),
		LastDate:  records[len(records)-1].Date.String(),
	}
	for _, r := range records {
		summary.NetFlowTotal += r.NetFlow
		summary.GrossGain += r.GrossGain
		summary.GrossLoss += r.GrossLoss
		summary.OpCount += r.OpCount
	}

	last := records[len(records)-1]
	summary.CapitalEnd = last.Capital
	summary.CumulativePnl = last.CumulativePnl
	return summary
}

func periodRows(aggs []*domain.PeriodAggregate) []PeriodRow {
	rows := make([]PeriodRow, 0, len(aggs))
	for _, a := range aggs {
		rows = append(rows, PeriodRow{
			PeriodKey:        a.PeriodKey,
			StartDate:        a.StartDate.String(),
			EndDate:          a.EndDate.String(),
			NetFlow:          a.NetFlow,
			PeriodPnl:        a.PeriodPnl,
			CapitalStart:     a.CapitalStart,
			CapitalEnd:       a.CapitalEnd,
			ChainedReturnPct: a.ChainedReturnPct,
			OpCount:          a.OpCount,
		})
	}
	return rows
}

func dailyRows(records []*domain.DailyRecord) []DailyRow {
	rows := make([]DailyRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, DailyRow{
			Date:          r.Date.String(),
			NetFlow:       r.NetFlow,
			TradePnl:      r.TradePnl,
			CumulativePnl: r.CumulativePnl,
			Capital:       r.Capital,
			ReturnPct:     r.ReturnPct,
			OpCount:       r.OpCount,
		})
	}
	return rows
}
