package analytics

import (
	"wallet-pnl-lab/internal/domain"
)

// Rollup partitions the canonical daily series into contiguous period groups
// for every granularity and computes one PeriodAggregate per group. The series
// must be in chronological order (as produced by BuildSeries); each record
// lands in exactly one group per granularity.
func Rollup(scope domain.Scope, series []domain.DailyRecord) []domain.PeriodAggregate {
	var out []domain.PeriodAggregate
	for _, g := range domain.AllGranularities() {
		out = append(out, RollupGranularity(scope, series, g)...)
	}
	return out
}

// RollupGranularity computes the period aggregates of one granularity. Groups
// are contiguous runs of records sharing a period key; because the series is
// chronologically sorted, a calendar period can never be split across runs.
func RollupGranularity(scope domain.Scope, series []domain.DailyRecord, g domain.Granularity) []domain.PeriodAggregate {
	if len(series) == 0 {
		return nil
	}

	var out []domain.PeriodAggregate
	start := 0
	key := PeriodKey(g, series[0].Date)

	for i := 1; i < len(series); i++ {
		k := PeriodKey(g, series[i].Date)
		if k == key {
			continue
		}
		out = append(out, consolidate(scope, series, start, i-1, g, key))
		start, key = i, k
	}
	out = append(out, consolidate(scope, series, start, len(series)-1, g, key))

	return out
}

// consolidate computes one aggregate from the contiguous slice series[a..b].
func consolidate(scope domain.Scope, series []domain.DailyRecord, a, b int, g domain.Granularity, key string) domain.PeriodAggregate {
	agg := domain.PeriodAggregate{
		Wallet:      scope.Wallet,
		Account:     scope.Account,
		Granularity: g,
		PeriodKey:   key,
	}

	chained := 1.0
	for i := a; i <= b; i++ {
		r := &series[i]
		agg.NetFlow += r.NetFlow
		agg.TradePnlSum += r.TradePnl
		agg.OpCount += r.OpCount
		agg.GrossGainSum += r.GrossGain
		agg.GrossLossSum += r.GrossLoss
		chained *= 1 + r.ReturnPct/100
	}
	agg.ChainedReturnPct = (chained - 1) * 100

	// Period P&L is the delta of the running cumulative series, not a re-sum
	// of the period's daily P&L. The two agree mathematically but the delta
	// form is canonical, down to floating-point rounding.
	cumBefore := 0.0
	if a > 0 {
		cumBefore = series[a-1].CumulativePnl
		agg.CapitalStart = series[a-1].Capital
	}
	agg.CumulativePnlAtEnd = series[b].CumulativePnl
	agg.PeriodPnl = series[b].CumulativePnl - cumBefore
	agg.CapitalEnd = series[b].Capital

	if g == domain.GranularityAll {
		// The all-time bucket carries first/last record dates, not calendar
		// bounds.
		agg.StartDate = series[a].Date
		agg.EndDate = series[b].Date
	} else {
		agg.StartDate, agg.EndDate = PeriodBounds(g, series[a].Date)
	}

	return agg
}
