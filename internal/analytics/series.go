package analytics

import (
	"sort"
	"time"

	"wallet-pnl-lab/internal/domain"
)

// seriesState is the value threaded through the daily fold.
type seriesState struct {
	capital       float64
	cumulativePnl float64
}

// BuildSeries produces the canonical chronologically ordered DailyRecord
// sequence for a scope from its full event list. It is a deterministic
// function of the input: re-running it on an identical event list yields
// bit-identical records.
//
// Capital and cumulative P&L are threaded forward as an explicit fold over
// days. The per-day return is computed against the capital entering the day;
// for the first day the seed is that day's net inflow when positive, so the
// opening capital injection is its own baseline instead of a zero-capital
// degenerate case.
func BuildSeries(scope domain.Scope, events []domain.TransactionEvent, loc *time.Location) []domain.DailyRecord {
	scoped := FilterScope(events, scope)
	buckets, _ := GroupByDay(scoped, loc)
	if len(buckets) == 0 {
		return nil
	}

	dates := make([]domain.Date, 0, len(buckets))
	for d := range buckets {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	state := seriesState{}
	records := make([]domain.DailyRecord, 0, len(dates))

	for i, date := range dates {
		b := buckets[date]

		seed := state.capital
		if i == 0 && b.NetFlow > 0 {
			seed = b.NetFlow
		}

		state.capital += b.NetFlow + b.TradePnl
		state.cumulativePnl += b.TradePnl

		records = append(records, domain.DailyRecord{
			Wallet:        scope.Wallet,
			Account:       scope.Account,
			Date:          date,
			NetFlow:       b.NetFlow,
			TradePnl:      b.TradePnl,
			CumulativePnl: state.cumulativePnl,
			Capital:       state.capital,
			ReturnPct:     DayReturn(b.Events, seed, loc),
			OpCount:       b.OpCount,
			GrossGain:     b.GrossGain,
			GrossLoss:     b.GrossLoss,
		})
	}

	return records
}
