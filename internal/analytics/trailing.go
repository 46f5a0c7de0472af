package analytics

import (
	"time"

	"wallet-pnl-lab/internal/domain"
)

// TrailingWindow computes the rolling 24-hour P&L snapshot for a scope.
// events must already be scoped; series is the scope's canonical daily series
// in chronological order.
//
// The percentage baseline is the capital of the latest daily record whose day
// ended at or before the cutoff. When no record precedes the cutoff, the
// oldest record's capital is the fallback baseline. A non-positive baseline
// yields 0%, never a division fault.
func TrailingWindow(events []domain.TransactionEvent, series []domain.DailyRecord, now int64, loc *time.Location) domain.TrailingSnapshot {
	cutoff := now - daySeconds

	var snap domain.TrailingSnapshot
	for i := range events {
		ev := &events[i]
		if ev.Kind != domain.OpKindTrade || malformed(ev) || ev.Timestamp < cutoff {
			continue
		}
		snap.Pnl24h += ev.Value
		snap.Ops24h++
		if ev.Value >= 0 {
			snap.GrossGain24h += ev.Value
		} else {
			snap.GrossLoss24h += -ev.Value
		}
	}

	baseline := trailingBaseline(series, cutoff, loc)
	if baseline > 0 {
		snap.Pct24h = snap.Pnl24h / baseline * 100
	}
	return snap
}

// trailingBaseline picks the capital level the 24h percentage is measured
// against.
func trailingBaseline(series []domain.DailyRecord, cutoff int64, loc *time.Location) float64 {
	if len(series) == 0 {
		return 0
	}
	for i := len(series) - 1; i >= 0; i-- {
		dayEnd := series[i].Date.Unix(loc) + daySeconds
		if dayEnd <= cutoff {
			return series[i].Capital
		}
	}
	return series[0].Capital
}
