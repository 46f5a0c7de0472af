// Package analytics is the pure computation core of the performance pipeline.
// It turns a materialized list of classified transaction events into the
// canonical daily series, calendar period rollups and the trailing 24h
// snapshot. Nothing in this package performs I/O; every function is a
// deterministic function of its inputs.
package analytics

import (
	"time"

	"wallet-pnl-lab/internal/domain"
)

// DailyBucket accumulates one calendar day's flows and trade results for a
// scope. Buckets are an intermediate shape: the series builder turns them into
// DailyRecords.
type DailyBucket struct {
	Date      domain.Date
	NetFlow   float64
	TradePnl  float64
	OpCount   int
	GrossGain float64
	GrossLoss float64

	// Events holds the day's events, in input order. The return calculator
	// sorts its own copy.
	Events []domain.TransactionEvent
}

// FilterScope returns the events belonging to the given scope, preserving
// input order.
func FilterScope(events []domain.TransactionEvent, scope domain.Scope) []domain.TransactionEvent {
	var out []domain.TransactionEvent
	for i := range events {
		if events[i].InScope(scope) {
			out = append(out, events[i])
		}
	}
	return out
}

// GroupByDay buckets events by calendar day in loc. Grouping is
// order-independent; chronological ordering is established by the series
// builder. Events with an unclassified kind or a missing timestamp or value
// are dropped (skipped records are counted in the second return value).
func GroupByDay(events []domain.TransactionEvent, loc *time.Location) (map[domain.Date]*DailyBucket, int) {
	buckets := make(map[domain.Date]*DailyBucket)
	skipped := 0

	for _, ev := range events {
		if !ev.Kind.IsValid() || malformed(&ev) {
			skipped++
			continue
		}

		date := domain.DateOf(ev.Timestamp, loc)
		b, ok := buckets[date]
		if !ok {
			b = &DailyBucket{Date: date}
			buckets[date] = b
		}

		if ev.Kind == domain.OpKindTrade {
			b.TradePnl += ev.Value
			b.OpCount++
			if ev.Value >= 0 {
				b.GrossGain += ev.Value
			} else {
				b.GrossLoss += -ev.Value
			}
		} else {
			b.NetFlow += ev.Value
		}
		b.Events = append(b.Events, ev)
	}

	return buckets, skipped
}

// malformed reports whether an event is missing its timestamp or value.
func malformed(ev *domain.TransactionEvent) bool {
	return ev.Timestamp <= 0 || ev.Value != ev.Value // NaN check
}
