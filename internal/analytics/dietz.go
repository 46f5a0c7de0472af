package analytics

import (
	"sort"
	"time"

	"wallet-pnl-lab/internal/domain"
)

const daySeconds = 86400

// DayReturn computes the time-weighted return percentage for one calendar day
// (a Modified-Dietz variant): capital is weighted by the number of seconds it
// was held during the day, so an intra-day deposit only counts from the moment
// it arrived.
//
// capitalSeed is the capital level entering the day. The day window is
// [midnight, midnight+24h) in loc, anchored on the first event's timestamp.
// Out-of-order timestamps never decrease elapsed time; a day with zero average
// capital yields 0%, never a division fault.
func DayReturn(dayEvents []domain.TransactionEvent, capitalSeed float64, loc *time.Location) float64 {
	if len(dayEvents) == 0 {
		return 0
	}

	events := make([]domain.TransactionEvent, len(dayEvents))
	copy(events, dayEvents)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp < events[j].Timestamp
	})

	dayStart := domain.DateOf(events[0].Timestamp, loc).Unix(loc)
	dayEnd := dayStart + daySeconds

	capital := capitalSeed
	weightedSum := 0.0
	timeElapsed := int64(0)
	lastTs := dayStart
	dayPnl := 0.0

	for _, ev := range events {
		delta := ev.Timestamp - lastTs
		if delta > 0 {
			weightedSum += capital * float64(delta)
			timeElapsed += delta
		}

		// Only classified kinds mutate capital.
		if ev.Kind.IsValid() {
			capital += ev.Value
		}
		if ev.Kind == domain.OpKindTrade {
			dayPnl += ev.Value
		}

		lastTs = ev.Timestamp
	}

	if delta := dayEnd - lastTs; delta > 0 {
		weightedSum += capital * float64(delta)
		timeElapsed += delta
	}

	avgCapital := capitalSeed
	if timeElapsed > 0 {
		avgCapital = weightedSum / float64(timeElapsed)
	}

	if avgCapital <= 0 {
		return 0
	}
	return dayPnl / avgCapital * 100
}
