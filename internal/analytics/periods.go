package analytics

import (
	"fmt"
	"time"

	"wallet-pnl-lab/internal/domain"
)

// PeriodKey returns the rollup bucket key of a date for a granularity.
// Week keys use the ISO week-numbering year, so late-December and
// early-January days label to the week they actually belong to.
func PeriodKey(g domain.Granularity, d domain.Date) string {
	switch g {
	case domain.GranularityWeek:
		year, week := d.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case domain.GranularityMonth:
		return fmt.Sprintf("%04d-%02d", d.Year, int(d.Month))
	case domain.GranularityQuarter:
		return fmt.Sprintf("%04d-Q%d", d.Year, (int(d.Month)-1)/3+1)
	case domain.GranularitySemester:
		semester := 1
		if d.Month > time.June {
			semester = 2
		}
		return fmt.Sprintf("%04d-S%d", d.Year, semester)
	case domain.GranularityYear:
		return fmt.Sprintf("%04d", d.Year)
	case domain.GranularityAll:
		return "all"
	}
	return ""
}

// PeriodBounds returns the fixed calendar start and end dates of a period
// bucket. The all-time bucket has no calendar bounds; callers use the series'
// first and last record dates instead.
func PeriodBounds(g domain.Granularity, d domain.Date) (start, end domain.Date) {
	switch g {
	case domain.GranularityWeek:
		return isoWeekBounds(d)
	case domain.GranularityMonth:
		start = domain.Date{Year: d.Year, Month: d.Month, Day: 1}
		return start, start.AddDays(daysInMonth(d.Year, d.Month) - 1)
	case domain.GranularityQuarter:
		q := (int(d.Month) - 1) / 3
		start = domain.Date{Year: d.Year, Month: time.Month(q*3 + 1), Day: 1}
		endMonth := time.Month(q*3 + 3)
		return start, domain.Date{Year: d.Year, Month: endMonth, Day: daysInMonth(d.Year, endMonth)}
	case domain.GranularitySemester:
		if d.Month <= time.June {
			return domain.Date{Year: d.Year, Month: time.January, Day: 1},
				domain.Date{Year: d.Year, Month: time.June, Day: 30}
		}
		return domain.Date{Year: d.Year, Month: time.July, Day: 1},
			domain.Date{Year: d.Year, Month: time.December, Day: 31}
	case domain.GranularityYear:
		return domain.Date{Year: d.Year, Month: time.January, Day: 1},
			domain.Date{Year: d.Year, Month: time.December, Day: 31}
	}
	return domain.Date{}, domain.Date{}
}

// isoWeekBounds returns the Monday and Sunday of the ISO week containing d.
func isoWeekBounds(d domain.Date) (start, end domain.Date) {
	t := d.Time(time.UTC)
	weekday := int(t.Weekday())
	if weekday == 0 { // Sunday
		weekday = 7
	}
	start = d.AddDays(1 - weekday)
	return start, start.AddDays(6)
}

// daysInMonth returns the number of days in a month, leap years included.
func daysInMonth(year int, month time.Month) int {
	// Day 0 of the next month normalizes to this month's last day.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
