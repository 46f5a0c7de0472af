package domain

// Granularity is a calendar rollup bucket size.
type Granularity string

const (
	GranularityWeek     Granularity = "week" // ISO-8601 weeks, Monday-Sunday
	GranularityMonth    Granularity = "month"
	GranularityQuarter  Granularity = "quarter"  // Jan-Mar, Apr-Jun, Jul-Sep, Oct-Dec
	GranularitySemester Granularity = "semester" // Jan-Jun, Jul-Dec
	GranularityYear     Granularity = "year"
	GranularityAll      Granularity = "all" // single bucket over the whole series
)

// AllGranularities lists every rollup granularity in coarseness order.
func AllGranularities() []Granularity {
	return []Granularity{
		GranularityWeek,
		GranularityMonth,
		GranularityQuarter,
		GranularitySemester,
		GranularityYear,
		GranularityAll,
	}
}

// IsValid checks if the granularity is a known value.
func (g Granularity) IsValid() bool {
	switch g {
	case GranularityWeek, GranularityMonth, GranularityQuarter,
		GranularitySemester, GranularityYear, GranularityAll:
		return true
	}
	return false
}

// String returns the string representation of Granularity.
func (g Granularity) String() string {
	return string(g)
}

// PeriodAggregate is one consolidated rollup row, derived from a contiguous
// slice of the canonical daily series. Unique per (scope, granularity,
// periodKey).
type PeriodAggregate struct {
	Wallet      string
	Account     string // empty for whole-wallet scope
	Granularity Granularity
	PeriodKey   string // e.g. "2024-W05", "2024-02", "2024-Q1", "2024-S1", "2024", "all"

	// Calendar boundaries of the period. The all-time bucket instead carries
	// the first and last record dates of the series.
	StartDate Date
	EndDate   Date

	NetFlow     float64
	TradePnlSum float64
	// CumulativePnlAtEnd is the running cumulative P&L at the period's last
	// record. PeriodPnl is the delta of the cumulative series across the
	// period, the canonical period P&L.
	CumulativePnlAtEnd float64
	PeriodPnl          float64

	CapitalStart float64 // capital entering the period (0 for the first period)
	CapitalEnd   float64 // capital at the period's last record

	// ChainedReturnPct compounds daily returns geometrically:
	// (prod(1 + r_i/100) - 1) * 100.
	ChainedReturnPct float64

	OpCount      int
	GrossGainSum float64
	GrossLossSum float64
}

// Scope returns the aggregate's aggregation scope.
func (a *PeriodAggregate) Scope() Scope {
	return Scope{Wallet: a.Wallet, Account: a.Account}
}
