package reporting

import (
	"time"

	"wallet-pnl-lab/internal/domain"
)

// Report is the full performance report for one scope.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	Wallet      string
	Account     string // empty for whole-wallet scope

	// Series Summary
	Summary SeriesSummary

	// Trailing 24h snapshot as of GeneratedAt
	Trailing domain.TrailingSnapshot

	// Period sections in coarseness order (week first, all-time last)
	Periods []PeriodSection

	// Daily rows, chronological
	Daily []DailyRow
}

// SeriesSummary describes the scope's whole daily series.
type SeriesSummary struct {
	Days          int
	FirstDate     string
	LastDate      string
	NetFlowTotal  float64
	CapitalEnd    float64
	CumulativePnl float64
	GrossGain     float64
	GrossLoss     float64
	OpCount       int
}

// PeriodSection holds one granularity's rollup rows.
type PeriodSection struct {
	Granularity domain.Granularity
	Rows        []PeriodRow
}

// PeriodRow represents one row in a period rollup table.
type PeriodRow struct {
	PeriodKey        string
	StartDate        string
	EndDate          string
	NetFlow          float64
	PeriodPnl        float64
	CapitalStart     float64
	CapitalEnd       float64
	ChainedReturnPct float64
	OpCount          int
}

// DailyRow represents one row in the daily series table.
type DailyRow struct {
	Date          string
	NetFlow       float64
	TradePnl      float64
	CumulativePnl float64
	Capital       float64
	ReturnPct     float64
	OpCount       int
}
