package domain

// DailyRecord is one row of the canonical per-day performance series for a
// scope. Records form a chronologically ordered sequence in which capital and
// cumulative P&L thread forward day to day:
//
//	capital[i]       = capital[i-1] + netFlow[i] + tradePnl[i]
//	cumulativePnl[i] = cumulativePnl[i-1] + tradePnl[i]
//
// ReturnPct is held as the day's time-weighted return percentage and is the
// input to geometric chaining in period rollups.
type DailyRecord struct {
	Wallet  string
	Account string // empty for whole-wallet scope
	Date    Date

	NetFlow       float64 // capital deposits + withdrawals (signed)
	TradePnl      float64 // sum of trade values (signed)
	CumulativePnl float64 // running total of TradePnl
	Capital       float64 // running capital at end of day
	ReturnPct     float64 // time-weighted return for the day, percent

	OpCount   int     // number of trade operations
	GrossGain float64 // positive trade values summed
	GrossLoss float64 // absolute value of negative trade values summed
}

// Scope returns the record's aggregation scope.
func (r *DailyRecord) Scope() Scope {
	return Scope{Wallet: r.Wallet, Account: r.Account}
}
