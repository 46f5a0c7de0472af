package domain

// TrailingSnapshot is the rolling 24-hour P&L view for a scope. It is computed
// on demand from the event list and the canonical daily series; it is never
// persisted.
type TrailingSnapshot struct {
	Pnl24h       float64
	Pct24h       float64
	Ops24h       int
	GrossGain24h float64
	GrossLoss24h float64
}
