package reporting

import (
	"fmt"
	"strings"
)

// RenderDailyCSV renders the daily series as CSV string.
func RenderDailyCSV(rows []DailyRow) string {
	var sb strings.Builder

	sb.WriteString("date,net_flow,trade_pnl,cumulative_pnl,capital,return_pct,op_count\n")
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%.6f,%.6f,%.6f,%.6f,%.6f,%d\n",
			r.Date, r.NetFlow, r.TradePnl, r.CumulativePnl, r.Capital, r.ReturnPct, r.OpCount))
	}

	return sb.String()
}

// RenderPeriodCSV renders one granularity's rollup rows as CSV string.
func RenderPeriodCSV(rows []PeriodRow) string {
	var sb strings.Builder

	sb.WriteString("period_key,start_date,end_date,net_flow,period_pnl,")
	sb.WriteString("capital_start,capital_end,chained_return_pct,op_count\n")
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%.6f,%.6f,%.6f,%.6f,%.6f,%d\n",
			r.PeriodKey, r.StartDate, r.EndDate, r.NetFlow, r.PeriodPnl,
			r.CapitalStart, r.CapitalEnd, r.ChainedReturnPct, r.OpCount))
	}

	return sb.String()
}
