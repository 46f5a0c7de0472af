package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Wallet Performance Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Wallet: %s\n\n", r.Wallet))
	if r.Account != "" {
		sb.WriteString(fmt.Sprintf("Account: %s\n\n", r.Account))
	}

	// Series Summary
	sb.WriteString("## Summary\n\n")
	if r.Summary.Days == 0 {
		sb.WriteString("No activity recorded.\n\n")
	} else {
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Days | %d |\n", r.Summary.Days))
		sb.WriteString(fmt.Sprintf("| First Day | %s |\n", r.Summary.FirstDate))
		sb.WriteString(fmt.Sprintf("| Last Day | %s |\n", r.Summary.LastDate))
		sb.WriteString(fmt.Sprintf("| Net Flow | %.6f |\n", r.Summary.NetFlowTotal))
		sb.WriteString(fmt.Sprintf("| Capital | %.6f |\n", r.Summary.CapitalEnd))
		sb.WriteString(fmt.Sprintf("| Cumulative P&L | %.6f |\n", r.Summary.CumulativePnl))
		sb.WriteString(fmt.Sprintf("| Gross Gain | %.6f |\n", r.Summary.GrossGain))
		sb.WriteString(fmt.Sprintf("| Gross Loss | %.6f |\n", r.Summary.GrossLoss))
		sb.WriteString(fmt.Sprintf("| Trades | %d |\n", r.Summary.OpCount))
		sb.WriteString("\n")
	}

	// Trailing 24h
	sb.WriteString("## Trailing 24h\n\n")
	sb.WriteString("| P&L | Return % | Trades | Gross Gain | Gross Loss |\n")
	sb.WriteString("|-----|----------|--------|------------|------------|\n")
	sb.WriteString(fmt.Sprintf("| %.6f | %.4f | %d | %.6f | %.6f |\n\n",
		r.Trailing.Pnl24h, r.Trailing.Pct24h, r.Trailing.Ops24h,
		r.Trailing.GrossGain24h, r.Trailing.GrossLoss24h))

	// Period rollups
	for _, section := range r.Periods {
		if len(section.Rows) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("## Rollup: %s\n\n", section.Granularity))
		sb.WriteString("| Period | Start | End | Net Flow | P&L | Capital Start | Capital End | Return % | Trades |\n")
		sb.WriteString("|--------|-------|-----|----------|-----|---------------|-------------|----------|--------|\n")
		for _, row := range section.Rows {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %.6f | %.6f | %.6f | %.6f | %.4f | %d |\n",
				row.PeriodKey, row.StartDate, row.EndDate,
				row.NetFlow, row.PeriodPnl, row.CapitalStart, row.CapitalEnd,
				row.ChainedReturnPct, row.OpCount))
		}
		sb.WriteString("\n")
	}

	// Daily series
	if len(r.Daily) > 0 {
		sb.WriteString("## Daily Series\n\n")
		sb.WriteString("| Date | Net Flow | Trade P&L | Cumulative P&L | Capital | Return % | Trades |\n")
		sb.WriteString("|------|----------|-----------|----------------|---------|----------|--------|\n")
		for _, row := range r.Daily {
			sb.WriteString(fmt.Sprintf("| %s | %.6f | %.6f | %.6f | %.6f | %.4f | %d |\n",
				row.Date, row.NetFlow, row.TradePnl, row.CumulativePnl,
				row.Capital, row.ReturnPct, row.OpCount))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
