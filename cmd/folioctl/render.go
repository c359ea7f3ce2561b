package main

import (
	"fmt"
	"strings"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/aristath/stockfolio/internal/modules/ledger"
	"github.com/aristath/stockfolio/internal/modules/portfolio"
	"github.com/aristath/stockfolio/internal/modules/snapshots"
	"github.com/aristath/stockfolio/internal/modules/trading"
	"github.com/aristath/stockfolio/internal/reliability"
)

func quotesMarkdown(quotes []domain.Quote) string {
	var b strings.Builder
	b.WriteString("| Symbol | Name | Price |\n|---|---|---:|\n")
	for _, q := range quotes {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", q.Symbol, escapeCell(q.Name), domain.FormatUSD(q.Price))
	}
	return b.String()
}

func tradeMarkdown(result trading.TradeResult) string {
	txn := result.Transaction
	verb := "Bought"
	if txn.Side() == ledger.TradeSideSell {
		verb = "Sold"
	}
	return fmt.Sprintf("%s %d **%s** at %s for %s. Cash: %s.\n",
		verb, abs(txn.Quantity), txn.Symbol,
		domain.FormatUSD(txn.Price), domain.FormatUSD(txn.Total.Abs()),
		domain.FormatUSD(result.Cash))
}

func reportMarkdown(username string, report portfolio.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Portfolio of %s\n\n", username)

	if len(report.Positions) == 0 {
		b.WriteString("No open positions.\n\n")
	} else {
		b.WriteString("| Symbol | Name | Shares | Avg cost | Price | Total | Gain |\n")
		b.WriteString("|---|---|---:|---:|---:|---:|---:|\n")
		for _, p := range report.Positions {
			fmt.Fprintf(&b, "| %s | %s | %d | %s | %s | %s | %s%% |\n",
				p.Symbol, escapeCell(p.Name), p.Quantity,
				domain.FormatUSD(p.AvgCost), domain.FormatUSD(p.CurrentPrice),
				domain.FormatUSD(p.CurrentValue), p.GainRatio.Shift(2).StringFixed(2))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "- **Cash**: %s\n", domain.FormatUSD(report.Cash))
	fmt.Fprintf(&b, "- **Unrealized profit**: %s\n", domain.FormatUSD(report.Benefit))
	fmt.Fprintf(&b, "- **Net worth**: %s\n", domain.FormatUSD(report.NetWorth))
	if report.Partial() {
		fmt.Fprintf(&b, "\n> No quote for %s; totals exclude them.\n", strings.Join(report.Unavailable, ", "))
	}
	return b.String()
}

func historyMarkdown(txns []ledger.Transaction) string {
	if len(txns) == 0 {
		return "No transactions.\n"
	}
	var b strings.Builder
	b.WriteString("| Symbol | Shares | Price | Transacted |\n|---|---:|---:|---|\n")
	for _, t := range txns {
		fmt.Fprintf(&b, "| %s | %d | %s | %s |\n",
			t.Symbol, t.Quantity, domain.FormatUSD(t.Price), t.ExecutedAt.UTC().Format("2006-01-02 15:04:05"))
	}
	return b.String()
}

func performanceMarkdown(perf snapshots.Performance) string {
	if perf.Count == 0 {
		return "No snapshots recorded yet.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "- **Snapshots**: %d\n", perf.Count)
	if perf.Latest != nil {
		fmt.Fprintf(&b, "- **Latest net worth**: %s (%s)\n",
			domain.FormatUSD(perf.Latest.NetWorth), perf.Latest.TakenAt.UTC().Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(&b, "- **Mean return**: %.4f%%\n", perf.MeanReturn*100)
	fmt.Fprintf(&b, "- **Return std dev**: %.4f%%\n", perf.StdDevReturn*100)
	if perf.MovingAverage != nil {
		fmt.Fprintf(&b, "- **%d-snapshot moving average**: $%.2f\n", perf.Window, *perf.MovingAverage)
	}
	return b.String()
}

func backupMarkdown(path string, metadata reliability.BackupMetadata) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Wrote `%s`\n\n| Database | Size | SHA-256 |\n|---|---:|---|\n", path)
	for _, db := range metadata.Databases {
		fmt.Fprintf(&b, "| %s | %d | `%s` |\n", db.Name, db.SizeBytes, db.Checksum)
	}
	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
