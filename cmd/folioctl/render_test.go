package main

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/aristath/stockfolio/internal/modules/ledger"
	"github.com/aristath/stockfolio/internal/modules/portfolio"
	"github.com/aristath/stockfolio/internal/modules/snapshots"
)

func TestReportMarkdown_Partial(t *testing.T) {
	report := portfolio.Report{
		Positions: []portfolio.ValuedPosition{{
			Position:         portfolio.Position{Symbol: "AAPL", Quantity: 2, AvgCost: decimal.NewFromInt(50)},
			Name:             "Apple | Inc",
			CurrentPrice:     decimal.NewFromInt(100),
			CurrentValue:     decimal.NewFromInt(200),
			GainRatio:        decimal.NewFromInt(1),
			UnrealizedProfit: decimal.NewFromInt(200),
		}},
		Cash:        decimal.NewFromInt(900),
		Benefit:     decimal.NewFromInt(200),
		NetWorth:    decimal.NewFromInt(1100),
		Unavailable: []string{"MSFT"},
	}

	md := reportMarkdown("alice", report)
	assert.Contains(t, md, "| AAPL | Apple \\| Inc | 2 | $50.00 | $100.00 | $200.00 | 100.00% |")
	assert.Contains(t, md, "- **Net worth**: $1,100.00")
	assert.Contains(t, md, "No quote for MSFT")
}

func TestReportMarkdown_Empty(t *testing.T) {
	md := reportMarkdown("bob", portfolio.Report{Cash: decimal.NewFromInt(10000), NetWorth: decimal.NewFromInt(10000)})
	assert.Contains(t, md, "No open positions.")
	assert.NotContains(t, md, "No quote for")
}

func TestHistoryMarkdown(t *testing.T) {
	assert.Equal(t, "No transactions.\n", historyMarkdown(nil))

	at := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)
	md := historyMarkdown([]ledger.Transaction{
		ledger.NewTransaction(1, "nflx", 3, decimal.RequireFromString("412.25"), at),
	})
	assert.Contains(t, md, "| NFLX | 3 | $412.25 | 2024-03-01 14:30:00 |")
}

func TestPerformanceMarkdown(t *testing.T) {
	avg := 10250.5
	md := performanceMarkdown(snapshots.Performance{
		Count:         6,
		MeanReturn:    0.0125,
		StdDevReturn:  0.002,
		Window:        5,
		MovingAverage: &avg,
	})
	assert.Contains(t, md, "- **Snapshots**: 6")
	assert.Contains(t, md, "- **Mean return**: 1.2500%")
	assert.Contains(t, md, "- **5-snapshot moving average**: $10250.50")
}
