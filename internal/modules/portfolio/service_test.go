package portfolio

import (
	"context"
	"errors"
	"testing"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/aristath/stockfolio/internal/modules/ledger"
	testingpkg "github.com/aristath/stockfolio/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortfolioReport(t *testing.T) {
	store := ledger.NewMemoryStore()
	accountID := seedLedger(t, store, "7000",
		buy("AAPL", 10, "100"),
		buy("AAPL", 10, "200"),
	)
	quotes := testingpkg.NewMockQuoteSource()
	quotes.SetPrice("AAPL", dec("180"))
	service := NewPortfolioService(store, quotes, zerolog.Nop())

	report, err := service.PortfolioReport(context.Background(), accountID)
	require.NoError(t, err)

	require.Len(t, report.Positions, 1)
	p := report.Positions[0]
	assert.True(t, p.CurrentValue.Equal(dec("3600")))
	assert.True(t, p.GainRatio.Equal(dec("0.2")), "ratio = %s", p.GainRatio)
	assert.True(t, p.UnrealizedProfit.Equal(dec("3600")))
	assert.True(t, report.Cash.Equal(dec("7000")))
	assert.True(t, report.Benefit.Equal(dec("3600")))
	assert.True(t, report.NetWorth.Equal(dec("10600")))
	assert.False(t, report.Partial())
}

func TestPortfolioReport_ExcludesClosedPositions(t *testing.T) {
	store := ledger.NewMemoryStore()
	accountID := seedLedger(t, store, "10000",
		buy("AAPL", 5, "100"),
		sell("AAPL", 5, "110"),
	)
	quotes := testingpkg.NewMockQuoteSource()
	service := NewPortfolioService(store, quotes, zerolog.Nop())

	report, err := service.PortfolioReport(context.Background(), accountID)
	require.NoError(t, err)
	assert.Empty(t, report.Positions)
	assert.Equal(t, 0, quotes.Calls())
	assert.True(t, report.NetWorth.Equal(dec("10000")))
}

func TestPortfolioReport_QuoteFailureIsReported(t *testing.T) {
	store := ledger.NewMemoryStore()
	accountID := seedLedger(t, store, "1000",
		buy("AAPL", 1, "100"),
		buy("MSFT", 2, "50"),
	)
	quotes := testingpkg.NewMockQuoteSource()
	quotes.SetPrice("AAPL", dec("120"))
	quotes.SetSymbolError("MSFT", errors.New("timeout"))
	service := NewPortfolioService(store, quotes, zerolog.Nop())

	report, err := service.PortfolioReport(context.Background(), accountID)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrQuoteUnavailable)
	assert.Contains(t, err.Error(), "MSFT")

	assert.True(t, report.Partial())
	assert.Equal(t, []string{"MSFT"}, report.Unavailable)
	require.Len(t, report.Positions, 1)
	assert.Equal(t, "AAPL", report.Positions[0].Symbol)
	assert.True(t, report.NetWorth.Equal(dec("1120")))
}

func TestPortfolioReport_UnknownAccount(t *testing.T) {
	service := NewPortfolioService(ledger.NewMemoryStore(), testingpkg.NewMockQuoteSource(), zerolog.Nop())

	_, err := service.PortfolioReport(context.Background(), 99)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestValue_ZeroCostBasis(t *testing.T) {
	vp := Value(Position{Symbol: "X", Quantity: 3}, domain.Quote{Symbol: "X", Price: dec("2")})
	assert.True(t, vp.GainRatio.IsZero())
	assert.True(t, vp.CurrentValue.Equal(dec("6")))
}

func TestTransactionHistory_Ordered(t *testing.T) {
	store := ledger.NewMemoryStore()
	accountID := seedLedger(t, store, "10000",
		buy("AAPL", 1, "100"),
		buy("MSFT", 1, "100"),
		sell("AAPL", 1, "100"),
	)
	service := NewPortfolioService(store, testingpkg.NewMockQuoteSource(), zerolog.Nop())

	history, err := service.TransactionHistory(context.Background(), accountID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i := 1; i < len(history); i++ {
		assert.False(t, history[i].ExecutedAt.Before(history[i-1].ExecutedAt))
		assert.Less(t, history[i-1].ID, history[i].ID)
	}
	assert.Equal(t, ledger.TradeSideSell, history[2].Side())
}

func TestRepeatedReadsAreStable(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	accountID := seedLedger(t, store, "5000",
		buy("AAPL", 10, "100"),
		buy("MSFT", 4, "250"),
		sell("AAPL", 3, "120"),
	)
	quotes := testingpkg.NewMockQuoteSource()
	quotes.SetPrice("AAPL", dec("110"))
	quotes.SetPrice("MSFT", dec("240"))
	service := NewPortfolioService(store, quotes, zerolog.Nop())

	first, err := service.Aggregator().PositionsFor(ctx, accountID)
	require.NoError(t, err)
	second, err := service.Aggregator().PositionsFor(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	before, err := service.PortfolioReport(ctx, accountID)
	require.NoError(t, err)
	again, err := service.PortfolioReport(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, before, again)

	quotes.SetPrice("AAPL", dec("130"))
	after, err := service.PortfolioReport(ctx, accountID)
	require.NoError(t, err)

	require.Len(t, after.Positions, len(before.Positions))
	for i := range before.Positions {
		assert.Equal(t, before.Positions[i].Position, after.Positions[i].Position)
	}
	assert.True(t, after.Cash.Equal(before.Cash))

	aapl := after.Positions[0]
	require.Equal(t, "AAPL", aapl.Symbol)
	assert.True(t, aapl.CurrentPrice.Equal(dec("130")))
	assert.True(t, aapl.CurrentValue.Equal(dec("910")))
	assert.False(t, aapl.CurrentValue.Equal(before.Positions[0].CurrentValue))
	assert.True(t, after.Positions[1].CurrentValue.Equal(before.Positions[1].CurrentValue))
	assert.True(t, after.NetWorth.Sub(before.NetWorth).Equal(dec("140")))
}
