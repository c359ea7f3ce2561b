package trading

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/aristath/stockfolio/internal/events"
	"github.com/aristath/stockfolio/internal/modules/ledger"
	"github.com/aristath/stockfolio/internal/modules/portfolio"
	testingpkg "github.com/aristath/stockfolio/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dec = testingpkg.Dec

type engineFixture struct {
	service   *TradingService
	store     ledger.Store
	quotes    *testingpkg.MockQuoteSource
	bus       *events.Bus
	accountID int64
}

func newEngine(t *testing.T, store ledger.Store, cash string) engineFixture {
	t.Helper()
	account, err := store.CreateAccount(context.Background(), "trader", "hash", dec(cash))
	require.NoError(t, err)

	quotes := testingpkg.NewMockQuoteSource()
	bus := events.NewBus(zerolog.Nop())
	service := NewTradingService(store, quotes, NewLocalLocker(), events.NewManager(bus, zerolog.Nop()), zerolog.Nop())
	return engineFixture{service: service, store: store, quotes: quotes, bus: bus, accountID: account.ID}
}

func (f engineFixture) cash(t *testing.T) string {
	t.Helper()
	cash, err := f.store.ReadCashBalance(context.Background(), f.accountID)
	require.NoError(t, err)
	return cash.StringFixed(2)
}

func (f engineFixture) position(t *testing.T, symbol string) portfolio.Position {
	t.Helper()
	positions, err := portfolio.NewAggregator(f.store).PositionsFor(context.Background(), f.accountID)
	require.NoError(t, err)
	for _, p := range positions {
		if p.Symbol == symbol {
			return p
		}
	}
	return portfolio.Position{Symbol: symbol}
}

func TestTradingScenario(t *testing.T) {
	f := newEngine(t, ledger.NewMemoryStore(), "10000")
	ctx := context.Background()

	f.quotes.SetPrice("AAPL", dec("100"))
	result, err := f.service.Buy(ctx, f.accountID, "AAPL", "10")
	require.NoError(t, err)
	assert.Equal(t, "9000.00", result.Cash.StringFixed(2))
	pos := f.position(t, "AAPL")
	assert.Equal(t, int64(10), pos.Quantity)
	assert.True(t, pos.AvgCost.Equal(dec("100")))

	f.quotes.SetPrice("AAPL", dec("200"))
	result, err = f.service.Buy(ctx, f.accountID, "aapl", "10")
	require.NoError(t, err)
	assert.Equal(t, "7000.00", result.Cash.StringFixed(2))
	pos = f.position(t, "AAPL")
	assert.Equal(t, int64(20), pos.Quantity)
	assert.True(t, pos.AvgCost.Equal(dec("150")))

	_, err = f.service.Sell(ctx, f.accountID, "AAPL", "25")
	assert.ErrorIs(t, err, domain.ErrInsufficientHoldings)
	assert.Equal(t, "7000.00", f.cash(t))
	assert.Equal(t, int64(20), f.position(t, "AAPL").Quantity)

	f.quotes.SetPrice("AAPL", dec("180"))
	result, err = f.service.Sell(ctx, f.accountID, "AAPL", "20")
	require.NoError(t, err)
	assert.Equal(t, "10600.00", result.Cash.StringFixed(2))
	assert.Equal(t, int64(-20), result.Transaction.Quantity)
	assert.True(t, result.Transaction.Total.Equal(dec("-3600")))
	assert.Equal(t, int64(0), f.position(t, "AAPL").Quantity)
}

func TestBuy_UnknownSymbolWritesNothing(t *testing.T) {
	f := newEngine(t, ledger.NewMemoryStore(), "10000")

	_, err := f.service.Buy(context.Background(), f.accountID, "ZZZZ", "1")
	assert.ErrorIs(t, err, domain.ErrSymbolNotFound)

	txns, err := f.store.ListTransactions(context.Background(), f.accountID)
	require.NoError(t, err)
	assert.Empty(t, txns)
	assert.Equal(t, "10000.00", f.cash(t))
}

func TestBuy_QuoteFailureIsSymbolNotFound(t *testing.T) {
	f := newEngine(t, ledger.NewMemoryStore(), "10000")
	f.quotes.SetError(errors.New("connection refused"))

	_, err := f.service.Buy(context.Background(), f.accountID, "AAPL", "1")
	assert.ErrorIs(t, err, domain.ErrSymbolNotFound)
}

func TestBuy_NonPositiveQuoteIsSymbolNotFound(t *testing.T) {
	f := newEngine(t, ledger.NewMemoryStore(), "10000")
	f.quotes.SetPrice("AAPL", dec("0"))

	_, err := f.service.Buy(context.Background(), f.accountID, "AAPL", "1")
	assert.ErrorIs(t, err, domain.ErrSymbolNotFound)
}

func TestBuy_InsufficientFunds(t *testing.T) {
	f := newEngine(t, ledger.NewMemoryStore(), "999.99")
	f.quotes.SetPrice("AAPL", dec("100"))

	_, err := f.service.Buy(context.Background(), f.accountID, "AAPL", "10")
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, "999.99", f.cash(t))

	// Spending exactly everything is allowed.
	f.quotes.SetPrice("AAPL", dec("99.999"))
	result, err := f.service.Buy(context.Background(), f.accountID, "AAPL", "10")
	require.NoError(t, err)
	assert.True(t, result.Cash.IsZero())
}

func TestOrders_InvalidInput(t *testing.T) {
	f := newEngine(t, ledger.NewMemoryStore(), "10000")
	f.quotes.SetPrice("AAPL", dec("100"))
	ctx := context.Background()

	for _, qty := range []string{"", "0", "-1", "2.5", "ten"} {
		_, err := f.service.Buy(ctx, f.accountID, "AAPL", qty)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "buy %q", qty)
		_, err = f.service.Sell(ctx, f.accountID, "AAPL", qty)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "sell %q", qty)
	}
	_, err := f.service.Buy(ctx, f.accountID, "  ", "1")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	assert.Equal(t, 0, f.quotes.Calls(), "invalid input must be rejected before any quote lookup")
}

func TestSell_NeverTraded(t *testing.T) {
	f := newEngine(t, ledger.NewMemoryStore(), "10000")
	f.quotes.SetPrice("MSFT", dec("10"))

	_, err := f.service.Sell(context.Background(), f.accountID, "MSFT", "1")
	assert.ErrorIs(t, err, domain.ErrInsufficientHoldings)
}

func TestRoundTripRestoresCash(t *testing.T) {
	f := newEngine(t, ledger.NewMemoryStore(), "1234.56")
	f.quotes.SetPrice("NFLX", dec("412.25"))
	ctx := context.Background()

	_, err := f.service.Buy(ctx, f.accountID, "NFLX", "3")
	require.NoError(t, err)
	result, err := f.service.Sell(ctx, f.accountID, "NFLX", "3")
	require.NoError(t, err)

	assert.True(t, result.Cash.Equal(dec("1234.56")), "cash = %s", result.Cash)
	assert.Equal(t, int64(0), f.position(t, "NFLX").Quantity)
}

func TestUnknownAccount(t *testing.T) {
	f := newEngine(t, ledger.NewMemoryStore(), "10")
	f.quotes.SetPrice("AAPL", dec("1"))

	_, err := f.service.Buy(context.Background(), f.accountID+100, "AAPL", "1")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestTradeEmitsEvents(t *testing.T) {
	f := newEngine(t, ledger.NewMemoryStore(), "10000")
	f.quotes.SetPrice("AAPL", dec("100"))

	var got []*events.Event
	f.bus.Subscribe(events.TradeExecuted, func(e *events.Event) { got = append(got, e) })
	f.bus.Subscribe(events.CashUpdated, func(e *events.Event) { got = append(got, e) })

	_, err := f.service.Buy(context.Background(), f.accountID, "AAPL", "2")
	require.NoError(t, err)

	require.Len(t, got, 2)
	trade, ok := got[0].GetTypedData().(*events.TradeExecutedData)
	require.True(t, ok)
	assert.Equal(t, "BUY", trade.Side)
	assert.Equal(t, int64(2), trade.Quantity)
	cash, ok := got[1].GetTypedData().(*events.CashUpdatedData)
	require.True(t, ok)
	assert.Equal(t, "9800", cash.Cash)

	// Rejected trades emit nothing.
	_, err = f.service.Sell(context.Background(), f.accountID, "AAPL", "5")
	require.Error(t, err)
	assert.Len(t, got, 2)
}

func TestQuote(t *testing.T) {
	f := newEngine(t, ledger.NewMemoryStore(), "0")
	f.quotes.SetPrice("AAPL", dec("187.12"))

	quote, err := f.service.Quote(context.Background(), " aapl")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", quote.Symbol)
	assert.True(t, quote.Price.Equal(dec("187.12")))

	_, err = f.service.Quote(context.Background(), "ZZZZ")
	assert.ErrorIs(t, err, domain.ErrSymbolNotFound)
}

func TestConcurrentOrders(t *testing.T) {
	stores := map[string]func(t *testing.T) ledger.Store{
		"memory": func(t *testing.T) ledger.Store { return ledger.NewMemoryStore() },
		"sqlite": func(t *testing.T) ledger.Store {
			db, cleanup := testingpkg.NewTestDB(t, "ledger")
			t.Cleanup(cleanup)
			return ledger.NewSQLiteStore(db.Conn(), zerolog.Nop())
		},
	}

	for name, open := range stores {
		t.Run(name+"/no_overspend", func(t *testing.T) {
			f := newEngine(t, open(t), "1000")
			f.quotes.SetPrice("AAPL", dec("100"))

			results := runConcurrently(25, func() error {
				_, err := f.service.Buy(context.Background(), f.accountID, "AAPL", "1")
				return err
			})

			assert.Equal(t, 10, results.ok)
			assert.Equal(t, 15, results.byKind[domain.ErrInsufficientFunds])
			assert.Equal(t, "0.00", f.cash(t))
			assert.Equal(t, int64(10), f.position(t, "AAPL").Quantity)
		})

		t.Run(name+"/no_oversell", func(t *testing.T) {
			f := newEngine(t, open(t), "1000")
			f.quotes.SetPrice("AAPL", dec("100"))
			_, err := f.service.Buy(context.Background(), f.accountID, "AAPL", "5")
			require.NoError(t, err)

			results := runConcurrently(20, func() error {
				_, err := f.service.Sell(context.Background(), f.accountID, "AAPL", "1")
				return err
			})

			assert.Equal(t, 5, results.ok)
			assert.Equal(t, 15, results.byKind[domain.ErrInsufficientHoldings])
			assert.Equal(t, int64(0), f.position(t, "AAPL").Quantity)
			assert.Equal(t, "1000.00", f.cash(t))
		})
	}
}

type concurrentResults struct {
	ok     int
	byKind map[error]int
}

func runConcurrently(n int, fn func() error) concurrentResults {
	var mu sync.Mutex
	results := concurrentResults{byKind: make(map[error]int)}
	kinds := []error{domain.ErrInsufficientFunds, domain.ErrInsufficientHoldings, domain.ErrStoreUnavailable}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := fn()
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				results.ok++
				return
			}
			for _, kind := range kinds {
				if errors.Is(err, kind) {
					results.byKind[kind]++
				}
			}
		}()
	}
	wg.Wait()
	return results
}
