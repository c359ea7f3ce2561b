package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/aristath/stockfolio/internal/modules/ledger"
	"github.com/aristath/stockfolio/internal/modules/trading"
	testingpkg "github.com/aristath/stockfolio/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	router    chi.Router
	store     *ledger.MemoryStore
	accountID int64
}

func setup(t *testing.T) fixture {
	t.Helper()
	store := ledger.NewMemoryStore()
	account, err := store.CreateAccount(context.Background(), "trader", "hash", testingpkg.Dec("10000"))
	require.NoError(t, err)

	quotes := testingpkg.NewMockQuoteSource(testingpkg.NewQuoteFixtures()...)
	service := trading.NewTradingService(store, quotes, trading.NewLocalLocker(), nil, zerolog.Nop())
	router := chi.NewRouter()
	NewTradingHandlers(service, zerolog.Nop()).RegisterRoutes(router)
	return fixture{router: router, store: store, accountID: account.ID}
}

func (f fixture) do(method, path, body string, authenticated bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if authenticated {
		req = req.WithContext(domain.WithAccountID(req.Context(), f.accountID))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestRawQuantity_UnmarshalJSON(t *testing.T) {
	tests := map[string]RawQuantity{
		`{"quantity": 10}`:    "10",
		`{"quantity": "10"}`:  "10",
		`{"quantity": 1.5}`:   "1.5",
		`{"quantity": null}`:  "",
		`{}`:                  "",
		`{"quantity": "abc"}`: "abc",
	}
	for body, want := range tests {
		var req OrderRequest
		require.NoError(t, json.Unmarshal([]byte(body), &req), body)
		assert.Equal(t, want, req.Quantity, body)
	}
}

func TestHandleBuyAndSell(t *testing.T) {
	f := setup(t)

	rec := f.do(http.MethodPost, "/trades/buy", `{"symbol":"aapl","quantity":10}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Transaction ledger.Transaction `json:"transaction"`
		CashDisplay string             `json:"cash_display"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "AAPL", body.Transaction.Symbol)
	assert.Equal(t, "$9,000.00", body.CashDisplay)

	rec = f.do(http.MethodPost, "/trades/sell", `{"symbol":"AAPL","quantity":"4"}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(-4), body.Transaction.Quantity)
	assert.Equal(t, "$9,400.00", body.CashDisplay)
}

func TestHandleOrder_ErrorStatuses(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"malformed body", "/trades/buy", `{`, http.StatusBadRequest},
		{"fractional quantity", "/trades/buy", `{"symbol":"AAPL","quantity":1.5}`, http.StatusBadRequest},
		{"missing quantity", "/trades/buy", `{"symbol":"AAPL"}`, http.StatusBadRequest},
		{"unknown symbol", "/trades/buy", `{"symbol":"ZZZZ","quantity":1}`, http.StatusNotFound},
		{"too expensive", "/trades/buy", `{"symbol":"NFLX","quantity":1000}`, http.StatusForbidden},
		{"not held", "/trades/sell", `{"symbol":"MSFT","quantity":1}`, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, tt.path, tt.body, true)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	txns, err := f.store.ListTransactions(context.Background(), f.accountID)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestHandleOrder_RequiresAccount(t *testing.T) {
	f := setup(t)
	rec := f.do(http.MethodPost, "/trades/buy", `{"symbol":"AAPL","quantity":1}`, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleGetQuote(t *testing.T) {
	f := setup(t)

	rec := f.do(http.MethodGet, "/quotes/msft", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "MSFT", body["symbol"])
	assert.Equal(t, "Microsoft Corporation", body["name"])
	assert.Equal(t, "$250.50", body["display"])

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/quotes/ZZZZ", "", true).Code)
}
