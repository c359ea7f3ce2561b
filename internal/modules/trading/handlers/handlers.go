// Package handlers provides HTTP handlers for quotes and trade execution.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/aristath/stockfolio/internal/modules/trading"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// RawQuantity accepts a JSON number or string and keeps its text, so that
// parsing happens once in trading.ParseQuantity.
type RawQuantity string

// UnmarshalJSON implements json.Unmarshaler.
func (q *RawQuantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*q = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*q = RawQuantity(s)
		return nil
	}
	*q = RawQuantity(data)
	return nil
}

// OrderRequest is the body of a buy or sell request.
type OrderRequest struct {
	Symbol   string      `json:"symbol"`
	Quantity RawQuantity `json:"quantity"`
}

// TradingHandlers contains HTTP handlers for trading API
type TradingHandlers struct {
	service *trading.TradingService
	log     zerolog.Logger
}

// NewTradingHandlers creates a new trading handlers instance
func NewTradingHandlers(service *trading.TradingService, log zerolog.Logger) *TradingHandlers {
	return &TradingHandlers{
		service: service,
		log:     log.With().Str("handler", "trading").Logger(),
	}
}

// HandleGetQuote handles GET /quotes/{symbol}
func (h *TradingHandlers) HandleGetQuote(w http.ResponseWriter, r *http.Request) {
	quote, err := h.service.Quote(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":  quote.Symbol,
		"name":    quote.Name,
		"price":   quote.Price,
		"display": domain.FormatUSD(quote.Price),
	})
}

// HandleBuy handles POST /trades/buy
func (h *TradingHandlers) HandleBuy(w http.ResponseWriter, r *http.Request) {
	h.handleOrder(w, r, h.service.Buy)
}

// HandleSell handles POST /trades/sell
func (h *TradingHandlers) HandleSell(w http.ResponseWriter, r *http.Request) {
	h.handleOrder(w, r, h.service.Sell)
}

type orderFunc func(ctx context.Context, accountID int64, symbol, quantity string) (trading.TradeResult, error)

func (h *TradingHandlers) handleOrder(w http.ResponseWriter, r *http.Request, place orderFunc) {
	accountID, ok := domain.AccountIDFromContext(r.Context())
	if !ok {
		h.writeError(w, domain.ErrUnauthorized)
		return
	}

	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, fmt.Errorf("invalid request body: %v: %w", err, domain.ErrInvalidInput))
		return
	}

	result, err := place(r.Context(), accountID, req.Symbol, string(req.Quantity))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"transaction":  result.Transaction,
		"cash":         result.Cash,
		"cash_display": domain.FormatUSD(result.Cash),
	})
}

func (h *TradingHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *TradingHandlers) writeError(w http.ResponseWriter, err error) {
	status := domain.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Request failed")
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}
