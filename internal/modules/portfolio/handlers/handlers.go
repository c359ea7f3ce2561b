// Package handlers provides HTTP handlers for portfolio valuation and history.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/aristath/stockfolio/internal/modules/portfolio"
	"github.com/rs/zerolog"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	service *portfolio.PortfolioService
	log     zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(service *portfolio.PortfolioService, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

// HandleGetPortfolio returns the valuation report of the authenticated account.
// A report missing some quotes is still returned, with status 502 and the error.
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	accountID, ok := domain.AccountIDFromContext(r.Context())
	if !ok {
		h.writeError(w, domain.ErrUnauthorized)
		return
	}

	report, err := h.service.PortfolioReport(r.Context(), accountID)
	if err != nil && !errors.Is(err, domain.ErrQuoteUnavailable) {
		h.writeError(w, err)
		return
	}

	body := map[string]interface{}{
		"report": report,
		"display": map[string]string{
			"cash":      domain.FormatUSD(report.Cash),
			"benefit":   domain.FormatUSD(report.Benefit),
			"net_worth": domain.FormatUSD(report.NetWorth),
		},
	}
	if err != nil {
		h.log.Warn().Err(err).Int64("account_id", accountID).Msg("Serving partial portfolio report")
		body["error"] = err.Error()
		h.writeJSON(w, domain.HTTPStatus(err), body)
		return
	}
	h.writeJSON(w, http.StatusOK, body)
}

// HandleGetPositions returns every position ever traded, including closed ones.
func (h *Handler) HandleGetPositions(w http.ResponseWriter, r *http.Request) {
	accountID, ok := domain.AccountIDFromContext(r.Context())
	if !ok {
		h.writeError(w, domain.ErrUnauthorized)
		return
	}

	positions, err := h.service.Aggregator().PositionsFor(r.Context(), accountID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, positions)
}

// HandleGetHeldSymbols returns the symbols that can currently be sold.
func (h *Handler) HandleGetHeldSymbols(w http.ResponseWriter, r *http.Request) {
	accountID, ok := domain.AccountIDFromContext(r.Context())
	if !ok {
		h.writeError(w, domain.ErrUnauthorized)
		return
	}

	symbols, err := h.service.Aggregator().HeldSymbols(r.Context(), accountID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"symbols": symbols})
}

// HandleGetHistory returns all transactions of the account, oldest first.
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	accountID, ok := domain.AccountIDFromContext(r.Context())
	if !ok {
		h.writeError(w, domain.ErrUnauthorized)
		return
	}

	history, err := h.service.TransactionHistory(r.Context(), accountID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": history,
		"count":        len(history),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := domain.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Request failed")
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}
