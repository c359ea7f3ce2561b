package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Get("/", h.HandleGetPortfolio)               // Valuation report
		r.Get("/positions", h.HandleGetPositions)      // Aggregated positions
		r.Get("/held-symbols", h.HandleGetHeldSymbols) // Symbols available to sell
	})
	r.Get("/history", h.HandleGetHistory) // Transaction history
}
