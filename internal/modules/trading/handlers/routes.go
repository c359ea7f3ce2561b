package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all trading routes
func (h *TradingHandlers) RegisterRoutes(r chi.Router) {
	r.Get("/quotes/{symbol}", h.HandleGetQuote) // Current price of a symbol

	r.Route("/trades", func(r chi.Router) {
		r.Post("/buy", h.HandleBuy)   // Buy shares at the current quote
		r.Post("/sell", h.HandleSell) // Sell held shares at the current quote
	})
}
