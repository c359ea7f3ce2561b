package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the public account routes. requireAuth guards
// the routes that need a session.
func (h *Handler) RegisterRoutes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Post("/accounts/register", h.HandleRegister) // Create an account
	r.Post("/sessions", h.HandleLogin)             // Log in
	r.Delete("/sessions", h.HandleLogout)          // Log out

	r.With(requireAuth).Get("/accounts/me", h.HandleMe) // Current account and cash
}
