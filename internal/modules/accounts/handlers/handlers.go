// Package handlers provides HTTP handlers for registration and sessions.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/aristath/stockfolio/internal/modules/accounts"
	"github.com/rs/zerolog"
)

// Credentials is the body of register and login requests
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Handler handles account HTTP requests
type Handler struct {
	service *accounts.AccountService
	log     zerolog.Logger
}

// NewHandler creates a new accounts handler
func NewHandler(service *accounts.AccountService, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "accounts").Logger(),
	}
}

// HandleRegister handles POST /accounts/register
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	creds, err := decodeCredentials(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	account, err := h.service.Register(r.Context(), creds.Username, creds.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, account)
}

// HandleLogin handles POST /sessions
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	creds, err := decodeCredentials(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	session, err := h.service.Login(r.Context(), creds.Username, creds.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     accounts.SessionCookie,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	h.writeJSON(w, http.StatusOK, session)
}

// HandleLogout handles DELETE /sessions
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if token := accounts.TokenFromRequest(r); token != "" {
		if err := h.service.Logout(r.Context(), token); err != nil {
			h.writeError(w, err)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{Name: accounts.SessionCookie, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe handles GET /accounts/me (requires authentication)
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	accountID, ok := domain.AccountIDFromContext(r.Context())
	if !ok {
		h.writeError(w, domain.ErrUnauthorized)
		return
	}
	account, err := h.service.Account(r.Context(), accountID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"account":      account,
		"cash_display": domain.FormatUSD(account.Cash),
	})
}

func decodeCredentials(r *http.Request) (Credentials, error) {
	var creds Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		return creds, fmt.Errorf("invalid request body: %v: %w", err, domain.ErrInvalidInput)
	}
	return creds, nil
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
