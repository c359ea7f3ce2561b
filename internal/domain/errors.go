// Package domain holds the types and error kinds shared across stockfolio modules.
package domain

import (
	"errors"
	"net/http"
)

// Error kinds returned by the ledger, trading and valuation services.
// All of them are recoverable at the caller boundary; wrap with fmt.Errorf("%w")
// and test with errors.Is.
var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrSymbolNotFound       = errors.New("symbol not found")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	ErrQuoteUnavailable     = errors.New("quote unavailable")
	ErrStoreUnavailable     = errors.New("store unavailable")

	ErrAccountNotFound    = errors.New("account not found")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username and/or password")
	ErrUnauthorized       = errors.New("unauthorized")
)

// HTTPStatus maps an error kind to the status code the API answers with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrSymbolNotFound), errors.Is(err, ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInsufficientFunds), errors.Is(err, ErrInsufficientHoldings):
		return http.StatusForbidden
	case errors.Is(err, ErrQuoteUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrUsernameTaken):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
