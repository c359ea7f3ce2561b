package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("quantity: %w", ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("ZZZZ: %w", ErrSymbolNotFound), http.StatusNotFound},
		{ErrInsufficientFunds, http.StatusForbidden},
		{ErrInsufficientHoldings, http.StatusForbidden},
		{ErrQuoteUnavailable, http.StatusBadGateway},
		{fmt.Errorf("read: %w: %w", ErrStoreUnavailable, errors.New("disk")), http.StatusServiceUnavailable},
		{ErrInvalidCredentials, http.StatusUnauthorized},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrUsernameTaken, http.StatusConflict},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), "%v", tt.err)
	}
}

func TestAccountIDContext(t *testing.T) {
	_, ok := AccountIDFromContext(context.Background())
	assert.False(t, ok)

	id, ok := AccountIDFromContext(WithAccountID(context.Background(), 7))
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)
}
