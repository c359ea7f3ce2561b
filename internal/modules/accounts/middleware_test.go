package accounts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/stretchr/testify/assert"
)

type staticAuth map[string]int64

func (a staticAuth) Authenticate(_ context.Context, token string) (int64, error) {
	if id, ok := a[token]; ok {
		return id, nil
	}
	return 0, domain.ErrUnauthorized
}

func TestRequireAuth(t *testing.T) {
	var seen int64
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = domain.AccountIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := RequireAuth(staticAuth{"tok": 42})(next)

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
		want   int64
	}{
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer tok") }, http.StatusOK, 42},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "tok"}) }, http.StatusOK, 42},
		{"wrong token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized, 0},
		{"no token", func(r *http.Request) {}, http.StatusUnauthorized, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = 0
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.want, seen)
		})
	}
}
