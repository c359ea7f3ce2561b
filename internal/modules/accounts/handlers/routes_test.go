package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aristath/stockfolio/internal/modules/accounts"
	"github.com/aristath/stockfolio/internal/modules/ledger"
	testingpkg "github.com/aristath/stockfolio/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) chi.Router {
	t.Helper()
	cacheDB, cleanup := testingpkg.NewTestDB(t, "cache")
	t.Cleanup(cleanup)

	service := accounts.NewAccountService(
		ledger.NewMemoryStore(),
		accounts.NewSessionRepository(cacheDB.Conn(), zerolog.Nop()),
		nil,
		testingpkg.Dec("10000"),
		time.Hour,
		zerolog.Nop(),
	)
	router := chi.NewRouter()
	NewHandler(service, zerolog.Nop()).RegisterRoutes(router, accounts.RequireAuth(service))
	return router
}

func send(router chi.Router, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAccountFlow(t *testing.T) {
	router := setupRouter(t)
	creds := `{"username":"alice","password":"pw"}`

	rec := send(router, http.MethodPost, "/accounts/register", creds, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "hash")

	rec = send(router, http.MethodPost, "/accounts/register", creds, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = send(router, http.MethodPost, "/sessions", `{"username":"alice","password":"bad"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = send(router, http.MethodPost, "/sessions", creds, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var session accounts.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	require.NotEmpty(t, session.Token)
	assert.NotEmpty(t, rec.Result().Cookies())

	rec = send(router, http.MethodGet, "/accounts/me", "", session.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "$10,000.00")

	rec = send(router, http.MethodDelete, "/sessions", "", session.Token)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = send(router, http.MethodGet, "/accounts/me", "", session.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegister_BadBody(t *testing.T) {
	router := setupRouter(t)

	assert.Equal(t, http.StatusBadRequest, send(router, http.MethodPost, "/accounts/register", `{`, "").Code)
	assert.Equal(t, http.StatusBadRequest, send(router, http.MethodPost, "/accounts/register", `{"username":"x"}`, "").Code)
}
