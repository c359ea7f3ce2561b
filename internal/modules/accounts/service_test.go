package accounts

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/aristath/stockfolio/internal/events"
	"github.com/aristath/stockfolio/internal/modules/ledger"
	testingpkg "github.com/aristath/stockfolio/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T) (*AccountService, *SessionRepository, *events.Bus) {
	t.Helper()
	cacheDB, cleanup := testingpkg.NewTestDB(t, "cache")
	t.Cleanup(cleanup)

	sessions := NewSessionRepository(cacheDB.Conn(), zerolog.Nop())
	bus := events.NewBus(zerolog.Nop())
	service := NewAccountService(
		ledger.NewMemoryStore(),
		sessions,
		events.NewManager(bus, zerolog.Nop()),
		testingpkg.Dec("10000.00"),
		time.Hour,
		zerolog.Nop(),
	)
	service.hashCost = bcrypt.MinCost
	return service, sessions, bus
}

func TestRegister(t *testing.T) {
	service, _, bus := newTestService(t)
	ctx := context.Background()

	var registered []*events.Event
	bus.Subscribe(events.AccountRegistered, func(e *events.Event) { registered = append(registered, e) })

	account, err := service.Register(ctx, " alice ", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "alice", account.Username)
	assert.True(t, account.Cash.Equal(testingpkg.Dec("10000")))
	assert.NotEqual(t, "s3cret", account.Hash)
	assert.Len(t, registered, 1)

	_, err = service.Register(ctx, "alice", "other")
	assert.ErrorIs(t, err, domain.ErrUsernameTaken)
}

func TestRegister_InvalidInput(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.Register(ctx, "", "pw")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = service.Register(ctx, "bob", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLoginAuthenticateLogout(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	account, err := service.Register(ctx, "carol", "hunter2")
	require.NoError(t, err)

	_, err = service.Login(ctx, "carol", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = service.Login(ctx, "nobody", "hunter2")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	session, err := service.Login(ctx, "carol", "hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)

	accountID, err := service.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, account.ID, accountID)

	require.NoError(t, service.Logout(ctx, session.Token))
	_, err = service.Authenticate(ctx, session.Token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = service.Authenticate(ctx, "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuthenticate_ExpiredSession(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.Register(ctx, "dave", "pw")
	require.NoError(t, err)
	session, err := service.Login(ctx, "dave", "pw")
	require.NoError(t, err)

	service.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = service.Authenticate(ctx, session.Token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestSessionRepository_DeleteExpired(t *testing.T) {
	_, sessions, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, sessions.Create(ctx, Session{Token: "old", AccountID: 1, CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}))
	require.NoError(t, sessions.Create(ctx, Session{Token: "new", AccountID: 1, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))

	n, err := sessions.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = sessions.Get(ctx, "old")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	got, err := sessions.Get(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.AccountID)
}
