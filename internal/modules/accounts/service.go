// Package accounts handles registration, login and session tokens. It
// supplies the authenticated account id every ledger operation is scoped to.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/aristath/stockfolio/internal/events"
	"github.com/aristath/stockfolio/internal/modules/ledger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// AccountStore is the part of the ledger that owns accounts.
type AccountStore interface {
	CreateAccount(ctx context.Context, username, hash string, cash decimal.Decimal) (ledger.Account, error)
	GetAccount(ctx context.Context, accountID int64) (ledger.Account, error)
	FindAccountByUsername(ctx context.Context, username string) (ledger.Account, error)
}

// SessionStore persists issued sessions.
type SessionStore interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, token string) (Session, error)
	Delete(ctx context.Context, token string) error
}

// AccountService registers users and issues session tokens
type AccountService struct {
	accounts     AccountStore
	sessions     SessionStore
	eventManager *events.Manager
	initialCash  decimal.Decimal
	sessionTTL   time.Duration
	hashCost     int
	now          func() time.Time
	log          zerolog.Logger
}

// NewAccountService creates a new account service. eventManager may be nil.
func NewAccountService(
	accounts AccountStore,
	sessions SessionStore,
	eventManager *events.Manager,
	initialCash decimal.Decimal,
	sessionTTL time.Duration,
	log zerolog.Logger,
) *AccountService {
	return &AccountService{
		accounts:     accounts,
		sessions:     sessions,
		eventManager: eventManager,
		initialCash:  initialCash,
		sessionTTL:   sessionTTL,
		hashCost:     bcrypt.DefaultCost,
		now:          time.Now,
		log:          log.With().Str("service", "accounts").Logger(),
	}
}

// Register creates an account holding the initial cash balance
func (s *AccountService) Register(ctx context.Context, username, password string) (ledger.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return ledger.Account{}, fmt.Errorf("must provide username: %w", domain.ErrInvalidInput)
	}
	if password == "" {
		return ledger.Account{}, fmt.Errorf("must provide password: %w", domain.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		// bcrypt rejects passwords longer than 72 bytes
		return ledger.Account{}, fmt.Errorf("cannot hash password: %v: %w", err, domain.ErrInvalidInput)
	}

	account, err := s.accounts.CreateAccount(ctx, username, string(hash), s.initialCash)
	if err != nil {
		return ledger.Account{}, err
	}

	s.log.Info().Int64("account_id", account.ID).Str("username", username).Msg("Account registered")
	if s.eventManager != nil {
		s.eventManager.EmitTyped("accounts", &events.AccountRegisteredData{AccountID: account.ID, Username: username})
	}
	return account, nil
}

// Login verifies credentials and issues a session
func (s *AccountService) Login(ctx context.Context, username, password string) (Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Session{}, fmt.Errorf("must provide username and password: %w", domain.ErrInvalidInput)
	}

	account, err := s.accounts.FindAccountByUsername(ctx, username)
	if errors.Is(err, domain.ErrAccountNotFound) {
		s.log.Warn().Str("username", username).Msg("Login for unknown user")
		return Session{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.Hash), []byte(password)); err != nil {
		s.log.Warn().Int64("account_id", account.ID).Msg("Login with wrong password")
		return Session{}, domain.ErrInvalidCredentials
	}

	now := s.now()
	session := Session{
		Token:     uuid.NewString(),
		AccountID: account.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return Session{}, err
	}
	s.log.Info().Int64("account_id", account.ID).Msg("Logged in")
	return session, nil
}

// Logout revokes a session token
func (s *AccountService) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}

// Authenticate resolves a session token to its account id
func (s *AccountService) Authenticate(ctx context.Context, token string) (int64, error) {
	if token == "" {
		return 0, fmt.Errorf("missing session token: %w", domain.ErrUnauthorized)
	}
	session, err := s.sessions.Get(ctx, token)
	if err != nil {
		return 0, err
	}
	if session.Expired(s.now()) {
		return 0, fmt.Errorf("session expired: %w", domain.ErrUnauthorized)
	}
	return session.AccountID, nil
}

// Account returns the account with the given id
func (s *AccountService) Account(ctx context.Context, accountID int64) (ledger.Account, error) {
	return s.accounts.GetAccount(ctx, accountID)
}
