package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/rs/zerolog"
)

// Session is an issued login token.
type Session struct {
	Token     string    `json:"token"`
	AccountID int64     `json:"account_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionRepository stores sessions in cache.db
type SessionRepository struct {
	cacheDB *sql.DB
	log     zerolog.Logger
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(cacheDB *sql.DB, log zerolog.Logger) *SessionRepository {
	return &SessionRepository{
		cacheDB: cacheDB,
		log:     log.With().Str("repo", "sessions").Logger(),
	}
}

// Create stores a new session
func (r *SessionRepository) Create(ctx context.Context, s Session) error {
	_, err := r.cacheDB.ExecContext(ctx,
		`INSERT INTO sessions (token, account_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		s.Token, s.AccountID, s.CreatedAt.Unix(), s.ExpiresAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Get retrieves a session by token. Unknown tokens are domain.ErrUnauthorized.
func (r *SessionRepository) Get(ctx context.Context, token string) (Session, error) {
	var s Session
	var createdAt, expiresAt int64
	err := r.cacheDB.QueryRowContext(ctx,
		`SELECT token, account_id, created_at, expires_at FROM sessions WHERE token = ?`, token,
	).Scan(&s.Token, &s.AccountID, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("unknown session: %w", domain.ErrUnauthorized)
	}
	if err != nil {
		return Session{}, fmt.Errorf("failed to get session: %w: %w", domain.ErrStoreUnavailable, err)
	}
	s.CreatedAt = time.Unix(createdAt, 0)
	s.ExpiresAt = time.Unix(expiresAt, 0)
	return s, nil
}

// Delete removes a session. Deleting an unknown token is not an error.
func (r *SessionRepository) Delete(ctx context.Context, token string) error {
	if _, err := r.cacheDB.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("failed to delete session: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// DeleteExpired removes every session that expired before now and returns how many
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.cacheDB.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w: %w", domain.ErrStoreUnavailable, err)
	}
	n, _ := result.RowsAffected()
	if n > 0 {
		r.log.Debug().Int64("count", n).Msg("Expired sessions removed")
	}
	return n, nil
}
