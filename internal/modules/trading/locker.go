package trading

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// AccountLocker serializes trades on one account. Lock blocks until the
// account is free or ctx is done; the returned func releases it.
type AccountLocker interface {
	Lock(ctx context.Context, accountID int64) (unlock func(), err error)
}

// LocalLocker is an in-process AccountLocker. Entries are dropped once no
// goroutine holds or waits for them.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[int64]*accountLock
}

type accountLock struct {
	ch   chan struct{}
	refs int
}

var _ AccountLocker = (*LocalLocker)(nil)

// NewLocalLocker creates an in-process account locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[int64]*accountLock)}
}

// Lock acquires the account's lock.
func (l *LocalLocker) Lock(ctx context.Context, accountID int64) (func(), error) {
	l.mu.Lock()
	lock, ok := l.locks[accountID]
	if !ok {
		lock = &accountLock{ch: make(chan struct{}, 1)}
		l.locks[accountID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	select {
	case lock.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(accountID, lock, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(accountID, lock, true) })
	}, nil
}

func (l *LocalLocker) release(accountID int64, lock *accountLock, held bool) {
	if held {
		<-lock.ch
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, accountID)
	}
}

// size returns the number of tracked accounts.
func (l *LocalLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// releaseScript deletes the lock only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is an AccountLocker shared by every process using the same
// Redis. Locks expire after ttl so a crashed holder cannot wedge an account.
type RedisLocker struct {
	client    *redis.Client
	ttl       time.Duration
	retry     time.Duration
	keyPrefix string
	log       zerolog.Logger
}

var _ AccountLocker = (*RedisLocker)(nil)

// NewRedisLocker creates a Redis-backed account locker.
func NewRedisLocker(client *redis.Client, ttl time.Duration, log zerolog.Logger) *RedisLocker {
	return &RedisLocker{
		client:    client,
		ttl:       ttl,
		retry:     25 * time.Millisecond,
		keyPrefix: "stockfolio:lock:account:",
		log:       log.With().Str("component", "redis_locker").Logger(),
	}
}

func (l *RedisLocker) key(accountID int64) string {
	return l.keyPrefix + strconv.FormatInt(accountID, 10)
}

// Lock polls SET NX until the key is acquired or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, accountID int64) (func(), error) {
	key := l.key(accountID)
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("acquire lock for account %d: %w", accountID, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's ctx may already be cancelled; release regardless.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			n, err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Int()
			if err != nil && !errors.Is(err, redis.Nil) {
				l.log.Error().Err(err).Int64("account_id", accountID).Msg("Failed to release account lock")
				return
			}
			if n == 0 {
				l.log.Warn().Int64("account_id", accountID).Dur("ttl", l.ttl).Msg("Account lock expired before release")
			}
		})
	}, nil
}
