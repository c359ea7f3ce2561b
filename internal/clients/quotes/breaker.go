package quotes

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/rs/zerolog"
)

// BreakerState is the state of a CircuitBreaker
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// ErrCircuitOpen is returned without calling the provider while the breaker is open.
var ErrCircuitOpen = errors.New("quote provider circuit breaker is open")

// CircuitBreaker wraps a QuoteSource and stops calling it after threshold
// consecutive provider failures, for resetTimeout. Unknown symbols are
// answers, not failures, and do not count.
type CircuitBreaker struct {
	source       domain.QuoteSource
	threshold    int
	resetTimeout time.Duration
	now          func() time.Time
	log          zerolog.Logger

	mu           sync.Mutex
	state        BreakerState
	failureCount int
	lastFailure  time.Time
}

var _ domain.QuoteSource = (*CircuitBreaker)(nil)

// NewCircuitBreaker wraps source
func NewCircuitBreaker(source domain.QuoteSource, threshold int, resetTimeout time.Duration, log zerolog.Logger) *CircuitBreaker {
	if threshold < 1 {
		threshold = 1
	}
	return &CircuitBreaker{
		source:       source,
		threshold:    threshold,
		resetTimeout: resetTimeout,
		now:          time.Now,
		state:        StateClosed,
		log:          log.With().Str("component", "quote_breaker").Logger(),
	}
}

// State returns the current state
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Lookup calls the wrapped source unless the circuit is open
func (cb *CircuitBreaker) Lookup(ctx context.Context, symbol string) (domain.Quote, error) {
	cb.mu.Lock()
	if cb.state == StateOpen {
		if cb.now().Sub(cb.lastFailure) > cb.resetTimeout {
			cb.log.Info().Msg("Circuit transitioning to half-open")
			cb.state = StateHalfOpen
		} else {
			cb.mu.Unlock()
			return domain.Quote{}, fmt.Errorf("%s: %w: %w", symbol, domain.ErrQuoteUnavailable, ErrCircuitOpen)
		}
	}
	cb.mu.Unlock()

	quote, err := cb.source.Lookup(ctx, symbol)

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil && !errors.Is(err, domain.ErrSymbolNotFound) {
		cb.failureCount++
		cb.lastFailure = cb.now()
		cb.log.Warn().Err(err).Int("failures", cb.failureCount).Int("threshold", cb.threshold).Msg("Quote provider failure")
		if cb.state == StateHalfOpen || cb.failureCount >= cb.threshold {
			if cb.state != StateOpen {
				cb.log.Error().Msg("Failure threshold reached, circuit open")
			}
			cb.state = StateOpen
		}
		return quote, err
	}

	if cb.state == StateHalfOpen {
		cb.log.Info().Msg("Provider recovered, circuit closed")
	}
	cb.state = StateClosed
	cb.failureCount = 0
	return quote, err
}
