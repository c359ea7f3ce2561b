package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/stockfolio/internal/clients/quotes"
	"github.com/aristath/stockfolio/internal/config"
	"github.com/aristath/stockfolio/internal/domain"
	"github.com/aristath/stockfolio/internal/reliability"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Quote provider circuit breaker settings
const (
	breakerThreshold = 5
	breakerReset     = 30 * time.Second
)

// InitializeClients creates the quote source, the Redis client and the
// backup object store.
func InitializeClients(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	source, err := NewQuoteSource(cfg, log)
	if err != nil {
		return err
	}
	container.QuoteSource = source

	if cfg.Redis.Enabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		container.RedisClient = client
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Redis connected")
	}

	if cfg.Backup.Enabled() {
		store, err := reliability.NewS3Client(ctx, cfg.Backup, log)
		if err != nil {
			return err
		}
		container.ObjectStore = store
	}

	return nil
}

// NewQuoteSource builds the configured quote provider. Network providers are
// wrapped in a circuit breaker.
func NewQuoteSource(cfg *config.Config, log zerolog.Logger) (domain.QuoteSource, error) {
	switch cfg.QuoteProvider {
	case config.ProviderIEX:
		client := quotes.NewIEXClient(cfg.IEXBaseURL, cfg.APIKey, log)
		return quotes.NewCircuitBreaker(client, breakerThreshold, breakerReset, log), nil
	case config.ProviderYahoo:
		return quotes.NewCircuitBreaker(quotes.NewYahooSource(log), breakerThreshold, breakerReset, log), nil
	case config.ProviderStatic:
		fixed, err := quotes.ParseStaticQuotes(cfg.StaticQuotes)
		if err != nil {
			return nil, fmt.Errorf("invalid STATIC_QUOTES: %w", err)
		}
		return quotes.NewStaticSource(fixed...), nil
	default:
		return nil, fmt.Errorf("unknown quote provider %q", cfg.QuoteProvider)
	}
}
