package ratelimit

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/amplifrens/amplifrens-indexer/internal/adapter"
	"github.com/amplifrens/amplifrens-indexer/internal/logger"
)

// redisRetryInterval is how long the limiter stays local after a Redis failure
const redisRetryInterval = 10 * time.Second

// Config holds the budget of one upstream provider
type Config struct {
	// Name identifies the provider; replicas sharing a name share the budget
	Name              string
	RequestsPerSecond int
	Burst             int
	KeyPrefix         string
	// EnableLocalFallback keeps limiting in-process while Redis is unreachable
	EnableLocalFallback bool
	// LocalFallbackMultiplier scales the local rate; replicas do not coordinate locally
	LocalFallbackMultiplier float64
}

// Limiter paces requests to an upstream provider
//
//go:generate mockgen -source=limiter.go -destination=../mocks/ratelimit_limiter.go -package=mocks -mock_names=Limiter=MockLimiter
type Limiter interface {
	// Wait blocks until a request may be sent or ctx is done
	Wait(ctx context.Context) error
}

type limiter struct {
	config      Config
	redis       adapter.RedisClient
	distributed adapter.RedisRateLimiter
	local       *rate.Limiter
	clock       adapter.Clock

	redisAvailable atomic.Bool
	mu             sync.Mutex
	lastFailure    time.Time
}

// NewLimiter creates a limiter backed by a Redis GCRA budget with an optional local fallback
func NewLimiter(cfg Config, rc adapter.RedisClient, clock adapter.Clock) (Limiter, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	l := &limiter{
		config:      cfg,
		redis:       rc,
		distributed: rc.NewRateLimiter(),
		local:       rate.NewLimiter(rate.Limit(max(float64(cfg.RequestsPerSecond)*cfg.LocalFallbackMultiplier, 1.0)), cfg.Burst),
		clock:       clock,
	}

	if err := rc.Ping(ctx); err != nil {
		if !cfg.EnableLocalFallback {
			return nil, fmt.Errorf("redis unavailable and fallback disabled: %w", err)
		}
		logger.Warn("Redis unavailable, will use local fallback", zap.String("provider", cfg.Name), zap.Error(err))
		l.lastFailure = clock.Now()
	} else {
		l.redisAvailable.Store(true)
	}

	logger.Info("Rate limiter initialized",
		zap.String("provider", cfg.Name),
		zap.Int("requests_per_second", cfg.RequestsPerSecond),
		zap.Int("burst", cfg.Burst),
		zap.Bool("local_fallback", cfg.EnableLocalFallback),
	)

	return l, nil
}

// Wait blocks until a token is acquired
func (l *limiter) Wait(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if l.distributedUsable(ctx) {
			allowed, retryAfter, err := l.tryDistributed(ctx)
			switch {
			case err != nil:
				if ctx.Err() != nil {
					return ctx.Err()
				}
				l.markUnavailable()
				if !l.config.EnableLocalFallback {
					return fmt.Errorf("redis rate limiter unavailable: %w", err)
				}
				logger.Warn("Redis rate limiter error, falling back to local",
					zap.String("provider", l.config.Name),
					zap.Error(err),
				)
			case allowed:
				return nil
			default:
				// 50-150% of retryAfter spreads replicas apart
				jitter := time.Duration(float64(retryAfter) * (0.5 + rand.Float64())) //nolint:gosec,G404
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-l.clock.After(jitter):
				}
				continue
			}
		}

		if l.config.EnableLocalFallback {
			return l.local.Wait(ctx)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.clock.After(100 * time.Millisecond):
		}
	}
}

// distributedUsable reports whether Redis should be tried, probing it again after redisRetryInterval
func (l *limiter) distributedUsable(ctx context.Context) bool {
	if l.redisAvailable.Load() {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.clock.Since(l.lastFailure) < redisRetryInterval {
		return false
	}
	if err := l.redis.Ping(ctx); err != nil {
		l.lastFailure = l.clock.Now()
		return false
	}

	logger.Info("Redis connection restored", zap.String("provider", l.config.Name))
	l.redisAvailable.Store(true)
	return true
}

func (l *limiter) markUnavailable() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.redisAvailable.Store(false)
	l.lastFailure = l.clock.Now()
}

// tryDistributed returns (allowed, retryAfter, error)
func (l *limiter) tryDistributed(ctx context.Context) (bool, time.Duration, error) {
	limit := redis_rate.Limit{
		Rate:   l.config.RequestsPerSecond,
		Burst:  l.config.Burst,
		Period: time.Second,
	}

	res, err := l.distributed.Allow(ctx, l.config.KeyPrefix+l.config.Name, limit)
	if err != nil {
		return false, 0, err
	}
	if res.Allowed == 0 {
		logger.Debug("Rate limit token unavailable, waiting",
			zap.String("provider", l.config.Name),
			zap.Duration("retry_after", res.RetryAfter),
			zap.Int("remaining", res.Remaining),
		)
		return false, res.RetryAfter, nil
	}
	return true, 0, nil
}

// validateConfig validates and sets defaults for the configuration
func validateConfig(cfg *Config) error {
	if cfg.Name == "" {
		return fmt.Errorf("name is required")
	}
	if cfg.RequestsPerSecond <= 0 {
		return fmt.Errorf("provider %s: requests_per_second must be positive", cfg.Name)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RequestsPerSecond
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "amplifrens:limiter:"
	}
	if cfg.LocalFallbackMultiplier <= 0 {
		cfg.LocalFallbackMultiplier = 0.5
	}
	return nil
}
