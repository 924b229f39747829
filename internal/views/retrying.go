package views

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/amplifrens/amplifrens-indexer/internal/domain"
	"github.com/amplifrens/amplifrens-indexer/internal/logger"
	"github.com/amplifrens/amplifrens-indexer/internal/metrics"
)

// RetryConfig bounds the retries of a view call
type RetryConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
	// MaxRetries caps the attempts after the first; 0 means no cap besides MaxElapsedTime
	MaxRetries uint64
}

// DefaultRetryConfig returns the retry settings used by the indexer
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		MaxElapsedTime:  2 * time.Minute,
		MaxRetries:      8,
	}
}

type retrying struct {
	next Reader
	cfg  RetryConfig
}

// NewRetrying wraps a Reader so transient failures are retried with exponential backoff.
// Reverts and missing tokens are answers, not failures, and return immediately.
func NewRetrying(next Reader, cfg RetryConfig) Reader {
	return &retrying{next: next, cfg: cfg}
}

func (r *retrying) backoff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	if r.cfg.InitialInterval > 0 {
		b.InitialInterval = r.cfg.InitialInterval
	}
	if r.cfg.MaxInterval > 0 {
		b.MaxInterval = r.cfg.MaxInterval
	}
	b.MaxElapsedTime = r.cfg.MaxElapsedTime

	var bo backoff.BackOff = b
	if r.cfg.MaxRetries > 0 {
		bo = backoff.WithMaxRetries(b, r.cfg.MaxRetries)
	}
	return backoff.WithContext(bo, ctx)
}

func isPermanent(err error) bool {
	return errors.Is(err, domain.ErrViewReverted) ||
		errors.Is(err, domain.ErrNoTokens) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// do runs op until it succeeds, fails permanently or the backoff gives up
func (r *retrying) do(ctx context.Context, method string, op func() error) error {
	var attempts int
	operation := func() error {
		err := op()
		if err != nil && isPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		attempts++
		metrics.ViewCallRetriesTotal.WithLabelValues(method).Inc()
		logger.WarnCtx(ctx, "View call failed, retrying",
			zap.String("method", method),
			zap.Error(err),
			zap.Int("attempt", attempts),
			zap.Duration("next_retry_in", next))
	}

	if err := backoff.RetryNotify(operation, r.backoff(ctx), notify); err != nil {
		if isPermanent(err) {
			return err
		}
		return fmt.Errorf("%s failed after %d attempts: %w", method, attempts+1, err)
	}
	return nil
}

// GetStatus retries the underlying GetStatus
func (r *retrying) GetStatus(ctx context.Context, address string, block uint64) (domain.StatusTier, error) {
	var tier domain.StatusTier
	err := r.do(ctx, "getStatus", func() error {
		var err error
		tier, err = r.next.GetStatus(ctx, address, block)
		return err
	})
	return tier, err
}

// IsMintingIntervalMet retries the underlying IsMintingIntervalMet
func (r *retrying) IsMintingIntervalMet(ctx context.Context, block uint64) (bool, error) {
	var met bool
	err := r.do(ctx, "isMintingIntervalMet", func() error {
		var err error
		met, err = r.next.IsMintingIntervalMet(ctx, block)
		return err
	})
	return met, err
}

// GetProfile retries the underlying GetProfile
func (r *retrying) GetProfile(ctx context.Context, address string, block uint64) (*domain.ProfileDetails, error) {
	var details *domain.ProfileDetails
	err := r.do(ctx, "getProfile", func() error {
		var err error
		details, err = r.next.GetProfile(ctx, address, block)
		return err
	})
	return details, err
}
