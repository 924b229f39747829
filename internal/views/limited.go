package views

import (
	"context"
	"fmt"

	"github.com/amplifrens/amplifrens-indexer/internal/domain"
	"github.com/amplifrens/amplifrens-indexer/internal/ratelimit"
)

type limited struct {
	next    Reader
	limiter ratelimit.Limiter
}

// NewRateLimited paces every view call through limiter
func NewRateLimited(next Reader, limiter ratelimit.Limiter) Reader {
	return &limited{next: next, limiter: limiter}
}

func (l *limited) wait(ctx context.Context, method string) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", method, err)
	}
	return nil
}

func (l *limited) GetStatus(ctx context.Context, address string, block uint64) (domain.StatusTier, error) {
	if err := l.wait(ctx, "getStatus"); err != nil {
		return domain.TierRookie, err
	}
	return l.next.GetStatus(ctx, address, block)
}

func (l *limited) IsMintingIntervalMet(ctx context.Context, block uint64) (bool, error) {
	if err := l.wait(ctx, "isMintingIntervalMet"); err != nil {
		return false, err
	}
	return l.next.IsMintingIntervalMet(ctx, block)
}

func (l *limited) GetProfile(ctx context.Context, address string, block uint64) (*domain.ProfileDetails, error) {
	if err := l.wait(ctx, "getProfile"); err != nil {
		return nil, err
	}
	return l.next.GetProfile(ctx, address, block)
}
