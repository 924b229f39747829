package block

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/amplifrens/amplifrens-indexer/internal/adapter"
	"github.com/amplifrens/amplifrens-indexer/internal/logger"
)

// Head is a cached chain head
type Head struct {
	Number    uint64
	FetchedAt time.Time
}

// HeadProvider provides cached access to the chain head.
// It keeps the indexer's lag metrics from issuing an RPC call on every snapshot.
//
//go:generate mockgen -source=head.go -destination=../mocks/chain_head.go -package=mocks -mock_names=HeadProvider=MockHeadProvider,HeadFetcher=MockHeadFetcher
type HeadProvider interface {
	// LatestBlock returns the chain head, potentially from cache
	LatestBlock(ctx context.Context) (uint64, error)
}

// HeadFetcher reads the chain head from the node
type HeadFetcher interface {
	// LatestBlock returns the current chain head
	LatestBlock(ctx context.Context) (uint64, error)
}

// Config holds configuration for the HeadProvider
type Config struct {
	// TTL is how long a fetched head is served from cache
	TTL time.Duration

	// StaleWindow is how long a cached head may still be served when fetching fails
	StaleWindow time.Duration
}

type headProvider struct {
	fetcher HeadFetcher
	config  Config
	clock   adapter.Clock

	mu   sync.RWMutex
	head *Head
}

// NewHeadProvider creates a HeadProvider that caches the head of fetcher
func NewHeadProvider(fetcher HeadFetcher, config Config, clock adapter.Clock) HeadProvider {
	return &headProvider{
		fetcher: fetcher,
		config:  config,
		clock:   clock,
	}
}

// LatestBlock returns the chain head, using the cache while it is fresh
func (p *headProvider) LatestBlock(ctx context.Context) (uint64, error) {
	p.mu.RLock()
	cached := p.head
	p.mu.RUnlock()

	now := p.clock.Now()
	if cached != nil && now.Sub(cached.FetchedAt) < p.config.TTL {
		return cached.Number, nil
	}

	number, err := p.fetcher.LatestBlock(ctx)
	if err != nil {
		if cached != nil && now.Sub(cached.FetchedAt) < p.config.StaleWindow {
			logger.DebugCtx(ctx, "Using stale chain head", zap.Uint64("block_number", cached.Number), zap.Error(err))
			return cached.Number, nil
		}
		return 0, fmt.Errorf("failed to fetch chain head and no valid cache available: %w", err)
	}

	p.mu.Lock()
	// A concurrent refresh may already have seen a later head
	if p.head == nil || number >= p.head.Number {
		p.head = &Head{Number: number, FetchedAt: now}
	}
	p.mu.Unlock()

	return number, nil
}
