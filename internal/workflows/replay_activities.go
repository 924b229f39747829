package workflows

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"github.com/amplifrens/amplifrens-indexer/internal/domain"
	"github.com/amplifrens/amplifrens-indexer/internal/logger"
	"github.com/amplifrens/amplifrens-indexer/internal/messaging"
	"github.com/amplifrens/amplifrens-indexer/internal/metrics"
	"github.com/amplifrens/amplifrens-indexer/internal/providers/ethereum"
)

// ReplayExecutor defines the activities of the replay workflow
//
//go:generate mockgen -source=replay_activities.go -destination=../mocks/replay_executor.go -package=mocks -mock_names=ReplayExecutor=MockReplayExecutor
type ReplayExecutor interface {
	// LatestBlock returns the current chain head
	LatestBlock(ctx context.Context) (uint64, error)

	// ReplayChunk publishes the logs of [fromBlock, toBlock] in chain order and
	// returns how many were published
	ReplayChunk(ctx context.Context, fromBlock, toBlock uint64) (int, error)
}

type replayExecutor struct {
	fetcher   ethereum.EventFetcher
	publisher messaging.Publisher
}

// NewReplayExecutor creates the replay activities
func NewReplayExecutor(fetcher ethereum.EventFetcher, publisher messaging.Publisher) ReplayExecutor {
	return &replayExecutor{
		fetcher:   fetcher,
		publisher: publisher,
	}
}

// LatestBlock returns the current chain head
func (e *replayExecutor) LatestBlock(ctx context.Context) (uint64, error) {
	head, err := e.fetcher.LatestBlock(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block: %w", err)
	}
	return head, nil
}

// ReplayChunk publishes the logs of [fromBlock, toBlock] in chain order.
// A retried chunk publishes the same message ids again, the broker drops the duplicates.
func (e *replayExecutor) ReplayChunk(ctx context.Context, fromBlock, toBlock uint64) (int, error) {
	events, err := e.fetcher.FetchEvents(ctx, fromBlock, toBlock)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return 0, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidRange, err)
		}
		return 0, fmt.Errorf("failed to fetch events: %w", err)
	}

	duplicates := 0
	for i, event := range events {
		ack, err := e.publisher.PublishEvent(ctx, event)
		if err != nil {
			return i, fmt.Errorf("failed to publish event %s: %w", event.Meta().LogKey(), err)
		}
		metrics.EventsPublishedTotal.WithLabelValues(string(event.Kind())).Inc()
		if ack.Duplicate {
			duplicates++
			metrics.PublishDuplicatesTotal.WithLabelValues(string(event.Kind())).Inc()
		}
	}

	logger.InfoCtx(ctx, "Replayed block range",
		zap.Uint64("fromBlock", fromBlock),
		zap.Uint64("toBlock", toBlock),
		zap.Int("events", len(events)),
		zap.Int("duplicates", duplicates),
	)

	return len(events), nil
}
