package emitter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/amplifrens/amplifrens-indexer/internal/adapter"
	"github.com/amplifrens/amplifrens-indexer/internal/domain"
	"github.com/amplifrens/amplifrens-indexer/internal/logger"
	"github.com/amplifrens/amplifrens-indexer/internal/messaging"
	"github.com/amplifrens/amplifrens-indexer/internal/metrics"
	"github.com/amplifrens/amplifrens-indexer/internal/store"
)

// ErrPublisherClosed is returned when the broker connection goes away while running
var ErrPublisherClosed = errors.New("publisher connection closed")

// Config holds the configuration for the event emitter
type Config struct {
	ChainID         domain.Chain
	StartBlock      uint64
	CursorSaveFreq  uint64        // Save cursor every N blocks
	CursorSaveDelay time.Duration // Or save cursor every N seconds
}

// Emitter defines the interface for the event emitter
type Emitter interface {
	// Run starts the event emitter
	Run(ctx context.Context) error
	// Close closes the emitter and cleans up resources
	Close()
}

// emitter forwards contract events to the broker in chain order
type emitter struct {
	subscriber messaging.Subscriber
	publisher  messaging.Publisher
	cursors    store.CursorStore
	config     Config
	clock      adapter.Clock
}

// NewEmitter creates a new event emitter
func NewEmitter(
	sub messaging.Subscriber,
	pub messaging.Publisher,
	cursors store.CursorStore,
	cfg Config,
	clock adapter.Clock,
) Emitter {
	return &emitter{
		subscriber: sub,
		publisher:  pub,
		cursors:    cursors,
		config:     cfg,
		clock:      clock,
	}
}

func (e *emitter) resolveStartBlock(ctx context.Context) (uint64, error) {
	chain := string(e.config.ChainID)

	if e.config.StartBlock > 0 {
		// A cursor past the configured start wins so restarts do not republish history
		lastBlock, err := e.cursors.GetBlockCursor(ctx, chain)
		if err != nil {
			return 0, fmt.Errorf("failed to get block cursor: %w", err)
		}
		if lastBlock >= e.config.StartBlock {
			logger.InfoCtx(ctx, "Resuming from last processed block", zap.String("chain", chain), zap.Uint64("block", lastBlock+1))
			return lastBlock + 1, nil
		}
		logger.InfoCtx(ctx, "Starting from configured block", zap.String("chain", chain), zap.Uint64("block", e.config.StartBlock))
		return e.config.StartBlock, nil
	}

	lastBlock, err := e.cursors.GetBlockCursor(ctx, chain)
	if err != nil {
		return 0, fmt.Errorf("failed to get block cursor: %w", err)
	}
	if lastBlock > 0 {
		logger.InfoCtx(ctx, "Resuming from last processed block", zap.String("chain", chain), zap.Uint64("block", lastBlock+1))
		return lastBlock + 1, nil
	}

	latestBlock, err := e.subscriber.GetLatestBlock(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block number: %w", err)
	}
	logger.InfoCtx(ctx, "Starting from latest block", zap.String("chain", chain), zap.Uint64("block", latestBlock))
	return latestBlock, nil
}

// Run starts the event emitter
func (e *emitter) Run(ctx context.Context) error {
	startBlock, err := e.resolveStartBlock(ctx)
	if err != nil {
		return err
	}

	chain := string(e.config.ChainID)
	errCh := make(chan error, 1)

	go func() {
		logger.InfoCtx(ctx, "Starting event subscription", zap.String("chain", chain))

		lastSavedBlock := uint64(0)
		if startBlock > 0 {
			lastSavedBlock = startBlock - 1
		}
		lastSaveTime := e.clock.Now()
		currentBlock := uint64(0)

		handler := func(event domain.Event) error {
			meta := event.Meta()
			ack, err := e.publisher.PublishEvent(ctx, event)
			if err != nil {
				return fmt.Errorf("failed to publish event %s: %w", meta.LogKey(), err)
			}
			metrics.EventsPublishedTotal.WithLabelValues(string(event.Kind())).Inc()
			if ack.Duplicate {
				metrics.PublishDuplicatesTotal.WithLabelValues(string(event.Kind())).Inc()
			}

			// Only blocks strictly before the current event's block are complete
			if currentBlock != 0 && meta.BlockNumber > currentBlock {
				completed := meta.BlockNumber - 1
				shouldSave := completed-lastSavedBlock >= e.config.CursorSaveFreq ||
					e.clock.Since(lastSaveTime) >= e.config.CursorSaveDelay

				if shouldSave && completed > lastSavedBlock {
					if err := e.cursors.SetBlockCursor(ctx, chain, completed); err != nil {
						logger.ErrorCtx(ctx, err, zap.String("message", "Failed to save block cursor"), zap.Uint64("block", completed))
					} else {
						metrics.BlockCursor.WithLabelValues(chain).Set(float64(completed))
						lastSavedBlock = completed
						lastSaveTime = e.clock.Now()
					}
				}
			}
			currentBlock = meta.BlockNumber

			return nil
		}

		if err := e.subscriber.SubscribeEvents(ctx, startBlock, handler); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-e.publisher.CloseChan():
		return ErrPublisherClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the emitter and cleans up resources
func (e *emitter) Close() {
	e.subscriber.Close()
}
