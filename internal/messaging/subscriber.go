package messaging

import (
	"context"

	"github.com/amplifrens/amplifrens-indexer/internal/domain"
)

// EventHandler is called for every decoded contract event, in chain order
type EventHandler func(event domain.Event) error

// Subscriber defines the common interface for sources of AmpliFrens events.
// The Ethereum subscriber and the in-process platform log both implement it.
//
//go:generate mockgen -source=subscriber.go -destination=../mocks/subscriber.go -package=mocks -mock_names=Subscriber=MockSubscriber
type Subscriber interface {
	// SubscribeEvents delivers every event from fromBlock onwards to handler.
	// A handler error stops the subscription and is returned.
	SubscribeEvents(ctx context.Context, fromBlock uint64, handler EventHandler) error

	// GetLatestBlock returns the latest block number
	GetLatestBlock(ctx context.Context) (uint64, error)

	// Close closes the connection and cleans up resources
	Close()
}
