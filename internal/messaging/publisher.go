package messaging

import (
	"context"

	"github.com/amplifrens/amplifrens-indexer/internal/domain"
)

// PublishAck is the broker's acknowledgement of a published event
type PublishAck struct {
	Stream   string
	Sequence uint64
	// Duplicate is set when the broker already held a message with the event's log key
	Duplicate bool
}

// Publisher hands decoded contract events to the broker the indexer consumes from.
// Events must be published in chain order; the log key is the dedupe id.
//
//go:generate mockgen -source=publisher.go -destination=../mocks/publisher.go -package=mocks -mock_names=Publisher=MockPublisher
type Publisher interface {
	PublishEvent(ctx context.Context, event domain.Event) (PublishAck, error)
	Close()
	// CloseChan is closed once the broker connection is gone
	CloseChan() <-chan struct{}
}
