package notify

import (
	"context"
	"fmt"
	"strconv"

	"github.com/oklog/ulid/v2"

	"github.com/amplifrens/amplifrens-indexer/internal/adapter"
	"github.com/amplifrens/amplifrens-indexer/internal/domain"
	"github.com/amplifrens/amplifrens-indexer/internal/metrics"
)

const (
	// DefaultStream is the Redis stream projection changes are appended to
	DefaultStream = "amplifrens:changes"
	// DefaultStreamMaxLen caps the stream length
	DefaultStreamMaxLen = 10000
)

// Change tells consumers which entity an applied event touched
type Change struct {
	ID          string
	Kind        domain.EventKind
	Key         string
	TxHash      string
	LogIndex    uint64
	BlockNumber uint64
}

// NewChange describes the change made by an applied event
func NewChange(event domain.Event) Change {
	meta := event.Meta()
	return Change{
		ID:          ulid.Make().String(),
		Kind:        event.Kind(),
		Key:         event.NaturalKey(),
		TxHash:      meta.TxHash,
		LogIndex:    meta.LogIndex,
		BlockNumber: meta.BlockNumber,
	}
}

func (c Change) values() map[string]interface{} {
	return map[string]interface{}{
		"id":           c.ID,
		"kind":         string(c.Kind),
		"key":          c.Key,
		"tx_hash":      c.TxHash,
		"log_index":    strconv.FormatUint(c.LogIndex, 10),
		"block_number": strconv.FormatUint(c.BlockNumber, 10),
	}
}

// Notifier publishes projection changes to downstream consumers
//
//go:generate mockgen -source=notify.go -destination=../mocks/notifier.go -package=mocks -mock_names=Notifier=MockNotifier
type Notifier interface {
	// Notify publishes one change
	Notify(ctx context.Context, change Change) error
}

type redisNotifier struct {
	client adapter.RedisClient
	stream string
	maxLen int64
}

// NewRedisNotifier appends changes to a capped Redis stream
func NewRedisNotifier(client adapter.RedisClient, stream string, maxLen int64) Notifier {
	if stream == "" {
		stream = DefaultStream
	}
	return &redisNotifier{
		client: client,
		stream: stream,
		maxLen: maxLen,
	}
}

// Notify appends the change to the stream
func (n *redisNotifier) Notify(ctx context.Context, change Change) error {
	if _, err := n.client.XAdd(ctx, n.stream, n.maxLen, change.values()); err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to append change %s to %s: %w", change.ID, n.stream, err)
	}
	metrics.NotificationsTotal.WithLabelValues("success").Inc()
	return nil
}

type nopNotifier struct{}

// NewNopNotifier returns a notifier that drops every change
func NewNopNotifier() Notifier {
	return nopNotifier{}
}

func (nopNotifier) Notify(context.Context, Change) error { return nil }
