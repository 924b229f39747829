package jetstream

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/amplifrens/amplifrens-indexer/internal/adapter"
	"github.com/amplifrens/amplifrens-indexer/internal/domain"
	"github.com/amplifrens/amplifrens-indexer/internal/logger"
	"github.com/amplifrens/amplifrens-indexer/internal/messaging"
)

// SubjectPrefix is the root of every event subject
const SubjectPrefix = "amplifrens.events"

const (
	defaultDuplicateWindow = 2 * time.Minute
	streamSetupTimeout     = 10 * time.Second
)

// Config holds the configuration for NATS JetStream connection
type Config struct {
	URL            string
	StreamName     string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectionName string
	// EnsureStream creates or updates the event stream on connect
	EnsureStream bool
	// DuplicateWindow is how long JetStream remembers message ids for deduplication
	DuplicateWindow time.Duration
}

type publisher struct {
	nc         adapter.NatsConn
	js         adapter.JetStream
	streamName string
	json       adapter.JSON
	closeCh    chan struct{}
	closeOnce  sync.Once
}

// NewPublisher creates a new NATS JetStream publisher
func NewPublisher(cfg Config, natsJS adapter.NatsJetStream, jsonAdapter adapter.JSON) (messaging.Publisher, error) {
	p := &publisher{
		streamName: cfg.StreamName,
		json:       jsonAdapter,
		closeCh:    make(chan struct{}),
	}

	opts := []nats.Option{
		nats.Name(cfg.ConnectionName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Error(err, zap.String("message", "Disconnected from NATS"))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Reconnected to NATS", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
			p.markClosed()
		}),
	}

	nc, js, err := natsJS.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS and create JetStream: %w", err)
	}
	p.nc = nc
	p.js = js

	if cfg.EnsureStream {
		if err := ensureStream(js, cfg); err != nil {
			nc.Close()
			return nil, err
		}
	}

	return p, nil
}

// ensureStream provisions the event stream. Every subject under SubjectPrefix is stored
// and redeliveries of the same log are dropped within the duplicate window.
func ensureStream(js adapter.JetStream, cfg Config) error {
	window := cfg.DuplicateWindow
	if window <= 0 {
		window = defaultDuplicateWindow
	}

	ctx, cancel := context.WithTimeout(context.Background(), streamSetupTimeout)
	defer cancel()

	info, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       cfg.StreamName,
		Subjects:   []string{SubjectPrefix + ".>"},
		Storage:    jetstream.FileStorage,
		Retention:  jetstream.LimitsPolicy,
		Duplicates: window,
	})
	if err != nil {
		return fmt.Errorf("failed to create or update stream %s: %w", cfg.StreamName, err)
	}

	logger.Info("Event stream ready",
		zap.String("stream", cfg.StreamName),
		zap.Uint64("messages", info.State.Msgs),
		zap.Duration("duplicate_window", window))
	return nil
}

// PublishEvent publishes a contract event to NATS JetStream.
// The message id is the log key so JetStream drops duplicates within its window.
func (p *publisher) PublishEvent(ctx context.Context, event domain.Event) (messaging.PublishAck, error) {
	meta := event.Meta()
	logger.DebugCtx(ctx, "Publishing Nats event",
		zap.String("kind", string(event.Kind())),
		zap.String("logKey", meta.LogKey()),
		zap.Uint64("block", meta.BlockNumber))

	data, err := domain.EncodeEvent(p.json, event)
	if err != nil {
		return messaging.PublishAck{}, fmt.Errorf("failed to encode event: %w", err)
	}

	ack, err := p.js.Publish(ctx, BuildSubject(event), data, jetstream.WithMsgID(meta.LogKey()))
	if err != nil {
		return messaging.PublishAck{}, fmt.Errorf("failed to publish event: %w", err)
	}

	return messaging.PublishAck{
		Stream:    ack.Stream,
		Sequence:  ack.Sequence,
		Duplicate: ack.Duplicate,
	}, nil
}

// BuildSubject constructs the NATS subject of an event.
// Format: amplifrens.events.{chain}.{kind}, e.g. amplifrens.events.eip155_137.contribution_created
func BuildSubject(event domain.Event) string {
	chain := strings.NewReplacer(":", "_", ".", "_").Replace(string(event.Meta().Chain))
	if chain == "" {
		chain = "unknown"
	}
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, chain, event.Kind())
}

func (p *publisher) markClosed() {
	p.closeOnce.Do(func() {
		close(p.closeCh)
	})
}

// Close closes the NATS connection
func (p *publisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
	p.markClosed()
}

// CloseChan returns a channel that is closed once the connection is closed
func (p *publisher) CloseChan() <-chan struct{} {
	return p.closeCh
}
