package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/amplifrens/amplifrens-indexer/internal/adapter"
	"github.com/amplifrens/amplifrens-indexer/internal/block"
	"github.com/amplifrens/amplifrens-indexer/internal/domain"
	"github.com/amplifrens/amplifrens-indexer/internal/logger"
	"github.com/amplifrens/amplifrens-indexer/internal/mapper"
	"github.com/amplifrens/amplifrens-indexer/internal/metrics"
	"github.com/amplifrens/amplifrens-indexer/internal/notify"
	natsprovider "github.com/amplifrens/amplifrens-indexer/internal/providers/jetstream"
	"github.com/amplifrens/amplifrens-indexer/internal/store"
)

const (
	defaultRetryDelay       = 5 * time.Second
	defaultSnapshotSchedule = "@every 1m"
)

// Config holds the configuration for the indexer
type Config struct {
	URL            string
	StreamName     string
	ConsumerName   string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectionName string
	AckWaitTimeout time.Duration
	MaxDeliver     int
	// RetryDelay is how long a failed event waits before redelivery
	RetryDelay time.Duration
	// SnapshotSchedule is the cron expression of the projection snapshot job
	SnapshotSchedule string
	// ChainHead, when set, lets the snapshot job report how far the projection lags the chain
	ChainHead block.HeadProvider
}

// Indexer defines the interface for the event indexer
type Indexer interface {
	// Run consumes events until ctx is done
	Run(ctx context.Context) error
	// Close closes the indexer and cleans up resources
	Close()
}

type indexer struct {
	nc       adapter.NatsConn
	js       adapter.JetStream
	json     adapter.JSON
	store    store.Store
	mapper   mapper.Mapper
	notifier notify.Notifier
	config   Config

	lastApplied atomic.Uint64
}

// NewIndexer creates a new indexer
func NewIndexer(
	cfg Config,
	natsJS adapter.NatsJetStream,
	jsonAdapter adapter.JSON,
	st store.Store,
	m mapper.Mapper,
	notifier notify.Notifier,
) (Indexer, error) {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.SnapshotSchedule == "" {
		cfg.SnapshotSchedule = defaultSnapshotSchedule
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
		}),
	}

	nc, js, err := natsJS.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS and create JetStream: %w", err)
	}

	return &indexer{
		nc:       nc,
		js:       js,
		json:     jsonAdapter,
		store:    st,
		mapper:   m,
		notifier: notifier,
		config:   cfg,
	}, nil
}

// Run consumes events strictly one at a time: the consumer allows a single unacknowledged
// message, so an event is only delivered once the previous one is applied and acked.
func (i *indexer) Run(ctx context.Context) error {
	logger.InfoCtx(ctx, "Starting indexer",
		zap.String("stream", i.config.StreamName),
		zap.String("consumer", i.config.ConsumerName))

	consumerConfig := jetstream.ConsumerConfig{
		Durable:       i.config.ConsumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       i.config.AckWaitTimeout,
		MaxDeliver:    i.config.MaxDeliver,
		MaxAckPending: 1,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		FilterSubject: natsprovider.SubjectPrefix + ".>",
	}

	consumer, err := i.js.CreateOrUpdateConsumer(ctx, i.config.StreamName, consumerConfig)
	if err != nil {
		return fmt.Errorf("failed to create/update consumer: %w", err)
	}

	consumerInfo, err := consumer.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to get consumer info: %w", err)
	}
	logger.InfoCtx(ctx, "Consumer created/retrieved",
		zap.String("consumer", consumerInfo.Name),
		zap.Uint64("pending", consumerInfo.NumPending))

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(i.config.SnapshotSchedule, func() { i.snapshot(ctx) }); err != nil {
		return fmt.Errorf("invalid snapshot schedule %q: %w", i.config.SnapshotSchedule, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	msgChan := make(chan adapter.Message, 1)
	sub, err := consumer.Consume(func(msg adapter.Message) {
		select {
		case msgChan <- msg:
		case <-ctx.Done():
		}
	}, jetstream.PullMaxMessages(1))
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	defer sub.Stop()

	logger.InfoCtx(ctx, "Started consuming messages")

	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "Shutting down indexer")
			return ctx.Err()
		case msg := <-msgChan:
			i.handleMessage(ctx, msg)
		}
	}
}

// handleMessage applies a single event and settles its message
func (i *indexer) handleMessage(ctx context.Context, msg adapter.Message) {
	var delivered uint64
	if metadata, err := msg.Metadata(); err == nil && metadata != nil {
		delivered = metadata.NumDelivered
	}

	event, err := domain.DecodeEvent(i.json, msg.Data())
	if err != nil {
		logger.ErrorCtx(ctx, err, zap.String("message", "Failed to decode event"))
		metrics.EventFailuresTotal.WithLabelValues("unknown", "decode").Inc()
		// Terminate message for unparseable data
		if err := msg.Term(); err != nil {
			logger.ErrorCtx(ctx, err, zap.String("message", "Failed to terminate message"))
		}
		return
	}

	meta := event.Meta()
	kind := string(event.Kind())
	ctx = logger.WithFields(ctx,
		zap.String("kind", kind),
		zap.String("logKey", meta.LogKey()),
	)
	logger.DebugCtx(ctx, "Received event",
		zap.Uint64("block", meta.BlockNumber),
		zap.Uint64("deliveryCount", delivered),
	)

	start := time.Now()
	applied, err := i.mapper.Project(ctx, i.store, event)
	if err != nil {
		logger.ErrorCtx(ctx, err,
			zap.String("message", "Failed to apply event"),
			zap.Uint64("deliveryCount", delivered),
		)
		metrics.EventFailuresTotal.WithLabelValues(kind, reasonOf(err)).Inc()
		// NAK to retry the same event, nothing after it is applied meanwhile
		if err := msg.NakWithDelay(i.config.RetryDelay); err != nil {
			logger.ErrorCtx(ctx, err, zap.String("message", "Failed to NAK message"))
		}
		return
	}

	if !applied {
		metrics.EventsDuplicateTotal.Inc()
		logger.InfoCtx(ctx, "Skipping already applied event")
	} else {
		metrics.ApplyDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		metrics.EventsAppliedTotal.WithLabelValues(kind).Inc()
		metrics.LastAppliedBlock.Set(float64(meta.BlockNumber))
		i.lastApplied.Store(meta.BlockNumber)
	}

	if err := msg.Ack(); err != nil {
		logger.ErrorCtx(ctx, err, zap.String("message", "Failed to ACK message"))
	}

	if applied {
		if err := i.notifier.Notify(ctx, notify.NewChange(event)); err != nil {
			logger.WarnCtx(ctx, "Failed to publish change notification", zap.Error(err))
		}
	}
}

func reasonOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnknownEvent):
		return "unknown_event"
	case errors.Is(err, domain.ErrOutOfBounds):
		return "out_of_bounds"
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidCategory):
		return "invalid"
	default:
		return "apply"
	}
}

// snapshot refreshes the gauges derived from the projection
func (i *indexer) snapshot(ctx context.Context) {
	day, err := i.store.GetCurrentDay(ctx)
	if err != nil {
		logger.WarnCtx(ctx, "Failed to read current day", zap.Error(err))
		return
	}
	metrics.CurrentDay.Set(float64(day))
	logger.DebugCtx(ctx, "Projection snapshot", zap.Uint64("day", day))

	if i.config.ChainHead == nil {
		return
	}
	head, err := i.config.ChainHead.LatestBlock(ctx)
	if err != nil {
		logger.WarnCtx(ctx, "Failed to read chain head", zap.Error(err))
		return
	}
	metrics.ChainHeadBlock.Set(float64(head))
	if applied := i.lastApplied.Load(); applied > 0 && head >= applied {
		metrics.LagBlocks.Set(float64(head - applied))
	}
}

// Close closes the indexer and cleans up resources
func (i *indexer) Close() {
	if i.nc == nil {
		return
	}

	i.nc.Close()
}
