package workflows_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"

	"github.com/amplifrens/amplifrens-indexer/internal/domain"
	"github.com/amplifrens/amplifrens-indexer/internal/logger"
	"github.com/amplifrens/amplifrens-indexer/internal/messaging"
	"github.com/amplifrens/amplifrens-indexer/internal/mocks"
	"github.com/amplifrens/amplifrens-indexer/internal/workflows"
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: false}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func upvote(block, logIndex uint64) domain.Event {
	return &domain.ContributionUpvoted{
		LogMeta: domain.LogMeta{
			Chain:       domain.ChainHardhat,
			TxHash:      fmt.Sprintf("0x%064x", block),
			LogIndex:    logIndex,
			BlockNumber: block,
		},
		From:           "0x00000000000000000000000000000000000000aa",
		ContributionID: 1,
		Timestamp:      1_664_000_000,
	}
}

func TestReplayExecutor_ReplayChunk(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes in chain order", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		fetcher := mocks.NewMockEventFetcher(ctrl)
		publisher := mocks.NewMockPublisher(ctrl)
		executor := workflows.NewReplayExecutor(fetcher, publisher)

		events := []domain.Event{upvote(10, 0), upvote(10, 1), upvote(12, 0)}
		fetcher.EXPECT().FetchEvents(ctx, uint64(10), uint64(19)).Return(events, nil)
		gomock.InOrder(
			publisher.EXPECT().PublishEvent(ctx, events[0]).Return(messaging.PublishAck{}, nil),
			publisher.EXPECT().PublishEvent(ctx, events[1]).Return(messaging.PublishAck{Sequence: 2, Duplicate: true}, nil),
			publisher.EXPECT().PublishEvent(ctx, events[2]).Return(messaging.PublishAck{}, nil),
		)

		published, err := executor.ReplayChunk(ctx, 10, 19)
		require.NoError(t, err)
		assert.Equal(t, 3, published)
	})

	t.Run("empty range", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		fetcher := mocks.NewMockEventFetcher(ctrl)
		publisher := mocks.NewMockPublisher(ctrl)
		executor := workflows.NewReplayExecutor(fetcher, publisher)

		fetcher.EXPECT().FetchEvents(ctx, uint64(1), uint64(5)).Return(nil, nil)

		published, err := executor.ReplayChunk(ctx, 1, 5)
		require.NoError(t, err)
		assert.Zero(t, published)
	})

	t.Run("publish failure stops the chunk", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		fetcher := mocks.NewMockEventFetcher(ctrl)
		publisher := mocks.NewMockPublisher(ctrl)
		executor := workflows.NewReplayExecutor(fetcher, publisher)

		events := []domain.Event{upvote(3, 0), upvote(4, 0), upvote(5, 0)}
		boom := errors.New("nats down")
		fetcher.EXPECT().FetchEvents(ctx, uint64(3), uint64(5)).Return(events, nil)
		publisher.EXPECT().PublishEvent(ctx, events[0]).Return(messaging.PublishAck{}, nil)
		publisher.EXPECT().PublishEvent(ctx, events[1]).Return(messaging.PublishAck{}, boom)

		published, err := executor.ReplayChunk(ctx, 3, 5)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, published)
	})

	t.Run("fetch failure is retryable", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		fetcher := mocks.NewMockEventFetcher(ctrl)
		executor := workflows.NewReplayExecutor(fetcher, mocks.NewMockPublisher(ctrl))

		boom := errors.New("rpc timeout")
		fetcher.EXPECT().FetchEvents(ctx, uint64(1), uint64(2)).Return(nil, boom)

		_, err := executor.ReplayChunk(ctx, 1, 2)
		assert.ErrorIs(t, err, boom)

		var appErr *temporal.ApplicationError
		assert.False(t, errors.As(err, &appErr))
	})

	t.Run("invalid range is not retryable", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		fetcher := mocks.NewMockEventFetcher(ctrl)
		executor := workflows.NewReplayExecutor(fetcher, mocks.NewMockPublisher(ctrl))

		fetcher.EXPECT().FetchEvents(ctx, uint64(9), uint64(2)).
			Return(nil, fmt.Errorf("%w: fromBlock 9 is after toBlock 2", domain.ErrInvalidInput))

		_, err := executor.ReplayChunk(ctx, 9, 2)
		var appErr *temporal.ApplicationError
		require.True(t, errors.As(err, &appErr))
		assert.True(t, appErr.NonRetryable())
		assert.Equal(t, workflows.ErrTypeInvalidRange, appErr.Type())
	})
}

func TestReplayExecutor_LatestBlock(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	ctx := context.Background()

	fetcher := mocks.NewMockEventFetcher(ctrl)
	executor := workflows.NewReplayExecutor(fetcher, mocks.NewMockPublisher(ctrl))

	fetcher.EXPECT().LatestBlock(ctx).Return(uint64(4242), nil)
	head, err := executor.LatestBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4242), head)

	fetcher.EXPECT().LatestBlock(ctx).Return(uint64(0), errors.New("rpc down"))
	_, err = executor.LatestBlock(ctx)
	assert.Error(t, err)
}
