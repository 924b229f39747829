package views_test

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amplifrens/amplifrens-indexer/internal/domain"
	"github.com/amplifrens/amplifrens-indexer/internal/mocks"
	"github.com/amplifrens/amplifrens-indexer/internal/views"
)

const limitedHolder = "0x70997970c51812dc3a010c7d01b50e0d17dc79c8"

func TestRateLimited_WaitsBeforeEveryCall(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	ctx := context.Background()

	limiter := mocks.NewMockLimiter(ctrl)
	next := mocks.NewMockViewReader(ctrl)
	reader := views.NewRateLimited(next, limiter)

	gomock.InOrder(
		limiter.EXPECT().Wait(ctx).Return(nil),
		next.EXPECT().GetStatus(ctx, limitedHolder, uint64(7)).Return(domain.TierDegen, nil),
		limiter.EXPECT().Wait(ctx).Return(nil),
		next.EXPECT().IsMintingIntervalMet(ctx, uint64(7)).Return(true, nil),
		limiter.EXPECT().Wait(ctx).Return(nil),
		next.EXPECT().GetProfile(ctx, limitedHolder, uint64(7)).Return(&domain.ProfileDetails{Username: "degen"}, nil),
	)

	tier, err := reader.GetStatus(ctx, limitedHolder, 7)
	require.NoError(t, err)
	assert.Equal(t, domain.TierDegen, tier)

	met, err := reader.IsMintingIntervalMet(ctx, 7)
	require.NoError(t, err)
	assert.True(t, met)

	details, err := reader.GetProfile(ctx, limitedHolder, 7)
	require.NoError(t, err)
	assert.Equal(t, "degen", details.Username)
}

func TestRateLimited_WaitFailureSkipsTheCall(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	limiter := mocks.NewMockLimiter(ctrl)
	next := mocks.NewMockViewReader(ctrl)
	reader := views.NewRateLimited(next, limiter)

	limiter.EXPECT().Wait(ctx).Return(context.Canceled).Times(3)

	_, err := reader.GetStatus(ctx, limitedHolder, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "getStatus")

	_, err = reader.IsMintingIntervalMet(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)

	details, err := reader.GetProfile(ctx, limitedHolder, 1)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Nil(t, details)
}
