package ethereum

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amplifrens/amplifrens-indexer/internal/domain"
	"github.com/amplifrens/amplifrens-indexer/internal/mocks"
)

func newTestFetcher(t *testing.T) (EventFetcher, *mocks.MockEthereumClient) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockEthereumClient(ctrl)
	client.EXPECT().Chain().Return(domain.ChainHardhat)

	fetcher, err := NewEventFetcher(client, []string{testContract.Hex()})
	require.NoError(t, err)
	return fetcher, client
}

func TestEventFetcher_FetchEvents(t *testing.T) {
	ts := big.NewInt(1_665_000_000)

	t.Run("decodes in chain order and skips noise", func(t *testing.T) {
		fetcher, client := newTestFetcher(t)

		second := buildLog(t, "ContributionUpvoted", 5, 2,
			[]common.Hash{addressTopic(testAuthor), idTopic(1)}, ts)
		first := buildLog(t, "ContributionCreated", 5, 0,
			[]common.Hash{addressTopic(testAuthor), idTopic(1)},
			ts, uint8(domain.CategoryMisc), "title", "https://www.dummy.xyz")
		removed := buildLog(t, "ContributionUpvoted", 6, 0,
			[]common.Hash{addressTopic(testAuthor), idTopic(1)}, ts)
		removed.Removed = true
		unknown := types.Log{BlockNumber: 4, Topics: []common.Hash{common.HexToHash("0xbeef")}}

		client.EXPECT().FilterLogs(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
				assert.Equal(t, blockRange{4, 6}, rangeOf(q))
				assert.Equal(t, []common.Address{testContract}, q.Addresses)
				require.Len(t, q.Topics, 1)
				assert.Len(t, q.Topics[0], len(eventKinds))
				return []types.Log{second, removed, unknown, first}, nil
			})

		events, err := fetcher.FetchEvents(context.Background(), 4, 6)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, domain.EventContributionCreated, events[0].Kind())
		assert.Equal(t, domain.EventContributionUpvoted, events[1].Kind())
		assert.True(t, events[0].Meta().Before(events[1].Meta()))
	})

	t.Run("rejects an inverted range", func(t *testing.T) {
		fetcher, _ := newTestFetcher(t)

		_, err := fetcher.FetchEvents(context.Background(), 7, 6)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("wraps rpc failures", func(t *testing.T) {
		fetcher, client := newTestFetcher(t)
		boom := errors.New("rpc down")
		client.EXPECT().FilterLogs(gomock.Any(), gomock.Any()).Return(nil, boom)

		_, err := fetcher.FetchEvents(context.Background(), 1, 1)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("malformed known event fails", func(t *testing.T) {
		fetcher, client := newTestFetcher(t)
		bad := buildLog(t, "SBTMinted", 1, 0, []common.Hash{addressTopic(testAuthor), idTopic(1)}, ts)
		bad.Topics = bad.Topics[:2]
		client.EXPECT().FilterLogs(gomock.Any(), gomock.Any()).Return([]types.Log{bad}, nil)

		_, err := fetcher.FetchEvents(context.Background(), 1, 1)
		assert.Error(t, err)
	})
}

func TestEventFetcher_LatestBlock(t *testing.T) {
	fetcher, client := newTestFetcher(t)
	client.EXPECT().LatestBlock(gomock.Any()).Return(uint64(1337), nil)

	head, err := fetcher.LatestBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1337), head)
}

func TestNewEventFetcher_InvalidAddress(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockEthereumClient(ctrl)
	client.EXPECT().Chain().Return(domain.ChainHardhat)

	_, err := NewEventFetcher(client, []string{"not-an-address"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	client.EXPECT().Chain().Return(domain.ChainHardhat)
	_, err = NewEventFetcher(client, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
