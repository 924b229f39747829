package ethereum

import (
	"context"
	"errors"
	"math/big"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amplifrens/amplifrens-indexer/internal/domain"
	"github.com/amplifrens/amplifrens-indexer/internal/logger"
	"github.com/amplifrens/amplifrens-indexer/internal/mocks"
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: false}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type blockRange struct {
	from, to uint64
}

func rangeOf(q ethereum.FilterQuery) blockRange {
	return blockRange{from: q.FromBlock.Uint64(), to: q.ToBlock.Uint64()}
}

func newTestClient(t *testing.T, stepSize uint64) (*ethereumClient, *mocks.MockEthClient) {
	ctrl := gomock.NewController(t)
	eth := mocks.NewMockEthClient(ctrl)
	client := NewClient(domain.ChainHardhat, eth).(*ethereumClient)
	client.stepSize = stepSize
	return client, eth
}

func TestClient_FilterLogs(t *testing.T) {
	t.Run("pages the range", func(t *testing.T) {
		client, eth := newTestClient(t, 10)

		var calls []blockRange
		eth.EXPECT().FilterLogs(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
				calls = append(calls, rangeOf(q))
				return []types.Log{{BlockNumber: q.FromBlock.Uint64()}}, nil
			}).Times(3)

		logs, err := client.FilterLogs(context.Background(), ethereum.FilterQuery{
			FromBlock: big.NewInt(1),
			ToBlock:   big.NewInt(25),
		})
		require.NoError(t, err)
		assert.Len(t, logs, 3)
		assert.Equal(t, []blockRange{{1, 10}, {11, 20}, {21, 25}}, calls)
	})

	t.Run("halves the step on too many results", func(t *testing.T) {
		client, eth := newTestClient(t, 10)

		var calls []blockRange
		eth.EXPECT().FilterLogs(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
				r := rangeOf(q)
				calls = append(calls, r)
				if r.to-r.from+1 > 5 {
					return nil, errors.New("query returned more than 10000 results")
				}
				return nil, nil
			}).AnyTimes()

		_, err := client.FilterLogs(context.Background(), ethereum.FilterQuery{
			FromBlock: big.NewInt(1),
			ToBlock:   big.NewInt(20),
		})
		require.NoError(t, err)
		assert.Equal(t, []blockRange{{1, 10}, {1, 5}, {6, 10}, {11, 15}, {16, 20}}, calls)
	})

	t.Run("gives up on a single block", func(t *testing.T) {
		client, eth := newTestClient(t, 2)

		eth.EXPECT().FilterLogs(gomock.Any(), gomock.Any()).
			Return(nil, errors.New("too many results")).Times(2)

		_, err := client.FilterLogs(context.Background(), ethereum.FilterQuery{
			FromBlock: big.NewInt(5),
			ToBlock:   big.NewInt(9),
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "single block 5")
	})

	t.Run("other errors are returned as is", func(t *testing.T) {
		client, eth := newTestClient(t, 10)
		boom := errors.New("connection reset")

		eth.EXPECT().FilterLogs(gomock.Any(), gomock.Any()).Return(nil, boom)

		_, err := client.FilterLogs(context.Background(), ethereum.FilterQuery{
			FromBlock: big.NewInt(1),
			ToBlock:   big.NewInt(3),
		})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("open range resolves the head", func(t *testing.T) {
		client, eth := newTestClient(t, 100)

		eth.EXPECT().HeaderByNumber(gomock.Any(), gomock.Nil()).
			Return(&types.Header{Number: big.NewInt(42)}, nil)
		eth.EXPECT().FilterLogs(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
				assert.Equal(t, blockRange{0, 42}, rangeOf(q))
				return nil, nil
			})

		_, err := client.FilterLogs(context.Background(), ethereum.FilterQuery{})
		require.NoError(t, err)
	})

	t.Run("empty range", func(t *testing.T) {
		client, _ := newTestClient(t, 10)

		logs, err := client.FilterLogs(context.Background(), ethereum.FilterQuery{
			FromBlock: big.NewInt(10),
			ToBlock:   big.NewInt(9),
		})
		require.NoError(t, err)
		assert.Empty(t, logs)
	})

	t.Run("block hash query is not paged", func(t *testing.T) {
		client, eth := newTestClient(t, 10)
		hash := common.HexToHash("0x01")

		eth.EXPECT().FilterLogs(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
				assert.Equal(t, &hash, q.BlockHash)
				assert.Nil(t, q.FromBlock)
				return []types.Log{{}}, nil
			})

		logs, err := client.FilterLogs(context.Background(), ethereum.FilterQuery{BlockHash: &hash})
		require.NoError(t, err)
		assert.Len(t, logs, 1)
	})
}

func TestClient_FilterLogs_GrowsStepBack(t *testing.T) {
	client, eth := newTestClient(t, 4)

	var calls []blockRange
	eth.EXPECT().FilterLogs(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
			r := rangeOf(q)
			calls = append(calls, r)
			// Only the first page is too dense
			if r.from == 1 && r.to-r.from+1 > 2 {
				return nil, errors.New("Log response size exceeded")
			}
			return nil, nil
		}).AnyTimes()

	_, err := client.FilterLogs(context.Background(), ethereum.FilterQuery{
		FromBlock: big.NewInt(1),
		ToBlock:   big.NewInt(24),
	})
	require.NoError(t, err)

	// Eight accepted pages of two blocks, then back to four
	require.Len(t, calls, 11)
	assert.Equal(t, blockRange{1, 4}, calls[0])
	assert.Equal(t, blockRange{1, 2}, calls[1])
	assert.Equal(t, blockRange{15, 16}, calls[8])
	assert.Equal(t, blockRange{17, 20}, calls[9])
	assert.Equal(t, blockRange{21, 24}, calls[10])
}

func TestClient_LatestBlock(t *testing.T) {
	client, eth := newTestClient(t, 10)

	eth.EXPECT().HeaderByNumber(gomock.Any(), gomock.Nil()).
		Return(&types.Header{Number: big.NewInt(51_000_000)}, nil)
	head, err := client.LatestBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(51_000_000), head)

	boom := errors.New("rpc unavailable")
	eth.EXPECT().HeaderByNumber(gomock.Any(), gomock.Nil()).Return(nil, boom)
	_, err = client.LatestBlock(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestIsTooManyResultsError(t *testing.T) {
	assert.False(t, isTooManyResultsError(nil))
	assert.False(t, isTooManyResultsError(errors.New("execution reverted")))
	assert.True(t, isTooManyResultsError(errors.New("query returned more than 10000 results")))
	assert.True(t, isTooManyResultsError(errors.New("block range is too large")))
	assert.True(t, isTooManyResultsError(errors.New("exceeded maximum block range")))
	assert.True(t, isTooManyResultsError(errors.New("Log response size exceeded")))
}
