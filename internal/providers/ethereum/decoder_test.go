package ethereum

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amplifrens/amplifrens-indexer/internal/domain"
)

var (
	testContract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	testAuthor   = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	testTxHash   = common.HexToHash("0x9c8b2276d490141ae159ef1adf6d1a4d9a4fe9b1e7bd0fb3dd7d43fd0b1f5c3a")
)

func addressTopic(a common.Address) common.Hash {
	return common.BytesToHash(a.Bytes())
}

func idTopic(id int64) common.Hash {
	return common.BigToHash(big.NewInt(id))
}

// buildLog encodes an AmpliFrens event the way the contracts emit it
func buildLog(t *testing.T, name string, block uint64, index uint, indexed []common.Hash, data ...interface{}) types.Log {
	t.Helper()

	parsed, err := ContractABI()
	require.NoError(t, err)
	ev, ok := parsed.Events[name]
	require.True(t, ok, name)

	packed, err := ev.Inputs.NonIndexed().Pack(data...)
	require.NoError(t, err)

	return types.Log{
		Address:     testContract,
		Topics:      append([]common.Hash{ev.ID}, indexed...),
		Data:        packed,
		BlockNumber: block,
		TxHash:      testTxHash,
		BlockHash:   common.BigToHash(new(big.Int).SetUint64(block)),
		Index:       index,
	}
}

func TestDecoder_Decode(t *testing.T) {
	decoder, err := NewDecoder(domain.ChainHardhat)
	require.NoError(t, err)

	author := domain.NormalizeAddress(testAuthor.Hex())
	ts := big.NewInt(1_665_000_000)

	t.Run("contribution created", func(t *testing.T) {
		vLog := buildLog(t, "ContributionCreated", 12, 3,
			[]common.Hash{addressTopic(testAuthor), idTopic(7)},
			ts, uint8(domain.CategoryMisc), "Stablecoins", "https://www.dummy.xyz")

		event, err := decoder.Decode(vLog)
		require.NoError(t, err)

		created, ok := event.(*domain.ContributionCreated)
		require.True(t, ok)
		assert.Equal(t, author, created.From)
		assert.Equal(t, uint64(7), created.ContributionID)
		assert.Equal(t, ts.Uint64(), created.Timestamp)
		assert.Equal(t, domain.CategoryMisc, created.Category)
		assert.Equal(t, "Stablecoins", created.Title)
		assert.Equal(t, "https://www.dummy.xyz", created.URL)

		meta := created.Meta()
		assert.Equal(t, domain.ChainHardhat, meta.Chain)
		assert.Equal(t, domain.NormalizeAddress(testContract.Hex()), meta.ContractAddress)
		assert.Equal(t, testTxHash.Hex(), meta.TxHash)
		assert.Equal(t, uint64(3), meta.LogIndex)
		assert.Equal(t, uint64(12), meta.BlockNumber)
	})

	t.Run("votes", func(t *testing.T) {
		up, err := decoder.Decode(buildLog(t, "ContributionUpvoted", 1, 0,
			[]common.Hash{addressTopic(testAuthor), idTopic(2)}, ts))
		require.NoError(t, err)
		assert.Equal(t, domain.EventContributionUpvoted, up.Kind())
		assert.Equal(t, uint64(2), up.(*domain.ContributionUpvoted).ContributionID)

		down, err := decoder.Decode(buildLog(t, "ContributionDownvoted", 1, 1,
			[]common.Hash{addressTopic(testAuthor), idTopic(2)}, ts))
		require.NoError(t, err)
		assert.Equal(t, domain.EventContributionDownvoted, down.Kind())
		assert.Equal(t, author, down.(*domain.ContributionDownvoted).From)
	})

	t.Run("profile blacklisted", func(t *testing.T) {
		event, err := decoder.Decode(buildLog(t, "ProfileBlacklisted", 4, 0,
			[]common.Hash{addressTopic(testAuthor)}, "Spam", ts))
		require.NoError(t, err)

		blacklisted, ok := event.(*domain.ProfileBlacklisted)
		require.True(t, ok)
		assert.Equal(t, author, blacklisted.Address)
		assert.Equal(t, "Spam", blacklisted.Reason)
		assert.Equal(t, ts.Uint64(), blacklisted.Timestamp)
	})

	t.Run("profile created", func(t *testing.T) {
		event, err := decoder.Decode(buildLog(t, "ProfileCreated", 4, 1,
			[]common.Hash{addressTopic(testAuthor)}, ts, "fren3"))
		require.NoError(t, err)

		created, ok := event.(*domain.ProfileCreated)
		require.True(t, ok)
		assert.Equal(t, author, created.Address)
		assert.Equal(t, "fren3", created.Username)
	})

	t.Run("sbt minted and best contribution", func(t *testing.T) {
		minted, err := decoder.Decode(buildLog(t, "SBTMinted", 9, 0,
			[]common.Hash{addressTopic(testAuthor), idTopic(1)}, ts))
		require.NoError(t, err)
		assert.Equal(t, uint64(1), minted.(*domain.SBTMinted).TokenID)
		assert.Equal(t, author, minted.(*domain.SBTMinted).Owner)

		best, err := decoder.Decode(buildLog(t, "SBTBestContribution", 9, 1,
			[]common.Hash{idTopic(2), addressTopic(testAuthor)},
			ts, uint8(domain.CategoryMisc), "Stablecoins", "https://www.dummy.xyz"))
		require.NoError(t, err)
		top, ok := best.(*domain.SBTBestContribution)
		require.True(t, ok)
		assert.Equal(t, uint64(2), top.TopContributionID)
		assert.Equal(t, author, top.From)
		assert.Equal(t, "Stablecoins", top.Title)
	})

	t.Run("unknown topic", func(t *testing.T) {
		vLog := types.Log{Topics: []common.Hash{common.HexToHash("0xdeadbeef")}}
		_, err := decoder.Decode(vLog)
		assert.ErrorIs(t, err, domain.ErrUnknownEvent)

		_, err = decoder.Decode(types.Log{})
		assert.ErrorIs(t, err, domain.ErrUnknownEvent)
	})

	t.Run("missing indexed topic", func(t *testing.T) {
		vLog := buildLog(t, "ContributionRemoved", 1, 0, []common.Hash{addressTopic(testAuthor)}, ts)
		_, err := decoder.Decode(vLog)
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrUnknownEvent)
	})

	t.Run("truncated data", func(t *testing.T) {
		vLog := buildLog(t, "ContributionUpvoted", 1, 0,
			[]common.Hash{addressTopic(testAuthor), idTopic(2)}, ts)
		vLog.Data = vLog.Data[:8]
		_, err := decoder.Decode(vLog)
		assert.Error(t, err)
	})
}

func TestEventTopics(t *testing.T) {
	topics, err := EventTopics()
	require.NoError(t, err)
	assert.Len(t, topics, 12)

	seen := make(map[common.Hash]bool)
	for _, topic := range topics {
		assert.False(t, seen[topic], topic.Hex())
		seen[topic] = true
	}
}
