package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amplifrens/amplifrens-indexer/internal/domain"
)

const (
	alice = "0x1111111111111111111111111111111111111111"
	bob   = "0x2222222222222222222222222222222222222222"
	carol = "0x3333333333333333333333333333333333333333"
)

// =============================================================================
// Test Data Builders
// =============================================================================

func buildTestContribution(id uint64, author string, day uint64) *domain.Contribution {
	return &domain.Contribution{
		ID:         id,
		Author:     author,
		Status:     domain.StatusLive,
		Category:   domain.CategoryDeFi,
		Title:      "title",
		URL:        "https://example.com/post",
		Timestamp:  1_700_000_000 + id,
		DayCounter: day,
	}
}

func buildTestEventLog(txHash string, logIndex, block uint64, kind domain.EventKind, key string) *domain.EventLog {
	return &domain.EventLog{
		TxHash:          txHash,
		LogIndex:        logIndex,
		BlockNumber:     block,
		ContractAddress: "0x9999999999999999999999999999999999999999",
		Kind:            kind,
		NaturalKey:      key,
		Payload:         []byte(`{"kind":"` + string(kind) + `"}`),
	}
}

func dayPtr(d uint64) *uint64 {
	return &d
}

func categoryPtr(c domain.Category) *domain.Category {
	return &c
}

// =============================================================================
// Tests
// =============================================================================

func testContributions(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		err := store.WithTx(ctx, func(tx Tx) error {
			return tx.CreateContribution(ctx, buildTestContribution(1, "0xAbCdEf0000000000000000000000000000000001", 1))
		})
		require.NoError(t, err)

		c, err := store.GetContribution(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, c)
		assert.Equal(t, "0xabcdef0000000000000000000000000000000001", c.Author)
		assert.Equal(t, domain.StatusLive, c.Status)
		assert.Equal(t, domain.CategoryDeFi, c.Category)
		assert.Equal(t, uint64(1), c.DayCounter)
	})

	t.Run("get missing returns nil", func(t *testing.T) {
		c, err := store.GetContribution(ctx, 404)
		require.NoError(t, err)
		assert.Nil(t, c)
	})

	t.Run("create duplicate fails", func(t *testing.T) {
		err := store.WithTx(ctx, func(tx Tx) error {
			return tx.CreateContribution(ctx, buildTestContribution(1, alice, 1))
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrDuplicateEntity))
	})

	t.Run("update existing", func(t *testing.T) {
		err := store.WithTx(ctx, func(tx Tx) error {
			c, err := tx.GetContribution(ctx, 1)
			if err != nil {
				return err
			}
			c.Votes = 7
			c.Title = "edited"
			c.BestContribution = true
			return tx.UpdateContribution(ctx, c)
		})
		require.NoError(t, err)

		c, err := store.GetContribution(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(7), c.Votes)
		assert.Equal(t, "edited", c.Title)
		assert.True(t, c.BestContribution)
	})

	t.Run("update missing fails with out of bounds", func(t *testing.T) {
		err := store.WithTx(ctx, func(tx Tx) error {
			return tx.UpdateContribution(ctx, buildTestContribution(99, alice, 1))
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrOutOfBounds))
	})

	t.Run("negative votes round trip", func(t *testing.T) {
		err := store.WithTx(ctx, func(tx Tx) error {
			c := buildTestContribution(2, bob, 1)
			c.Votes = -3
			return tx.CreateContribution(ctx, c)
		})
		require.NoError(t, err)

		c, err := store.GetContribution(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(-3), c.Votes)
	})
}

func testListContributions(t *testing.T, store Store) {
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx Tx) error {
		for id := uint64(1); id <= 6; id++ {
			author := alice
			if id%2 == 0 {
				author = bob
			}
			day := uint64(1)
			if id > 3 {
				day = 2
			}
			c := buildTestContribution(id, author, day)
			if id == 5 {
				c.Category = domain.CategoryNFT
			}
			if id == 6 {
				c.Status = domain.StatusRemoved
			}
			if err := tx.CreateContribution(ctx, c); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	ids := func(cs []domain.Contribution) []uint64 {
		out := make([]uint64, 0, len(cs))
		for _, c := range cs {
			out = append(out, c.ID)
		}
		return out
	}

	t.Run("live only by default", func(t *testing.T) {
		cs, err := store.ListContributions(ctx, ContributionFilter{})
		require.NoError(t, err)
		assert.Equal(t, []uint64{1, 2, 3, 4, 5}, ids(cs))
	})

	t.Run("include removed", func(t *testing.T) {
		cs, err := store.ListContributions(ctx, ContributionFilter{IncludeRemoved: true})
		require.NoError(t, err)
		assert.Equal(t, []uint64{1, 2, 3, 4, 5, 6}, ids(cs))
	})

	t.Run("by day", func(t *testing.T) {
		cs, err := store.ListContributions(ctx, ContributionFilter{Day: dayPtr(2)})
		require.NoError(t, err)
		assert.Equal(t, []uint64{4, 5}, ids(cs))
	})

	t.Run("by author excludes tombstones", func(t *testing.T) {
		cs, err := store.ListContributions(ctx, ContributionFilter{Author: bob, IncludeRemoved: true})
		require.NoError(t, err)
		assert.Equal(t, []uint64{2, 4}, ids(cs))
	})

	t.Run("by category", func(t *testing.T) {
		cs, err := store.ListContributions(ctx, ContributionFilter{Category: categoryPtr(domain.CategoryNFT)})
		require.NoError(t, err)
		assert.Equal(t, []uint64{5}, ids(cs))
	})

	t.Run("pagination", func(t *testing.T) {
		cs, err := store.ListContributions(ctx, ContributionFilter{Limit: 2, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, []uint64{2, 3}, ids(cs))
	})
}

func testProfiles(t *testing.T, store Store) {
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx Tx) error {
		if err := tx.SaveProfile(ctx, &domain.Profile{
			Address:       alice,
			Status:        domain.StatusLive,
			Username:      "alice",
			TwitterHandle: "@alice",
			Timestamp:     10,
		}); err != nil {
			return err
		}
		return tx.SaveProfile(ctx, &domain.Profile{
			Address:   bob,
			Status:    domain.StatusDeleted,
			Username:  "bob",
			Timestamp: 11,
		})
	})
	require.NoError(t, err)

	t.Run("get by mixed case address", func(t *testing.T) {
		p, err := store.GetProfile(ctx, "0x1111111111111111111111111111111111111111")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "alice", p.Username)
		assert.Equal(t, "@alice", p.TwitterHandle)
	})

	t.Run("tombstone is still readable", func(t *testing.T) {
		p, err := store.GetProfile(ctx, bob)
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, domain.StatusDeleted, p.Status)
		assert.Equal(t, domain.DeadAddress, p.Owner())
	})

	t.Run("find live by field", func(t *testing.T) {
		p, err := store.FindProfile(ctx, ProfileFieldTwitterHandle, "@alice")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, alice, p.Address)
	})

	t.Run("find skips tombstones", func(t *testing.T) {
		p, err := store.FindProfile(ctx, ProfileFieldUsername, "bob")
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("find rejects unknown field", func(t *testing.T) {
		_, err := store.FindProfile(ctx, ProfileField("password"), "x")
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	t.Run("upsert overwrites", func(t *testing.T) {
		err := store.WithTx(ctx, func(tx Tx) error {
			return tx.SaveProfile(ctx, &domain.Profile{
				Address:   alice,
				Status:    domain.StatusLive,
				Username:  "alice2",
				Timestamp: 12,
			})
		})
		require.NoError(t, err)

		p, err := store.GetProfile(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, "alice2", p.Username)
		assert.Equal(t, "", p.TwitterHandle)
		assert.Equal(t, uint64(12), p.Timestamp)
	})
}

func testVotes(t *testing.T, store Store) {
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx Tx) error {
		if err := tx.SaveVote(ctx, &domain.VoteRecord{
			ContributionID: 1, Voter: bob, Polarity: domain.PolarityUp, Status: domain.StatusLive, Timestamp: 1,
		}); err != nil {
			return err
		}
		return tx.SaveVote(ctx, &domain.VoteRecord{
			ContributionID: 1, Voter: alice, Polarity: domain.PolarityDown, Status: domain.StatusLive, Timestamp: 2,
		})
	})
	require.NoError(t, err)

	t.Run("get by polarity", func(t *testing.T) {
		v, err := store.GetVote(ctx, 1, bob, domain.PolarityUp)
		require.NoError(t, err)
		require.NotNil(t, v)
		assert.True(t, v.IsLive())

		v, err = store.GetVote(ctx, 1, bob, domain.PolarityDown)
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("supersede keeps the row", func(t *testing.T) {
		err := store.WithTx(ctx, func(tx Tx) error {
			return tx.SaveVote(ctx, &domain.VoteRecord{
				ContributionID: 1, Voter: bob, Polarity: domain.PolarityUp, Status: domain.StatusSuperseded, Timestamp: 3,
			})
		})
		require.NoError(t, err)

		v, err := store.GetVote(ctx, 1, bob, domain.PolarityUp)
		require.NoError(t, err)
		require.NotNil(t, v)
		assert.Equal(t, domain.StatusSuperseded, v.Status)
		assert.Equal(t, domain.DeadAddress, v.From())
		assert.Equal(t, uint64(3), v.Timestamp)
	})

	t.Run("list orders up before down", func(t *testing.T) {
		votes, err := store.ListVotes(ctx, 1)
		require.NoError(t, err)
		require.Len(t, votes, 2)
		assert.Equal(t, domain.PolarityUp, votes[0].Polarity)
		assert.Equal(t, domain.PolarityDown, votes[1].Polarity)
	})
}

func testLeaderboard(t *testing.T, store Store) {
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx Tx) error {
		entries := []domain.LeaderboardEntry{
			{Address: carol, Username: "carol", TopContributionsCount: 2},
			{Address: alice, Username: "alice", TopContributionsCount: 5},
			{Address: bob, Username: "bob", TopContributionsCount: 2},
		}
		for i := range entries {
			if err := tx.SaveLeaderboardEntry(ctx, &entries[i]); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	t.Run("ordered by count then address", func(t *testing.T) {
		entries, err := store.ListLeaderboard(ctx, 10, 0)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, alice, entries[0].Address)
		assert.Equal(t, bob, entries[1].Address)
		assert.Equal(t, carol, entries[2].Address)
	})

	t.Run("increment", func(t *testing.T) {
		err := store.WithTx(ctx, func(tx Tx) error {
			e, err := tx.GetLeaderboardEntry(ctx, carol)
			if err != nil {
				return err
			}
			e.TopContributionsCount++
			return tx.SaveLeaderboardEntry(ctx, e)
		})
		require.NoError(t, err)

		e, err := store.GetLeaderboardEntry(ctx, carol)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), e.TopContributionsCount)
	})

	t.Run("missing entry", func(t *testing.T) {
		e, err := store.GetLeaderboardEntry(ctx, "0x4444444444444444444444444444444444444444")
		require.NoError(t, err)
		assert.Nil(t, e)
	})
}

func testAddressStatus(t *testing.T, store Store) {
	ctx := context.Background()

	s, err := store.GetAddressStatus(ctx, alice)
	require.NoError(t, err)
	assert.Nil(t, s)

	err = store.WithTx(ctx, func(tx Tx) error {
		if err := tx.SaveAddressStatus(ctx, &domain.AddressStatus{Address: alice, Tier: domain.TierForBalance(5)}); err != nil {
			return err
		}
		return tx.SaveAddressStatus(ctx, &domain.AddressStatus{Address: alice, Tier: domain.TierForBalance(15)})
	})
	require.NoError(t, err)

	s, err = store.GetAddressStatus(ctx, alice)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, domain.TierForBalance(15), s.Tier)
}

func testCurrentDay(t *testing.T, store Store) {
	ctx := context.Background()

	day, err := store.GetCurrentDay(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.FirstDay, day)

	err = store.WithTx(ctx, func(tx Tx) error {
		return tx.SetCurrentDay(ctx, 4)
	})
	require.NoError(t, err)

	day, err = store.GetCurrentDay(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), day)
}

func testEventLogs(t *testing.T, store Store) {
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx Tx) error {
		logs := []*domain.EventLog{
			buildTestEventLog("0xbb", 0, 20, domain.EventContributionUpvoted, "1-"+bob),
			buildTestEventLog("0xaa", 3, 10, domain.EventContributionCreated, "1"),
			buildTestEventLog("0xaa", 1, 10, domain.EventProfileCreated, alice),
		}
		for _, l := range logs {
			if err := tx.AppendEventLog(ctx, l); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	t.Run("has event log", func(t *testing.T) {
		ok, err := store.HasEventLog(ctx, "0xaa", 3)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.HasEventLog(ctx, "0xaa", 2)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("duplicate append fails", func(t *testing.T) {
		err := store.WithTx(ctx, func(tx Tx) error {
			return tx.AppendEventLog(ctx, buildTestEventLog("0xaa", 3, 10, domain.EventContributionCreated, "1"))
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrDuplicateEntity))
	})

	t.Run("listed in chain order", func(t *testing.T) {
		logs, err := store.ListEventLogs(ctx, EventLogFilter{})
		require.NoError(t, err)
		require.Len(t, logs, 3)
		assert.Equal(t, uint64(1), logs[0].LogIndex)
		assert.Equal(t, uint64(3), logs[1].LogIndex)
		assert.Equal(t, "0xbb", logs[2].TxHash)
		assert.JSONEq(t, `{"kind":"profile_created"}`, string(logs[0].Payload))
	})

	t.Run("filter by kind and key", func(t *testing.T) {
		logs, err := store.ListEventLogs(ctx, EventLogFilter{Kind: domain.EventContributionCreated, NaturalKey: "1"})
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, uint64(10), logs[0].BlockNumber)
	})
}

func testWithTxRollback(t *testing.T, store Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx Tx) error {
		if err := tx.AppendEventLog(ctx, buildTestEventLog("0xcc", 0, 1, domain.EventContributionCreated, "1")); err != nil {
			return err
		}
		if err := tx.CreateContribution(ctx, buildTestContribution(1, alice, 1)); err != nil {
			return err
		}
		if err := tx.SetCurrentDay(ctx, 9); err != nil {
			return err
		}

		// writes are visible inside the transaction
		c, err := tx.GetContribution(ctx, 1)
		if err != nil {
			return err
		}
		if c == nil {
			return errors.New("contribution not visible inside tx")
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	c, err := store.GetContribution(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, c)

	ok, err := store.HasEventLog(ctx, "0xcc", 0)
	require.NoError(t, err)
	assert.False(t, ok)

	day, err := store.GetCurrentDay(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.FirstDay, day)
}

func testBlockCursor(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("get non-existent cursor returns 0", func(t *testing.T) {
		cursor, err := store.GetBlockCursor(ctx, "test_chain_nonexistent")
		require.NoError(t, err)
		assert.Equal(t, uint64(0), cursor)
	})

	t.Run("set and get cursor", func(t *testing.T) {
		chain := string(domain.ChainHardhat)

		err := store.SetBlockCursor(ctx, chain, 12345)
		require.NoError(t, err)

		cursor, err := store.GetBlockCursor(ctx, chain)
		require.NoError(t, err)
		assert.Equal(t, uint64(12345), cursor)
	})

	t.Run("update existing cursor", func(t *testing.T) {
		chain := string(domain.ChainPolygonMumbai)

		require.NoError(t, store.SetBlockCursor(ctx, chain, 100))
		require.NoError(t, store.SetBlockCursor(ctx, chain, 200))

		cursor, err := store.GetBlockCursor(ctx, chain)
		require.NoError(t, err)
		assert.Equal(t, uint64(200), cursor)
	})
}

// RunStoreTests runs the shared suite against a Store implementation
func RunStoreTests(t *testing.T, initDB func(t *testing.T) Store, cleanupDB func(t *testing.T)) {
	tests := []struct {
		name string
		fn   func(*testing.T, Store)
	}{
		{"Contributions", testContributions},
		{"ListContributions", testListContributions},
		{"Profiles", testProfiles},
		{"Votes", testVotes},
		{"Leaderboard", testLeaderboard},
		{"AddressStatus", testAddressStatus},
		{"CurrentDay", testCurrentDay},
		{"EventLogs", testEventLogs},
		{"WithTxRollback", testWithTxRollback},
		{"BlockCursor", testBlockCursor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := initDB(t)
			defer cleanupDB(t)
			tt.fn(t, store)
		})
	}
}
