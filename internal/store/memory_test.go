package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amplifrens/amplifrens-indexer/internal/domain"
)

// TestMemoryStore runs all store tests against the in-memory store
func TestMemoryStore(t *testing.T) {
	RunStoreTests(t,
		func(t *testing.T) Store { return NewMemoryStore() },
		func(t *testing.T) {},
	)
}

func TestMemoryStore_ReadsReturnCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.WithTx(ctx, func(tx Tx) error {
		return tx.CreateContribution(ctx, buildTestContribution(1, alice, 1))
	}))

	c, err := s.GetContribution(ctx, 1)
	require.NoError(t, err)
	c.Votes = 100

	again, err := s.GetContribution(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), again.Votes)
}

func TestMemoryStore_ConcurrentTransactions(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.WithTx(ctx, func(tx Tx) error {
		return tx.CreateContribution(ctx, buildTestContribution(1, alice, 1))
	}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithTx(ctx, func(tx Tx) error {
				c, err := tx.GetContribution(ctx, 1)
				if err != nil {
					return err
				}
				c.Votes++
				return tx.UpdateContribution(ctx, c)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	c, err := s.GetContribution(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(50), c.Votes)
	assert.Equal(t, domain.StatusLive, c.Status)
}

func TestMemoryStore_RollbackRestoresOverwrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	boom := errors.New("boom")

	require.NoError(t, s.WithTx(ctx, func(tx Tx) error {
		if err := tx.AppendEventLog(ctx, buildTestEventLog("0xaa", 0, 1, domain.EventContributionCreated, "1")); err != nil {
			return err
		}
		if err := tx.CreateContribution(ctx, buildTestContribution(1, alice, 1)); err != nil {
			return err
		}
		if err := tx.SaveProfile(ctx, &domain.Profile{Address: alice, Username: "alice", Status: domain.StatusLive}); err != nil {
			return err
		}
		return tx.SetCurrentDay(ctx, 3)
	}))

	err := s.WithTx(ctx, func(tx Tx) error {
		if err := tx.AppendEventLog(ctx, buildTestEventLog("0xbb", 0, 2, domain.EventContributionUpvoted, "1")); err != nil {
			return err
		}
		c := buildTestContribution(1, alice, 1)
		c.Votes = 42
		if err := tx.UpdateContribution(ctx, c); err != nil {
			return err
		}
		if err := tx.SaveProfile(ctx, &domain.Profile{Address: alice, Username: "alice", Status: domain.StatusDeleted}); err != nil {
			return err
		}
		if err := tx.SetCurrentDay(ctx, 4); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	c, err := s.GetContribution(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, int64(0), c.Votes)

	p, err := s.GetProfile(ctx, alice)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, domain.StatusLive, p.Status)

	day, err := s.GetCurrentDay(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), day)

	logs, err := s.ListEventLogs(ctx, EventLogFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "0xaa", logs[0].TxHash)

	ok, err := s.HasEventLog(ctx, "0xbb", 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_JournalsOnlyTouchedKeys(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for id := uint64(1); id <= 500; id++ {
		require.NoError(t, s.WithTx(ctx, func(tx Tx) error {
			return tx.CreateContribution(ctx, buildTestContribution(id, alice, 1))
		}))
	}

	require.NoError(t, s.WithTx(ctx, func(tx Tx) error {
		c := buildTestContribution(7, alice, 1)
		c.Votes = 1
		if err := tx.UpdateContribution(ctx, c); err != nil {
			return err
		}
		assert.Len(t, tx.(*memoryTx).undo, 1)
		return nil
	}))

	c, err := s.GetContribution(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Votes)
}
