package platform_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amplifrens/amplifrens-indexer/internal/domain"
)

func TestEventLog_Blocks(t *testing.T) {
	tp := setupTestPlatform(t)
	ctx := context.Background()

	head, err := tp.Log().GetLatestBlock(ctx)
	require.NoError(t, err)
	assert.Zero(t, head)

	tp.contribute(t, tp.accounts[2])
	tp.contribute(t, tp.accounts[3])
	_, err = tp.CreateContribution(tp.accounts[4], domain.Category(99), "title", "https://www.dummy.xyz")
	require.Error(t, err)
	tp.contribute(t, tp.accounts[4])

	head, err = tp.Log().GetLatestBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), head)

	events := tp.Log().Events(0)
	require.Len(t, events, 3)
	keys := map[string]bool{}
	for i, e := range events {
		meta := e.Meta()
		assert.Equal(t, uint64(i+1), meta.BlockNumber)
		assert.Equal(t, domain.ChainHardhat, meta.Chain)
		assert.NotEmpty(t, meta.TxHash)
		keys[meta.LogKey()] = true
		if i > 0 {
			assert.True(t, events[i-1].Meta().Before(meta))
		}
	}
	assert.Len(t, keys, 3)

	assert.Len(t, tp.Log().Events(2), 2)
	assert.Empty(t, tp.Log().Events(4))
}

func TestEventLog_SubscribeEvents(t *testing.T) {
	tp := setupTestPlatform(t)
	tp.contribute(t, tp.accounts[2])
	tp.contribute(t, tp.accounts[3])

	t.Run("delivers the backlog from a block and follows new blocks", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		received := make(chan domain.Event, 10)
		done := make(chan error, 1)
		go func() {
			done <- tp.Log().SubscribeEvents(ctx, 2, func(e domain.Event) error {
				received <- e
				return nil
			})
		}()

		first := <-received
		assert.Equal(t, uint64(2), first.Meta().BlockNumber)

		tp.contribute(t, tp.accounts[4])
		next := <-received
		assert.Equal(t, uint64(3), next.Meta().BlockNumber)

		cancel()
		assert.ErrorIs(t, <-done, context.Canceled)
	})

	t.Run("handler error stops the subscription", func(t *testing.T) {
		boom := errors.New("boom")
		err := tp.Log().SubscribeEvents(context.Background(), 0, func(domain.Event) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("close ends every subscription", func(t *testing.T) {
		done := make(chan error, 1)
		go func() {
			done <- tp.Log().SubscribeEvents(context.Background(), 100, func(domain.Event) error {
				return nil
			})
		}()

		tp.Log().Close()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("subscription did not stop")
		}
	})
}
