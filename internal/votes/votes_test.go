package votes

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amplifrens/amplifrens-indexer/internal/domain"
)

const (
	author = "0x1111111111111111111111111111111111111111"
	voter  = "0x2222222222222222222222222222222222222222"
)

func TestTransit(t *testing.T) {
	tests := []struct {
		name          string
		current       Standing
		polarity      domain.Polarity
		wantSupersede bool
		wantDelta     int64
	}{
		{"first upvote", Standing{}, domain.PolarityUp, false, 1},
		{"first downvote", Standing{}, domain.PolarityDown, false, -1},
		{"flip to down", Standing{Up: true}, domain.PolarityDown, true, -1},
		{"flip to up", Standing{Down: true}, domain.PolarityUp, true, 1},
		{"repeat up is not a flip", Standing{Up: true}, domain.PolarityUp, false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Transit(tt.current, tt.polarity)
			assert.Equal(t, tt.wantSupersede, got.Supersede)
			assert.Equal(t, tt.wantDelta, got.Delta)

			superseded, ok := got.Superseded()
			assert.Equal(t, tt.wantSupersede, ok)
			if ok {
				assert.Equal(t, tt.polarity.Opposite(), superseded)
			}
		})
	}
}

func TestLedger_Cast(t *testing.T) {
	t.Run("self vote is unauthorized", func(t *testing.T) {
		l := NewLedger()
		_, err := l.Cast(1, author, author, domain.PolarityUp)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrUnauthorized))

		_, err = l.Cast(1, "0x1111111111111111111111111111111111111111", author, domain.PolarityDown)
		assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	})

	t.Run("same polarity twice is already voted", func(t *testing.T) {
		l := NewLedger()
		_, err := l.Cast(1, voter, author, domain.PolarityUp)
		require.NoError(t, err)

		_, err = l.Cast(1, voter, author, domain.PolarityUp)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrAlreadyVoted))
	})

	t.Run("flip supersedes and moves by one", func(t *testing.T) {
		l := NewLedger()
		first, err := l.Cast(1, voter, author, domain.PolarityUp)
		require.NoError(t, err)
		assert.Equal(t, int64(1), first.Delta)

		flip, err := l.Cast(1, voter, author, domain.PolarityDown)
		require.NoError(t, err)
		assert.Equal(t, int64(-1), flip.Delta)
		assert.True(t, flip.Supersede)

		standing := l.Standing(1, voter)
		assert.False(t, standing.Up)
		assert.True(t, standing.Down)

		_, err = l.Cast(1, voter, author, domain.PolarityDown)
		assert.True(t, errors.Is(err, domain.ErrAlreadyVoted))

		back, err := l.Cast(1, voter, author, domain.PolarityUp)
		require.NoError(t, err)
		assert.True(t, back.Supersede)
	})

	t.Run("never both live", func(t *testing.T) {
		l := NewLedger()
		sequence := []domain.Polarity{
			domain.PolarityUp, domain.PolarityDown, domain.PolarityDown,
			domain.PolarityUp, domain.PolarityUp, domain.PolarityDown,
		}
		for _, p := range sequence {
			_, _ = l.Cast(7, voter, author, p)
			s := l.Standing(7, voter)
			assert.False(t, s.Up && s.Down)
		}
	})

	t.Run("votes are per contribution", func(t *testing.T) {
		l := NewLedger()
		_, err := l.Cast(1, voter, author, domain.PolarityUp)
		require.NoError(t, err)
		_, err = l.Cast(2, voter, author, domain.PolarityUp)
		require.NoError(t, err)
	})

	t.Run("invalid polarity", func(t *testing.T) {
		l := NewLedger()
		_, err := l.Cast(1, voter, author, domain.Polarity("sideways"))
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})
}

func TestLedger_NetVotes(t *testing.T) {
	l := NewLedger()
	var votes int64
	for i := 0; i < 10; i++ {
		v := fmt.Sprintf("0x%040x", i+100)
		tr, err := l.Cast(1, v, author, domain.PolarityUp)
		require.NoError(t, err)
		votes += tr.Delta
	}
	assert.Equal(t, int64(10), votes)

	// a previous upvoter flipping only moves the count by one
	tr, err := l.Cast(1, fmt.Sprintf("0x%040x", 100), author, domain.PolarityDown)
	require.NoError(t, err)
	votes += tr.Delta
	assert.Equal(t, int64(9), votes)
}

func TestLedger_Forget(t *testing.T) {
	l := NewLedger()
	_, err := l.Cast(1, voter, author, domain.PolarityUp)
	require.NoError(t, err)
	_, err = l.Cast(11, voter, author, domain.PolarityUp)
	require.NoError(t, err)

	l.Forget(1)

	assert.Equal(t, Standing{}, l.Standing(1, voter))
	assert.True(t, l.Standing(11, voter).Up)
}
