package views

import (
	"context"

	"github.com/amplifrens/amplifrens-indexer/internal/domain"
)

// LatestBlock pins a view call to the chain head
const LatestBlock uint64 = 0

// Reader reads contract state that events do not carry.
// Every call is pinned to a block so replays observe the state as of the event.
//
//go:generate mockgen -source=views.go -destination=../mocks/view_reader.go -package=mocks -mock_names=Reader=MockViewReader
type Reader interface {
	// GetStatus returns the status tier of an address; ErrNoTokens when it holds no badge
	GetStatus(ctx context.Context, address string, block uint64) (domain.StatusTier, error)

	// IsMintingIntervalMet reports whether upkeep may mint
	IsMintingIntervalMet(ctx context.Context, block uint64) (bool, error)

	// GetProfile returns the profile details of an address; ErrViewReverted when it has none
	GetProfile(ctx context.Context, address string, block uint64) (*domain.ProfileDetails, error)
}
