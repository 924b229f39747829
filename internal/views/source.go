package views

import (
	"context"
	"fmt"

	"github.com/amplifrens/amplifrens-indexer/internal/domain"
)

// StateSource answers views from an in-process model of the contracts
type StateSource interface {
	// Status returns the tier of an address; ErrNoTokens when it holds no badge
	Status(address string) (domain.StatusTier, error)
	// MintingIntervalMet reports whether upkeep may mint
	MintingIntervalMet() bool
	// ProfileDetails returns the details of a live profile, false if there is none
	ProfileDetails(address string) (domain.ProfileDetails, bool)
}

type sourceReader struct {
	source StateSource
}

// NewSourceReader answers views from the current state of source.
// The block argument is ignored, so events must be applied as they are produced.
func NewSourceReader(source StateSource) Reader {
	return &sourceReader{source: source}
}

// GetStatus returns the tier reported by the source
func (r *sourceReader) GetStatus(_ context.Context, address string, _ uint64) (domain.StatusTier, error) {
	return r.source.Status(domain.NormalizeAddress(address))
}

// IsMintingIntervalMet returns the interval state reported by the source
func (r *sourceReader) IsMintingIntervalMet(_ context.Context, _ uint64) (bool, error) {
	return r.source.MintingIntervalMet(), nil
}

// GetProfile returns the profile details reported by the source
func (r *sourceReader) GetProfile(_ context.Context, address string, _ uint64) (*domain.ProfileDetails, error) {
	details, ok := r.source.ProfileDetails(domain.NormalizeAddress(address))
	if !ok {
		return nil, fmt.Errorf("%w: no profile for %s", domain.ErrViewReverted, address)
	}
	return &details, nil
}
