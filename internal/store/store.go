package store

import (
	"context"

	"github.com/amplifrens/amplifrens-indexer/internal/domain"
)

// ProfileField names a profile attribute usable for lookups
type ProfileField string

const (
	ProfileFieldUsername      ProfileField = "username"
	ProfileFieldLensHandle    ProfileField = "lens_handle"
	ProfileFieldDiscordHandle ProfileField = "discord_handle"
	ProfileFieldTwitterHandle ProfileField = "twitter_handle"
	ProfileFieldEmail         ProfileField = "email"
)

// IsValidProfileField checks the field is a supported lookup column
func IsValidProfileField(field ProfileField) bool {
	switch field {
	case ProfileFieldUsername, ProfileFieldLensHandle, ProfileFieldDiscordHandle,
		ProfileFieldTwitterHandle, ProfileFieldEmail:
		return true
	}
	return false
}

// ContributionFilter narrows ListContributions
type ContributionFilter struct {
	// Day restricts to one day bucket
	Day *uint64
	// Author restricts to live contributions attributed to the address
	Author string
	// Category restricts to one category
	Category *domain.Category
	// IncludeRemoved also returns tombstoned contributions
	IncludeRemoved bool
	Limit          int
	Offset         int
}

// EventLogFilter narrows ListEventLogs
type EventLogFilter struct {
	Kind       domain.EventKind
	NaturalKey string
	Limit      int
	Offset     int
}

// Reader is the read side of the entity store.
// Single-entity getters return nil, nil when the entity does not exist.
type Reader interface {
	// GetContribution retrieves a contribution by id
	GetContribution(ctx context.Context, id uint64) (*domain.Contribution, error)
	// ListContributions lists contributions ordered by id
	ListContributions(ctx context.Context, filter ContributionFilter) ([]domain.Contribution, error)

	// GetProfile retrieves a profile by address, tombstoned or not
	GetProfile(ctx context.Context, address string) (*domain.Profile, error)
	// FindProfile retrieves the live profile whose field equals value
	FindProfile(ctx context.Context, field ProfileField, value string) (*domain.Profile, error)

	// GetVote retrieves the vote record of a voter with a given polarity
	GetVote(ctx context.Context, contributionID uint64, voter string, polarity domain.Polarity) (*domain.VoteRecord, error)
	// ListVotes lists all vote records of a contribution
	ListVotes(ctx context.Context, contributionID uint64) ([]domain.VoteRecord, error)

	// GetLeaderboardEntry retrieves the leaderboard entry of an address
	GetLeaderboardEntry(ctx context.Context, address string) (*domain.LeaderboardEntry, error)
	// ListLeaderboard lists entries by count descending then address
	ListLeaderboard(ctx context.Context, limit, offset int) ([]domain.LeaderboardEntry, error)

	// GetAddressStatus retrieves the last known status tier of an address
	GetAddressStatus(ctx context.Context, address string) (*domain.AddressStatus, error)

	// GetCurrentDay returns the day bucket new contributions are assigned to
	GetCurrentDay(ctx context.Context) (uint64, error)

	// HasEventLog reports whether the event at (txHash, logIndex) was already applied
	HasEventLog(ctx context.Context, txHash string, logIndex uint64) (bool, error)
	// ListEventLogs lists raw event logs in chain order
	ListEventLogs(ctx context.Context, filter EventLogFilter) ([]domain.EventLog, error)
}

// Tx is a unit of work whose writes become visible together or not at all
type Tx interface {
	Reader

	// AppendEventLog appends a raw event log; ErrDuplicateEntity if (txHash, logIndex) exists
	AppendEventLog(ctx context.Context, log *domain.EventLog) error
	// CreateContribution inserts a contribution; ErrDuplicateEntity if the id exists
	CreateContribution(ctx context.Context, contribution *domain.Contribution) error
	// UpdateContribution overwrites a contribution; ErrOutOfBounds if the id does not exist
	UpdateContribution(ctx context.Context, contribution *domain.Contribution) error
	// SaveProfile upserts a profile
	SaveProfile(ctx context.Context, profile *domain.Profile) error
	// SaveVote upserts a vote record
	SaveVote(ctx context.Context, vote *domain.VoteRecord) error
	// SaveLeaderboardEntry upserts a leaderboard entry
	SaveLeaderboardEntry(ctx context.Context, entry *domain.LeaderboardEntry) error
	// SaveAddressStatus upserts a status tier
	SaveAddressStatus(ctx context.Context, status *domain.AddressStatus) error
	// SetCurrentDay stores the current day bucket
	SetCurrentDay(ctx context.Context, day uint64) error
}

// Store defines the interface for the entity store
type Store interface {
	Reader
	CursorStore

	// WithTx runs fn in a transaction; any error from fn discards all of its writes
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

const (
	defaultListLimit = 100
	MaxListLimit     = 1000
	currentDayKey    = "current_day"
)

// normalizeLimit applies the default and maximum page size
func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
