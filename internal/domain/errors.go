package domain

import "errors"

var (
	// ErrOutOfBounds is returned when a contribution, profile or token id does not exist
	ErrOutOfBounds = errors.New("out of bounds")

	// ErrUnauthorized is returned when the caller lacks the role or ownership required
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAlreadyVoted is returned when a voter casts the same polarity twice
	ErrAlreadyVoted = errors.New("already voted")

	// ErrMintingIntervalNotMet is returned when upkeep runs during cooldown
	ErrMintingIntervalNotMet = errors.New("interval target for minting is not met yet")

	// ErrPaused is returned by every mutating call while administratively paused
	ErrPaused = errors.New("paused")

	// ErrNoTokens is returned by status lookups for an address without badges
	ErrNoTokens = errors.New("the address has 0 tokens")

	// ErrInvalidCategory is returned for a category outside 0..7
	ErrInvalidCategory = errors.New("invalid category")

	// ErrInvalidInput is returned when a required field is empty or malformed
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyExists is returned when a unique profile field is taken
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotBlacklisted is returned when asking the blacklist reason of an address that is not blacklisted
	ErrNotBlacklisted = errors.New("not blacklisted")

	// ErrDuplicateEntity is returned when an entity is created at an id already in use
	ErrDuplicateEntity = errors.New("duplicate entity")

	// ErrUnknownEvent is returned when an event kind has no handler
	ErrUnknownEvent = errors.New("unknown event")

	// ErrViewReverted is returned when a contract view call reverts
	ErrViewReverted = errors.New("view call reverted")

	// ErrSubscriptionFailed is returned when subscription to events fails
	ErrSubscriptionFailed = errors.New("subscription failed")
)
