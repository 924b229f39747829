package domain

import "time"

const (
	// ZeroAddress is the Ethereum zero address
	ZeroAddress = "0x0000000000000000000000000000000000000000"

	// DeadAddress is the sentinel identity reported by tombstoned rows
	DeadAddress = "0x000000000000000000000000000000000000dead"

	// DefaultUpkeepInterval is the minting interval of the reference deployment
	DefaultUpkeepInterval = 24 * time.Hour

	// FirstDay is the initial day bucket
	FirstDay uint64 = 1
)
