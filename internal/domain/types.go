package domain

import (
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Chain represents the blockchain network identifier using CAIP-2 format
type Chain string

const (
	ChainEthereumMainnet Chain = "eip155:1"
	ChainEthereumSepolia Chain = "eip155:11155111"
	ChainPolygonMainnet  Chain = "eip155:137"
	ChainPolygonMumbai   Chain = "eip155:80001"
	ChainHardhat         Chain = "eip155:31337"
)

// IsValidChain checks if a chain is valid
func IsValidChain(chain Chain) bool {
	return chain == ChainEthereumMainnet ||
		chain == ChainEthereumSepolia ||
		chain == ChainPolygonMainnet ||
		chain == ChainPolygonMumbai ||
		chain == ChainHardhat
}

// EntityStatus is the lifecycle state of a projected row.
// Rows are never physically deleted; any status other than live is a tombstone.
type EntityStatus string

const (
	StatusLive        EntityStatus = "live"
	StatusRemoved     EntityStatus = "removed"
	StatusBlacklisted EntityStatus = "blacklisted"
	StatusDeleted     EntityStatus = "deleted"
	// StatusSuperseded marks a vote record replaced by the voter's opposite vote
	StatusSuperseded EntityStatus = "superseded"
)

// IsTombstone reports whether the status hides the row's identity
func (s EntityStatus) IsTombstone() bool {
	return s != StatusLive
}

// Category is the contribution category, 0..7
type Category uint8

const (
	CategoryNFT Category = iota
	CategoryMetaverse
	CategoryDeFi
	CategorySecurity
	CategoryThread
	CategoryGameFi
	CategoryPodcast
	CategoryMisc
)

var categoryNames = [...]string{
	CategoryNFT:       "nft",
	CategoryMetaverse: "metaverse",
	CategoryDeFi:      "defi",
	CategorySecurity:  "security",
	CategoryThread:    "thread",
	CategoryGameFi:    "gamefi",
	CategoryPodcast:   "podcast",
	CategoryMisc:      "misc",
}

// Valid checks the category is within the known range
func (c Category) Valid() bool {
	return int(c) < len(categoryNames)
}

func (c Category) String() string {
	if !c.Valid() {
		return "category(" + strconv.Itoa(int(c)) + ")"
	}
	return categoryNames[c]
}

// Polarity is the direction of a vote
type Polarity string

const (
	PolarityUp   Polarity = "up"
	PolarityDown Polarity = "down"
)

// Opposite returns the other polarity
func (p Polarity) Opposite() Polarity {
	if p == PolarityUp {
		return PolarityDown
	}
	return PolarityUp
}

// Delta returns the vote count change of a single vote with this polarity
func (p Polarity) Delta() int64 {
	if p == PolarityUp {
		return 1
	}
	return -1
}

// NormalizeAddress returns the lowercase hex form used as entity keys
func NormalizeAddress(address string) string {
	if common.IsHexAddress(address) {
		return strings.ToLower(common.HexToAddress(address).Hex())
	}
	return strings.ToLower(strings.TrimSpace(address))
}

// IsRealAddress reports whether the address identifies a participant.
// The zero address and the dead sentinel never do.
func IsRealAddress(address string) bool {
	a := NormalizeAddress(address)
	return common.IsHexAddress(a) && a != ZeroAddress && a != DeadAddress
}

// FormatID renders a numeric entity id as its decimal string key
func FormatID(id uint64) string {
	return strconv.FormatUint(id, 10)
}

// ParseID parses a decimal string entity key
func ParseID(s string) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(s), 10, 64)
}
