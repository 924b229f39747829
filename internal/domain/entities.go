package domain

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gowebpki/jcs"
)

// Contribution is the projected state of a user-submitted link
type Contribution struct {
	ID               uint64
	Author           string
	Status           EntityStatus
	Category         Category
	Title            string
	URL              string
	Timestamp        uint64
	Votes            int64
	DayCounter       uint64
	BestContribution bool
	HasProfile       bool
	Username         string
	FromStatus       StatusTier
}

// Key returns the entity key of the contribution
func (c *Contribution) Key() string {
	return FormatID(c.ID)
}

// IsLive reports whether the contribution has not been removed
func (c *Contribution) IsLive() bool {
	return c.Status == StatusLive
}

// From returns the attributable author, or the dead sentinel once removed
func (c *Contribution) From() string {
	if c.Status.IsTombstone() {
		return DeadAddress
	}
	return c.Author
}

// Profile is the projected state of an address profile
type Profile struct {
	Address         string
	Status          EntityStatus
	Username        string
	LensHandle      string
	DiscordHandle   string
	TwitterHandle   string
	Email           string
	WebsiteURL      string
	BlacklistReason string
	Timestamp       uint64
}

// IsLive reports whether the profile is neither deleted nor blacklisted
func (p *Profile) IsLive() bool {
	return p.Status == StatusLive
}

// Owner returns the owning address, or the dead sentinel once tombstoned
func (p *Profile) Owner() string {
	if p.Status.IsTombstone() {
		return DeadAddress
	}
	return p.Address
}

// ProfileDetails holds the profile fields not carried by profile events
type ProfileDetails struct {
	Username      string
	LensHandle    string
	DiscordHandle string
	TwitterHandle string
	Email         string
	WebsiteURL    string
}

// Apply copies the details onto the profile
func (d ProfileDetails) Apply(p *Profile) {
	if d.Username != "" {
		p.Username = d.Username
	}
	p.LensHandle = d.LensHandle
	p.DiscordHandle = d.DiscordHandle
	p.TwitterHandle = d.TwitterHandle
	p.Email = d.Email
	p.WebsiteURL = d.WebsiteURL
}

// VoteRecord is one voter's vote of a given polarity on a contribution
type VoteRecord struct {
	ContributionID uint64
	Voter          string
	Polarity       Polarity
	Status         EntityStatus
	Timestamp      uint64
}

// VoteKey builds the record key contributionId-voterHex
func VoteKey(contributionID uint64, voter string) string {
	return FormatID(contributionID) + "-" + NormalizeAddress(voter)
}

// Key returns the record key
func (v *VoteRecord) Key() string {
	return VoteKey(v.ContributionID, v.Voter)
}

// IsLive reports whether the vote still counts
func (v *VoteRecord) IsLive() bool {
	return v.Status == StatusLive
}

// From returns the voter, or the dead sentinel once superseded
func (v *VoteRecord) From() string {
	if v.Status.IsTombstone() {
		return DeadAddress
	}
	return v.Voter
}

// LeaderboardEntry counts the badges earned by an address
type LeaderboardEntry struct {
	Address               string
	Username              string
	TopContributionsCount uint64
}

// AddressStatus is the last known status tier of an address
type AddressStatus struct {
	Address string
	Tier    StatusTier
}

// EventLog is the immutable raw record of one observed event
type EventLog struct {
	TxHash          string
	LogIndex        uint64
	BlockNumber     uint64
	ContractAddress string
	Kind            EventKind
	NaturalKey      string
	Payload         []byte
}

// Badge is the content snapshot carried by a minted SBT
type Badge struct {
	TokenID        uint64   `json:"tokenId"`
	Owner          string   `json:"owner"`
	ContributionID uint64   `json:"contributionId"`
	Category       Category `json:"category"`
	Title          string   `json:"title"`
	URL            string   `json:"url"`
	Votes          int64    `json:"votes"`
	Timestamp      uint64   `json:"timestamp"`
	MintedAt       uint64   `json:"mintedAt"`
}

// ContentHash returns the keccak256 of the canonical (RFC 8785) JSON of the badge content
func (b Badge) ContentHash() (string, error) {
	content := map[string]interface{}{
		"author":         b.Owner,
		"category":       uint8(b.Category),
		"contributionId": FormatID(b.ContributionID),
		"timestamp":      b.Timestamp,
		"title":          b.Title,
		"url":            b.URL,
		"votes":          b.Votes,
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("failed to marshal badge content: %w", err)
	}

	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize badge content: %w", err)
	}

	return "0x" + hex.EncodeToString(crypto.Keccak256(canonical)), nil
}
