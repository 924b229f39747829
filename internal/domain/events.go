package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// EventKind identifies an on-chain event variant
type EventKind string

const (
	EventContributionCreated   EventKind = "contribution_created"
	EventContributionUpdated   EventKind = "contribution_updated"
	EventContributionRemoved   EventKind = "contribution_removed"
	EventContributionUpvoted   EventKind = "contribution_upvoted"
	EventContributionDownvoted EventKind = "contribution_downvoted"
	EventProfileCreated        EventKind = "profile_created"
	EventProfileUpdated        EventKind = "profile_updated"
	EventProfileDeleted        EventKind = "profile_deleted"
	EventProfileBlacklisted    EventKind = "profile_blacklisted"
	EventSBTMinted             EventKind = "sbt_minted"
	EventSBTRevoked            EventKind = "sbt_revoked"
	EventSBTBestContribution   EventKind = "sbt_best_contribution"
)

// AllEventKinds lists every supported kind in a stable order
var AllEventKinds = []EventKind{
	EventContributionCreated,
	EventContributionUpdated,
	EventContributionRemoved,
	EventContributionUpvoted,
	EventContributionDownvoted,
	EventProfileCreated,
	EventProfileUpdated,
	EventProfileDeleted,
	EventProfileBlacklisted,
	EventSBTMinted,
	EventSBTRevoked,
	EventSBTBestContribution,
}

// IsValidEventKind checks the kind is one of the supported variants
func IsValidEventKind(kind EventKind) bool {
	for _, k := range AllEventKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// LogMeta locates an event in the chain's log
type LogMeta struct {
	Chain           Chain  `json:"chain"`
	ContractAddress string `json:"contract_address"`
	TxHash          string `json:"tx_hash"`
	LogIndex        uint64 `json:"log_index"`
	BlockNumber     uint64 `json:"block_number"`
	BlockHash       string `json:"block_hash,omitempty"`
}

// Meta returns the log location
func (m LogMeta) Meta() LogMeta {
	return m
}

// LogKey returns txHash-logIndex
func (m LogMeta) LogKey() string {
	return m.TxHash + "-" + strconv.FormatUint(m.LogIndex, 10)
}

// Before reports whether m was emitted before o
func (m LogMeta) Before(o LogMeta) bool {
	if m.BlockNumber != o.BlockNumber {
		return m.BlockNumber < o.BlockNumber
	}
	return m.LogIndex < o.LogIndex
}

func (LogMeta) isEvent() {}

// Event is the tagged union of all on-chain event variants
type Event interface {
	Kind() EventKind
	Meta() LogMeta
	// NaturalKey is the event-specific key of the raw log entity
	NaturalKey() string
	isEvent()
}

// ContributionCreated is emitted when a contribution is submitted
type ContributionCreated struct {
	LogMeta
	From           string   `json:"from"`
	ContributionID uint64   `json:"contribution_id"`
	Timestamp      uint64   `json:"timestamp"`
	Category       Category `json:"category"`
	Title          string   `json:"title"`
	URL            string   `json:"url"`
}

func (e *ContributionCreated) Kind() EventKind    { return EventContributionCreated }
func (e *ContributionCreated) NaturalKey() string { return FormatID(e.ContributionID) }

// ContributionUpdated is emitted when a contribution's content changes
type ContributionUpdated struct {
	LogMeta
	From           string   `json:"from"`
	ContributionID uint64   `json:"contribution_id"`
	Timestamp      uint64   `json:"timestamp"`
	Category       Category `json:"category"`
	Title          string   `json:"title"`
	URL            string   `json:"url"`
}

func (e *ContributionUpdated) Kind() EventKind    { return EventContributionUpdated }
func (e *ContributionUpdated) NaturalKey() string { return FormatID(e.ContributionID) }

// ContributionRemoved is emitted when a contribution is removed
type ContributionRemoved struct {
	LogMeta
	From           string `json:"from"`
	ContributionID uint64 `json:"contribution_id"`
	Timestamp      uint64 `json:"timestamp"`
}

func (e *ContributionRemoved) Kind() EventKind    { return EventContributionRemoved }
func (e *ContributionRemoved) NaturalKey() string { return FormatID(e.ContributionID) }

// ContributionUpvoted is emitted for an upvote
type ContributionUpvoted struct {
	LogMeta
	From           string `json:"from"`
	ContributionID uint64 `json:"contribution_id"`
	Timestamp      uint64 `json:"timestamp"`
}

func (e *ContributionUpvoted) Kind() EventKind    { return EventContributionUpvoted }
func (e *ContributionUpvoted) NaturalKey() string { return VoteKey(e.ContributionID, e.From) }

// ContributionDownvoted is emitted for a downvote
type ContributionDownvoted struct {
	LogMeta
	From           string `json:"from"`
	ContributionID uint64 `json:"contribution_id"`
	Timestamp      uint64 `json:"timestamp"`
}

func (e *ContributionDownvoted) Kind() EventKind    { return EventContributionDownvoted }
func (e *ContributionDownvoted) NaturalKey() string { return VoteKey(e.ContributionID, e.From) }

// ProfileCreated is emitted when an address creates its profile
type ProfileCreated struct {
	LogMeta
	Address   string `json:"address"`
	Timestamp uint64 `json:"timestamp"`
	Username  string `json:"username"`
}

func (e *ProfileCreated) Kind() EventKind    { return EventProfileCreated }
func (e *ProfileCreated) NaturalKey() string { return NormalizeAddress(e.Address) }

// ProfileUpdated is emitted when a profile changes
type ProfileUpdated struct {
	LogMeta
	Address   string `json:"address"`
	Timestamp uint64 `json:"timestamp"`
	Username  string `json:"username"`
}

func (e *ProfileUpdated) Kind() EventKind    { return EventProfileUpdated }
func (e *ProfileUpdated) NaturalKey() string { return NormalizeAddress(e.Address) }

// ProfileDeleted is emitted when an admin deletes a profile
type ProfileDeleted struct {
	LogMeta
	Address   string `json:"address"`
	Timestamp uint64 `json:"timestamp"`
}

func (e *ProfileDeleted) Kind() EventKind    { return EventProfileDeleted }
func (e *ProfileDeleted) NaturalKey() string { return NormalizeAddress(e.Address) }

// ProfileBlacklisted is emitted when an admin blacklists a profile
type ProfileBlacklisted struct {
	LogMeta
	Address   string `json:"address"`
	Reason    string `json:"reason"`
	Timestamp uint64 `json:"timestamp"`
}

func (e *ProfileBlacklisted) Kind() EventKind    { return EventProfileBlacklisted }
func (e *ProfileBlacklisted) NaturalKey() string { return NormalizeAddress(e.Address) }

// SBTMinted is emitted when a badge is minted
type SBTMinted struct {
	LogMeta
	Owner     string `json:"owner"`
	TokenID   uint64 `json:"token_id"`
	Timestamp uint64 `json:"timestamp"`
}

func (e *SBTMinted) Kind() EventKind    { return EventSBTMinted }
func (e *SBTMinted) NaturalKey() string { return e.LogKey() }

// SBTRevoked is emitted when a badge is revoked
type SBTRevoked struct {
	LogMeta
	Owner     string `json:"owner"`
	TokenID   uint64 `json:"token_id"`
	Timestamp uint64 `json:"timestamp"`
}

func (e *SBTRevoked) Kind() EventKind    { return EventSBTRevoked }
func (e *SBTRevoked) NaturalKey() string { return e.LogKey() }

// SBTBestContribution is emitted by upkeep with the day's winning contribution
type SBTBestContribution struct {
	LogMeta
	TopContributionID uint64   `json:"top_contribution_id"`
	From              string   `json:"from"`
	Timestamp         uint64   `json:"timestamp"`
	Category          Category `json:"category"`
	Title             string   `json:"title"`
	URL               string   `json:"url"`
}

func (e *SBTBestContribution) Kind() EventKind    { return EventSBTBestContribution }
func (e *SBTBestContribution) NaturalKey() string { return FormatID(e.TopContributionID) }

// newEvent allocates an empty event of the given kind
func newEvent(kind EventKind) (Event, error) {
	switch kind {
	case EventContributionCreated:
		return &ContributionCreated{}, nil
	case EventContributionUpdated:
		return &ContributionUpdated{}, nil
	case EventContributionRemoved:
		return &ContributionRemoved{}, nil
	case EventContributionUpvoted:
		return &ContributionUpvoted{}, nil
	case EventContributionDownvoted:
		return &ContributionDownvoted{}, nil
	case EventProfileCreated:
		return &ProfileCreated{}, nil
	case EventProfileUpdated:
		return &ProfileUpdated{}, nil
	case EventProfileDeleted:
		return &ProfileDeleted{}, nil
	case EventProfileBlacklisted:
		return &ProfileBlacklisted{}, nil
	case EventSBTMinted:
		return &SBTMinted{}, nil
	case EventSBTRevoked:
		return &SBTRevoked{}, nil
	case EventSBTBestContribution:
		return &SBTBestContribution{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, kind)
	}
}

// Envelope is the wire format published to NATS
type Envelope struct {
	Kind  EventKind `json:"kind"`
	Event Event     `json:"event"`
}

// EventEnvelope tags an event with its kind for serialization
func EventEnvelope(event Event) Envelope {
	return Envelope{Kind: event.Kind(), Event: event}
}

// rawEnvelope defers decoding of the event body until its kind is known
type rawEnvelope struct {
	Kind  EventKind       `json:"kind"`
	Event json.RawMessage `json:"event"`
}

// Codec serializes envelopes; adapter.JSON satisfies it
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// EncodeEvent serializes an event with its kind tag
func EncodeEvent(codec Codec, event Event) ([]byte, error) {
	data, err := codec.Marshal(EventEnvelope(event))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", event.Kind(), err)
	}
	return data, nil
}

// DecodeEvent parses bytes produced by EncodeEvent
func DecodeEvent(codec Codec, data []byte) (Event, error) {
	var env rawEnvelope
	if err := codec.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event envelope: %w", err)
	}

	event, err := newEvent(env.Kind)
	if err != nil {
		return nil, err
	}
	if err := codec.Unmarshal(env.Event, event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s event: %w", env.Kind, err)
	}

	return event, nil
}

// ValidateEvent checks the event can be located and keyed
func ValidateEvent(event Event) error {
	meta := event.Meta()
	if meta.TxHash == "" {
		return fmt.Errorf("%w: missing tx hash", ErrInvalidInput)
	}

	switch e := event.(type) {
	case *ContributionCreated:
		if !e.Category.Valid() {
			return fmt.Errorf("%w: %d", ErrInvalidCategory, e.Category)
		}
	case *ContributionUpdated:
		if !e.Category.Valid() {
			return fmt.Errorf("%w: %d", ErrInvalidCategory, e.Category)
		}
	case *ProfileCreated:
		if e.Address == "" {
			return fmt.Errorf("%w: missing profile address", ErrInvalidInput)
		}
	case *SBTMinted:
		if e.Owner == "" {
			return fmt.Errorf("%w: missing token owner", ErrInvalidInput)
		}
	}

	return nil
}
