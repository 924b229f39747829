package ethereum

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/amplifrens/amplifrens-indexer/internal/domain"
)

// Decoder turns raw contract logs into typed domain events
type Decoder struct {
	chain domain.Chain
	abi   abi.ABI
}

// NewDecoder creates a decoder for logs of the given chain
func NewDecoder(chain domain.Chain) (*Decoder, error) {
	parsed, err := ContractABI()
	if err != nil {
		return nil, err
	}
	return &Decoder{chain: chain, abi: parsed}, nil
}

// Decode parses a log. Logs of events the indexer does not track return ErrUnknownEvent.
func (d *Decoder) Decode(vLog types.Log) (domain.Event, error) {
	if len(vLog.Topics) == 0 {
		return nil, fmt.Errorf("%w: log without topics", domain.ErrUnknownEvent)
	}

	ev, err := d.abi.EventByID(vLog.Topics[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownEvent, vLog.Topics[0].Hex())
	}
	kind, ok := eventKinds[ev.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownEvent, ev.Name)
	}

	fields := make(map[string]interface{})
	var indexed abi.Arguments
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if len(vLog.Topics)-1 != len(indexed) {
		return nil, fmt.Errorf("invalid %s log: expected %d topics, got %d", ev.Name, len(indexed)+1, len(vLog.Topics))
	}
	if err := abi.ParseTopicsIntoMap(fields, indexed, vLog.Topics[1:]); err != nil {
		return nil, fmt.Errorf("failed to parse %s topics: %w", ev.Name, err)
	}
	if err := d.abi.UnpackIntoMap(fields, ev.Name, vLog.Data); err != nil {
		return nil, fmt.Errorf("failed to unpack %s data: %w", ev.Name, err)
	}

	meta := domain.LogMeta{
		Chain:           d.chain,
		ContractAddress: domain.NormalizeAddress(vLog.Address.Hex()),
		TxHash:          vLog.TxHash.Hex(),
		LogIndex:        uint64(vLog.Index),
		BlockNumber:     vLog.BlockNumber,
		BlockHash:       vLog.BlockHash.Hex(),
	}

	f := fieldReader{event: ev.Name, fields: fields}
	var event domain.Event
	switch kind {
	case domain.EventContributionCreated:
		event = &domain.ContributionCreated{
			LogMeta:        meta,
			From:           f.addr("from"),
			ContributionID: f.u64("contributionId"),
			Timestamp:      f.u64("timestamp"),
			Category:       domain.Category(f.u8("category")),
			Title:          f.str("title"),
			URL:            f.str("url"),
		}
	case domain.EventContributionUpdated:
		event = &domain.ContributionUpdated{
			LogMeta:        meta,
			From:           f.addr("from"),
			ContributionID: f.u64("contributionId"),
			Timestamp:      f.u64("timestamp"),
			Category:       domain.Category(f.u8("category")),
			Title:          f.str("title"),
			URL:            f.str("url"),
		}
	case domain.EventContributionRemoved:
		event = &domain.ContributionRemoved{
			LogMeta:        meta,
			From:           f.addr("from"),
			ContributionID: f.u64("contributionId"),
			Timestamp:      f.u64("timestamp"),
		}
	case domain.EventContributionUpvoted:
		event = &domain.ContributionUpvoted{
			LogMeta:        meta,
			From:           f.addr("from"),
			ContributionID: f.u64("contributionId"),
			Timestamp:      f.u64("timestamp"),
		}
	case domain.EventContributionDownvoted:
		event = &domain.ContributionDownvoted{
			LogMeta:        meta,
			From:           f.addr("from"),
			ContributionID: f.u64("contributionId"),
			Timestamp:      f.u64("timestamp"),
		}
	case domain.EventProfileCreated:
		event = &domain.ProfileCreated{
			LogMeta:   meta,
			Address:   f.addr("_address"),
			Timestamp: f.u64("timestamp"),
			Username:  f.str("username"),
		}
	case domain.EventProfileUpdated:
		event = &domain.ProfileUpdated{
			LogMeta:   meta,
			Address:   f.addr("_address"),
			Timestamp: f.u64("timestamp"),
			Username:  f.str("username"),
		}
	case domain.EventProfileDeleted:
		event = &domain.ProfileDeleted{
			LogMeta:   meta,
			Address:   f.addr("_address"),
			Timestamp: f.u64("timestamp"),
		}
	case domain.EventProfileBlacklisted:
		event = &domain.ProfileBlacklisted{
			LogMeta:   meta,
			Address:   f.addr("_address"),
			Reason:    f.str("reason"),
			Timestamp: f.u64("timestamp"),
		}
	case domain.EventSBTMinted:
		event = &domain.SBTMinted{
			LogMeta:   meta,
			Owner:     f.addr("owner"),
			TokenID:   f.u64("tokenId"),
			Timestamp: f.u64("timestamp"),
		}
	case domain.EventSBTRevoked:
		event = &domain.SBTRevoked{
			LogMeta:   meta,
			Owner:     f.addr("owner"),
			TokenID:   f.u64("tokenId"),
			Timestamp: f.u64("timestamp"),
		}
	case domain.EventSBTBestContribution:
		event = &domain.SBTBestContribution{
			LogMeta:           meta,
			TopContributionID: f.u64("topContributionId"),
			From:              f.addr("from"),
			Timestamp:         f.u64("timestamp"),
			Category:          domain.Category(f.u8("category")),
			Title:             f.str("title"),
			URL:               f.str("url"),
		}
	}

	if f.err != nil {
		return nil, f.err
	}
	return event, nil
}

// fieldReader extracts typed values from an unpacked log, keeping the first error
type fieldReader struct {
	event  string
	fields map[string]interface{}
	err    error
}

func (r *fieldReader) fail(name, want string) {
	if r.err == nil {
		r.err = fmt.Errorf("invalid %s log: field %s is not %s", r.event, name, want)
	}
}

func (r *fieldReader) addr(name string) string {
	v, ok := r.fields[name].(common.Address)
	if !ok {
		r.fail(name, "an address")
		return ""
	}
	return domain.NormalizeAddress(v.Hex())
}

func (r *fieldReader) u64(name string) uint64 {
	v, ok := r.fields[name].(*big.Int)
	if !ok || v == nil {
		r.fail(name, "a uint256")
		return 0
	}
	if !v.IsUint64() {
		r.fail(name, "within uint64 range")
		return 0
	}
	return v.Uint64()
}

func (r *fieldReader) u8(name string) uint8 {
	v, ok := r.fields[name].(uint8)
	if !ok {
		r.fail(name, "a uint8")
		return 0
	}
	return v
}

func (r *fieldReader) str(name string) string {
	v, ok := r.fields[name].(string)
	if !ok {
		r.fail(name, "a string")
		return ""
	}
	return v
}
