package ethereum

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/amplifrens/amplifrens-indexer/internal/domain"
)

// contractABIJSON covers the events of the contribution, profile and SBT contracts and the
// facade views consumed by the indexer
const contractABIJSON = `[
{"type":"event","name":"ContributionCreated","anonymous":false,"inputs":[
 {"name":"from","type":"address","indexed":true},
 {"name":"contributionId","type":"uint256","indexed":true},
 {"name":"timestamp","type":"uint256","indexed":false},
 {"name":"category","type":"uint8","indexed":false},
 {"name":"title","type":"string","indexed":false},
 {"name":"url","type":"string","indexed":false}]},
{"type":"event","name":"ContributionUpdated","anonymous":false,"inputs":[
 {"name":"from","type":"address","indexed":true},
 {"name":"contributionId","type":"uint256","indexed":true},
 {"name":"timestamp","type":"uint256","indexed":false},
 {"name":"category","type":"uint8","indexed":false},
 {"name":"title","type":"string","indexed":false},
 {"name":"url","type":"string","indexed":false}]},
{"type":"event","name":"ContributionRemoved","anonymous":false,"inputs":[
 {"name":"from","type":"address","indexed":true},
 {"name":"contributionId","type":"uint256","indexed":true},
 {"name":"timestamp","type":"uint256","indexed":false}]},
{"type":"event","name":"ContributionUpvoted","anonymous":false,"inputs":[
 {"name":"from","type":"address","indexed":true},
 {"name":"contributionId","type":"uint256","indexed":true},
 {"name":"timestamp","type":"uint256","indexed":false}]},
{"type":"event","name":"ContributionDownvoted","anonymous":false,"inputs":[
 {"name":"from","type":"address","indexed":true},
 {"name":"contributionId","type":"uint256","indexed":true},
 {"name":"timestamp","type":"uint256","indexed":false}]},
{"type":"event","name":"ProfileCreated","anonymous":false,"inputs":[
 {"name":"_address","type":"address","indexed":true},
 {"name":"timestamp","type":"uint256","indexed":false},
 {"name":"username","type":"string","indexed":false}]},
{"type":"event","name":"ProfileUpdated","anonymous":false,"inputs":[
 {"name":"_address","type":"address","indexed":true},
 {"name":"timestamp","type":"uint256","indexed":false},
 {"name":"username","type":"string","indexed":false}]},
{"type":"event","name":"ProfileDeleted","anonymous":false,"inputs":[
 {"name":"_address","type":"address","indexed":true},
 {"name":"timestamp","type":"uint256","indexed":false}]},
{"type":"event","name":"ProfileBlacklisted","anonymous":false,"inputs":[
 {"name":"_address","type":"address","indexed":true},
 {"name":"reason","type":"string","indexed":false},
 {"name":"timestamp","type":"uint256","indexed":false}]},
{"type":"event","name":"SBTMinted","anonymous":false,"inputs":[
 {"name":"owner","type":"address","indexed":true},
 {"name":"tokenId","type":"uint256","indexed":true},
 {"name":"timestamp","type":"uint256","indexed":false}]},
{"type":"event","name":"SBTRevoked","anonymous":false,"inputs":[
 {"name":"owner","type":"address","indexed":true},
 {"name":"tokenId","type":"uint256","indexed":true},
 {"name":"timestamp","type":"uint256","indexed":false}]},
{"type":"event","name":"SBTBestContribution","anonymous":false,"inputs":[
 {"name":"topContributionId","type":"uint256","indexed":true},
 {"name":"from","type":"address","indexed":true},
 {"name":"timestamp","type":"uint256","indexed":false},
 {"name":"category","type":"uint8","indexed":false},
 {"name":"title","type":"string","indexed":false},
 {"name":"url","type":"string","indexed":false}]},
{"type":"function","name":"getStatus","stateMutability":"view","inputs":[
 {"name":"_address","type":"address"}],"outputs":[{"name":"","type":"uint8"}]},
{"type":"function","name":"isMintingIntervalMet","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"getProfile","stateMutability":"view","inputs":[
 {"name":"_address","type":"address"}],"outputs":[{"name":"","type":"tuple","components":[
  {"name":"username","type":"string"},
  {"name":"lensHandle","type":"string"},
  {"name":"discordHandle","type":"string"},
  {"name":"twitterHandle","type":"string"},
  {"name":"email","type":"string"},
  {"name":"websiteUrl","type":"string"},
  {"name":"valid","type":"bool"}]}]}
]`

// eventKinds maps ABI event names to domain event kinds
var eventKinds = map[string]domain.EventKind{
	"ContributionCreated":   domain.EventContributionCreated,
	"ContributionUpdated":   domain.EventContributionUpdated,
	"ContributionRemoved":   domain.EventContributionRemoved,
	"ContributionUpvoted":   domain.EventContributionUpvoted,
	"ContributionDownvoted": domain.EventContributionDownvoted,
	"ProfileCreated":        domain.EventProfileCreated,
	"ProfileUpdated":        domain.EventProfileUpdated,
	"ProfileDeleted":        domain.EventProfileDeleted,
	"ProfileBlacklisted":    domain.EventProfileBlacklisted,
	"SBTMinted":             domain.EventSBTMinted,
	"SBTRevoked":            domain.EventSBTRevoked,
	"SBTBestContribution":   domain.EventSBTBestContribution,
}

var (
	contractABIOnce sync.Once
	contractABI     abi.ABI
	contractABIErr  error
)

// ContractABI returns the parsed AmpliFrens ABI
func ContractABI() (abi.ABI, error) {
	contractABIOnce.Do(func() {
		contractABI, contractABIErr = abi.JSON(strings.NewReader(contractABIJSON))
		if contractABIErr != nil {
			contractABIErr = fmt.Errorf("failed to parse contract ABI: %w", contractABIErr)
		}
	})
	return contractABI, contractABIErr
}

// EventTopics returns the topic0 of every indexed event
func EventTopics() ([]common.Hash, error) {
	parsed, err := ContractABI()
	if err != nil {
		return nil, err
	}

	topics := make([]common.Hash, 0, len(eventKinds))
	for name := range eventKinds {
		ev, ok := parsed.Events[name]
		if !ok {
			return nil, fmt.Errorf("event %s missing from ABI", name)
		}
		topics = append(topics, ev.ID)
	}
	return topics, nil
}
