package views

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/amplifrens/amplifrens-indexer/internal/domain"
	ethprovider "github.com/amplifrens/amplifrens-indexer/internal/providers/ethereum"
)

// ContractCaller executes read-only contract calls
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Contracts holds the addresses answering each view
type Contracts struct {
	// SBT answers getStatus and isMintingIntervalMet
	SBT string
	// Profile answers getProfile
	Profile string
}

type ethereumReader struct {
	caller  ContractCaller
	abi     abi.ABI
	sbt     common.Address
	profile common.Address
}

// NewEthereumReader creates a Reader backed by eth_call
func NewEthereumReader(caller ContractCaller, contracts Contracts) (Reader, error) {
	parsed, err := ethprovider.ContractABI()
	if err != nil {
		return nil, err
	}

	if !common.IsHexAddress(contracts.SBT) {
		return nil, fmt.Errorf("%w: invalid SBT contract address %q", domain.ErrInvalidInput, contracts.SBT)
	}
	if !common.IsHexAddress(contracts.Profile) {
		return nil, fmt.Errorf("%w: invalid profile contract address %q", domain.ErrInvalidInput, contracts.Profile)
	}

	return &ethereumReader{
		caller:  caller,
		abi:     parsed,
		sbt:     common.HexToAddress(contracts.SBT),
		profile: common.HexToAddress(contracts.Profile),
	}, nil
}

func blockArg(block uint64) *big.Int {
	if block == LatestBlock {
		return nil
	}
	return new(big.Int).SetUint64(block)
}

// call packs, executes and unpacks a view
func (r *ethereumReader) call(ctx context.Context, to common.Address, block uint64, method string, args ...interface{}) ([]interface{}, error) {
	input, err := r.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", method, err)
	}

	output, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, blockArg(block))
	if err != nil {
		if isRevert(err) {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrViewReverted, method, err)
		}
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}
	if len(output) == 0 {
		// Calls to an address without code return no data
		return nil, fmt.Errorf("%w: %s returned no data", domain.ErrViewReverted, method)
	}

	values, err := r.abi.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s result: %w", method, err)
	}
	return values, nil
}

// isRevert recognizes node errors reporting a reverted execution
func isRevert(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "revert")
}

// GetStatus calls getStatus(address) on the SBT contract
func (r *ethereumReader) GetStatus(ctx context.Context, address string, block uint64) (domain.StatusTier, error) {
	values, err := r.call(ctx, r.sbt, block, "getStatus", common.HexToAddress(address))
	if err != nil {
		// The contract reverts for holders of no token
		if strings.Contains(strings.ToLower(err.Error()), "0 tokens") {
			return domain.TierRookie, fmt.Errorf("%w: %s", domain.ErrNoTokens, address)
		}
		return domain.TierRookie, err
	}

	tier, ok := values[0].(uint8)
	if !ok {
		return domain.TierRookie, fmt.Errorf("unexpected getStatus result type %T", values[0])
	}
	return domain.StatusTier(tier), nil
}

// IsMintingIntervalMet calls isMintingIntervalMet() on the SBT contract
func (r *ethereumReader) IsMintingIntervalMet(ctx context.Context, block uint64) (bool, error) {
	values, err := r.call(ctx, r.sbt, block, "isMintingIntervalMet")
	if err != nil {
		return false, err
	}

	met, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected isMintingIntervalMet result type %T", values[0])
	}
	return met, nil
}

// profileTuple mirrors the getProfile output struct; fields are copied by position
type profileTuple struct {
	Username      string
	LensHandle    string
	DiscordHandle string
	TwitterHandle string
	Email         string
	WebsiteURL    string
	Valid         bool
}

// GetProfile calls getProfile(address) on the profile contract
func (r *ethereumReader) GetProfile(ctx context.Context, address string, block uint64) (*domain.ProfileDetails, error) {
	input, err := r.abi.Pack("getProfile", common.HexToAddress(address))
	if err != nil {
		return nil, fmt.Errorf("failed to pack getProfile call: %w", err)
	}

	output, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &r.profile, Data: input}, blockArg(block))
	if err != nil {
		if isRevert(err) {
			return nil, fmt.Errorf("%w: getProfile: %v", domain.ErrViewReverted, err)
		}
		return nil, fmt.Errorf("failed to call getProfile: %w", err)
	}
	if len(output) == 0 {
		return nil, fmt.Errorf("%w: getProfile returned no data", domain.ErrViewReverted)
	}

	var result struct {
		Profile profileTuple
	}
	if err := r.abi.UnpackIntoInterface(&result, "getProfile", output); err != nil {
		return nil, fmt.Errorf("failed to unpack getProfile result: %w", err)
	}
	if !result.Profile.Valid {
		return nil, fmt.Errorf("%w: no profile for %s", domain.ErrViewReverted, address)
	}

	return &domain.ProfileDetails{
		Username:      result.Profile.Username,
		LensHandle:    result.Profile.LensHandle,
		DiscordHandle: result.Profile.DiscordHandle,
		TwitterHandle: result.Profile.TwitterHandle,
		Email:         result.Profile.Email,
		WebsiteURL:    result.Profile.WebsiteURL,
	}, nil
}
