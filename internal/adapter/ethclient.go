package adapter

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// defaultDialTimeout bounds the initial RPC handshake
const defaultDialTimeout = 15 * time.Second

// EthClient is the part of the go-ethereum client the platform contract needs:
// log filtering and subscriptions for events, headers for the chain head and eth_call for views
//
//go:generate mockgen -source=ethclient.go -destination=../mocks/ethclient.go -package=mocks -mock_names=EthClient=MockEthClient,EthClientDialer=MockEthClientDialer
type EthClient interface {
	SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
	FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	Close()
}

// EthClientDialer opens an EthClient over websocket or HTTP
type EthClientDialer interface {
	Dial(ctx context.Context, rawurl string) (EthClient, error)
}

type ethClientDialer struct {
	timeout time.Duration
}

// NewEthClientDialer creates a dialer backed by ethclient
func NewEthClientDialer() EthClientDialer {
	return &ethClientDialer{timeout: defaultDialTimeout}
}

func (d *ethClientDialer) Dial(ctx context.Context, rawurl string) (EthClient, error) {
	if rawurl == "" {
		return nil, errors.New("ethereum rpc url is empty")
	}

	dialCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	client, err := ethclient.DialContext(dialCtx, rawurl)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", rawurl, err)
	}
	return client, nil
}
