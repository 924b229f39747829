package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/amplifrens/amplifrens-indexer/internal/adapter"
	"github.com/amplifrens/amplifrens-indexer/internal/domain"
	"github.com/amplifrens/amplifrens-indexer/internal/logger"
)

const (
	// defaultLogStepSize is the initial block span of one eth_getLogs call
	defaultLogStepSize = uint64(100_000)
	// growAfter is the number of consecutive accepted pages before a shrunk step doubles again
	growAfter = 8
	// filterLogsTimeout bounds a full paginated FilterLogs call
	filterLogsTimeout = 2 * time.Minute
)

// tooManyResults are the provider messages for a log page that must be split
var tooManyResults = []string{
	"query returned more than 10000 results",
	"query timeout exceeded",
	"too many results",
	"exceeded maximum",
	"block range is too large",
	"log response size exceeded",
}

// EthereumClient is the RPC surface of the AmpliFrens contract on one chain
//
//go:generate mockgen -source=client.go -destination=../../mocks/ethereum_client.go -package=mocks -mock_names=EthereumClient=MockEthereumClient
type EthereumClient interface {
	SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)

	// FilterLogs retrieves logs for the query, paginating the block range and halving
	// the page when the node rejects it for returning too many results.
	// An open ToBlock is resolved to the chain head.
	FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)

	// LatestBlock returns the number of the chain head
	LatestBlock(ctx context.Context) (uint64, error)

	// CallContract executes a read-only contract call pinned to blockNumber (nil = latest)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)

	Chain() domain.Chain
	Close()
}

type ethereumClient struct {
	chainID  domain.Chain
	client   adapter.EthClient
	stepSize uint64
}

// NewClient wraps a dialed client
func NewClient(chainID domain.Chain, client adapter.EthClient) EthereumClient {
	return &ethereumClient{chainID: chainID, client: client, stepSize: defaultLogStepSize}
}

func (c *ethereumClient) Chain() domain.Chain {
	return c.chainID
}

func (c *ethereumClient) SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return c.client.SubscribeFilterLogs(ctx, query, ch)
}

func (c *ethereumClient) LatestBlock(ctx context.Context) (uint64, error) {
	header, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block: %w", err)
	}
	return header.Number.Uint64(), nil
}

func (c *ethereumClient) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	ctx, cancel := context.WithTimeout(ctx, filterLogsTimeout)
	defer cancel()

	// A block hash query covers a single block
	if query.BlockHash != nil {
		return c.client.FilterLogs(ctx, query)
	}

	var from uint64
	if query.FromBlock != nil {
		from = query.FromBlock.Uint64()
	}

	var to uint64
	if query.ToBlock != nil {
		to = query.ToBlock.Uint64()
	} else {
		head, err := c.LatestBlock(ctx)
		if err != nil {
			return nil, err
		}
		to = head
	}

	if from > to {
		return nil, nil
	}
	return c.pagedLogs(ctx, query, from, to)
}

// pagedLogs walks [from, to] page by page. A rejected page is retried at half the size,
// and the size grows back towards stepSize once pages are accepted again.
func (c *ethereumClient) pagedLogs(ctx context.Context, query ethereum.FilterQuery, from, to uint64) ([]types.Log, error) {
	step := c.stepSize
	accepted := 0

	var logs []types.Log
	for from <= to {
		end := to
		if to-from >= step {
			end = from + step - 1
		}

		page := query
		page.FromBlock = new(big.Int).SetUint64(from)
		page.ToBlock = new(big.Int).SetUint64(end)

		got, err := c.client.FilterLogs(ctx, page)
		if err != nil {
			if !isTooManyResultsError(err) {
				return nil, err
			}
			if step == 1 {
				return nil, fmt.Errorf("too many results in single block %d: %w", from, err)
			}
			step /= 2
			accepted = 0
			logger.WarnCtx(ctx, "Too many results, reducing step size",
				zap.Uint64("stepSize", step),
				zap.Uint64("fromBlock", from),
				zap.Uint64("toBlock", end))
			continue
		}

		logs = append(logs, got...)
		if end == to {
			break
		}
		from = end + 1

		accepted++
		if accepted >= growAfter && step < c.stepSize {
			step = min(step*2, c.stepSize)
			accepted = 0
		}
	}

	return logs, nil
}

func isTooManyResultsError(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, s := range tooManyResults {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *ethereumClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.client.CallContract(ctx, msg, blockNumber)
}

func (c *ethereumClient) Close() {
	c.client.Close()
}
