package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/amplifrens/amplifrens-indexer/internal/domain"
	"github.com/amplifrens/amplifrens-indexer/internal/logger"
)

// EventFetcher retrieves decoded events for a closed block range
//
//go:generate mockgen -source=fetcher.go -destination=../../mocks/event_fetcher.go -package=mocks -mock_names=EventFetcher=MockEventFetcher
type EventFetcher interface {
	// FetchEvents returns the events of [fromBlock, toBlock] in chain order
	FetchEvents(ctx context.Context, fromBlock, toBlock uint64) ([]domain.Event, error)
	// LatestBlock returns the current chain head
	LatestBlock(ctx context.Context) (uint64, error)
}

type eventFetcher struct {
	client    EthereumClient
	decoder   *Decoder
	addresses []common.Address
}

// NewEventFetcher creates a range fetcher over the given contracts
func NewEventFetcher(client EthereumClient, contractAddresses []string) (EventFetcher, error) {
	decoder, err := NewDecoder(client.Chain())
	if err != nil {
		return nil, err
	}
	addresses, err := parseAddresses(contractAddresses)
	if err != nil {
		return nil, err
	}

	return &eventFetcher{
		client:    client,
		decoder:   decoder,
		addresses: addresses,
	}, nil
}

// FetchEvents returns the events of [fromBlock, toBlock] in chain order
func (f *eventFetcher) FetchEvents(ctx context.Context, fromBlock, toBlock uint64) ([]domain.Event, error) {
	if fromBlock > toBlock {
		return nil, fmt.Errorf("%w: fromBlock %d is after toBlock %d", domain.ErrInvalidInput, fromBlock, toBlock)
	}

	query, err := buildQuery(f.addresses)
	if err != nil {
		return nil, err
	}
	query.FromBlock = new(big.Int).SetUint64(fromBlock)
	query.ToBlock = new(big.Int).SetUint64(toBlock)

	logs, err := f.client.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch logs %d-%d: %w", fromBlock, toBlock, err)
	}
	SortLogs(logs)

	events := make([]domain.Event, 0, len(logs))
	for _, vLog := range logs {
		if vLog.Removed {
			continue
		}
		event, err := f.decoder.Decode(vLog)
		if err != nil {
			if errors.Is(err, domain.ErrUnknownEvent) {
				continue
			}
			return nil, fmt.Errorf("failed to decode log %s-%d: %w", vLog.TxHash.Hex(), vLog.Index, err)
		}
		events = append(events, event)
	}

	logger.DebugCtx(ctx, "Fetched AmpliFrens events",
		zap.Uint64("fromBlock", fromBlock),
		zap.Uint64("toBlock", toBlock),
		zap.Int("events", len(events)))

	return events, nil
}

// LatestBlock returns the current chain head
func (f *eventFetcher) LatestBlock(ctx context.Context) (uint64, error) {
	return f.client.LatestBlock(ctx)
}
