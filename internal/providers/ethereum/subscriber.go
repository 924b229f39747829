package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/amplifrens/amplifrens-indexer/internal/domain"
	"github.com/amplifrens/amplifrens-indexer/internal/logger"
	"github.com/amplifrens/amplifrens-indexer/internal/messaging"
)

// Config holds the configuration for Ethereum subscription
type Config struct {
	WebSocketURL string       // WebSocket URL (e.g., wss://polygon-mumbai.infura.io/ws/v3/YOUR_PROJECT_ID)
	ChainID      domain.Chain // e.g., "eip155:80001" for Polygon Mumbai
	// ContractAddresses are the AmpliFrens contracts whose logs are indexed
	ContractAddresses []string
	// LogBufferSize is the capacity of the live log channel
	LogBufferSize int
}

type ethSubscriber struct {
	client    EthereumClient
	decoder   *Decoder
	chainID   domain.Chain
	addresses []common.Address
	bufSize   int
}

// NewSubscriber creates a new Ethereum event subscriber
func NewSubscriber(cfg Config, ethereumClient EthereumClient) (messaging.Subscriber, error) {
	decoder, err := NewDecoder(cfg.ChainID)
	if err != nil {
		return nil, err
	}

	addresses, err := parseAddresses(cfg.ContractAddresses)
	if err != nil {
		return nil, err
	}

	bufSize := cfg.LogBufferSize
	if bufSize <= 0 {
		bufSize = 256
	}

	return &ethSubscriber{
		client:    ethereumClient,
		decoder:   decoder,
		chainID:   cfg.ChainID,
		addresses: addresses,
		bufSize:   bufSize,
	}, nil
}

func parseAddresses(raw []string) ([]common.Address, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: at least one contract address is required", domain.ErrInvalidInput)
	}
	addresses := make([]common.Address, 0, len(raw))
	for _, a := range raw {
		if !common.IsHexAddress(a) {
			return nil, fmt.Errorf("%w: invalid contract address %q", domain.ErrInvalidInput, a)
		}
		addresses = append(addresses, common.HexToAddress(a))
	}
	return addresses, nil
}

func buildQuery(addresses []common.Address) (ethereum.FilterQuery, error) {
	topics, err := EventTopics()
	if err != nil {
		return ethereum.FilterQuery{}, err
	}
	return ethereum.FilterQuery{
		Addresses: addresses,
		Topics:    [][]common.Hash{topics},
	}, nil
}

// logPosition orders logs by block then log index
type logPosition struct {
	block uint64
	index uint
}

func (p logPosition) after(o logPosition) bool {
	return p.block > o.block || (p.block == o.block && p.index > o.index)
}

// SubscribeEvents backfills every event from fromBlock to the chain head and then follows
// new logs. Events reach the handler strictly in chain order; a handler error stops the
// subscription so the caller can resume from its cursor.
func (s *ethSubscriber) SubscribeEvents(ctx context.Context, fromBlock uint64, handler messaging.EventHandler) error {
	query, err := buildQuery(s.addresses)
	if err != nil {
		return err
	}

	// Subscribe before backfilling so nothing emitted in between is lost
	logs := make(chan types.Log, s.bufSize)
	sub, err := s.client.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSubscriptionFailed, err)
	}
	defer func() {
		logger.InfoCtx(ctx, "Unsubscribing from AmpliFrens event logs")
		sub.Unsubscribe()
	}()

	latest, err := s.GetLatestBlock(ctx)
	if err != nil {
		return err
	}

	var last logPosition
	delivered := false

	if fromBlock <= latest {
		backfill := query
		backfill.FromBlock = new(big.Int).SetUint64(fromBlock)
		backfill.ToBlock = new(big.Int).SetUint64(latest)

		history, err := s.client.FilterLogs(ctx, backfill)
		if err != nil {
			return fmt.Errorf("failed to backfill logs %d-%d: %w", fromBlock, latest, err)
		}
		SortLogs(history)

		logger.InfoCtx(ctx, "Backfilling AmpliFrens events",
			zap.Uint64("fromBlock", fromBlock),
			zap.Uint64("toBlock", latest),
			zap.Int("logs", len(history)))

		for _, vLog := range history {
			if err := s.deliver(ctx, vLog, handler); err != nil {
				return err
			}
			last = logPosition{block: vLog.BlockNumber, index: vLog.Index}
			delivered = true
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return fmt.Errorf("%w: %v", domain.ErrSubscriptionFailed, err)
		case vLog := <-logs:
			if vLog.Removed {
				// Reorgs are resolved by replaying from scratch
				logger.WarnCtx(ctx, "Ignoring removed log",
					zap.String("txHash", vLog.TxHash.Hex()),
					zap.Uint64("block", vLog.BlockNumber),
					zap.Uint("logIndex", vLog.Index))
				continue
			}

			pos := logPosition{block: vLog.BlockNumber, index: vLog.Index}
			if vLog.BlockNumber < fromBlock || (delivered && !pos.after(last)) {
				continue
			}

			if err := s.deliver(ctx, vLog, handler); err != nil {
				return err
			}
			last = pos
			delivered = true
		}
	}
}

// deliver decodes a log and hands it to the handler. Unknown events are skipped.
func (s *ethSubscriber) deliver(ctx context.Context, vLog types.Log, handler messaging.EventHandler) error {
	event, err := s.decoder.Decode(vLog)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownEvent) {
			logger.DebugCtx(ctx, "Skipping unknown log", zap.String("txHash", vLog.TxHash.Hex()))
			return nil
		}
		return fmt.Errorf("failed to decode log %s-%d: %w", vLog.TxHash.Hex(), vLog.Index, err)
	}

	if err := handler(event); err != nil {
		return fmt.Errorf("failed to handle %s event: %w", event.Kind(), err)
	}
	return nil
}

// GetLatestBlock returns the latest block number
func (s *ethSubscriber) GetLatestBlock(ctx context.Context) (uint64, error) {
	return s.client.LatestBlock(ctx)
}

// Close closes the connection
func (s *ethSubscriber) Close() {
	if s.client == nil {
		return
	}

	s.client.Close()
	logger.Info("Ethereum WebSocket connection closed")
}

// SortLogs orders logs by block number then log index
func SortLogs(logs []types.Log) {
	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].Index < logs[j].Index
	})
}
