package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/amplifrens/amplifrens-indexer/internal/logger"
)

const (
	defaultChunkSize    = 2000
	defaultMaxChunkSize = 10000

	// ErrTypeInvalidRange is the application error type of a replay over an empty range
	ErrTypeInvalidRange = "InvalidReplayRange"
)

// Replayer republishes historical contract logs so the indexer can rebuild its projection
type Replayer interface {
	// Replay fetches the logs of the requested range in ordered chunks and publishes them again
	Replay(ctx workflow.Context, req ReplayRequest) (*ReplayResult, error)
}

// ReplayRequest is the input of the replay workflow
type ReplayRequest struct {
	FromBlock uint64 `json:"fromBlock"`
	// ToBlock is inclusive, zero means the chain head at the time the workflow starts
	ToBlock   uint64 `json:"toBlock"`
	ChunkSize uint64 `json:"chunkSize"`
}

// ReplayResult summarises a finished replay
type ReplayResult struct {
	FromBlock uint64 `json:"fromBlock"`
	ToBlock   uint64 `json:"toBlock"`
	Chunks    int    `json:"chunks"`
	Events    int    `json:"events"`
}

// Chunk is a closed block range
type Chunk struct {
	FromBlock uint64
	ToBlock   uint64
}

// ReplayConfig bounds the chunking of replays
type ReplayConfig struct {
	DefaultChunkSize uint64
	MaxChunkSize     uint64
	// ActivityTimeout is the start-to-close timeout of a single chunk
	ActivityTimeout time.Duration
	// MaxAttempts is how many times a chunk is tried before the replay fails
	MaxAttempts int32
}

type replayer struct {
	executor ReplayExecutor
	config   ReplayConfig
}

// NewReplayer creates the replay workflow
func NewReplayer(executor ReplayExecutor, cfg ReplayConfig) Replayer {
	if cfg.DefaultChunkSize == 0 {
		cfg.DefaultChunkSize = defaultChunkSize
	}
	if cfg.MaxChunkSize == 0 {
		cfg.MaxChunkSize = defaultMaxChunkSize
	}
	if cfg.DefaultChunkSize > cfg.MaxChunkSize {
		cfg.DefaultChunkSize = cfg.MaxChunkSize
	}
	if cfg.ActivityTimeout <= 0 {
		cfg.ActivityTimeout = 5 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}

	return &replayer{
		executor: executor,
		config:   cfg,
	}
}

// Replay fetches the logs of the requested range in ordered chunks and publishes them again.
// Chunks run one after another so the broker receives the logs in chain order.
func (r *replayer) Replay(ctx workflow.Context, req ReplayRequest) (*ReplayResult, error) {
	logger.InfoWf(ctx, "Starting replay",
		zap.Uint64("fromBlock", req.FromBlock),
		zap.Uint64("toBlock", req.ToBlock),
		zap.Uint64("chunkSize", req.ChunkSize),
	)

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: r.config.ActivityTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    r.config.MaxAttempts,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	toBlock := req.ToBlock
	if toBlock == 0 {
		if err := workflow.ExecuteActivity(ctx, r.executor.LatestBlock).Get(ctx, &toBlock); err != nil {
			logger.ErrorWf(ctx, fmt.Errorf("failed to get latest block"), zap.Error(err))
			return nil, err
		}
	}

	if req.FromBlock > toBlock {
		return nil, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("fromBlock %d is after toBlock %d", req.FromBlock, toBlock),
			ErrTypeInvalidRange,
			nil,
		)
	}

	chunkSize := req.ChunkSize
	if chunkSize == 0 {
		chunkSize = r.config.DefaultChunkSize
	}
	if chunkSize > r.config.MaxChunkSize {
		chunkSize = r.config.MaxChunkSize
	}

	chunks := PlanChunks(req.FromBlock, toBlock, chunkSize)
	result := &ReplayResult{
		FromBlock: req.FromBlock,
		ToBlock:   toBlock,
	}

	for i, chunk := range chunks {
		var published int
		err := workflow.ExecuteActivity(ctx, r.executor.ReplayChunk, chunk.FromBlock, chunk.ToBlock).Get(ctx, &published)
		if err != nil {
			logger.ErrorWf(ctx,
				fmt.Errorf("failed to replay chunk"),
				zap.Error(err),
				zap.Uint64("fromBlock", chunk.FromBlock),
				zap.Uint64("toBlock", chunk.ToBlock),
			)
			return nil, err
		}

		result.Chunks++
		result.Events += published
		logger.DebugWf(ctx, "Replayed chunk",
			zap.Int("chunk", i+1),
			zap.Int("of", len(chunks)),
			zap.Int("events", published),
		)
	}

	logger.InfoWf(ctx, "Replay completed",
		zap.Uint64("fromBlock", result.FromBlock),
		zap.Uint64("toBlock", result.ToBlock),
		zap.Int("chunks", result.Chunks),
		zap.Int("events", result.Events),
	)

	return result, nil
}

// PlanChunks splits [fromBlock, toBlock] into consecutive ranges of at most size blocks.
// A zero size yields a single chunk.
func PlanChunks(fromBlock, toBlock, size uint64) []Chunk {
	if fromBlock > toBlock {
		return nil
	}
	if size == 0 {
		return []Chunk{{FromBlock: fromBlock, ToBlock: toBlock}}
	}

	var chunks []Chunk
	for start := fromBlock; ; start++ {
		end := start + size - 1
		if end > toBlock || end < start {
			end = toBlock
		}
		chunks = append(chunks, Chunk{FromBlock: start, ToBlock: end})
		if end == toBlock {
			return chunks
		}
		start = end
	}
}
