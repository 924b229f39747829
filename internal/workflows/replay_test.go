package workflows_test

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/amplifrens/amplifrens-indexer/internal/logger"
	"github.com/amplifrens/amplifrens-indexer/internal/mocks"
	"github.com/amplifrens/amplifrens-indexer/internal/workflows"
)

// ReplayWorkflowTestSuite is the test suite for the replay workflow
type ReplayWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite

	env      *testsuite.TestWorkflowEnvironment
	ctrl     *gomock.Controller
	executor *mocks.MockReplayExecutor
	replayer workflows.Replayer
}

func (s *ReplayWorkflowTestSuite) SetupTest() {
	_ = logger.Initialize(logger.Config{
		Debug: true,
	})

	s.env = s.NewTestWorkflowEnvironment()
	s.ctrl = gomock.NewController(s.T())
	s.executor = mocks.NewMockReplayExecutor(s.ctrl)
	s.replayer = workflows.NewReplayer(s.executor, workflows.ReplayConfig{
		DefaultChunkSize: 100,
		MaxChunkSize:     250,
		MaxAttempts:      1,
	})
}

func (s *ReplayWorkflowTestSuite) TearDownTest() {
	s.env.AssertExpectations(s.T())
	s.ctrl.Finish()
}

func TestReplayWorkflowTestSuite(t *testing.T) {
	suite.Run(t, new(ReplayWorkflowTestSuite))
}

func (s *ReplayWorkflowTestSuite) TestReplay_DefaultChunkSize() {
	s.env.OnActivity(s.executor.ReplayChunk, mock.Anything, uint64(1), uint64(100)).Return(3, nil).Once()
	s.env.OnActivity(s.executor.ReplayChunk, mock.Anything, uint64(101), uint64(200)).Return(0, nil).Once()
	s.env.OnActivity(s.executor.ReplayChunk, mock.Anything, uint64(201), uint64(250)).Return(2, nil).Once()

	s.env.ExecuteWorkflow(s.replayer.Replay, workflows.ReplayRequest{FromBlock: 1, ToBlock: 250})

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var result workflows.ReplayResult
	s.NoError(s.env.GetWorkflowResult(&result))
	s.Equal(workflows.ReplayResult{FromBlock: 1, ToBlock: 250, Chunks: 3, Events: 5}, result)
}

func (s *ReplayWorkflowTestSuite) TestReplay_ResolvesHeadAndRunsChunksInOrder() {
	s.env.OnActivity(s.executor.LatestBlock, mock.Anything).Return(uint64(1000), nil).Once()

	var visited []uint64
	s.env.OnActivity(s.executor.ReplayChunk, mock.Anything, mock.Anything, mock.Anything).Return(
		func(_ context.Context, fromBlock, toBlock uint64) (int, error) {
			visited = append(visited, fromBlock, toBlock)
			return 1, nil
		})

	// Requested chunk size is capped at the maximum
	s.env.ExecuteWorkflow(s.replayer.Replay, workflows.ReplayRequest{FromBlock: 500, ChunkSize: 10_000})

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var result workflows.ReplayResult
	s.NoError(s.env.GetWorkflowResult(&result))
	s.Equal(uint64(1000), result.ToBlock)
	s.Equal(3, result.Chunks)
	s.Equal(3, result.Events)
	s.Equal([]uint64{500, 749, 750, 999, 1000, 1000}, visited)
}

func (s *ReplayWorkflowTestSuite) TestReplay_InvalidRange() {
	s.env.OnActivity(s.executor.LatestBlock, mock.Anything).Return(uint64(100), nil).Once()

	s.env.ExecuteWorkflow(s.replayer.Replay, workflows.ReplayRequest{FromBlock: 500})

	s.True(s.env.IsWorkflowCompleted())
	err := s.env.GetWorkflowError()
	s.Error(err)

	var appErr *temporal.ApplicationError
	s.True(errors.As(err, &appErr))
	s.Equal(workflows.ErrTypeInvalidRange, appErr.Type())
	s.True(appErr.NonRetryable())
}

func (s *ReplayWorkflowTestSuite) TestReplay_LatestBlockError() {
	s.env.OnActivity(s.executor.LatestBlock, mock.Anything).Return(uint64(0), errors.New("rpc unavailable"))

	s.env.ExecuteWorkflow(s.replayer.Replay, workflows.ReplayRequest{FromBlock: 1})

	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
}

func (s *ReplayWorkflowTestSuite) TestReplay_StopsAtFailedChunk() {
	s.env.OnActivity(s.executor.ReplayChunk, mock.Anything, uint64(1), uint64(100)).Return(4, nil).Once()
	s.env.OnActivity(s.executor.ReplayChunk, mock.Anything, uint64(101), uint64(200)).Return(0, errors.New("broker unavailable")).Once()

	s.env.ExecuteWorkflow(s.replayer.Replay, workflows.ReplayRequest{FromBlock: 1, ToBlock: 300})

	s.True(s.env.IsWorkflowCompleted())
	err := s.env.GetWorkflowError()
	s.Error(err)
	s.Contains(err.Error(), "broker unavailable")
}

func TestPlanChunks(t *testing.T) {
	tests := []struct {
		name     string
		from, to uint64
		size     uint64
		expected []workflows.Chunk
	}{
		{
			name:     "single block",
			from:     7,
			to:       7,
			size:     100,
			expected: []workflows.Chunk{{FromBlock: 7, ToBlock: 7}},
		},
		{
			name: "exact multiple",
			from: 1,
			to:   20,
			size: 10,
			expected: []workflows.Chunk{
				{FromBlock: 1, ToBlock: 10},
				{FromBlock: 11, ToBlock: 20},
			},
		},
		{
			name: "remainder",
			from: 0,
			to:   4,
			size: 2,
			expected: []workflows.Chunk{
				{FromBlock: 0, ToBlock: 1},
				{FromBlock: 2, ToBlock: 3},
				{FromBlock: 4, ToBlock: 4},
			},
		},
		{
			name:     "zero size",
			from:     5,
			to:       50,
			size:     0,
			expected: []workflows.Chunk{{FromBlock: 5, ToBlock: 50}},
		},
		{
			name:     "empty range",
			from:     10,
			to:       9,
			size:     5,
			expected: nil,
		},
		{
			name: "range ending at the last block",
			from: ^uint64(0) - 2,
			to:   ^uint64(0),
			size: 2,
			expected: []workflows.Chunk{
				{FromBlock: ^uint64(0) - 2, ToBlock: ^uint64(0) - 1},
				{FromBlock: ^uint64(0), ToBlock: ^uint64(0)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, workflows.PlanChunks(tt.from, tt.to, tt.size))
		})
	}
}
