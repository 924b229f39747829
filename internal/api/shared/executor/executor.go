package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/google/uuid"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"github.com/amplifrens/amplifrens-indexer/internal/api/shared/constants"
	"github.com/amplifrens/amplifrens-indexer/internal/api/shared/dto"
	apierrors "github.com/amplifrens/amplifrens-indexer/internal/api/shared/errors"
	"github.com/amplifrens/amplifrens-indexer/internal/domain"
	"github.com/amplifrens/amplifrens-indexer/internal/providers/temporal"
	"github.com/amplifrens/amplifrens-indexer/internal/store"
	"github.com/amplifrens/amplifrens-indexer/internal/upkeep"
	"github.com/amplifrens/amplifrens-indexer/internal/workflows"
)

// ListContributionsParams holds the filters of ListContributions
type ListContributionsParams struct {
	Day            *uint64
	Author         string
	Category       *domain.Category
	IncludeRemoved bool
	Limit          int
	Offset         int
}

// Executor is the interface for the API executor.
// Single-entity getters return nil, nil when the entity does not exist.
type Executor interface {
	// GetContribution retrieves a contribution by id
	GetContribution(ctx context.Context, id uint64) (*dto.ContributionResponse, error)

	// ListContributions lists contributions ordered by id
	ListContributions(ctx context.Context, params ListContributionsParams) (*dto.ContributionListResponse, error)

	// ListVotes lists the vote records of a contribution
	ListVotes(ctx context.Context, contributionID uint64) (*dto.VoteListResponse, error)

	// GetTopContribution runs the daily selection over the projection of a day bucket,
	// the current day when day is nil
	GetTopContribution(ctx context.Context, day *uint64) (*dto.TopContributionResponse, error)

	// GetProfile retrieves a profile by address
	GetProfile(ctx context.Context, address string) (*dto.ProfileResponse, error)

	// FindProfile retrieves the live profile whose field equals value
	FindProfile(ctx context.Context, field store.ProfileField, value string) (*dto.ProfileResponse, error)

	// GetLeaderboard lists leaderboard entries with the status tier of each address
	GetLeaderboard(ctx context.Context, limit, offset int) (*dto.LeaderboardResponse, error)

	// GetStatus retrieves the status tier of an address
	GetStatus(ctx context.Context, address string) (*dto.StatusResponse, error)

	// ListEvents lists applied event logs in chain order
	ListEvents(ctx context.Context, kind domain.EventKind, naturalKey string, limit, offset int) (*dto.EventLogListResponse, error)

	// GetCurrentDay returns the current day bucket of the projection
	GetCurrentDay(ctx context.Context) (uint64, error)

	// TriggerReplay starts the replay workflow
	TriggerReplay(ctx context.Context, req dto.TriggerReplayRequest) (*dto.TriggerReplayResponse, error)

	// GetReplay returns the execution state of a replay workflow
	GetReplay(ctx context.Context, workflowID string) (*dto.ReplayStatusResponse, error)
}

const replayWorkflowPrefix = "replay-"

type executor struct {
	store                 store.Store
	orchestrator          temporal.TemporalOrchestrator
	orchestratorTaskQueue string
	pool                  pond.ResultPool[*domain.AddressStatus]
}

func NewExecutor(store store.Store, orchestrator temporal.TemporalOrchestrator, orchestratorTaskQueue string) Executor {
	return &executor{
		store:                 store,
		orchestrator:          orchestrator,
		orchestratorTaskQueue: orchestratorTaskQueue,
		pool:                  pond.NewResultPool[*domain.AddressStatus](constants.LOOKUP_WORKERS),
	}
}

func (e *executor) GetContribution(ctx context.Context, id uint64) (*dto.ContributionResponse, error) {
	contribution, err := e.store.GetContribution(ctx, id)
	if err != nil {
		return nil, apierrors.NewDatabaseError(fmt.Sprintf("Failed to get contribution: %v", err))
	}
	if contribution == nil {
		return nil, nil
	}

	response := dto.MapContributionToDTO(*contribution)
	return &response, nil
}

func (e *executor) ListContributions(ctx context.Context, params ListContributionsParams) (*dto.ContributionListResponse, error) {
	limit := normalizeLimit(params.Limit, constants.DEFAULT_CONTRIBUTIONS_LIMIT)
	filter := store.ContributionFilter{
		Day:            params.Day,
		Category:       params.Category,
		IncludeRemoved: params.IncludeRemoved,
		Limit:          limit,
		Offset:         params.Offset,
	}
	if params.Author != "" {
		filter.Author = domain.NormalizeAddress(params.Author)
	}

	contributions, err := e.store.ListContributions(ctx, filter)
	if err != nil {
		return nil, apierrors.NewDatabaseError(fmt.Sprintf("Failed to list contributions: %v", err))
	}

	response := &dto.ContributionListResponse{
		Contributions: make([]dto.ContributionResponse, 0, len(contributions)),
		Offset:        nextOffset(params.Offset, len(contributions), limit),
	}
	for _, c := range contributions {
		response.Contributions = append(response.Contributions, dto.MapContributionToDTO(c))
	}

	return response, nil
}

func (e *executor) ListVotes(ctx context.Context, contributionID uint64) (*dto.VoteListResponse, error) {
	contribution, err := e.store.GetContribution(ctx, contributionID)
	if err != nil {
		return nil, apierrors.NewDatabaseError(fmt.Sprintf("Failed to get contribution: %v", err))
	}
	if contribution == nil {
		return nil, nil
	}

	records, err := e.store.ListVotes(ctx, contributionID)
	if err != nil {
		return nil, apierrors.NewDatabaseError(fmt.Sprintf("Failed to list votes: %v", err))
	}

	response := &dto.VoteListResponse{
		Votes: make([]dto.VoteResponse, 0, len(records)),
	}
	for _, r := range records {
		response.Votes = append(response.Votes, dto.MapVoteToDTO(r))
		if r.IsLive() {
			response.Total += r.Polarity.Delta()
		}
	}

	return response, nil
}

func (e *executor) GetTopContribution(ctx context.Context, day *uint64) (*dto.TopContributionResponse, error) {
	var bucket uint64
	if day != nil {
		bucket = *day
	} else {
		current, err := e.store.GetCurrentDay(ctx)
		if err != nil {
			return nil, apierrors.NewDatabaseError(fmt.Sprintf("Failed to get current day: %v", err))
		}
		bucket = current
	}

	var contributions []domain.Contribution
	for offset := 0; ; offset += constants.DAY_SCAN_PAGE_SIZE {
		page, err := e.store.ListContributions(ctx, store.ContributionFilter{
			Day:    &bucket,
			Limit:  constants.DAY_SCAN_PAGE_SIZE,
			Offset: offset,
		})
		if err != nil {
			return nil, apierrors.NewDatabaseError(fmt.Sprintf("Failed to list contributions: %v", err))
		}
		contributions = append(contributions, page...)
		if len(page) < constants.DAY_SCAN_PAGE_SIZE {
			break
		}
	}

	response := &dto.TopContributionResponse{Day: bucket}
	if winner, ok := upkeep.SelectTop(contributions, bucket); ok {
		c := dto.MapContributionToDTO(winner)
		response.Contribution = &c
	}

	return response, nil
}

func (e *executor) GetProfile(ctx context.Context, address string) (*dto.ProfileResponse, error) {
	profile, err := e.store.GetProfile(ctx, domain.NormalizeAddress(address))
	if err != nil {
		return nil, apierrors.NewDatabaseError(fmt.Sprintf("Failed to get profile: %v", err))
	}
	if profile == nil {
		return nil, nil
	}

	response := dto.MapProfileToDTO(*profile)
	return &response, nil
}

func (e *executor) FindProfile(ctx context.Context, field store.ProfileField, value string) (*dto.ProfileResponse, error) {
	if !store.IsValidProfileField(field) {
		return nil, apierrors.NewValidationError(fmt.Sprintf("Invalid profile field: %s", field))
	}

	profile, err := e.store.FindProfile(ctx, field, value)
	if err != nil {
		return nil, apierrors.NewDatabaseError(fmt.Sprintf("Failed to find profile: %v", err))
	}
	if profile == nil {
		return nil, nil
	}

	response := dto.MapProfileToDTO(*profile)
	return &response, nil
}

func (e *executor) GetLeaderboard(ctx context.Context, limit, offset int) (*dto.LeaderboardResponse, error) {
	limit = normalizeLimit(limit, constants.DEFAULT_LEADERBOARD_LIMIT)
	entries, err := e.store.ListLeaderboard(ctx, limit, offset)
	if err != nil {
		return nil, apierrors.NewDatabaseError(fmt.Sprintf("Failed to list leaderboard: %v", err))
	}

	// Status tiers are looked up concurrently, results keep the submission order
	group := e.pool.NewGroupContext(ctx)
	for _, entry := range entries {
		address := entry.Address
		group.SubmitErr(func() (*domain.AddressStatus, error) {
			return e.store.GetAddressStatus(ctx, address)
		})
	}
	statuses, err := group.Wait()
	if err != nil {
		return nil, apierrors.NewDatabaseError(fmt.Sprintf("Failed to get address statuses: %v", err))
	}

	response := &dto.LeaderboardResponse{
		Entries: make([]dto.LeaderboardEntryResponse, 0, len(entries)),
		Offset:  nextOffset(offset, len(entries), limit),
	}
	for i, entry := range entries {
		row := dto.LeaderboardEntryResponse{
			Address:               entry.Address,
			Username:              entry.Username,
			TopContributionsCount: entry.TopContributionsCount,
		}
		if statuses[i] != nil {
			row.Status = statuses[i].Tier.String()
		}
		response.Entries = append(response.Entries, row)
	}

	return response, nil
}

func (e *executor) GetStatus(ctx context.Context, address string) (*dto.StatusResponse, error) {
	status, err := e.store.GetAddressStatus(ctx, domain.NormalizeAddress(address))
	if err != nil {
		return nil, apierrors.NewDatabaseError(fmt.Sprintf("Failed to get status: %v", err))
	}
	if status == nil {
		return nil, nil
	}

	response := dto.MapStatusToDTO(*status)
	return &response, nil
}

func (e *executor) ListEvents(ctx context.Context, kind domain.EventKind, naturalKey string, limit, offset int) (*dto.EventLogListResponse, error) {
	if kind != "" && !domain.IsValidEventKind(kind) {
		return nil, apierrors.NewValidationError(fmt.Sprintf("Invalid event kind: %s", kind))
	}

	limit = normalizeLimit(limit, constants.DEFAULT_EVENTS_LIMIT)
	logs, err := e.store.ListEventLogs(ctx, store.EventLogFilter{
		Kind:       kind,
		NaturalKey: naturalKey,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return nil, apierrors.NewDatabaseError(fmt.Sprintf("Failed to list events: %v", err))
	}

	response := &dto.EventLogListResponse{
		Events: make([]dto.EventLogResponse, 0, len(logs)),
		Offset: nextOffset(offset, len(logs), limit),
	}
	for _, l := range logs {
		response.Events = append(response.Events, dto.MapEventLogToDTO(l))
	}

	return response, nil
}

func (e *executor) GetCurrentDay(ctx context.Context) (uint64, error) {
	day, err := e.store.GetCurrentDay(ctx)
	if err != nil {
		return 0, apierrors.NewDatabaseError(fmt.Sprintf("Failed to get current day: %v", err))
	}
	return day, nil
}

func (e *executor) TriggerReplay(ctx context.Context, req dto.TriggerReplayRequest) (*dto.TriggerReplayResponse, error) {
	if req.ToBlock != 0 && req.FromBlock > req.ToBlock {
		return nil, apierrors.NewValidationError(fmt.Sprintf("from_block %d is after to_block %d", req.FromBlock, req.ToBlock))
	}
	if req.ChunkSize > constants.MAX_REPLAY_CHUNK_SIZE {
		return nil, apierrors.NewValidationError(fmt.Sprintf("chunk_size must not exceed %d", constants.MAX_REPLAY_CHUNK_SIZE))
	}

	w := workflows.NewReplayer(nil, workflows.ReplayConfig{})
	options := client.StartWorkflowOptions{
		ID:                       fmt.Sprintf("%s%d-%d-%s", replayWorkflowPrefix, req.FromBlock, req.ToBlock, uuid.New().String()),
		TaskQueue:                e.orchestratorTaskQueue,
		WorkflowExecutionTimeout: 6 * time.Hour,
		WorkflowIDReusePolicy:    enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}
	wfRun, err := e.orchestrator.ExecuteWorkflow(ctx, options, w.Replay, workflows.ReplayRequest{
		FromBlock: req.FromBlock,
		ToBlock:   req.ToBlock,
		ChunkSize: req.ChunkSize,
	})
	if err != nil {
		return nil, apierrors.NewServiceError(fmt.Sprintf("Failed to trigger replay: %v", err))
	}

	return &dto.TriggerReplayResponse{
		WorkflowID: wfRun.GetID(),
		RunID:      wfRun.GetRunID(),
	}, nil
}

func (e *executor) GetReplay(ctx context.Context, workflowID string) (*dto.ReplayStatusResponse, error) {
	if !strings.HasPrefix(workflowID, replayWorkflowPrefix) {
		return nil, apierrors.NewValidationError(fmt.Sprintf("%q is not a replay workflow id", workflowID))
	}

	resp, err := e.orchestrator.DescribeWorkflowExecution(ctx, workflowID, "")
	if err != nil {
		var notFound *serviceerror.NotFound
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, apierrors.NewServiceError(fmt.Sprintf("Failed to describe replay: %v", err))
	}

	info := resp.GetWorkflowExecutionInfo()
	response := &dto.ReplayStatusResponse{
		WorkflowID:    info.GetExecution().GetWorkflowId(),
		RunID:         info.GetExecution().GetRunId(),
		Status:        workflowStatus(info.GetStatus()),
		HistoryLength: info.GetHistoryLength(),
	}
	if ts := info.GetStartTime(); ts != nil {
		t := ts.AsTime()
		response.StartTime = &t
	}
	if ts := info.GetCloseTime(); ts != nil {
		t := ts.AsTime()
		response.CloseTime = &t
	}

	return response, nil
}

func workflowStatus(status enums.WorkflowExecutionStatus) string {
	switch status {
	case enums.WORKFLOW_EXECUTION_STATUS_RUNNING:
		return "running"
	case enums.WORKFLOW_EXECUTION_STATUS_COMPLETED:
		return "completed"
	case enums.WORKFLOW_EXECUTION_STATUS_FAILED:
		return "failed"
	case enums.WORKFLOW_EXECUTION_STATUS_CANCELED:
		return "canceled"
	case enums.WORKFLOW_EXECUTION_STATUS_TERMINATED:
		return "terminated"
	case enums.WORKFLOW_EXECUTION_STATUS_CONTINUED_AS_NEW:
		return "continued_as_new"
	case enums.WORKFLOW_EXECUTION_STATUS_TIMED_OUT:
		return "timed_out"
	default:
		return "unknown"
	}
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > constants.MAX_PAGE_SIZE {
		return constants.MAX_PAGE_SIZE
	}
	return limit
}

// nextOffset returns the offset of the next page, nil when the page was not full
func nextOffset(offset, count, limit int) *int {
	if count < limit {
		return nil
	}
	next := offset + count
	return &next
}
