package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	commonpb "go.temporal.io/api/common/v1"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	workflowpb "go.temporal.io/api/workflow/v1"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	temporalmocks "go.temporal.io/sdk/mocks"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/amplifrens/amplifrens-indexer/internal/api/middleware"
	"github.com/amplifrens/amplifrens-indexer/internal/api/server"
	"github.com/amplifrens/amplifrens-indexer/internal/api/shared/dto"
	apierrors "github.com/amplifrens/amplifrens-indexer/internal/api/shared/errors"
	"github.com/amplifrens/amplifrens-indexer/internal/domain"
	"github.com/amplifrens/amplifrens-indexer/internal/logger"
	"github.com/amplifrens/amplifrens-indexer/internal/mocks"
	"github.com/amplifrens/amplifrens-indexer/internal/store"
	"github.com/amplifrens/amplifrens-indexer/internal/workflows"
)

const (
	alice = "0x00000000000000000000000000000000000a11ce"
	bob   = "0x0000000000000000000000000000000000000b0b"
	carol = "0x00000000000000000000000000000000000ca201"
	dave  = "0x000000000000000000000000000000000000da7e"

	apiKey = "test-api-key"
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: false}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func seedStore(t *testing.T) store.Store {
	t.Helper()
	st := store.NewMemoryStore()

	err := st.WithTx(context.Background(), func(tx store.Tx) error {
		ctx := context.Background()
		contributions := []domain.Contribution{
			{ID: 1, Author: alice, Status: domain.StatusLive, Category: domain.CategoryDeFi, Title: "Stablecoins", URL: "https://www.dummy.xyz", Votes: 1, DayCounter: 1, BestContribution: true, HasProfile: true, Username: "alice"},
			{ID: 2, Author: bob, Status: domain.StatusLive, Category: domain.CategoryNFT, Title: "Generative art", URL: "https://www.art.xyz", Votes: 5, DayCounter: 2},
			{ID: 3, Author: alice, Status: domain.StatusLive, Category: domain.CategoryNFT, Title: "PFPs", URL: "https://www.pfp.xyz", Votes: 5, DayCounter: 2},
			{ID: 4, Author: carol, Status: domain.StatusRemoved, Category: domain.CategoryMisc, Title: "Spam", URL: "https://www.spam.xyz", Votes: 10, DayCounter: 2},
		}
		for i := range contributions {
			if err := tx.CreateContribution(ctx, &contributions[i]); err != nil {
				return err
			}
		}

		votes := []domain.VoteRecord{
			{ContributionID: 1, Voter: bob, Polarity: domain.PolarityUp, Status: domain.StatusLive},
			{ContributionID: 1, Voter: carol, Polarity: domain.PolarityUp, Status: domain.StatusLive},
			{ContributionID: 1, Voter: dave, Polarity: domain.PolarityDown, Status: domain.StatusLive},
			{ContributionID: 1, Voter: dave, Polarity: domain.PolarityUp, Status: domain.StatusSuperseded},
		}
		for i := range votes {
			if err := tx.SaveVote(ctx, &votes[i]); err != nil {
				return err
			}
		}

		profiles := []domain.Profile{
			{Address: alice, Status: domain.StatusLive, Username: "alice", LensHandle: "alice.lens", Email: "alice@frens.xyz"},
			{Address: bob, Status: domain.StatusBlacklisted, Username: "bob", BlacklistReason: "Spam"},
		}
		for i := range profiles {
			if err := tx.SaveProfile(ctx, &profiles[i]); err != nil {
				return err
			}
		}

		if err := tx.SaveLeaderboardEntry(ctx, &domain.LeaderboardEntry{Address: alice, Username: "alice", TopContributionsCount: 2}); err != nil {
			return err
		}
		if err := tx.SaveLeaderboardEntry(ctx, &domain.LeaderboardEntry{Address: bob, TopContributionsCount: 1}); err != nil {
			return err
		}
		if err := tx.SaveAddressStatus(ctx, &domain.AddressStatus{Address: alice, Tier: domain.TierRookie}); err != nil {
			return err
		}

		if err := tx.AppendEventLog(ctx, &domain.EventLog{
			TxHash:      "0xaaa",
			BlockNumber: 1,
			Kind:        domain.EventContributionCreated,
			NaturalKey:  "1",
			Payload:     []byte(`{"contribution_id":1}`),
		}); err != nil {
			return err
		}
		if err := tx.AppendEventLog(ctx, &domain.EventLog{
			TxHash:      "0xbbb",
			BlockNumber: 2,
			Kind:        domain.EventContributionUpvoted,
			NaturalKey:  "1-" + bob,
			Payload:     []byte(`{"contribution_id":1}`),
		}); err != nil {
			return err
		}

		return tx.SetCurrentDay(ctx, 2)
	})
	require.NoError(t, err)

	return st
}

type testServer struct {
	handler      http.Handler
	orchestrator *mocks.MockTemporalOrchestrator
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	ctrl := gomock.NewController(t)
	orchestrator := mocks.NewMockTemporalOrchestrator(ctrl)

	srv, err := server.New(server.Config{
		OrchestratorTaskQueue: "replay-task-queue",
		Auth:                  middleware.AuthConfig{APIKeys: []string{apiKey}},
	}, seedStore(t), orchestrator)
	require.NoError(t, err)

	return &testServer{handler: srv.Handler(), orchestrator: orchestrator}
}

func (s *testServer) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s := setupServer(t)

	rec := s.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[dto.HealthResponse](t, rec)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, uint64(2), health.CurrentDay)
}

func TestContributions(t *testing.T) {
	s := setupServer(t)

	t.Run("get", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/v1/contributions/1", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		c := decode[dto.ContributionResponse](t, rec)
		assert.Equal(t, "1", c.ID)
		assert.Equal(t, alice, c.Author)
		assert.Equal(t, "defi", c.CategoryName)
		assert.True(t, c.BestContribution)
		assert.Equal(t, "Rookie", c.FromStatus)
	})

	t.Run("removed reports the dead address", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/v1/contributions/4", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		c := decode[dto.ContributionResponse](t, rec)
		assert.Equal(t, domain.DeadAddress, c.Author)
		assert.Equal(t, string(domain.StatusRemoved), c.Status)
	})

	t.Run("not found", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/v1/contributions/42", "", nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
		body := decode[apierrors.ErrorResponse](t, rec)
		assert.Equal(t, apierrors.ErrCodeNotFound, body.Error.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/v1/contributions/abc", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("list live by day", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/v1/contributions?day=2", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		list := decode[dto.ContributionListResponse](t, rec)
		require.Len(t, list.Contributions, 2)
		assert.Equal(t, "2", list.Contributions[0].ID)
		assert.Equal(t, "3", list.Contributions[1].ID)
		assert.Nil(t, list.Offset)
	})

	t.Run("list including removed", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/v1/contributions?include_removed=true", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[dto.ContributionListResponse](t, rec).Contributions, 4)
	})

	t.Run("list by author and category", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/v1/contributions?author="+alice+"&category=4", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, decode[dto.ContributionListResponse](t, rec).Contributions)

		rec = s.do(t, http.MethodGet, "/api/v1/contributions?author="+alice+"&category=0", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		list := decode[dto.ContributionListResponse](t, rec)
		require.Len(t, list.Contributions, 1)
		assert.Equal(t, "3", list.Contributions[0].ID)
	})

	t.Run("pagination", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/v1/contributions?limit=2", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		list := decode[dto.ContributionListResponse](t, rec)
		require.Len(t, list.Contributions, 2)
		require.NotNil(t, list.Offset)
		assert.Equal(t, 2, *list.Offset)
	})

	t.Run("invalid filters", func(t *testing.T) {
		for _, query := range []string{"category=8", "author=0xdead", "limit=0", "limit=1000"} {
			rec := s.do(t, http.MethodGet, "/api/v1/contributions?"+query, "", nil)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, query)
		}
		rec := s.do(t, http.MethodGet, "/api/v1/contributions?day=yesterday", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("votes", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/v1/contributions/1/votes", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		votes := decode[dto.VoteListResponse](t, rec)
		assert.Len(t, votes.Votes, 4)
		assert.Equal(t, int64(1), votes.Total)

		var superseded int
		for _, v := range votes.Votes {
			if v.Status == string(domain.StatusSuperseded) {
				superseded++
				assert.Equal(t, domain.DeadAddress, v.Voter)
			}
		}
		assert.Equal(t, 1, superseded)

		rec = s.do(t, http.MethodGet, "/api/v1/contributions/42/votes", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestTopContribution(t *testing.T) {
	s := setupServer(t)

	// Ties go to the lowest id and removed contributions never compete
	rec := s.do(t, http.MethodGet, "/api/v1/contributions/top", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	top := decode[dto.TopContributionResponse](t, rec)
	assert.Equal(t, uint64(2), top.Day)
	require.NotNil(t, top.Contribution)
	assert.Equal(t, "2", top.Contribution.ID)

	rec = s.do(t, http.MethodGet, "/api/v1/contributions/top?day=1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	top = decode[dto.TopContributionResponse](t, rec)
	require.NotNil(t, top.Contribution)
	assert.Equal(t, "1", top.Contribution.ID)

	rec = s.do(t, http.MethodGet, "/api/v1/contributions/top?day=9", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[dto.TopContributionResponse](t, rec).Contribution)
}

func TestProfiles(t *testing.T) {
	s := setupServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/profiles/"+alice, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decode[dto.ProfileResponse](t, rec)
	assert.Equal(t, alice, profile.Address)
	assert.Equal(t, "alice.lens", profile.LensHandle)

	rec = s.do(t, http.MethodGet, "/api/v1/profiles/"+bob, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	blacklisted := decode[dto.ProfileResponse](t, rec)
	assert.Equal(t, domain.DeadAddress, blacklisted.Address)
	assert.Equal(t, "Spam", blacklisted.BlacklistReason)

	rec = s.do(t, http.MethodGet, "/api/v1/profiles/"+carol, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/profiles/not-an-address", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/profiles?email=alice@frens.xyz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, alice, decode[dto.ProfileResponse](t, rec).Address)

	// Tombstoned profiles do not own their handles
	rec = s.do(t, http.MethodGet, "/api/v1/profiles?username=bob", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/profiles?username=alice&email=alice@frens.xyz", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/v1/profiles", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestLeaderboardAndStatuses(t *testing.T) {
	s := setupServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	board := decode[dto.LeaderboardResponse](t, rec)
	require.Len(t, board.Entries, 2)
	assert.Equal(t, alice, board.Entries[0].Address)
	assert.Equal(t, uint64(2), board.Entries[0].TopContributionsCount)
	assert.Equal(t, "Rookie", board.Entries[0].Status)
	assert.Equal(t, bob, board.Entries[1].Address)
	assert.Empty(t, board.Entries[1].Status)

	rec = s.do(t, http.MethodGet, "/api/v1/leaderboard?limit=1&offset=1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	board = decode[dto.LeaderboardResponse](t, rec)
	require.Len(t, board.Entries, 1)
	assert.Equal(t, bob, board.Entries[0].Address)

	rec = s.do(t, http.MethodGet, "/api/v1/statuses/"+alice, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[dto.StatusResponse](t, rec)
	assert.Equal(t, uint8(domain.TierRookie), status.Tier)
	assert.Equal(t, "Rookie", status.Name)

	rec = s.do(t, http.MethodGet, "/api/v1/statuses/"+dave, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEvents(t *testing.T) {
	s := setupServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/events", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[dto.EventLogListResponse](t, rec)
	require.Len(t, events.Events, 2)
	assert.Equal(t, "0xaaa", events.Events[0].TxHash)
	assert.JSONEq(t, `{"contribution_id":1}`, string(events.Events[0].Payload))

	rec = s.do(t, http.MethodGet, "/api/v1/events?kind=contribution_upvoted&key=1-"+bob, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events = decode[dto.EventLogListResponse](t, rec)
	require.Len(t, events.Events, 1)
	assert.Equal(t, "0xbbb", events.Events[0].TxHash)

	rec = s.do(t, http.MethodGet, "/api/v1/events?kind=transfer", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestTriggerReplay(t *testing.T) {
	auth := map[string]string{"Authorization": "ApiKey " + apiKey}

	t.Run("requires authentication", func(t *testing.T) {
		s := setupServer(t)
		rec := s.do(t, http.MethodPost, "/api/v1/admin/replays", `{"from_block":1}`, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = s.do(t, http.MethodPost, "/api/v1/admin/replays", `{"from_block":1}`, map[string]string{"Authorization": "ApiKey wrong"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("starts the workflow", func(t *testing.T) {
		s := setupServer(t)
		run := &temporalmocks.WorkflowRun{}
		run.On("GetID").Return("replay-10-20-id")
		run.On("GetRunID").Return("run-id")

		s.orchestrator.EXPECT().
			ExecuteWorkflow(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, options client.StartWorkflowOptions, _ interface{}, args ...interface{}) (client.WorkflowRun, error) {
				assert.Equal(t, "replay-task-queue", options.TaskQueue)
				assert.True(t, strings.HasPrefix(options.ID, "replay-10-20-"))
				require.Len(t, args, 1)
				assert.Equal(t, workflows.ReplayRequest{FromBlock: 10, ToBlock: 20, ChunkSize: 5}, args[0])
				return run, nil
			})

		rec := s.do(t, http.MethodPost, "/api/v1/admin/replays", `{"from_block":10,"to_block":20,"chunk_size":5}`, auth)
		require.Equal(t, http.StatusAccepted, rec.Code)
		response := decode[dto.TriggerReplayResponse](t, rec)
		assert.Equal(t, "replay-10-20-id", response.WorkflowID)
		assert.Equal(t, "run-id", response.RunID)
	})

	t.Run("rejects an empty range", func(t *testing.T) {
		s := setupServer(t)
		rec := s.do(t, http.MethodPost, "/api/v1/admin/replays", `{"from_block":20,"to_block":10}`, auth)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		rec = s.do(t, http.MethodPost, "/api/v1/admin/replays", `{"from_block":1,"chunk_size":100000}`, auth)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		rec = s.do(t, http.MethodPost, "/api/v1/admin/replays", `not json`, auth)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("orchestrator failure", func(t *testing.T) {
		s := setupServer(t)
		s.orchestrator.EXPECT().
			ExecuteWorkflow(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, errors.New("temporal unavailable"))

		rec := s.do(t, http.MethodPost, "/api/v1/admin/replays", `{"from_block":1}`, auth)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		body := decode[apierrors.ErrorResponse](t, rec)
		assert.Equal(t, apierrors.ErrCodeServiceError, body.Error.Code)
	})
}

func TestGetReplay(t *testing.T) {
	auth := map[string]string{"Authorization": "ApiKey " + apiKey}
	started := time.Date(2022, 10, 2, 12, 0, 0, 0, time.UTC)

	t.Run("requires authentication", func(t *testing.T) {
		s := setupServer(t)
		rec := s.do(t, http.MethodGet, "/api/v1/admin/replays/replay-1-0-id", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("running replay", func(t *testing.T) {
		s := setupServer(t)
		s.orchestrator.EXPECT().
			DescribeWorkflowExecution(gomock.Any(), "replay-1-0-id", "").
			Return(&workflowservice.DescribeWorkflowExecutionResponse{
				WorkflowExecutionInfo: &workflowpb.WorkflowExecutionInfo{
					Execution:     &commonpb.WorkflowExecution{WorkflowId: "replay-1-0-id", RunId: "run-id"},
					Status:        enums.WORKFLOW_EXECUTION_STATUS_RUNNING,
					StartTime:     timestamppb.New(started),
					HistoryLength: 12,
				},
			}, nil)

		rec := s.do(t, http.MethodGet, "/api/v1/admin/replays/replay-1-0-id", "", auth)
		require.Equal(t, http.StatusOK, rec.Code)
		response := decode[dto.ReplayStatusResponse](t, rec)
		assert.Equal(t, "replay-1-0-id", response.WorkflowID)
		assert.Equal(t, "run-id", response.RunID)
		assert.Equal(t, "running", response.Status)
		require.NotNil(t, response.StartTime)
		assert.True(t, started.Equal(*response.StartTime))
		assert.Nil(t, response.CloseTime)
		assert.Equal(t, int64(12), response.HistoryLength)
	})

	t.Run("unknown replay", func(t *testing.T) {
		s := setupServer(t)
		s.orchestrator.EXPECT().
			DescribeWorkflowExecution(gomock.Any(), "replay-9-9-id", "").
			Return(nil, serviceerror.NewNotFound("workflow not found"))

		rec := s.do(t, http.MethodGet, "/api/v1/admin/replays/replay-9-9-id", "", auth)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("not a replay workflow", func(t *testing.T) {
		s := setupServer(t)
		rec := s.do(t, http.MethodGet, "/api/v1/admin/replays/upkeep-1", "", auth)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("orchestrator failure", func(t *testing.T) {
		s := setupServer(t)
		s.orchestrator.EXPECT().
			DescribeWorkflowExecution(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, errors.New("temporal unavailable"))

		rec := s.do(t, http.MethodGet, "/api/v1/admin/replays/replay-1-0-id", "", auth)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	s := setupServer(t)
	s.do(t, http.MethodGet, "/health", "", nil)

	rec := s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "amplifrens_api_request_duration_seconds")
}
