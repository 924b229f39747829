package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amplifrens/amplifrens-indexer/internal/api/shared/dto"
	"github.com/amplifrens/amplifrens-indexer/internal/api/shared/executor"
	"github.com/amplifrens/amplifrens-indexer/internal/domain"
)

// Handler defines the interface for REST API handlers
type Handler interface {
	// GetContribution retrieves a contribution by id
	// GET /api/v1/contributions/:id
	GetContribution(c *gin.Context)

	// ListContributions lists contributions ordered by id
	// GET /api/v1/contributions?day=<day>&author=<address>&category=<0-7>&include_removed=<bool>&limit=<limit>&offset=<offset>
	ListContributions(c *gin.Context)

	// ListVotes lists the vote records of a contribution
	// GET /api/v1/contributions/:id/votes
	ListVotes(c *gin.Context)

	// GetTopContribution returns the contribution the next upkeep would reward
	// GET /api/v1/contributions/top?day=<day>
	GetTopContribution(c *gin.Context)

	// GetProfile retrieves a profile by address
	// GET /api/v1/profiles/:address
	GetProfile(c *gin.Context)

	// FindProfile retrieves the live profile owning a unique field
	// GET /api/v1/profiles?username=<name> (or lens_handle, discord_handle, twitter_handle, email)
	FindProfile(c *gin.Context)

	// GetLeaderboard lists addresses by badges earned
	// GET /api/v1/leaderboard?limit=<limit>&offset=<offset>
	GetLeaderboard(c *gin.Context)

	// GetStatus retrieves the status tier of an address
	// GET /api/v1/statuses/:address
	GetStatus(c *gin.Context)

	// ListEvents lists applied event logs in chain order
	// GET /api/v1/events?kind=<kind>&key=<natural key>&limit=<limit>&offset=<offset>
	ListEvents(c *gin.Context)

	// TriggerReplay starts a replay workflow (requires authentication)
	// POST /api/v1/admin/replays
	TriggerReplay(c *gin.Context)

	// GetReplay returns the execution state of a replay workflow (requires authentication)
	// GET /api/v1/admin/replays/:workflow_id
	GetReplay(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	executor executor.Executor
}

// NewHandler creates a new REST API handler using the shared executor
func NewHandler(exec executor.Executor) Handler {
	return &handler{
		executor: exec,
	}
}

func (h *handler) GetContribution(c *gin.Context) {
	id, err := domain.ParseID(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "Invalid contribution id", c.Param("id"))
		return
	}

	contribution, err := h.executor.GetContribution(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to get contribution")
		return
	}
	if contribution == nil {
		respondNotFound(c, "Contribution not found")
		return
	}

	c.JSON(http.StatusOK, contribution)
}

func (h *handler) ListContributions(c *gin.Context) {
	var params ListContributionsQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		respondBadRequest(c, "Invalid query parameters", err.Error())
		return
	}
	if err := params.Validate(); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	listParams := executor.ListContributionsParams{
		Day:            params.Day,
		Author:         params.Author,
		IncludeRemoved: params.IncludeRemoved,
		Limit:          params.Limit,
		Offset:         params.Offset,
	}
	if params.Category != nil {
		category := domain.Category(*params.Category)
		listParams.Category = &category
	}

	response, err := h.executor.ListContributions(c.Request.Context(), listParams)
	if err != nil {
		respondError(c, err, "Failed to list contributions")
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *handler) ListVotes(c *gin.Context) {
	id, err := domain.ParseID(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "Invalid contribution id", c.Param("id"))
		return
	}

	response, err := h.executor.ListVotes(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to list votes")
		return
	}
	if response == nil {
		respondNotFound(c, "Contribution not found")
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *handler) GetTopContribution(c *gin.Context) {
	var params TopContributionQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		respondBadRequest(c, "Invalid query parameters", err.Error())
		return
	}

	response, err := h.executor.GetTopContribution(c.Request.Context(), params.Day)
	if err != nil {
		respondError(c, err, "Failed to select top contribution")
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *handler) GetProfile(c *gin.Context) {
	address := c.Param("address")
	if !domain.IsRealAddress(address) {
		respondValidationError(c, "Invalid address: "+address)
		return
	}

	profile, err := h.executor.GetProfile(c.Request.Context(), address)
	if err != nil {
		respondError(c, err, "Failed to get profile")
		return
	}
	if profile == nil {
		respondNotFound(c, "Profile not found")
		return
	}

	c.JSON(http.StatusOK, profile)
}

func (h *handler) FindProfile(c *gin.Context) {
	var params FindProfileQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		respondBadRequest(c, "Invalid query parameters", err.Error())
		return
	}
	field, value, err := params.Lookup()
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	profile, err := h.executor.FindProfile(c.Request.Context(), field, value)
	if err != nil {
		respondError(c, err, "Failed to find profile")
		return
	}
	if profile == nil {
		respondNotFound(c, "Profile not found")
		return
	}

	c.JSON(http.StatusOK, profile)
}

func (h *handler) GetLeaderboard(c *gin.Context) {
	var params PaginationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		respondBadRequest(c, "Invalid query parameters", err.Error())
		return
	}
	if err := params.Validate(); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	response, err := h.executor.GetLeaderboard(c.Request.Context(), params.Limit, params.Offset)
	if err != nil {
		respondError(c, err, "Failed to get leaderboard")
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *handler) GetStatus(c *gin.Context) {
	address := c.Param("address")
	if !domain.IsRealAddress(address) {
		respondValidationError(c, "Invalid address: "+address)
		return
	}

	status, err := h.executor.GetStatus(c.Request.Context(), address)
	if err != nil {
		respondError(c, err, "Failed to get status")
		return
	}
	if status == nil {
		respondNotFound(c, "Status not found", domain.ErrNoTokens.Error())
		return
	}

	c.JSON(http.StatusOK, status)
}

func (h *handler) ListEvents(c *gin.Context) {
	var params ListEventsQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		respondBadRequest(c, "Invalid query parameters", err.Error())
		return
	}
	if err := params.Validate(); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	response, err := h.executor.ListEvents(c.Request.Context(), domain.EventKind(params.Kind), params.Key, params.Limit, params.Offset)
	if err != nil {
		respondError(c, err, "Failed to list events")
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *handler) TriggerReplay(c *gin.Context) {
	var req dto.TriggerReplayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}

	response, err := h.executor.TriggerReplay(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Failed to trigger replay")
		return
	}

	c.JSON(http.StatusAccepted, response)
}

func (h *handler) GetReplay(c *gin.Context) {
	response, err := h.executor.GetReplay(c.Request.Context(), c.Param("workflow_id"))
	if err != nil {
		respondError(c, err, "Failed to get replay")
		return
	}
	if response == nil {
		respondNotFound(c, "Replay not found")
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *handler) HealthCheck(c *gin.Context) {
	day, err := h.executor.GetCurrentDay(c.Request.Context())
	if err != nil {
		respondError(c, err, "Store unavailable")
		return
	}

	c.JSON(http.StatusOK, dto.HealthResponse{
		Status:     "ok",
		CurrentDay: day,
	})
}
