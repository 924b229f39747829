package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apierrors "github.com/amplifrens/amplifrens-indexer/internal/api/shared/errors"
	"github.com/amplifrens/amplifrens-indexer/internal/logger"
)

// respondError responds with the status of an executor error
func respondError(c *gin.Context, err error, message string) {
	var apiErr *apierrors.APIError
	if !errors.As(err, &apiErr) {
		apiErr = apierrors.FromError(err, message)
	}

	if apiErr.StatusCode() >= http.StatusInternalServerError {
		logger.ErrorCtx(c.Request.Context(), err,
			zap.String("message", message),
			zap.String("path", c.Request.URL.Path),
		)
	}

	c.JSON(apiErr.StatusCode(), apierrors.ErrorResponse{Error: apiErr})
}

// respondBadRequest responds with a bad request error
func respondBadRequest(c *gin.Context, message string, details ...string) {
	c.JSON(http.StatusBadRequest, apierrors.ErrorResponse{Error: apierrors.NewBadRequestError(message, details...)})
}

// respondNotFound responds with a not found error
func respondNotFound(c *gin.Context, message string, details ...string) {
	c.JSON(http.StatusNotFound, apierrors.ErrorResponse{Error: apierrors.NewNotFoundError(message, details...)})
}

// respondValidationError responds with a validation error
func respondValidationError(c *gin.Context, message string) {
	c.JSON(http.StatusUnprocessableEntity, apierrors.ErrorResponse{Error: apierrors.NewValidationError(message)})
}
