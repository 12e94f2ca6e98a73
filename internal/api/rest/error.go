package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apierrors "github.com/feral-file/ff-minter/internal/api/shared/errors"
	"github.com/feral-file/ff-minter/internal/logger"
	"github.com/feral-file/ff-minter/internal/providers/pinata"
	"github.com/feral-file/ff-minter/internal/session"
)

// errorResponse represents a standardized error response
type errorResponse struct {
	Error *apierrors.APIError `json:"error"`
	// Session is the state after a failed action, so the client can render it
	Session *session.Snapshot `json:"session,omitempty"`
}

// respondBadRequest sends a 400 Bad Request response
func respondBadRequest(c *gin.Context, message string, details ...string) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: apierrors.NewBadRequestError(message, details...)})
}

// respondNotFound sends a 404 Not Found response
func respondNotFound(c *gin.Context, message string, details ...string) {
	c.JSON(http.StatusNotFound, errorResponse{Error: apierrors.NewNotFoundError(message, details...)})
}

// respondValidationError sends a 400 Bad Request with validation error
func respondValidationError(c *gin.Context, details string) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: apierrors.NewValidationError(details)})
}

// respondInternalError sends a 500 Internal Server Error response and logs the error
func respondInternalError(c *gin.Context, err error, message string, fields ...zap.Field) {
	logger.ErrorCtx(c.Request.Context(), err, fields...)
	c.JSON(http.StatusInternalServerError, errorResponse{Error: apierrors.NewInternalError(message)})
}

// respondDomainError maps a classified error to its status, attaching the session snapshot if any
func respondDomainError(c *gin.Context, err error, snap *session.Snapshot) {
	status, apiErr := apierrors.FromDomainError(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorCtx(c.Request.Context(), err, zap.String("path", c.Request.URL.Path))
	}

	var nonJSON *pinata.NonJSONResponseError
	if errors.As(err, &nonJSON) {
		apiErr.Details = nonJSON.Body
	}

	c.JSON(status, errorResponse{Error: apiErr, Session: snap})
}
