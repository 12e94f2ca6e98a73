package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/feral-file/ff-minter/internal/domain"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Client errors (4xx)
	ErrCodeBadRequest         ErrorCode = "bad_request"
	ErrCodeNotFound           ErrorCode = "not_found"
	ErrCodeValidationFailed   ErrorCode = "validation_failed"
	ErrCodePreconditionFailed ErrorCode = "precondition_failed"
	ErrCodeInvalidState       ErrorCode = "invalid_state"
	ErrCodeBusy               ErrorCode = "busy"

	// Server errors (5xx)
	ErrCodeInternalError     ErrorCode = "internal_error"
	ErrCodeConfiguration     ErrorCode = "configuration_error"
	ErrCodeServiceError      ErrorCode = "service_error"
	ErrCodeChainError        ErrorCode = "chain_error"
	ErrCodeFinalizationError ErrorCode = "finalization_error"
)

// APIError represents a structured API error that carries error code and details
type APIError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
}

func (e *APIError) Error() string {
	jsonErr, _ := json.Marshal(e)
	return string(jsonErr)
}

// Error constructors for common error types
func NewBadRequestError(message string, details ...string) *APIError {
	return &APIError{
		Code:    ErrCodeBadRequest,
		Message: message,
		Details: strings.Join(details, ", "),
	}
}

func NewNotFoundError(message string, details ...string) *APIError {
	return &APIError{
		Code:    ErrCodeNotFound,
		Message: message,
		Details: strings.Join(details, ", "),
	}
}

func NewValidationError(details ...string) *APIError {
	return &APIError{
		Code:    ErrCodeValidationFailed,
		Message: "Validation failed",
		Details: strings.Join(details, ", "),
	}
}

func NewInternalError(message string, details ...string) *APIError {
	return &APIError{
		Code:      ErrCodeInternalError,
		Message:   message,
		Details:   strings.Join(details, ", "),
		Retryable: true,
	}
}

// FromDomainError maps a classified domain error to an HTTP status and API error
func FromDomainError(err error) (int, *APIError) {
	if stderrors.Is(err, domain.ErrSessionNotFound) {
		return http.StatusNotFound, NewNotFoundError("Session not found")
	}

	apiErr := &APIError{
		Message:   err.Error(),
		Retryable: domain.Retryable(err),
	}

	var status int
	switch domain.KindOf(err) {
	case domain.KindConfiguration:
		status, apiErr.Code = http.StatusInternalServerError, ErrCodeConfiguration
	case domain.KindTransport:
		status, apiErr.Code = http.StatusBadGateway, ErrCodeServiceError
	case domain.KindPrecondition:
		status, apiErr.Code = http.StatusPreconditionFailed, ErrCodePreconditionFailed
	case domain.KindChain:
		status, apiErr.Code = http.StatusBadGateway, ErrCodeChainError
	case domain.KindFinalization:
		status, apiErr.Code = http.StatusInternalServerError, ErrCodeFinalizationError
	case domain.KindBusy:
		status, apiErr.Code = http.StatusTooManyRequests, ErrCodeBusy
	case domain.KindState:
		status, apiErr.Code = http.StatusConflict, ErrCodeInvalidState
	default:
		status, apiErr.Code = http.StatusInternalServerError, ErrCodeInternalError
		apiErr.Message = "Internal server error"
	}

	return status, apiErr
}
