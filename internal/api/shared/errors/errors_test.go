package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/feral-file/ff-minter/internal/domain"
)

func TestFromDomainError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		code      ErrorCode
		retryable bool
	}{
		{"session not found", domain.ErrSessionNotFound, http.StatusNotFound, ErrCodeNotFound, false},
		{"missing credentials", domain.ErrMissingCredentials, http.StatusInternalServerError, ErrCodeConfiguration, false},
		{"non json", domain.NewError(domain.KindTransport, "pin json", domain.ErrNonJSONResponse), http.StatusBadGateway, ErrCodeServiceError, true},
		{"already minted", domain.ErrAlreadyMinted, http.StatusPreconditionFailed, ErrCodePreconditionFailed, false},
		{"reverted", domain.ErrTransactionReverted, http.StatusBadGateway, ErrCodeChainError, true},
		{"finalization", domain.ErrFinalizationFailed, http.StatusInternalServerError, ErrCodeFinalizationError, false},
		{"debounced", domain.ErrDebounced, http.StatusTooManyRequests, ErrCodeBusy, true},
		{"transition", domain.ErrInvalidTransition, http.StatusConflict, ErrCodeInvalidState, false},
		{"unknown", errors.New("pq: password authentication failed"), http.StatusInternalServerError, ErrCodeInternalError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, apiErr := FromDomainError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, apiErr.Code)
			assert.Equal(t, tt.retryable, apiErr.Retryable)
		})
	}
}

func TestFromDomainError_HidesInternalDetails(t *testing.T) {
	_, apiErr := FromDomainError(errors.New("pq: password authentication failed"))
	assert.Equal(t, "Internal server error", apiErr.Message)
}

func TestAPIError_Error(t *testing.T) {
	err := NewBadRequestError("bad", "a", "b")
	assert.JSONEq(t, `{"code":"bad_request","message":"bad","details":"a, b","retryable":false}`, err.Error())
}
