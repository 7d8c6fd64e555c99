package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	t.Run("without cause", func(t *testing.T) {
		err := New(ErrCodeQuotaExceeded, "Monthly mission limit reached")
		assert.Equal(t, "QUOTA_EXCEEDED: Monthly mission limit reached", err.Error())
	})

	t.Run("with cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Unavailable("Entitlement check failed", cause)
		assert.Contains(t, err.Error(), "SERVICE_UNAVAILABLE")
		assert.Contains(t, err.Error(), "connection refused")
		assert.ErrorIs(t, err, cause)
	})
}

func TestAppError_WithDetails(t *testing.T) {
	details := map[string]int64{"required": 15, "available": 12}
	err := InsufficientTokens("Not enough tokens").WithDetails(details)

	assert.Equal(t, ErrCodeInsufficientTokens, err.Code)
	assert.Equal(t, details, err.Details)
}

func TestAppError_Retryable(t *testing.T) {
	assert.True(t, Unavailable("down", nil).Retryable())
	assert.True(t, RateLimitExceeded().Retryable())
	assert.False(t, QuotaExceeded("limit").Retryable())
	assert.False(t, Forbidden("nope").Retryable())
}

func TestAsAppError(t *testing.T) {
	t.Run("wrapped app error is found", func(t *testing.T) {
		wrapped := fmt.Errorf("gate: %w", Forbidden("workers cannot post missions"))

		appErr, ok := AsAppError(wrapped)
		require.True(t, ok)
		assert.Equal(t, ErrCodeForbidden, appErr.Code)
	})

	t.Run("plain error is not", func(t *testing.T) {
		_, ok := AsAppError(errors.New("plain"))
		assert.False(t, ok)
	})
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeNotFound, GetCode(NotFound("Mission")))
	assert.Equal(t, ErrCodeInternal, GetCode(errors.New("plain")))
	assert.Equal(t, "Mission not found", NotFound("Mission").Message)
}
