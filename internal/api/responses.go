package api

import (
	"net/http"

	"mijob/internal/apperrors"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every failed request. Entitlement denials carry
// numeric details (used/limit/remaining or required/available) in Details.
type ErrorResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message" example:"something went wrong"`
	Code    apperrors.ErrorCode `json:"code" example:"INTERNAL_ERROR"`
	Details any                 `json:"details,omitempty"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message" example:"ok"`
}

type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

// WriteError writes err as an ErrorResponse. Errors that are not AppErrors are
// reported as internal errors without leaking their text.
func WriteError(c *gin.Context, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.Internal("An unexpected error occurred")
	}
	c.JSON(StatusFromCode(appErr.Code), ErrorResponse{
		Success: false,
		Message: appErr.Message,
		Code:    appErr.Code,
		Details: appErr.Details,
	})
}

// AbortWithError is WriteError for middleware.
func AbortWithError(c *gin.Context, err error) {
	WriteError(c, err)
	c.Abort()
}

func BadRequest(c *gin.Context, message string) {
	WriteError(c, apperrors.ValidationError(message))
}

func StatusFromCode(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeValidation, apperrors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case apperrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrCodeSubscriptionRequired,
		apperrors.ErrCodeQuotaExceeded,
		apperrors.ErrCodeInsufficientTokens:
		return http.StatusPaymentRequired
	case apperrors.ErrCodeForbidden:
		return http.StatusForbidden
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeConflict:
		return http.StatusConflict
	case apperrors.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case apperrors.ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
