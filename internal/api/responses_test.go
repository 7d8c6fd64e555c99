package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"mijob/internal/apperrors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   apperrors.ErrorCode
	}{
		{"quota denial", apperrors.QuotaExceeded("limit reached"), http.StatusPaymentRequired, apperrors.ErrCodeQuotaExceeded},
		{"token denial", apperrors.InsufficientTokens("need more"), http.StatusPaymentRequired, apperrors.ErrCodeInsufficientTokens},
		{"role denial", apperrors.Forbidden("workers cannot"), http.StatusForbidden, apperrors.ErrCodeForbidden},
		{"gate store failure", apperrors.Unavailable("retry", errors.New("db down")), http.StatusServiceUnavailable, apperrors.ErrCodeUnavailable},
		{"plain error", errors.New("pq: secret detail"), http.StatusInternalServerError, apperrors.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			WriteError(c, tt.err)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.expectedCode, body.Code)
			assert.NotContains(t, body.Message, "secret detail")
		})
	}
}

func TestWriteError_Details(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	WriteError(c, apperrors.QuotaExceeded("limit").WithDetails(map[string]int{"used": 3, "limit": 3}))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	details := body["details"].(map[string]any)
	assert.Equal(t, float64(3), details["used"])
	assert.Equal(t, float64(3), details["limit"])
}
