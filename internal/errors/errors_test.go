package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsSetCategoryAndStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		category ErrorCategory
		status   int
		message  string
	}{
		{
			name:     "validation",
			err:      NewValidationError("missing pr id"),
			category: CategoryValidation,
			status:   http.StatusBadRequest,
			message:  "[VALIDATION_ERROR] missing pr id",
		},
		{
			name:     "not found",
			err:      NewNotFoundError("contributor", "alice"),
			category: CategoryNotFound,
			status:   http.StatusNotFound,
			message:  "[NOT_FOUND] contributor not found",
		},
		{
			name:     "network",
			err:      NewNetworkError("connection failed", errors.New("dial tcp: refused")),
			category: CategoryNetwork,
			status:   http.StatusBadGateway,
			message:  "[NETWORK_ERROR] connection failed",
		},
		{
			name:     "rate limit",
			err:      NewRateLimitError("60"),
			category: CategoryRateLimit,
			status:   http.StatusTooManyRequests,
		},
		{
			name:     "internal",
			err:      NewInternalError("rating save failed", errors.New("disk full")),
			category: CategoryInternal,
			status:   http.StatusInternalServerError,
			message:  "[INTERNAL_ERROR] Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotNil(t, tt.err)
			assert.Equal(t, tt.category, tt.err.Category)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
			if tt.message != "" {
				assert.Equal(t, tt.message, tt.err.Error())
			}
		})
	}
}

func serveWithHandler(t *testing.T, handler gin.HandlerFunc) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/test", handler)

	w := httptest.NewRecorder()
	req, err := http.NewRequest("GET", "/test", nil)
	require.NoError(t, err)
	r.ServeHTTP(w, req)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return w, response
}

func TestErrorHandlerRendersEnvelope(t *testing.T) {
	w, response := serveWithHandler(t, func(c *gin.Context) {
		Fail(c, NewNotFoundError("Contributor", "alice").
			WithPublicMessage("Contributor does not exist"))
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, false, response["success"])
	assert.Equal(t, "Contributor not found", response["error"])
	assert.Equal(t, "Contributor does not exist", response["message"])
}

func TestErrorHandlerClassifiesPlainErrors(t *testing.T) {
	w, response := serveWithHandler(t, func(c *gin.Context) {
		Fail(c, errors.New("no such table: ratings"))
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, false, response["success"])
	assert.Equal(t, "Internal server error", response["error"])
	assert.Equal(t, "no such table: ratings", response["message"])
}

func TestErrorHandlerLeavesWrittenResponses(t *testing.T) {
	w, response := serveWithHandler(t, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
		_ = c.Error(errors.New("late failure"))
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, response["success"])
}

func TestToAppErrorClassifiesByMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category ErrorCategory
	}{
		{"connection refused", errors.New("dial tcp 127.0.0.1:6379: connection refused"), CategoryNetwork},
		{"no such host", errors.New("lookup api.github.test: no such host"), CategoryNetwork},
		{"timeout", errors.New("request timeout after 30s"), CategoryTimeout},
		{"deadline exceeded", errors.New("context deadline exceeded"), CategoryTimeout},
		{"anything else", errors.New("some unexpected failure"), CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := ToAppError(tt.err)
			require.NotNil(t, appErr)
			assert.Equal(t, tt.category, appErr.Category)
		})
	}
}

func TestToAppErrorPassthrough(t *testing.T) {
	original := NewNotFoundError("organization", "acme")
	assert.Same(t, original, ToAppError(original))
	assert.Nil(t, ToAppError(nil))
}

func TestUnwrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	appErr := NewInternalError("rating save failed", cause)

	assert.ErrorIs(t, appErr, cause)
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, IsRetryableError(NewNetworkError("down", nil)))
	assert.True(t, IsRetryableError(NewTimeoutError("slow", nil)))
	assert.True(t, IsRetryableError(NewRateLimitError("60")))
	assert.False(t, IsRetryableError(NewValidationError("bad input")))
	assert.False(t, IsRetryableError(NewNotFoundError("contributor", "x")))
}

func TestGetRetryDelayGrowsWithAttempts(t *testing.T) {
	netErr := NewNetworkError("down", nil)
	assert.Less(t, GetRetryDelay(netErr, 1), GetRetryDelay(netErr, 3))

	rateErr := NewRateLimitError("60")
	assert.Equal(t, 4*time.Second, GetRetryDelay(rateErr, 2))
}

func TestWrapError(t *testing.T) {
	cause := errors.New("no such table")
	wrapped := WrapError(cause, "saving rating %s", "pr-1")

	require.Error(t, wrapped)
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, "saving rating pr-1: no such table", wrapped.Error())

	assert.NoError(t, WrapError(nil, "ignored"))
}

type closeRecorder struct {
	closed bool
	err    error
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return c.err
}

func TestSafeClose(t *testing.T) {
	rec := &closeRecorder{}
	SafeClose(rec, "recorder")
	assert.True(t, rec.closed)

	// Errors are logged, not returned.
	SafeClose(&closeRecorder{err: fmt.Errorf("already closed")}, "recorder")
	SafeClose(nil, "missing")
}
