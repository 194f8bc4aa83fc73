package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"ispledger/internal/core/apperror"
	"ispledger/pkg/logger"
)

// ErrorHandler middleware transforms errors into consistent JSON responses.
// Hides internal errors from clients while logging full details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		// If response already written by handler, do not override it.
		if c.Writer.Written() {
			return
		}

		status, body := errorResponse(c, err)

		// A replay of this key must see the same failure.
		if raw, mErr := json.Marshal(body); mErr == nil {
			failIdempotency(c, status, raw)
		}

		c.JSON(status, body)
	}
}

func errorResponse(c *gin.Context, err error) (int, gin.H) {
	ctx := c.Request.Context()

	if appErr, ok := apperror.AsAppError(err); ok {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		if appErr.Err != nil && status >= http.StatusInternalServerError {
			logger.Error(ctx, "request error", "code", appErr.Code, "cause", appErr.Err)
		}
		return status, gin.H{
			"code":      appErr.Code,
			"message":   appErr.Message,
			"details":   appErr.Details,
			"retryable": apperror.IsRetryable(appErr),
		}
	}

	// Unknown error - log and return generic message
	logger.Error(ctx, "unhandled error", "error", err)

	return http.StatusInternalServerError, gin.H{
		"code":    apperror.CodeInternal,
		"message": "Internal server error",
		"details": map[string]any{
			"request_id": c.GetString("request_id"),
		},
		"retryable": true,
	}
}
