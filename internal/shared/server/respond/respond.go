package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"resume-ats/internal/shared/telemetry"
)

// Error codes returned in ErrorBody.Code.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeNotFound          = "NOT_FOUND"
	CodeLimitReached      = "LIMIT_REACHED"
	CodeStorage           = "STORAGE_ERROR"
	CodeUnsupported       = "UNSUPPORTED_MEDIA_TYPE"
	CodeNotResume         = "NOT_A_RESUME"
	CodeRateLimited       = "RATE_LIMITED"
	CodeAuthFailed        = "AUTH_FAILED"
	CodeAuthNotConfigured = "AUTH_NOT_CONFIGURED"
	CodeInternal          = "INTERNAL_ERROR"
)

// JSON writes payload with the given status.
func JSON(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}

// OK writes a 200 response.
func OK(c *gin.Context, payload any) { JSON(c, http.StatusOK, payload) }

// Accepted writes a 202 response for work that continues in the background.
func Accepted(c *gin.Context, payload any) { JSON(c, http.StatusAccepted, payload) }

// ErrorBody defines the standardized error object.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error logs and sends a standardized error response, aborting the chain.
func Error(c *gin.Context, status int, code, message string, details any) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if userID := c.GetString("userId"); userID != "" {
		fields["user_id"] = userID
	}
	if status >= 500 {
		telemetry.Error("http.error", fields)
	} else {
		telemetry.Warn("http.error", fields)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{Code: code, Message: message, Details: details},
	})
}
