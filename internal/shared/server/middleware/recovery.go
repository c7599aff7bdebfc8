package middleware

import (
	"io"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"resume-ats/internal/shared/server/respond"
	"resume-ats/internal/shared/telemetry"
)

// Recovery turns handler panics into a 500 error response. gin's own stack
// dump is discarded; the panic is logged through telemetry instead.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, rec any) {
		telemetry.Error("http.panic", map[string]any{
			"request_id": RequestIDFromContext(c),
			"error":      rec,
			"stack":      string(debug.Stack()),
			"route":      c.FullPath(),
		})
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "unexpected server error", nil)
	})
}
