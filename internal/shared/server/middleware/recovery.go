package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/server/respond"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/telemetry"
)

// Recovery converts handler panics into a 500 response so a single bad
// request cannot take down the API process. The stack is logged with the
// request id so the panic can be matched to the request that triggered it.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				telemetry.Error("panic recovered", map[string]any{
					"request_id": RequestIDFromContext(c),
					"error":      rec,
					"stack":      string(debug.Stack()),
					"path":       c.Request.URL.Path,
					"method":     c.Request.Method,
					"client_ip":  c.ClientIP(),
				})
				respond.Error(c, http.StatusInternalServerError, "internal_error", "unexpected server error", nil)
				c.Abort()
			}
		}()
		c.Next()
	}
}
