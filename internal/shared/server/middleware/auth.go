package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/server/respond"
)

// Auth enforces the static API token on every route except the health
// probe. An empty configured token disables enforcement, which is how
// local development runs.
func Auth(token string) gin.HandlerFunc {
	token = strings.TrimSpace(token)

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if token == "" {
			c.Next()
			return
		}
		if strings.HasPrefix(c.Request.URL.Path, "/api/v1/health") {
			c.Next()
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(header, "Bearer ") {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}
		got := strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		c.Next()
	}
}
