package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/analysis"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/report"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/services/health"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/config"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/metrics"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/server/middleware"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/server/respond"
)

// RouterDeps carries the wired handlers and services the router mounts.
// Handlers left nil are simply not registered, which keeps partial
// assemblies (tests, worker-only deployments) cheap.
type RouterDeps struct {
	Config   config.Config
	Health   *health.Service
	Analysis *analysis.Handler
	Report   *report.Handler
}

// NewRouter constructs the gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(deps.Config.APIToken),
		middleware.RateLimit(rateLimits()),
	)

	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService()
	}

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, healthSvc.Status(c.Request.Context()))
	})
	api.GET("/metrics", metrics.Handler())

	if deps.Analysis != nil {
		deps.Analysis.RegisterRoutes(api)
	}
	if deps.Report != nil {
		deps.Report.RegisterRoutes(api)
	}

	return r
}

// rateLimits lets dashboard polling read faster than mutating calls.
func rateLimits() middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		DefaultGroup: "DEFAULT",
		GroupFor: func(c *gin.Context) string {
			if c.Request.Method == http.MethodGet {
				switch c.FullPath() {
				case "/api/v1/windows", "/api/v1/windows/:start/results", "/api/v1/windows/:start/report":
					return "POLLING"
				}
			}
			return "DEFAULT"
		},
		Rules: map[string]middleware.RateLimitRule{
			"DEFAULT": {Rate: 5, Burst: 10},
			"POLLING": {Rate: 20, Burst: 40},
		},
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
