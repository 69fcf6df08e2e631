package report

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/analysis"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/server/respond"
)

// Handler serves aggregated reports over persisted analysis windows.
type Handler struct {
	Repo analysis.Repo
}

func NewHandler(repo analysis.Repo) *Handler {
	return &Handler{Repo: repo}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/windows/:start/report", h.windowReport)
}

func (h *Handler) windowReport(c *gin.Context) {
	windowStart, err := analysis.ParseWindowTime(c.Param("start"))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid window start, use RFC3339 or YYYY-MM-DD", nil)
		return
	}

	results, err := h.Repo.LoadResults(c.Request.Context(), windowStart)
	if err != nil {
		if errors.Is(err, analysis.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "no results for this window", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load results", nil)
		return
	}

	respond.OK(c, Build(results))
}
