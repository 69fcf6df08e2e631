package analysis

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/queue"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/server/respond"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/telemetry"
)

// Handler wires HTTP handlers to the results repository and the job queue.
type Handler struct {
	Repo Repo
	Jobs queue.Queue
}

// NewHandler constructs a Handler.
func NewHandler(repo Repo, jobs queue.Queue) *Handler {
	return &Handler{Repo: repo, Jobs: jobs}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/windows", h.listWindows)
	rg.GET("/windows/:start/results", h.windowResults)
	rg.POST("/batch-runs", h.startBatchRun)
}

func (h *Handler) listWindows(c *gin.Context) {
	windows, err := h.Repo.ListWindows(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list windows", nil)
		return
	}
	if windows == nil {
		windows = []WindowInfo{}
	}
	respond.OK(c, gin.H{"windows": windows})
}

func (h *Handler) windowResults(c *gin.Context) {
	windowStart, err := ParseWindowTime(c.Param("start"))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid window start, use RFC3339 or YYYY-MM-DD", nil)
		return
	}

	limit := 100
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}
	if limit > 1000 {
		limit = 1000
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	results, err := h.Repo.LoadResults(c.Request.Context(), windowStart)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "no results for this window", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load results", nil)
		}
		return
	}

	total := len(results)
	if offset >= total {
		results = []StoredResult{}
	} else {
		end := total
		if limit > 0 && offset+limit < end {
			end = offset + limit
		}
		results = results[offset:end]
	}

	respond.OK(c, gin.H{
		"windowStart": windowStart,
		"total":       total,
		"offset":      offset,
		"results":     results,
	})
}

type batchRunRequest struct {
	WindowStart string `json:"window_start" binding:"required"`
	WindowEnd   string `json:"window_end"`
	MaxChats    int    `json:"max_chats"`
}

func (h *Handler) startBatchRun(c *gin.Context) {
	if h.Jobs == nil {
		respond.Error(c, http.StatusServiceUnavailable, "queue_unavailable", "batch queue is not configured", nil)
		return
	}

	var req batchRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "window_start is required", nil)
		return
	}

	windowStart, err := ParseWindowTime(req.WindowStart)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid window_start, use RFC3339 or YYYY-MM-DD", nil)
		return
	}

	windowEnd := DefaultWindowEnd(windowStart)
	if req.WindowEnd != "" {
		windowEnd, err = ParseWindowTime(req.WindowEnd)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid window_end, use RFC3339 or YYYY-MM-DD", nil)
			return
		}
	}
	if !windowEnd.After(windowStart) {
		respond.Error(c, http.StatusBadRequest, "validation_error", "window_end must be after window_start", nil)
		return
	}
	if req.MaxChats < 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "max_chats must not be negative", nil)
		return
	}

	job := queue.NewBatchJob(windowStart, windowEnd, req.MaxChats)
	if err := h.Jobs.Send(c.Request.Context(), job); err != nil {
		telemetry.Error("enqueue batch job failed", map[string]any{
			"jobId": job.JobID,
			"error": err.Error(),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to enqueue batch run", nil)
		return
	}

	telemetry.Info("batch job enqueued", map[string]any{
		"jobId":       job.JobID,
		"windowStart": job.WindowStart.Format(time.RFC3339),
		"windowEnd":   job.WindowEnd.Format(time.RFC3339),
		"maxChats":    job.MaxChats,
	})
	respond.Accepted(c, gin.H{
		"jobId":       job.JobID,
		"windowStart": job.WindowStart,
		"windowEnd":   job.WindowEnd,
	})
}

// ParseWindowTime accepts RFC3339 timestamps and bare dates. Bare dates
// are midnight UTC, matching how weekly windows are enqueued.
func ParseWindowTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// DefaultWindowEnd closes a window opened on Monday at Friday end of day.
func DefaultWindowEnd(start time.Time) time.Time {
	return start.AddDate(0, 0, 4).Add(24*time.Hour - time.Millisecond)
}
