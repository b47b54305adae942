package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	"go.uber.org/fx"

	"github.com/leadhub/leadhub/internal/server/biz"
	"github.com/leadhub/leadhub/internal/server/cron"
)

type CronHandlersParams struct {
	fx.In

	Worker        *cron.Worker
	ExportService *biz.ExportService
}

type CronHandlers struct {
	Worker        *cron.Worker
	ExportService *biz.ExportService
}

func NewCronHandlers(params CronHandlersParams) *CronHandlers {
	return &CronHandlers{
		Worker:        params.Worker,
		ExportService: params.ExportService,
	}
}

type RunExportResponse struct {
	Done         bool `json:"done"`
	Processed    int  `json:"processed"`
	Relocated    int  `json:"relocated"`
	DeadLettered int  `json:"deadLettered"`
}

// RunExport drains the export queue once. It answers 204 when no job was
// delivered.
func (h *CronHandlers) RunExport(c *gin.Context) {
	result, err := h.Worker.Export(c.Request.Context())
	if err != nil {
		JSONBizError(c, err)
		return
	}

	if result.Processed == 0 {
		c.Status(http.StatusNoContent)
		return
	}

	c.JSON(http.StatusOK, RunExportResponse{
		Done:         true,
		Processed:    result.Processed,
		Relocated:    result.Relocated,
		DeadLettered: result.DeadLettered,
	})
}

func (h *CronHandlers) RunCheckpoint(c *gin.Context) {
	if err := h.Worker.Checkpoint(c.Request.Context()); err != nil {
		JSONBizError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *CronHandlers) ExportStats(c *gin.Context) {
	stats, err := h.ExportService.Stats(c.Request.Context())
	if err != nil {
		JSONBizError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

const defaultHistoryLimit = 20

// ExportHistory lists recent sweeps, newest first. ?limit= caps the count.
func (h *CronHandlers) ExportHistory(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		limit = cast.ToInt(raw)
		if limit <= 0 {
			JSONError(c, http.StatusBadRequest, errInvalidLimit)
			return
		}
	}

	c.JSON(http.StatusOK, h.Worker.RecentSweeps(limit))
}

func (h *CronHandlers) DeadLetters(c *gin.Context) {
	letters, err := h.ExportService.DeadLetters(c.Request.Context())
	if err != nil {
		JSONBizError(c, err)
		return
	}

	c.JSON(http.StatusOK, letters)
}
