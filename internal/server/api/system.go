package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/leadhub/leadhub/internal/build"
)

type SystemHandlers struct{}

func NewSystemHandlers() *SystemHandlers {
	return &SystemHandlers{}
}

type HealthResponse struct {
	Status string     `json:"status"`
	Build  build.Info `json:"build"`
}

func (h *SystemHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
		Build:  build.GetBuildInfo(),
	})
}
