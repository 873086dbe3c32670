package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anwitac246/github-to-docs/internal/service"
	"github.com/anwitac246/github-to-docs/internal/service/orchestrator"
)

// StatusHandler 运行状态观测接口
type StatusHandler struct {
	analysis *service.AnalysisService
}

func NewStatusHandler(analysis *service.AnalysisService) *StatusHandler {
	return &StatusHandler{analysis: analysis}
}

// Health 健康检查
func (h *StatusHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Queue 编排器队列状态
func (h *StatusHandler) Queue(c *gin.Context) {
	orch := orchestrator.GetGlobalOrchestrator()
	if orch == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "orchestrator not initialized"})
		return
	}
	c.JSON(http.StatusOK, orch.GetQueueStatus())
}

// Keys 当前批次各 API Key 的限流与健康状况
func (h *StatusHandler) Keys(c *gin.Context) {
	snapshot := h.analysis.KeySnapshot()
	if snapshot == nil {
		c.JSON(http.StatusOK, gin.H{"active": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": true, "keys": snapshot})
}
