package handler

import (
	"net/http"

	"github.com/fyerfyer/docling-nodes/api/middleware"
	"github.com/fyerfyer/docling-nodes/api/model"
	"github.com/fyerfyer/docling-nodes/internal/services"
	"github.com/gin-gonic/gin"
)

// TaskHandler 处理任务相关的API请求
type TaskHandler struct {
	svc *services.IngestService
}

// NewTaskHandler 创建任务处理器
func NewTaskHandler(svc *services.IngestService) *TaskHandler {
	return &TaskHandler{svc: svc}
}

// GetTask 查询异步任务状态
// GET /api/tasks/:id
func (h *TaskHandler) GetTask(c *gin.Context) {
	var req model.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid task id", err.Error()))
		return
	}

	info, err := h.svc.GetTask(c.Request.Context(), req.ID)
	if err != nil {
		middleware.HandleError(c, toAppError(err))
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(info))
}
