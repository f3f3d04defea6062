package handler

import (
	"net/http"

	"github.com/fyerfyer/docling-nodes/api/middleware"
	"github.com/fyerfyer/docling-nodes/api/model"
	"github.com/fyerfyer/docling-nodes/internal/models"
	"github.com/fyerfyer/docling-nodes/internal/repository"
	"github.com/fyerfyer/docling-nodes/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// DocumentHandler 处理文档相关的API请求
type DocumentHandler struct {
	svc    *services.IngestService
	logger *logrus.Logger
}

// NewDocumentHandler 创建新的文档处理器
func NewDocumentHandler(svc *services.IngestService) *DocumentHandler {
	return &DocumentHandler{
		svc:    svc,
		logger: middleware.GetLogger(),
	}
}

// ListDocuments 获取文档列表，不包含内容
// GET /api/documents
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	var req model.DocumentListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid query parameters", err.Error()))
		return
	}

	filter := repository.ListFilter{
		Origin:     req.Origin,
		ExportType: req.ExportType,
		Status:     models.DocumentStatus(req.Status),
	}
	docs, total, err := h.svc.ListDocuments(c.Request.Context(), req.GetPage(), req.GetPageSize(), filter)
	if err != nil {
		middleware.HandleError(c, toAppError(err))
		return
	}

	resp := model.DocumentListResponse{
		Total:     total,
		Page:      req.GetPage(),
		PageSize:  req.GetPageSize(),
		Documents: make([]model.DocumentInfo, 0, len(docs)),
	}
	for _, d := range docs {
		resp.Documents = append(resp.Documents, model.NewDocumentInfo(d))
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// GetDocument 获取文档
// GET /api/documents/:id
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	var req model.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid document id", err.Error()))
		return
	}

	doc, err := h.svc.GetDocument(c.Request.Context(), req.ID)
	if err != nil {
		middleware.HandleError(c, toAppError(err))
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewDocumentInfo(doc)))
}

// GetNodes 获取文档的节点
// GET /api/documents/:id/nodes
func (h *DocumentHandler) GetNodes(c *gin.Context) {
	var req model.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid document id", err.Error()))
		return
	}

	nodes, err := h.svc.GetNodes(c.Request.Context(), req.ID)
	if err != nil {
		middleware.HandleError(c, toAppError(err))
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NodeListResponse{
		DocumentID: req.ID,
		Total:      len(nodes),
		Nodes:      nodes,
	}))
}

// DeleteDocument 删除文档
// DELETE /api/documents/:id
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	var req model.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid document id", err.Error()))
		return
	}

	if err := h.svc.DeleteDocument(c.Request.Context(), req.ID); err != nil {
		middleware.HandleError(c, toAppError(err))
		return
	}

	h.logger.WithField("doc_id", req.ID).Info("Document deleted successfully")
	c.JSON(http.StatusOK, model.NewSuccessResponse(model.DocumentDeleteResponse{
		Success: true,
		ID:      req.ID,
	}))
}
