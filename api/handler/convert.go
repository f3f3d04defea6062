package handler

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/fyerfyer/docling-nodes/api/middleware"
	"github.com/fyerfyer/docling-nodes/api/model"
	"github.com/fyerfyer/docling-nodes/internal/converter"
	"github.com/fyerfyer/docling-nodes/internal/services"
	"github.com/fyerfyer/docling-nodes/pkg/taskqueue"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ConvertHandler 处理转换相关的API请求
type ConvertHandler struct {
	svc    *services.IngestService
	logger *logrus.Logger
}

// NewConvertHandler 创建转换处理器
func NewConvertHandler(svc *services.IngestService) *ConvertHandler {
	return &ConvertHandler{
		svc:    svc,
		logger: middleware.GetLogger(),
	}
}

// Convert 转换源文件
// POST /api/convert
func (h *ConvertHandler) Convert(c *gin.Context) {
	var req model.ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid request", err.Error()))
		return
	}

	ingest := services.IngestRequest{
		Sources:    req.Sources,
		ExportType: req.ExportType,
		ChunkDocs:  req.ChunkDocs,
	}
	h.respond(c, ingest, req.Async)
}

// Upload 上传文件并转换，origin为上传的文件名
// POST /api/convert/upload
func (h *ConvertHandler) Upload(c *gin.Context) {
	var req model.UploadRequest
	if err := c.ShouldBind(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid upload request", err.Error()))
		return
	}

	filename := filepath.Base(req.File.Filename)
	if converter.DetectContentType(filename) == converter.Unknown {
		middleware.HandleError(c, middleware.NewValidationError(
			"unsupported file type",
			"supported: .pdf, .md, .markdown, .txt, .json",
		))
		return
	}

	file, err := req.File.Open()
	if err != nil {
		middleware.HandleError(c, middleware.NewInternalError("failed to open uploaded file", err.Error()))
		return
	}
	defer file.Close()

	ref, err := h.svc.SaveUpload(c.Request.Context(), file, filename)
	if err != nil {
		middleware.HandleError(c, toAppError(err))
		return
	}

	ingest := services.IngestRequest{
		Uploads:    []taskqueue.UploadRef{ref},
		ExportType: req.ExportType,
		ChunkDocs:  req.ChunkDocs,
	}
	h.respond(c, ingest, req.Async)
}

func (h *ConvertHandler) respond(c *gin.Context, req services.IngestRequest, async bool) {
	ctx := c.Request.Context()
	log := h.logger.WithFields(logrus.Fields{
		middleware.FieldTraceID: middleware.GetTraceID(c),
		"sources":               strings.Join(req.Sources, ","),
		"uploads":               len(req.Uploads),
		"async":                 async,
	})

	if async {
		taskID, err := h.svc.IngestAsync(ctx, req)
		if err != nil {
			middleware.HandleError(c, toAppError(err))
			return
		}
		log.WithField("task_id", taskID).Info("Ingest task submitted")
		c.JSON(http.StatusAccepted, model.NewSuccessResponse(&model.ConvertResponse{
			Async:  true,
			TaskID: taskID,
		}))
		return
	}

	res, err := h.svc.Ingest(ctx, req)
	if err != nil {
		middleware.HandleError(c, toAppError(err))
		return
	}

	resp, err := model.NewConvertResponse(res)
	if err != nil {
		middleware.HandleError(c, middleware.NewInternalError("failed to build response", err.Error()))
		return
	}
	log.WithField("documents", len(resp.Documents)).Info("Sources converted")
	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}
