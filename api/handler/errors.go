package handler

import (
	"errors"

	"github.com/fyerfyer/docling-nodes/api/middleware"
	"github.com/fyerfyer/docling-nodes/internal/models"
	"github.com/fyerfyer/docling-nodes/internal/reader"
	"github.com/fyerfyer/docling-nodes/internal/services"
	"github.com/fyerfyer/docling-nodes/pkg/taskqueue"
)

// toAppError 把服务层错误映射为API错误
func toAppError(err error) error {
	var (
		cfgErr  *reader.ConfigError
		convErr *reader.ConversionError
	)

	switch {
	case errors.Is(err, models.ErrDocumentNotFound):
		return middleware.NewNotFoundError("document not found")
	case errors.Is(err, taskqueue.ErrTaskNotFound):
		return middleware.NewNotFoundError("task not found")
	case errors.As(err, &cfgErr):
		return middleware.NewValidationError("invalid reader configuration", cfgErr.Error())
	case errors.As(err, &convErr):
		return middleware.NewConversionError("failed to convert source", convErr.Error())
	case errors.Is(err, services.ErrNoSources),
		errors.Is(err, services.ErrAsyncDisabled),
		errors.Is(err, services.ErrStorageDisabled):
		return middleware.NewBusinessError(err.Error())
	default:
		return middleware.NewInternalError("internal server error", err.Error())
	}
}
