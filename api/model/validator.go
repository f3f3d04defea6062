package model

import (
	"sync"

	"github.com/fyerfyer/docling-nodes/internal/reader"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators 向gin的校验器注册自定义规则
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("exporttype", validateExportType)
	})
}

// validateExportType 导出格式必须是reader支持的格式
func validateExportType(fl validator.FieldLevel) bool {
	_, err := reader.ParseExportType(fl.Field().String())
	return err == nil
}
