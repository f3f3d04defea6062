package api

import (
	"net/http"

	"github.com/fyerfyer/docling-nodes/api/handler"
	"github.com/fyerfyer/docling-nodes/api/middleware"
	"github.com/fyerfyer/docling-nodes/api/model"
	"github.com/fyerfyer/docling-nodes/internal/services"
	"github.com/gin-gonic/gin"
)

// RouterConfig 路由配置
type RouterConfig struct {
	EnableCORS    bool  // 是否允许跨域
	MaxUploadSize int64 // multipart内存上限，超出部分写入临时文件
}

// SetupRouter 设置API路由
// 配置所有的API端点并应用中间件
func SetupRouter(svc *services.IngestService, cfg RouterConfig) *gin.Engine {
	model.RegisterValidators()

	router := gin.New()
	if cfg.MaxUploadSize > 0 {
		router.MaxMultipartMemory = cfg.MaxUploadSize
	}

	router.Use(middleware.SetTraceID())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorMiddleware())
	if cfg.EnableCORS {
		router.Use(Cors())
	}

	// 在调试模式下记录请求体和响应体
	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.RequestBodyLog())
		router.Use(middleware.ResponseLogger())
	}

	convertHandler := handler.NewConvertHandler(svc)
	docHandler := handler.NewDocumentHandler(svc)
	taskHandler := handler.NewTaskHandler(svc)

	api := router.Group("/api")
	{
		// 转换API
		convertGroup := api.Group("/convert")
		{
			// 转换本地路径或URL - POST /api/convert
			convertGroup.POST("", convertHandler.Convert)

			// 上传文件转换 - POST /api/convert/upload
			convertGroup.POST("/upload", convertHandler.Upload)
		}

		// 文档管理API
		docGroup := api.Group("/documents")
		{
			docGroup.GET("", docHandler.ListDocuments)
			docGroup.GET("/:id", docHandler.GetDocument)
			docGroup.GET("/:id/nodes", docHandler.GetNodes)
			docGroup.DELETE("/:id", docHandler.DeleteDocument)
		}

		// 任务API - GET /api/tasks/:id
		api.GET("/tasks/:id", taskHandler.GetTask)

		// 健康检查API
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status": "ok",
				"async":  svc.AsyncEnabled(),
			})
		})
	}

	return router
}

// Cors 跨域资源共享中间件
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
