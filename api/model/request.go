package model

import (
	"mime/multipart"
)

// 分页请求参数
type PaginationRequest struct {
	Page     int `form:"page" json:"page" binding:"omitempty,min=1"`           // 当前页码，从1开始
	PageSize int `form:"page_size" json:"page_size" binding:"omitempty,min=1"` // 每页记录数
}

// GetPage 获取页码，默认为1
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页记录数，默认为10，最大为100
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 10
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// ConvertRequest 转换请求
type ConvertRequest struct {
	Sources    []string `json:"sources" binding:"required,min=1,dive,required"` // 本地路径或URL
	ExportType string   `json:"export_type" binding:"omitempty,exporttype"`     // markdown 或 json
	ChunkDocs  bool     `json:"chunk_docs"`                                     // 是否分块
	Async      bool     `json:"async"`                                          // 是否异步处理
}

// UploadRequest 上传文件转换请求
type UploadRequest struct {
	File       *multipart.FileHeader `form:"file" binding:"required"`
	ExportType string                `form:"export_type" binding:"omitempty,exporttype"`
	ChunkDocs  bool                  `form:"chunk_docs"`
	Async      bool                  `form:"async"`
}

// DocumentListRequest 文档列表请求
type DocumentListRequest struct {
	PaginationRequest
	Origin     string `form:"origin" binding:"omitempty"`                          // 来源模糊匹配
	ExportType string `form:"export_type" binding:"omitempty,exporttype"`          // 导出格式
	Status     string `form:"status" binding:"omitempty,oneof=pending processing completed failed"`
}

// IDRequest 路径中的资源ID
type IDRequest struct {
	ID string `uri:"id" binding:"required"`
}
