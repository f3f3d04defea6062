package model

import (
	"encoding/json"
	"time"

	"github.com/fyerfyer/docling-nodes/internal/models"
	"github.com/fyerfyer/docling-nodes/internal/schema"
	"github.com/fyerfyer/docling-nodes/internal/services"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Details string      `json:"details,omitempty"`  // 错误详情
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// DocumentInfo 文档信息
type DocumentInfo struct {
	ID         string                 `json:"id"`
	Origin     string                 `json:"origin"`
	ExportType string                 `json:"export_type"`
	Content    string                 `json:"content,omitempty"`
	Metadata   map[string]interface{} `json:"metadata"`
	NodeCount  int                    `json:"node_count"`
	Status     string                 `json:"status"`
	Error      string                 `json:"error,omitempty"`
	TaskID     string                 `json:"task_id,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// NewDocumentInfo 从数据库记录生成文档信息
func NewDocumentInfo(doc *models.Document) DocumentInfo {
	meta := map[string]interface{}{}
	if len(doc.Metadata) > 0 {
		_ = json.Unmarshal(doc.Metadata, &meta)
	}
	return DocumentInfo{
		ID:         doc.ID,
		Origin:     doc.Origin,
		ExportType: doc.ExportType,
		Content:    doc.Content,
		Metadata:   meta,
		NodeCount:  doc.NodeCount,
		Status:     string(doc.Status),
		Error:      doc.Error,
		TaskID:     doc.TaskID,
		CreatedAt:  doc.CreatedAt,
	}
}

// ConvertedDocument 转换得到的文档及其节点
type ConvertedDocument struct {
	Document DocumentInfo       `json:"document"`
	Nodes    []*schema.TextNode `json:"nodes,omitempty"`
}

// ConvertResponse 转换响应，异步模式下只返回任务ID
type ConvertResponse struct {
	Async      bool                `json:"async"`
	TaskID     string              `json:"task_id,omitempty"`
	ExportType string              `json:"export_type,omitempty"`
	NodeCount  int                 `json:"node_count"`
	Documents  []ConvertedDocument `json:"documents,omitempty"`
}

// NewConvertResponse 从入库结果生成响应
func NewConvertResponse(res *services.IngestResult) (*ConvertResponse, error) {
	resp := &ConvertResponse{
		ExportType: string(res.ExportType),
		NodeCount:  res.NodeCount,
		Documents:  make([]ConvertedDocument, 0, len(res.Documents)),
	}
	for _, d := range res.Documents {
		cd := ConvertedDocument{Document: NewDocumentInfo(d.Document)}
		for _, rec := range d.Nodes {
			n, err := rec.ToTextNode()
			if err != nil {
				return nil, err
			}
			cd.Nodes = append(cd.Nodes, n)
		}
		resp.Documents = append(resp.Documents, cd)
	}
	return resp, nil
}

// DocumentListResponse 文档列表响应
type DocumentListResponse struct {
	Total     int64          `json:"total"`     // 总数量
	Page      int            `json:"page"`      // 当前页码
	PageSize  int            `json:"page_size"` // 每页大小
	Documents []DocumentInfo `json:"documents"` // 文档列表
}

// NodeListResponse 节点列表响应
type NodeListResponse struct {
	DocumentID string             `json:"document_id"`
	Total      int                `json:"total"`
	Nodes      []*schema.TextNode `json:"nodes"`
}

// DocumentDeleteResponse 文档删除响应
type DocumentDeleteResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}
