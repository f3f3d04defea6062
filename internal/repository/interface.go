package repository

import (
	"context"

	"github.com/fyerfyer/docling-nodes/internal/models"
)

// ListFilter 文档列表筛选条件
type ListFilter struct {
	Origin     string // 来源模糊匹配
	ExportType string
	Status     models.DocumentStatus
}

// DocumentBatchItem 批量保存的一项
// Nodes为nil时保留文档已有的节点
type DocumentBatchItem struct {
	Document *models.Document
	Nodes    []*models.Node
}

// NodeRepository 文档与节点仓储接口
type NodeRepository interface {
	// SaveDocument 保存文档，ID已存在时覆盖
	SaveDocument(ctx context.Context, doc *models.Document) error

	// SaveNodes 替换文档的全部节点并更新节点数量
	SaveNodes(ctx context.Context, docID string, nodes []*models.Node) error

	// SaveBatch 在同一事务中保存多个文档及其节点，任何一项失败则全部回滚
	SaveBatch(ctx context.Context, items []DocumentBatchItem) error

	// GetDocument 根据ID获取文档
	GetDocument(ctx context.Context, id string) (*models.Document, error)

	// ListDocuments 分页列出文档
	ListDocuments(ctx context.Context, offset, limit int, filter ListFilter) ([]*models.Document, int64, error)

	// GetNodes 按顺序获取文档的节点
	GetNodes(ctx context.Context, docID string) ([]*models.Node, error)

	// CountNodes 统计文档的节点数量
	CountNodes(ctx context.Context, docID string) (int64, error)

	// UpdateStatus 更新文档处理状态
	UpdateStatus(ctx context.Context, id string, status models.DocumentStatus, errMsg string) error

	// DeleteDocument 删除文档及其节点
	DeleteDocument(ctx context.Context, id string) error
}
