package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyerfyer/docling-nodes/internal/database"
	"github.com/fyerfyer/docling-nodes/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const saveBatchSize = 100

// nodeRepository 基于gorm的仓储实现
type nodeRepository struct {
	db *gorm.DB
}

// NewNodeRepository 使用全局数据库连接创建仓储
func NewNodeRepository() NodeRepository {
	return &nodeRepository{db: database.MustDB()}
}

// NewNodeRepositoryWithDB 使用指定的数据库连接创建仓储
func NewNodeRepositoryWithDB(db *gorm.DB) NodeRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &nodeRepository{db: db}
}

// SaveDocument 保存文档
func (r *nodeRepository) SaveDocument(ctx context.Context, doc *models.Document) error {
	return saveDocument(r.db.WithContext(ctx), doc)
}

// SaveNodes 在事务中替换节点
func (r *nodeRepository) SaveNodes(ctx context.Context, docID string, nodes []*models.Node) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return replaceNodes(tx, docID, nodes)
	})
}

// SaveBatch 在同一事务中保存文档和节点
func (r *nodeRepository) SaveBatch(ctx context.Context, items []DocumentBatchItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range items {
			if item.Document == nil {
				return models.ErrEmptyDocumentID
			}
			if err := saveDocument(tx, item.Document); err != nil {
				return fmt.Errorf("failed to save document %s: %w", item.Document.ID, err)
			}
			if item.Nodes == nil {
				continue
			}
			if err := replaceNodes(tx, item.Document.ID, item.Nodes); err != nil {
				return fmt.Errorf("failed to save nodes of %s: %w", item.Document.ID, err)
			}
		}
		return nil
	})
}

func saveDocument(db *gorm.DB, doc *models.Document) error {
	if doc.ID == "" {
		return models.ErrEmptyDocumentID
	}
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"origin", "export_type", "content", "metadata", "excluded_embed_keys",
			"excluded_llm_keys", "status", "error", "task_id", "updated_at",
		}),
	}).Create(doc).Error
}

func replaceNodes(tx *gorm.DB, docID string, nodes []*models.Node) error {
	if err := tx.Where("document_id = ?", docID).Delete(&models.Node{}).Error; err != nil {
		return fmt.Errorf("failed to delete old nodes: %w", err)
	}
	if len(nodes) > 0 {
		for _, n := range nodes {
			n.DocumentID = docID
		}
		if err := tx.CreateInBatches(nodes, saveBatchSize).Error; err != nil {
			return fmt.Errorf("failed to save nodes: %w", err)
		}
	}
	res := tx.Model(&models.Document{}).Where("id = ?", docID).Update("node_count", len(nodes))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", models.ErrDocumentNotFound, docID)
	}
	return nil
}

// GetDocument 根据ID获取文档
func (r *nodeRepository) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", models.ErrDocumentNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListDocuments 分页列出文档，按创建时间倒序
func (r *nodeRepository) ListDocuments(ctx context.Context, offset, limit int, filter ListFilter) ([]*models.Document, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Document{})
	if filter.Origin != "" {
		query = query.Where("origin LIKE ?", "%"+filter.Origin+"%")
	}
	if filter.ExportType != "" {
		query = query.Where("export_type = ?", filter.ExportType)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 10
	}
	var docs []*models.Document
	// 列表不返回导出内容
	err := query.Omit("content").Order("created_at DESC").Offset(offset).Limit(limit).Find(&docs).Error
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// GetNodes 按顺序获取文档的节点
func (r *nodeRepository) GetNodes(ctx context.Context, docID string) ([]*models.Node, error) {
	var nodes []*models.Node
	err := r.db.WithContext(ctx).Where("document_id = ?", docID).Order("position ASC").Find(&nodes).Error
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

// CountNodes 统计文档的节点数量
func (r *nodeRepository) CountNodes(ctx context.Context, docID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Node{}).Where("document_id = ?", docID).Count(&count).Error
	return count, err
}

// UpdateStatus 更新文档处理状态
func (r *nodeRepository) UpdateStatus(ctx context.Context, id string, status models.DocumentStatus, errMsg string) error {
	switch status {
	case models.DocStatusPending, models.DocStatusProcessing, models.DocStatusCompleted, models.DocStatusFailed:
	default:
		return fmt.Errorf("%w: %s", models.ErrInvalidDocumentStatus, status)
	}

	res := r.db.WithContext(ctx).Model(&models.Document{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status": status,
		"error":  errMsg,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", models.ErrDocumentNotFound, id)
	}
	return nil
}

// DeleteDocument 删除文档及其节点
func (r *nodeRepository) DeleteDocument(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&models.Node{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Document{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", models.ErrDocumentNotFound, id)
		}
		return nil
	})
}
