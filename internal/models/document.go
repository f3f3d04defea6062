package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DocumentStatus 文档处理状态
type DocumentStatus string

const (
	// DocStatusPending 等待异步处理
	DocStatusPending DocumentStatus = "pending"
	// DocStatusProcessing 处理中
	DocStatusProcessing DocumentStatus = "processing"
	// DocStatusCompleted 处理完成
	DocStatusCompleted DocumentStatus = "completed"
	// DocStatusFailed 处理失败
	DocStatusFailed DocumentStatus = "failed"
)

// Document 一次转换得到的文档
// 开启分块时Content为空，只保留元数据和节点
type Document struct {
	ID                string         `gorm:"primaryKey"`               // 文档ID（通常为文档哈希）
	Origin            string         `gorm:"not null;index"`           // 原始来源路径或URL
	ExportType        string         `gorm:"size:20;not null"`         // markdown 或 json
	Content           string         `gorm:"type:text"`                // 导出内容
	Metadata          datatypes.JSON `gorm:"type:json"`                // 文档元数据
	ExcludedEmbedKeys datatypes.JSON `gorm:"type:json"`                // 嵌入视图排除的键
	ExcludedLLMKeys   datatypes.JSON `gorm:"type:json"`                // LLM视图排除的键
	NodeCount         int            `gorm:"not null;default:0"`       // 节点数量
	Status            DocumentStatus `gorm:"size:20;not null;index"`   // 处理状态
	Error             string         `gorm:"type:text"`                // 错误信息
	TaskID            string         `gorm:"size:50;index"`            // 关联的异步任务ID
	CreatedAt         time.Time      `gorm:"not null;index"`           // 创建时间
	UpdatedAt         time.Time      `gorm:"not null"`                 // 更新时间
}

// BeforeCreate 创建记录前设置时间和默认状态
func (d *Document) BeforeCreate(tx *gorm.DB) (err error) {
	now := time.Now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	if d.Status == "" {
		d.Status = DocStatusCompleted
	}
	return nil
}

// BeforeUpdate 更新记录前设置更新时间
func (d *Document) BeforeUpdate(tx *gorm.DB) (err error) {
	d.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (Document) TableName() string {
	return "documents"
}

// Node 文档切分出的节点
type Node struct {
	ID                string         `gorm:"primaryKey"`         // 节点ID，<文档ID>_<序号>
	DocumentID        string         `gorm:"not null;index"`     // 所属文档ID
	Position          int            `gorm:"not null"`           // 在文档中的顺序
	Text              string         `gorm:"type:text;not null"` // 节点文本
	Metadata          datatypes.JSON `gorm:"type:json"`          // 节点元数据
	ExcludedEmbedKeys datatypes.JSON `gorm:"type:json"`
	ExcludedLLMKeys   datatypes.JSON `gorm:"type:json"`
	Relationships     datatypes.JSON `gorm:"type:json"` // SOURCE/PREVIOUS/NEXT关系
	StartCharIdx      *int
	EndCharIdx        *int
	Hash              string    `gorm:"size:64"`
	CreatedAt         time.Time `gorm:"not null"`
}

// BeforeCreate 创建记录前设置时间
func (n *Node) BeforeCreate(tx *gorm.DB) (err error) {
	n.CreatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (Node) TableName() string {
	return "nodes"
}
