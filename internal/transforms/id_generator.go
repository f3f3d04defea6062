package transforms

import (
	"github.com/fyerfyer/docling-nodes/internal/dldoc"
	"github.com/google/uuid"
)

// IDGenerator 根据结构化文档生成文档ID
type IDGenerator interface {
	GenerateID(doc *dldoc.Document) string
}

// DocHashIDGenerator 使用文档哈希作为ID，同一源文件总是得到相同ID
type DocHashIDGenerator struct{}

// GenerateID 实现IDGenerator接口
func (DocHashIDGenerator) GenerateID(doc *dldoc.Document) string {
	return doc.Hash()
}

// UUIDGenerator 每次生成随机ID
type UUIDGenerator struct{}

// GenerateID 实现IDGenerator接口
func (UUIDGenerator) GenerateID(*dldoc.Document) string {
	return uuid.New().String()
}

// NewIDGenerator 按名称创建ID生成器，空名称或 none 返回nil
func NewIDGenerator(name string) (IDGenerator, bool) {
	switch name {
	case "doc_hash", "hash":
		return DocHashIDGenerator{}, true
	case "uuid":
		return UUIDGenerator{}, true
	case "", "none":
		return nil, true
	default:
		return nil, false
	}
}
