package schema

import (
	"encoding/json"
	"fmt"
)

// Document 由一个源文件得到的完整文档
type Document struct {
	TextNode
}

// DocumentOption 文档构造选项
type DocumentOption func(*Document)

// WithDocID 指定文档ID
func WithDocID(id string) DocumentOption {
	return func(d *Document) {
		if id != "" {
			d.ID = id
		}
	}
}

// WithMetadata 设置元数据
func WithMetadata(meta map[string]any) DocumentOption {
	return func(d *Document) {
		if meta != nil {
			d.Metadata = meta
		}
	}
}

// WithExcludedEmbedMetadataKeys 设置嵌入视图排除的元数据键
func WithExcludedEmbedMetadataKeys(keys []string) DocumentOption {
	return func(d *Document) {
		d.ExcludedEmbedMetadataKeys = append([]string{}, keys...)
	}
}

// WithExcludedLLMMetadataKeys 设置LLM视图排除的元数据键
func WithExcludedLLMMetadataKeys(keys []string) DocumentOption {
	return func(d *Document) {
		d.ExcludedLLMMetadataKeys = append([]string{}, keys...)
	}
}

// NewDocument 创建文档，未指定ID时使用框架默认的随机ID
func NewDocument(text string, opts ...DocumentOption) *Document {
	d := &Document{TextNode: *NewTextNode("", text)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Document) Type() ObjectType { return ObjectTypeDocument }

// AsRelatedNodeInfo 文档作为关系目标时类型为DOCUMENT
func (d *Document) AsRelatedNodeInfo() RelatedNodeInfo {
	return relatedInfo(d, ObjectTypeDocument)
}

// DocumentFromJSON 从JSON还原文档
func DocumentFromJSON(data []byte) (*Document, error) {
	d := NewDocument("")
	if err := json.Unmarshal(data, &d.TextNode); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	if d.Metadata == nil {
		d.Metadata = map[string]any{}
	}
	if d.Relationships == nil {
		d.Relationships = map[NodeRelationship]RelatedNodeInfo{}
	}
	return d, nil
}
