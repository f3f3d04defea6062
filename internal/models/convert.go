package models

import (
	"encoding/json"
	"fmt"

	"github.com/fyerfyer/docling-nodes/internal/schema"
	"gorm.io/datatypes"
)

// NewDocumentRecord 由框架文档生成数据库记录
func NewDocumentRecord(doc *schema.Document, origin, exportType string) (*Document, error) {
	meta, err := toJSON(doc.Metadata)
	if err != nil {
		return nil, err
	}
	embed, err := toJSON(doc.ExcludedEmbedMetadataKeys)
	if err != nil {
		return nil, err
	}
	llm, err := toJSON(doc.ExcludedLLMMetadataKeys)
	if err != nil {
		return nil, err
	}

	return &Document{
		ID:                doc.ID,
		Origin:            origin,
		ExportType:        exportType,
		Content:           doc.Text,
		Metadata:          meta,
		ExcludedEmbedKeys: embed,
		ExcludedLLMKeys:   llm,
		Status:            DocStatusCompleted,
	}, nil
}

// NewNodeRecord 由节点生成数据库记录
func NewNodeRecord(node *schema.TextNode, docID string, position int) (*Node, error) {
	meta, err := toJSON(node.Metadata)
	if err != nil {
		return nil, err
	}
	embed, err := toJSON(node.ExcludedEmbedMetadataKeys)
	if err != nil {
		return nil, err
	}
	llm, err := toJSON(node.ExcludedLLMMetadataKeys)
	if err != nil {
		return nil, err
	}
	rels, err := toJSON(node.Relationships)
	if err != nil {
		return nil, err
	}

	return &Node{
		ID:                node.ID,
		DocumentID:        docID,
		Position:          position,
		Text:              node.Text,
		Metadata:          meta,
		ExcludedEmbedKeys: embed,
		ExcludedLLMKeys:   llm,
		Relationships:     rels,
		StartCharIdx:      node.StartCharIdx,
		EndCharIdx:        node.EndCharIdx,
		Hash:              node.Hash(),
	}, nil
}

// ToTextNode 还原为框架节点
func (n *Node) ToTextNode() (*schema.TextNode, error) {
	node := schema.NewTextNode(n.ID, n.Text)
	if err := fromJSON(n.Metadata, &node.Metadata); err != nil {
		return nil, err
	}
	if err := fromJSON(n.ExcludedEmbedKeys, &node.ExcludedEmbedMetadataKeys); err != nil {
		return nil, err
	}
	if err := fromJSON(n.ExcludedLLMKeys, &node.ExcludedLLMMetadataKeys); err != nil {
		return nil, err
	}
	if err := fromJSON(n.Relationships, &node.Relationships); err != nil {
		return nil, err
	}
	node.StartCharIdx = n.StartCharIdx
	node.EndCharIdx = n.EndCharIdx
	return node, nil
}

func toJSON(v any) (datatypes.JSON, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal json column: %w", err)
	}
	return datatypes.JSON(data), nil
}

func fromJSON(data datatypes.JSON, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal json column: %w", err)
	}
	return nil
}
