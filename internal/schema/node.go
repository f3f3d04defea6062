package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// ObjectType 节点类型
type ObjectType string

const (
	ObjectTypeText     ObjectType = "1"
	ObjectTypeImage    ObjectType = "2"
	ObjectTypeIndex    ObjectType = "3"
	ObjectTypeDocument ObjectType = "4"
)

// NodeRelationship 节点关系类型
type NodeRelationship string

const (
	RelationshipSource   NodeRelationship = "1"
	RelationshipPrevious NodeRelationship = "2"
	RelationshipNext     NodeRelationship = "3"
	RelationshipParent   NodeRelationship = "4"
	RelationshipChild    NodeRelationship = "5"
)

// MetadataMode 元数据视图
type MetadataMode string

const (
	MetadataModeAll   MetadataMode = "all"
	MetadataModeEmbed MetadataMode = "embed"
	MetadataModeLLM   MetadataMode = "llm"
	MetadataModeNone  MetadataMode = "none"
)

const (
	DefaultTextTemplate      = "{metadata_str}\n\n{content}"
	DefaultMetadataTemplate  = "{key}: {value}"
	DefaultMetadataSeparator = "\n"
	DefaultMimeType          = "text/plain"
)

// RelatedNodeInfo 关系另一端节点的描述
type RelatedNodeInfo struct {
	NodeID   string         `json:"node_id"`
	NodeType ObjectType     `json:"node_type,omitempty"`
	Metadata map[string]any `json:"metadata"`
	Hash     string         `json:"hash,omitempty"`
}

// BaseNode 索引框架中可检索单元的公共接口
type BaseNode interface {
	NodeID() string
	Type() ObjectType
	GetContent(mode MetadataMode) string
	GetMetadata() map[string]any
	AsRelatedNodeInfo() RelatedNodeInfo
	Hash() string
}

// TextNode 文本节点
type TextNode struct {
	ID                        string                               `json:"id_"`
	Text                      string                               `json:"text"`
	Metadata                  map[string]any                       `json:"metadata"`
	ExcludedEmbedMetadataKeys []string                             `json:"excluded_embed_metadata_keys"`
	ExcludedLLMMetadataKeys   []string                             `json:"excluded_llm_metadata_keys"`
	Relationships             map[NodeRelationship]RelatedNodeInfo `json:"relationships"`
	StartCharIdx              *int                                 `json:"start_char_idx"`
	EndCharIdx                *int                                 `json:"end_char_idx"`
	MimeType                  string                               `json:"mimetype"`
	TextTemplate              string                               `json:"text_template"`
	MetadataTemplate          string                               `json:"metadata_template"`
	MetadataSeparator         string                               `json:"metadata_seperator"`
}

// NewTextNode 创建文本节点，ID为空时分配随机ID
func NewTextNode(id, text string) *TextNode {
	if id == "" {
		id = uuid.New().String()
	}
	return &TextNode{
		ID:                        id,
		Text:                      text,
		Metadata:                  map[string]any{},
		ExcludedEmbedMetadataKeys: []string{},
		ExcludedLLMMetadataKeys:   []string{},
		Relationships:             map[NodeRelationship]RelatedNodeInfo{},
		MimeType:                  DefaultMimeType,
		TextTemplate:              DefaultTextTemplate,
		MetadataTemplate:          DefaultMetadataTemplate,
		MetadataSeparator:         DefaultMetadataSeparator,
	}
}

func (n *TextNode) NodeID() string { return n.ID }

func (n *TextNode) Type() ObjectType { return ObjectTypeText }

func (n *TextNode) GetMetadata() map[string]any { return n.Metadata }

// GetMetadataStr 按视图渲染元数据，隐藏对应排除列表中的键
func (n *TextNode) GetMetadataStr(mode MetadataMode) string {
	if mode == MetadataModeNone {
		return ""
	}

	var excluded []string
	switch mode {
	case MetadataModeEmbed:
		excluded = n.ExcludedEmbedMetadataKeys
	case MetadataModeLLM:
		excluded = n.ExcludedLLMMetadataKeys
	}

	keys := make([]string, 0, len(n.Metadata))
	for k := range n.Metadata {
		if !slices.Contains(excluded, k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		line := strings.ReplaceAll(n.metadataTemplate(), "{key}", k)
		line = strings.ReplaceAll(line, "{value}", fmt.Sprint(n.Metadata[k]))
		lines = append(lines, line)
	}
	return strings.Join(lines, n.metadataSeparator())
}

// GetContent 按视图返回节点内容
func (n *TextNode) GetContent(mode MetadataMode) string {
	metaStr := n.GetMetadataStr(mode)
	if metaStr == "" {
		return n.Text
	}

	tmpl := n.TextTemplate
	if tmpl == "" {
		tmpl = DefaultTextTemplate
	}
	out := strings.ReplaceAll(tmpl, "{metadata_str}", metaStr)
	out = strings.ReplaceAll(out, "{content}", n.Text)
	return strings.TrimSpace(out)
}

// Hash 基于文本与元数据的内容哈希
func (n *TextNode) Hash() string {
	identity := n.GetMetadataStr(MetadataModeAll) + "-" + n.Text
	sum := sha256.Sum256([]byte(identity))
	return hex.EncodeToString(sum[:])
}

// AsRelatedNodeInfo 作为关系目标时的描述
func (n *TextNode) AsRelatedNodeInfo() RelatedNodeInfo {
	return relatedInfo(n, n.Type())
}

// SourceNode 返回SOURCE关系
func (n *TextNode) SourceNode() (RelatedNodeInfo, bool) {
	info, ok := n.Relationships[RelationshipSource]
	return info, ok
}

// PrevNode 返回PREVIOUS关系
func (n *TextNode) PrevNode() (RelatedNodeInfo, bool) {
	info, ok := n.Relationships[RelationshipPrevious]
	return info, ok
}

// NextNode 返回NEXT关系
func (n *TextNode) NextNode() (RelatedNodeInfo, bool) {
	info, ok := n.Relationships[RelationshipNext]
	return info, ok
}

// SetCharRange 设置节点在源文档中的字符区间
func (n *TextNode) SetCharRange(start, end int) {
	n.StartCharIdx = &start
	n.EndCharIdx = &end
}

func (n *TextNode) metadataTemplate() string {
	if n.MetadataTemplate == "" {
		return DefaultMetadataTemplate
	}
	return n.MetadataTemplate
}

func (n *TextNode) metadataSeparator() string {
	if n.MetadataSeparator == "" {
		return DefaultMetadataSeparator
	}
	return n.MetadataSeparator
}

func relatedInfo(n BaseNode, typ ObjectType) RelatedNodeInfo {
	meta := make(map[string]any, len(n.GetMetadata()))
	for k, v := range n.GetMetadata() {
		meta[k] = v
	}
	return RelatedNodeInfo{
		NodeID:   n.NodeID(),
		NodeType: typ,
		Metadata: meta,
		Hash:     n.Hash(),
	}
}
