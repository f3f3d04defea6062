package transforms

import (
	"slices"

	"github.com/fyerfyer/docling-nodes/internal/dldoc"
)

// 文档级元数据键
const (
	MetaKeyDocHash = "dl_doc_hash"
	MetaKeyOrigin  = "origin"
)

// MetadataExtractor 从结构化文档提取元数据
type MetadataExtractor interface {
	// ExcludedEmbedMetadataKeys 嵌入视图中隐藏的键
	ExcludedEmbedMetadataKeys() []string
	// ExcludedLLMMetadataKeys LLM视图中隐藏的键
	ExcludedLLMMetadataKeys() []string
	// Metadata 返回文档元数据，origin为原始来源（路径或URL）
	Metadata(doc *dldoc.Document, origin string) map[string]any
}

// SimpleMetadataExtractor 记录文档哈希和来源
type SimpleMetadataExtractor struct {
	IncludeOrigin bool
}

// NewSimpleMetadataExtractor 创建默认元数据提取器
func NewSimpleMetadataExtractor() *SimpleMetadataExtractor {
	return &SimpleMetadataExtractor{IncludeOrigin: true}
}

func (e *SimpleMetadataExtractor) ExcludedEmbedMetadataKeys() []string {
	return []string{MetaKeyDocHash, MetaKeyOrigin}
}

func (e *SimpleMetadataExtractor) ExcludedLLMMetadataKeys() []string {
	return []string{MetaKeyDocHash, MetaKeyOrigin}
}

// Metadata 实现MetadataExtractor接口
func (e *SimpleMetadataExtractor) Metadata(doc *dldoc.Document, origin string) map[string]any {
	meta := map[string]any{
		MetaKeyDocHash: doc.Hash(),
	}
	if e.IncludeOrigin && origin != "" {
		meta[MetaKeyOrigin] = origin
	}
	return meta
}

// ExcludedKeys 合并文档级和节点级排除键
// 保持首次出现的顺序并去重，keep中的键不会被排除
func ExcludedKeys(docKeys, nodeKeys []string, keep ...string) []string {
	out := make([]string, 0, len(docKeys)+len(nodeKeys))
	for _, group := range [][]string{docKeys, nodeKeys} {
		for _, k := range group {
			if slices.Contains(keep, k) || slices.Contains(out, k) {
				continue
			}
			out = append(out, k)
		}
	}
	return out
}
