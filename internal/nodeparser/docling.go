package nodeparser

import (
	"context"
	"fmt"
	"iter"

	"github.com/fyerfyer/docling-nodes/internal/chunker"
	"github.com/fyerfyer/docling-nodes/internal/dldoc"
	"github.com/fyerfyer/docling-nodes/internal/schema"
	"github.com/fyerfyer/docling-nodes/internal/stream"
	"github.com/fyerfyer/docling-nodes/internal/transforms"
)

// 节点级元数据键
const (
	MetaKeyPath    = "path"
	MetaKeyHeading = "heading"
	MetaKeyPage    = "page"
	MetaKeyBBox    = "bbox"
)

var (
	docExcludedKeys  = []string{transforms.MetaKeyDocHash, transforms.MetaKeyOrigin}
	nodeExcludedKeys = []string{MetaKeyPath, MetaKeyPage, MetaKeyBBox, transforms.MetaKeyOrigin}
)

// DoclingNodeParser 解析内容为结构化文档JSON的文档
type DoclingNodeParser struct {
	opts *options
}

// NewDoclingNodeParser 创建Docling节点解析器
func NewDoclingNodeParser(opts ...Option) *DoclingNodeParser {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &DoclingNodeParser{opts: o}
}

// ParseNodes 实现NodeParser接口
func (p *DoclingNodeParser) ParseNodes(ctx context.Context, docs []schema.BaseNode) *stream.Stream[*schema.TextNode] {
	return stream.New(parseAll(ctx, p.opts, docs, "Parsing nodes", p.parseDocument))
}

// GetNodesFromDocuments 实现NodeParser接口
func (p *DoclingNodeParser) GetNodesFromDocuments(ctx context.Context, docs []schema.BaseNode) *stream.Stream[*schema.TextNode] {
	return stream.New(postprocess(ctx, p.opts, docs, "Parsing nodes", p.parseDocument))
}

func (p *DoclingNodeParser) parseDocument(doc schema.BaseNode) iter.Seq2[*schema.TextNode, error] {
	return func(yield func(*schema.TextNode, error) bool) {
		dl, err := dldoc.Parse([]byte(doc.GetContent(schema.MetadataModeNone)))
		if err != nil {
			yield(nil, fmt.Errorf("%w: document %s: %w", ErrInvalidContent, doc.NodeID(), err))
			return
		}

		source := doc.AsRelatedNodeInfo()
		excluded := transforms.ExcludedKeys(docExcludedKeys, nodeExcludedKeys, MetaKeyHeading)

		i := 0
		for chunk := range p.opts.chunker.Chunk(dl) {
			node := schema.NewTextNode(p.opts.idFunc(i, doc), chunk.Text)
			node.Metadata = chunkMetadata(chunk.Path, chunk.Heading, chunk.Layout)
			node.ExcludedEmbedMetadataKeys = append([]string{}, excluded...)
			node.ExcludedLLMMetadataKeys = append([]string{}, excluded...)
			node.Relationships[schema.RelationshipSource] = source

			if !yield(node, nil) {
				return
			}
			i++
		}
	}
}

// chunkMetadata 没有版面信息时不写入page和bbox
func chunkMetadata(path, heading string, layout *chunker.LayoutInfo) map[string]any {
	meta := map[string]any{MetaKeyPath: path}
	if heading != "" {
		meta[MetaKeyHeading] = heading
	}
	if layout != nil {
		meta[MetaKeyPage] = layout.Page
		meta[MetaKeyBBox] = layout.BBox[:]
	}
	return meta
}
