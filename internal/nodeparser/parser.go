package nodeparser

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"unicode/utf8"

	"github.com/fyerfyer/docling-nodes/internal/chunker"
	"github.com/fyerfyer/docling-nodes/internal/schema"
	"github.com/fyerfyer/docling-nodes/internal/stream"
	"github.com/sirupsen/logrus"
)

// NodeParser 把文档切分为节点
type NodeParser interface {
	// ParseNodes 直接解析，节点只带SOURCE关系
	ParseNodes(ctx context.Context, docs []schema.BaseNode) *stream.Stream[*schema.TextNode]
	// GetNodesFromDocuments 完整解析流程
	// 合并父文档元数据、记录字符区间并建立同一文档内的前后关系
	GetNodesFromDocuments(ctx context.Context, docs []schema.BaseNode) *stream.Stream[*schema.TextNode]
}

// IDFunc 根据序号和父文档生成节点ID
type IDFunc func(i int, parent schema.BaseNode) string

// DefaultIDFunc 生成 <父文档ID>_<序号>
func DefaultIDFunc(i int, parent schema.BaseNode) string {
	return fmt.Sprintf("%s_%d", parent.NodeID(), i)
}

// Option 解析器选项
type Option func(*options)

type options struct {
	chunker            chunker.Chunker
	idFunc             IDFunc
	progress           ProgressReporter
	logger             *logrus.Logger
	includeMetadata    bool
	includePrevNextRel bool
}

func defaultOptions() *options {
	return &options{
		chunker:            chunker.NewHierarchicalChunker(true),
		idFunc:             DefaultIDFunc,
		progress:           NopProgress{},
		logger:             logrus.New(),
		includeMetadata:    true,
		includePrevNextRel: true,
	}
}

// WithChunker 设置分块器，仅对Docling解析器生效
func WithChunker(c chunker.Chunker) Option {
	return func(o *options) {
		if c != nil {
			o.chunker = c
		}
	}
}

// WithIDFunc 设置节点ID函数
func WithIDFunc(fn IDFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.idFunc = fn
		}
	}
}

// WithProgress 设置进度展示
func WithProgress(p ProgressReporter) Option {
	return func(o *options) {
		if p != nil {
			o.progress = p
		}
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithIncludeMetadata 完整流程中是否合并父文档元数据
func WithIncludeMetadata(include bool) Option {
	return func(o *options) {
		o.includeMetadata = include
	}
}

// WithIncludePrevNextRel 完整流程中是否建立前后关系
func WithIncludePrevNextRel(include bool) Option {
	return func(o *options) {
		o.includePrevNextRel = include
	}
}

// docParseFunc 把单个文档解析为节点序列
type docParseFunc func(doc schema.BaseNode) iter.Seq2[*schema.TextNode, error]

// parseAll 按输入顺序逐个文档解析
func parseAll(ctx context.Context, o *options, docs []schema.BaseNode, desc string, parse docParseFunc) iter.Seq2[*schema.TextNode, error] {
	return func(yield func(*schema.TextNode, error) bool) {
		o.progress.Start(len(docs), desc)
		defer o.progress.Done()

		for _, doc := range docs {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			o.logger.WithFields(logrus.Fields{
				"doc_id": doc.NodeID(),
			}).Debug("Parsing document into nodes")

			for node, err := range parse(doc) {
				if !yield(node, err) || err != nil {
					return
				}
			}
			o.progress.Advance()
		}
	}
}

// postprocess 完整流程：逐文档缓冲节点后补充元数据、字符区间和前后关系
func postprocess(ctx context.Context, o *options, docs []schema.BaseNode, desc string, parse docParseFunc) iter.Seq2[*schema.TextNode, error] {
	return func(yield func(*schema.TextNode, error) bool) {
		o.progress.Start(len(docs), desc)
		defer o.progress.Done()

		for _, doc := range docs {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			var nodes []*schema.TextNode
			for node, err := range parse(doc) {
				if err != nil {
					yield(nil, err)
					return
				}
				nodes = append(nodes, node)
			}

			finishNodes(o, doc, nodes)
			o.logger.WithFields(logrus.Fields{
				"doc_id":     doc.NodeID(),
				"node_count": len(nodes),
			}).Debug("Document parsed")

			for _, node := range nodes {
				if !yield(node, nil) {
					return
				}
			}
			o.progress.Advance()
		}
	}
}

func finishNodes(o *options, parent schema.BaseNode, nodes []*schema.TextNode) {
	parentText := parent.GetContent(schema.MetadataModeNone)
	parentMeta := parent.GetMetadata()

	for _, node := range nodes {
		if o.includeMetadata {
			// 节点自身的键优先
			for k, v := range parentMeta {
				if _, ok := node.Metadata[k]; !ok {
					node.Metadata[k] = v
				}
			}
		}

		if start := strings.Index(parentText, node.Text); start >= 0 && node.Text != "" {
			runeStart := utf8.RuneCountInString(parentText[:start])
			node.SetCharRange(runeStart, runeStart+utf8.RuneCountInString(node.Text))
		}
	}

	if !o.includePrevNextRel {
		return
	}
	for i, node := range nodes {
		if i > 0 {
			node.Relationships[schema.RelationshipPrevious] = nodes[i-1].AsRelatedNodeInfo()
		}
		if i < len(nodes)-1 {
			node.Relationships[schema.RelationshipNext] = nodes[i+1].AsRelatedNodeInfo()
		}
	}
}
