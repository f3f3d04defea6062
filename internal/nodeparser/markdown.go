package nodeparser

import (
	"bytes"
	"context"
	"iter"
	"strings"

	"github.com/fyerfyer/docling-nodes/internal/schema"
	"github.com/fyerfyer/docling-nodes/internal/stream"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// MetaKeyHeaderPath Markdown节点的标题路径，例如 /Intro/Setup/
const MetaKeyHeaderPath = "header_path"

// MarkdownNodeParser 按Markdown标题切分文档
type MarkdownNodeParser struct {
	opts *options
}

// NewMarkdownNodeParser 创建Markdown节点解析器
func NewMarkdownNodeParser(opts ...Option) *MarkdownNodeParser {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &MarkdownNodeParser{opts: o}
}

// ParseNodes 实现NodeParser接口
func (p *MarkdownNodeParser) ParseNodes(ctx context.Context, docs []schema.BaseNode) *stream.Stream[*schema.TextNode] {
	return stream.New(parseAll(ctx, p.opts, docs, "Parsing markdown", p.parseDocument))
}

// GetNodesFromDocuments 实现NodeParser接口
func (p *MarkdownNodeParser) GetNodesFromDocuments(ctx context.Context, docs []schema.BaseNode) *stream.Stream[*schema.TextNode] {
	return stream.New(postprocess(ctx, p.opts, docs, "Parsing markdown", p.parseDocument))
}

type mdSection struct {
	headerPath string
	text       string
}

type mdHeader struct {
	level int
	text  string
}

func (p *MarkdownNodeParser) parseDocument(doc schema.BaseNode) iter.Seq2[*schema.TextNode, error] {
	return func(yield func(*schema.TextNode, error) bool) {
		source := doc.AsRelatedNodeInfo()

		var embedKeys, llmKeys []string
		if tn, ok := excludedKeysOf(doc); ok {
			embedKeys, llmKeys = tn.ExcludedEmbedMetadataKeys, tn.ExcludedLLMMetadataKeys
		}

		for i, sec := range splitMarkdown(doc.GetContent(schema.MetadataModeNone)) {
			node := schema.NewTextNode(p.opts.idFunc(i, doc), sec.text)
			node.Metadata[MetaKeyHeaderPath] = sec.headerPath
			node.ExcludedEmbedMetadataKeys = append([]string{}, embedKeys...)
			node.ExcludedLLMMetadataKeys = append([]string{}, llmKeys...)
			node.Relationships[schema.RelationshipSource] = source

			if !yield(node, nil) {
				return
			}
		}
	}
}

func excludedKeysOf(n schema.BaseNode) (*schema.TextNode, bool) {
	switch v := n.(type) {
	case *schema.Document:
		return &v.TextNode, true
	case *schema.TextNode:
		return v, true
	}
	return nil, false
}

// splitMarkdown 在顶层标题处切分，标题由gomarkdown块解析器识别
func splitMarkdown(text string) []mdSection {
	src := parser.NormalizeNewlines([]byte(text))
	if len(src) > 0 && src[len(src)-1] != '\n' {
		src = append(src, '\n')
	}

	// 只做块级解析，标题的Content仍是src的子切片
	p := parser.NewWithExtensions(parser.CommonExtensions)
	p.Block(src)

	var (
		sections []mdSection
		stack    []mdHeader
		curPath  = "/"
		begin    int
	)

	flush := func(end int) {
		body := strings.TrimSpace(string(src[begin:end]))
		if body != "" {
			sections = append(sections, mdSection{headerPath: curPath, text: body})
		}
	}

	for _, child := range p.Doc.GetChildren() {
		h, ok := child.(*ast.Heading)
		if !ok || h.IsSpecial {
			continue
		}
		off, ok := offsetIn(src, h.Content)
		if !ok {
			continue
		}
		lineStart := bytes.LastIndexByte(src[:off], '\n') + 1

		flush(lineStart)
		begin = lineStart
		for len(stack) > 0 && stack[len(stack)-1].level >= h.Level {
			stack = stack[:len(stack)-1]
		}
		curPath = headerPath(stack)
		stack = append(stack, mdHeader{level: h.Level, text: strings.TrimSpace(string(h.Content))})
	}
	flush(len(src))
	return sections
}

// offsetIn 返回sub在src底层数组中的起始位置
func offsetIn(src, sub []byte) (int, bool) {
	if cap(sub) == 0 {
		return 0, false
	}
	off := cap(src) - cap(sub)
	if off < 0 || off > len(src) {
		return 0, false
	}
	if &src[:off+1][off] != &sub[:1][0] {
		return 0, false
	}
	return off, true
}

func headerPath(stack []mdHeader) string {
	if len(stack) == 0 {
		return "/"
	}
	parts := make([]string, len(stack))
	for i, h := range stack {
		parts[i] = h.text
	}
	return "/" + strings.Join(parts, "/") + "/"
}
