package reader

import (
	"context"
	"strings"

	"github.com/fyerfyer/docling-nodes/internal/converter"
	"github.com/fyerfyer/docling-nodes/internal/dldoc"
	"github.com/fyerfyer/docling-nodes/internal/nodeparser"
	"github.com/fyerfyer/docling-nodes/internal/schema"
	"github.com/fyerfyer/docling-nodes/internal/stream"
	"github.com/fyerfyer/docling-nodes/internal/transforms"
	"github.com/sirupsen/logrus"
)

// ExportType 文档内容的导出格式
type ExportType string

const (
	ExportMarkdown ExportType = "markdown"
	ExportJSON     ExportType = "json"
)

// ParseExportType 解析导出格式名称
func ParseExportType(s string) (ExportType, error) {
	switch ExportType(strings.ToLower(strings.TrimSpace(s))) {
	case ExportMarkdown, "md":
		return ExportMarkdown, nil
	case ExportJSON:
		return ExportJSON, nil
	}
	return "", &ConfigError{Field: "export_type", Value: s}
}

type exportFunc func(doc *dldoc.Document) (string, error)

// DoclingReader 把源文件转换为文档，或在开启分块时直接产出节点
type DoclingReader struct {
	conv       converter.Converter
	exportType ExportType
	export     exportFunc
	idGen      transforms.IDGenerator
	extractor  transforms.MetadataExtractor
	chunk      bool
	nodeParser nodeparser.NodeParser
	originFn   func(source string) string
	logger     *logrus.Logger
}

// Option 读取器选项
type Option func(*DoclingReader)

// WithExportType 设置导出格式
func WithExportType(t ExportType) Option {
	return func(r *DoclingReader) {
		r.exportType = t
	}
}

// WithIDGenerator 设置文档ID生成器，nil表示使用随机ID
func WithIDGenerator(gen transforms.IDGenerator) Option {
	return func(r *DoclingReader) {
		r.idGen = gen
	}
}

// WithMetadataExtractor 设置元数据提取器，nil表示不写入元数据
func WithMetadataExtractor(e transforms.MetadataExtractor) Option {
	return func(r *DoclingReader) {
		r.extractor = e
	}
}

// WithChunking 是否直接输出分块后的节点
func WithChunking(enabled bool) Option {
	return func(r *DoclingReader) {
		r.chunk = enabled
	}
}

// WithNodeParser 指定分块使用的节点解析器，默认按导出格式选择
func WithNodeParser(p nodeparser.NodeParser) Option {
	return func(r *DoclingReader) {
		r.nodeParser = p
	}
}

// WithOriginFunc 设置源到origin元数据的映射，默认使用源本身
func WithOriginFunc(fn func(source string) string) Option {
	return func(r *DoclingReader) {
		r.originFn = fn
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) Option {
	return func(r *DoclingReader) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewReader 创建读取器，导出格式在此处确定
func NewReader(conv converter.Converter, opts ...Option) (*DoclingReader, error) {
	r := &DoclingReader{
		conv:       conv,
		exportType: ExportMarkdown,
		idGen:      transforms.DocHashIDGenerator{},
		extractor:  transforms.NewSimpleMetadataExtractor(),
		logger:     logrus.New(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if conv == nil {
		return nil, &ConfigError{Field: "converter", Value: "<nil>"}
	}

	switch r.exportType {
	case ExportMarkdown:
		r.export = func(doc *dldoc.Document) (string, error) { return doc.ExportToMarkdown(), nil }
	case ExportJSON:
		r.export = (*dldoc.Document).ExportToJSON
	default:
		return nil, &ConfigError{Field: "export_type", Value: string(r.exportType)}
	}

	if r.chunk && r.nodeParser == nil {
		p, err := DefaultNodeParser(r.exportType, nodeparser.WithLogger(r.logger))
		if err != nil {
			return nil, err
		}
		r.nodeParser = p
	}

	return r, nil
}

// DefaultNodeParser 返回与导出格式匹配的节点解析器
// Markdown导出按标题切分，JSON导出按文档结构分块
func DefaultNodeParser(t ExportType, opts ...nodeparser.Option) (nodeparser.NodeParser, error) {
	switch t {
	case ExportMarkdown:
		return nodeparser.NewMarkdownNodeParser(opts...), nil
	case ExportJSON:
		return nodeparser.NewDoclingNodeParser(opts...), nil
	}
	return nil, &ConfigError{Field: "export_type", Value: string(t)}
}

// ExportType 返回导出格式
func (r *DoclingReader) ExportType() ExportType {
	return r.exportType
}

// LazyLoadData 按输入顺序惰性转换源文件
// 任一源失败时遍历结束并返回错误
func (r *DoclingReader) LazyLoadData(ctx context.Context, sources ...string) *stream.Stream[schema.BaseNode] {
	return stream.New(func(yield func(schema.BaseNode, error) bool) {
		for _, source := range sources {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			doc, err := r.load(ctx, source)
			if err != nil {
				yield(nil, err)
				return
			}

			if !r.chunk {
				if !yield(doc, nil) {
					return
				}
				continue
			}

			for node, err := range r.nodeParser.GetNodesFromDocuments(ctx, []schema.BaseNode{doc}).All() {
				if err != nil {
					yield(nil, err)
					return
				}
				if !yield(node, nil) {
					return
				}
			}
		}
	})
}

// LoadData 转换全部源文件
func (r *DoclingReader) LoadData(ctx context.Context, sources ...string) ([]schema.BaseNode, error) {
	return r.LazyLoadData(ctx, sources...).Collect()
}

func (r *DoclingReader) load(ctx context.Context, source string) (*schema.Document, error) {
	log := r.logger.WithFields(logrus.Fields{
		"source":      source,
		"export_type": r.exportType,
	})
	log.Debug("Converting source")

	dl, err := r.conv.Convert(ctx, source)
	if err != nil {
		return nil, &ConversionError{Source: source, Err: err}
	}

	text, err := r.export(dl)
	if err != nil {
		return nil, &ConversionError{Source: source, Err: err}
	}

	var opts []schema.DocumentOption
	if r.idGen != nil {
		opts = append(opts, schema.WithDocID(r.idGen.GenerateID(dl)))
	}
	if r.extractor != nil {
		opts = append(opts,
			schema.WithExcludedEmbedMetadataKeys(r.extractor.ExcludedEmbedMetadataKeys()),
			schema.WithExcludedLLMMetadataKeys(r.extractor.ExcludedLLMMetadataKeys()),
			schema.WithMetadata(r.extractor.Metadata(dl, r.origin(source))),
		)
	}

	doc := schema.NewDocument(text, opts...)
	log.WithField("doc_id", doc.NodeID()).Debug("Document loaded")
	return doc, nil
}

func (r *DoclingReader) origin(source string) string {
	if r.originFn == nil {
		return source
	}
	return r.originFn(source)
}
