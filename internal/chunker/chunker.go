package chunker

import (
	"fmt"
	"iter"
	"strings"

	"github.com/fyerfyer/docling-nodes/internal/dldoc"
)

// LayoutInfo 带版面信息的分块所在页和边界框
type LayoutInfo struct {
	Page int
	BBox dldoc.BoundingBox
}

// Chunk 结构化文档中的一段连续文本
// Layout为nil表示源文档没有分页版面信息
type Chunk struct {
	Path    string      // 在结构化文档中的路径，例如 #/main-text/3
	Text    string      // 分块文本
	Heading string      // 所属标题，可能为空
	Layout  *LayoutInfo // 页码与边界框（可选）
}

// HasLayout 是否携带页码与边界框
func (c Chunk) HasLayout() bool {
	return c.Layout != nil
}

// Chunker 分块器接口
type Chunker interface {
	// Chunk 按阅读顺序惰性产出分块
	Chunk(doc *dldoc.Document) iter.Seq[Chunk]
}

// HierarchicalChunker 按文档层级结构分块
// 每个正文项产生一个分块，标题作为后续分块的元数据
type HierarchicalChunker struct {
	HeadingAsMetadata bool
}

// NewHierarchicalChunker 创建层级分块器
func NewHierarchicalChunker(headingAsMetadata bool) *HierarchicalChunker {
	return &HierarchicalChunker{HeadingAsMetadata: headingAsMetadata}
}

// Chunk 实现Chunker接口
func (c *HierarchicalChunker) Chunk(doc *dldoc.Document) iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		if doc == nil {
			return
		}

		heading := ""
		for i, item := range doc.MainText {
			if item.Ref != "" {
				table, idx, ok := doc.ResolveRef(item.Ref)
				if !ok {
					continue
				}
				text := strings.TrimSpace(table.RowsText())
				if text == "" {
					continue
				}
				chunk := Chunk{
					Path:    fmt.Sprintf("#/tables/%d", idx),
					Text:    c.withHeading(heading, text),
					Heading: c.headingMeta(heading),
					Layout:  layoutOf(table.Prov),
				}
				if !yield(chunk) {
					return
				}
				continue
			}

			text := strings.TrimSpace(item.Text)
			if text == "" || item.IsFurniture() {
				continue
			}

			path := fmt.Sprintf("#/main-text/%d", i)
			if item.IsHeading() {
				heading = text
				if !yield(Chunk{Path: path, Text: text, Layout: layoutOf(item.Prov)}) {
					return
				}
				continue
			}

			chunk := Chunk{
				Path:    path,
				Text:    c.withHeading(heading, text),
				Heading: c.headingMeta(heading),
				Layout:  layoutOf(item.Prov),
			}
			if !yield(chunk) {
				return
			}
		}
	}
}

func (c *HierarchicalChunker) withHeading(heading, text string) string {
	if c.HeadingAsMetadata || heading == "" {
		return text
	}
	return heading + "\n" + text
}

func (c *HierarchicalChunker) headingMeta(heading string) string {
	if !c.HeadingAsMetadata {
		return ""
	}
	return heading
}

func layoutOf(prov []dldoc.Prov) *LayoutInfo {
	if len(prov) == 0 {
		return nil
	}
	return &LayoutInfo{Page: prov[0].Page, BBox: prov[0].BBox}
}
