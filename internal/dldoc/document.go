package dldoc

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidDocument 结构化文档无法反序列化或缺少必填字段
var ErrInvalidDocument = errors.New("invalid structured document")

// 文本项类型
const (
	TypeTitle        = "title"
	TypeSubtitle     = "subtitle-level-1"
	TypeParagraph    = "paragraph"
	TypeListItem     = "list-item"
	TypeTable        = "table"
	TypePageHeader   = "page-header"
	TypePageFooter   = "page-footer"
	TypeCaption      = "caption"
	NameText         = "Text"
	NameSectionTitle = "Section-header"
	NameTitle        = "Title"
	NameListItem     = "List-item"
	NameTable        = "Table"
	NameCode         = "Code"
)

// BoundingBox 页面坐标系中的边界框 (x0, y0, x1, y1)
type BoundingBox [4]float64

// Prov 文本项在原始文件中的位置
type Prov struct {
	BBox BoundingBox `json:"bbox"`
	Page int         `json:"page"`
	Span [2]int      `json:"span"`
}

// BaseText 主文本中的一项
// Ref不为空时表示引用其他集合中的元素（例如 #/tables/0）
type BaseText struct {
	Text string `json:"text,omitempty"`
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
	Prov []Prov `json:"prov,omitempty"`
	Ref  string `json:"$ref,omitempty"`
}

// TableCell 表格单元格
type TableCell struct {
	Text string `json:"text"`
}

// Table 表格
type Table struct {
	Text    string        `json:"text,omitempty"`
	Type    string        `json:"type"`
	Prov    []Prov        `json:"prov,omitempty"`
	Data    [][]TableCell `json:"data,omitempty"`
	NumRows int           `json:"#-rows,omitempty"`
	NumCols int           `json:"#-cols,omitempty"`
}

// FileInfo 源文件信息
type FileInfo struct {
	Filename     string `json:"filename"`
	DocumentHash string `json:"document-hash"`
	NumPages     int    `json:"#-pages,omitempty"`
}

// Description 文档描述
type Description struct {
	Title string `json:"title,omitempty"`
	Logs  []any  `json:"logs"`
}

// PageDimension 页面尺寸
type PageDimension struct {
	Page   int     `json:"page"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Document 转换器产出的结构化文档
type Document struct {
	Name           string          `json:"name"`
	Description    Description     `json:"description"`
	FileInfo       FileInfo        `json:"file-info"`
	MainText       []BaseText      `json:"main-text,omitempty"`
	Tables         []Table         `json:"tables,omitempty"`
	PageDimensions []PageDimension `json:"page-dimensions,omitempty"`

	// Extra 未建模的顶层键（figures、equations、footnotes等），导出时原样写回
	Extra map[string]json.RawMessage `json:"-"`
}

// knownKeys 由Document字段承载的顶层键
var knownKeys = map[string]bool{
	"name":            true,
	"description":     true,
	"file-info":       true,
	"file_info":       true,
	"main-text":       true,
	"main_text":       true,
	"tables":          true,
	"page-dimensions": true,
	"page_dimensions": true,
}

// wireDocument 兼容字段名形式的键（main_text / file_info）
type wireDocument struct {
	Name           *string         `json:"name"`
	Description    Description     `json:"description"`
	FileInfo       *FileInfo       `json:"file-info"`
	FileInfoAlt    *FileInfo       `json:"file_info"`
	MainText       []BaseText      `json:"main-text"`
	MainTextAlt    []BaseText      `json:"main_text"`
	Tables         []Table         `json:"tables"`
	PageDimensions []PageDimension `json:"page-dimensions"`
	PageDimsAlt    []PageDimension `json:"page_dimensions"`
}

// Parse 从JSON解析结构化文档
func Parse(data []byte) (*Document, error) {
	var w wireDocument
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	if w.Name == nil {
		return nil, fmt.Errorf("%w: missing field \"name\"", ErrInvalidDocument)
	}
	info := w.FileInfo
	if info == nil {
		info = w.FileInfoAlt
	}
	if info == nil || info.DocumentHash == "" {
		return nil, fmt.Errorf("%w: missing field \"file-info.document-hash\"", ErrInvalidDocument)
	}

	doc := &Document{
		Name:           *w.Name,
		Description:    w.Description,
		FileInfo:       *info,
		MainText:       w.MainText,
		Tables:         w.Tables,
		PageDimensions: w.PageDimensions,
	}
	if doc.MainText == nil {
		doc.MainText = w.MainTextAlt
	}
	if doc.PageDimensions == nil {
		doc.PageDimensions = w.PageDimsAlt
	}
	if doc.Description.Logs == nil {
		doc.Description.Logs = []any{}
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	for k, v := range raw {
		if knownKeys[k] {
			continue
		}
		if doc.Extra == nil {
			doc.Extra = make(map[string]json.RawMessage)
		}
		doc.Extra[k] = v
	}
	return doc, nil
}

// ExportToJSON 无损导出为JSON字符串，不修改文档本身
func (d *Document) ExportToJSON() (string, error) {
	cp := *d
	if cp.Description.Logs == nil {
		cp.Description.Logs = []any{}
	}
	data, err := json.Marshal(&cp)
	if err != nil {
		return "", fmt.Errorf("failed to marshal structured document: %w", err)
	}
	if len(cp.Extra) == 0 {
		return string(data), nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return "", fmt.Errorf("failed to merge extra keys: %w", err)
	}
	for k, v := range cp.Extra {
		if _, ok := merged[k]; !ok && !knownKeys[k] {
			merged[k] = v
		}
	}
	data, err = json.Marshal(merged)
	if err != nil {
		return "", fmt.Errorf("failed to marshal structured document: %w", err)
	}
	return string(data), nil
}

// Hash 返回文档哈希
func (d *Document) Hash() string {
	return d.FileInfo.DocumentHash
}

// ResolveRef 解析 #/tables/N 形式的引用
func (d *Document) ResolveRef(ref string) (*Table, int, bool) {
	const prefix = "#/tables/"
	if !strings.HasPrefix(ref, prefix) {
		return nil, 0, false
	}
	idx, err := strconv.Atoi(strings.TrimPrefix(ref, prefix))
	if err != nil || idx < 0 || idx >= len(d.Tables) {
		return nil, 0, false
	}
	return &d.Tables[idx], idx, true
}

// IsHeading 判断文本项是否为标题
func (t BaseText) IsHeading() bool {
	if t.Type == TypeTitle || strings.HasPrefix(t.Type, "subtitle-level") {
		return true
	}
	return t.Name == NameSectionTitle || t.Name == NameTitle
}

// IsFurniture 页眉页脚不属于正文
func (t BaseText) IsFurniture() bool {
	return t.Type == TypePageHeader || t.Type == TypePageFooter
}

// RowsText 将表格按行拼接为文本
func (t *Table) RowsText() string {
	if len(t.Data) == 0 {
		return t.Text
	}
	rows := make([]string, 0, len(t.Data))
	for _, row := range t.Data {
		cells := make([]string, 0, len(row))
		for _, c := range row {
			cells = append(cells, strings.TrimSpace(c.Text))
		}
		rows = append(rows, strings.Join(cells, " | "))
	}
	return strings.Join(rows, "\n")
}

// ComputeHash 计算源文件内容的哈希，作为 document-hash
func ComputeHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
