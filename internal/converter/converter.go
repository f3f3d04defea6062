package converter

import (
	"context"
	"errors"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/fyerfyer/docling-nodes/internal/dldoc"
)

// ErrUnsupportedFormat 无法识别的源文件格式
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Converter 把源文件（本地路径或URL）转换为结构化文档
type Converter interface {
	Convert(ctx context.Context, source string) (*dldoc.Document, error)
}

// ConverterFunc 函数适配器
type ConverterFunc func(ctx context.Context, source string) (*dldoc.Document, error)

// Convert 实现Converter接口
func (f ConverterFunc) Convert(ctx context.Context, source string) (*dldoc.Document, error) {
	return f(ctx, source)
}

// ContentType 源文件内容类型
type ContentType string

const (
	PDF       ContentType = "pdf"
	Markdown  ContentType = "markdown"
	PlainText ContentType = "plaintext"
	JSON      ContentType = "json"
	Unknown   ContentType = "unknown"
)

// DetectContentType 根据扩展名检测内容类型，URL按其路径判断
func DetectContentType(source string) ContentType {
	p := source
	if IsURL(source) {
		if u, err := url.Parse(source); err == nil {
			p = u.Path
		}
	}

	switch strings.ToLower(path.Ext(filepath.ToSlash(p))) {
	case ".pdf":
		return PDF
	case ".md", ".markdown":
		return Markdown
	case ".txt":
		return PlainText
	case ".json":
		return JSON
	default:
		return Unknown
	}
}

// IsURL 是否为http(s)地址
func IsURL(source string) bool {
	u, err := url.Parse(source)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// docName 文档名取文件名去掉扩展名
func docName(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
