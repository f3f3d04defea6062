package converter

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/fyerfyer/docling-nodes/internal/dldoc"
	"github.com/sirupsen/logrus"
)

// LocalConverter 在进程内完成转换
type LocalConverter struct {
	httpClient *http.Client
	maxSize    int64
	logger     *logrus.Logger
}

// LocalOption 本地转换器选项
type LocalOption func(*LocalConverter)

// WithHTTPClient 设置下载URL源使用的HTTP客户端
func WithHTTPClient(client *http.Client) LocalOption {
	return func(c *LocalConverter) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithMaxSize 设置源文件最大字节数
func WithMaxSize(n int64) LocalOption {
	return func(c *LocalConverter) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) LocalOption {
	return func(c *LocalConverter) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewLocalConverter 创建本地转换器
func NewLocalConverter(opts ...LocalOption) *LocalConverter {
	c := &LocalConverter{
		httpClient: newHTTPClient(60 * time.Second),
		maxSize:    100 << 20,
		logger:     logrus.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// Convert 实现Converter接口
func (c *LocalConverter) Convert(ctx context.Context, source string) (*dldoc.Document, error) {
	filename := source
	typ := DetectContentType(source)

	var data []byte
	var err error
	if IsURL(source) {
		var ext string
		data, ext, err = c.fetch(ctx, source)
		if err != nil {
			return nil, err
		}
		if u, perr := url.Parse(source); perr == nil {
			filename = path.Base(u.Path)
		}
		if typ == Unknown && ext != "" {
			typ = DetectContentType("x" + ext)
			filename += ext
		}
	} else {
		data, err = c.readFile(source)
		if err != nil {
			return nil, err
		}
	}

	c.logger.WithFields(logrus.Fields{
		"source": source,
		"type":   typ,
		"size":   len(data),
	}).Debug("Converting source")

	switch typ {
	case PDF:
		return convertPDF(data, filepath.Base(filename), c.logger)
	case Markdown:
		return convertMarkdown(data, filepath.Base(filename)), nil
	case PlainText:
		return convertPlainText(data, filepath.Base(filename)), nil
	case JSON:
		return dldoc.Parse(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, source)
	}
}

func (c *LocalConverter) readFile(p string) ([]byte, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("failed to stat source: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("source %s is a directory", p)
	}
	if info.Size() > c.maxSize {
		return nil, fmt.Errorf("source %s exceeds max size %d", p, c.maxSize)
	}
	return os.ReadFile(p)
}

// fetch 下载URL源，返回内容和根据Content-Type推断的扩展名
func (c *LocalConverter) fetch(ctx context.Context, source string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch %s: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to fetch %s: status %d", source, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", source, err)
	}
	if int64(len(data)) > c.maxSize {
		return nil, "", fmt.Errorf("source %s exceeds max size %d", source, c.maxSize)
	}

	return data, extFromContentType(resp.Header.Get("Content-Type")), nil
}

func extFromContentType(ct string) string {
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	switch mediaType {
	case "application/pdf":
		return ".pdf"
	case "text/markdown", "text/x-markdown":
		return ".md"
	case "text/plain":
		return ".txt"
	case "application/json":
		return ".json"
	}
	return ""
}
