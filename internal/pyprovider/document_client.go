package pyprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const (
	convertSourcePath = "/v1/convert/source"
	convertFilePath   = "/v1/convert/file"
)

// 转换状态
const (
	StatusSuccess        = "success"
	StatusPartialSuccess = "partial_success"
	StatusFailure        = "failure"
)

// ConvertOptions 转换选项
type ConvertOptions struct {
	ToFormats []string `json:"to_formats"`
	DoOCR     bool     `json:"do_ocr"`
}

// DefaultConvertOptions 同时请求JSON和Markdown输出
func DefaultConvertOptions() ConvertOptions {
	return ConvertOptions{ToFormats: []string{"json", "md"}}
}

// HTTPSource 以URL提供的源文件
type HTTPSource struct {
	Kind string `json:"kind"`
	URL  string `json:"url"`
}

// ConvertSourceRequest 源转换请求
type ConvertSourceRequest struct {
	Options ConvertOptions `json:"options"`
	Sources []HTTPSource   `json:"sources"`
}

// ConvertResult 转换后的文档
type ConvertResult struct {
	Filename    string          `json:"filename"`
	JSONContent json.RawMessage `json:"json_content"`
	MDContent   string          `json:"md_content"`
	Status      string          `json:"-"`
	Errors      []ConvertError  `json:"-"`
}

// ConvertError 服务端报告的转换错误
type ConvertError struct {
	ComponentType string `json:"component_type"`
	ModuleName    string `json:"module_name"`
	ErrorMessage  string `json:"error_message"`
}

// ConvertResponse 转换接口响应
type ConvertResponse struct {
	Document       ConvertResult  `json:"document"`
	Status         string         `json:"status"`
	Errors         []ConvertError `json:"errors"`
	ProcessingTime float64        `json:"processing_time"`
}

// DocumentClient 外部文档转换服务客户端
type DocumentClient struct {
	client  Client
	options ConvertOptions
}

// NewDocumentClient 创建文档转换客户端
func NewDocumentClient(client Client) *DocumentClient {
	return &DocumentClient{
		client:  client,
		options: DefaultConvertOptions(),
	}
}

// WithOptions 设置转换选项
func (c *DocumentClient) WithOptions(opts ConvertOptions) *DocumentClient {
	c.options = opts
	return c
}

// ConvertSource 转换URL源
func (c *DocumentClient) ConvertSource(ctx context.Context, url string) (*ConvertResult, error) {
	req := ConvertSourceRequest{
		Options: c.options,
		Sources: []HTTPSource{{Kind: "http", URL: url}},
	}

	var resp ConvertResponse
	if err := c.client.Post(ctx, convertSourcePath, req, &resp); err != nil {
		return nil, errors.Wrap(err, "failed to convert source")
	}
	return resultOf(&resp)
}

// ConvertFile 上传本地文件进行转换
func (c *DocumentClient) ConvertFile(ctx context.Context, path string) (*ConvertResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open file")
	}
	defer f.Close()

	return c.ConvertReader(ctx, f, filepath.Base(path))
}

// ConvertReader 从io.Reader上传文件进行转换
func (c *DocumentClient) ConvertReader(ctx context.Context, r io.Reader, filename string) (*ConvertResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	for _, format := range c.options.ToFormats {
		if err := writer.WriteField("to_formats", format); err != nil {
			return nil, errors.Wrap(err, "failed to write to_formats field")
		}
	}
	if err := writer.WriteField("do_ocr", fmt.Sprint(c.options.DoOCR)); err != nil {
		return nil, errors.Wrap(err, "failed to write do_ocr field")
	}

	part, err := writer.CreateFormFile("files", filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file field")
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, errors.Wrap(err, "failed to copy file data")
	}
	if err := writer.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to close multipart writer")
	}

	var resp ConvertResponse
	if err := c.client.PostRaw(ctx, convertFilePath, writer.FormDataContentType(), body.Bytes(), &resp); err != nil {
		return nil, errors.Wrap(err, "failed to convert file")
	}
	return resultOf(&resp)
}

func resultOf(resp *ConvertResponse) (*ConvertResult, error) {
	if resp.Status != StatusSuccess && resp.Status != StatusPartialSuccess {
		detail := resp.Status
		if len(resp.Errors) > 0 {
			detail = resp.Errors[0].ErrorMessage
		}
		return nil, &APIError{StatusCode: 200, Message: "conversion failed", Detail: detail}
	}

	result := resp.Document
	result.Status = resp.Status
	result.Errors = resp.Errors
	return &result, nil
}
