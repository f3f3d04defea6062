package pyprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Client 外部转换服务的HTTP客户端接口
type Client interface {
	// Get 发送GET请求
	Get(ctx context.Context, path string, result interface{}) error
	// Post 发送JSON POST请求
	Post(ctx context.Context, path string, data interface{}, result interface{}) error
	// PostRaw 发送任意请求体，用于multipart上传
	PostRaw(ctx context.Context, path, contentType string, body []byte, result interface{}) error
	// GetConfig 获取客户端配置
	GetConfig() *PyServiceConfig
}

// HTTPClient 实现Client接口
type HTTPClient struct {
	client  *http.Client
	config  *PyServiceConfig
	headers map[string]string
	logger  *logrus.Logger
}

// APIError API调用返回的错误
type APIError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Detail     string `json:"detail"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status code: %d): %s - %s", e.StatusCode, e.Message, e.Detail)
}

// NewClient 创建HTTP客户端，config为nil时使用默认配置
func NewClient(config *PyServiceConfig, logger *logrus.Logger) (*HTTPClient, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BaseURL == "" {
		return nil, errors.New("python service base url is empty")
	}
	if logger == nil {
		logger = logrus.New()
	}

	headers := map[string]string{
		"Accept":     "application/json",
		"User-Agent": "docling-nodes/1.0",
	}
	if config.APIKey != "" {
		headers["X-Api-Key"] = config.APIKey
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		config:  config,
		headers: headers,
		logger:  logger,
	}, nil
}

func (c *HTTPClient) url(path string) string {
	return strings.TrimRight(c.config.BaseURL, "/") + path
}

// Get 发送GET请求
func (c *HTTPClient) Get(ctx context.Context, path string, result interface{}) error {
	return c.do(ctx, http.MethodGet, path, "", nil, result)
}

// Post 发送JSON POST请求
func (c *HTTPClient) Post(ctx context.Context, path string, data interface{}, result interface{}) error {
	var body []byte
	if data != nil {
		var err error
		body, err = json.Marshal(data)
		if err != nil {
			return errors.Wrap(err, "failed to marshal request data")
		}
	}
	return c.do(ctx, http.MethodPost, path, "application/json", body, result)
}

// PostRaw 发送任意请求体
func (c *HTTPClient) PostRaw(ctx context.Context, path, contentType string, body []byte, result interface{}) error {
	return c.do(ctx, http.MethodPost, path, contentType, body, result)
}

// do 执行请求，网络错误和5xx响应会重试
// 请求体以字节保存，每次重试重新构造请求
func (c *HTTPClient) do(ctx context.Context, method, path, contentType string, body []byte, result interface{}) error {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), "request context canceled")
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
		if err != nil {
			return errors.Wrap(err, "failed to create request")
		}
		for key, value := range c.headers {
			req.Header.Set(key, value)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		lastErr = c.send(req, result)
		if lastErr == nil {
			return nil
		}

		var apiErr *APIError
		if errors.As(lastErr, &apiErr) && apiErr.StatusCode < 500 {
			return lastErr
		}

		c.logger.WithFields(logrus.Fields{
			"method":  method,
			"path":    path,
			"attempt": attempt + 1,
		}).WithError(lastErr).Warn("Python service request failed")
	}

	return lastErr
}

func (c *HTTPClient) send(req *http.Request, result interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "HTTP request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    "API call failed",
		}
		var errResp struct {
			Detail string `json:"detail"`
		}
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Detail != "" {
			apiErr.Detail = errResp.Detail
		} else {
			apiErr.Detail = string(body)
		}
		return apiErr
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return errors.Wrap(err, "failed to unmarshal response JSON")
		}
	}
	return nil
}

// GetConfig 返回客户端配置
func (c *HTTPClient) GetConfig() *PyServiceConfig {
	return c.config
}

// WithHeader 添加自定义请求头
func (c *HTTPClient) WithHeader(key, value string) *HTTPClient {
	c.headers[key] = value
	return c
}
