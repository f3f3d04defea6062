package pyprovider

import (
	"time"
)

// PyServiceConfig 外部转换服务连接配置
type PyServiceConfig struct {
	BaseURL    string        // 服务基础URL
	Timeout    time.Duration // 请求超时时间，文档转换通常较慢
	MaxRetries int           // 最大重试次数
	RetryDelay time.Duration // 重试间隔，按次数线性增加
	APIKey     string        // 可选的访问密钥，通过 X-Api-Key 头发送
}

// DefaultConfig 返回默认配置
func DefaultConfig() *PyServiceConfig {
	return &PyServiceConfig{
		BaseURL:    "http://localhost:5001",
		Timeout:    120 * time.Second,
		MaxRetries: 2,
		RetryDelay: time.Second,
	}
}

// WithBaseURL 设置基础URL
func (c *PyServiceConfig) WithBaseURL(url string) *PyServiceConfig {
	c.BaseURL = url
	return c
}

// WithTimeout 设置请求超时时间
func (c *PyServiceConfig) WithTimeout(timeout time.Duration) *PyServiceConfig {
	c.Timeout = timeout
	return c
}

// WithRetry 设置重试参数
func (c *PyServiceConfig) WithRetry(maxRetries int, retryDelay time.Duration) *PyServiceConfig {
	c.MaxRetries = maxRetries
	c.RetryDelay = retryDelay
	return c
}

// WithAPIKey 设置访问密钥
func (c *PyServiceConfig) WithAPIKey(key string) *PyServiceConfig {
	c.APIKey = key
	return c
}
