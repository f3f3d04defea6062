package converter

import (
	"fmt"
	"time"

	"github.com/fyerfyer/docling-nodes/internal/cache"
	"github.com/fyerfyer/docling-nodes/internal/pyprovider"
	"github.com/sirupsen/logrus"
)

// Config 转换器配置
type Config struct {
	Type     string // local 或 service
	MaxSize  int64
	Timeout  time.Duration
	Service  *pyprovider.PyServiceConfig
	Cache    cache.Cache // 为nil时不缓存
	CacheTTL time.Duration
	Logger   *logrus.Logger
}

// New 根据配置创建转换器
func New(cfg Config) (Converter, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}

	var conv Converter
	switch cfg.Type {
	case "", "local":
		opts := []LocalOption{WithMaxSize(cfg.MaxSize), WithLogger(logger)}
		if cfg.Timeout > 0 {
			opts = append(opts, WithHTTPClient(newHTTPClient(cfg.Timeout)))
		}
		conv = NewLocalConverter(opts...)
	case "service":
		client, err := pyprovider.NewClient(cfg.Service, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create conversion service client: %w", err)
		}
		conv = NewServiceConverter(pyprovider.NewDocumentClient(client), logger)
	default:
		return nil, fmt.Errorf("unknown converter type %q", cfg.Type)
	}

	if cfg.Cache != nil {
		conv = NewCachedConverter(conv, cfg.Cache, cfg.CacheTTL, logger)
	}
	return conv, nil
}
