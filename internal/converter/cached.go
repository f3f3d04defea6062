package converter

import (
	"context"
	"os"
	"time"

	"github.com/fyerfyer/docling-nodes/internal/cache"
	"github.com/fyerfyer/docling-nodes/internal/dldoc"
	"github.com/sirupsen/logrus"
)

// CachedConverter 缓存转换结果
// 本地文件以内容哈希为键，URL以地址为键
type CachedConverter struct {
	next   Converter
	cache  cache.Cache
	ttl    time.Duration
	logger *logrus.Logger
}

// NewCachedConverter 包装一个转换器
func NewCachedConverter(next Converter, c cache.Cache, ttl time.Duration, logger *logrus.Logger) *CachedConverter {
	if logger == nil {
		logger = logrus.New()
	}
	return &CachedConverter{next: next, cache: c, ttl: ttl, logger: logger}
}

// Convert 实现Converter接口，缓存读写失败只记录日志
func (c *CachedConverter) Convert(ctx context.Context, source string) (*dldoc.Document, error) {
	key := c.key(source)
	log := c.logger.WithField("source", source)

	if key != "" {
		if val, found, err := c.cache.Get(ctx, key); err != nil {
			log.WithError(err).Warn("Failed to read conversion cache")
		} else if found {
			if doc, err := dldoc.Parse([]byte(val)); err == nil {
				log.Debug("Conversion cache hit")
				return doc, nil
			}
			log.Warn("Discarding corrupted conversion cache entry")
		}
	}

	doc, err := c.next.Convert(ctx, source)
	if err != nil {
		return nil, err
	}

	if key != "" {
		if data, err := doc.ExportToJSON(); err == nil {
			if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
				log.WithError(err).Warn("Failed to write conversion cache")
			}
		}
	}
	return doc, nil
}

func (c *CachedConverter) key(source string) string {
	if IsURL(source) {
		return cache.GenerateCacheKey("convert", "url", source)
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return ""
	}
	return cache.GenerateCacheKey("convert", "file", dldoc.ComputeHash(data))
}
