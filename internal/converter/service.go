package converter

import (
	"context"
	"fmt"

	"github.com/fyerfyer/docling-nodes/internal/dldoc"
	"github.com/fyerfyer/docling-nodes/internal/pyprovider"
	"github.com/sirupsen/logrus"
)

// ServiceConverter 委托外部转换服务完成转换
type ServiceConverter struct {
	client *pyprovider.DocumentClient
	logger *logrus.Logger
}

// NewServiceConverter 创建服务转换器
func NewServiceConverter(client *pyprovider.DocumentClient, logger *logrus.Logger) *ServiceConverter {
	if logger == nil {
		logger = logrus.New()
	}
	return &ServiceConverter{client: client, logger: logger}
}

// Convert 实现Converter接口，URL直接交给服务拉取，本地文件以上传方式发送
func (c *ServiceConverter) Convert(ctx context.Context, source string) (*dldoc.Document, error) {
	var (
		result *pyprovider.ConvertResult
		err    error
	)
	if IsURL(source) {
		result, err = c.client.ConvertSource(ctx, source)
	} else {
		result, err = c.client.ConvertFile(ctx, source)
	}
	if err != nil {
		return nil, err
	}

	if result.Status == pyprovider.StatusPartialSuccess {
		c.logger.WithFields(logrus.Fields{
			"source": source,
			"errors": len(result.Errors),
		}).Warn("Document partially converted")
	}

	if len(result.JSONContent) == 0 {
		return nil, fmt.Errorf("conversion service returned no json content for %s", source)
	}
	return dldoc.Parse(result.JSONContent)
}
