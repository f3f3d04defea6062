package reader

import "fmt"

// ConfigError 读取器配置错误，在构造时返回
type ConfigError struct {
	Field string
	Value string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid reader config: unsupported %s %q", e.Field, e.Value)
}

// ConversionError 源文件转换失败
type ConversionError struct {
	Source string
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("failed to convert %s: %v", e.Source, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}
