package nodeparser

import "errors"

// ErrInvalidContent 文档内容无法反序列化为结构化文档
var ErrInvalidContent = errors.New("invalid document content")
