package converter

import (
	"strings"

	"github.com/fyerfyer/docling-nodes/internal/dldoc"
)

// convertPlainText 以空行分段
func convertPlainText(data []byte, filename string) *dldoc.Document {
	doc := &dldoc.Document{
		Name:        docName(filename),
		Description: dldoc.Description{Logs: []any{}},
		FileInfo: dldoc.FileInfo{
			Filename:     filename,
			DocumentHash: dldoc.ComputeHash(data),
		},
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	var para []string
	flush := func() {
		if len(para) > 0 {
			doc.MainText = append(doc.MainText, dldoc.BaseText{
				Text: strings.Join(para, "\n"),
				Type: dldoc.TypeParagraph,
				Name: dldoc.NameText,
			})
			para = nil
		}
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		para = append(para, line)
	}
	flush()
	return doc
}
