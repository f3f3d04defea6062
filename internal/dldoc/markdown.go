package dldoc

import (
	"strings"
)

// ExportToMarkdown 导出为可读的Markdown文本
func (d *Document) ExportToMarkdown() string {
	var parts []string

	for _, item := range d.MainText {
		if item.Ref != "" {
			if table, _, ok := d.ResolveRef(item.Ref); ok {
				if md := tableToMarkdown(table); md != "" {
					parts = append(parts, md)
				}
			}
			continue
		}

		text := strings.TrimSpace(item.Text)
		if text == "" || item.IsFurniture() {
			continue
		}

		switch {
		case item.Type == TypeTitle || item.Name == NameTitle:
			parts = append(parts, "# "+text)
		case item.IsHeading():
			parts = append(parts, "## "+text)
		case item.Type == TypeListItem:
			parts = append(parts, "- "+strings.TrimLeft(text, "-•* "))
		case item.Name == NameCode:
			parts = append(parts, "```\n"+text+"\n```")
		default:
			parts = append(parts, escapeBlockStart(text))
		}
	}

	return strings.Join(parts, "\n\n")
}

// escapeBlockStart 转义正文行首的块标记，避免重新解析时变成标题、引用、列表或代码块
func escapeBlockStart(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = escapeLine(line)
	}
	return strings.Join(lines, "\n")
}

func escapeLine(line string) string {
	trimmed := strings.TrimLeft(line, " \t")
	if trimmed == "" {
		return line
	}
	indent := line[:len(line)-len(trimmed)]

	switch {
	case trimmed[0] == '#', trimmed[0] == '>':
	case strings.HasPrefix(trimmed, "```"), strings.HasPrefix(trimmed, "~~~"):
	case strings.IndexByte("-*+", trimmed[0]) >= 0 && (len(trimmed) == 1 || trimmed[1] == ' ' || trimmed[1] == '\t'):
	case strings.Trim(trimmed, "=") == "", strings.Trim(trimmed, "-") == "":
	default:
		// 有序列表标记，例如 "1. "
		digits := len(trimmed) - len(strings.TrimLeft(trimmed, "0123456789"))
		if digits > 0 && digits <= 9 && digits < len(trimmed) && (trimmed[digits] == '.' || trimmed[digits] == ')') &&
			(digits+1 == len(trimmed) || trimmed[digits+1] == ' ' || trimmed[digits+1] == '\t') {
			return indent + trimmed[:digits] + "\\" + trimmed[digits:]
		}
		return line
	}
	return indent + "\\" + trimmed
}

// tableToMarkdown 表格转为Markdown表格，首行作为表头
func tableToMarkdown(t *Table) string {
	if len(t.Data) == 0 {
		return strings.TrimSpace(t.Text)
	}

	var b strings.Builder
	for i, row := range t.Data {
		cells := make([]string, 0, len(row))
		for _, c := range row {
			cells = append(cells, strings.ReplaceAll(strings.TrimSpace(c.Text), "|", "\\|"))
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |")
		if i == 0 {
			sep := make([]string, len(row))
			for j := range sep {
				sep[j] = "---"
			}
			b.WriteString("\n| " + strings.Join(sep, " | ") + " |")
		}
		if i < len(t.Data)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}
