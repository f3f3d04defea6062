package converter

import (
	"fmt"
	"strings"

	"github.com/fyerfyer/docling-nodes/internal/dldoc"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// convertMarkdown 解析Markdown语法树生成结构化文档，没有版面信息
func convertMarkdown(data []byte, filename string) *dldoc.Document {
	md := parser.NewWithExtensions(parser.CommonExtensions)
	root := md.Parse(data)

	doc := &dldoc.Document{
		Name:        docName(filename),
		Description: dldoc.Description{Logs: []any{}},
		FileInfo: dldoc.FileInfo{
			Filename:     filename,
			DocumentHash: dldoc.ComputeHash(data),
		},
	}

	for _, node := range root.GetChildren() {
		switch n := node.(type) {
		case *ast.Heading:
			item := dldoc.BaseText{Text: inlineText(n), Type: dldoc.TypeSubtitle, Name: dldoc.NameSectionTitle}
			if n.Level == 1 {
				item.Type, item.Name = dldoc.TypeTitle, dldoc.NameTitle
			}
			doc.MainText = append(doc.MainText, item)
			if doc.Description.Title == "" && n.Level == 1 {
				doc.Description.Title = item.Text
			}
		case *ast.Paragraph, *ast.BlockQuote:
			doc.MainText = append(doc.MainText, dldoc.BaseText{
				Text: inlineText(n), Type: dldoc.TypeParagraph, Name: dldoc.NameText,
			})
		case *ast.List:
			for _, child := range n.GetChildren() {
				if li, ok := child.(*ast.ListItem); ok {
					doc.MainText = append(doc.MainText, dldoc.BaseText{
						Text: inlineText(li), Type: dldoc.TypeListItem, Name: dldoc.NameListItem,
					})
				}
			}
		case *ast.CodeBlock:
			doc.MainText = append(doc.MainText, dldoc.BaseText{
				Text: strings.TrimRight(string(n.Literal), "\n"), Type: dldoc.TypeParagraph, Name: dldoc.NameCode,
			})
		case *ast.Table:
			table := markdownTable(n)
			doc.MainText = append(doc.MainText, dldoc.BaseText{
				Type: dldoc.TypeTable,
				Name: dldoc.NameTable,
				Ref:  fmt.Sprintf("#/tables/%d", len(doc.Tables)),
			})
			doc.Tables = append(doc.Tables, table)
		}
	}
	return doc
}

// inlineText 收集节点下所有文本，折叠空白
func inlineText(node ast.Node) string {
	var sb strings.Builder
	ast.WalkFunc(node, func(n ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		switch v := n.(type) {
		case *ast.Text:
			sb.Write(v.Literal)
		case *ast.Code:
			sb.Write(v.Literal)
		case *ast.Softbreak, *ast.Hardbreak, *ast.Paragraph, *ast.ListItem:
			sb.WriteByte(' ')
		}
		return ast.GoToNext
	})
	return strings.Join(strings.Fields(sb.String()), " ")
}

func markdownTable(t *ast.Table) dldoc.Table {
	table := dldoc.Table{Type: dldoc.TypeTable}
	ast.WalkFunc(t, func(n ast.Node, entering bool) ast.WalkStatus {
		row, ok := n.(*ast.TableRow)
		if !ok || !entering {
			return ast.GoToNext
		}
		var cells []dldoc.TableCell
		for _, c := range row.GetChildren() {
			cells = append(cells, dldoc.TableCell{Text: inlineText(c)})
		}
		table.Data = append(table.Data, cells)
		if len(cells) > table.NumCols {
			table.NumCols = len(cells)
		}
		return ast.SkipChildren
	})
	table.NumRows = len(table.Data)
	table.Text = table.RowsText()
	return table
}
