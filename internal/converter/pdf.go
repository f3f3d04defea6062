package converter

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/fyerfyer/docling-nodes/internal/dldoc"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/sirupsen/logrus"
)

const (
	headingRatio = 1.2 // 字号超过中位数的该倍数视为标题
	paragraphGap = 1.5 // 行距超过字号的该倍数视为新段落
	wordGap      = 0.25
)

// pdfLine 页面上的一行文本
type pdfLine struct {
	page   int
	text   string
	size   float64
	x0, x1 float64
	y      float64
}

// convertPDF 提取带位置的文本行并合并为段落
func convertPDF(data []byte, filename string, logger *logrus.Logger) (*dldoc.Document, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	var lines []pdfLine
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		rows, err := p.GetTextByRow()
		if err != nil {
			return nil, fmt.Errorf("failed to read text of page %d: %w", i, err)
		}
		lines = append(lines, rowsToLines(i, rows)...)
	}

	doc := &dldoc.Document{
		Name:        docName(filename),
		Description: dldoc.Description{Logs: []any{}},
		FileInfo: dldoc.FileInfo{
			Filename:     filename,
			DocumentHash: dldoc.ComputeHash(data),
			NumPages:     numPages,
		},
		MainText: linesToItems(lines),
	}

	dims, err := api.PageDims(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		logger.WithError(err).WithField("file", filename).Warn("Failed to read pdf page dimensions")
	} else {
		for i, d := range dims {
			doc.PageDimensions = append(doc.PageDimensions, dldoc.PageDimension{
				Page:   i + 1,
				Width:  d.Width,
				Height: d.Height,
			})
		}
	}

	return doc, nil
}

func rowsToLines(page int, rows pdf.Rows) []pdfLine {
	lines := make([]pdfLine, 0, len(rows))
	for _, row := range rows {
		glyphs := append([]pdf.Text(nil), row.Content...)
		if len(glyphs) == 0 {
			continue
		}
		sort.SliceStable(glyphs, func(i, j int) bool { return glyphs[i].X < glyphs[j].X })

		var sb strings.Builder
		line := pdfLine{page: page, x0: math.MaxFloat64, y: math.MaxFloat64}
		prevEnd := math.NaN()
		for _, g := range glyphs {
			if !math.IsNaN(prevEnd) && g.X-prevEnd > wordGap*g.FontSize &&
				!strings.HasSuffix(sb.String(), " ") && !strings.HasPrefix(g.S, " ") {
				sb.WriteByte(' ')
			}
			sb.WriteString(g.S)
			prevEnd = g.X + g.W

			line.x0 = math.Min(line.x0, g.X)
			line.x1 = math.Max(line.x1, g.X+g.W)
			line.y = math.Min(line.y, g.Y)
			line.size = math.Max(line.size, g.FontSize)
		}

		line.text = strings.Join(strings.Fields(sb.String()), " ")
		if line.text != "" {
			lines = append(lines, line)
		}
	}

	// PDF坐标原点在左下角，阅读顺序为y从大到小
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].y > lines[j].y })
	return lines
}

func medianSize(lines []pdfLine) float64 {
	if len(lines) == 0 {
		return 0
	}
	sizes := make([]float64, len(lines))
	for i, l := range lines {
		sizes[i] = l.size
	}
	sort.Float64s(sizes)
	return sizes[len(sizes)/2]
}

// linesToItems 按页、行距和字号把行合并为段落
func linesToItems(lines []pdfLine) []dldoc.BaseText {
	median := medianSize(lines)
	isHeading := func(l pdfLine) bool {
		return median > 0 && l.size > median*headingRatio
	}

	var (
		items []dldoc.BaseText
		cur   *dldoc.BaseText
		last  pdfLine
	)
	flush := func() {
		if cur != nil {
			cur.Prov[0].Span = [2]int{0, len(cur.Text)}
			items = append(items, *cur)
			cur = nil
		}
	}

	for _, l := range lines {
		heading := isHeading(l)
		newBlock := cur == nil ||
			l.page != last.page ||
			heading || isHeading(last) ||
			last.y-l.y > paragraphGap*math.Max(l.size, last.size) ||
			math.Abs(l.size-last.size) > 1

		if newBlock {
			flush()
			cur = &dldoc.BaseText{
				Text: l.text,
				Type: dldoc.TypeParagraph,
				Name: dldoc.NameText,
				Prov: []dldoc.Prov{{
					BBox: dldoc.BoundingBox{l.x0, l.y, l.x1, l.y + l.size},
					Page: l.page,
				}},
			}
			if heading {
				cur.Type = dldoc.TypeSubtitle
				cur.Name = dldoc.NameSectionTitle
			}
		} else {
			cur.Text += " " + l.text
			box := &cur.Prov[0].BBox
			box[0] = math.Min(box[0], l.x0)
			box[1] = math.Min(box[1], l.y)
			box[2] = math.Max(box[2], l.x1)
		}
		last = l
	}
	flush()
	return items
}
