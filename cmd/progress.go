package main

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	// labelStyle 进度描述
	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("81"))

	// dimStyle 次要信息
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	// successStyle 完成标记
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	// errorStyle 失败标记
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

// progressLine 在一行内刷新的进度展示
// 读取器对每个源调用一次Start，计数跨源累计
type progressLine struct {
	w        io.Writer
	total    int
	done     int
	desc     string
	start    time.Time
	finished bool
}

func newProgressLine(w io.Writer, total int) *progressLine {
	return &progressLine{w: w, total: total}
}

func (p *progressLine) Start(total int, desc string) {
	if p.start.IsZero() {
		p.start = time.Now()
	}
	if p.total == 0 {
		p.total = total
	}
	p.desc = desc
	p.render()
}

func (p *progressLine) Advance() {
	p.done++
	p.render()
}

func (p *progressLine) Done() {
	if p.finished || p.done < p.total {
		return
	}
	p.finished = true
	fmt.Fprintf(p.w, " %s\n", successStyle.Render("✓"))
}

// Fail 以错误结束当前行
func (p *progressLine) Fail(err error) {
	if p.finished {
		return
	}
	p.finished = true
	fmt.Fprintf(p.w, " %s %s\n", errorStyle.Render("✗"), err)
}

func (p *progressLine) render() {
	elapsed := time.Duration(0)
	if !p.start.IsZero() {
		elapsed = time.Since(p.start).Round(100 * time.Millisecond)
	}
	fmt.Fprintf(p.w, "\r%s %d/%d %s",
		labelStyle.Render(p.desc),
		p.done, p.total,
		dimStyle.Render(elapsed.String()),
	)
}
