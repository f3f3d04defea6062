package nodeparser

// ProgressReporter 解析进度展示，不影响输出
type ProgressReporter interface {
	Start(total int, desc string)
	Advance()
	Done()
}

// NopProgress 不展示进度
type NopProgress struct{}

func (NopProgress) Start(int, string) {}
func (NopProgress) Advance()          {}
func (NopProgress) Done()             {}
