package entity

type ToolName string

const (
	ToolCurrentTime ToolName = "current_time"
	ToolExecuteCode ToolName = "execute_code"
)

func (t ToolName) String() string {
	return string(t)
}
