package userinteraction

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"engagement-advisor/internal/application/port/output"
	"engagement-advisor/internal/domain/entity"

	"github.com/fatih/color"
)

var _ output.ProgressPort = (*ConsoleProgress)(nil)

// ConsoleProgress prints the reasoning loop to stderr. Stdout is reserved for
// the recommendation line.
type ConsoleProgress struct {
	w io.Writer
}

func NewConsoleProgress(w io.Writer) *ConsoleProgress {
	if w == nil {
		w = os.Stderr
	}
	return &ConsoleProgress{w: w}
}

func (c *ConsoleProgress) ShowIteration(ctx context.Context, iteration, maxIterations int) {
	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Fprintf(c.w, "\n━━━ Iteration %d/%d ━━━\n", iteration, maxIterations)
}

func (c *ConsoleProgress) ShowThinking(ctx context.Context, content string) {
	if content == "" {
		return
	}

	blue := color.New(color.FgBlue)
	blue.Fprint(c.w, "\n💭 Thinking: ")

	dim := color.New(color.Faint)
	dim.Fprintln(c.w, truncate(content, 500))
}

func (c *ConsoleProgress) ShowToolStart(ctx context.Context, toolName, arguments string) {
	icon, name := toolDisplay(toolName)

	yellow := color.New(color.FgYellow, color.Bold)
	yellow.Fprintf(c.w, "\n%s %s\n", icon, name)

	if summary := formatToolArguments(toolName, arguments); summary != "" {
		dim := color.New(color.Faint)
		dim.Fprintf(c.w, "   %s\n", summary)
	}
}

func (c *ConsoleProgress) ShowToolResult(ctx context.Context, toolName, result string, isError bool) {
	if isError {
		red := color.New(color.FgRed)
		red.Fprint(c.w, "❌ Error: ")

		dim := color.New(color.Faint)
		dim.Fprintln(c.w, truncate(result, 300))
		return
	}

	green := color.New(color.FgGreen)
	green.Fprintf(c.w, "✓ %s\n", formatToolResult(toolName, result))
}

func toolDisplay(toolName string) (string, string) {
	switch entity.ToolName(toolName) {
	case entity.ToolCurrentTime:
		return "🕒", "Current time"
	case entity.ToolExecuteCode:
		return "🧮", "Execute code"
	}
	return "🔧", toolName
}

func formatToolArguments(toolName, arguments string) string {
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return ""
	}

	switch entity.ToolName(toolName) {
	case entity.ToolCurrentTime:
		if tz, ok := args["timezone"].(string); ok && tz != "" {
			return fmt.Sprintf("Timezone: %s", tz)
		}
	case entity.ToolExecuteCode:
		if code, ok := args["code"].(string); ok {
			lines := strings.Count(strings.TrimSpace(code), "\n") + 1
			return fmt.Sprintf("Go code: %d lines", lines)
		}
	}
	return ""
}

func formatToolResult(toolName, result string) string {
	switch entity.ToolName(toolName) {
	case entity.ToolCurrentTime:
		return result
	case entity.ToolExecuteCode:
		return truncate(strings.ReplaceAll(result, "\n", " "), 150)
	}
	return truncate(result, 100)
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
