package prompts

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"engagement-advisor/internal/application/port/output"
	"engagement-advisor/internal/domain/entity"
)

const (
	dayLayout = "January 2, 2006"
	// Hour and minute of the example current_time shown to the model.
	exampleHour, exampleMinute = 7, 42
)

type PromptData struct {
	DatasetPath string
	// TargetDate carries the day and the timezone the analysis is for.
	TargetDate time.Time
	Imports    []string
}

type templateData struct {
	DatasetPath     string
	Timezone        string
	TargetDay       string
	Offset          string
	ExampleTime     string
	CurrentTimeTool entity.ToolName
	ExecuteCodeTool entity.ToolName
	Imports         []string
}

var funcs = template.FuncMap{"join": strings.Join}

var _ output.PromptPort = (*Builder)(nil)

type Builder struct {
	data PromptData
}

func NewBuilder(data PromptData) *Builder {
	return &Builder{data: data}
}

func (b *Builder) Build() (entity.Prompts, error) {
	return Build(b.data)
}

// Build renders the system and task prompts. It has no inputs besides data.
func Build(data PromptData) (entity.Prompts, error) {
	if data.DatasetPath == "" {
		return entity.Prompts{}, errors.New("dataset path is required")
	}
	if data.TargetDate.IsZero() {
		return entity.Prompts{}, errors.New("target date is required")
	}

	day := data.TargetDate
	example := time.Date(day.Year(), day.Month(), day.Day(), exampleHour, exampleMinute, 0, 0, day.Location())
	exampleTime := example.Format(time.RFC3339)

	td := templateData{
		DatasetPath:     data.DatasetPath,
		Timezone:        day.Location().String(),
		TargetDay:       day.Format(dayLayout),
		Offset:          exampleTime[len("2006-01-02T15:04:05"):],
		ExampleTime:     exampleTime,
		CurrentTimeTool: entity.ToolCurrentTime,
		ExecuteCodeTool: entity.ToolExecuteCode,
		Imports:         data.Imports,
	}

	system, err := render("system", SystemTemplate, td)
	if err != nil {
		return entity.Prompts{}, err
	}
	task, err := render("task", TaskTemplate, td)
	if err != nil {
		return entity.Prompts{}, err
	}

	return entity.Prompts{System: system, Task: task}, nil
}

func render(name, text string, data templateData) (string, error) {
	tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse %s prompt: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", name, err)
	}
	return buf.String(), nil
}
