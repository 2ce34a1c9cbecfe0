package prompts

import (
	_ "embed"
)

//go:embed system.tmpl
var SystemTemplate string

//go:embed task.tmpl
var TaskTemplate string
