package output

import "engagement-advisor/internal/domain/entity"

type PromptPort interface {
	Build() (entity.Prompts, error)
}
