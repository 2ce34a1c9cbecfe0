package entity

// Status is the discriminator of a Recommendation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

func (s Status) Valid() bool {
	return s == StatusSuccess || s == StatusError
}

// Recommendation field names as they appear on the wire.
const (
	FieldStatus            = "status"
	FieldBestHour          = "best_hour"
	FieldAverageEngagement = "average_engagement"
	FieldCurrentTime       = "current_time"
	FieldRecommendation    = "recommendation"
	FieldReasoning         = "reasoning"
	FieldMessage           = "message"
	FieldRawContent        = "raw_content"
)

// SuccessRecommendation is the success variant of the output contract.
type SuccessRecommendation struct {
	Status            Status  `json:"status" validate:"eq=success"`
	BestHour          string  `json:"best_hour" validate:"required,hhmm"`
	AverageEngagement float64 `json:"average_engagement" validate:"gte=0"`
	CurrentTime       string  `json:"current_time" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	Recommendation    string  `json:"recommendation" validate:"required"`
	Reasoning         string  `json:"reasoning" validate:"required"`
}

// ErrorRecommendation is the error variant. RawContent is only set for
// diagnostics when the model output could not be used.
type ErrorRecommendation struct {
	Status     Status `json:"status" validate:"eq=error"`
	Message    string `json:"message" validate:"required"`
	RawContent string `json:"raw_content,omitempty"`
}

// SuccessFields lists the fields a success object must carry, in wire order.
var SuccessFields = []string{
	FieldStatus,
	FieldBestHour,
	FieldAverageEngagement,
	FieldCurrentTime,
	FieldRecommendation,
	FieldReasoning,
}

// ErrorFields lists the fields an error object may carry.
var ErrorFields = []string{
	FieldStatus,
	FieldMessage,
	FieldRawContent,
}
