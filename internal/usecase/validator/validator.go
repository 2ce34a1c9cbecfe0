// Package validator turns the model's final message into the single JSON line
// the advisor prints.
package validator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"engagement-advisor/internal/application/port/output"
	"engagement-advisor/internal/domain/entity"
)

const (
	ParseFailureMessage = "Failed to parse JSON from content"
	schemaMessagePrefix = "Response does not match the recommendation schema: "
)

var hhmm = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

type Result struct {
	Kind entity.ValidationKind
	// Status is the status of the printed line, empty when it has none.
	Status     entity.Status
	Line       []byte
	Violations []string
}

type Validator struct {
	strict   bool
	validate *validator.Validate
	logger   output.LoggerPort
}

// New returns a Validator. In strict mode a schema violation is replaced by an
// error object; otherwise it is printed as the model produced it.
func New(strict bool, logger output.LoggerPort) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return hhmm.MatchString(fl.Field().String())
	})

	return &Validator{strict: strict, validate: v, logger: logger.Named("validator")}
}

func (v *Validator) Validate(content string) Result {
	obj, err := parseObject(content)
	if err != nil {
		v.logger.Warn("Final message is not a JSON object", "error", err, "length", len(content))
		return v.errorResult(entity.KindParseFailure, ParseFailureMessage, content, nil)
	}

	if raw, ok := obj.get(entity.FieldAverageEngagement); ok {
		if coerced, changed := coerceFloat(raw); changed {
			obj.set(entity.FieldAverageEngagement, coerced)
		}
	}

	line, err := obj.marshal()
	if err != nil {
		return v.errorResult(entity.KindParseFailure, ParseFailureMessage, content, nil)
	}

	status := statusOf(obj)
	violations := v.checkSchema(obj)
	if len(violations) == 0 {
		return Result{Kind: entity.KindValid, Status: status, Line: line}
	}

	v.logger.Warn("Final message violates the recommendation schema", "violations", violations, "strict", v.strict)
	if v.strict {
		return v.errorResult(entity.KindSchemaViolation, schemaMessagePrefix+strings.Join(violations, "; "), content, violations)
	}
	return Result{Kind: entity.KindSchemaViolation, Status: status, Line: line, Violations: violations}
}

// errorResult builds the diagnostic error object. raw_content is always
// present, even when the model returned nothing.
func (v *Validator) errorResult(kind entity.ValidationKind, message, raw string, violations []string) Result {
	line := []byte(`{"status":"error","message":`)
	line = appendQuoted(line, message)
	line = append(line, `,"raw_content":`...)
	line = appendQuoted(line, raw)
	line = append(line, '}')
	return Result{Kind: kind, Status: entity.StatusError, Line: line, Violations: violations}
}

func statusOf(obj object) entity.Status {
	raw, ok := obj.get(entity.FieldStatus)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return entity.Status(s)
}

func (v *Validator) checkSchema(obj object) []string {
	raw, ok := obj.get(entity.FieldStatus)
	if !ok {
		return []string{"missing field status"}
	}
	var status string
	if err := json.Unmarshal(raw, &status); err != nil {
		return []string{"status: must be a string"}
	}

	switch entity.Status(status) {
	case entity.StatusSuccess:
		var rec entity.SuccessRecommendation
		return v.checkVariant(obj, entity.SuccessFields, entity.SuccessFields, &rec)
	case entity.StatusError:
		var rec entity.ErrorRecommendation
		return v.checkVariant(obj, []string{entity.FieldStatus, entity.FieldMessage}, entity.ErrorFields, &rec)
	default:
		return []string{fmt.Sprintf("status: %q is not one of success, error", status)}
	}
}

func (v *Validator) checkVariant(obj object, required, allowed []string, target interface{}) []string {
	var violations []string

	present := make(map[string]bool, len(obj))
	for _, key := range obj.keys() {
		present[key] = true
	}
	for _, key := range required {
		if !present[key] {
			violations = append(violations, "missing field "+key)
		}
	}
	for _, key := range obj.keys() {
		if !contains(allowed, key) {
			violations = append(violations, "unexpected field "+key)
		}
	}
	if len(violations) > 0 {
		return violations
	}

	// null would decode to the zero value and slip past the struct tags.
	for _, m := range obj {
		if bytes.Equal(bytes.TrimSpace(m.Value), []byte("null")) {
			violations = append(violations, m.Key+": must not be null")
		}
	}
	if len(violations) > 0 {
		return violations
	}

	data, err := obj.marshal()
	if err != nil {
		return []string{err.Error()}
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return []string{fmt.Sprintf("%s: must be a %s", typeErr.Field, typeErr.Type)}
		}
		return []string{err.Error()}
	}

	if err := v.validate.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return []string{err.Error()}
		}
		for _, fe := range fieldErrs {
			violations = append(violations, describe(fe))
		}
	}
	return violations
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + ": must not be empty"
	case "hhmm":
		return fe.Field() + ": must be HH:MM"
	case "datetime":
		return fe.Field() + ": must be an RFC3339 timestamp with offset"
	case "gte":
		return fe.Field() + ": must be >= " + fe.Param()
	case "eq":
		return fe.Field() + ": must be " + fe.Param()
	}
	return fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag())
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
