package validator

import (
	"errors"
	"strings"
)

// ErrNotStruct is returned when ValidateStruct receives something other than a struct.
var ErrNotStruct = errors.New("validator: must pass a struct or pointer to struct")

// ValidationError describes a single failed rule.
type ValidationError struct {
	Field             string         `json:"field"`
	Message           string         `json:"message"`
	TranslationKey    string         `json:"translation_key"`
	TranslationValues map[string]any `json:"translation_values,omitempty"`
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// ValidationErrors collects every violation found in a value.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, ve := range e {
		msgs = append(msgs, ve.Error())
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Add appends a violation.
func (e *ValidationErrors) Add(err ValidationError) {
	*e = append(*e, err)
}

// IsEmpty reports whether no violation was recorded.
func (e ValidationErrors) IsEmpty() bool {
	return len(e) == 0
}

// Has reports whether field has at least one violation.
func (e ValidationErrors) Has(field string) bool {
	for _, ve := range e {
		if ve.Field == field {
			return true
		}
	}
	return false
}

// Get returns the messages recorded for field.
func (e ValidationErrors) Get(field string) []string {
	var msgs []string
	for _, ve := range e {
		if ve.Field == field {
			msgs = append(msgs, ve.Message)
		}
	}
	return msgs
}

// Fields returns a field to messages map, handy for structured logging.
func (e ValidationErrors) Fields() map[string][]string {
	out := make(map[string][]string, len(e))
	for _, ve := range e {
		out[ve.Field] = append(out[ve.Field], ve.Message)
	}
	return out
}

// ExtractValidationErrors returns the ValidationErrors wrapped in err, or nil.
func ExtractValidationErrors(err error) ValidationErrors {
	var ve ValidationErrors
	if errors.As(err, &ve) {
		return ve
	}
	return nil
}

// IsValidationError reports whether err wraps ValidationErrors.
func IsValidationError(err error) bool {
	return ExtractValidationErrors(err) != nil
}
