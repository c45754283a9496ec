package validator

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Rule pairs a check with the violation reported when it fails.
type Rule struct {
	Check func() bool
	Error ValidationError
}

// Apply evaluates rules and returns ValidationErrors for the failing ones, or nil.
func Apply(rules ...Rule) error {
	var errs ValidationErrors
	for _, r := range rules {
		if r.Check != nil && !r.Check() {
			errs.Add(r.Error)
		}
	}
	if errs.IsEmpty() {
		return nil
	}
	return errs
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Required checks that a string is not blank.
func Required(field, value string) Rule {
	return Rule{
		Check: func() bool { return strings.TrimSpace(value) != "" },
		Error: ValidationError{
			Field:             field,
			Message:           "field is required",
			TranslationKey:    "validation.required",
			TranslationValues: map[string]any{"field": field},
		},
	}
}

// MinLenString checks the rune length lower bound.
func MinLenString(field, value string, min int) Rule {
	return Rule{
		Check: func() bool { return utf8.RuneCountInString(value) >= min },
		Error: ValidationError{
			Field:             field,
			Message:           fmt.Sprintf("must be at least %d characters long", min),
			TranslationKey:    "validation.min_length",
			TranslationValues: map[string]any{"field": field, "min": min},
		},
	}
}

// MaxLenString checks the rune length upper bound.
func MaxLenString(field, value string, max int) Rule {
	return Rule{
		Check: func() bool { return utf8.RuneCountInString(value) <= max },
		Error: ValidationError{
			Field:             field,
			Message:           fmt.Sprintf("must be at most %d characters long", max),
			TranslationKey:    "validation.max_length",
			TranslationValues: map[string]any{"field": field, "max": max},
		},
	}
}

// LenString checks the exact rune length.
func LenString(field, value string, n int) Rule {
	return Rule{
		Check: func() bool { return utf8.RuneCountInString(value) == n },
		Error: ValidationError{
			Field:             field,
			Message:           fmt.Sprintf("must be exactly %d characters long", n),
			TranslationKey:    "validation.length",
			TranslationValues: map[string]any{"field": field, "length": n},
		},
	}
}

// ValidEmail checks a loose e-mail address shape.
func ValidEmail(field, value string) Rule {
	return Rule{
		Check: func() bool { return emailRegex.MatchString(value) },
		Error: ValidationError{
			Field:             field,
			Message:           "must be a valid email address",
			TranslationKey:    "validation.email",
			TranslationValues: map[string]any{"field": field},
		},
	}
}

// ValidAlphanumeric checks that value only holds letters and digits.
func ValidAlphanumeric(field, value string) Rule {
	return Rule{
		Check: func() bool {
			for _, r := range value {
				if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
					return false
				}
			}
			return true
		},
		Error: ValidationError{
			Field:             field,
			Message:           "must contain only letters and digits",
			TranslationKey:    "validation.alphanum",
			TranslationValues: map[string]any{"field": field},
		},
	}
}

// ValidNumericString checks that value only holds digits.
func ValidNumericString(field, value string) Rule {
	return Rule{
		Check: func() bool {
			if value == "" {
				return false
			}
			for _, r := range value {
				if !unicode.IsDigit(r) {
					return false
				}
			}
			return true
		},
		Error: ValidationError{
			Field:             field,
			Message:           "must contain only digits",
			TranslationKey:    "validation.numeric",
			TranslationValues: map[string]any{"field": field},
		},
	}
}

// InList checks membership in allowed.
func InList(field, value string, allowed []string) Rule {
	return Rule{
		Check: func() bool { return slices.Contains(allowed, value) },
		Error: ValidationError{
			Field:             field,
			Message:           "must be one of: " + strings.Join(allowed, ", "),
			TranslationKey:    "validation.in",
			TranslationValues: map[string]any{"field": field, "values": allowed},
		},
	}
}

// NotInList checks that value is not in forbidden.
func NotInList(field, value string, forbidden []string) Rule {
	return Rule{
		Check: func() bool { return !slices.Contains(forbidden, value) },
		Error: ValidationError{
			Field:             field,
			Message:           "must not be one of: " + strings.Join(forbidden, ", "),
			TranslationKey:    "validation.not_in",
			TranslationValues: map[string]any{"field": field, "values": forbidden},
		},
	}
}
