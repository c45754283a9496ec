package validator

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// ValidatorFunc builds the Rule for one tag on one field.
type ValidatorFunc func(field string, value reflect.Value, params []string) Rule

var (
	registryMu sync.RWMutex
	registry   = map[string]ValidatorFunc{
		"required": requiredValidator,
		"min":      minValidator,
		"max":      maxValidator,
		"len":      lenValidator,
		"email":    emailValidator,
		"alphanum": alphanumValidator,
		"numeric":  numericValidator,
		"in":       inValidator,
		"not_in":   notInValidator,
		"prefix":   prefixValidator,
		"positive": positiveValidator,
		"nonzero":  nonZeroValidator,
	}
)

// RegisterValidator adds a custom validator function to the registry.
func RegisterValidator(name string, fn ValidatorFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = fn
}

// ValidateStruct validates a struct, or a pointer to one, based on its `validate` tags.
// Rules are separated by semicolons, parameters follow a colon and are comma separated:
//
//	Name string `validate:"required;min:2;max:50"`
//	Kind string `validate:"in:user,admin"`
//
// Nested structs without a tag are validated recursively; their fields are reported
// with a dotted path.
func ValidateStruct(v any) error {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return ErrNotStruct
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return ErrNotStruct
	}

	var errs ValidationErrors
	validateStructRecursive(rv, "", &errs)

	if errs.IsEmpty() {
		return nil
	}
	return errs
}

func validateStructRecursive(rv reflect.Value, prefix string, errs *ValidationErrors) {
	rt := rv.Type()

	for i := 0; i < rv.NumField(); i++ {
		structField := rt.Field(i)
		if !structField.IsExported() {
			continue
		}

		field := rv.Field(i)
		tag := structField.Tag.Get("validate")
		if tag == "-" {
			continue
		}

		fieldPath := structField.Name
		if prefix != "" {
			fieldPath = prefix + "." + structField.Name
		}

		if field.Kind() == reflect.Struct && tag == "" {
			validateStructRecursive(field, fieldPath, errs)
			continue
		}

		if field.Kind() == reflect.Pointer {
			switch {
			case field.IsNil():
				if tag != "" {
					validateField(fieldPath, field, tag, errs)
				}
			case field.Elem().Kind() == reflect.Struct && tag == "":
				validateStructRecursive(field.Elem(), fieldPath, errs)
			case tag != "":
				validateField(fieldPath, field.Elem(), tag, errs)
			}
			continue
		}

		if tag == "" {
			continue
		}

		validateField(fieldPath, field, tag, errs)
	}
}

func validateField(fieldPath string, field reflect.Value, tag string, errs *ValidationErrors) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for ruleStr := range strings.SplitSeq(tag, ";") {
		ruleStr = strings.TrimSpace(ruleStr)
		if ruleStr == "" {
			continue
		}

		parts := strings.SplitN(ruleStr, ":", 2)
		ruleName := strings.TrimSpace(parts[0])

		var params []string
		if len(parts) > 1 {
			if paramStr := strings.TrimSpace(parts[1]); paramStr != "" {
				params = strings.Split(paramStr, ",")
				for i := range params {
					params[i] = strings.TrimSpace(params[i])
				}
			}
		}

		if validatorFn, ok := registry[ruleName]; ok {
			rule := validatorFn(fieldPath, field, params)
			if rule.Check != nil && !rule.Check() {
				errs.Add(rule.Error)
			}
		}
	}
}

func pass() Rule {
	return Rule{Check: func() bool { return true }}
}

func isInt(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUint(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

// Built-in validators

func requiredValidator(field string, value reflect.Value, params []string) Rule {
	return Rule{
		Check: func() bool {
			switch value.Kind() {
			case reflect.String:
				return strings.TrimSpace(value.String()) != ""
			case reflect.Slice, reflect.Map, reflect.Array:
				return value.Len() > 0
			case reflect.Pointer, reflect.Interface:
				return !value.IsNil()
			default:
				return !value.IsZero()
			}
		},
		Error: ValidationError{
			Field:             field,
			Message:           "field is required",
			TranslationKey:    "validation.required",
			TranslationValues: map[string]any{"field": field},
		},
	}
}

func boundValidator(field string, value reflect.Value, params []string, isMin bool) Rule {
	if len(params) < 1 {
		return pass()
	}

	word, key := "at most", "validation.max"
	if isMin {
		word, key = "at least", "validation.min"
	}
	cmp := func(got, limit float64) bool {
		if isMin {
			return got >= limit
		}
		return got <= limit
	}

	switch kind := value.Kind(); {
	case kind == reflect.String:
		n, _ := strconv.Atoi(params[0])
		if isMin {
			return MinLenString(field, value.String(), n)
		}
		return MaxLenString(field, value.String(), n)
	case kind == reflect.Slice || kind == reflect.Array || kind == reflect.Map:
		n, _ := strconv.Atoi(params[0])
		return Rule{
			Check: func() bool { return cmp(float64(value.Len()), float64(n)) },
			Error: ValidationError{
				Field:             field,
				Message:           fmt.Sprintf("must have %s %d items", word, n),
				TranslationKey:    key + "_items",
				TranslationValues: map[string]any{"field": field, "limit": n},
			},
		}
	case isInt(kind), isUint(kind), kind == reflect.Float32, kind == reflect.Float64:
		limit, _ := strconv.ParseFloat(params[0], 64)
		return Rule{
			Check: func() bool {
				switch {
				case isInt(kind):
					return cmp(float64(value.Int()), limit)
				case isUint(kind):
					return cmp(float64(value.Uint()), limit)
				default:
					return cmp(value.Float(), limit)
				}
			},
			Error: ValidationError{
				Field:             field,
				Message:           fmt.Sprintf("must be %s %s", word, params[0]),
				TranslationKey:    key,
				TranslationValues: map[string]any{"field": field, "limit": limit},
			},
		}
	default:
		return pass()
	}
}

func minValidator(field string, value reflect.Value, params []string) Rule {
	return boundValidator(field, value, params, true)
}

func maxValidator(field string, value reflect.Value, params []string) Rule {
	return boundValidator(field, value, params, false)
}

func lenValidator(field string, value reflect.Value, params []string) Rule {
	if len(params) < 1 {
		return pass()
	}
	n, _ := strconv.Atoi(params[0])

	switch value.Kind() {
	case reflect.String:
		return LenString(field, value.String(), n)
	case reflect.Slice, reflect.Array, reflect.Map:
		return Rule{
			Check: func() bool { return value.Len() == n },
			Error: ValidationError{
				Field:             field,
				Message:           fmt.Sprintf("must have exactly %d items", n),
				TranslationKey:    "validation.len_items",
				TranslationValues: map[string]any{"field": field, "length": n},
			},
		}
	default:
		return pass()
	}
}

func stringRule(value reflect.Value, build func(string) Rule) Rule {
	if value.Kind() != reflect.String {
		return pass()
	}
	return build(value.String())
}

func emailValidator(field string, value reflect.Value, params []string) Rule {
	return stringRule(value, func(s string) Rule { return ValidEmail(field, s) })
}

func alphanumValidator(field string, value reflect.Value, params []string) Rule {
	return stringRule(value, func(s string) Rule { return ValidAlphanumeric(field, s) })
}

func numericValidator(field string, value reflect.Value, params []string) Rule {
	return stringRule(value, func(s string) Rule { return ValidNumericString(field, s) })
}

func inValidator(field string, value reflect.Value, params []string) Rule {
	return stringRule(value, func(s string) Rule { return InList(field, s, params) })
}

func notInValidator(field string, value reflect.Value, params []string) Rule {
	return stringRule(value, func(s string) Rule { return NotInList(field, s, params) })
}

func prefixValidator(field string, value reflect.Value, params []string) Rule {
	if value.Kind() != reflect.String || len(params) < 1 {
		return pass()
	}
	prefix := params[0]
	return Rule{
		Check: func() bool { return strings.HasPrefix(value.String(), prefix) },
		Error: ValidationError{
			Field:             field,
			Message:           fmt.Sprintf("must start with %q", prefix),
			TranslationKey:    "validation.prefix",
			TranslationValues: map[string]any{"field": field, "prefix": prefix},
		},
	}
}

func positiveValidator(field string, value reflect.Value, params []string) Rule {
	kind := value.Kind()
	if !isInt(kind) && !isUint(kind) && kind != reflect.Float32 && kind != reflect.Float64 {
		return pass()
	}
	return Rule{
		Check: func() bool {
			switch {
			case isInt(kind):
				return value.Int() > 0
			case isUint(kind):
				return value.Uint() > 0
			default:
				return value.Float() > 0
			}
		},
		Error: ValidationError{
			Field:             field,
			Message:           "must be positive",
			TranslationKey:    "validation.positive",
			TranslationValues: map[string]any{"field": field},
		},
	}
}

func nonZeroValidator(field string, value reflect.Value, params []string) Rule {
	return Rule{
		Check: func() bool { return !value.IsZero() },
		Error: ValidationError{
			Field:             field,
			Message:           "must not be zero",
			TranslationKey:    "validation.nonzero",
			TranslationValues: map[string]any{"field": field},
		},
	}
}
