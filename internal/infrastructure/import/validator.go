package csvimport

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RowValidator validates decoded row structs with `validate` tags and reports
// failures as RowErrors named after the struct's `csv` tags
type RowValidator struct {
	validate *validator.Validate
}

// NewRowValidator creates a RowValidator
func NewRowValidator() *RowValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("csv"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &RowValidator{validate: v}
}

// Validate checks row, a struct or pointer to struct, decoded from line
func (v *RowValidator) Validate(line int, row any) []RowError {
	err := v.validate.Struct(row)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []RowError{NewRowError(line, "", ErrCodeImportValidation, err.Error())}
	}

	out := make([]RowError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, RowError{
			Row:     line,
			Column:  fe.Field(),
			Code:    codeFor(fe),
			Message: messageFor(fe),
			Value:   valueOf(fe),
		})
	}
	return out
}

func codeFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without", "required_with", "required_if":
		return ErrCodeImportRequiredField
	case "min", "max", "len":
		if fe.Kind() == reflect.String {
			return ErrCodeImportInvalidLength
		}
		return ErrCodeImportInvalidRange
	case "gt", "gte", "lt", "lte", "ne":
		return ErrCodeImportInvalidRange
	default:
		return ErrCodeImportValidation
	}
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("field '%s' is required", fe.Field())
	case "required_without":
		return fmt.Sprintf("field '%s' is required when '%s' is empty", fe.Field(), toColumn(fe.Param()))
	case "excluded_with":
		return fmt.Sprintf("field '%s' cannot be combined with '%s'", fe.Field(), toColumn(fe.Param()))
	case "min":
		if fe.Kind() == reflect.String {
			return "must be at least " + fe.Param() + " characters"
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "ne":
		return "must not be " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "invalid value"
	}
}

// toColumn turns a Go field name param such as ChangeQuantity into change_quantity
func toColumn(field string) string {
	var sb strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				sb.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func valueOf(fe validator.FieldError) string {
	v := fe.Value()
	if v == nil {
		return ""
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return ""
		}
		v = rv.Elem().Interface()
	}
	return fmt.Sprint(v)
}
