package backend

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/helixir/profile-service/internal/domain"
)

// newValidator returns a validator that reports JSON field names and knows
// the fiscalcode tag.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("fiscalcode", func(fl validator.FieldLevel) bool {
		return domain.IsValidFiscalCode(fl.Field().String())
	})
	return v
}

// readableReport turns a validation error into one human-readable line per field.
func readableReport(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	lines := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		lines = append(lines, describeFieldError(fe))
	}
	return lines
}

func describeFieldError(fe validator.FieldError) string {
	path := fe.Namespace()
	if _, rest, ok := strings.Cut(path, "."); ok {
		path = rest
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("value at %s is required", path)
	case "email":
		return fmt.Sprintf("value %q at %s is not a valid email", fe.Value(), path)
	case "fiscalcode":
		return fmt.Sprintf("value %q at %s is not a valid fiscal code", fe.Value(), path)
	case "oneof":
		return fmt.Sprintf("value %q at %s is not one of [%s]", fe.Value(), path, fe.Param())
	case "gte":
		return fmt.Sprintf("value %v at %s must be >= %s", fe.Value(), path, fe.Param())
	case "datetime":
		return fmt.Sprintf("value %q at %s is not a date in %s format", fe.Value(), path, fe.Param())
	default:
		return fmt.Sprintf("value %v at %s failed %s", fe.Value(), path, fe.Tag())
	}
}
