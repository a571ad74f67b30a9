package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pauljones0/wanderdeals/internal/models"
)

// Validator is a wrapper around the validator library.
type Validator struct {
	validate *validator.Validate
}

// New creates a new Validator instance. Field names in errors use the JSON
// names so API clients can map them back to form inputs.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	v.RegisterStructValidation(dealStructLevel, models.Deal{})
	return &Validator{validate: v}
}

func dealStructLevel(sl validator.StructLevel) {
	d := sl.Current().Interface().(models.Deal)
	if d.OriginalPrice > 0 && d.DiscountedPrice > d.OriginalPrice {
		sl.ReportError(d.DiscountedPrice, "discountedPrice", "DiscountedPrice", "ltefield", "originalPrice")
	}
	if d.ValidUntil != nil && !d.ValidFrom.IsZero() && !d.ValidUntil.After(d.ValidFrom) {
		sl.ReportError(d.ValidUntil, "validUntil", "ValidUntil", "gtfield", "validFrom")
	}
}

// ValidateStruct validates a struct based on its tags.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// FieldErrors flattens a validation error into field -> failed rule, or
// returns nil when err is not a validation error.
func FieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if _, rest, ok := strings.Cut(ns, "."); ok {
			ns = rest
		}
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		out[ns] = rule
	}
	return out
}
