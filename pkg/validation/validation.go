// Package validation wraps go-playground/validator so struct tag failures
// surface as errs.ValidationError keyed by JSON field name.
package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/settlekit/pkg/errs"
)

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	registerJSONNames(v)
	return &Validator{validate: v}
}

// Struct validates s and returns the first failure as an errs.ValidationError.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &errs.ValidationError{Field: fe.Field(), Code: codeFor(fe)}
	}
	return err
}

// SetupGin makes gin's binding engine report JSON field names too.
func SetupGin() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		registerJSONNames(v)
	}
}

func registerJSONNames(v *validator.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})
}

func codeFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "gt", "gte", "lt", "lte", "min", "max":
		return "out_of_range"
	case "len", "iso4217", "iso3166_1_alpha2":
		return "invalid_format"
	case "oneof":
		return "unsupported_value"
	default:
		return "invalid"
	}
}
