package resources

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/bassista/snipsync/internal/apperror"
	"github.com/go-playground/validator/v10"
)

// Validator rejects malformed payloads before they reach the network.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(fieldName)
	return &Validator{v: v}
}

// Struct validates s and returns an apperror validation failure for the first
// offending field.
func (val *Validator) Struct(s any) error {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return apperror.ValidationFailed(fe.Field(), fmt.Sprintf("%s %s", fe.Field(), describe(fe)))
	}
	return apperror.ValidationFailed("", err.Error())
}

// Required rejects a blank identifier.
func Required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperror.ValidationFailed(field, field+" is required")
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

// fieldName reports fields by their JSON name, or the lower-camel Go name.
func fieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	switch name {
	case "-":
		return ""
	case "":
		r := []rune(f.Name)
		r[0] = unicode.ToLower(r[0])
		return string(r)
	}
	return name
}
