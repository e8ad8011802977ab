package types

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports fields by their JSON names so messages match the wire format.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// FieldError is a single failed validation rule.
type FieldError struct {
	Field string
	Tag   string
	Param string
	Value string
}

func (e *FieldError) Error() string {
	switch e.Tag {
	case "required":
		return fmt.Sprintf("%s is required", e.Field)
	case "min":
		return fmt.Sprintf("%s=%s is below minimum %s", e.Field, e.Value, e.Param)
	case "max":
		return fmt.Sprintf("%s=%s exceeds maximum %s", e.Field, e.Value, e.Param)
	case "len":
		return fmt.Sprintf("%s must have exactly %s entries", e.Field, e.Param)
	case "oneof":
		return fmt.Sprintf("%s=%q must be one of [%s]", e.Field, e.Value, e.Param)
	case "http_url", "url":
		return fmt.Sprintf("%s must be an http(s) URL", e.Field)
	default:
		return fmt.Sprintf("%s failed %s validation", e.Field, e.Tag)
	}
}

// toFieldErrors converts validator output into FieldErrors.
// ok is false when err is not a validator.ValidationErrors.
func toFieldErrors(err error) (fields []FieldError, ok bool) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, false
	}
	fields = make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{
			Field: fieldPath(fe.Namespace()),
			Tag:   fe.Tag(),
			Param: fe.Param(),
			Value: fmt.Sprint(fe.Value()),
		})
	}
	return fields, true
}

func firstFieldError(err error) error {
	if err == nil {
		return nil
	}
	fields, ok := toFieldErrors(err)
	if !ok || len(fields) == 0 {
		return err
	}
	return &fields[0]
}

// fieldPath strips the struct name from a validator namespace ("Scorecard.points[3].score").
func fieldPath(ns string) string {
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return ns
}
