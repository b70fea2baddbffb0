package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// fieldName reports struct fields by their wire name so messages match
// what the client sent.
func fieldName(f reflect.StructField) string {
	for _, key := range []string{"json", "form"} {
		name, _, _ := strings.Cut(f.Tag.Get(key), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

// Describe turns a request binding failure into a message fit for the
// client. Only the first failing field is reported.
func Describe(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return describeField(fieldErrs[0])
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("%s has the wrong type", typeErr.Field)
	}
	if errors.Is(err, io.EOF) {
		return "Request body is required"
	}
	return "Invalid request body"
}

func describeField(fe validator.FieldError) string {
	name := fe.Field()

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", name)
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "username":
		return "Username must be 3-30 characters using letters, numbers, dots, dashes or underscores"
	case "password":
		return fmt.Sprintf("Password must be %d to %d characters", MinPasswordLength, MaxPasswordLength)
	case "loose_email":
		return "Please enter a valid email address"
	default:
		return fmt.Sprintf("%s is invalid", name)
	}
}
