// Package validator provides custom validation functions for Gin's binding engine
// and the account field rules shared with the service layer.
package validator

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Password length bounds. bcrypt ignores input past 72 bytes.
const (
	MinPasswordLength = 6
	MaxPasswordLength = 72
)

var (
	emailRegex    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,30}$`)
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(fieldName)
		_ = v.RegisterValidation("username", validateUsername)
		_ = v.RegisterValidation("password", validatePassword)
		_ = v.RegisterValidation("loose_email", validateEmail)
	}
}

// IsEmail reports whether s looks like an email address.
func IsEmail(s string) bool {
	return emailRegex.MatchString(s)
}

// IsUsername reports whether s is 3-30 letters, digits, dots, dashes or underscores.
func IsUsername(s string) bool {
	return usernameRegex.MatchString(s)
}

// IsPassword reports whether s has an acceptable length.
func IsPassword(s string) bool {
	return len(s) >= MinPasswordLength && len(s) <= MaxPasswordLength
}

func validateUsername(fl validator.FieldLevel) bool {
	return IsUsername(fl.Field().String())
}

func validatePassword(fl validator.FieldLevel) bool {
	return IsPassword(fl.Field().String())
}

func validateEmail(fl validator.FieldLevel) bool {
	return IsEmail(fl.Field().String())
}
