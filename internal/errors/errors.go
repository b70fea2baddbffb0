// Package errors provides the application error taxonomy for the tarot journal API.
// Every service-layer failure is an AppError so handlers can render a stable
// code and a human-readable message without leaking storage internals.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
// Fields carries extra response attributes (for example waitMinutes).
type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	StatusCode int            `json:"-"`
	Internal   error          `json:"-"`
	Fields     map[string]any `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is reports whether target is an AppError with the same code, so that
// copies made by Wrap/WithMessage still match their sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
		Fields:     sentinel.Fields,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
		Fields:     sentinel.Fields,
	}
}

// WithFields returns a copy of err carrying the given extra response fields.
func WithFields(err *AppError, fields map[string]any) *AppError {
	merged := make(map[string]any, len(err.Fields)+len(fields))
	for k, v := range err.Fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &AppError{
		Code:       err.Code,
		Message:    err.Message,
		StatusCode: err.StatusCode,
		Internal:   err.Internal,
		Fields:     merged,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Incorrect username or password.", StatusCode: http.StatusUnauthorized}
	ErrAccountLocked      = &AppError{Code: "ACCOUNT_LOCKED", Message: "Account is temporarily locked", StatusCode: http.StatusUnauthorized}
	ErrForbidden          = &AppError{Code: "FORBIDDEN", Message: "Forbidden: Admin access required", StatusCode: http.StatusForbidden}
	ErrTooManyRequests    = &AppError{Code: "TOO_MANY_REQUESTS", Message: "Too many requests, please slow down", StatusCode: http.StatusTooManyRequests}
)

// Token lifecycle errors.
var (
	ErrInvalidToken = &AppError{Code: "INVALID_TOKEN", Message: "Invalid or expired link", StatusCode: http.StatusBadRequest}
	ErrTokenExpired = &AppError{Code: "TOKEN_EXPIRED", Message: "Link has expired. Please request a new one.", StatusCode: http.StatusBadRequest}
	ErrRateLimited  = &AppError{Code: "RATE_LIMITED", Message: "Please wait before requesting another email", StatusCode: http.StatusTooManyRequests}
)

// Email errors.
var (
	ErrEmailAlreadyVerified = &AppError{Code: "EMAIL_ALREADY_VERIFIED", Message: "Email is already verified", StatusCode: http.StatusBadRequest}
	ErrEmailDelivery        = &AppError{Code: "EMAIL_DELIVERY_FAILED", Message: "Failed to send email", StatusCode: http.StatusBadGateway}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// User errors.
var (
	ErrUserNotFound      = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail    = &AppError{Code: "DUPLICATE_EMAIL", Message: "Email already registered", StatusCode: http.StatusBadRequest}
	ErrDuplicateUsername = &AppError{Code: "DUPLICATE_USERNAME", Message: "Username already exists", StatusCode: http.StatusBadRequest}
	ErrWrongPassword     = &AppError{Code: "WRONG_PASSWORD", Message: "Current password is incorrect", StatusCode: http.StatusBadRequest}
	ErrSameEmail         = &AppError{Code: "SAME_EMAIL", Message: "This is already your email address", StatusCode: http.StatusBadRequest}
	ErrSelfAction        = &AppError{Code: "SELF_ACTION", Message: "Use the profile page to change your own account", StatusCode: http.StatusBadRequest}
)
