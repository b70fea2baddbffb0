package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	apperrors "tarotjournal/internal/errors"
	"tarotjournal/internal/middleware"
	"tarotjournal/internal/models"
	"tarotjournal/internal/validator"
)

// getUser returns the authenticated user from the Gin context.
// Returns ErrUnauthorized if not present.
func getUser(c *gin.Context) (*models.User, error) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return nil, apperrors.ErrUnauthorized
	}
	return user, nil
}

// respondWithError writes a consistent JSON error response.
func respondWithError(c *gin.Context, err error) {
	middleware.RespondWithError(c, err)
}

// bindError reports a malformed request body without exposing binder internals.
func bindError(err error) error {
	return apperrors.WithMessage(apperrors.ErrInvalidInput, validator.Describe(err))
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID            string     `json:"id"`
	Username      string     `json:"username"`
	Email         *string    `json:"email"`
	EmailVerified bool       `json:"email_verified"`
	DisplayName   string     `json:"display_name"`
	IsAdmin       bool       `json:"is_admin"`
	CreatedAt     time.Time  `json:"created_at"`
	LastLoginAt   *time.Time `json:"last_login,omitempty"`
}

func toUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		DisplayName:   u.DisplayName,
		IsAdmin:       u.IsAdmin,
		CreatedAt:     u.CreatedAt,
		LastLoginAt:   u.LastLoginAt,
	}
}

// MessageResponse carries a human-readable result.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorDetail represents the inner error object in an error response.
type ErrorDetail struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	WaitMinutes int    `json:"waitMinutes,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}
