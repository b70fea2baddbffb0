package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "tarotjournal/internal/errors"
	"tarotjournal/internal/logger"
	"tarotjournal/internal/models"
	"tarotjournal/internal/services"
	"tarotjournal/internal/session"
)

// SessionIssuer opens and closes browser sessions.
type SessionIssuer interface {
	Issue(ctx context.Context, user *models.User, meta session.Meta) (string, time.Time, error)
	Revoke(ctx context.Context, cookie string) error
	SetCookie(c *gin.Context, value string, expires time.Time)
	ClearCookie(c *gin.Context)
}

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	authService  services.AuthServicer
	sessions     SessionIssuer
	auditService services.AuditServicer
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService services.AuthServicer, sessions SessionIssuer, auditService services.AuditServicer) *AuthHandler {
	return &AuthHandler{authService: authService, sessions: sessions, auditService: auditService}
}

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Username string `json:"username" binding:"max=64"`
	Password string `json:"password" binding:"max=128"`
	Email    string `json:"email" binding:"max=255"`
}

// RegisterResponse is returned after a successful registration.
type RegisterResponse struct {
	Message              string `json:"message"`
	RequiresVerification bool   `json:"requiresVerification"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Username string `json:"username" binding:"max=64"`
	Password string `json:"password" binding:"max=128"`
}

// EmailRequest carries a single email address.
type EmailRequest struct {
	Email string `json:"email" binding:"max=255"`
}

// ResetPasswordRequest represents the password reset payload
type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"max=128"`
	NewPassword string `json:"newPassword" binding:"max=128"`
}

// ValidateTokenResponse reports whether a reset link is usable.
type ValidateTokenResponse struct {
	Valid bool         `json:"valid"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// Register handles user registration
// @Summary     Register a new user
// @Description Create an unverified account and email a verification link
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body RegisterRequest true "User registration data"
// @Success     201 {object} RegisterResponse "Account created"
// @Failure     400 {object} ErrorResponse "Invalid input or duplicate username/email"
// @Failure     429 {object} ErrorResponse "Too many requests"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	if _, err := h.authService.Register(c.Request.Context(), req.Username, req.Password, req.Email); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, RegisterResponse{
		Message:              services.MsgRegistered,
		RequiresVerification: true,
	})
}

// Login handles user login
// @Summary     Login user
// @Description Check credentials against the lockout guard and open a session cookie
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body LoginRequest true "User login credentials"
// @Success     200 {object} UserResponse "Authenticated user"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Invalid credentials or account locked"
// @Failure     429 {object} ErrorResponse "Too many requests"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	user, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondWithError(c, err)
		return
	}

	cookie, expires, err := h.sessions.Issue(c.Request.Context(), user, session.Meta{
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}
	h.sessions.SetCookie(c, cookie, expires)

	c.JSON(http.StatusOK, toUserResponse(user))
}

// Logout ends the current session
// @Summary     Logout
// @Description Revoke the session and clear its cookie
// @Tags        auth
// @Produce     json
// @Success     200 {object} MessageResponse "Logged out"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if cookie, err := c.Cookie(session.CookieName); err == nil && cookie != "" {
		if err := h.sessions.Revoke(c.Request.Context(), cookie); err != nil {
			respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
			return
		}
	}
	h.sessions.ClearCookie(c)

	c.JSON(http.StatusOK, MessageResponse{Message: services.MsgLoggedOut})
}

// VerifyEmail consumes an email verification link
// @Summary     Verify email
// @Description Mark the email verified using the token from the verification link
// @Tags        auth
// @Produce     json
// @Param       token path string true "Verification token"
// @Success     200 {object} MessageResponse "Email verified"
// @Failure     400 {object} ErrorResponse "Invalid or expired link"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /auth/verify/{token} [get]
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	if err := h.authService.VerifyEmail(c.Request.Context(), c.Param("token")); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: services.MsgEmailVerified})
}

// ResendVerification sends a fresh verification link
// @Summary     Resend verification email
// @Description Issue a new verification token, at most once every 5 minutes
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body EmailRequest true "Account email"
// @Success     200 {object} MessageResponse "Email sent (or address unknown)"
// @Failure     400 {object} ErrorResponse "Invalid input or already verified"
// @Failure     429 {object} ErrorResponse "Cooldown active; includes waitMinutes"
// @Failure     502 {object} ErrorResponse "Email delivery failed"
// @Router      /auth/resend-verification [post]
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	msg, err := h.authService.ResendVerification(c.Request.Context(), req.Email)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: msg})
}

// ForgotPassword emails a password reset link
// @Summary     Request password reset
// @Description Always answers with the same message so addresses cannot be enumerated
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body EmailRequest true "Account email"
// @Success     200 {object} MessageResponse "Generic confirmation"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     429 {object} ErrorResponse "Cooldown active; includes waitMinutes"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	if err := h.authService.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: services.MsgResetMaybe})
}

// ResetPassword sets a new password from a reset link
// @Summary     Reset password
// @Description Consume a reset token, store the new password and end all sessions
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body ResetPasswordRequest true "Token and new password"
// @Success     200 {object} MessageResponse "Password reset"
// @Failure     400 {object} ErrorResponse "Invalid input or invalid/expired link"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	user, err := h.authService.ResetPassword(c.Request.Context(), req.Token, req.NewPassword)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(user.ID, models.AuditActionPasswordReset, "user", user.ID, c.ClientIP(), nil)
	c.JSON(http.StatusOK, MessageResponse{Message: services.MsgPasswordReset})
}

// ValidateResetToken checks a reset link before the form is shown
// @Summary     Validate reset token
// @Tags        auth
// @Produce     json
// @Param       token path string true "Reset token"
// @Success     200 {object} ValidateTokenResponse "Token usable"
// @Failure     400 {object} ValidateTokenResponse "Token invalid or expired"
// @Failure     500 {object} ValidateTokenResponse "Server error"
// @Router      /auth/validate-reset-token/{token} [get]
func (h *AuthHandler) ValidateResetToken(c *gin.Context) {
	err := h.authService.ValidateResetToken(c.Request.Context(), c.Param("token"))
	if err == nil {
		c.JSON(http.StatusOK, ValidateTokenResponse{Valid: true})
		return
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if appErr.Internal != nil {
		logger.Get().Errorw("failed to validate reset token", "error", appErr.Internal)
	}
	c.JSON(appErr.StatusCode, ValidateTokenResponse{
		Valid: false,
		Error: &ErrorDetail{Code: appErr.Code, Message: appErr.Message},
	})
}

// Me returns the signed-in user
// @Summary     Current user
// @Tags        auth
// @Produce     json
// @Success     200 {object} UserResponse "Signed-in user"
// @Failure     401 {object} ErrorResponse "Not authenticated"
// @Router      /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := getUser(c)
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrUnauthorized, "Not authenticated"))
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}
