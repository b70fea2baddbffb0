package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tarotjournal/internal/models"
	"tarotjournal/internal/services"
)

// AccountHandler handles a signed-in user's changes to their own account
type AccountHandler struct {
	accountService services.AccountServicer
	auditService   services.AuditServicer
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(accountService services.AccountServicer, auditService services.AuditServicer) *AccountHandler {
	return &AccountHandler{accountService: accountService, auditService: auditService}
}

// UpdateProfileRequest represents the profile update payload
type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name" binding:"omitempty,max=100"`
	Username    *string `json:"username" binding:"omitempty,max=64"`
}

// ChangePasswordRequest represents the password change payload
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"max=128"`
	NewPassword     string `json:"newPassword" binding:"max=128"`
}

// EmailChangeResponse is returned after an email change.
type EmailChangeResponse struct {
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
}

// UpdateProfile handles profile updates
// @Summary     Update profile
// @Description Change the display name and/or username of the signed-in user
// @Tags        account
// @Accept      json
// @Produce     json
// @Param       request body UpdateProfileRequest true "Profile fields"
// @Success     200 {object} UserResponse "Updated user"
// @Failure     400 {object} ErrorResponse "Invalid input or username taken"
// @Failure     401 {object} ErrorResponse "Not authenticated"
// @Router      /auth/profile [put]
func (h *AccountHandler) UpdateProfile(c *gin.Context) {
	current, err := getUser(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	user, err := h.accountService.UpdateProfile(c.Request.Context(), current.ID, req.DisplayName, req.Username)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

// ChangePassword handles password changes
// @Summary     Change password
// @Tags        account
// @Accept      json
// @Produce     json
// @Param       request body ChangePasswordRequest true "Current and new password"
// @Success     200 {object} MessageResponse "Password updated"
// @Failure     400 {object} ErrorResponse "Invalid input or wrong current password"
// @Failure     401 {object} ErrorResponse "Not authenticated"
// @Router      /auth/password [put]
func (h *AccountHandler) ChangePassword(c *gin.Context) {
	current, err := getUser(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	if err := h.accountService.ChangePassword(c.Request.Context(), current.ID, req.CurrentPassword, req.NewPassword); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(current.ID, models.AuditActionPasswordChanged, "user", current.ID, c.ClientIP(), nil)
	c.JSON(http.StatusOK, MessageResponse{Message: services.MsgPasswordUpdated})
}

// ChangeEmail handles email changes
// @Summary     Change email
// @Description Store a new unverified address and send a verification link to it
// @Tags        account
// @Accept      json
// @Produce     json
// @Param       request body EmailRequest true "New email"
// @Success     200 {object} EmailChangeResponse "Email updated"
// @Failure     400 {object} ErrorResponse "Invalid input, same or duplicate email"
// @Failure     401 {object} ErrorResponse "Not authenticated"
// @Router      /auth/email [put]
func (h *AccountHandler) ChangeEmail(c *gin.Context) {
	current, err := getUser(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	previous := current.EmailAddress()
	user, err := h.accountService.ChangeEmail(c.Request.Context(), current.ID, req.Email)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(current.ID, models.AuditActionEmailChanged, "user", current.ID, c.ClientIP(),
		map[string]any{"from": previous, "to": user.EmailAddress()})
	c.JSON(http.StatusOK, EmailChangeResponse{Message: services.MsgEmailUpdated, User: toUserResponse(user)})
}
