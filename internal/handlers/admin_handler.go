package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tarotjournal/internal/models"
	"tarotjournal/internal/pagination"
	"tarotjournal/internal/services"
)

// AdminHandler handles administrator user management
type AdminHandler struct {
	adminService services.AdminServicer
	auditService services.AuditServicer
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(adminService services.AdminServicer, auditService services.AuditServicer) *AdminHandler {
	return &AdminHandler{adminService: adminService, auditService: auditService}
}

// AdminPasswordRequest carries the password an admin sets for a user
type AdminPasswordRequest struct {
	NewPassword string `json:"newPassword" binding:"max=128"`
}

// CountResponse wraps a single count.
type CountResponse struct {
	Count int64 `json:"count"`
}

// AdminEmailResponse is returned after an admin changes a user's email.
type AdminEmailResponse struct {
	Message       string `json:"message"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

// ListUsers returns a page of users
// @Summary     List users
// @Tags        admin
// @Produce     json
// @Param       page      query int    false "Page number"
// @Param       page_size query int    false "Items per page"
// @Param       q         query string false "Username or email filter"
// @Success     200 {object} pagination.PageResponse[UserResponse] "Users"
// @Failure     401 {object} ErrorResponse "Not authenticated"
// @Failure     403 {object} ErrorResponse "Not an admin"
// @Router      /admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	result, err := h.adminService.ListUsers(c.Request.Context(), page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	users := make([]UserResponse, 0, len(result.Data))
	for i := range result.Data {
		users = append(users, toUserResponse(&result.Data[i]))
	}
	c.JSON(http.StatusOK, pagination.PageResponse[UserResponse]{
		Data:       users,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalItems: result.TotalItems,
		TotalPages: result.TotalPages,
	})
}

// UnverifiedCount returns the number of users with an unverified email
// @Summary     Count unverified users
// @Tags        admin
// @Produce     json
// @Success     200 {object} CountResponse "Count"
// @Failure     403 {object} ErrorResponse "Not an admin"
// @Router      /admin/unverified-count [get]
func (h *AdminHandler) UnverifiedCount(c *gin.Context) {
	count, err := h.adminService.UnverifiedCount(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, CountResponse{Count: count})
}

// ResetUserPassword sets another user's password
// @Summary     Reset a user's password
// @Tags        admin
// @Accept      json
// @Produce     json
// @Param       id      path string               true "User ID"
// @Param       request body AdminPasswordRequest true "New password"
// @Success     200 {object} MessageResponse "Password reset"
// @Failure     400 {object} ErrorResponse "Invalid input or own account"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /admin/users/{id}/reset-password [put]
func (h *AdminHandler) ResetUserPassword(c *gin.Context) {
	admin, err := getUser(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req AdminPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	userID := c.Param("id")
	if err := h.adminService.ResetUserPassword(c.Request.Context(), admin.ID, userID, req.NewPassword); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(admin.ID, models.AuditActionPasswordReset, "user", userID, c.ClientIP(),
		map[string]any{"by_admin": true})
	c.JSON(http.StatusOK, MessageResponse{Message: services.MsgAdminPasswordReset})
}

// VerifyUser marks a user's email verified
// @Summary     Verify a user
// @Tags        admin
// @Produce     json
// @Param       id path string true "User ID"
// @Success     200 {object} MessageResponse "User verified"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /admin/users/{id}/verify [put]
func (h *AdminHandler) VerifyUser(c *gin.Context) {
	admin, err := getUser(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	user, err := h.adminService.VerifyUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(admin.ID, models.AuditActionUserVerified, "user", user.ID, c.ClientIP(), nil)
	c.JSON(http.StatusOK, MessageResponse{Message: services.MsgAdminUserVerified})
}

// UpdateUserEmail replaces another user's email
// @Summary     Change a user's email
// @Tags        admin
// @Accept      json
// @Produce     json
// @Param       id      path string       true "User ID"
// @Param       request body EmailRequest true "New email"
// @Success     200 {object} AdminEmailResponse "Email updated"
// @Failure     400 {object} ErrorResponse "Invalid input, duplicate or own account"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /admin/users/{id}/email [put]
func (h *AdminHandler) UpdateUserEmail(c *gin.Context) {
	admin, err := getUser(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	user, err := h.adminService.UpdateUserEmail(c.Request.Context(), admin.ID, c.Param("id"), req.Email)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(admin.ID, models.AuditActionEmailChanged, "user", user.ID, c.ClientIP(),
		map[string]any{"to": user.EmailAddress(), "by_admin": true})
	c.JSON(http.StatusOK, AdminEmailResponse{
		Message:       services.MsgAdminEmailUpdated,
		Email:         user.EmailAddress(),
		EmailVerified: user.EmailVerified,
	})
}

// DeleteUser removes a user and their sessions
// @Summary     Delete a user
// @Tags        admin
// @Produce     json
// @Param       id path string true "User ID"
// @Success     200 {object} MessageResponse "User deleted"
// @Failure     400 {object} ErrorResponse "Own account"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /admin/users/{id} [delete]
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	admin, err := getUser(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	user, err := h.adminService.DeleteUser(c.Request.Context(), admin.ID, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(admin.ID, models.AuditActionUserDeleted, "user", user.ID, c.ClientIP(),
		map[string]any{"username": user.Username})
	c.JSON(http.StatusOK, MessageResponse{Message: services.MsgAdminUserDeleted})
}
