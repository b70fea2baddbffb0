package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"tarotjournal/internal/middleware"
	"tarotjournal/internal/models"
	"tarotjournal/internal/pagination"
	"tarotjournal/internal/services"
	"tarotjournal/internal/session"
	"tarotjournal/internal/validator"
)

// --- mock services ---

type mockAuthService struct {
	registerFn           func(username, password, email string) (*models.User, error)
	loginFn              func(username, password string) (*models.User, error)
	verifyEmailFn        func(token string) error
	resendVerificationFn func(email string) (string, error)
	forgotPasswordFn     func(email string) error
	resetPasswordFn      func(token, newPassword string) (*models.User, error)
	validateResetTokenFn func(token string) error
}

var _ services.AuthServicer = (*mockAuthService)(nil)

func (m *mockAuthService) Register(_ context.Context, username, password, email string) (*models.User, error) {
	if m.registerFn != nil {
		return m.registerFn(username, password, email)
	}
	return &models.User{}, nil
}

func (m *mockAuthService) Login(_ context.Context, username, password string) (*models.User, error) {
	if m.loginFn != nil {
		return m.loginFn(username, password)
	}
	return &models.User{}, nil
}

func (m *mockAuthService) VerifyEmail(_ context.Context, token string) error {
	if m.verifyEmailFn != nil {
		return m.verifyEmailFn(token)
	}
	return nil
}

func (m *mockAuthService) ResendVerification(_ context.Context, email string) (string, error) {
	if m.resendVerificationFn != nil {
		return m.resendVerificationFn(email)
	}
	return services.MsgVerificationSent, nil
}

func (m *mockAuthService) ForgotPassword(_ context.Context, email string) error {
	if m.forgotPasswordFn != nil {
		return m.forgotPasswordFn(email)
	}
	return nil
}

func (m *mockAuthService) ResetPassword(_ context.Context, token, newPassword string) (*models.User, error) {
	if m.resetPasswordFn != nil {
		return m.resetPasswordFn(token, newPassword)
	}
	return &models.User{}, nil
}

func (m *mockAuthService) ValidateResetToken(_ context.Context, token string) error {
	if m.validateResetTokenFn != nil {
		return m.validateResetTokenFn(token)
	}
	return nil
}

type mockAccountService struct {
	getUserFn        func(userID string) (*models.User, error)
	updateProfileFn  func(userID string, displayName, username *string) (*models.User, error)
	changePasswordFn func(userID, current, next string) error
	changeEmailFn    func(userID, email string) (*models.User, error)
}

var _ services.AccountServicer = (*mockAccountService)(nil)

func (m *mockAccountService) GetUser(_ context.Context, userID string) (*models.User, error) {
	if m.getUserFn != nil {
		return m.getUserFn(userID)
	}
	return &models.User{}, nil
}

func (m *mockAccountService) UpdateProfile(_ context.Context, userID string, displayName, username *string) (*models.User, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(userID, displayName, username)
	}
	return &models.User{}, nil
}

func (m *mockAccountService) ChangePassword(_ context.Context, userID, current, next string) error {
	if m.changePasswordFn != nil {
		return m.changePasswordFn(userID, current, next)
	}
	return nil
}

func (m *mockAccountService) ChangeEmail(_ context.Context, userID, email string) (*models.User, error) {
	if m.changeEmailFn != nil {
		return m.changeEmailFn(userID, email)
	}
	return &models.User{}, nil
}

type mockAdminService struct {
	listUsersFn         func(page pagination.PageRequest) (*pagination.PageResponse[models.User], error)
	unverifiedCountFn   func() (int64, error)
	resetUserPasswordFn func(actorID, userID, password string) error
	verifyUserFn        func(userID string) (*models.User, error)
	updateUserEmailFn   func(actorID, userID, email string) (*models.User, error)
	deleteUserFn        func(actorID, userID string) (*models.User, error)
}

var _ services.AdminServicer = (*mockAdminService)(nil)

func (m *mockAdminService) ListUsers(_ context.Context, page pagination.PageRequest) (*pagination.PageResponse[models.User], error) {
	if m.listUsersFn != nil {
		return m.listUsersFn(page)
	}
	resp := pagination.NewPageResponse[models.User](nil, page, 0)
	return &resp, nil
}

func (m *mockAdminService) UnverifiedCount(_ context.Context) (int64, error) {
	if m.unverifiedCountFn != nil {
		return m.unverifiedCountFn()
	}
	return 0, nil
}

func (m *mockAdminService) LookupUser(_ context.Context, username string) (*models.User, error) {
	return &models.User{Username: username}, nil
}

func (m *mockAdminService) ResetUserPassword(_ context.Context, actorID, userID, password string) error {
	if m.resetUserPasswordFn != nil {
		return m.resetUserPasswordFn(actorID, userID, password)
	}
	return nil
}

func (m *mockAdminService) VerifyUser(_ context.Context, userID string) (*models.User, error) {
	if m.verifyUserFn != nil {
		return m.verifyUserFn(userID)
	}
	return &models.User{Base: models.Base{ID: userID}}, nil
}

func (m *mockAdminService) UpdateUserEmail(_ context.Context, actorID, userID, email string) (*models.User, error) {
	if m.updateUserEmailFn != nil {
		return m.updateUserEmailFn(actorID, userID, email)
	}
	return &models.User{Base: models.Base{ID: userID}, Email: &email}, nil
}

func (m *mockAdminService) DeleteUser(_ context.Context, actorID, userID string) (*models.User, error) {
	if m.deleteUserFn != nil {
		return m.deleteUserFn(actorID, userID)
	}
	return &models.User{Base: models.Base{ID: userID}}, nil
}

func (m *mockAdminService) PromoteUser(_ context.Context, username string) (*models.User, bool, error) {
	return &models.User{Username: username, IsAdmin: true}, true, nil
}

func (m *mockAdminService) BootstrapAdmin(_ context.Context, _ string) error {
	return nil
}

type auditEntry struct {
	actorID, action, resourceID string
	changes                     map[string]any
}

type mockAuditService struct {
	entries []auditEntry
}

func (m *mockAuditService) Log(actorID, action, _, resourceID, _ string, changes map[string]any) {
	m.entries = append(m.entries, auditEntry{actorID: actorID, action: action, resourceID: resourceID, changes: changes})
}

type mockSessions struct {
	issueFn   func(user *models.User, meta session.Meta) (string, time.Time, error)
	revokeFn  func(cookie string) error
	revoked   []string
	cleared   int
	lastIssue *models.User
}

var _ SessionIssuer = (*mockSessions)(nil)

func (m *mockSessions) Issue(_ context.Context, user *models.User, meta session.Meta) (string, time.Time, error) {
	m.lastIssue = user
	if m.issueFn != nil {
		return m.issueFn(user, meta)
	}
	return "cookie-value", time.Now().Add(time.Hour), nil
}

func (m *mockSessions) Revoke(_ context.Context, cookie string) error {
	m.revoked = append(m.revoked, cookie)
	if m.revokeFn != nil {
		return m.revokeFn(cookie)
	}
	return nil
}

func (m *mockSessions) SetCookie(c *gin.Context, value string, _ time.Time) {
	c.SetCookie(session.CookieName, value, 3600, "/", "", false, true)
}

func (m *mockSessions) ClearCookie(c *gin.Context) {
	m.cleared++
	c.SetCookie(session.CookieName, "", -1, "/", "", false, true)
}

// --- test helpers ---

func init() {
	gin.SetMode(gin.TestMode)
	validator.Register()
}

func injectUser(user *models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware.SetCurrentUser(c, user)
		c.Next()
	}
}

func testUser(id string) *models.User {
	email := id + "@example.com"
	return &models.User{
		Base:          models.Base{ID: id, CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		Username:      id,
		Email:         &email,
		EmailVerified: true,
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}

func assertErrorMessage(t *testing.T, result map[string]interface{}, want string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["message"] != want {
		t.Errorf("expected error message %q, got %q", want, errObj["message"])
	}
}

func assertMessage(t *testing.T, result map[string]interface{}, want string) {
	t.Helper()
	if result["message"] != want {
		t.Errorf("expected message %q, got %v", want, result["message"])
	}
}
