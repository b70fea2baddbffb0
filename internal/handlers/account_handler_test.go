package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "tarotjournal/internal/errors"
	"tarotjournal/internal/models"
	"tarotjournal/internal/services"
)

func setupAccountRouter(handler *AccountHandler, user *models.User) *gin.Engine {
	r := gin.New()
	group := r.Group("/auth")
	if user != nil {
		group.Use(injectUser(user))
	}
	group.PUT("/profile", handler.UpdateProfile)
	group.PUT("/password", handler.ChangePassword)
	group.PUT("/email", handler.ChangeEmail)
	return r
}

func TestAccountHandler_UpdateProfile(t *testing.T) {
	t.Run("passes only provided fields", func(t *testing.T) {
		var gotName, gotUsername *string
		svc := &mockAccountService{
			updateProfileFn: func(userID string, displayName, username *string) (*models.User, error) {
				if userID != "u1" {
					t.Errorf("expected user u1, got %q", userID)
				}
				gotName, gotUsername = displayName, username
				u := testUser("u1")
				u.DisplayName = *displayName
				return u, nil
			},
		}
		r := setupAccountRouter(NewAccountHandler(svc, &mockAuditService{}), testUser("u1"))

		rec := doRequest(r, http.MethodPut, "/auth/profile", `{"display_name":"Star Gazer"}`)

		assertStatus(t, rec, http.StatusOK)
		if gotName == nil || *gotName != "Star Gazer" {
			t.Errorf("expected display name, got %v", gotName)
		}
		if gotUsername != nil {
			t.Errorf("expected nil username, got %q", *gotUsername)
		}
		if parseJSON(t, rec)["display_name"] != "Star Gazer" {
			t.Error("expected updated display name in response")
		}
	})

	t.Run("username taken", func(t *testing.T) {
		svc := &mockAccountService{
			updateProfileFn: func(string, *string, *string) (*models.User, error) {
				return nil, apperrors.WithMessage(apperrors.ErrDuplicateUsername, "Username already taken")
			},
		}
		r := setupAccountRouter(NewAccountHandler(svc, &mockAuditService{}), testUser("u1"))

		rec := doRequest(r, http.MethodPut, "/auth/profile", `{"username":"bob"}`)

		assertStatus(t, rec, http.StatusBadRequest)
		assertErrorCode(t, parseJSON(t, rec), "DUPLICATE_USERNAME")
	})

	t.Run("anonymous is 401", func(t *testing.T) {
		r := setupAccountRouter(NewAccountHandler(&mockAccountService{}, &mockAuditService{}), nil)

		rec := doRequest(r, http.MethodPut, "/auth/profile", `{}`)

		assertStatus(t, rec, http.StatusUnauthorized)
	})
}

func TestAccountHandler_ChangePassword(t *testing.T) {
	t.Run("audits a successful change", func(t *testing.T) {
		audit := &mockAuditService{}
		svc := &mockAccountService{
			changePasswordFn: func(userID, current, next string) error {
				if current != "oldpass" || next != "newpass" {
					t.Errorf("unexpected passwords %q/%q", current, next)
				}
				return nil
			},
		}
		r := setupAccountRouter(NewAccountHandler(svc, audit), testUser("u1"))

		rec := doRequest(r, http.MethodPut, "/auth/password", `{"currentPassword":"oldpass","newPassword":"newpass"}`)

		assertStatus(t, rec, http.StatusOK)
		assertMessage(t, parseJSON(t, rec), services.MsgPasswordUpdated)
		if len(audit.entries) != 1 || audit.entries[0].action != models.AuditActionPasswordChanged {
			t.Errorf("expected password_changed audit, got %+v", audit.entries)
		}
	})

	t.Run("wrong current password", func(t *testing.T) {
		audit := &mockAuditService{}
		svc := &mockAccountService{
			changePasswordFn: func(string, string, string) error { return apperrors.ErrWrongPassword },
		}
		r := setupAccountRouter(NewAccountHandler(svc, audit), testUser("u1"))

		rec := doRequest(r, http.MethodPut, "/auth/password", `{"currentPassword":"bad","newPassword":"newpass"}`)

		assertStatus(t, rec, http.StatusBadRequest)
		assertErrorCode(t, parseJSON(t, rec), "WRONG_PASSWORD")
		if len(audit.entries) != 0 {
			t.Errorf("expected no audit, got %+v", audit.entries)
		}
	})
}

func TestAccountHandler_ChangeEmail(t *testing.T) {
	t.Run("returns the user and records old and new address", func(t *testing.T) {
		audit := &mockAuditService{}
		svc := &mockAccountService{
			changeEmailFn: func(_, email string) (*models.User, error) {
				u := testUser("u1")
				u.Email = &email
				u.EmailVerified = false
				return u, nil
			},
		}
		r := setupAccountRouter(NewAccountHandler(svc, audit), testUser("u1"))

		rec := doRequest(r, http.MethodPut, "/auth/email", `{"email":"new@x.io"}`)

		assertStatus(t, rec, http.StatusOK)
		result := parseJSON(t, rec)
		assertMessage(t, result, services.MsgEmailUpdated)
		user := result["user"].(map[string]interface{})
		if user["email"] != "new@x.io" || user["email_verified"] != false {
			t.Errorf("unexpected user payload %v", user)
		}
		if len(audit.entries) != 1 {
			t.Fatalf("expected one audit entry, got %d", len(audit.entries))
		}
		if audit.entries[0].changes["from"] != "u1@example.com" || audit.entries[0].changes["to"] != "new@x.io" {
			t.Errorf("unexpected audit changes %v", audit.entries[0].changes)
		}
	})

	t.Run("same email", func(t *testing.T) {
		svc := &mockAccountService{
			changeEmailFn: func(string, string) (*models.User, error) { return nil, apperrors.ErrSameEmail },
		}
		r := setupAccountRouter(NewAccountHandler(svc, &mockAuditService{}), testUser("u1"))

		rec := doRequest(r, http.MethodPut, "/auth/email", `{"email":"u1@example.com"}`)

		assertStatus(t, rec, http.StatusBadRequest)
		assertErrorCode(t, parseJSON(t, rec), "SAME_EMAIL")
	})
}
