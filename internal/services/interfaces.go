package services

import (
	"context"

	"tarotjournal/internal/models"
	"tarotjournal/internal/pagination"
)

// AuthServicer defines the contract for registration, login and the email
// token flows.
type AuthServicer interface {
	Register(ctx context.Context, username, password, email string) (*models.User, error)
	Login(ctx context.Context, username, password string) (*models.User, error)
	VerifyEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, email string) (string, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) (*models.User, error)
	ValidateResetToken(ctx context.Context, token string) error
}

// AccountServicer defines the contract for a signed-in user managing their own account.
type AccountServicer interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, displayName, username *string) (*models.User, error)
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
	ChangeEmail(ctx context.Context, userID, email string) (*models.User, error)
}

// AdminServicer defines the contract for administrator account management.
type AdminServicer interface {
	ListUsers(ctx context.Context, page pagination.PageRequest) (*pagination.PageResponse[models.User], error)
	UnverifiedCount(ctx context.Context) (int64, error)
	LookupUser(ctx context.Context, username string) (*models.User, error)
	ResetUserPassword(ctx context.Context, actorID, userID, newPassword string) error
	VerifyUser(ctx context.Context, userID string) (*models.User, error)
	UpdateUserEmail(ctx context.Context, actorID, userID, email string) (*models.User, error)
	DeleteUser(ctx context.Context, actorID, userID string) (*models.User, error)
	PromoteUser(ctx context.Context, username string) (*models.User, bool, error)
	BootstrapAdmin(ctx context.Context, username string) error
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(actorID, action, resourceType, resourceID, ipAddress string, changes map[string]any)
}

// SessionRevoker ends every session of a user.
type SessionRevoker interface {
	RevokeUser(ctx context.Context, userID string) (int64, error)
}
