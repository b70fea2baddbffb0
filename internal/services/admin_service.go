package services

import (
	"context"
	"errors"

	"tarotjournal/internal/auth"
	apperrors "tarotjournal/internal/errors"
	"tarotjournal/internal/logger"
	"tarotjournal/internal/models"
	"tarotjournal/internal/pagination"
	"tarotjournal/internal/repository"
	"tarotjournal/internal/validator"
)

// Admin messages.
const (
	MsgAdminPasswordReset = "Password reset successfully"
	MsgAdminUserVerified  = "User verified successfully"
	MsgAdminEmailUpdated  = "Email updated successfully"
	MsgAdminUserDeleted   = "User and all associated data deleted successfully"
)

// adminService handles administrator account management.
type adminService struct {
	Deps
}

// NewAdminService creates a new AdminServicer.
func NewAdminService(deps Deps) AdminServicer {
	return &adminService{Deps: deps.withDefaults()}
}

// ListUsers returns a page of users ordered by username.
func (s *adminService) ListUsers(ctx context.Context, page pagination.PageRequest) (*pagination.PageResponse[models.User], error) {
	page.Defaults()
	users, total, err := s.Users.List(ctx, page)
	if err != nil {
		return nil, storageError(err)
	}
	resp := pagination.NewPageResponse(users, page, total)
	return &resp, nil
}

// UnverifiedCount counts users whose email is not verified.
func (s *adminService) UnverifiedCount(ctx context.Context) (int64, error) {
	count, err := s.Users.CountUnverified(ctx)
	if err != nil {
		return 0, storageError(err)
	}
	return count, nil
}

// LookupUser finds a user by username.
func (s *adminService) LookupUser(ctx context.Context, username string) (*models.User, error) {
	user, err := s.Users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, storageError(err)
	}
	return user, nil
}

// ResetUserPassword sets another user's password, clears their lockout and
// ends their sessions.
func (s *adminService) ResetUserPassword(ctx context.Context, actorID, userID, newPassword string) error {
	if err := checkPassword(newPassword, msgPasswordLength); err != nil {
		return err
	}
	if actorID == userID {
		return apperrors.WithMessage(apperrors.ErrSelfAction, "Use the profile page to change your own password")
	}

	user, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}

	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := s.Users.Persist(ctx, user.ID, merge(clearLockout(), auth.Changes{"password_hash": hash})); err != nil {
		return storageError(err)
	}
	s.revokeSessions(ctx, user.ID)

	logger.Get().Infow("admin reset user password", "actor_id", actorID, "user_id", user.ID)
	return nil
}

// VerifyUser marks a user's email verified and tells them by email.
// Delivery failure is logged; the user stays verified.
func (s *adminService) VerifyUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	changes := merge(auth.ClearChanges(auth.TokenVerification), auth.Changes{"email_verified": true})
	if err := s.Users.Persist(ctx, user.ID, changes); err != nil {
		return nil, storageError(err)
	}
	user.EmailVerified = true
	user.VerificationToken = nil
	user.VerificationTokenExpires = nil

	if email := user.EmailAddress(); email != "" {
		if err := s.Mailer.SendAdminVerified(ctx, email, user.Username); err != nil {
			logger.Get().Warnw("admin verification notice not delivered", "user_id", user.ID, "error", err)
		}
	}
	return user, nil
}

// UpdateUserEmail replaces another user's email. The new address is
// unverified and no verification link is sent.
func (s *adminService) UpdateUserEmail(ctx context.Context, actorID, userID, email string) (*models.User, error) {
	if actorID == userID {
		return nil, apperrors.WithMessage(apperrors.ErrSelfAction, "Use the profile page to change your own email")
	}
	email = repository.NormalizeEmail(email)
	if email == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, msgEmailRequired)
	}
	if !validator.IsEmail(email) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, msgInvalidEmail)
	}

	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	taken, err := s.Users.EmailTaken(ctx, email, user.ID)
	if err != nil {
		return nil, storageError(err)
	}
	if taken {
		return nil, apperrors.WithMessage(apperrors.ErrDuplicateEmail, "Email is already used by another user")
	}

	changes := merge(auth.ClearChanges(auth.TokenVerification), auth.Changes{"email": email, "email_verified": false})
	if err := s.Users.Persist(ctx, user.ID, changes); err != nil {
		return nil, storageError(err)
	}
	return s.findUser(ctx, user.ID)
}

// DeleteUser removes another user together with their sessions.
func (s *adminService) DeleteUser(ctx context.Context, actorID, userID string) (*models.User, error) {
	if actorID == userID {
		return nil, apperrors.WithMessage(apperrors.ErrSelfAction, "You cannot delete your own account")
	}

	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.Users.Delete(ctx, user.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, storageError(err)
	}

	logger.Get().Infow("user deleted", "actor_id", actorID, "user_id", user.ID, "username", user.Username)
	return user, nil
}

// PromoteUser grants the admin flag. The bool reports whether anything changed.
func (s *adminService) PromoteUser(ctx context.Context, username string) (*models.User, bool, error) {
	user, err := s.LookupUser(ctx, username)
	if err != nil {
		return nil, false, err
	}
	if user.IsAdmin {
		return user, false, nil
	}

	if err := s.Users.Persist(ctx, user.ID, auth.Changes{"is_admin": true}); err != nil {
		return nil, false, storageError(err)
	}
	user.IsAdmin = true
	return user, true, nil
}

// BootstrapAdmin promotes the configured username once at startup. An
// empty username disables it; a missing user is logged, not fatal.
func (s *adminService) BootstrapAdmin(ctx context.Context, username string) error {
	if username == "" {
		return nil
	}
	log := logger.Get()

	user, promoted, err := s.PromoteUser(ctx, username)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			log.Warnw("admin bootstrap user does not exist yet", "username", username)
			return nil
		}
		return err
	}

	if promoted {
		log.Infow("promoted bootstrap admin", "username", username, "user_id", user.ID)
	} else {
		log.Debugw("bootstrap admin already has admin rights", "username", username)
	}
	return nil
}
