package services

import (
	"context"
	"strings"

	"tarotjournal/internal/auth"
	apperrors "tarotjournal/internal/errors"
	"tarotjournal/internal/logger"
	"tarotjournal/internal/metrics"
	"tarotjournal/internal/models"
	"tarotjournal/internal/repository"
	"tarotjournal/internal/validator"
)

// Account messages.
const (
	MsgPasswordUpdated = "Password updated successfully"
	MsgEmailUpdated    = "Email updated. Please check your inbox to verify your new email address."
)

// accountService handles changes a user makes to their own account.
type accountService struct {
	Deps
}

// NewAccountService creates a new AccountServicer.
func NewAccountService(deps Deps) AccountServicer {
	return &accountService{Deps: deps.withDefaults()}
}

// GetUser retrieves a user by ID
func (s *accountService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return s.findUser(ctx, userID)
}

// UpdateProfile changes the display name and/or username. Nil arguments are left untouched.
func (s *accountService) UpdateProfile(ctx context.Context, userID string, displayName, username *string) (*models.User, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	changes := auth.Changes{}
	if displayName != nil {
		name := strings.TrimSpace(*displayName)
		if len(name) > 100 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Display name must be at most 100 characters")
		}
		changes["display_name"] = name
	}

	if username != nil && *username != "" && *username != user.Username {
		if !validator.IsUsername(*username) {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, msgInvalidUsername)
		}
		taken, err := s.Users.UsernameTaken(ctx, *username, user.ID)
		if err != nil {
			return nil, storageError(err)
		}
		if taken {
			return nil, apperrors.WithMessage(apperrors.ErrDuplicateUsername, "Username already taken")
		}
		changes["username"] = *username
	}

	if err := s.Users.Persist(ctx, user.ID, changes); err != nil {
		return nil, storageError(err)
	}
	return s.findUser(ctx, user.ID)
}

// ChangePassword replaces the password after checking the current one.
func (s *accountService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if currentPassword == "" || newPassword == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "Current and new passwords are required")
	}
	if err := checkPassword(newPassword, "New password must be at least 6 characters"); err != nil {
		return err
	}

	user, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := s.Hasher.Compare(user.PasswordHash, currentPassword)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if !ok {
		return apperrors.ErrWrongPassword
	}

	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := s.Users.Persist(ctx, user.ID, auth.Changes{"password_hash": hash}); err != nil {
		return storageError(err)
	}

	logger.Get().Infow("password changed", "user_id", user.ID)
	return nil
}

// ChangeEmail stores a new address as unverified and mails a verification
// link to it. Delivery failure is logged; the user can resend.
func (s *accountService) ChangeEmail(ctx context.Context, userID, email string) (*models.User, error) {
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
	if email == user.EmailAddress() {
		return nil, apperrors.ErrSameEmail
	}

	taken, err := s.Users.EmailTaken(ctx, email, user.ID)
	if err != nil {
		return nil, storageError(err)
	}
	if taken {
		return nil, apperrors.WithMessage(apperrors.ErrDuplicateEmail, "Email is already used by another account")
	}

	token, err := s.Tokens.IssueVerification(s.Now())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	changes := merge(token.Changes, auth.Changes{"email": email, "email_verified": false})
	if err := s.Users.Persist(ctx, user.ID, changes); err != nil {
		return nil, storageError(err)
	}
	metrics.RecordTokenIssued(string(auth.TokenVerification))

	if err := s.Mailer.SendVerification(ctx, email, user.Username, token.Value); err != nil {
		logger.Get().Warnw("verification email not delivered after email change", "user_id", user.ID, "error", err)
	}

	logger.Get().Infow("email changed", "user_id", user.ID)
	return s.findUser(ctx, user.ID)
}
