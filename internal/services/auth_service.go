package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tarotjournal/internal/auth"
	apperrors "tarotjournal/internal/errors"
	"tarotjournal/internal/logger"
	"tarotjournal/internal/metrics"
	"tarotjournal/internal/models"
	"tarotjournal/internal/repository"
	"tarotjournal/internal/validator"
)

// User-facing messages of the auth flows.
const (
	MsgRegistered         = "Account created! Please check your email to verify your account."
	MsgEmailVerified      = "Email verified successfully! You can now log in."
	MsgVerificationSent   = "Verification email sent! Please check your inbox."
	MsgVerificationMaybe  = "If that email is registered, a verification link has been sent."
	MsgResetMaybe         = "If that email is registered, a password reset link has been sent."
	MsgPasswordReset      = "Password reset successfully! You can now log in with your new password."
	MsgLoggedOut          = "Logged out successfully"
	msgInvalidVerifyLink  = "Invalid verification link"
	msgExpiredVerifyLink  = "Verification link has expired. Please request a new one."
	msgInvalidResetLink   = "Invalid or expired reset link"
	msgExpiredResetLink   = "Reset link has expired. Please request a new one."
	msgEmailRequired      = "Email is required"
	msgInvalidEmail       = "Invalid email format"
	msgPasswordLength     = "Password must be at least 6 characters"
	msgPasswordTooLong    = "Password must be at most 72 characters"
	msgRegisterRequired   = "Username, email, and password are required"
	msgResetRequired      = "Token and new password are required"
	msgInvalidUsername    = "Username must be 3-30 letters, digits, dots, dashes or underscores"
	msgVerificationFailed = "Failed to send verification email"
)

// Messages used by ValidateResetToken.
const (
	MsgResetLinkInvalid = "Invalid reset link"
	MsgResetLinkExpired = "Reset link has expired"
)

// authService implements the login guard and email token flows over a UserStore.
type authService struct {
	Deps
}

// NewAuthService creates a new AuthServicer.
func NewAuthService(deps Deps) AuthServicer {
	return &authService{Deps: deps.withDefaults()}
}

// Register creates an unverified account and mails its verification link.
// A failed delivery is logged; the user can ask for the link again.
func (s *authService) Register(ctx context.Context, username, password, email string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = repository.NormalizeEmail(email)

	if username == "" || password == "" || email == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, msgRegisterRequired)
	}
	if !validator.IsEmail(email) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, msgInvalidEmail)
	}
	if !validator.IsUsername(username) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, msgInvalidUsername)
	}
	if err := checkPassword(password, msgPasswordLength); err != nil {
		return nil, err
	}

	if taken, err := s.Users.EmailTaken(ctx, email, ""); err != nil {
		return nil, storageError(err)
	} else if taken {
		return nil, apperrors.ErrDuplicateEmail
	}
	if taken, err := s.Users.UsernameTaken(ctx, username, ""); err != nil {
		return nil, storageError(err)
	} else if taken {
		return nil, apperrors.ErrDuplicateUsername
	}

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	token, err := s.Tokens.IssueVerification(s.Now())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	user := &models.User{
		Username:                 username,
		Email:                    &email,
		PasswordHash:             hash,
		DisplayName:              username,
		VerificationToken:        &token.Value,
		VerificationTokenExpires: &token.ExpiresAt,
		VerificationSentAt:       &token.SentAt,
	}
	if err := s.Users.Create(ctx, user); err != nil {
		// Lost a race with a concurrent registration.
		if taken, _ := s.Users.UsernameTaken(ctx, username, ""); taken {
			return nil, apperrors.ErrDuplicateUsername
		}
		return nil, storageError(err)
	}
	metrics.RecordTokenIssued(string(auth.TokenVerification))

	if err := s.Mailer.SendVerification(ctx, email, username, token.Value); err != nil {
		logger.Get().Warnw("verification email not delivered after registration", "user_id", user.ID, "error", err)
	}

	logger.Get().Infow("user registered", "user_id", user.ID, "username", username)
	return user, nil
}

// Login runs the login guard around the password check.
func (s *authService) Login(ctx context.Context, username, password string) (*models.User, error) {
	if username == "" || password == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Username and password are required")
	}

	user, err := s.Users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.RecordLogin("unknown_user")
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, storageError(err)
	}

	now := s.Now()
	gate, outcome := s.Guard.Check(user, now)
	switch gate {
	case auth.GateLocked:
		metrics.RecordLogin(outcome.Kind.String())
		return nil, loginError(outcome)
	case auth.GateLockoutExpired:
		if err := s.Users.Persist(ctx, user.ID, outcome.Changes); err != nil {
			return nil, storageError(err)
		}
	}

	ok, err := s.Hasher.Compare(user.PasswordHash, password)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if !ok {
		outcome = s.Guard.Failure(user, now)
		if err := s.Users.Persist(ctx, user.ID, outcome.Changes); err != nil {
			return nil, storageError(err)
		}
		metrics.RecordLogin(outcome.Kind.String())
		if outcome.Kind == auth.OutcomeJustLocked {
			logger.Get().Warnw("account locked after failed logins", "user_id", user.ID, "attempts", user.FailedLoginAttempts)
		}
		return nil, loginError(outcome)
	}

	outcome = s.Guard.Success(user, now)
	if err := s.Users.Persist(ctx, user.ID, outcome.Changes); err != nil {
		return nil, storageError(err)
	}
	metrics.RecordLogin(outcome.Kind.String())
	return user, nil
}

// loginError maps a failed outcome to its AppError.
func loginError(o auth.Outcome) error {
	switch o.Kind {
	case auth.OutcomeLocked:
		return apperrors.WithFields(
			apperrors.WithMessage(apperrors.ErrAccountLocked, o.Message()),
			map[string]any{"waitMinutes": o.MinutesLeft},
		)
	case auth.OutcomeJustLocked:
		return apperrors.WithFields(
			apperrors.WithMessage(apperrors.ErrAccountLocked, o.Message()),
			map[string]any{"waitMinutes": o.LockoutMinutes},
		)
	default:
		return apperrors.WithMessage(apperrors.ErrInvalidCredentials, o.Message())
	}
}

// VerifyEmail consumes a verification token and marks the email verified.
func (s *authService) VerifyEmail(ctx context.Context, token string) error {
	user, err := s.consume(ctx, token, auth.TokenVerification)
	if err != nil {
		return tokenError(err, msgInvalidVerifyLink, msgExpiredVerifyLink)
	}

	changes := merge(auth.ClearChanges(auth.TokenVerification), auth.Changes{"email_verified": true})
	if err := s.Users.Persist(ctx, user.ID, changes); err != nil {
		return storageError(err)
	}
	metrics.RecordTokenConsumed(string(auth.TokenVerification), "ok")
	logger.Get().Infow("email verified", "user_id", user.ID)
	return nil
}

// ResendVerification issues a fresh verification token, subject to the
// resend cooldown, and mails it. Unknown addresses get the generic message.
func (s *authService) ResendVerification(ctx context.Context, email string) (string, error) {
	email = repository.NormalizeEmail(email)
	if email == "" {
		return "", apperrors.WithMessage(apperrors.ErrInvalidInput, msgEmailRequired)
	}

	user, err := s.Users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return MsgVerificationMaybe, nil
		}
		return "", storageError(err)
	}

	if user.EmailVerified {
		return "", apperrors.ErrEmailAlreadyVerified
	}

	now := s.Now()
	if ok, wait := s.Tokens.CanResendVerification(user.VerificationSentAt, now); !ok {
		metrics.RecordResendRejected(string(auth.TokenVerification))
		return "", rateLimited(
			fmt.Sprintf("Please wait %d minutes before requesting another verification email", wait), wait)
	}

	token, err := s.Tokens.IssueVerification(now)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := s.Users.Persist(ctx, user.ID, token.Changes); err != nil {
		return "", storageError(err)
	}
	metrics.RecordTokenIssued(string(auth.TokenVerification))

	// The token stays valid when delivery fails; the user may resend after the cooldown.
	if err := s.Mailer.SendVerification(ctx, user.EmailAddress(), user.Username, token.Value); err != nil {
		return "", apperrors.WithMessage(apperrors.Wrap(apperrors.ErrEmailDelivery, err), msgVerificationFailed)
	}
	return MsgVerificationSent, nil
}

// ForgotPassword mails a reset link to verified addresses. It reports
// success for unknown and unverified addresses alike.
func (s *authService) ForgotPassword(ctx context.Context, email string) error {
	email = repository.NormalizeEmail(email)
	if email == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, msgEmailRequired)
	}

	user, err := s.Users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return storageError(err)
	}
	if !user.EmailVerified {
		logger.Get().Infow("password reset requested for unverified email", "user_id", user.ID)
		return nil
	}

	now := s.Now()
	if ok, wait := s.Tokens.CanResendReset(user.ResetTokenExpires, now); !ok {
		metrics.RecordResendRejected(string(auth.TokenReset))
		return rateLimited(
			fmt.Sprintf("Please wait %d %s before requesting another reset email.", wait, pluralMinutes(wait)), wait)
	}

	token, err := s.Tokens.IssueReset(now)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := s.Users.Persist(ctx, user.ID, token.Changes); err != nil {
		return storageError(err)
	}
	metrics.RecordTokenIssued(string(auth.TokenReset))

	if err := s.Mailer.SendPasswordReset(ctx, user.EmailAddress(), user.Username, token.Value); err != nil {
		logger.Get().Warnw("password reset email not delivered", "user_id", user.ID, "error", err)
	}
	return nil
}

// ResetPassword consumes a reset token and stores the new password. The
// lockout is cleared and every existing session is ended.
func (s *authService) ResetPassword(ctx context.Context, token, newPassword string) (*models.User, error) {
	if token == "" || newPassword == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, msgResetRequired)
	}
	if err := checkPassword(newPassword, msgPasswordLength); err != nil {
		return nil, err
	}

	user, err := s.consume(ctx, token, auth.TokenReset)
	if err != nil {
		return nil, tokenError(err, msgInvalidResetLink, msgExpiredResetLink)
	}

	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	changes := merge(auth.ClearChanges(auth.TokenReset), clearLockout(), auth.Changes{"password_hash": hash})
	if err := s.Users.Persist(ctx, user.ID, changes); err != nil {
		return nil, storageError(err)
	}
	metrics.RecordTokenConsumed(string(auth.TokenReset), "ok")
	s.revokeSessions(ctx, user.ID)

	logger.Get().Infow("password reset", "user_id", user.ID)
	return user, nil
}

// ValidateResetToken reports whether a reset token can still be used.
func (s *authService) ValidateResetToken(ctx context.Context, token string) error {
	if _, err := s.find(ctx, token, auth.TokenReset); err != nil {
		return tokenError(err, MsgResetLinkInvalid, MsgResetLinkExpired)
	}
	return nil
}

// consume looks up the holder of token and checks its expiry, recording
// failures. The caller clears the token columns.
func (s *authService) consume(ctx context.Context, token string, kind auth.TokenKind) (*models.User, error) {
	user, err := s.find(ctx, token, kind)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvalidToken):
			metrics.RecordTokenConsumed(string(kind), "invalid")
		case errors.Is(err, apperrors.ErrTokenExpired):
			metrics.RecordTokenConsumed(string(kind), "expired")
		}
		return nil, err
	}
	return user, nil
}

func (s *authService) find(ctx context.Context, token string, kind auth.TokenKind) (*models.User, error) {
	if token == "" {
		return nil, apperrors.ErrInvalidToken
	}

	user, err := s.Users.FindByToken(ctx, token, kind)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrInvalidToken
		}
		return nil, storageError(err)
	}

	if auth.Expired(tokenExpiry(user, kind), s.Now()) {
		return nil, apperrors.ErrTokenExpired
	}
	return user, nil
}

func tokenExpiry(u *models.User, kind auth.TokenKind) *time.Time {
	if kind == auth.TokenReset {
		return u.ResetTokenExpires
	}
	return u.VerificationTokenExpires
}

// tokenError replaces the message of token failures; other errors pass through.
func tokenError(err error, invalid, expired string) error {
	switch {
	case errors.Is(err, apperrors.ErrInvalidToken):
		return apperrors.WithMessage(apperrors.ErrInvalidToken, invalid)
	case errors.Is(err, apperrors.ErrTokenExpired):
		return apperrors.WithMessage(apperrors.ErrTokenExpired, expired)
	}
	return err
}

func rateLimited(message string, waitMinutes int) error {
	return apperrors.WithFields(
		apperrors.WithMessage(apperrors.ErrRateLimited, message),
		map[string]any{"waitMinutes": waitMinutes},
	)
}

func checkPassword(password, tooShort string) error {
	if len(password) < validator.MinPasswordLength {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, tooShort)
	}
	if len(password) > validator.MaxPasswordLength {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, msgPasswordTooLong)
	}
	return nil
}

func pluralMinutes(n int) string {
	if n == 1 {
		return "minute"
	}
	return "minutes"
}
