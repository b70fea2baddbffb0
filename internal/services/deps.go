package services

import (
	"context"
	"errors"
	"time"

	"tarotjournal/internal/auth"
	apperrors "tarotjournal/internal/errors"
	"tarotjournal/internal/logger"
	"tarotjournal/internal/mailer"
	"tarotjournal/internal/models"
	"tarotjournal/internal/repository"
)

// Deps are the collaborators shared by the account services. Nil Guard,
// Tokens and Now fall back to the defaults.
type Deps struct {
	Users    repository.UserStore
	Sessions SessionRevoker
	Hasher   auth.Hasher
	Guard    *auth.LoginGuard
	Tokens   *auth.TokenIssuer
	Mailer   mailer.Sender
	Now      func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Guard == nil {
		d.Guard = auth.NewLoginGuard()
	}
	if d.Tokens == nil {
		d.Tokens = auth.NewTokenIssuer()
	}
	if d.Now == nil {
		d.Now = utcNow
	}
	return d
}

func utcNow() time.Time { return time.Now().UTC() }

// storageError turns a repository failure into an opaque internal error.
func storageError(err error) error {
	return apperrors.Wrap(apperrors.ErrInternalServer, err)
}

// findUser loads a user by ID, mapping a missing row to ErrUserNotFound.
func (d Deps) findUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := d.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, storageError(err)
	}
	return user, nil
}

// revokeSessions ends all sessions of userID. Failure is logged: the
// credential change it follows has already been stored.
func (d Deps) revokeSessions(ctx context.Context, userID string) {
	if d.Sessions == nil {
		return
	}
	n, err := d.Sessions.RevokeUser(ctx, userID)
	if err != nil {
		logger.Get().Errorw("failed to revoke sessions", "user_id", userID, "error", err)
		return
	}
	if n > 0 {
		logger.Get().Infow("revoked sessions", "user_id", userID, "count", n)
	}
}

// merge combines change sets; later sets win.
func merge(sets ...auth.Changes) auth.Changes {
	out := auth.Changes{}
	for _, set := range sets {
		for k, v := range set {
			out[k] = v
		}
	}
	return out
}

// clearLockout resets the login guard columns.
func clearLockout() auth.Changes {
	return auth.Changes{
		"failed_login_attempts": 0,
		"last_failed_login":     nil,
		"account_locked_until":  nil,
	}
}
