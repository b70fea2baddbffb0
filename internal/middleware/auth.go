package middleware

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "tarotjournal/internal/errors"
	"tarotjournal/internal/logger"
	"tarotjournal/internal/models"
	"tarotjournal/internal/session"
)

const userKey = "user"

// SessionResolver maps a session cookie to its user.
type SessionResolver interface {
	Resolve(ctx context.Context, cookie string) (*models.User, error)
}

// LoadSession resolves the session cookie, if any, and stores the user in
// the context. Requests without a valid session continue anonymously.
func LoadSession(sessions SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Cookie(session.CookieName)
		if err != nil || cookie == "" {
			c.Next()
			return
		}

		user, err := sessions.Resolve(c.Request.Context(), cookie)
		switch {
		case err == nil:
			c.Set(userKey, user)
		case errors.Is(err, session.ErrNoSession):
		default:
			logger.Get().Errorw("failed to resolve session", "error", err, "path", c.Request.URL.Path)
			_ = c.Error(apperrors.Wrap(apperrors.ErrInternalServer, err))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAuth aborts with 401 unless LoadSession found a user.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok {
			_ = c.Error(apperrors.ErrUnauthorized)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdmin aborts with 401 for anonymous requests and 403 for non-admins.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			_ = c.Error(apperrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !user.IsAdmin {
			_ = c.Error(apperrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUser returns the user resolved for this request.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}

// SetCurrentUser stores user as the authenticated user of the request.
func SetCurrentUser(c *gin.Context, user *models.User) {
	c.Set(userKey, user)
}
