// Package session maps an authenticated user to a server-side session record.
// The browser holds an HS256-signed cookie whose jti is a random secret; the
// database holds only the secret's SHA-256, so sessions can be revoked.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"tarotjournal/internal/logger"
	"tarotjournal/internal/models"
	"tarotjournal/internal/repository"
)

// CookieName is the session cookie.
const CookieName = "tarot_session"

const (
	issuer        = "tarot-journal"
	touchInterval = 5 * time.Minute
)

// ErrNoSession means the cookie is missing, forged, expired, revoked, or
// belongs to a deleted user.
var ErrNoSession = errors.New("no valid session")

// Meta describes the client that opened a session.
type Meta struct {
	UserAgent string
	IPAddress string
}

// Config configures a Manager.
type Config struct {
	Secret string
	TTL    time.Duration
	// Secure marks cookies Secure and SameSite=None, for cross-site production deployments.
	Secure bool
}

type claims struct {
	jwt.RegisteredClaims
}

// Manager issues, resolves and revokes sessions.
type Manager struct {
	sessions repository.SessionStore
	users    repository.UserStore
	key      []byte
	ttl      time.Duration
	secure   bool
	now      func() time.Time
}

// NewManager builds a Manager over the given stores.
func NewManager(sessions repository.SessionStore, users repository.UserStore, cfg Config) *Manager {
	return &Manager{
		sessions: sessions,
		users:    users,
		key:      []byte(cfg.Secret),
		ttl:      cfg.TTL,
		secure:   cfg.Secure,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// Issue opens a session for user and returns the signed cookie value and its expiry.
func (m *Manager) Issue(ctx context.Context, user *models.User, meta Meta) (string, time.Time, error) {
	secret, err := randomSecret()
	if err != nil {
		return "", time.Time{}, err
	}

	now := m.now()
	expires := now.Add(m.ttl)
	record := &models.Session{
		UserID:     user.ID,
		TokenHash:  HashToken(secret),
		ExpiresAt:  expires,
		LastSeenAt: now,
		UserAgent:  truncate(meta.UserAgent, 255),
		IPAddress:  truncate(meta.IPAddress, 64),
	}
	if err := m.sessions.Create(ctx, record); err != nil {
		return "", time.Time{}, err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{RegisteredClaims: jwt.RegisteredClaims{
		ID:        secret,
		Subject:   user.ID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}})
	signed, err := token.SignedString(m.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session cookie: %w", err)
	}
	return signed, expires, nil
}

// Resolve returns the user behind a cookie value.
func (m *Manager) Resolve(ctx context.Context, cookie string) (*models.User, error) {
	c, err := m.parse(cookie)
	if err != nil {
		return nil, ErrNoSession
	}

	record, err := m.sessions.FindByTokenHash(ctx, HashToken(c.ID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoSession
		}
		return nil, err
	}

	now := m.now()
	if !record.ExpiresAt.After(now) || record.UserID != c.Subject {
		return nil, ErrNoSession
	}

	user, err := m.users.FindByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.Get().Infow("session found for deleted user", "user_id", record.UserID)
			_ = m.sessions.Delete(ctx, record.TokenHash)
			return nil, ErrNoSession
		}
		return nil, err
	}

	if now.Sub(record.LastSeenAt) > touchInterval {
		if err := m.sessions.Touch(ctx, record.ID, now); err != nil {
			logger.Get().Warnw("failed to touch session", "error", err, "session_id", record.ID)
		}
	}
	return user, nil
}

// Revoke deletes the session behind a cookie value. Unknown cookies are ignored.
func (m *Manager) Revoke(ctx context.Context, cookie string) error {
	c, err := m.parse(cookie)
	if err != nil {
		return nil
	}
	return m.sessions.Delete(ctx, HashToken(c.ID))
}

// RevokeUser deletes every session of a user.
func (m *Manager) RevokeUser(ctx context.Context, userID string) (int64, error) {
	return m.sessions.DeleteForUser(ctx, userID)
}

// PurgeExpired deletes sessions past their expiry.
func (m *Manager) PurgeExpired(ctx context.Context) (int64, error) {
	return m.sessions.DeleteExpired(ctx, m.now())
}

// RunPurger calls PurgeExpired every interval until ctx is done.
func (m *Manager) RunPurger(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.PurgeExpired(ctx)
			if err != nil {
				logger.Get().Errorw("failed to purge expired sessions", "error", err)
				continue
			}
			if n > 0 {
				logger.Get().Infow("purged expired sessions", "count", n)
			}
		}
	}
}

// SetCookie writes the session cookie.
func (m *Manager) SetCookie(c *gin.Context, value string, expires time.Time) {
	m.writeCookie(c, value, int(expires.Sub(m.now()).Seconds()))
}

// ClearCookie expires the session cookie in the browser.
func (m *Manager) ClearCookie(c *gin.Context) {
	m.writeCookie(c, "", -1)
}

func (m *Manager) writeCookie(c *gin.Context, value string, maxAge int) {
	if m.secure {
		c.SetSameSite(http.SameSiteNoneMode)
	} else {
		c.SetSameSite(http.SameSiteLaxMode)
	}
	c.SetCookie(CookieName, value, maxAge, "/", "", m.secure, true)
}

func (m *Manager) parse(cookie string) (*claims, error) {
	if cookie == "" {
		return nil, ErrNoSession
	}
	c := &claims{}
	token, err := jwt.ParseWithClaims(cookie, c, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.key, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(m.now))
	if err != nil || !token.Valid || c.ID == "" {
		return nil, ErrNoSession
	}
	return c, nil
}

// HashToken returns the SHA-256 hex digest of a token string.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
