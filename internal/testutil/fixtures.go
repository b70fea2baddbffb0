package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"tarotjournal/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// TestPassword is the plaintext password of every fixture user.
const TestPassword = "password123"

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// UserOption customizes a fixture user before it is inserted.
type UserOption func(*models.User)

// WithUsername sets the username and display name.
func WithUsername(username string) UserOption {
	return func(u *models.User) {
		u.Username = username
		u.DisplayName = username
	}
}

// WithEmail sets the email address.
func WithEmail(email string) UserOption {
	return func(u *models.User) {
		e := strings.ToLower(email)
		u.Email = &e
	}
}

// Unverified marks the fixture's email as unverified.
func Unverified() UserOption {
	return func(u *models.User) { u.EmailVerified = false }
}

// Admin grants the admin flag.
func Admin() UserOption {
	return func(u *models.User) { u.IsAdmin = true }
}

// WithVerificationToken attaches a verification token expiring at expires.
func WithVerificationToken(token string, sentAt, expires time.Time) UserOption {
	return func(u *models.User) {
		u.VerificationToken = &token
		u.VerificationSentAt = &sentAt
		u.VerificationTokenExpires = &expires
	}
}

// WithResetToken attaches a reset token expiring at expires.
func WithResetToken(token string, expires time.Time) UserOption {
	return func(u *models.User) {
		u.ResetToken = &token
		u.ResetTokenExpires = &expires
	}
}

// CreateTestUser creates a verified user with a unique username and email.
func CreateTestUser(t *testing.T, db *gorm.DB, opts ...UserOption) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	n := nextID()
	email := fmt.Sprintf("user%d@test.com", n)
	user := &models.User{
		Username:      fmt.Sprintf("user%d", n),
		DisplayName:   fmt.Sprintf("user%d", n),
		Email:         &email,
		PasswordHash:  string(hash),
		EmailVerified: true,
	}
	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// ReloadUser fetches the current row for user.
func ReloadUser(t *testing.T, db *gorm.DB, id string) *models.User {
	t.Helper()

	var user models.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		t.Fatalf("failed to reload user %s: %v", id, err)
	}
	return &user
}
