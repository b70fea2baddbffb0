package models

import "time"

// User is an account holder together with its login and email security state.
// Token and lockout columns are never serialized.
type User struct {
	Base
	Username      string  `gorm:"size:64;uniqueIndex;not null" json:"username"`
	Email         *string `gorm:"size:255;uniqueIndex" json:"email"`
	PasswordHash  string  `gorm:"not null" json:"-"`
	DisplayName   string  `gorm:"size:100;not null;default:''" json:"display_name"`
	IsAdmin       bool    `gorm:"not null;default:false" json:"is_admin"`
	EmailVerified bool    `gorm:"not null;default:false" json:"email_verified"`

	VerificationToken        *string    `gorm:"size:64;uniqueIndex" json:"-"`
	VerificationTokenExpires *time.Time `json:"-"`
	VerificationSentAt       *time.Time `json:"-"`
	ResetToken               *string    `gorm:"size:64;uniqueIndex" json:"-"`
	ResetTokenExpires        *time.Time `json:"-"`

	FailedLoginAttempts int        `gorm:"not null;default:0" json:"-"`
	LastFailedLogin     *time.Time `json:"-"`
	AccountLockedUntil  *time.Time `json:"-"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty"`
}

// EmailAddress returns the email or "" when none is on file.
func (u *User) EmailAddress() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}
