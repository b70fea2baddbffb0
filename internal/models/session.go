package models

import "time"

// Session is the server-side record behind a session cookie. Only the
// SHA-256 of the cookie secret is stored.
type Session struct {
	Base
	UserID     string    `gorm:"type:varchar(36);not null;index" json:"user_id"`
	TokenHash  string    `gorm:"size:64;uniqueIndex;not null" json:"-"`
	ExpiresAt  time.Time `gorm:"not null;index" json:"expires_at"`
	LastSeenAt time.Time `gorm:"not null" json:"last_seen_at"`
	UserAgent  string    `gorm:"size:255;not null;default:''" json:"user_agent"`
	IPAddress  string    `gorm:"size:64;not null;default:''" json:"ip_address"`
}
