package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"time"
)

// Token lifetimes and resend cooldowns.
const (
	DefaultVerificationTTL = 24 * time.Hour
	DefaultResetTTL        = 1 * time.Hour
	DefaultResendCooldown  = 5 * time.Minute

	tokenBytes = 32
)

// TokenKind selects which token column a lookup matches.
type TokenKind string

const (
	TokenVerification TokenKind = "verification"
	TokenReset        TokenKind = "reset"
)

// Column returns the users column holding tokens of this kind.
func (k TokenKind) Column() string {
	if k == TokenReset {
		return "reset_token"
	}
	return "verification_token"
}

// IssuedToken is a freshly generated single-use token.
type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
	SentAt    time.Time
	Changes   Changes
}

// TokenIssuer generates opaque tokens and owns their expiry and resend rules.
type TokenIssuer struct {
	VerificationTTL time.Duration
	ResetTTL        time.Duration
	ResendCooldown  time.Duration
	ResetCooldown   time.Duration

	random io.Reader
}

// NewTokenIssuer returns an issuer with the default lifetimes.
func NewTokenIssuer() *TokenIssuer {
	return &TokenIssuer{
		VerificationTTL: DefaultVerificationTTL,
		ResetTTL:        DefaultResetTTL,
		ResendCooldown:  DefaultResendCooldown,
		ResetCooldown:   DefaultResendCooldown,
		random:          rand.Reader,
	}
}

// Generate returns 256 bits of randomness, hex encoded.
func (t *TokenIssuer) Generate() (string, error) {
	buf := make([]byte, tokenBytes)
	r := t.random
	if r == nil {
		r = rand.Reader
	}
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// IssueVerification creates a verification token valid for VerificationTTL.
// Persisting its changes overwrites any earlier token.
func (t *TokenIssuer) IssueVerification(now time.Time) (IssuedToken, error) {
	value, err := t.Generate()
	if err != nil {
		return IssuedToken{}, err
	}
	expires := now.Add(t.VerificationTTL)
	return IssuedToken{
		Value:     value,
		ExpiresAt: expires,
		SentAt:    now,
		Changes: Changes{
			"verification_token":         value,
			"verification_token_expires": expires,
			"verification_sent_at":       now,
		},
	}, nil
}

// IssueReset creates a password reset token valid for ResetTTL. The send
// time is not stored; ResetSentAt recovers it from the expiry.
func (t *TokenIssuer) IssueReset(now time.Time) (IssuedToken, error) {
	value, err := t.Generate()
	if err != nil {
		return IssuedToken{}, err
	}
	expires := now.Add(t.ResetTTL)
	return IssuedToken{
		Value:     value,
		ExpiresAt: expires,
		SentAt:    now,
		Changes: Changes{
			"reset_token":         value,
			"reset_token_expires": expires,
		},
	}, nil
}

// ResetSentAt derives when a reset token was sent from its expiry.
func (t *TokenIssuer) ResetSentAt(expires *time.Time) *time.Time {
	if expires == nil {
		return nil
	}
	sent := expires.Add(-t.ResetTTL)
	return &sent
}

// CanResendVerification applies the verification cooldown.
func (t *TokenIssuer) CanResendVerification(sentAt *time.Time, now time.Time) (bool, int) {
	return CanResend(sentAt, now, t.ResendCooldown)
}

// CanResendReset applies the reset cooldown using the derived send time.
func (t *TokenIssuer) CanResendReset(resetExpires *time.Time, now time.Time) (bool, int) {
	return CanResend(t.ResetSentAt(resetExpires), now, t.ResetCooldown)
}

// CanResend reports whether cooldown has elapsed since sentAt. When it has
// not, waitMinutes is the remaining cooldown rounded up.
func CanResend(sentAt *time.Time, now time.Time, cooldown time.Duration) (ok bool, waitMinutes int) {
	if sentAt == nil {
		return true, 0
	}
	elapsed := now.Sub(*sentAt).Minutes()
	limit := cooldown.Minutes()
	if elapsed >= limit {
		return true, 0
	}
	return false, int(math.Ceil(limit - elapsed))
}

// Expired reports whether a token expiry has passed. A missing expiry counts as expired.
func Expired(expires *time.Time, now time.Time) bool {
	if expires == nil {
		return true
	}
	return now.After(*expires)
}

// ClearChanges nulls the token columns of kind, making the token single use.
func ClearChanges(kind TokenKind) Changes {
	if kind == TokenReset {
		return Changes{
			"reset_token":         nil,
			"reset_token_expires": nil,
		}
	}
	return Changes{
		"verification_token":         nil,
		"verification_token_expires": nil,
	}
}
