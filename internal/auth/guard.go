// Package auth holds the account-security state machines: the login guard
// that throttles password attempts, the issuer for email verification and
// password reset tokens, and the password hasher.
//
// Nothing here touches storage. Functions mutate the *models.User they are
// given and return the column changes the caller must persist.
package auth

import (
	"fmt"
	"math"
	"time"

	"tarotjournal/internal/models"
)

// Lockout defaults.
const (
	DefaultMaxFailedAttempts = 5
	DefaultLockoutDuration   = 15 * time.Minute
)

// Changes are column updates produced by a state transition.
type Changes map[string]any

// Gate is the result of checking a user before the password is compared.
type Gate int

const (
	// GateOpen means the password may be checked.
	GateOpen Gate = iota
	// GateLocked means the attempt must be rejected without checking the password.
	GateLocked
	// GateLockoutExpired means a past lockout has elapsed; the counter was reset
	// and the password may be checked.
	GateLockoutExpired
)

// OutcomeKind classifies a completed login attempt.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeIncorrect
	OutcomeLocked
	OutcomeJustLocked
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeIncorrect:
		return "incorrect"
	case OutcomeLocked:
		return "locked"
	case OutcomeJustLocked:
		return "just_locked"
	}
	return "unknown"
}

// Outcome describes a login attempt and the state it left behind.
type Outcome struct {
	Kind              OutcomeKind
	RemainingAttempts int
	MinutesLeft       int
	LockoutMinutes    int
	Changes           Changes
}

// Message is the user-facing text for the outcome.
func (o Outcome) Message() string {
	switch o.Kind {
	case OutcomeIncorrect:
		return fmt.Sprintf("Incorrect username or password. %d %s remaining.",
			o.RemainingAttempts, plural(o.RemainingAttempts, "attempt"))
	case OutcomeJustLocked:
		return fmt.Sprintf("Too many failed attempts. Account locked for %d minutes.", o.LockoutMinutes)
	case OutcomeLocked:
		return fmt.Sprintf("Account temporarily locked. Try again in %d %s.",
			o.MinutesLeft, plural(o.MinutesLeft, "minute"))
	}
	return ""
}

// LoginGuard is the per-user lockout state machine. A user is Unlocked while
// FailedLoginAttempts < MaxFailedAttempts and Locked while AccountLockedUntil
// is in the future.
type LoginGuard struct {
	MaxFailedAttempts int
	LockoutDuration   time.Duration
}

// NewLoginGuard returns a guard with the default limits.
func NewLoginGuard() *LoginGuard {
	return &LoginGuard{
		MaxFailedAttempts: DefaultMaxFailedAttempts,
		LockoutDuration:   DefaultLockoutDuration,
	}
}

// Check decides whether the password may be evaluated at now. A locked user
// yields GateLocked with the lockout outcome. An elapsed lockout is cleared on
// u and returned as changes to persist before the password is checked.
func (g *LoginGuard) Check(u *models.User, now time.Time) (Gate, Outcome) {
	if u.AccountLockedUntil == nil {
		return GateOpen, Outcome{}
	}

	if u.AccountLockedUntil.After(now) {
		return GateLocked, Outcome{
			Kind:        OutcomeLocked,
			MinutesLeft: ceilMinutes(u.AccountLockedUntil.Sub(now)),
		}
	}

	u.FailedLoginAttempts = 0
	u.AccountLockedUntil = nil
	return GateLockoutExpired, Outcome{Changes: Changes{
		"failed_login_attempts": 0,
		"account_locked_until":  nil,
	}}
}

// Failure records a wrong password at now.
func (g *LoginGuard) Failure(u *models.User, now time.Time) Outcome {
	u.FailedLoginAttempts++
	failedAt := now
	u.LastFailedLogin = &failedAt

	changes := Changes{
		"failed_login_attempts": u.FailedLoginAttempts,
		"last_failed_login":     failedAt,
	}

	if u.FailedLoginAttempts >= g.MaxFailedAttempts {
		until := now.Add(g.LockoutDuration)
		u.AccountLockedUntil = &until
		changes["account_locked_until"] = until
		return Outcome{
			Kind:           OutcomeJustLocked,
			LockoutMinutes: int(g.LockoutDuration / time.Minute),
			Changes:        changes,
		}
	}

	return Outcome{
		Kind:              OutcomeIncorrect,
		RemainingAttempts: g.MaxFailedAttempts - u.FailedLoginAttempts,
		Changes:           changes,
	}
}

// Success records a correct password at now.
func (g *LoginGuard) Success(u *models.User, now time.Time) Outcome {
	loginAt := now
	u.FailedLoginAttempts = 0
	u.LastFailedLogin = nil
	u.AccountLockedUntil = nil
	u.LastLoginAt = &loginAt

	return Outcome{
		Kind: OutcomeSuccess,
		Changes: Changes{
			"failed_login_attempts": 0,
			"last_failed_login":     nil,
			"account_locked_until":  nil,
			"last_login_at":         loginAt,
		},
	}
}

// ceilMinutes rounds a positive duration up to whole minutes.
func ceilMinutes(d time.Duration) int {
	return int(math.Ceil(d.Minutes()))
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
