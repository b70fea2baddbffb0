package services

import (
	"context"
	"testing"
	"time"

	"tarotjournal/internal/testutil"
)

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("valid", func(t *testing.T) {
		env := newTestEnv(t)
		svc := NewAuthService(env.deps)

		user, err := svc.Register(ctx, "alice", "secret1", "Alice@Example.com")
		testutil.AssertNoError(t, err)

		if user.EmailVerified {
			t.Error("expected new user to be unverified")
		}
		if user.EmailAddress() != "alice@example.com" {
			t.Errorf("expected lowercased email, got %s", user.EmailAddress())
		}

		stored := testutil.ReloadUser(t, env.db, user.ID)
		if stored.VerificationToken == nil || len(*stored.VerificationToken) != 64 {
			t.Fatal("expected a 64 character verification token to be stored")
		}
		if !stored.VerificationTokenExpires.Equal(env.clock.now.Add(24 * time.Hour)) {
			t.Errorf("expected expiry 24h after registration, got %v", stored.VerificationTokenExpires)
		}
		if len(env.mailer.verifications) != 1 || env.mailer.verifications[0].Token != *stored.VerificationToken {
			t.Errorf("expected verification mail with the stored token, got %+v", env.mailer.verifications)
		}
	})

	t.Run("duplicate_email", func(t *testing.T) {
		env := newTestEnv(t)
		svc := NewAuthService(env.deps)
		testutil.CreateTestUser(t, env.db, testutil.WithEmail("taken@example.com"))

		_, err := svc.Register(ctx, "newname", "secret1", "TAKEN@example.com")
		testutil.AssertAppErrorMessage(t, err, "DUPLICATE_EMAIL", "Email already registered")
	})

	t.Run("duplicate_username", func(t *testing.T) {
		env := newTestEnv(t)
		svc := NewAuthService(env.deps)
		testutil.CreateTestUser(t, env.db, testutil.WithUsername("bob"))

		_, err := svc.Register(ctx, "bob", "secret1", "bob2@example.com")
		testutil.AssertAppErrorMessage(t, err, "DUPLICATE_USERNAME", "Username already exists")
	})

	t.Run("missing_fields", func(t *testing.T) {
		env := newTestEnv(t)
		svc := NewAuthService(env.deps)

		_, err := svc.Register(ctx, "alice", "", "a@b.com")
		testutil.AssertAppErrorMessage(t, err, "INVALID_INPUT", "Username, email, and password are required")
	})

	t.Run("invalid_email", func(t *testing.T) {
		env := newTestEnv(t)
		svc := NewAuthService(env.deps)

		_, err := svc.Register(ctx, "alice", "secret1", "not-an-email")
		testutil.AssertAppErrorMessage(t, err, "INVALID_INPUT", "Invalid email format")
	})

	t.Run("short_password", func(t *testing.T) {
		env := newTestEnv(t)
		svc := NewAuthService(env.deps)

		_, err := svc.Register(ctx, "alice", "12345", "a@b.com")
		testutil.AssertAppErrorMessage(t, err, "INVALID_INPUT", "Password must be at least 6 characters")
	})

	t.Run("mail_failure_keeps_account", func(t *testing.T) {
		env := newTestEnv(t)
		env.mailer.err = errSMTPDown
		svc := NewAuthService(env.deps)

		user, err := svc.Register(ctx, "alice", "secret1", "a@b.com")
		testutil.AssertNoError(t, err)

		stored := testutil.ReloadUser(t, env.db, user.ID)
		if stored.VerificationToken == nil {
			t.Error("expected verification token to survive the failed delivery")
		}
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		env := newTestEnv(t)
		svc := NewAuthService(env.deps)
		u := testutil.CreateTestUser(t, env.db)

		user, err := svc.Login(ctx, u.Username, testutil.TestPassword)
		testutil.AssertNoError(t, err)
		if user.ID != u.ID {
			t.Errorf("expected user %s, got %s", u.ID, user.ID)
		}

		stored := testutil.ReloadUser(t, env.db, u.ID)
		if stored.LastLoginAt == nil || !stored.LastLoginAt.Equal(env.clock.now) {
			t.Errorf("expected last login at %v, got %v", env.clock.now, stored.LastLoginAt)
		}
	})

	t.Run("unverified_user_may_log_in", func(t *testing.T) {
		env := newTestEnv(t)
		svc := NewAuthService(env.deps)
		u := testutil.CreateTestUser(t, env.db, testutil.Unverified())

		user, err := svc.Login(ctx, u.Username, testutil.TestPassword)
		testutil.AssertNoError(t, err)
		if user.EmailVerified {
			t.Error("expected the unverified flag to be returned")
		}
	})

	t.Run("unknown_user", func(t *testing.T) {
		env := newTestEnv(t)
		svc := NewAuthService(env.deps)

		_, err := svc.Login(ctx, "ghost", "whatever")
		testutil.AssertAppErrorMessage(t, err, "INVALID_CREDENTIALS", "Incorrect username or password.")
	})

	t.Run("remaining_attempts", func(t *testing.T) {
		env := newTestEnv(t)
		svc := NewAuthService(env.deps)
		u := testutil.CreateTestUser(t, env.db)

		want := []string{
			"Incorrect username or password. 4 attempts remaining.",
			"Incorrect username or password. 3 attempts remaining.",
			"Incorrect username or password. 2 attempts remaining.",
			"Incorrect username or password. 1 attempt remaining.",
		}
		for _, msg := range want {
			_, err := svc.Login(ctx, u.Username, "wrong")
			testutil.AssertAppErrorMessage(t, err, "INVALID_CREDENTIALS", msg)
		}
	})

	t.Run("locked_after_max_failures_even_with_correct_password", func(t *testing.T) {
		env := newTestEnv(t)
		svc := NewAuthService(env.deps)
		u := testutil.CreateTestUser(t, env.db)

		for i := 0; i < 5; i++ {
			_, _ = svc.Login(ctx, u.Username, "wrong")
		}

		compares := env.hasher.compares
		_, err := svc.Login(ctx, u.Username, testutil.TestPassword)
		testutil.AssertAppError(t, err, "ACCOUNT_LOCKED")
		if env.hasher.compares != compares {
			t.Error("locked account must be rejected without a password check")
		}
	})

	t.Run("expired_lockout_counts_from_zero", func(t *testing.T) {
		env := newTestEnv(t)
		svc := NewAuthService(env.deps)
		u := testutil.CreateTestUser(t, env.db)

		for i := 0; i < 5; i++ {
			_, _ = svc.Login(ctx, u.Username, "wrong")
		}
		env.clock.Advance(16 * time.Minute)

		_, err := svc.Login(ctx, u.Username, "wrong")
		testutil.AssertAppErrorMessage(t, err, "INVALID_CREDENTIALS",
			"Incorrect username or password. 4 attempts remaining.")

		stored := testutil.ReloadUser(t, env.db, u.ID)
		if stored.FailedLoginAttempts != 1 {
			t.Errorf("expected counter 1 after expired lockout, got %d", stored.FailedLoginAttempts)
		}
		if stored.AccountLockedUntil != nil {
			t.Error("expected lockout to be cleared")
		}
	})
}

func TestLogin_AliceScenario(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := NewAuthService(env.deps)
	alice := testutil.CreateTestUser(t, env.db, testutil.WithUsername("alice"))

	for i := 0; i < 4; i++ {
		_, err := svc.Login(ctx, "alice", "wrong")
		testutil.AssertAppError(t, err, "INVALID_CREDENTIALS")
	}

	_, err := svc.Login(ctx, "alice", "wrong")
	testutil.AssertAppErrorMessage(t, err, "ACCOUNT_LOCKED", "Too many failed attempts. Account locked for 15 minutes.")
	if got := waitMinutes(t, err); got != 15 {
		t.Errorf("expected waitMinutes 15, got %d", got)
	}

	env.clock.Advance(10 * time.Minute)
	_, err = svc.Login(ctx, "alice", testutil.TestPassword)
	testutil.AssertAppErrorMessage(t, err, "ACCOUNT_LOCKED", "Account temporarily locked. Try again in 5 minutes.")
	if got := waitMinutes(t, err); got != 5 {
		t.Errorf("expected waitMinutes 5, got %d", got)
	}

	env.clock.Advance(6 * time.Minute)
	_, err = svc.Login(ctx, "alice", testutil.TestPassword)
	testutil.AssertNoError(t, err)

	stored := testutil.ReloadUser(t, env.db, alice.ID)
	if stored.FailedLoginAttempts != 0 {
		t.Errorf("expected counter reset to 0, got %d", stored.FailedLoginAttempts)
	}
	if stored.LastFailedLogin != nil || stored.AccountLockedUntil != nil {
		t.Error("expected failure and lockout timestamps to be cleared")
	}
}

func TestVerifyEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("valid_then_reused", func(t *testing.T) {
		env := newTestEnv(t)
		svc := NewAuthService(env.deps)
		now := env.clock.now
		u := testutil.CreateTestUser(t, env.db, testutil.Unverified(),
			testutil.WithVerificationToken("verify-me", now, now.Add(24*time.Hour)))

		testutil.AssertNoError(t, svc.VerifyEmail(ctx, "verify-me"))

		stored := testutil.ReloadUser(t, env.db, u.ID)
		if !stored.EmailVerified {
			t.Error("expected email to be verified")
		}
		if stored.VerificationToken != nil || stored.VerificationTokenExpires != nil {
			t.Error("expected token columns to be cleared")
		}

		err := svc.VerifyEmail(ctx, "verify-me")
		testutil.AssertAppErrorMessage(t, err, "INVALID_TOKEN", "Invalid verification link")
	})

	t.Run("expired_is_not_invalid", func(t *testing.T) {
		env := newTestEnv(t)
		svc := NewAuthService(env.deps)
		now := env.clock.now
		testutil.CreateTestUser(t, env.db, testutil.Unverified(),
			testutil.WithVerificationToken("old", now.Add(-25*time.Hour), now.Add(-time.Hour)))

		err := svc.VerifyEmail(ctx, "old")
		testutil.AssertAppErrorMessage(t, err, "TOKEN_EXPIRED", "Verification link has expired. Please request a new one.")
	})

	t.Run("unknown", func(t *testing.T) {
		env := newTestEnv(t)
		svc := NewAuthService(env.deps)

		testutil.AssertAppError(t, svc.VerifyEmail(ctx, "nope"), "INVALID_TOKEN")
	})
}

func TestResendVerification(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown_email_gets_generic_message", func(t *testing.T) {
		env := newTestEnv(t)
		svc := NewAuthService(env.deps)

		msg, err := svc.ResendVerification(ctx, "nobody@example.com")
		testutil.AssertNoError(t, err)
		if msg != MsgVerificationMaybe {
			t.Errorf("unexpected message %q", msg)
		}
		if len(env.mailer.verifications) != 0 {
			t.Error("no email should be sent")
		}
	})

	t.Run("already_verified", func(t *testing.T) {
		env := newTestEnv(t)
		svc := NewAuthService(env.deps)
		u := testutil.CreateTestUser(t, env.db)

		_, err := svc.ResendVerification(ctx, u.EmailAddress())
		testutil.AssertAppError(t, err, "EMAIL_ALREADY_VERIFIED")
	})

	t.Run("cooldown_wait_minutes", func(t *testing.T) {
		env := newTestEnv(t)
		svc := NewAuthService(env.deps)
		now := env.clock.now
		u := testutil.CreateTestUser(t, env.db, testutil.Unverified(),
			testutil.WithVerificationToken("first", now, now.Add(24*time.Hour)))

		env.clock.Advance(150 * time.Second)
		_, err := svc.ResendVerification(ctx, u.EmailAddress())
		testutil.AssertAppErrorMessage(t, err, "RATE_LIMITED",
			"Please wait 3 minutes before requesting another verification email")
		if got := waitMinutes(t, err); got != 3 {
			t.Errorf("expected waitMinutes ceil(5-2.5)=3, got %d", got)
		}
	})

	t.Run("after_cooldown_replaces_token", func(t *testing.T) {
		env := newTestEnv(t)
		svc := NewAuthService(env.deps)
		now := env.clock.now
		u := testutil.CreateTestUser(t, env.db, testutil.Unverified(),
			testutil.WithVerificationToken("first", now, now.Add(24*time.Hour)))

		env.clock.Advance(5 * time.Minute)
		msg, err := svc.ResendVerification(ctx, u.EmailAddress())
		testutil.AssertNoError(t, err)
		if msg != MsgVerificationSent {
			t.Errorf("unexpected message %q", msg)
		}

		testutil.AssertAppError(t, svc.VerifyEmail(ctx, "first"), "INVALID_TOKEN")
		testutil.AssertNoError(t, svc.VerifyEmail(ctx, env.mailer.verifications[0].Token))
	})

	t.Run("delivery_failure_keeps_token", func(t *testing.T) {
		env := newTestEnv(t)
		env.mailer.err = errSMTPDown
		svc := NewAuthService(env.deps)
		u := testutil.CreateTestUser(t, env.db, testutil.Unverified())

		_, err := svc.ResendVerification(ctx, u.EmailAddress())
		testutil.AssertAppError(t, err, "EMAIL_DELIVERY_FAILED")

		stored := testutil.ReloadUser(t, env.db, u.ID)
		if stored.VerificationToken == nil || stored.VerificationSentAt == nil {
			t.Error("expected token to be persisted before the failed delivery")
		}
	})
}

func TestForgotPassword(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown_email", func(t *testing.T) {
		env := newTestEnv(t)
		svc := NewAuthService(env.deps)

		testutil.AssertNoError(t, svc.ForgotPassword(ctx, "nobody@example.com"))
		if len(env.mailer.resets) != 0 {
			t.Error("no email should be sent")
		}
	})

	t.Run("unverified_email_is_silently_ignored", func(t *testing.T) {
		env := newTestEnv(t)
		svc := NewAuthService(env.deps)

		user, err := svc.Register(ctx, "newbie", "secret1", "a@b.com")
		testutil.AssertNoError(t, err)

		testutil.AssertNoError(t, svc.ForgotPassword(ctx, "a@b.com"))

		stored := testutil.ReloadUser(t, env.db, user.ID)
		if stored.ResetToken != nil {
			t.Error("no reset token should be issued for an unverified email")
		}
		if len(env.mailer.resets) != 0 {
			t.Error("no reset email should be sent")
		}
	})

	t.Run("verified_email_gets_token", func(t *testing.T) {
		env := newTestEnv(t)
		svc := NewAuthService(env.deps)
		u := testutil.CreateTestUser(t, env.db)

		testutil.AssertNoError(t, svc.ForgotPassword(ctx, u.EmailAddress()))

		stored := testutil.ReloadUser(t, env.db, u.ID)
		if stored.ResetToken == nil {
			t.Fatal("expected reset token")
		}
		if !stored.ResetTokenExpires.Equal(env.clock.now.Add(time.Hour)) {
			t.Errorf("expected expiry 1h later, got %v", stored.ResetTokenExpires)
		}
		if len(env.mailer.resets) != 1 || env.mailer.resets[0].Token != *stored.ResetToken {
			t.Errorf("expected reset mail with stored token, got %+v", env.mailer.resets)
		}
	})

	t.Run("cooldown_derived_from_expiry", func(t *testing.T) {
		env := newTestEnv(t)
		svc := NewAuthService(env.deps)
		u := testutil.CreateTestUser(t, env.db)

		testutil.AssertNoError(t, svc.ForgotPassword(ctx, u.EmailAddress()))

		env.clock.Advance(4 * time.Minute)
		err := svc.ForgotPassword(ctx, u.EmailAddress())
		testutil.AssertAppErrorMessage(t, err, "RATE_LIMITED", "Please wait 1 minute before requesting another reset email.")
		if got := waitMinutes(t, err); got != 1 {
			t.Errorf("expected waitMinutes 1, got %d", got)
		}

		env.clock.Advance(time.Minute)
		testutil.AssertNoError(t, svc.ForgotPassword(ctx, u.EmailAddress()))
	})

	t.Run("delivery_failure_still_succeeds", func(t *testing.T) {
		env := newTestEnv(t)
		env.mailer.err = errSMTPDown
		svc := NewAuthService(env.deps)
		u := testutil.CreateTestUser(t, env.db)

		testutil.AssertNoError(t, svc.ForgotPassword(ctx, u.EmailAddress()))
		if testutil.ReloadUser(t, env.db, u.ID).ResetToken == nil {
			t.Error("expected reset token to stay persisted")
		}
	})
}

func TestResetPassword(t *testing.T) {
	ctx := context.Background()

	t.Run("success_is_single_use", func(t *testing.T) {
		env := newTestEnv(t)
		svc := NewAuthService(env.deps)
		now := env.clock.now
		locked := now.Add(10 * time.Minute)
		u := testutil.CreateTestUser(t, env.db, testutil.WithResetToken("reset-me", now.Add(time.Hour)))
		testutil.AssertNoError(t, env.deps.Users.Persist(ctx, u.ID, map[string]any{
			"failed_login_attempts": 5,
			"account_locked_until":  locked,
		}))

		_, err := svc.ResetPassword(ctx, "reset-me", "brand-new")
		testutil.AssertNoError(t, err)

		stored := testutil.ReloadUser(t, env.db, u.ID)
		if stored.ResetToken != nil || stored.ResetTokenExpires != nil {
			t.Error("expected reset token to be cleared")
		}
		if stored.FailedLoginAttempts != 0 || stored.AccountLockedUntil != nil {
			t.Error("expected lockout to be cleared")
		}
		if len(env.revoker.revoked) != 1 || env.revoker.revoked[0] != u.ID {
			t.Errorf("expected sessions of %s to be revoked, got %v", u.ID, env.revoker.revoked)
		}

		if _, err := svc.Login(ctx, u.Username, "brand-new"); err != nil {
			t.Errorf("expected login with the new password: %v", err)
		}

		_, err = svc.ResetPassword(ctx, "reset-me", "another1")
		testutil.AssertAppErrorMessage(t, err, "INVALID_TOKEN", "Invalid or expired reset link")
	})

	t.Run("expired", func(t *testing.T) {
		env := newTestEnv(t)
		svc := NewAuthService(env.deps)
		testutil.CreateTestUser(t, env.db, testutil.WithResetToken("stale", env.clock.now.Add(-time.Minute)))

		_, err := svc.ResetPassword(ctx, "stale", "brand-new")
		testutil.AssertAppErrorMessage(t, err, "TOKEN_EXPIRED", "Reset link has expired. Please request a new one.")
	})

	t.Run("validation_before_lookup", func(t *testing.T) {
		env := newTestEnv(t)
		svc := NewAuthService(env.deps)

		_, err := svc.ResetPassword(ctx, "", "brand-new")
		testutil.AssertAppErrorMessage(t, err, "INVALID_INPUT", "Token and new password are required")

		_, err = svc.ResetPassword(ctx, "whatever", "123")
		testutil.AssertAppErrorMessage(t, err, "INVALID_INPUT", "Password must be at least 6 characters")
	})
}

func TestValidateResetToken(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := NewAuthService(env.deps)
	now := env.clock.now
	testutil.CreateTestUser(t, env.db, testutil.WithResetToken("good", now.Add(time.Hour)))
	testutil.CreateTestUser(t, env.db, testutil.WithResetToken("bad", now.Add(-time.Hour)))

	testutil.AssertNoError(t, svc.ValidateResetToken(ctx, "good"))
	testutil.AssertAppErrorMessage(t, svc.ValidateResetToken(ctx, "bad"), "TOKEN_EXPIRED", MsgResetLinkExpired)
	testutil.AssertAppErrorMessage(t, svc.ValidateResetToken(ctx, "missing"), "INVALID_TOKEN", MsgResetLinkInvalid)
}

func TestDefaultClockIsUTC(t *testing.T) {
	deps := Deps{}.withDefaults()

	if loc := deps.Now().Location(); loc != time.UTC {
		t.Errorf("expected default clock in UTC, got %s", loc)
	}
}
