package testutil_test

import (
	"testing"
	"time"

	"tarotjournal/internal/errors"
	"tarotjournal/internal/testutil"
)

func TestSetupTestDB(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	var count int64
	for _, table := range []string{"users", "sessions", "audit_logs"} {
		if err := db.Table(table).Count(&count).Error; err != nil {
			t.Errorf("table %q should exist after migration: %v", table, err)
		}
	}
}

func TestSetupTestDB_isolated(t *testing.T) {
	first := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, first)
	second := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, second)

	testutil.CreateTestUser(t, first)

	var count int64
	second.Table("users").Count(&count)
	if count != 0 {
		t.Errorf("expected second database to be empty, found %d users", count)
	}
}

func TestFixtures(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	user := testutil.CreateTestUser(t, db)
	if user.ID == "" {
		t.Fatal("user should have an ID")
	}
	if !user.EmailVerified {
		t.Error("default fixture should be verified")
	}

	expires := time.Now().Add(time.Hour)
	other := testutil.CreateTestUser(t, db,
		testutil.WithUsername("morgana"),
		testutil.WithEmail("Morgana@Example.com"),
		testutil.Unverified(),
		testutil.Admin(),
		testutil.WithResetToken("abc", expires),
	)
	reloaded := testutil.ReloadUser(t, db, other.ID)
	if reloaded.Username != "morgana" || reloaded.EmailAddress() != "morgana@example.com" {
		t.Errorf("unexpected identity %q / %q", reloaded.Username, reloaded.EmailAddress())
	}
	if reloaded.EmailVerified || !reloaded.IsAdmin {
		t.Error("expected unverified admin")
	}
	if reloaded.ResetToken == nil || *reloaded.ResetToken != "abc" {
		t.Error("expected reset token to be stored")
	}
}

func TestAssertAppError(t *testing.T) {
	err := errors.WithMessage(errors.ErrUserNotFound, "custom message")
	testutil.AssertAppError(t, err, "USER_NOT_FOUND")
	testutil.AssertAppErrorMessage(t, err, "USER_NOT_FOUND", "custom message")
}

func TestAssertNoError(t *testing.T) {
	testutil.AssertNoError(t, nil)
}
