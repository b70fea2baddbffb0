package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"tarotjournal/internal/auth"
	apperrors "tarotjournal/internal/errors"
	"tarotjournal/internal/repository"
	"tarotjournal/internal/testutil"
)

var errSMTPDown = errors.New("smtp: connection refused")

type sentMail struct {
	To       string
	Username string
	Token    string
}

// fakeMailer records every message instead of sending it.
type fakeMailer struct {
	mu            sync.Mutex
	verifications []sentMail
	resets        []sentMail
	adminVerified []sentMail
	err           error
}

func (m *fakeMailer) SendVerification(_ context.Context, to, username, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.verifications = append(m.verifications, sentMail{To: to, Username: username, Token: token})
	return nil
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, to, username, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.resets = append(m.resets, sentMail{To: to, Username: username, Token: token})
	return nil
}

func (m *fakeMailer) SendAdminVerified(_ context.Context, to, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.adminVerified = append(m.adminVerified, sentMail{To: to, Username: username})
	return nil
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// fakeRevoker records which users had their sessions ended.
type fakeRevoker struct {
	revoked []string
}

func (r *fakeRevoker) RevokeUser(_ context.Context, userID string) (int64, error) {
	r.revoked = append(r.revoked, userID)
	return 1, nil
}

// countingHasher counts Compare calls.
type countingHasher struct {
	auth.Hasher
	compares int
}

func (h *countingHasher) Compare(hash, password string) (bool, error) {
	h.compares++
	return h.Hasher.Compare(hash, password)
}

type testEnv struct {
	db      *gorm.DB
	deps    Deps
	mailer  *fakeMailer
	clock   *fakeClock
	revoker *fakeRevoker
	hasher  *countingHasher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	env := &testEnv{
		db:      db,
		mailer:  &fakeMailer{},
		clock:   &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		revoker: &fakeRevoker{},
		hasher:  &countingHasher{Hasher: auth.NewBcryptHasher(bcrypt.MinCost)},
	}
	env.deps = Deps{
		Users:    repository.NewUserRepository(db),
		Sessions: env.revoker,
		Hasher:   env.hasher,
		Mailer:   env.mailer,
		Now:      env.clock.Now,
	}
	return env
}

func waitMinutes(t *testing.T, err error) int {
	t.Helper()
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *AppError, got %T", err)
	}
	v, ok := appErr.Fields["waitMinutes"].(int)
	if !ok {
		t.Fatalf("expected waitMinutes field, got %v", appErr.Fields)
	}
	return v
}
