// Package repository is the credential store: persistence for users and
// their sessions behind small interfaces so services can be tested without
// a live database.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"tarotjournal/internal/auth"
	"tarotjournal/internal/models"
	"tarotjournal/internal/pagination"
)

// ErrNotFound is returned when no row matches a lookup.
var ErrNotFound = errors.New("record not found")

// StorageError wraps any failure of the underlying database.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }

// Unwrap returns the driver error.
func (e *StorageError) Unwrap() error { return e.Err }

// UserStore is the credential store contract.
type UserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByToken(ctx context.Context, token string, kind auth.TokenKind) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Persist(ctx context.Context, userID string, changes auth.Changes) error
	UsernameTaken(ctx context.Context, username, exceptID string) (bool, error)
	EmailTaken(ctx context.Context, email, exceptID string) (bool, error)
	List(ctx context.Context, page pagination.PageRequest) ([]models.User, int64, error)
	CountUnverified(ctx context.Context) (int64, error)
	Delete(ctx context.Context, userID string) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a GORM-backed UserStore.
func NewUserRepository(db *gorm.DB) UserStore {
	return &userRepository{db: db}
}

func (r *userRepository) first(ctx context.Context, op, query string, args ...any) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where(query, args...).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, &StorageError{Op: op, Err: err}
	}
	return &user, nil
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.first(ctx, "find user by id", "id = ?", id)
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.first(ctx, "find user by username", "username = ?", username)
}

// FindByEmail matches case-insensitively; emails are stored lowercased.
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "find user by email", "email = ?", NormalizeEmail(email))
}

// FindByToken matches the token column of kind exactly.
func (r *userRepository) FindByToken(ctx context.Context, token string, kind auth.TokenKind) (*models.User, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	return r.first(ctx, "find user by "+string(kind)+" token", kind.Column()+" = ?", token)
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return &StorageError{Op: "create user", Err: err}
	}
	return nil
}

// Persist writes only the given columns. Nil values become NULL.
func (r *userRepository) Persist(ctx context.Context, userID string, changes auth.Changes) error {
	if len(changes) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(map[string]any(changes))
	if result.Error != nil {
		return &StorageError{Op: "update user", Err: result.Error}
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepository) UsernameTaken(ctx context.Context, username, exceptID string) (bool, error) {
	return r.exists(ctx, "check username", "username = ? AND id <> ?", username, exceptID)
}

func (r *userRepository) EmailTaken(ctx context.Context, email, exceptID string) (bool, error) {
	return r.exists(ctx, "check email", "email = ? AND id <> ?", NormalizeEmail(email), exceptID)
}

func (r *userRepository) exists(ctx context.Context, op, query string, args ...any) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where(query, args...).Count(&count).Error; err != nil {
		return false, &StorageError{Op: op, Err: err}
	}
	return count > 0, nil
}

func (r *userRepository) List(ctx context.Context, page pagination.PageRequest) ([]models.User, int64, error) {
	// GORM statements are not reusable after Count, so each query starts fresh.
	query := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.User{})
		if page.Search != "" {
			like := "%" + strings.ToLower(page.Search) + "%"
			q = q.Where("LOWER(username) LIKE ? OR email LIKE ?", like, like)
		}
		return q
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, &StorageError{Op: "count users", Err: err}
	}

	var users []models.User
	if err := query().Scopes(pagination.Paginate(page)).Order("username").Find(&users).Error; err != nil {
		return nil, 0, &StorageError{Op: "list users", Err: err}
	}
	return users, total, nil
}

func (r *userRepository) CountUnverified(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("email_verified = ?", false).Count(&count).Error; err != nil {
		return 0, &StorageError{Op: "count unverified", Err: err}
	}
	return count, nil
}

// Delete removes the user and everything owned by it in one transaction.
func (r *userRepository) Delete(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.Session{}).Error; err != nil {
			return &StorageError{Op: "delete user sessions", Err: err}
		}
		result := tx.Where("id = ?", userID).Delete(&models.User{})
		if result.Error != nil {
			return &StorageError{Op: "delete user", Err: result.Error}
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// NormalizeEmail lowercases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
