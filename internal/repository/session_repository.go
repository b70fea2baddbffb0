package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"tarotjournal/internal/models"
)

// SessionStore persists server-side session records.
type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error)
	Touch(ctx context.Context, id string, seenAt time.Time) error
	Delete(ctx context.Context, tokenHash string) error
	DeleteForUser(ctx context.Context, userID string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository returns a GORM-backed SessionStore.
func NewSessionRepository(db *gorm.DB) SessionStore {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, session *models.Session) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return &StorageError{Op: "create session", Err: err}
	}
	return nil
}

func (r *sessionRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	var session models.Session
	if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, &StorageError{Op: "find session", Err: err}
	}
	return &session, nil
}

func (r *sessionRepository) Touch(ctx context.Context, id string, seenAt time.Time) error {
	err := r.db.WithContext(ctx).Model(&models.Session{}).Where("id = ?", id).Update("last_seen_at", seenAt).Error
	if err != nil {
		return &StorageError{Op: "touch session", Err: err}
	}
	return nil
}

func (r *sessionRepository) Delete(ctx context.Context, tokenHash string) error {
	if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).Delete(&models.Session{}).Error; err != nil {
		return &StorageError{Op: "delete session", Err: err}
	}
	return nil
}

func (r *sessionRepository) DeleteForUser(ctx context.Context, userID string) (int64, error) {
	result := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Session{})
	if result.Error != nil {
		return 0, &StorageError{Op: "delete user sessions", Err: result.Error}
	}
	return result.RowsAffected, nil
}

func (r *sessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.Session{})
	if result.Error != nil {
		return 0, &StorageError{Op: "purge sessions", Err: result.Error}
	}
	return result.RowsAffected, nil
}
