package store

import (
	"context"
	"errors"

	"github.com/authgate/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type sessionStore struct {
	db *gorm.DB
}

func NewSessionStore(db *gorm.DB) SessionStore {
	return &sessionStore{db: db}
}

// Insert relies on the unique index on secret: a colliding secret surfaces as
// ErrDuplicate rather than silently reusing an existing token.
func (s *sessionStore) Insert(ctx context.Context, session *models.Session) error {
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *sessionStore) BySecret(ctx context.Context, secret string) (*models.Session, error) {
	var session models.Session
	err := s.db.WithContext(ctx).Preload("User").First(&session, "secret = ?", secret).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *sessionStore) Invalidate(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ?", id).
		Update("invalidated", true).Error
}

func (s *sessionStore) InvalidateByUserAndIP(ctx context.Context, userID uuid.UUID, ip string) error {
	return s.db.WithContext(ctx).Model(&models.Session{}).
		Where("user_id = ? AND ip = ?", userID, ip).
		Update("invalidated", true).Error
}
