package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/authgate/backend/internal/models"
	"github.com/authgate/backend/internal/store"
	"github.com/google/uuid"
)

// 128 bits of entropy, hex-encoded to 32 characters.
const sessionSecretBytes = 16

// SessionService issues, resolves and invalidates opaque session tokens.
type SessionService struct {
	Sessions store.SessionStore
	TTL      time.Duration
}

func NewSessionService(sessions store.SessionStore, ttl time.Duration) *SessionService {
	return &SessionService{Sessions: sessions, TTL: ttl}
}

// Create mints a session with a fresh random secret. A secret colliding with
// any stored token is regenerated, never reused; the unique index on the
// secret column closes the race between the lookup and the insert.
func (s *SessionService) Create(ctx context.Context, user *models.User, ip *string) (*models.Session, error) {
	for {
		secret, err := generateSessionSecret()
		if err != nil {
			return nil, err
		}

		existing, err := s.Sessions.BySecret(ctx, secret)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			continue
		}

		session := &models.Session{
			UserID:    user.ID,
			Secret:    secret,
			ExpiresAt: time.Now().Add(s.TTL),
			IP:        ip,
		}
		err = s.Sessions.Insert(ctx, session)
		if errors.Is(err, store.ErrDuplicate) {
			continue
		}
		if err != nil {
			return nil, err
		}

		session.User = *user
		return session, nil
	}
}

// Resolve looks a session up by its secret. An unknown secret is a normal
// (nil, nil) miss, not an error; callers must still check IsValid.
func (s *SessionService) Resolve(ctx context.Context, secret string) (*models.Session, error) {
	if secret == "" {
		return nil, nil
	}
	return s.Sessions.BySecret(ctx, secret)
}

// Invalidate marks the session dead. Idempotent: invalidating twice is a no-op.
func (s *SessionService) Invalidate(ctx context.Context, session *models.Session) error {
	if err := s.Sessions.Invalidate(ctx, session.ID); err != nil {
		return err
	}
	session.Invalidated = true
	return nil
}

// InvalidateAllForUserAndIP kills every session the user holds from the given
// origin, e.g. after a password change.
func (s *SessionService) InvalidateAllForUserAndIP(ctx context.Context, userID uuid.UUID, ip string) error {
	return s.Sessions.InvalidateByUserAndIP(ctx, userID, ip)
}

func generateSessionSecret() (string, error) {
	buf := make([]byte, sessionSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
