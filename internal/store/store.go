package store

import (
	"context"
	"errors"
	"strings"

	"github.com/authgate/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// The services depend on these interfaces only; gorm stays behind them.
// Lookups return (nil, nil) when the record is absent — a miss is a normal
// result, not an error. Mutations on missing rows return ErrNotFound.

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

type UserStore interface {
	Insert(ctx context.Context, user *models.User) error
	ByUsername(ctx context.Context, username string) (*models.User, error)
	ByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	All(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, id uuid.UUID, username, rank string) error
	UpdatePassword(ctx context.Context, id uuid.UUID, digest string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type SessionStore interface {
	Insert(ctx context.Context, session *models.Session) error
	BySecret(ctx context.Context, secret string) (*models.Session, error)
	Invalidate(ctx context.Context, id uuid.UUID) error
	InvalidateByUserAndIP(ctx context.Context, userID uuid.UUID, ip string) error
}

type TotpStore interface {
	Insert(ctx context.Context, cfg *models.TotpConfig) error
	ByUser(ctx context.Context, userID uuid.UUID) (*models.TotpConfig, error)
	SetEnabled(ctx context.Context, userID uuid.UUID) error
	Delete(ctx context.Context, userID uuid.UUID) error
	ReplaceBackupCodes(ctx context.Context, userID uuid.UUID, codesJSON string) error

	// ConsumeBackupCode atomically removes code from the user's batch and
	// reports whether it was present. Two concurrent calls with the same code
	// see exactly one true.
	ConsumeBackupCode(ctx context.Context, userID uuid.UUID, code string) (bool, error)
}

type SiteStore interface {
	Insert(ctx context.Context, subdomain string) (*models.Site, error)
	BySubdomain(ctx context.Context, subdomain string) (*models.Site, error)
	ByID(ctx context.Context, id uuid.UUID) (*models.Site, error)
	All(ctx context.Context) ([]models.Site, error)
	Delete(ctx context.Context, id uuid.UUID) error
	RenameSubdomain(ctx context.Context, id uuid.UUID, subdomain string) error
	AddRank(ctx context.Context, siteID uuid.UUID, rank string) error
	RemoveRank(ctx context.Context, siteID uuid.UUID, rank string) error
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}
