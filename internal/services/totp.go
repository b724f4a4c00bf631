package services

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"encoding/hex"
	"encoding/json"
	"errors"

	"github.com/authgate/backend/internal/models"
	"github.com/authgate/backend/internal/store"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
)

const backupCodeCount = 6

// SetupResult is everything the user is shown exactly once when starting
// second-factor enrollment.
type SetupResult struct {
	Secret          string
	ProvisioningURL string
	BackupCodes     []string
}

// TotpService drives the per-user second-factor state machine:
// no record -> pending -> enabled, with disable deleting the record outright.
type TotpService struct {
	Totp   store.TotpStore
	Issuer string
}

func NewTotpService(totpStore store.TotpStore, issuer string) *TotpService {
	return &TotpService{Totp: totpStore, Issuer: issuer}
}

// Config returns the user's second-factor record, nil when none exists.
func (s *TotpService) Config(ctx context.Context, userID uuid.UUID) (*models.TotpConfig, error) {
	return s.Totp.ByUser(ctx, userID)
}

// Setup starts enrollment. An already-enabled record fails; a pending record
// is returned as-is so an abandoned setup resumes with the same secret and
// backup codes instead of re-randomizing under the user.
func (s *TotpService) Setup(ctx context.Context, user *models.User) (*SetupResult, error) {
	existing, err := s.Totp.ByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Enabled {
			return nil, ErrTotpAlreadyEnabled
		}
		return s.resultFor(existing, user)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: user.Username,
	})
	if err != nil {
		return nil, err
	}

	codes, err := generateBackupCodes(backupCodeCount)
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(codes)
	if err != nil {
		return nil, err
	}

	cfg := &models.TotpConfig{
		UserID:      user.ID,
		Secret:      key.Secret(),
		BackupCodes: string(encoded),
	}
	err = s.Totp.Insert(ctx, cfg)
	if errors.Is(err, store.ErrDuplicate) {
		// A concurrent setup call won the insert; resume its record.
		winner, readErr := s.Totp.ByUser(ctx, user.ID)
		if readErr != nil {
			return nil, readErr
		}
		if winner == nil {
			return nil, err
		}
		if winner.Enabled {
			return nil, ErrTotpAlreadyEnabled
		}
		return s.resultFor(winner, user)
	}
	if err != nil {
		return nil, err
	}

	return &SetupResult{
		Secret:          key.Secret(),
		ProvisioningURL: key.URL(),
		BackupCodes:     codes,
	}, nil
}

// Confirm proves possession of the secret during setup and flips the record
// to enabled. A failed code leaves the record pending.
func (s *TotpService) Confirm(ctx context.Context, user *models.User, code string) error {
	cfg, err := s.Totp.ByUser(ctx, user.ID)
	if err != nil {
		return err
	}
	if cfg == nil {
		return ErrTotpNotConfigured
	}

	ok, err := s.VerifyCode(ctx, cfg, code)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCode
	}

	if cfg.Enabled {
		return nil
	}
	return s.Totp.SetEnabled(ctx, user.ID)
}

// VerifyCode checks code against the backup batch first, consuming it on a
// match, and only then against the time-based algorithm. A string colliding
// with both is treated as a backup code and spent, the conservative choice.
func (s *TotpService) VerifyCode(ctx context.Context, cfg *models.TotpConfig, code string) (bool, error) {
	used, err := s.Totp.ConsumeBackupCode(ctx, cfg.UserID, code)
	if err != nil {
		return false, err
	}
	if used {
		return true, nil
	}
	return totp.Validate(code, cfg.Secret), nil
}

// Disable deletes the whole record: secret and any remaining backup codes go
// together, never partially.
func (s *TotpService) Disable(ctx context.Context, user *models.User) error {
	err := s.Totp.Delete(ctx, user.ID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrTotpNotConfigured
	}
	return err
}

// resultFor rebuilds the setup response from a stored pending record.
func (s *TotpService) resultFor(cfg *models.TotpConfig, user *models.User) (*SetupResult, error) {
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(cfg.Secret)
	if err != nil {
		return nil, err
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: user.Username,
		Secret:      raw,
	})
	if err != nil {
		return nil, err
	}
	codes, err := cfg.BackupCodeList()
	if err != nil {
		return nil, err
	}
	return &SetupResult{
		Secret:          cfg.Secret,
		ProvisioningURL: key.URL(),
		BackupCodes:     codes,
	}, nil
}

func generateBackupCodes(count int) ([]string, error) {
	codes := make([]string, 0, count)
	for i := 0; i < count; i++ {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			return nil, err
		}
		codes = append(codes, hex.EncodeToString(buf))
	}
	return codes, nil
}
