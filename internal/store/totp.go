package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/authgate/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type totpStore struct {
	db *gorm.DB
}

func NewTotpStore(db *gorm.DB) TotpStore {
	return &totpStore{db: db}
}

func (s *totpStore) Insert(ctx context.Context, cfg *models.TotpConfig) error {
	if err := s.db.WithContext(ctx).Create(cfg).Error; err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *totpStore) ByUser(ctx context.Context, userID uuid.UUID) (*models.TotpConfig, error) {
	var cfg models.TotpConfig
	err := s.db.WithContext(ctx).First(&cfg, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *totpStore) SetEnabled(ctx context.Context, userID uuid.UUID) error {
	result := s.db.WithContext(ctx).Model(&models.TotpConfig{}).
		Where("user_id = ?", userID).
		Update("enabled", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *totpStore) Delete(ctx context.Context, userID uuid.UUID) error {
	result := s.db.WithContext(ctx).Delete(&models.TotpConfig{}, "user_id = ?", userID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *totpStore) ReplaceBackupCodes(ctx context.Context, userID uuid.UUID, codesJSON string) error {
	result := s.db.WithContext(ctx).Model(&models.TotpConfig{}).
		Where("user_id = ?", userID).
		Update("backup_codes", codesJSON)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ConsumeBackupCode removes code from the stored batch with a compare-and-swap
// on the whole column: the update only lands if the batch is unchanged since
// the read. Losing the swap means a concurrent consumer rewrote the batch, so
// the read is repeated; if that consumer spent this same code the re-read no
// longer finds it and the call returns false.
func (s *totpStore) ConsumeBackupCode(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	for {
		var cfg models.TotpConfig
		err := s.db.WithContext(ctx).First(&cfg, "user_id = ?", userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}

		codes, err := cfg.BackupCodeList()
		if err != nil {
			return false, err
		}

		match := -1
		for i, candidate := range codes {
			if candidate == code {
				match = i
				break
			}
		}
		if match == -1 {
			return false, nil
		}

		remaining := append(codes[:match:match], codes[match+1:]...)
		encoded, err := json.Marshal(remaining)
		if err != nil {
			return false, err
		}

		result := s.db.WithContext(ctx).Model(&models.TotpConfig{}).
			Where("user_id = ? AND backup_codes = ?", userID, cfg.BackupCodes).
			Update("backup_codes", string(encoded))
		if result.Error != nil {
			return false, result.Error
		}
		if result.RowsAffected == 1 {
			return true, nil
		}
	}
}
