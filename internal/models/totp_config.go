package models

import (
	"encoding/json"

	"github.com/google/uuid"
)

// TotpConfig is a user's second-factor state. A row with Enabled == false is a
// pending setup: the user has been shown the secret but has not yet proven
// possession with a valid code.
//
// BackupCodes is a JSON array of plaintext codes. They cannot be hashed the
// way passwords are: resuming an unconfirmed setup must hand back the same
// batch it produced the first time.
type TotpConfig struct {
	BaseModel
	UserID      uuid.UUID `json:"userID" gorm:"type:uuid;uniqueIndex;not null"`
	User        User      `json:"-" gorm:"foreignKey:UserID"`
	Secret      string    `json:"-" gorm:"type:text;not null"`
	BackupCodes string    `json:"-" gorm:"type:text;not null"`
	Enabled     bool      `json:"enabled" gorm:"not null;default:false"`
}

// BackupCodeList decodes the stored JSON batch.
func (t *TotpConfig) BackupCodeList() ([]string, error) {
	var codes []string
	if err := json.Unmarshal([]byte(t.BackupCodes), &codes); err != nil {
		return nil, err
	}
	return codes, nil
}
