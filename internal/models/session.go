package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is one authenticated browser context, identified by an opaque
// high-entropy secret handed to the client as a cookie value.
type Session struct {
	BaseModel
	UserID      uuid.UUID `json:"userID" gorm:"type:uuid;index;not null"`
	User        User      `json:"-" gorm:"foreignKey:UserID"`
	Secret      string    `json:"-" gorm:"type:varchar(64);uniqueIndex;not null"`
	ExpiresAt   time.Time `json:"expiresAt" gorm:"not null"`
	IP          *string   `json:"ip,omitempty" gorm:"type:varchar(45)"`
	Invalidated bool      `json:"-" gorm:"not null;default:false"`
}

// IsValid reports whether the session can still authenticate requests.
// Pure check against the loaded record: a session whose expiry equals the
// current instant is already expired, and invalidation is never undone.
func (s *Session) IsValid() bool {
	return !s.Invalidated && time.Now().Before(s.ExpiresAt)
}
