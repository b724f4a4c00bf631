package models

// User is an account known to the gateway. Rank is a free-form label compared
// against a site's allow-set; it carries no ordering.
type User struct {
	BaseModel
	Username     string `json:"username" gorm:"type:varchar(15);uniqueIndex;not null"`
	Rank         string `json:"rank" gorm:"type:varchar(50);not null;default:'user'"`
	PasswordHash string `json:"-" gorm:"type:text;not null"`
}
