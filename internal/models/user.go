package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	Base
	Name         string  `gorm:"size:100;not null"            json:"name"`
	Email        string  `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string  `gorm:"not null"                     json:"-"`
	Role         string  `gorm:"size:20;not null;default:user" json:"role"`
	Phone        string  `gorm:"size:30"                      json:"phone"`
	Address      Address `gorm:"embedded;embeddedPrefix:address_" json:"address"`

	EmailVerified      bool       `gorm:"default:false" json:"emailVerified"`
	VerificationHash   string     `json:"-"`
	VerificationExpiry *time.Time `json:"-"`

	ResetTokenHash string     `gorm:"index" json:"-"`
	ResetExpiry    *time.Time `json:"-"`
}

func (User) TableName() string {
	return "users"
}

func (u User) IsAdmin() bool {
	return u.Role == "admin"
}

type RefreshToken struct {
	Base
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	Token     string    `gorm:"uniqueIndex;not null"     json:"-"`
	JTI       string    `gorm:"uniqueIndex;not null"     json:"jti"`
	ExpiresAt time.Time `gorm:"not null"                 json:"expires_at"`
	Revoked   bool      `gorm:"default:false"            json:"revoked"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}
