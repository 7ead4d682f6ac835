package repo

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrNotPending    = errors.New("order is not pending")
	ErrTokenRevoked  = errors.New("token expired or revoked")
	ErrAmbiguousLine = errors.New("product is in the cart in more than one color")
)

type GormRepo struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *GormRepo {
	return &GormRepo{DB: db}
}

// IsDuplicate reports a unique constraint violation. The postgres dialector
// translates it to gorm.ErrDuplicatedKey; the sqlite one may not.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
