package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is created at most once per normalized email. Guest-checkout users are
// materialized without a password and carry a one-time signup token.
type User struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Email        string    `gorm:"column:email;not null;uniqueIndex"`
	PasswordHash *string   `gorm:"column:password_hash"`
	Name         string    `gorm:"column:name;not null"`
	Phone        *string   `gorm:"column:phone"`
	Locale       string    `gorm:"column:locale;not null;default:'en'"`
	IsVerified   bool      `gorm:"column:is_verified;not null;default:false"`

	// Only the latest token is valid; overwritten on re-materialization for
	// users that have not finished signup.
	VerificationToken *string    `gorm:"column:verification_token"`
	TokenExpiry       *time.Time `gorm:"column:token_expiry"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// NeedsSignupToken reports whether the account is still claimable through the
// signup-finish link.
func (u *User) NeedsSignupToken() bool {
	return u != nil && (u.PasswordHash == nil || !u.IsVerified)
}
