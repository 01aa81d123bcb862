package models

import "time"

// Account is an identity provider account keyed by email.
type Account struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Email        string     `gorm:"size:320;uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"size:255;not null" json:"-"`
	LastSignInAt *time.Time `json:"last_sign_in_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
