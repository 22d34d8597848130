// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// AuthProvider records how an account was created.
type AuthProvider string

const (
	AuthProviderLocal  AuthProvider = "local"
	AuthProviderGoogle AuthProvider = "google"
)

// User represents an account of the calendar application.
type User struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	Email        string       `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password     *string      `gorm:"size:255" json:"-"`
	DisplayName  string       `gorm:"size:100;not null" json:"displayName"`
	AvatarURL    string       `gorm:"size:2048;not null" json:"avatarUrl"`
	GoogleID     *string      `gorm:"size:255;uniqueIndex" json:"googleId,omitempty"`
	AuthProvider AuthProvider `gorm:"size:20;not null;default:local" json:"authProvider"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
	Events       []Event      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// HasPassword reports whether the account can sign in with a local password.
func (u *User) HasPassword() bool {
	return u.Password != nil && *u.Password != ""
}
