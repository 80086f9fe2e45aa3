package models

import (
	"strings"
	"time"
)

// User is the authentication account. Application data about the person
// lives in Profile.
type User struct {
	Base         `bson:",inline"`
	Email        string     `bson:"email" json:"email"`
	PasswordHash string     `bson:"password_hash" json:"-"`
	CreatedAt    time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at" json:"updated_at"`
	LastSignInAt *time.Time `bson:"last_sign_in_at,omitempty" json:"last_sign_in_at,omitempty"`
	Deleted      bool       `bson:"deleted" json:"-"`
}

// NormalizeEmail lower-cases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
