package models

import (
	"strings"
	"time"

	"github.com/teamhub254/Homeseeker-sub000/internal/utils"
)

// Role decides which parts of the marketplace an account may use.
type Role string

const (
	RoleLister Role = "lister"
	RoleRenter Role = "renter"
)

func (r Role) Valid() bool {
	return r == RoleLister || r == RoleRenter
}

// Profile is the application-level record of an account, keyed by user id.
type Profile struct {
	UserID    utils.SixID `bson:"_id" json:"user_id"`
	FirstName string      `bson:"first_name" json:"first_name"`
	LastName  string      `bson:"last_name" json:"last_name"`
	Phone     string      `bson:"phone" json:"phone"`
	AvatarURL string      `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`
	AvatarKey string      `bson:"avatar_key,omitempty" json:"-"`
	Role      Role        `bson:"role" json:"role"`
	CreatedAt time.Time   `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time   `bson:"updated_at" json:"updated_at"`
}

func (p *Profile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Participant is the public slice of a profile shown inside a chat thread.
func (p *Profile) Participant() *Participant {
	return &Participant{
		UserID:    p.UserID,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		AvatarURL: p.AvatarURL,
		Role:      p.Role,
	}
}

// ProfileInput is what sign-up and profile edits accept.
type ProfileInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Role      Role   `json:"role"`
}

// Validate checks a sign-up profile. Phone is optional at sign-up.
func (in *ProfileInput) Validate() error {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Phone = strings.TrimSpace(in.Phone)
	if in.FirstName == "" {
		return NewValidationError("first_name", "is required")
	}
	if in.LastName == "" {
		return NewValidationError("last_name", "is required")
	}
	if in.Phone != "" && !IsValidPhone(in.Phone) {
		return NewValidationError("phone", "is not a valid phone number")
	}
	if in.Role == "" {
		in.Role = RoleRenter
	}
	if !in.Role.Valid() {
		return NewValidationError("role", "must be lister or renter")
	}
	return nil
}
