package models

import (
	"strings"
	"time"

	"github.com/teamhub254/Homeseeker-sub000/internal/utils"
)

type InquiryStatus string

const (
	InquiryNew       InquiryStatus = "new"
	InquiryResponded InquiryStatus = "responded"
	InquiryClosed    InquiryStatus = "closed"
)

func (s InquiryStatus) Valid() bool {
	switch s {
	case InquiryNew, InquiryResponded, InquiryClosed:
		return true
	}
	return false
}

// Inquiry is a buyer's contact request about one property.
type Inquiry struct {
	ID               utils.SixID   `bson:"_id" json:"id"`
	PropertyID       utils.SixID   `bson:"property_id" json:"property_id"`
	UserID           *utils.SixID  `bson:"user_id,omitempty" json:"user_id,omitempty"` // nil for guest inquiries
	Name             string        `bson:"name" json:"name"`
	Email            string        `bson:"email" json:"email"`
	Phone            string        `bson:"phone" json:"phone"`
	Message          string        `bson:"message" json:"message"`
	Status           InquiryStatus `bson:"status" json:"status"`
	Response         string        `bson:"response,omitempty" json:"response,omitempty"`
	RespondedAt      *time.Time    `bson:"responded_at,omitempty" json:"responded_at,omitempty"`
	NotificationSent bool          `bson:"notification_sent" json:"-"`
	CreatedAt        time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `bson:"updated_at" json:"updated_at"`
}

// IsFrom reports whether the inquiry was made by the given account.
func (i *Inquiry) IsFrom(userID utils.SixID) bool {
	return i.UserID != nil && *i.UserID == userID
}

// InquiryForm is the contact form posted from a property page.
type InquiryForm struct {
	PropertyID utils.SixID `json:"property_id"`
	Name       string      `json:"name"`
	Email      string      `json:"email"`
	Phone      string      `json:"phone"`
	Message    string      `json:"message"`
}

// Validate trims the form in place and rejects it before anything is written.
func (f *InquiryForm) Validate(maxMessageLength int) error {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = NormalizeEmail(f.Email)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Message = strings.TrimSpace(f.Message)

	if f.PropertyID.IsZero() {
		return NewValidationError("property_id", "is required")
	}
	if f.Name == "" {
		return NewValidationError("name", "is required")
	}
	if f.Email == "" {
		return NewValidationError("email", "is required")
	}
	if !IsValidEmail(f.Email) {
		return NewValidationError("email", "is not a valid email address")
	}
	if f.Phone == "" {
		return NewValidationError("phone", "is required")
	}
	if !IsValidPhone(f.Phone) {
		return NewValidationError("phone", "is not a valid phone number")
	}
	if f.Message == "" {
		return NewValidationError("message", "is required")
	}
	if maxMessageLength > 0 && len([]rune(f.Message)) > maxMessageLength {
		return NewValidationError("message", "is too long")
	}
	return nil
}

// InquiryListItem is one row of the lister dashboard.
type InquiryListItem struct {
	Inquiry     `bson:",inline"`
	Property    *PropertySummary `bson:"-" json:"property"`
	UnreadCount int              `bson:"-" json:"unread_count"`
}
