package models

import (
	"time"

	"github.com/teamhub254/Homeseeker-sub000/internal/utils"
)

// ChatMessage is one message in an inquiry thread. Only IsRead ever changes.
type ChatMessage struct {
	ID        utils.SixID `bson:"_id" json:"id"`
	InquiryID utils.SixID `bson:"inquiry_id" json:"inquiry_id"`
	SenderID  utils.SixID `bson:"sender_id" json:"sender_id"`
	Content   string      `bson:"content" json:"content"`
	CreatedAt time.Time   `bson:"created_at" json:"created_at"`
	IsRead    bool        `bson:"is_read" json:"is_read"`
}

// Participant is one side of a thread as shown to the other side.
type Participant struct {
	UserID    utils.SixID `json:"user_id"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	AvatarURL string      `json:"avatar_url,omitempty"`
	Role      Role        `json:"role"`
}

// ThreadInfo is everything a thread view needs besides the messages.
// Other is nil when the inquiry was sent by a guest.
type ThreadInfo struct {
	Inquiry  *Inquiry         `json:"inquiry"`
	Property *PropertySummary `json:"property"`
	Self     utils.SixID      `json:"self"`
	Other    *Participant     `json:"other"`
}
