package models

// EmailTemplate is a subject/body pair stored in the email_templates collection.
type EmailTemplate struct {
	Base       `bson:",inline"`
	TemplateID string `bson:"template_id" json:"template_id"` // e.g. "new_inquiry", "inquiry_response"
	Locale     string `bson:"locale" json:"locale"`
	Subject    string `bson:"subject" json:"subject"`
	Body       string `bson:"body" json:"body"`
}

const (
	TemplateNewInquiry      = "new_inquiry"
	TemplateInquiryResponse = "inquiry_response"
	TemplateWelcome         = "welcome"
)
