package services

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/teamhub254/Homeseeker-sub000/internal/models"
)

// Built-in templates used when the database has no override.
var defaultEmailTemplates = map[string]models.EmailTemplate{
	models.TemplateNewInquiry: {
		TemplateID: models.TemplateNewInquiry,
		Locale:     "en-US",
		Subject:    "New inquiry about {{.property_title}}",
		Body: "{{.name}} is interested in {{.property_title}}.\n\n" +
			"Email: {{.email}}\nPhone: {{.phone}}\n\n{{.message}}\n\n" +
			"Reply from your dashboard: {{.base_url}}/dashboard/inquiries/{{.inquiry_id}}",
	},
	models.TemplateInquiryResponse: {
		TemplateID: models.TemplateInquiryResponse,
		Locale:     "en-US",
		Subject:    "Re: your inquiry about {{.property_title}}",
		Body: "Hi {{.name}},\n\n{{.response}}\n\n" +
			"View the conversation: {{.base_url}}/inquiries/{{.inquiry_id}}",
	},
	models.TemplateWelcome: {
		TemplateID: models.TemplateWelcome,
		Locale:     "en-US",
		Subject:    "Welcome to {{.app_name}}",
		Body:       "Hi {{.first_name}},\n\nYour {{.app_name}} account is ready.",
	},
}

// IEmailTemplateService looks up email templates.
type IEmailTemplateService interface {
	GetTemplate(ctx context.Context, templateID, locale string) (*models.EmailTemplate, error)
}

const emailTemplatesCollection = "email_templates"

type EmailTemplateService struct {
	db *mongo.Database
}

func NewEmailTemplateService(db *mongo.Database) *EmailTemplateService {
	return &EmailTemplateService{db: db}
}

// GetTemplate returns the stored template for templateID and locale, or the
// built-in default.
func (s *EmailTemplateService) GetTemplate(ctx context.Context, templateID string, locale string) (*models.EmailTemplate, error) {
	filter := bson.M{"template_id": templateID, "locale": locale}

	var template models.EmailTemplate
	err := s.db.Collection(emailTemplatesCollection).FindOne(ctx, filter).Decode(&template)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			if defaultTemplate, ok := defaultEmailTemplates[templateID]; ok {
				return &defaultTemplate, nil
			}
			return nil, fmt.Errorf("template not found: %s (locale: %s)", templateID, locale)
		}
		return nil, fmt.Errorf("error retrieving template: %w", err)
	}
	return &template, nil
}

// SaveTemplate upserts a template by id and locale.
func (s *EmailTemplateService) SaveTemplate(ctx context.Context, template *models.EmailTemplate) error {
	template.GenIDIfEmpty()
	filter := bson.M{"template_id": template.TemplateID, "locale": template.Locale}
	update := bson.M{
		"$set": bson.M{
			"template_id": template.TemplateID,
			"locale":      template.Locale,
			"subject":     template.Subject,
			"body":        template.Body,
		},
		"$setOnInsert": bson.M{"_id": template.ID},
	}

	if _, err := s.db.Collection(emailTemplatesCollection).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("error saving template: %w", err)
	}
	return nil
}
