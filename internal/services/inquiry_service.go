package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/teamhub254/Homeseeker-sub000/internal/config"
	"github.com/teamhub254/Homeseeker-sub000/internal/db"
	"github.com/teamhub254/Homeseeker-sub000/internal/models"
	"github.com/teamhub254/Homeseeker-sub000/internal/utils"
)

// IInquiryService handles buyer inquiries and the lister dashboard.
type IInquiryService interface {
	CreateInquiry(ctx context.Context, form models.InquiryForm, userID *utils.SixID) (*models.Inquiry, *models.Property, error)
	FindInquiryByID(ctx context.Context, inquiryID utils.SixID) (*models.Inquiry, error)
	ListForLister(ctx context.Context, listerID utils.SixID) ([]models.InquiryListItem, error)
	ListForUser(ctx context.Context, userID utils.SixID) ([]models.InquiryListItem, error)
	Respond(ctx context.Context, inquiryID, ownerID utils.SixID, response string) (*models.Inquiry, error)
	SetStatus(ctx context.Context, inquiryID, ownerID utils.SixID, status models.InquiryStatus) (*models.Inquiry, error)
	MarkNotificationSent(ctx context.Context, inquiryID utils.SixID) error
}

const inquiriesCollection = "inquiries"

type inquiryService struct {
	db         *mongo.Database
	cfg        *config.Config
	properties IPropertyService
}

func NewInquiryService(db *mongo.Database, cfg *config.Config, properties IPropertyService) IInquiryService {
	return &inquiryService{db: db, cfg: cfg, properties: properties}
}

// CreateInquiry validates the form, checks the property exists and inserts
// exactly one inquiry with status new. userID is nil for guests.
// A missing property yields mongo.ErrNoDocuments.
func (s *inquiryService) CreateInquiry(ctx context.Context, form models.InquiryForm, userID *utils.SixID) (*models.Inquiry, *models.Property, error) {
	if err := form.Validate(s.cfg.InquiryMessageMaxLength); err != nil {
		return nil, nil, err
	}
	property, err := s.properties.FindPropertyByID(ctx, form.PropertyID)
	if err != nil {
		return nil, nil, err
	}
	if userID != nil && userID.IsZero() {
		userID = nil
	}

	now := time.Now().UTC()
	inquiry, err := db.InsertOne(ctx, s.db.Collection(inquiriesCollection), func() *models.Inquiry {
		return &models.Inquiry{
			ID:         utils.NewSixID(),
			PropertyID: property.ID,
			UserID:     userID,
			Name:       form.Name,
			Email:      form.Email,
			Phone:      form.Phone,
			Message:    form.Message,
			Status:     models.InquiryNew,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	})
	if err != nil {
		return nil, nil, err
	}
	return inquiry, property, nil
}

func (s *inquiryService) FindInquiryByID(ctx context.Context, inquiryID utils.SixID) (*models.Inquiry, error) {
	var inquiry models.Inquiry
	err := s.db.Collection(inquiriesCollection).FindOne(ctx, bson.M{"_id": inquiryID}).Decode(&inquiry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding inquiry by ID %s: %w", inquiryID, err)
	}
	return &inquiry, nil
}

// ListForLister returns inquiries on every property the lister owns, newest
// first, with property summaries and unread counts. An inquiry on someone
// else's property can never appear since the query is bounded by the
// lister's own property ids.
func (s *inquiryService) ListForLister(ctx context.Context, listerID utils.SixID) ([]models.InquiryListItem, error) {
	propertyIDs, err := s.properties.FindPropertyIDsByOwner(ctx, listerID)
	if err != nil {
		return nil, err
	}
	if len(propertyIDs) == 0 {
		return []models.InquiryListItem{}, nil
	}
	return s.list(ctx, bson.M{"property_id": bson.M{"$in": propertyIDs}}, listerID)
}

// ListForUser returns the inquiries a signed-in buyer has sent.
func (s *inquiryService) ListForUser(ctx context.Context, userID utils.SixID) ([]models.InquiryListItem, error) {
	return s.list(ctx, bson.M{"user_id": userID}, userID)
}

func (s *inquiryService) list(ctx context.Context, filter bson.M, viewer utils.SixID) ([]models.InquiryListItem, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.db.Collection(inquiriesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query inquiries: %w", err)
	}
	defer cursor.Close(ctx)

	var inquiries []models.Inquiry
	if err := cursor.All(ctx, &inquiries); err != nil {
		return nil, fmt.Errorf("failed to decode inquiries: %w", err)
	}
	items := make([]models.InquiryListItem, 0, len(inquiries))
	if len(inquiries) == 0 {
		return items, nil
	}

	propertyIDs := make([]utils.SixID, 0, len(inquiries))
	inquiryIDs := make([]utils.SixID, 0, len(inquiries))
	seen := map[utils.SixID]bool{}
	for _, inq := range inquiries {
		inquiryIDs = append(inquiryIDs, inq.ID)
		if !seen[inq.PropertyID] {
			seen[inq.PropertyID] = true
			propertyIDs = append(propertyIDs, inq.PropertyID)
		}
	}

	properties, err := s.properties.FindPropertiesByIDs(ctx, propertyIDs, true)
	if err != nil {
		return nil, err
	}
	unread, err := s.unreadCounts(ctx, inquiryIDs, viewer)
	if err != nil {
		return nil, err
	}

	for _, inq := range inquiries {
		item := models.InquiryListItem{Inquiry: inq, UnreadCount: unread[inq.ID]}
		if p, ok := properties[inq.PropertyID]; ok {
			item.Property = p.Summary()
		}
		items = append(items, item)
	}
	return items, nil
}

// unreadCounts counts unread messages per inquiry that viewer did not send.
func (s *inquiryService) unreadCounts(ctx context.Context, inquiryIDs []utils.SixID, viewer utils.SixID) (map[utils.SixID]int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"inquiry_id": bson.M{"$in": inquiryIDs},
			"is_read":    false,
			"sender_id":  bson.M{"$ne": viewer},
		}}},
		{{Key: "$group", Value: bson.M{"_id": "$inquiry_id", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := s.db.Collection(chatMessagesCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to count unread messages: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID    utils.SixID `bson:"_id"`
		Count int         `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode unread counts: %w", err)
	}
	out := make(map[utils.SixID]int, len(rows))
	for _, r := range rows {
		out[r.ID] = r.Count
	}
	return out, nil
}

// ownedInquiry loads an inquiry and checks that ownerID owns its property.
func (s *inquiryService) ownedInquiry(ctx context.Context, inquiryID, ownerID utils.SixID) (*models.Inquiry, error) {
	inquiry, err := s.FindInquiryByID(ctx, inquiryID)
	if err != nil {
		return nil, err
	}
	properties, err := s.properties.FindPropertiesByIDs(ctx, []utils.SixID{inquiry.PropertyID}, true)
	if err != nil {
		return nil, err
	}
	p, ok := properties[inquiry.PropertyID]
	if !ok || p.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return inquiry, nil
}

// Respond records the lister's written response and moves the inquiry to
// responded.
func (s *inquiryService) Respond(ctx context.Context, inquiryID, ownerID utils.SixID, response string) (*models.Inquiry, error) {
	response = strings.TrimSpace(response)
	if response == "" {
		return nil, models.NewValidationError("response", "is required")
	}
	if limit := s.cfg.InquiryMessageMaxLength; limit > 0 && len([]rune(response)) > limit {
		return nil, models.NewValidationError("response", "is too long")
	}
	inquiry, err := s.ownedInquiry(ctx, inquiryID, ownerID)
	if err != nil {
		return nil, err
	}
	if inquiry.Status == models.InquiryClosed {
		return nil, ErrInquiryClosed
	}

	now := time.Now().UTC()
	return s.update(ctx, inquiryID, bson.M{
		"response":     response,
		"responded_at": now,
		"status":       models.InquiryResponded,
		"updated_at":   now,
	})
}

func (s *inquiryService) SetStatus(ctx context.Context, inquiryID, ownerID utils.SixID, status models.InquiryStatus) (*models.Inquiry, error) {
	if !status.Valid() {
		return nil, models.NewValidationError("status", "must be new, responded or closed")
	}
	if _, err := s.ownedInquiry(ctx, inquiryID, ownerID); err != nil {
		return nil, err
	}
	return s.update(ctx, inquiryID, bson.M{"status": status, "updated_at": time.Now().UTC()})
}

func (s *inquiryService) MarkNotificationSent(ctx context.Context, inquiryID utils.SixID) error {
	_, err := s.db.Collection(inquiriesCollection).UpdateOne(ctx,
		bson.M{"_id": inquiryID},
		bson.M{"$set": bson.M{"notification_sent": true}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark inquiry %s notified: %w", inquiryID, err)
	}
	return nil
}

func (s *inquiryService) update(ctx context.Context, inquiryID utils.SixID, set bson.M) (*models.Inquiry, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var inquiry models.Inquiry
	err := s.db.Collection(inquiriesCollection).FindOneAndUpdate(ctx, bson.M{"_id": inquiryID}, bson.M{"$set": set}, opts).Decode(&inquiry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to update inquiry %s: %w", inquiryID, err)
	}
	return &inquiry, nil
}
