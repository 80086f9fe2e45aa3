package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/teamhub254/Homeseeker-sub000/internal/config"
	"github.com/teamhub254/Homeseeker-sub000/internal/models"
	"github.com/teamhub254/Homeseeker-sub000/internal/realtime"
	"github.com/teamhub254/Homeseeker-sub000/internal/utils"
)

// IChatService reads and writes the message thread of one inquiry. Every
// call checks that the caller is a participant: the property owner or the
// account that sent the inquiry.
type IChatService interface {
	GetThread(ctx context.Context, inquiryID, userID utils.SixID) (*models.ThreadInfo, error)
	ListMessages(ctx context.Context, inquiryID, userID utils.SixID) ([]models.ChatMessage, error)
	MarkRead(ctx context.Context, inquiryID, readerID utils.SixID) (int64, error)
	SendMessage(ctx context.Context, inquiryID, senderID utils.SixID, messageID utils.SixID, content string) (*models.ChatMessage, error)
}

const chatMessagesCollection = "chat_messages"

type chatService struct {
	db         *mongo.Database
	cfg        *config.Config
	inquiries  IInquiryService
	properties IPropertyService
	profiles   IProfileService
	feed       realtime.IFeed
}

func NewChatService(db *mongo.Database, cfg *config.Config, inquiries IInquiryService, properties IPropertyService, profiles IProfileService, feed realtime.IFeed) IChatService {
	return &chatService{
		db:         db,
		cfg:        cfg,
		inquiries:  inquiries,
		properties: properties,
		profiles:   profiles,
		feed:       feed,
	}
}

// participation resolves the inquiry and its property and checks access.
func (s *chatService) participation(ctx context.Context, inquiryID, userID utils.SixID) (*models.Inquiry, *models.Property, error) {
	inquiry, err := s.inquiries.FindInquiryByID(ctx, inquiryID)
	if err != nil {
		return nil, nil, err
	}
	properties, err := s.properties.FindPropertiesByIDs(ctx, []utils.SixID{inquiry.PropertyID}, true)
	if err != nil {
		return nil, nil, err
	}
	property, ok := properties[inquiry.PropertyID]
	if !ok {
		return nil, nil, fmt.Errorf("inquiry %s references missing property %s: %w", inquiryID, inquiry.PropertyID, mongo.ErrNoDocuments)
	}
	if property.OwnerID != userID && !inquiry.IsFrom(userID) {
		return nil, nil, ErrForbidden
	}
	return inquiry, property, nil
}

// otherParticipant compares the inquiry's originating user with the caller:
// the buyer sees the owner and the owner sees the buyer. A guest inquiry
// has no account on the buyer side, so the owner sees nobody.
func otherParticipant(inquiry *models.Inquiry, property *models.Property, self utils.SixID) (utils.SixID, bool) {
	if inquiry.IsFrom(self) {
		if property.OwnerID == self {
			return utils.SixID{}, false
		}
		return property.OwnerID, true
	}
	if inquiry.UserID == nil {
		return utils.SixID{}, false
	}
	return *inquiry.UserID, true
}

func (s *chatService) GetThread(ctx context.Context, inquiryID, userID utils.SixID) (*models.ThreadInfo, error) {
	inquiry, property, err := s.participation(ctx, inquiryID, userID)
	if err != nil {
		return nil, err
	}
	info := &models.ThreadInfo{Inquiry: inquiry, Property: property.Summary(), Self: userID}

	otherID, ok := otherParticipant(inquiry, property, userID)
	if !ok {
		return info, nil
	}
	profile, err := s.profiles.Get(ctx, otherID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return info, nil
		}
		return nil, err
	}
	info.Other = profile.Participant()
	return info, nil
}

// ListMessages returns the whole thread in ascending creation order,
// ties broken by id.
func (s *chatService) ListMessages(ctx context.Context, inquiryID, userID utils.SixID) ([]models.ChatMessage, error) {
	if _, _, err := s.participation(ctx, inquiryID, userID); err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.db.Collection(chatMessagesCollection).Find(ctx, bson.M{"inquiry_id": inquiryID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages of inquiry %s: %w", inquiryID, err)
	}
	defer cursor.Close(ctx)

	messages := []models.ChatMessage{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	return messages, nil
}

// markReadFilter selects the unread messages addressed to reader.
func markReadFilter(inquiryID, readerID utils.SixID) bson.M {
	return bson.M{
		"inquiry_id": inquiryID,
		"sender_id":  bson.M{"$ne": readerID},
		"is_read":    false,
	}
}

// MarkRead flips is_read on incoming messages only and returns how many
// changed.
func (s *chatService) MarkRead(ctx context.Context, inquiryID, readerID utils.SixID) (int64, error) {
	if _, _, err := s.participation(ctx, inquiryID, readerID); err != nil {
		return 0, err
	}
	result, err := s.db.Collection(chatMessagesCollection).UpdateMany(ctx,
		markReadFilter(inquiryID, readerID),
		bson.M{"$set": bson.M{"is_read": true}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages of inquiry %s read: %w", inquiryID, err)
	}
	if result.ModifiedCount > 0 {
		s.publish(ctx, inquiryID, realtime.ChangeUpdate, "", nil)
	}
	return result.ModifiedCount, nil
}

// SendMessage appends a message. messageID may be supplied by the client so
// an optimistic copy can be matched to the stored row; zero means generate.
func (s *chatService) SendMessage(ctx context.Context, inquiryID, senderID, messageID utils.SixID, content string) (*models.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, models.NewValidationError("content", "is required")
	}
	if limit := s.cfg.ChatMessageMaxLength; limit > 0 && len([]rune(content)) > limit {
		return nil, models.NewValidationError("content", "is too long")
	}

	inquiry, property, err := s.participation(ctx, inquiryID, senderID)
	if err != nil {
		return nil, err
	}
	if inquiry.Status == models.InquiryClosed {
		return nil, ErrInquiryClosed
	}
	if messageID.IsZero() {
		messageID = utils.NewSixID()
	}

	msg := &models.ChatMessage{
		ID:        messageID,
		InquiryID: inquiryID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.db.Collection(chatMessagesCollection).InsertOne(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to insert message into inquiry %s: %w", inquiryID, err)
	}

	if property.OwnerID == senderID && inquiry.Status == models.InquiryNew {
		if _, err := s.db.Collection(inquiriesCollection).UpdateOne(ctx,
			bson.M{"_id": inquiryID, "status": models.InquiryNew},
			bson.M{"$set": bson.M{"status": models.InquiryResponded, "updated_at": time.Now().UTC()}},
		); err != nil {
			log.Printf("Warning: failed to mark inquiry %s responded: %v", inquiryID, err)
		}
	}

	s.publish(ctx, inquiryID, realtime.ChangeInsert, msg.ID.String(), msg)
	return msg, nil
}

func (s *chatService) publish(ctx context.Context, inquiryID utils.SixID, changeType, recordID string, record interface{}) {
	if s.feed == nil {
		return
	}
	change, err := realtime.NewChange(realtime.TableChatMessages, changeType, realtime.Eq("inquiry_id", inquiryID.String()), recordID, record)
	if err != nil {
		log.Printf("Warning: %v", err)
		return
	}
	if err := s.feed.Publish(ctx, change); err != nil {
		log.Printf("Warning: failed to publish %s for inquiry %s: %v", changeType, inquiryID, err)
	}
}
