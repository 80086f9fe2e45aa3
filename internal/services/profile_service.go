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

	"github.com/teamhub254/Homeseeker-sub000/internal/models"
	"github.com/teamhub254/Homeseeker-sub000/internal/utils"
)

// IProfileService manages the application-level user records.
type IProfileService interface {
	Create(ctx context.Context, userID utils.SixID, in models.ProfileInput) (*models.Profile, error)
	Get(ctx context.Context, userID utils.SixID) (*models.Profile, error)
	GetMany(ctx context.Context, userIDs []utils.SixID) (map[utils.SixID]*models.Profile, error)
	Update(ctx context.Context, userID utils.SixID, updates map[string]interface{}) (*models.Profile, error)
	// SetAvatar stores the new avatar and returns the key of the one it replaced.
	SetAvatar(ctx context.Context, userID utils.SixID, key, url string) (string, error)
	ClearAvatar(ctx context.Context, userID utils.SixID) (string, error)
}

const profilesCollection = "profiles"

type profileService struct {
	db *mongo.Database
}

func NewProfileService(db *mongo.Database) IProfileService {
	return &profileService{db: db}
}

func (s *profileService) Create(ctx context.Context, userID utils.SixID, in models.ProfileInput) (*models.Profile, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	profile := &models.Profile{
		UserID:    userID,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Phone:     in.Phone,
		Role:      in.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.db.Collection(profilesCollection).InsertOne(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to insert profile for user %s: %w", userID, err)
	}
	return profile, nil
}

func (s *profileService) Get(ctx context.Context, userID utils.SixID) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.Collection(profilesCollection).FindOne(ctx, bson.M{"_id": userID}).Decode(&profile)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding profile %s: %w", userID, err)
	}
	return &profile, nil
}

func (s *profileService) GetMany(ctx context.Context, userIDs []utils.SixID) (map[utils.SixID]*models.Profile, error) {
	out := make(map[utils.SixID]*models.Profile, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	cursor, err := s.db.Collection(profilesCollection).Find(ctx, bson.M{"_id": bson.M{"$in": userIDs}})
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer cursor.Close(ctx)

	var profiles []models.Profile
	if err := cursor.All(ctx, &profiles); err != nil {
		return nil, fmt.Errorf("failed to decode profiles: %w", err)
	}
	for i := range profiles {
		out[profiles[i].UserID] = &profiles[i]
	}
	return out, nil
}

// Update changes first_name, last_name and phone. Role is fixed at sign-up.
func (s *profileService) Update(ctx context.Context, userID utils.SixID, updates map[string]interface{}) (*models.Profile, error) {
	allowedUpdates := bson.M{}
	for key, value := range updates {
		str, ok := value.(string)
		if !ok {
			return nil, models.NewValidationError(key, "must be a string")
		}
		str = strings.TrimSpace(str)
		switch key {
		case "first_name", "last_name":
			if str == "" {
				return nil, models.NewValidationError(key, "is required")
			}
		case "phone":
			if str != "" && !models.IsValidPhone(str) {
				return nil, models.NewValidationError(key, "is not a valid phone number")
			}
		default:
			return nil, fmt.Errorf("%w: field '%s' cannot be updated", ErrInvalidInput, key)
		}
		allowedUpdates[key] = str
	}
	if len(allowedUpdates) == 0 {
		return nil, fmt.Errorf("%w: no valid fields provided for update", ErrInvalidInput)
	}
	allowedUpdates["updated_at"] = time.Now().UTC()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var profile models.Profile
	err := s.db.Collection(profilesCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": allowedUpdates},
		opts,
	).Decode(&profile)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to update profile %s: %w", userID, err)
	}
	return &profile, nil
}

func (s *profileService) SetAvatar(ctx context.Context, userID utils.SixID, key, url string) (string, error) {
	return s.swapAvatar(ctx, userID, bson.M{
		"$set": bson.M{"avatar_key": key, "avatar_url": url, "updated_at": time.Now().UTC()},
	})
}

func (s *profileService) ClearAvatar(ctx context.Context, userID utils.SixID) (string, error) {
	return s.swapAvatar(ctx, userID, bson.M{
		"$set":   bson.M{"updated_at": time.Now().UTC()},
		"$unset": bson.M{"avatar_key": "", "avatar_url": ""},
	})
}

func (s *profileService) swapAvatar(ctx context.Context, userID utils.SixID, update bson.M) (string, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)
	var before models.Profile
	err := s.db.Collection(profilesCollection).FindOneAndUpdate(ctx, bson.M{"_id": userID}, update, opts).Decode(&before)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", mongo.ErrNoDocuments
		}
		return "", fmt.Errorf("failed to update avatar of %s: %w", userID, err)
	}
	return before.AvatarKey, nil
}
