package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/teamhub254/Homeseeker-sub000/internal/auth"
	"github.com/teamhub254/Homeseeker-sub000/internal/db"
	"github.com/teamhub254/Homeseeker-sub000/internal/models"
	"github.com/teamhub254/Homeseeker-sub000/internal/utils"
)

// SignUpInput is the payload of signUp.
type SignUpInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	models.ProfileInput
}

// IUserService manages authentication accounts.
type IUserService interface {
	SignUp(ctx context.Context, in SignUpInput) (*models.User, *models.Profile, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	FindByID(ctx context.Context, userID utils.SixID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	ChangePassword(ctx context.Context, userID utils.SixID, currentPassword, newPassword string) error
}

const usersCollection = "users"

type userService struct {
	db       *mongo.Database
	policy   *auth.PasswordPolicy
	profiles IProfileService
}

func NewUserService(db *mongo.Database, policy *auth.PasswordPolicy, profiles IProfileService) IUserService {
	return &userService{db: db, policy: policy, profiles: profiles}
}

// SignUp creates the account and its profile. The email is unique among
// accounts; a taken address yields ErrEmailTaken.
func (s *userService) SignUp(ctx context.Context, in SignUpInput) (*models.User, *models.Profile, error) {
	email := models.NormalizeEmail(in.Email)
	if !models.IsValidEmail(email) {
		return nil, nil, models.NewValidationError("email", "is not a valid email address")
	}
	if !s.policy.Allows(in.Password) {
		return nil, nil, models.NewValidationError("password", "does not meet the password policy")
	}
	profileInput := in.ProfileInput
	if err := profileInput.Validate(); err != nil {
		return nil, nil, err
	}

	collection := s.db.Collection(usersCollection)
	count, err := collection.CountDocuments(ctx, bson.M{"email": email, "deleted": false})
	if err != nil {
		return nil, nil, fmt.Errorf("error checking email uniqueness for %s: %w", email, err)
	}
	if count > 0 {
		return nil, nil, ErrEmailTaken
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	user, err := db.InsertOne(ctx, collection, func() *models.User {
		return &models.User{
			Base:         models.NewBase(),
			Email:        email,
			PasswordHash: hash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	})
	if err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			return nil, nil, ErrEmailTaken
		}
		return nil, nil, err
	}

	profile, err := s.profiles.Create(ctx, user.ID, profileInput)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create profile for user %s: %w", user.ID, err)
	}
	return user, profile, nil
}

// Authenticate returns ErrInvalidCredentials for both unknown emails and
// wrong passwords.
func (s *userService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if _, err := s.db.Collection(usersCollection).UpdateOne(ctx,
		bson.M{"_id": user.ID},
		bson.M{"$set": bson.M{"last_sign_in_at": now}},
	); err != nil {
		return nil, fmt.Errorf("failed to record sign-in for user %s: %w", user.ID, err)
	}
	user.LastSignInAt = &now
	return user, nil
}

func (s *userService) FindByID(ctx context.Context, userID utils.SixID) (*models.User, error) {
	var user models.User
	err := s.db.Collection(usersCollection).FindOne(ctx, bson.M{"_id": userID, "deleted": false}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding user by ID %s: %w", userID, err)
	}
	return &user, nil
}

// FindByEmail finds a non-deleted user by email, case-insensitively.
func (s *userService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	var user models.User
	err := s.db.Collection(usersCollection).FindOne(ctx, bson.M{"email": email, "deleted": false}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding user by email %s: %w", email, err)
	}
	return &user, nil
}

func (s *userService) ChangePassword(ctx context.Context, userID utils.SixID, currentPassword, newPassword string) error {
	user, err := s.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPasswordHash(currentPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}
	if !s.policy.Allows(newPassword) {
		return models.NewValidationError("password", "does not meet the password policy")
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	_, err = s.db.Collection(usersCollection).UpdateOne(ctx,
		bson.M{"_id": userID, "deleted": false},
		bson.M{"$set": bson.M{"password_hash": hash, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to update password for user %s: %w", userID, err)
	}
	return nil
}
