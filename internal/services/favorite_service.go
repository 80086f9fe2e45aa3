package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/teamhub254/Homeseeker-sub000/internal/db"
	"github.com/teamhub254/Homeseeker-sub000/internal/models"
	"github.com/teamhub254/Homeseeker-sub000/internal/utils"
)

// IFavoriteService manages a user's saved properties.
type IFavoriteService interface {
	AddFavorite(ctx context.Context, userID, propertyID utils.SixID) (*models.Favorite, error)
	RemoveFavorite(ctx context.Context, userID, propertyID utils.SixID) error
	ListFavorites(ctx context.Context, userID utils.SixID) ([]models.FavoriteItem, error)
	IsFavorite(ctx context.Context, userID, propertyID utils.SixID) (bool, error)
}

const favoritesCollection = "favorites"

type favoriteService struct {
	db         *mongo.Database
	properties IPropertyService
}

func NewFavoriteService(db *mongo.Database, properties IPropertyService) IFavoriteService {
	return &favoriteService{db: db, properties: properties}
}

// AddFavorite relies on the unique (user_id, property_id) index; a second
// add returns ErrAlreadyFavorited.
func (s *favoriteService) AddFavorite(ctx context.Context, userID, propertyID utils.SixID) (*models.Favorite, error) {
	if _, err := s.properties.FindPropertyByID(ctx, propertyID); err != nil {
		return nil, err
	}
	collection := s.db.Collection(favoritesCollection)

	exists, err := s.IsFavorite(ctx, userID, propertyID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAlreadyFavorited
	}

	fav := &models.Favorite{
		ID:         utils.NewSixID(),
		UserID:     userID,
		PropertyID: propertyID,
		CreatedAt:  time.Now().UTC(),
	}
	if _, err := collection.InsertOne(ctx, fav); err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			return nil, ErrAlreadyFavorited
		}
		return nil, fmt.Errorf("failed to add favorite: %w", err)
	}
	return fav, nil
}

func (s *favoriteService) RemoveFavorite(ctx context.Context, userID, propertyID utils.SixID) error {
	result, err := s.db.Collection(favoritesCollection).DeleteOne(ctx, bson.M{"user_id": userID, "property_id": propertyID})
	if err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}
	if result.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ListFavorites returns newest favorites first, each joined with its
// property. Deleted properties come back with a nil Property.
func (s *favoriteService) ListFavorites(ctx context.Context, userID utils.SixID) ([]models.FavoriteItem, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.db.Collection(favoritesCollection).Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorites: %w", err)
	}
	defer cursor.Close(ctx)

	var favorites []models.Favorite
	if err := cursor.All(ctx, &favorites); err != nil {
		return nil, fmt.Errorf("failed to decode favorites: %w", err)
	}

	ids := make([]utils.SixID, 0, len(favorites))
	for _, f := range favorites {
		ids = append(ids, f.PropertyID)
	}
	properties, err := s.properties.FindPropertiesByIDs(ctx, ids, false)
	if err != nil {
		return nil, err
	}

	items := make([]models.FavoriteItem, 0, len(favorites))
	for _, f := range favorites {
		items = append(items, models.FavoriteItem{Favorite: f, Property: properties[f.PropertyID]})
	}
	return items, nil
}

func (s *favoriteService) IsFavorite(ctx context.Context, userID, propertyID utils.SixID) (bool, error) {
	err := s.db.Collection(favoritesCollection).FindOne(ctx, bson.M{"user_id": userID, "property_id": propertyID}).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check favorite: %w", err)
	}
	return true, nil
}
