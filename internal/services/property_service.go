package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
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

// Sort orders accepted by SearchProperties.
const (
	SortNewest    = "newest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
)

// PropertyQuery filters a property search. Zero values mean "no filter".
type PropertyQuery struct {
	Text          string
	City          string
	State         string
	ListingType   models.ListingType
	MinPrice      *float64
	MaxPrice      *float64
	MinBedrooms   int
	MinBathrooms  int
	Statuses      []models.PropertyStatus
	PropertyTypes []string
	OwnerID       *utils.SixID
	Sort          string
	Limit         int
	Cursor        string
	WithCount     bool
}

// SearchResult is one page of a property search. Count is set only when
// requested and covers all pages.
type SearchResult struct {
	Properties []models.Property `json:"data"`
	NextCursor string            `json:"next_cursor"`
	Count      *int64            `json:"count,omitempty"`
}

// IPropertyService manages property listings.
type IPropertyService interface {
	CreateProperty(ctx context.Context, ownerID utils.SixID, in models.PropertyInput) (*models.Property, error)
	FindPropertyByID(ctx context.Context, propertyID utils.SixID) (*models.Property, error)
	UpdateProperty(ctx context.Context, propertyID, ownerID utils.SixID, updates map[string]interface{}) (*models.Property, error)
	DeleteProperty(ctx context.Context, propertyID, ownerID utils.SixID) error
	AddImage(ctx context.Context, propertyID utils.SixID, image models.PropertyImage) error
	RemoveImage(ctx context.Context, propertyID, ownerID utils.SixID, key string) error
	FindPropertyIDsByOwner(ctx context.Context, ownerID utils.SixID) ([]utils.SixID, error)
	FindPropertiesByIDs(ctx context.Context, ids []utils.SixID, includeDeleted bool) (map[utils.SixID]*models.Property, error)
	ListOwnerProperties(ctx context.Context, ownerID utils.SixID) ([]models.Property, error)
	SearchProperties(ctx context.Context, q PropertyQuery) (*SearchResult, error)
}

const propertiesCollection = "properties"

type propertyService struct {
	db       *mongo.Database
	cfg      *config.Config
	profiles IProfileService
}

func NewPropertyService(db *mongo.Database, cfg *config.Config, profiles IProfileService) IPropertyService {
	return &propertyService{db: db, cfg: cfg, profiles: profiles}
}

// CreateProperty inserts an available listing. Only listers may create.
func (s *propertyService) CreateProperty(ctx context.Context, ownerID utils.SixID, in models.PropertyInput) (*models.Property, error) {
	profile, err := s.profiles.Get(ctx, ownerID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotLister
		}
		return nil, err
	}
	if profile.Role != models.RoleLister {
		return nil, ErrNotLister
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return db.InsertOne(ctx, s.db.Collection(propertiesCollection), func() *models.Property {
		return &models.Property{
			ID:           utils.NewSixID(),
			OwnerID:      ownerID,
			Title:        strings.TrimSpace(in.Title),
			Description:  strings.TrimSpace(in.Description),
			Address:      in.Address,
			Price:        in.Price,
			ListingType:  in.ListingType,
			PropertyType: in.PropertyType,
			Bedrooms:     in.Bedrooms,
			Bathrooms:    in.Bathrooms,
			Area:         in.Area,
			Images:       []models.PropertyImage{},
			Status:       models.PropertyAvailable,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	})
}

// FindPropertyByID finds a non-deleted property. It does NOT check ownership.
func (s *propertyService) FindPropertyByID(ctx context.Context, propertyID utils.SixID) (*models.Property, error) {
	var property models.Property
	err := s.db.Collection(propertiesCollection).FindOne(ctx, bson.M{"_id": propertyID, "deleted": false}).Decode(&property)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding property by ID %s: %w", propertyID, err)
	}
	return &property, nil
}

// UpdateProperty changes whitelisted fields of a property the caller owns.
// updates holds JSON-decoded values keyed by field name.
func (s *propertyService) UpdateProperty(ctx context.Context, propertyID, ownerID utils.SixID, updates map[string]interface{}) (*models.Property, error) {
	allowedUpdates, err := propertyUpdates(updates)
	if err != nil {
		return nil, err
	}
	allowedUpdates["updated_at"] = time.Now().UTC()

	filter := bson.M{"_id": propertyID, "owner_id": ownerID, "deleted": false}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var property models.Property
	err = s.db.Collection(propertiesCollection).FindOneAndUpdate(ctx, filter, bson.M{"$set": allowedUpdates}, opts).Decode(&property)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, s.ownershipError(ctx, propertyID, ownerID)
		}
		return nil, fmt.Errorf("failed to update property %s: %w", propertyID, err)
	}
	return &property, nil
}

// propertyUpdates validates and converts an update map into a $set document.
func propertyUpdates(updates map[string]interface{}) (bson.M, error) {
	out := bson.M{}
	for key, value := range updates {
		switch key {
		case "title", "description":
			str, ok := value.(string)
			if !ok {
				return nil, models.NewValidationError(key, "must be a string")
			}
			str = strings.TrimSpace(str)
			if key == "title" && str == "" {
				return nil, models.NewValidationError(key, "is required")
			}
			out[key] = str
		case "price", "area":
			n, ok := value.(float64)
			if !ok || n < 0 {
				return nil, models.NewValidationError(key, "must be a non-negative number")
			}
			out[key] = n
		case "bedrooms", "bathrooms":
			n, ok := value.(float64)
			if !ok || n < 0 || n != math.Trunc(n) {
				return nil, models.NewValidationError(key, "must be a non-negative integer")
			}
			out[key] = int(n)
		case "status":
			str, _ := value.(string)
			if !models.PropertyStatus(str).Valid() {
				return nil, models.NewValidationError(key, "is not a valid status")
			}
			out[key] = str
		case "listing_type":
			str, _ := value.(string)
			if !models.ListingType(str).Valid() {
				return nil, models.NewValidationError(key, "must be sale or rent")
			}
			out[key] = str
		case "property_type":
			str, _ := value.(string)
			if !models.IsValidPropertyType(str) {
				return nil, models.NewValidationError(key, "is not a known property type")
			}
			out[key] = str
		case "address":
			raw, err := json.Marshal(value)
			if err != nil {
				return nil, models.NewValidationError(key, "is malformed")
			}
			var addr models.Address
			if err := json.Unmarshal(raw, &addr); err != nil {
				return nil, models.NewValidationError(key, "is malformed")
			}
			if addr.City == "" {
				return nil, models.NewValidationError("address.city", "is required")
			}
			out[key] = addr
		default:
			return nil, fmt.Errorf("%w: field '%s' cannot be updated", ErrInvalidInput, key)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no valid fields provided for update", ErrInvalidInput)
	}
	return out, nil
}

// DeleteProperty soft-deletes so inquiries keep a valid reference.
func (s *propertyService) DeleteProperty(ctx context.Context, propertyID, ownerID utils.SixID) error {
	now := time.Now().UTC()
	result, err := s.db.Collection(propertiesCollection).UpdateOne(ctx,
		bson.M{"_id": propertyID, "owner_id": ownerID, "deleted": false},
		bson.M{"$set": bson.M{"deleted": true, "deleted_at": now, "updated_at": now}},
	)
	if err != nil {
		return fmt.Errorf("db error deleting property %s: %w", propertyID, err)
	}
	if result.MatchedCount == 0 {
		return s.ownershipError(ctx, propertyID, ownerID)
	}
	return nil
}

// AddImage appends an image unless one with the same key is already there.
func (s *propertyService) AddImage(ctx context.Context, propertyID utils.SixID, image models.PropertyImage) error {
	_, err := s.db.Collection(propertiesCollection).UpdateOne(ctx,
		bson.M{"_id": propertyID, "deleted": false, "images.key": bson.M{"$ne": image.Key}},
		bson.M{
			"$push": bson.M{"images": image},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to add image to property %s: %w", propertyID, err)
	}
	return nil
}

func (s *propertyService) RemoveImage(ctx context.Context, propertyID, ownerID utils.SixID, key string) error {
	result, err := s.db.Collection(propertiesCollection).UpdateOne(ctx,
		bson.M{"_id": propertyID, "owner_id": ownerID, "deleted": false},
		bson.M{
			"$pull": bson.M{"images": bson.M{"key": key}},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to remove image from property %s: %w", propertyID, err)
	}
	if result.MatchedCount == 0 {
		return s.ownershipError(ctx, propertyID, ownerID)
	}
	return nil
}

// ownershipError explains why an owner-scoped write matched nothing.
func (s *propertyService) ownershipError(ctx context.Context, propertyID, ownerID utils.SixID) error {
	var property models.Property
	err := s.db.Collection(propertiesCollection).FindOne(ctx, bson.M{"_id": propertyID}).Decode(&property)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return mongo.ErrNoDocuments
		}
		return fmt.Errorf("error checking property %s: %w", propertyID, err)
	}
	if property.OwnerID != ownerID {
		return ErrForbidden
	}
	return mongo.ErrNoDocuments
}

// FindPropertyIDsByOwner includes deleted properties so their inquiries
// stay reachable.
func (s *propertyService) FindPropertyIDsByOwner(ctx context.Context, ownerID utils.SixID) ([]utils.SixID, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := s.db.Collection(propertiesCollection).Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query properties of %s: %w", ownerID, err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID utils.SixID `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode property ids: %w", err)
	}
	ids := make([]utils.SixID, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func (s *propertyService) FindPropertiesByIDs(ctx context.Context, ids []utils.SixID, includeDeleted bool) (map[utils.SixID]*models.Property, error) {
	out := make(map[utils.SixID]*models.Property, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	filter := bson.M{"_id": bson.M{"$in": ids}}
	if !includeDeleted {
		filter["deleted"] = false
	}
	cursor, err := s.db.Collection(propertiesCollection).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query properties: %w", err)
	}
	defer cursor.Close(ctx)

	var properties []models.Property
	if err := cursor.All(ctx, &properties); err != nil {
		return nil, fmt.Errorf("failed to decode properties: %w", err)
	}
	for i := range properties {
		out[properties[i].ID] = &properties[i]
	}
	return out, nil
}

func (s *propertyService) ListOwnerProperties(ctx context.Context, ownerID utils.SixID) ([]models.Property, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.db.Collection(propertiesCollection).Find(ctx, bson.M{"owner_id": ownerID, "deleted": false}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list properties of %s: %w", ownerID, err)
	}
	defer cursor.Close(ctx)

	properties := []models.Property{}
	if err := cursor.All(ctx, &properties); err != nil {
		return nil, fmt.Errorf("failed to decode properties: %w", err)
	}
	return properties, nil
}

// SearchProperties runs a filtered, sorted, cursor-paginated search.
func (s *propertyService) SearchProperties(ctx context.Context, q PropertyQuery) (*SearchResult, error) {
	collection := s.db.Collection(propertiesCollection)

	limit := q.Limit
	if limit <= 0 {
		limit = s.cfg.SearchDefaultLimit
	}
	if limit > s.cfg.SearchMaxLimit {
		limit = s.cfg.SearchMaxLimit
	}
	sortBy := q.Sort
	if sortBy == "" {
		sortBy = SortNewest
	}

	filter, err := buildSearchFilter(q)
	if err != nil {
		return nil, err
	}

	result := &SearchResult{Properties: []models.Property{}}
	if q.WithCount {
		count, err := collection.CountDocuments(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to count properties: %w", err)
		}
		result.Count = &count
	}

	if q.Cursor != "" {
		if err := applyCursor(filter, sortBy, q.Cursor); err != nil {
			return nil, err
		}
	}

	opts := options.Find().SetLimit(int64(limit + 1)).SetSort(sortDocument(sortBy))
	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to execute property search query: %w", err)
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, &result.Properties); err != nil {
		return nil, fmt.Errorf("failed to decode property search results: %w", err)
	}

	if len(result.Properties) > limit {
		result.Properties = result.Properties[:limit]
		result.NextCursor = encodeCursor(sortBy, &result.Properties[limit-1])
	}
	return result, nil
}

func buildSearchFilter(q PropertyQuery) (bson.M, error) {
	filter := bson.M{"deleted": false}

	if text := strings.TrimSpace(q.Text); text != "" {
		filter["$text"] = bson.M{"$search": text}
	}
	if q.City != "" {
		filter["address.city"] = q.City
	}
	if q.State != "" {
		filter["address.state"] = q.State
	}
	if q.ListingType != "" {
		if !q.ListingType.Valid() {
			return nil, models.NewValidationError("listing_type", "must be sale or rent")
		}
		filter["listing_type"] = q.ListingType
	}
	if q.MinPrice != nil || q.MaxPrice != nil {
		price := bson.M{}
		if q.MinPrice != nil {
			price["$gte"] = *q.MinPrice
		}
		if q.MaxPrice != nil {
			price["$lte"] = *q.MaxPrice
		}
		filter["price"] = price
	}
	if q.MinBedrooms > 0 {
		filter["bedrooms"] = bson.M{"$gte": q.MinBedrooms}
	}
	if q.MinBathrooms > 0 {
		filter["bathrooms"] = bson.M{"$gte": q.MinBathrooms}
	}
	if len(q.Statuses) > 0 {
		for _, st := range q.Statuses {
			if !st.Valid() {
				return nil, models.NewValidationError("status", fmt.Sprintf("'%s' is not a valid status", st))
			}
		}
		filter["status"] = bson.M{"$in": q.Statuses}
	}
	if len(q.PropertyTypes) > 0 {
		filter["property_type"] = bson.M{"$in": q.PropertyTypes}
	}
	if q.OwnerID != nil {
		filter["owner_id"] = *q.OwnerID
	}
	return filter, nil
}

func sortDocument(sortBy string) bson.D {
	switch sortBy {
	case SortPriceAsc:
		return bson.D{{Key: "price", Value: 1}, {Key: "_id", Value: 1}}
	case SortPriceDesc:
		return bson.D{{Key: "price", Value: -1}, {Key: "_id", Value: -1}}
	default:
		return bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	}
}

// encodeCursor renders "<sort value>_<id>" for the last item of a page.
func encodeCursor(sortBy string, last *models.Property) string {
	switch sortBy {
	case SortPriceAsc, SortPriceDesc:
		return strconv.FormatFloat(last.Price, 'g', -1, 64) + "_" + last.ID.String()
	default:
		return strconv.FormatInt(last.CreatedAt.UnixMilli(), 10) + "_" + last.ID.String()
	}
}

// applyCursor restricts filter to items after the cursor in sortBy order.
func applyCursor(filter bson.M, sortBy, cursor string) error {
	value, idPart, ok := strings.Cut(cursor, "_")
	if !ok {
		return fmt.Errorf("%w: malformed cursor", ErrInvalidInput)
	}
	lastID, err := utils.ParseSixID(idPart)
	if err != nil || lastID.IsZero() {
		return fmt.Errorf("%w: malformed cursor", ErrInvalidInput)
	}

	switch sortBy {
	case SortPriceAsc, SortPriceDesc:
		price, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%w: malformed cursor", ErrInvalidInput)
		}
		op := "$lt"
		if sortBy == SortPriceAsc {
			op = "$gt"
		}
		filter["$or"] = bson.A{
			bson.M{"price": price, "_id": bson.M{op: lastID}},
			bson.M{"price": bson.M{op: price}},
		}
	default:
		ms, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: malformed cursor", ErrInvalidInput)
		}
		cursorTime := time.UnixMilli(ms).UTC()
		filter["$or"] = bson.A{
			bson.M{"created_at": cursorTime, "_id": bson.M{"$lt": lastID}},
			bson.M{"created_at": bson.M{"$lt": cursorTime}},
		}
	}
	return nil
}
