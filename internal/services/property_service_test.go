package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/teamhub254/Homeseeker-sub000/internal/models"
	"github.com/teamhub254/Homeseeker-sub000/internal/utils"
)

func TestCursor_NewestRoundTrip(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	p := &models.Property{ID: utils.NewSixID(), CreatedAt: created}

	cursor := encodeCursor(SortNewest, p)
	filter := bson.M{}
	require.NoError(t, applyCursor(filter, SortNewest, cursor))

	or, ok := filter["$or"].(bson.A)
	require.True(t, ok)
	require.Len(t, or, 2)
	first := or[0].(bson.M)
	assert.Equal(t, created, first["created_at"])
	assert.Equal(t, bson.M{"$lt": p.ID}, first["_id"])
	assert.Equal(t, bson.M{"created_at": bson.M{"$lt": created}}, or[1])
}

func TestCursor_PriceDirections(t *testing.T) {
	p := &models.Property{ID: utils.NewSixID(), Price: 1250.5}

	asc := bson.M{}
	require.NoError(t, applyCursor(asc, SortPriceAsc, encodeCursor(SortPriceAsc, p)))
	assert.Equal(t, bson.M{"price": bson.M{"$gt": 1250.5}}, asc["$or"].(bson.A)[1])

	desc := bson.M{}
	require.NoError(t, applyCursor(desc, SortPriceDesc, encodeCursor(SortPriceDesc, p)))
	assert.Equal(t, bson.M{"price": bson.M{"$lt": 1250.5}}, desc["$or"].(bson.A)[1])
}

func TestCursor_Malformed(t *testing.T) {
	for _, c := range []string{"garbage", "abc_" + utils.NewSixID().String(), "123_notanid", "123_"} {
		err := applyCursor(bson.M{}, SortNewest, c)
		assert.ErrorIs(t, err, ErrInvalidInput, c)
	}
}

func TestBuildSearchFilter(t *testing.T) {
	minPrice, maxPrice := 100.0, 500.0
	owner := utils.NewSixID()
	filter, err := buildSearchFilter(PropertyQuery{
		Text:          " garden ",
		City:          "Nairobi",
		ListingType:   models.ListingRent,
		MinPrice:      &minPrice,
		MaxPrice:      &maxPrice,
		MinBedrooms:   2,
		Statuses:      []models.PropertyStatus{models.PropertyAvailable},
		PropertyTypes: []string{"house", "condo"},
		OwnerID:       &owner,
	})
	require.NoError(t, err)
	assert.Equal(t, false, filter["deleted"])
	assert.Equal(t, bson.M{"$search": "garden"}, filter["$text"])
	assert.Equal(t, "Nairobi", filter["address.city"])
	assert.Equal(t, bson.M{"$gte": 100.0, "$lte": 500.0}, filter["price"])
	assert.Equal(t, bson.M{"$gte": 2}, filter["bedrooms"])
	assert.Equal(t, bson.M{"$in": []string{"house", "condo"}}, filter["property_type"])
	assert.Equal(t, owner, filter["owner_id"])
	assert.NotContains(t, filter, "bathrooms")

	_, err = buildSearchFilter(PropertyQuery{Statuses: []models.PropertyStatus{"gone"}})
	assert.Error(t, err)
	_, err = buildSearchFilter(PropertyQuery{ListingType: "lease"})
	assert.Error(t, err)
}

func TestPropertyUpdates(t *testing.T) {
	set, err := propertyUpdates(map[string]interface{}{
		"title":    " Loft ",
		"bedrooms": 3.0,
		"status":   "sold",
		"address":  map[string]interface{}{"city": "Mombasa", "street": "1 Beach Rd"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Loft", set["title"])
	assert.Equal(t, 3, set["bedrooms"])
	assert.Equal(t, models.Address{City: "Mombasa", Street: "1 Beach Rd"}, set["address"])

	bad := []map[string]interface{}{
		{"owner_id": "x"},
		{"bedrooms": 2.5},
		{"price": -1.0},
		{"status": "gone"},
		{"title": ""},
		{"address": map[string]interface{}{"street": "no city"}},
		{},
	}
	for _, u := range bad {
		_, err := propertyUpdates(u)
		assert.Error(t, err, u)
	}
}

func TestPropertyService_CRUD(t *testing.T) {
	s := setupServices(t, "testdb_property_crud")
	ctx := context.Background()
	lister := s.signUp(t, "lister@example.com", models.RoleLister)
	renter := s.signUp(t, "renter@example.com", models.RoleRenter)

	_, err := s.properties.CreateProperty(ctx, renter.ID, models.PropertyInput{Title: "x", Address: models.Address{City: "y"}})
	assert.ErrorIs(t, err, ErrNotLister)

	p := s.createProperty(t, lister.ID, "Garden flat", 1200)
	assert.Equal(t, models.PropertyAvailable, p.Status)

	_, err = s.properties.UpdateProperty(ctx, p.ID, renter.ID, map[string]interface{}{"price": 1000.0})
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := s.properties.UpdateProperty(ctx, p.ID, lister.ID, map[string]interface{}{"price": 1000.0})
	require.NoError(t, err)
	assert.Equal(t, 1000.0, updated.Price)

	img := models.PropertyImage{Key: "k1", URL: "http://img/k1"}
	require.NoError(t, s.properties.AddImage(ctx, p.ID, img))
	require.NoError(t, s.properties.AddImage(ctx, p.ID, img))
	got, err := s.properties.FindPropertyByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, got.Images, 1)

	require.NoError(t, s.properties.RemoveImage(ctx, p.ID, lister.ID, "k1"))
	require.NoError(t, s.properties.DeleteProperty(ctx, p.ID, lister.ID))
	_, err = s.properties.FindPropertyByID(ctx, p.ID)
	assert.True(t, errors.Is(err, mongo.ErrNoDocuments))

	ids, err := s.properties.FindPropertyIDsByOwner(ctx, lister.ID)
	require.NoError(t, err)
	assert.Equal(t, []utils.SixID{p.ID}, ids)
}

func TestPropertyService_SearchPagination(t *testing.T) {
	s := setupServices(t, "testdb_property_search")
	ctx := context.Background()
	lister := s.signUp(t, "lister@example.com", models.RoleLister)

	for _, price := range []float64{300, 100, 200, 400, 200} {
		s.createProperty(t, lister.ID, "Home", price)
	}

	var prices []float64
	cursor := ""
	pages := 0
	for {
		res, err := s.properties.SearchProperties(ctx, PropertyQuery{Sort: SortPriceAsc, Limit: 2, Cursor: cursor, WithCount: pages == 0})
		require.NoError(t, err)
		if pages == 0 {
			require.NotNil(t, res.Count)
			assert.Equal(t, int64(5), *res.Count)
		}
		for _, p := range res.Properties {
			prices = append(prices, p.Price)
		}
		pages++
		if res.NextCursor == "" {
			break
		}
		cursor = res.NextCursor
	}
	assert.Equal(t, []float64{100, 200, 200, 300, 400}, prices)
	assert.Equal(t, 3, pages)

	minPrice := 250.0
	res, err := s.properties.SearchProperties(ctx, PropertyQuery{MinPrice: &minPrice})
	require.NoError(t, err)
	assert.Len(t, res.Properties, 2)
}
