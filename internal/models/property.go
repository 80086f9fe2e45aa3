package models

import (
	"time"

	"github.com/teamhub254/Homeseeker-sub000/internal/utils"
)

type PropertyStatus string

const (
	PropertyAvailable PropertyStatus = "available"
	PropertyPending   PropertyStatus = "pending"
	PropertySold      PropertyStatus = "sold"
	PropertyRented    PropertyStatus = "rented"
)

func (s PropertyStatus) Valid() bool {
	switch s {
	case PropertyAvailable, PropertyPending, PropertySold, PropertyRented:
		return true
	}
	return false
}

type ListingType string

const (
	ListingSale ListingType = "sale"
	ListingRent ListingType = "rent"
)

func (t ListingType) Valid() bool {
	return t == ListingSale || t == ListingRent
}

// PropertyTypes lists the accepted property_type values.
var PropertyTypes = []string{"house", "apartment", "condo", "townhouse", "land", "commercial"}

func IsValidPropertyType(t string) bool {
	for _, v := range PropertyTypes {
		if v == t {
			return true
		}
	}
	return false
}

type Address struct {
	Street     string `bson:"street" json:"street"`
	City       string `bson:"city" json:"city"`
	State      string `bson:"state" json:"state"`
	PostalCode string `bson:"postal_code" json:"postal_code"`
	Country    string `bson:"country" json:"country"`
}

// PropertyImage is one processed image in the property-images bucket.
type PropertyImage struct {
	Key string `bson:"key" json:"key"`
	URL string `bson:"url" json:"url"`
}

// Property is a listing owned by exactly one lister.
type Property struct {
	ID           utils.SixID     `bson:"_id" json:"id"`
	OwnerID      utils.SixID     `bson:"owner_id" json:"owner_id"`
	Title        string          `bson:"title" json:"title"`
	Description  string          `bson:"description" json:"description"`
	Address      Address         `bson:"address" json:"address"`
	Price        float64         `bson:"price" json:"price"`
	ListingType  ListingType     `bson:"listing_type" json:"listing_type"`
	PropertyType string          `bson:"property_type" json:"property_type"`
	Bedrooms     int             `bson:"bedrooms" json:"bedrooms"`
	Bathrooms    int             `bson:"bathrooms" json:"bathrooms"`
	Area         float64         `bson:"area" json:"area"`
	Images       []PropertyImage `bson:"images" json:"images"`
	Status       PropertyStatus  `bson:"status" json:"status"`
	Deleted      bool            `bson:"deleted" json:"-"`
	CreatedAt    time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `bson:"updated_at" json:"updated_at"`
}

// PropertySummary is the slice of a property joined onto inquiries and threads.
type PropertySummary struct {
	ID         utils.SixID    `bson:"_id" json:"id"`
	OwnerID    utils.SixID    `bson:"owner_id" json:"owner_id"`
	Title      string         `bson:"title" json:"title"`
	Address    Address        `bson:"address" json:"address"`
	Price      float64        `bson:"price" json:"price"`
	Status     PropertyStatus `bson:"status" json:"status"`
	CoverImage string         `bson:"-" json:"cover_image,omitempty"`
}

func (p *Property) Summary() *PropertySummary {
	s := &PropertySummary{
		ID:      p.ID,
		OwnerID: p.OwnerID,
		Title:   p.Title,
		Address: p.Address,
		Price:   p.Price,
		Status:  p.Status,
	}
	if len(p.Images) > 0 {
		s.CoverImage = p.Images[0].URL
	}
	return s
}

// PropertyInput is the payload for creating a property.
type PropertyInput struct {
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	Address      Address     `json:"address"`
	Price        float64     `json:"price"`
	ListingType  ListingType `json:"listing_type"`
	PropertyType string      `json:"property_type"`
	Bedrooms     int         `json:"bedrooms"`
	Bathrooms    int         `json:"bathrooms"`
	Area         float64     `json:"area"`
}

func (in *PropertyInput) Validate() error {
	if in.Title == "" {
		return NewValidationError("title", "is required")
	}
	if in.Address.City == "" {
		return NewValidationError("address.city", "is required")
	}
	if in.Price < 0 {
		return NewValidationError("price", "must not be negative")
	}
	if in.ListingType == "" {
		in.ListingType = ListingSale
	}
	if !in.ListingType.Valid() {
		return NewValidationError("listing_type", "must be sale or rent")
	}
	if in.PropertyType != "" && !IsValidPropertyType(in.PropertyType) {
		return NewValidationError("property_type", "is not a known property type")
	}
	if in.Bedrooms < 0 || in.Bathrooms < 0 || in.Area < 0 {
		return NewValidationError("rooms", "counts and area must not be negative")
	}
	return nil
}
