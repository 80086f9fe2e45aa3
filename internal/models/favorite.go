package models

import (
	"time"

	"github.com/teamhub254/Homeseeker-sub000/internal/utils"
)

type Favorite struct {
	ID         utils.SixID `bson:"_id" json:"id"`
	UserID     utils.SixID `bson:"user_id" json:"user_id"`
	PropertyID utils.SixID `bson:"property_id" json:"property_id"`
	CreatedAt  time.Time   `bson:"created_at" json:"created_at"`
}

// FavoriteItem is a favorite joined with its property. Property is nil
// when the listing has since been deleted.
type FavoriteItem struct {
	Favorite `bson:",inline"`
	Property *Property `bson:"-" json:"property"`
}
