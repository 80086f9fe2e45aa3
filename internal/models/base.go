package models

import (
	"github.com/teamhub254/Homeseeker-sub000/internal/utils"
)

// Base carries the SixID primary key shared by most documents.
type Base struct {
	ID utils.SixID `bson:"_id" json:"id"`
}

// GenIDIfEmpty assigns a fresh id when none is set.
func (m *Base) GenIDIfEmpty() {
	if m.ID.IsZero() {
		m.GenID()
	}
}

// GenID assigns a fresh id.
func (m *Base) GenID() {
	m.ID = utils.NewSixID()
}

func NewBase() Base {
	return Base{ID: utils.NewSixID()}
}
