package models

import (
	"github.com/teskapnj/book-container/internal/utils"
)

// Base carries the document ID shared by all persisted models.
type Base struct {
	ID utils.SixID `bson:"_id,omitempty" json:"id,omitempty"`
}

func (m *Base) GenIDIfEmpty() {
	if m.ID.IsZero() {
		m.GenID()
	}
}

func (m *Base) GenID() {
	m.ID = utils.NewSixID()
}

func NewBase() Base {
	return Base{ID: utils.NewSixID()}
}
