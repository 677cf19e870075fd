package models

import (
	"github.com/teskapnj/book-container/internal/utils"
)

// Condition is the physical state of a scanned item.
type Condition string

const (
	ConditionLikeNew Condition = "like-new"
	ConditionGood    Condition = "good"
)

// Category classifies a bundle item by media type.
type Category string

const (
	CategoryBook Category = "book"
	CategoryCD   Category = "cd"
	CategoryDVD  Category = "dvd"
	CategoryGame Category = "game"
	CategoryMix  Category = "mix"
)

var categoryLabels = map[Category]string{
	CategoryBook: "Book",
	CategoryCD:   "CD",
	CategoryDVD:  "DVD",
	CategoryGame: "Game",
	CategoryMix:  "Mixed Media",
}

var conditionLabels = map[Condition]string{
	ConditionLikeNew: "Like New",
	ConditionGood:    "Good",
}

// Label returns the display name of the category, e.g. "Mixed Media" for mix.
func (c Category) Label() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return string(c)
}

// Label returns the display name of the condition, e.g. "Like New".
func (c Condition) Label() string {
	if label, ok := conditionLabels[c]; ok {
		return label
	}
	return string(c)
}

// CategoryFromCatalog maps a catalog service category tag to the local enum.
// Unknown tags default to book.
func CategoryFromCatalog(tag string) Category {
	switch tag {
	case "books":
		return CategoryBook
	case "cds":
		return CategoryCD
	case "dvds":
		return CategoryDVD
	case "games":
		return CategoryGame
	default:
		return CategoryBook
	}
}

// ImageStats reports the effect of the image optimization pass.
type ImageStats struct {
	OriginalBytes      int     `bson:"original_bytes" json:"original_bytes"`
	OptimizedBytes     int     `bson:"optimized_bytes" json:"optimized_bytes"`
	CompressionRatio   float64 `bson:"compression_ratio" json:"compression_ratio"` // optimized size as % of original
	CompressionApplied bool    `bson:"compression_applied" json:"compression_applied"`
}

// WorkingItem is the mutable, pre-submission form of a bundle entry.
// The binary image fields never leave the process: they are excluded from
// both draft persistence and JSON responses.
type WorkingItem struct {
	ID            utils.SixID      `bson:"id,omitempty" json:"id,omitempty"`
	Code          string           `bson:"code" json:"code"`
	Condition     Condition        `bson:"condition" json:"condition"`
	Quantity      int              `bson:"quantity" json:"quantity"`
	Price         float64          `bson:"price" json:"price"`
	Category      Category         `bson:"category" json:"category"`
	Product       *ProductSnapshot `bson:"product,omitempty" json:"product,omitempty"`
	OriginalPrice *float64         `bson:"original_price,omitempty" json:"original_price,omitempty"`
	PreviewImage  []byte           `bson:"-" json:"-"`
	UploadImage   []byte           `bson:"-" json:"-"`
	ImageStats    *ImageStats      `bson:"-" json:"image_stats,omitempty"`
}

// NewWorkingItem returns a working item reset to form defaults.
func NewWorkingItem() WorkingItem {
	return WorkingItem{
		Condition: ConditionLikeNew,
		Quantity:  1,
		Price:     0,
		Category:  CategoryBook,
	}
}

// HasImage reports whether an upload-ready binary is attached.
func (w WorkingItem) HasImage() bool {
	return len(w.UploadImage) > 0
}

// Sanitized returns a copy with every image-derived field cleared.
// Draft records must only ever contain primitive fields.
func (w WorkingItem) Sanitized() WorkingItem {
	w.PreviewImage = nil
	w.UploadImage = nil
	w.ImageStats = nil
	return w
}

// ToLineItem converts a committed working item into its immutable
// post-submission form, resolving the uploaded image URL (nil when the
// upload failed or no image was attached).
func (w WorkingItem) ToLineItem(imageURL *string) LineItem {
	return LineItem{
		ID:        w.ID,
		Code:      w.Code,
		Condition: w.Condition,
		Quantity:  w.Quantity,
		Price:     w.Price,
		Category:  w.Category,
		ImageURL:  imageURL,
	}
}

// LineItem is one priced, categorized unit within a persisted listing.
type LineItem struct {
	ID        utils.SixID `bson:"id" json:"id"`
	Code      string      `bson:"code" json:"code"`
	Condition Condition   `bson:"condition" json:"condition"`
	Quantity  int         `bson:"quantity" json:"quantity"`
	Price     float64     `bson:"price" json:"price"`
	Category  Category    `bson:"category" json:"category"`
	ImageURL  *string     `bson:"image" json:"image"`
}
