package models

import (
	"time"
)

// ListingStatus is the moderation state of a submitted listing.
// It starts at pending and transitions at most once.
type ListingStatus string

const (
	StatusPending  ListingStatus = "pending"
	StatusApproved ListingStatus = "approved"
	StatusRejected ListingStatus = "rejected"
)

// Listing is the immutable submission derived from a bundle. After creation
// only the moderation fields (status, reviewer metadata) and the view counter
// are ever updated.
type Listing struct {
	Base            `bson:",inline"`
	Title           string        `bson:"title" json:"title"`
	Description     string        `bson:"description" json:"description"`
	TotalItems      int           `bson:"total_items" json:"total_items"`
	TotalValue      float64       `bson:"total_value" json:"total_value"`
	Status          ListingStatus `bson:"status" json:"status"`
	VendorID        string        `bson:"vendor_id" json:"vendor_id"`
	VendorName      string        `bson:"vendor_name" json:"vendor_name"`
	VendorEmail     string        `bson:"vendor_email,omitempty" json:"-"`
	BundleItems     []LineItem    `bson:"bundle_items" json:"bundle_items"`
	CreatedAt       time.Time     `bson:"created_at" json:"created_at"`
	Views           int           `bson:"views" json:"views"`
	ReviewedAt      *time.Time    `bson:"reviewed_at,omitempty" json:"reviewed_at,omitempty"`
	ReviewedBy      string        `bson:"reviewed_by,omitempty" json:"reviewed_by,omitempty"`
	RejectionReason string        `bson:"rejection_reason,omitempty" json:"rejection_reason,omitempty"`
	AdminNotes      string        `bson:"admin_notes,omitempty" json:"admin_notes,omitempty"`
}
