package models

// ProductSnapshot is the catalog service's view of a scanned product.
// Immutable once fetched.
type ProductSnapshot struct {
	Title     string  `bson:"title" json:"title"`
	Price     float64 `bson:"price" json:"price"` // catalog list price
	Image     string  `bson:"image,omitempty" json:"image,omitempty"`
	SalesRank *int    `bson:"sales_rank,omitempty" json:"sales_rank,omitempty"`
	Category  string  `bson:"category,omitempty" json:"category,omitempty"`
}

// PricingDecision is the catalog service's accept/reject verdict for a
// scanned code. OurPrice is present iff Accepted. Message carries the
// vendor-facing explanation of a rejection.
type PricingDecision struct {
	Accepted bool     `json:"accepted"`
	OurPrice *float64 `json:"ourPrice,omitempty"`
	Category string   `json:"category"`
	Message  string   `json:"message,omitempty"`
}
