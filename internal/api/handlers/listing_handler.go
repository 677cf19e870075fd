package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/teskapnj/book-container/internal/models"
	"github.com/teskapnj/book-container/internal/services"
)

// ListingHandler handles the public listing endpoints.
type ListingHandler struct {
	listingService services.IListingService
}

// NewListingHandler creates a new ListingHandler.
func NewListingHandler(listingService services.IListingService) *ListingHandler {
	return &ListingHandler{listingService: listingService}
}

// GetListing handles GET /v1/listings/:id. Only approved listings are
// visible publicly; every successful fetch bumps the view counter.
func (h *ListingHandler) GetListing(c *gin.Context) {
	id, ok := parseListingID(c)
	if !ok {
		return
	}

	listing, err := h.listingService.FindByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch listing"})
		return
	}
	if listing.Status != models.StatusApproved {
		c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
		return
	}

	if err := h.listingService.IncrementViews(c.Request.Context(), id); err != nil {
		log.Printf("WARN: failed to increment views for %s: %v", id.String(), err)
	} else {
		listing.Views++
	}
	c.JSON(http.StatusOK, listing)
}

// ListApproved handles GET /v1/listings: the public browse page.
func (h *ListingHandler) ListApproved(c *gin.Context) {
	listings, err := h.listingService.ListByStatus(c.Request.Context(), models.StatusApproved, 100)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list listings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"listings": listings})
}
