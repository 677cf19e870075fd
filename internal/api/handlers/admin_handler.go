package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/teskapnj/book-container/internal/api/middleware"
	"github.com/teskapnj/book-container/internal/models"
	"github.com/teskapnj/book-container/internal/services"
	"github.com/teskapnj/book-container/internal/utils"
)

// IDecisionNotifier enqueues moderation decision notifications.
// Implemented by tasks.Notifier; nil disables notifications.
type IDecisionNotifier interface {
	NotifyDecision(ctx context.Context, listingID utils.SixID) error
}

// AdminHandler handles the moderation endpoints.
type AdminHandler struct {
	listingService services.IListingService
	notifier       IDecisionNotifier
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(listingService services.IListingService, notifier IDecisionNotifier) *AdminHandler {
	return &AdminHandler{
		listingService: listingService,
		notifier:       notifier,
	}
}

func adminID(c *gin.Context) string {
	if v, exists := c.Get(middleware.ContextKeyUserID); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// ListListings handles GET /v1/admin/listings?status=pending&limit=50
func (h *AdminHandler) ListListings(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 0 || limit > 500 {
		limit = 100
	}

	status := models.ListingStatus(c.Query("status"))
	var listings []models.Listing
	switch status {
	case "":
		listings, err = h.listingService.ListAll(c.Request.Context(), limit)
	case models.StatusPending, models.StatusApproved, models.StatusRejected:
		listings, err = h.listingService.ListByStatus(c.Request.Context(), status, limit)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list listings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"listings": listings})
}

// GetStats handles GET /v1/admin/listings/stats
func (h *AdminHandler) GetStats(c *gin.Context) {
	counts, err := h.listingService.CountByStatus(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count listings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"pending":  counts[models.StatusPending],
		"approved": counts[models.StatusApproved],
		"rejected": counts[models.StatusRejected],
	})
}

func parseListingID(c *gin.Context) (utils.SixID, bool) {
	id, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid listing ID"})
		return utils.SixID{}, false
	}
	return id, true
}

// GetListing handles GET /v1/admin/listings/:id
func (h *AdminHandler) GetListing(c *gin.Context) {
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
	c.JSON(http.StatusOK, listing)
}

// ApproveRequest is the body of the approve endpoint.
type ApproveRequest struct {
	AdminNotes string `json:"admin_notes"`
}

// Approve handles POST /v1/admin/listings/:id/approve
func (h *AdminHandler) Approve(c *gin.Context) {
	id, ok := parseListingID(c)
	if !ok {
		return
	}
	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.listingService.Approve(c.Request.Context(), id, adminID(c), req.AdminNotes); err != nil {
		h.decisionError(c, id, err)
		return
	}
	h.notifyDecision(c, id)
	c.JSON(http.StatusOK, gin.H{"status": models.StatusApproved})
}

// RejectRequest is the body of the reject endpoint.
type RejectRequest struct {
	Reason     string `json:"reason" binding:"required"`
	AdminNotes string `json:"admin_notes"`
}

// Reject handles POST /v1/admin/listings/:id/reject
func (h *AdminHandler) Reject(c *gin.Context) {
	id, ok := parseListingID(c)
	if !ok {
		return
	}
	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reason is required"})
		return
	}

	if err := h.listingService.Reject(c.Request.Context(), id, adminID(c), req.Reason, req.AdminNotes); err != nil {
		if errors.Is(err, services.ErrRejectionReasonRequired) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.decisionError(c, id, err)
		return
	}
	h.notifyDecision(c, id)
	c.JSON(http.StatusOK, gin.H{"status": models.StatusRejected})
}

func (h *AdminHandler) decisionError(c *gin.Context, id utils.SixID, err error) {
	if errors.Is(err, services.ErrAlreadyModerated) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to moderate listing"})
}

func (h *AdminHandler) notifyDecision(c *gin.Context, id utils.SixID) {
	if h.notifier == nil {
		return
	}
	if err := h.notifier.NotifyDecision(c.Request.Context(), id); err != nil {
		log.Printf("WARN: failed to enqueue decision notification for %s: %v", id.String(), err)
	}
}

// Feed handles GET /v1/admin/listings/feed: a server-sent-events stream of
// moderation queue snapshots that refreshes on every listing change.
func (h *AdminHandler) Feed(c *gin.Context) {
	feed, err := h.listingService.Watch(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Live feed unavailable"})
		return
	}
	defer feed.Close()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case snapshot, ok := <-feed.Updates():
			if !ok {
				return false
			}
			c.SSEvent("listings", snapshot)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
