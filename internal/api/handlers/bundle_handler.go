package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/teskapnj/book-container/internal/api/middleware"
	"github.com/teskapnj/book-container/internal/config"
	"github.com/teskapnj/book-container/internal/images"
	"github.com/teskapnj/book-container/internal/models"
	"github.com/teskapnj/book-container/internal/services"
)

// BundleHandler handles the vendor-facing scan and submission endpoints.
type BundleHandler struct {
	cfg           *config.Config
	scanService   services.IScanService
	bundleService services.IBundleService
	submitService services.ISubmitService
	draftService  services.IDraftService
	optimizer     images.IOptimizer
}

// NewBundleHandler creates a new BundleHandler.
func NewBundleHandler(cfg *config.Config, scanService services.IScanService, bundleService services.IBundleService,
	submitService services.ISubmitService, draftService services.IDraftService, optimizer images.IOptimizer) *BundleHandler {
	return &BundleHandler{
		cfg:           cfg,
		scanService:   scanService,
		bundleService: bundleService,
		submitService: submitService,
		draftService:  draftService,
		optimizer:     optimizer,
	}
}

func callerIdentity(c *gin.Context) (vendorID, vendorName, vendorEmail string) {
	if v, exists := c.Get(middleware.ContextKeyUserID); exists {
		vendorID, _ = v.(string)
	}
	if v, exists := c.Get(middleware.ContextKeyVendorName); exists {
		vendorName, _ = v.(string)
	}
	if v, exists := c.Get(middleware.ContextKeyVendorEmail); exists {
		vendorEmail, _ = v.(string)
	}
	return vendorID, vendorName, vendorEmail
}

// bundleView is the API shape of the current session state.
type bundleView struct {
	services.ScanSnapshot
	TotalItems   int     `json:"total_items"`
	TotalValue   float64 `json:"total_value"`
	TitlePreview string  `json:"title_preview"`
	CanSubmit    bool    `json:"can_submit"`
	MinItems     int     `json:"min_items"`
	DraftSaved   bool    `json:"draft_saved"`
}

func (h *BundleHandler) view(session *services.ScanSession) bundleView {
	items := session.Items()
	agg := h.bundleService.ComputeAggregates(items)
	return bundleView{
		ScanSnapshot: session.Snapshot(),
		TotalItems:   agg.TotalItems,
		TotalValue:   agg.TotalValue,
		TitlePreview: h.bundleService.ComputeTitle(items),
		CanSubmit:    h.bundleService.ValidateForSubmission(items) == nil,
		MinItems:     h.cfg.MinBundleItems,
		DraftSaved:   h.draftService.Available(),
	}
}

// GetBundle handles GET /v1/bundle
func (h *BundleHandler) GetBundle(c *gin.Context) {
	vendorID, _, _ := callerIdentity(c)
	session := h.scanService.Session(vendorID)
	c.JSON(http.StatusOK, h.view(session))
}

// ScanRequest is the body of POST /v1/bundle/scan.
type ScanRequest struct {
	Code string `json:"code" binding:"required"`
}

// Scan handles POST /v1/bundle/scan: kicks off the price lookup for a code.
func (h *BundleHandler) Scan(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code is required"})
		return
	}

	vendorID, _, _ := callerIdentity(c)
	session := h.scanService.Session(vendorID)
	session.Scan(c.Request.Context(), req.Code)
	c.JSON(http.StatusAccepted, h.view(session))
}

// AddCurrent handles POST /v1/bundle/items: commits the form item now
// instead of waiting for the auto-add.
func (h *BundleHandler) AddCurrent(c *gin.Context) {
	vendorID, _, _ := callerIdentity(c)
	session := h.scanService.Session(vendorID)
	if err := session.AddCurrent(); err != nil {
		if errors.Is(err, services.ErrItemIncomplete) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.view(session))
}

// ItemUpdateRequest carries the editable fields of an item.
type ItemUpdateRequest struct {
	Code      *string           `json:"code"`
	Condition *models.Condition `json:"condition"`
	Quantity  *int              `json:"quantity"`
	Price     *float64          `json:"price"`
	Category  *models.Category  `json:"category"`
}

func applyItemUpdate(item *models.WorkingItem, req ItemUpdateRequest, maxPrice float64) {
	if req.Code != nil {
		item.Code = *req.Code
	}
	if req.Condition != nil {
		item.Condition = *req.Condition
	}
	if req.Quantity != nil && *req.Quantity > 0 {
		item.Quantity = *req.Quantity
	}
	if req.Price != nil && *req.Price >= 0 {
		price := *req.Price
		if price > maxPrice {
			price = maxPrice
		}
		item.Price = price
	}
	if req.Category != nil {
		item.Category = *req.Category
	}
}

// UpdateCurrent handles PUT /v1/bundle/current: manual edits to the form
// item. This cancels a pending auto-add.
func (h *BundleHandler) UpdateCurrent(c *gin.Context) {
	var req ItemUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	vendorID, _, _ := callerIdentity(c)
	session := h.scanService.Session(vendorID)
	session.UpdateCurrent(func(item *models.WorkingItem) {
		applyItemUpdate(item, req, h.cfg.MaxItemPrice)
	})
	c.JSON(http.StatusOK, h.view(session))
}

// DiscardCurrent handles DELETE /v1/bundle/current.
func (h *BundleHandler) DiscardCurrent(c *gin.Context) {
	vendorID, _, _ := callerIdentity(c)
	session := h.scanService.Session(vendorID)
	session.DiscardCurrent()
	c.JSON(http.StatusOK, h.view(session))
}

func itemIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item index"})
		return 0, false
	}
	return index, true
}

// UpdateItem handles PUT /v1/bundle/items/:index.
func (h *BundleHandler) UpdateItem(c *gin.Context) {
	index, ok := itemIndex(c)
	if !ok {
		return
	}
	var req ItemUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	vendorID, _, _ := callerIdentity(c)
	session := h.scanService.Session(vendorID)
	err := session.UpdateItem(index, func(item *models.WorkingItem) {
		applyItemUpdate(item, req, h.cfg.MaxItemPrice)
	})
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.view(session))
}

// RemoveItem handles DELETE /v1/bundle/items/:index.
func (h *BundleHandler) RemoveItem(c *gin.Context) {
	index, ok := itemIndex(c)
	if !ok {
		return
	}

	vendorID, _, _ := callerIdentity(c)
	session := h.scanService.Session(vendorID)
	if err := session.RemoveItem(index); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.view(session))
}

// AttachImage handles POST /v1/bundle/items/:index/image: optimizes an
// uploaded photo and attaches it to the item for later submission.
func (h *BundleHandler) AttachImage(c *gin.Context) {
	index, ok := itemIndex(c)
	if !ok {
		return
	}

	file, _, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, int64(h.cfg.ImageMaxSizeMB)*1024*1024*10))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read image data"})
		return
	}

	result, err := h.optimizer.Optimize(raw, images.Options{
		MaxDimension:       h.cfg.ImageMaxDimension,
		ThumbnailDimension: h.cfg.ThumbnailDimension,
		Quality:            h.cfg.ImageQuality,
		MaxSizeBytes:       int64(h.cfg.ImageMaxSizeMB) * 1024 * 1024,
	})
	if err != nil {
		if errors.Is(err, images.ErrUnsupportedImage) {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported image format"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	vendorID, _, _ := callerIdentity(c)
	session := h.scanService.Session(vendorID)
	err = session.UpdateItem(index, func(item *models.WorkingItem) {
		item.UploadImage = result.Upload
		item.PreviewImage = result.Preview
		stats := result.Stats
		item.ImageStats = &stats
	})
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"image_stats": result.Stats})
}

// ClearBundle handles DELETE /v1/bundle: empties the bundle and its draft.
func (h *BundleHandler) ClearBundle(c *gin.Context) {
	vendorID, _, _ := callerIdentity(c)
	session := h.scanService.Session(vendorID)
	session.Clear()
	if err := h.draftService.Clear(c.Request.Context(), vendorID); err != nil {
		log.Printf("WARN: failed to clear draft for %s: %v", vendorID, err)
	}
	c.JSON(http.StatusOK, h.view(session))
}

// Submit handles POST /v1/bundle/submit.
func (h *BundleHandler) Submit(c *gin.Context) {
	vendorID, vendorName, vendorEmail := callerIdentity(c)
	session := h.scanService.Session(vendorID)

	listing, err := h.submitService.Submit(c.Request.Context(), vendorID, vendorName, vendorEmail, session.Items())
	if err != nil {
		if errors.Is(err, services.ErrBelowMinimum) || errors.Is(err, services.ErrEmptyBundle) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit bundle"})
		return
	}

	h.scanService.Drop(vendorID)
	c.JSON(http.StatusCreated, gin.H{
		"id":          listing.ID.String(),
		"title":       listing.Title,
		"status":      listing.Status,
		"total_items": listing.TotalItems,
		"total_value": listing.TotalValue,
	})
}
