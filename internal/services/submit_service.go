package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/teskapnj/book-container/internal/config"
	"github.com/teskapnj/book-container/internal/models"
	"github.com/teskapnj/book-container/internal/storage"
)

// ISubmissionNotifier enqueues the post-submission notification work.
// Implemented by the asynq task client; failures never abort a submission.
type ISubmissionNotifier interface {
	NotifySubmissionReceived(ctx context.Context, listing *models.Listing) error
}

// ISubmitService turns a validated bundle into a persisted pending listing.
type ISubmitService interface {
	Submit(ctx context.Context, vendorID, vendorName, vendorEmail string, items []*models.WorkingItem) (*models.Listing, error)
}

// submitService implements ISubmitService.
type submitService struct {
	cfg      *config.Config
	bundles  IBundleService
	listings IListingService
	drafts   IDraftService
	storage  storage.IObjectStorage
	notifier ISubmissionNotifier
}

// NewSubmitService creates a new SubmitService. notifier may be nil.
func NewSubmitService(cfg *config.Config, bundles IBundleService, listings IListingService,
	drafts IDraftService, store storage.IObjectStorage, notifier ISubmissionNotifier) ISubmitService {
	return &submitService{
		cfg:      cfg,
		bundles:  bundles,
		listings: listings,
		drafts:   drafts,
		storage:  store,
		notifier: notifier,
	}
}

// Submit validates the bundle, uploads item images concurrently, assembles
// the listing document and persists it in one write. A failed image upload
// degrades that item to a nil image URL; a failed persist aborts the whole
// submission and keeps the draft intact.
func (s *submitService) Submit(ctx context.Context, vendorID, vendorName, vendorEmail string, items []*models.WorkingItem) (*models.Listing, error) {
	if err := s.bundles.ValidateForSubmission(items); err != nil {
		return nil, err
	}

	// Upload images concurrently, joined back by index so line items keep
	// their scan order regardless of upload completion order.
	imageURLs := make([]*string, len(items))
	var wg sync.WaitGroup
	for i, item := range items {
		if !item.HasImage() {
			continue
		}
		wg.Add(1)
		go func(i int, item *models.WorkingItem) {
			defer wg.Done()
			url, err := s.storage.Upload(ctx, vendorID, item.Code, item.UploadImage)
			if err != nil {
				log.Printf("WARN: image upload failed for item %s, submitting without image: %v", item.Code, err)
				return
			}
			imageURLs[i] = &url
		}(i, item)
	}
	wg.Wait()

	lineItems := make([]models.LineItem, 0, len(items))
	for i, item := range items {
		lineItems = append(lineItems, item.ToLineItem(imageURLs[i]))
	}

	agg := s.bundles.ComputeAggregates(items)
	listing := &models.Listing{
		Title:       s.bundles.ComputeTitle(items),
		Description: s.bundles.ComputeDescription(items),
		TotalItems:  agg.TotalItems,
		TotalValue:  agg.TotalValue,
		Status:      models.StatusPending,
		VendorID:    vendorID,
		VendorName:  vendorName,
		VendorEmail: vendorEmail,
		BundleItems: lineItems,
		CreatedAt:   time.Now().UTC(),
		Views:       0,
	}

	if err := s.listings.Create(ctx, listing); err != nil {
		// Draft is deliberately kept so the vendor can retry.
		return nil, fmt.Errorf("failed to persist listing: %w", err)
	}

	if err := s.drafts.Clear(ctx, vendorID); err != nil {
		log.Printf("WARN: listing %s created but draft cleanup failed: %v", listing.ID.String(), err)
	}

	if s.notifier != nil {
		if err := s.notifier.NotifySubmissionReceived(ctx, listing); err != nil {
			log.Printf("WARN: failed to enqueue submission notification for listing %s: %v", listing.ID.String(), err)
		}
	}

	return listing, nil
}
