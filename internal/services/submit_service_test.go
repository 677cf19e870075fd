package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/teskapnj/book-container/internal/config"
	"github.com/teskapnj/book-container/internal/models"
)

func submitTestConfig() *config.Config {
	return &config.Config{MinBundleItems: 3, MaxItemPrice: 10}
}

func submitItems(n int) []*models.WorkingItem {
	items := make([]*models.WorkingItem, 0, n)
	for i := 0; i < n; i++ {
		item := models.NewWorkingItem()
		item.Code = string(rune('a' + i))
		item.Price = 2
		item.UploadImage = []byte{0xff, 0xd8, byte(i)}
		items = append(items, &item)
	}
	return items
}

func newSubmitFixture(cfg *config.Config) (*MockObjectStorage, *MockListingService, *MockDraftService, *MockSubmissionNotifier, ISubmitService) {
	store := new(MockObjectStorage)
	listings := new(MockListingService)
	drafts := new(MockDraftService)
	notifier := new(MockSubmissionNotifier)
	svc := NewSubmitService(cfg, NewBundleService(cfg), listings, drafts, store, notifier)
	return store, listings, drafts, notifier, svc
}

func TestSubmitFailedUploadDegradesToNilImage(t *testing.T) {
	cfg := submitTestConfig()
	store, listings, drafts, notifier, svc := newSubmitFixture(cfg)
	items := submitItems(3)

	store.On("Upload", mock.Anything, "vendor-1", "a", mock.Anything).Return("https://img/a.jpg", nil)
	store.On("Upload", mock.Anything, "vendor-1", "b", mock.Anything).Return("", errors.New("s3 unavailable"))
	store.On("Upload", mock.Anything, "vendor-1", "c", mock.Anything).Return("https://img/c.jpg", nil)
	listings.On("Create", mock.Anything, mock.Anything).Return(nil)
	drafts.On("Clear", mock.Anything, "vendor-1").Return(nil)
	notifier.On("NotifySubmissionReceived", mock.Anything, mock.Anything).Return(nil)

	listing, err := svc.Submit(context.Background(), "vendor-1", "Vendor One", "vendor.one@example.com", items)
	require.NoError(t, err)
	require.Len(t, listing.BundleItems, 3)

	// Scan order preserved; the failed upload becomes a nil image, not a
	// dropped item.
	assert.Equal(t, "a", listing.BundleItems[0].Code)
	assert.Equal(t, "b", listing.BundleItems[1].Code)
	assert.Equal(t, "c", listing.BundleItems[2].Code)
	require.NotNil(t, listing.BundleItems[0].ImageURL)
	assert.Equal(t, "https://img/a.jpg", *listing.BundleItems[0].ImageURL)
	assert.Nil(t, listing.BundleItems[1].ImageURL)
	require.NotNil(t, listing.BundleItems[2].ImageURL)

	assert.Equal(t, 3, listing.TotalItems)
	assert.InDelta(t, 6.0, listing.TotalValue, 0.001)
	assert.Equal(t, models.StatusPending, listing.Status)
	assert.Equal(t, "Vendor One", listing.VendorName)
}

func TestSubmitPersistFailureKeepsDraft(t *testing.T) {
	cfg := submitTestConfig()
	store, listings, drafts, _, svc := newSubmitFixture(cfg)
	items := submitItems(3)

	store.On("Upload", mock.Anything, "vendor-1", mock.Anything, mock.Anything).Return("https://img/x.jpg", nil)
	listings.On("Create", mock.Anything, mock.Anything).Return(errors.New("mongo down"))

	_, err := svc.Submit(context.Background(), "vendor-1", "Vendor One", "vendor.one@example.com", items)
	require.Error(t, err)

	// The draft must survive a failed persist so the vendor can retry.
	drafts.AssertNotCalled(t, "Clear", mock.Anything, mock.Anything)
}

func TestSubmitClearsDraftAndNotifiesOnSuccess(t *testing.T) {
	cfg := submitTestConfig()
	_, listings, drafts, notifier, svc := newSubmitFixture(cfg)

	items := submitItems(3)
	for _, item := range items {
		item.UploadImage = nil // metadata-only submission
	}

	listings.On("Create", mock.Anything, mock.Anything).Return(nil)
	drafts.On("Clear", mock.Anything, "vendor-2").Return(nil)
	notifier.On("NotifySubmissionReceived", mock.Anything, mock.Anything).Return(nil)

	listing, err := svc.Submit(context.Background(), "vendor-2", "Vendor Two", "vendor.two@example.com", items)
	require.NoError(t, err)
	for _, li := range listing.BundleItems {
		assert.Nil(t, li.ImageURL)
	}
	assert.Equal(t, "vendor.two@example.com", listing.VendorEmail)

	drafts.AssertCalled(t, "Clear", mock.Anything, "vendor-2")
	notifier.AssertCalled(t, "NotifySubmissionReceived", mock.Anything, listing)
}

func TestSubmitRejectsUndersizedBundle(t *testing.T) {
	cfg := submitTestConfig()
	store, listings, _, _, svc := newSubmitFixture(cfg)

	_, err := svc.Submit(context.Background(), "vendor-3", "Vendor Three", "", submitItems(2))
	assert.ErrorIs(t, err, ErrBelowMinimum)
	store.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	listings.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSubmitNotifierFailureDoesNotFailSubmission(t *testing.T) {
	cfg := submitTestConfig()
	_, listings, drafts, notifier, svc := newSubmitFixture(cfg)

	items := submitItems(3)
	for _, item := range items {
		item.UploadImage = nil
	}

	listings.On("Create", mock.Anything, mock.Anything).Return(nil)
	drafts.On("Clear", mock.Anything, "vendor-4").Return(nil)
	notifier.On("NotifySubmissionReceived", mock.Anything, mock.Anything).Return(errors.New("queue down"))

	_, err := svc.Submit(context.Background(), "vendor-4", "Vendor Four", "", items)
	assert.NoError(t, err)
}
