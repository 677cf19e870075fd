package services

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/teskapnj/book-container/internal/models"
	"github.com/teskapnj/book-container/internal/utils"
)

// --- Mocks ---

// MockLookupClient
type MockLookupClient struct {
	mock.Mock
}

func (m *MockLookupClient) Lookup(ctx context.Context, code string) (*models.ProductSnapshot, *models.PricingDecision, error) {
	args := m.Called(ctx, code)
	var product *models.ProductSnapshot
	var decision *models.PricingDecision
	if args.Get(0) != nil {
		product = args.Get(0).(*models.ProductSnapshot)
	}
	if args.Get(1) != nil {
		decision = args.Get(1).(*models.PricingDecision)
	}
	return product, decision, args.Error(2)
}

// MockObjectStorage
type MockObjectStorage struct {
	mock.Mock
}

func (m *MockObjectStorage) Upload(ctx context.Context, vendorID, code string, data []byte) (string, error) {
	args := m.Called(ctx, vendorID, code, data)
	return args.String(0), args.Error(1)
}

func (m *MockObjectStorage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockObjectStorage) Probe(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockListingService
type MockListingService struct {
	mock.Mock
}

func (m *MockListingService) Create(ctx context.Context, listing *models.Listing) error {
	args := m.Called(ctx, listing)
	return args.Error(0)
}

func (m *MockListingService) FindByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) ListByStatus(ctx context.Context, status models.ListingStatus, limit int) ([]models.Listing, error) {
	args := m.Called(ctx, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Listing), args.Error(1)
}

func (m *MockListingService) ListAll(ctx context.Context, limit int) ([]models.Listing, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Listing), args.Error(1)
}

func (m *MockListingService) CountByStatus(ctx context.Context) (map[models.ListingStatus]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[models.ListingStatus]int64), args.Error(1)
}

func (m *MockListingService) IncrementViews(ctx context.Context, listingID utils.SixID) error {
	args := m.Called(ctx, listingID)
	return args.Error(0)
}

func (m *MockListingService) Approve(ctx context.Context, listingID utils.SixID, adminID, adminNotes string) error {
	args := m.Called(ctx, listingID, adminID, adminNotes)
	return args.Error(0)
}

func (m *MockListingService) Reject(ctx context.Context, listingID utils.SixID, adminID, reason, adminNotes string) error {
	args := m.Called(ctx, listingID, adminID, reason, adminNotes)
	return args.Error(0)
}

func (m *MockListingService) Watch(ctx context.Context) (*ListingFeed, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ListingFeed), args.Error(1)
}

// MockDraftService
type MockDraftService struct {
	mock.Mock
}

func (m *MockDraftService) Save(vendorID string, items []*models.WorkingItem, current models.WorkingItem) {
	m.Called(vendorID, items, current)
}

func (m *MockDraftService) Flush(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockDraftService) Load(ctx context.Context, vendorID string) ([]*models.WorkingItem, models.WorkingItem, error) {
	args := m.Called(ctx, vendorID)
	var items []*models.WorkingItem
	if args.Get(0) != nil {
		items = args.Get(0).([]*models.WorkingItem)
	}
	return items, args.Get(1).(models.WorkingItem), args.Error(2)
}

func (m *MockDraftService) Clear(ctx context.Context, vendorID string) error {
	args := m.Called(ctx, vendorID)
	return args.Error(0)
}

func (m *MockDraftService) Available() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockDraftService) Close() {
	m.Called()
}

// MockSubmissionNotifier
type MockSubmissionNotifier struct {
	mock.Mock
}

func (m *MockSubmissionNotifier) NotifySubmissionReceived(ctx context.Context, listing *models.Listing) error {
	args := m.Called(ctx, listing)
	return args.Error(0)
}
