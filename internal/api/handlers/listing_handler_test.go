package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/teskapnj/book-container/internal/api/handlers"
	"github.com/teskapnj/book-container/internal/models"
	"github.com/teskapnj/book-container/internal/utils"
)

func setupListingTest(t *testing.T) (*gin.Engine, *MockListingService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	listings := new(MockListingService)
	handler := handlers.NewListingHandler(listings)

	r := gin.New()
	r.GET("/v1/listings", handler.ListApproved)
	r.GET("/v1/listings/:id", handler.GetListing)
	return r, listings
}

func TestListingHandler_GetApprovedListing(t *testing.T) {
	r, listings := setupListingTest(t)
	listing := pendingListing()
	listing.Status = models.StatusApproved
	listing.Views = 4
	listings.On("FindByID", mock.Anything, listing.ID).Return(listing, nil)
	listings.On("IncrementViews", mock.Anything, listing.ID).Return(nil)

	req, _ := http.NewRequest("GET", "/v1/listings/"+listing.ID.String(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var got models.Listing
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, int64(5), int64(got.Views))
	listings.AssertExpectations(t)
}

func TestListingHandler_PendingListingHidden(t *testing.T) {
	r, listings := setupListingTest(t)
	listing := pendingListing()
	listings.On("FindByID", mock.Anything, listing.ID).Return(listing, nil)

	req, _ := http.NewRequest("GET", "/v1/listings/"+listing.ID.String(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	listings.AssertNotCalled(t, "IncrementViews", mock.Anything, mock.Anything)
}

func TestListingHandler_NotFound(t *testing.T) {
	r, listings := setupListingTest(t)
	id := utils.NewSixID()
	listings.On("FindByID", mock.Anything, id).Return(nil, mongo.ErrNoDocuments)

	req, _ := http.NewRequest("GET", "/v1/listings/"+id.String(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListingHandler_ListApproved(t *testing.T) {
	r, listings := setupListingTest(t)
	approved := pendingListing()
	approved.Status = models.StatusApproved
	listings.On("ListByStatus", mock.Anything, models.StatusApproved, 100).
		Return([]models.Listing{*approved}, nil)

	req, _ := http.NewRequest("GET", "/v1/listings", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Listings []models.Listing `json:"listings"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Listings, 1)
	assert.Equal(t, models.StatusApproved, resp.Listings[0].Status)
	listings.AssertExpectations(t)
}
