package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/teskapnj/book-container/internal/api/handlers"
	"github.com/teskapnj/book-container/internal/api/middleware"
	"github.com/teskapnj/book-container/internal/config"
	"github.com/teskapnj/book-container/internal/images"
	"github.com/teskapnj/book-container/internal/pricing"
	"github.com/teskapnj/book-container/internal/services"
	"github.com/teskapnj/book-container/internal/storage"
)

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, notifier handlers.IDecisionNotifier, submissionNotifier services.ISubmissionNotifier) *gin.Engine {
	// Initialize services needed by API handlers
	lookupClient := pricing.NewLookupClient(cfg)
	draftService := services.NewDraftService(cfg, rdb)
	scanService := services.NewScanService(cfg, lookupClient, draftService)
	bundleService := services.NewBundleService(cfg)
	listingService := services.NewListingService(db, cfg, rdb)

	objectStorage, err := storage.NewS3Storage(cfg)
	if err != nil {
		log.Fatalf("CRITICAL: Failed to initialize S3 storage for API: %v", err)
	}
	submitService := services.NewSubmitService(cfg, bundleService, listingService, draftService, objectStorage, submissionNotifier)
	optimizer := images.NewOptimizer()

	r := gin.Default()

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)
	r.Use(middleware.CORSMiddleware())
	r.Use(rateLimiter.Limit())

	bundleHandler := handlers.NewBundleHandler(cfg, scanService, bundleService, submitService, draftService, optimizer)
	listingHandler := handlers.NewListingHandler(listingService)
	adminHandler := handlers.NewAdminHandler(listingService, notifier)

	v1 := r.Group("/v1")
	{
		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		// Public listing routes
		v1.GET("/listings", listingHandler.ListApproved)
		v1.GET("/listings/:id", listingHandler.GetListing)

		// Scan/bundle routes. Guests get a shared session; vendors get
		// their own keyed by JWT subject.
		bundle := v1.Group("/bundle")
		bundle.Use(middleware.OptionalAuthMiddleware(cfg.JwtSecret))
		{
			bundle.GET("", bundleHandler.GetBundle)
			bundle.DELETE("", bundleHandler.ClearBundle)
			bundle.POST("/scan", bundleHandler.Scan)
			bundle.POST("/items", bundleHandler.AddCurrent)
			bundle.PUT("/current", bundleHandler.UpdateCurrent)
			bundle.DELETE("/current", bundleHandler.DiscardCurrent)
			bundle.PUT("/items/:index", bundleHandler.UpdateItem)
			bundle.DELETE("/items/:index", bundleHandler.RemoveItem)
			bundle.POST("/items/:index/image", bundleHandler.AttachImage)
			bundle.POST("/submit", bundleHandler.Submit)
		}

		// Moderation routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(cfg.JwtSecret), middleware.AdminMiddleware())
		{
			admin.GET("/listings", adminHandler.ListListings)
			admin.GET("/listings/stats", adminHandler.GetStats)
			admin.GET("/listings/feed", adminHandler.Feed)
			admin.GET("/listings/:id", adminHandler.GetListing)
			admin.POST("/listings/:id/approve", adminHandler.Approve)
			admin.POST("/listings/:id/reject", adminHandler.Reject)
		}
	}

	return r
}
