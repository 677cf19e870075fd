package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/teskapnj/book-container/internal/config"
	"github.com/teskapnj/book-container/internal/db"
	"github.com/teskapnj/book-container/internal/models"
	"github.com/teskapnj/book-container/internal/utils"
)

const (
	listingsCollection   = "listings"
	listingUpdateChannel = "listing_updates"
)

// ErrRejectionReasonRequired is returned when a rejection has no reason.
var ErrRejectionReasonRequired = errors.New("rejection reason is required")

// ErrAlreadyModerated is returned when a decision targets a listing that is
// no longer pending.
var ErrAlreadyModerated = errors.New("listing has already been moderated")

// IListingService defines the interface for listing persistence and moderation.
type IListingService interface {
	Create(ctx context.Context, listing *models.Listing) error
	FindByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error)
	ListByStatus(ctx context.Context, status models.ListingStatus, limit int) ([]models.Listing, error)
	ListAll(ctx context.Context, limit int) ([]models.Listing, error)
	CountByStatus(ctx context.Context) (map[models.ListingStatus]int64, error)
	IncrementViews(ctx context.Context, listingID utils.SixID) error
	Approve(ctx context.Context, listingID utils.SixID, adminID, adminNotes string) error
	Reject(ctx context.Context, listingID utils.SixID, adminID, reason, adminNotes string) error
	Watch(ctx context.Context) (*ListingFeed, error)
}

// listingService implements IListingService.
type listingService struct {
	db  *mongo.Database
	cfg *config.Config
	rdb *redis.Client
}

// NewListingService creates a new ListingService.
func NewListingService(database *mongo.Database, cfg *config.Config, rdb *redis.Client) IListingService {
	return &listingService{db: database, cfg: cfg, rdb: rdb}
}

// Create inserts a new pending listing, retrying on ID collisions.
func (s *listingService) Create(ctx context.Context, listing *models.Listing) error {
	collection := s.db.Collection(listingsCollection)

	if listing.Status == "" {
		listing.Status = models.StatusPending
	}
	if listing.CreatedAt.IsZero() {
		listing.CreatedAt = time.Now().UTC()
	}

	operation := func() error {
		listing.ID = utils.NewSixID()
		_, insertErr := collection.InsertOne(ctx, listing)
		return insertErr
	}

	if err := db.Try(operation); err != nil {
		return fmt.Errorf("failed to insert listing for vendor %s (last attempted ID: %s) after multiple retries: %w",
			listing.VendorID, listing.ID.String(), err)
	}

	s.publishUpdate(ctx, listing.ID)
	return nil
}

// FindByID fetches a listing by its ID.
func (s *listingService) FindByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error) {
	var listing models.Listing
	err := s.db.Collection(listingsCollection).FindOne(ctx, bson.M{"_id": listingID}).Decode(&listing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding listing by ID %s: %w", listingID.String(), err)
	}
	return &listing, nil
}

// fetchSorted runs the moderation queue query newest-first. When the sorted
// query fails it falls back to an unsorted fetch and sorts in memory, so the
// queue keeps working on deployments without the created_at index.
func (s *listingService) fetchSorted(ctx context.Context, filter bson.M, limit int) ([]models.Listing, error) {
	collection := s.db.Collection(listingsCollection)

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := collection.Find(ctx, filter, opts)
	if err == nil {
		var results []models.Listing
		if err = cursor.All(ctx, &results); err == nil {
			return results, nil
		}
		cursor.Close(ctx)
	}

	log.Printf("WARN: sorted listing query failed (%v), falling back to unsorted fetch", err)
	fallbackOpts := options.Find()
	if limit > 0 {
		fallbackOpts.SetLimit(int64(limit))
	}
	cursor, err = collection.Find(ctx, filter, fallbackOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer cursor.Close(ctx)

	var results []models.Listing
	if err = cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode listings: %w", err)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	return results, nil
}

// ListByStatus returns listings in one moderation state, newest first.
func (s *listingService) ListByStatus(ctx context.Context, status models.ListingStatus, limit int) ([]models.Listing, error) {
	return s.fetchSorted(ctx, bson.M{"status": status}, limit)
}

// ListAll returns listings across all states, newest first.
func (s *listingService) ListAll(ctx context.Context, limit int) ([]models.Listing, error) {
	return s.fetchSorted(ctx, bson.M{}, limit)
}

// CountByStatus tallies listings per moderation state.
func (s *listingService) CountByStatus(ctx context.Context) (map[models.ListingStatus]int64, error) {
	counts := map[models.ListingStatus]int64{
		models.StatusPending:  0,
		models.StatusApproved: 0,
		models.StatusRejected: 0,
	}
	for status := range counts {
		n, err := s.db.Collection(listingsCollection).CountDocuments(ctx, bson.M{"status": status})
		if err != nil {
			return nil, fmt.Errorf("failed to count %s listings: %w", status, err)
		}
		counts[status] = n
	}
	return counts, nil
}

// IncrementViews bumps the view counter.
func (s *listingService) IncrementViews(ctx context.Context, listingID utils.SixID) error {
	result, err := s.db.Collection(listingsCollection).UpdateOne(ctx,
		bson.M{"_id": listingID},
		bson.M{"$inc": bson.M{"views": 1}},
	)
	if err != nil {
		return fmt.Errorf("db error incrementing views for listing %s: %w", listingID.String(), err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("listing %s not found", listingID.String())
	}
	return nil
}

// moderate applies a decision to a pending listing. The status filter makes
// the update a compare-and-set: when two moderators race, the second update
// matches nothing and the loser gets a diagnostic error instead of silently
// overwriting the first decision.
func (s *listingService) moderate(ctx context.Context, listingID utils.SixID, set bson.M) error {
	collection := s.db.Collection(listingsCollection)

	filter := bson.M{
		"_id":    listingID,
		"status": models.StatusPending,
	}
	result, err := collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("db error moderating listing %s: %w", listingID.String(), err)
	}
	if result.MatchedCount == 0 {
		var listing models.Listing
		checkErr := collection.FindOne(ctx, bson.M{"_id": listingID}).Decode(&listing)
		if errors.Is(checkErr, mongo.ErrNoDocuments) {
			return fmt.Errorf("listing %s not found", listingID.String())
		}
		if checkErr != nil {
			return fmt.Errorf("db error checking listing %s: %w", listingID.String(), checkErr)
		}
		if listing.Status != models.StatusPending {
			return fmt.Errorf("listing %s: %w (current status: %s)", listingID.String(), ErrAlreadyModerated, listing.Status)
		}
		return fmt.Errorf("failed to moderate listing %s (condition not met)", listingID.String())
	}

	s.publishUpdate(ctx, listingID)
	return nil
}

// Approve marks a pending listing approved.
func (s *listingService) Approve(ctx context.Context, listingID utils.SixID, adminID, adminNotes string) error {
	now := time.Now().UTC()
	return s.moderate(ctx, listingID, bson.M{
		"status":      models.StatusApproved,
		"reviewed_at": now,
		"reviewed_by": adminID,
		"admin_notes": adminNotes,
	})
}

// Reject marks a pending listing rejected. A reason is mandatory.
func (s *listingService) Reject(ctx context.Context, listingID utils.SixID, adminID, reason, adminNotes string) error {
	if reason == "" {
		return ErrRejectionReasonRequired
	}
	now := time.Now().UTC()
	return s.moderate(ctx, listingID, bson.M{
		"status":           models.StatusRejected,
		"reviewed_at":      now,
		"reviewed_by":      adminID,
		"rejection_reason": reason,
		"admin_notes":      adminNotes,
	})
}

// publishUpdate notifies live feed subscribers that a listing changed.
func (s *listingService) publishUpdate(ctx context.Context, listingID utils.SixID) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Publish(ctx, listingUpdateChannel, listingID.String()).Err(); err != nil {
		log.Printf("WARN: failed to publish listing update for %s: %v", listingID.String(), err)
	}
}

// ListingFeed is a live view of the moderation queue: an initial snapshot
// followed by a refreshed snapshot after every listing change.
type ListingFeed struct {
	updates chan []models.Listing
	cancel  context.CancelFunc
}

// Updates returns the snapshot channel. It closes when the feed stops.
func (f *ListingFeed) Updates() <-chan []models.Listing {
	return f.updates
}

// Close stops the feed and releases its subscription.
func (f *ListingFeed) Close() {
	f.cancel()
}

// Watch subscribes to listing change notifications and delivers moderation
// queue snapshots. The first snapshot is sent immediately.
func (s *listingService) Watch(ctx context.Context) (*ListingFeed, error) {
	if s.rdb == nil {
		return nil, fmt.Errorf("redis client not configured, live feed unavailable")
	}

	feedCtx, cancel := context.WithCancel(ctx)
	pubsub := s.rdb.Subscribe(feedCtx, listingUpdateChannel)
	if _, err := pubsub.Receive(feedCtx); err != nil {
		cancel()
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to listing updates: %w", err)
	}

	feed := &ListingFeed{
		updates: make(chan []models.Listing, 1),
		cancel:  cancel,
	}

	go func() {
		defer close(feed.updates)
		defer pubsub.Close()

		send := func() {
			listings, err := s.ListAll(feedCtx, 0)
			if err != nil {
				log.Printf("WARN: failed to refresh listing feed: %v", err)
				return
			}
			select {
			case feed.updates <- listings:
			case <-feedCtx.Done():
			}
		}

		send()

		ch := pubsub.Channel()
		for {
			select {
			case <-feedCtx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				send()
			}
		}
	}()

	return feed, nil
}
