package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/teskapnj/book-container/internal/config"
	"github.com/teskapnj/book-container/internal/models"
)

const draftKeyPrefix = "bundle_draft:"

// guestDraftOwner is the fallback draft owner for unauthenticated sessions.
const guestDraftOwner = "guest"

// DraftRecord is the persisted form of an in-progress bundle: the committed
// items plus the half-filled form item. Only primitive item fields are
// stored; binary image data is stripped before writing.
type DraftRecord struct {
	Items   []models.WorkingItem `json:"items"`
	Current models.WorkingItem   `json:"current"`
	SavedAt time.Time            `json:"saved_at"`
}

// IDraftService defines the interface for the durable bundle draft store.
// Saves are debounced: rapid successive calls collapse into one write.
type IDraftService interface {
	// Save schedules a debounced write of the current bundle state,
	// including the in-progress form item.
	Save(vendorID string, items []*models.WorkingItem, current models.WorkingItem)
	// Flush forces any pending debounced writes immediately.
	Flush(ctx context.Context) error
	// Load restores the committed items and the form item. The form item
	// comes back zero-valued unless its code is non-empty.
	Load(ctx context.Context, vendorID string) ([]*models.WorkingItem, models.WorkingItem, error)
	Clear(ctx context.Context, vendorID string) error
	// Available reports whether the backing store passed its capability
	// probe. When false every operation is a silent no-op.
	Available() bool
	Close()
}

// draftService implements IDraftService on Redis.
type draftService struct {
	cfg       *config.Config
	rdb       *redis.Client
	available bool

	mu      sync.Mutex
	pending map[string]*pendingSave
	closed  bool
}

type pendingSave struct {
	timer  *time.Timer
	record DraftRecord
}

// NewDraftService creates a DraftService and probes the Redis backend with a
// throwaway key. A failed probe puts the service into degraded mode where
// drafts are never persisted, which keeps the scan flow usable in
// storage-restricted environments.
func NewDraftService(cfg *config.Config, rdb *redis.Client) IDraftService {
	s := &draftService{
		cfg:     cfg,
		rdb:     rdb,
		pending: make(map[string]*pendingSave),
	}
	s.available = s.probe()
	if !s.available {
		log.Println("WARN: draft store probe failed, drafts will not be persisted")
	}
	return s
}

// probe round-trips a throwaway key to confirm the store is usable.
func (s *draftService) probe() bool {
	if s.rdb == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	key := draftKeyPrefix + ".probe:" + uuid.NewString()
	if err := s.rdb.Set(ctx, key, "probe", time.Minute).Err(); err != nil {
		return false
	}
	if _, err := s.rdb.Get(ctx, key).Result(); err != nil {
		return false
	}
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		log.Printf("WARN: draft store probe cleanup failed for %s: %v", key, err)
	}
	return true
}

func draftKey(vendorID string) string {
	if vendorID == "" {
		vendorID = guestDraftOwner
	}
	return draftKeyPrefix + vendorID
}

func (s *draftService) Available() bool {
	return s.available
}

// Save schedules a write after the configured debounce window. A newer Save
// for the same owner replaces the pending payload and restarts the timer, so
// a burst of edits produces a single write of the final state.
func (s *draftService) Save(vendorID string, items []*models.WorkingItem, current models.WorkingItem) {
	if !s.available {
		return
	}

	sanitized := make([]models.WorkingItem, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		sanitized = append(sanitized, item.Sanitized())
	}
	record := DraftRecord{
		Items:   sanitized,
		Current: current.Sanitized(),
		SavedAt: time.Now().UTC(),
	}

	key := draftKey(vendorID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if p, ok := s.pending[key]; ok {
		p.record = record
		p.timer.Reset(s.cfg.DraftDebounce)
		return
	}

	p := &pendingSave{record: record}
	p.timer = time.AfterFunc(s.cfg.DraftDebounce, func() {
		s.mu.Lock()
		record := p.record
		delete(s.pending, key)
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.write(ctx, key, record); err != nil {
			log.Printf("WARN: failed to persist draft %s: %v", key, err)
		}
	})
	s.pending[key] = p
}

// Flush writes out all pending drafts immediately and cancels their timers.
func (s *draftService) Flush(ctx context.Context) error {
	if !s.available {
		return nil
	}

	s.mu.Lock()
	due := make(map[string]DraftRecord, len(s.pending))
	for key, p := range s.pending {
		p.timer.Stop()
		due[key] = p.record
		delete(s.pending, key)
	}
	s.mu.Unlock()

	var errs []error
	for key, record := range due {
		if err := s.write(ctx, key, record); err != nil {
			errs = append(errs, fmt.Errorf("flush draft %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func (s *draftService) write(ctx context.Context, key string, record DraftRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}
	if err := s.rdb.Set(ctx, key, data, s.cfg.DraftTTL).Err(); err != nil {
		return fmt.Errorf("failed to write draft: %w", err)
	}
	return nil
}

// Load restores a saved draft. Items without a code are dropped, the form
// item is only returned when its code is non-empty, and images are never
// part of a draft so they come back empty.
func (s *draftService) Load(ctx context.Context, vendorID string) ([]*models.WorkingItem, models.WorkingItem, error) {
	if !s.available {
		return nil, models.WorkingItem{}, nil
	}

	data, err := s.rdb.Get(ctx, draftKey(vendorID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, models.WorkingItem{}, nil
		}
		return nil, models.WorkingItem{}, fmt.Errorf("failed to read draft: %w", err)
	}

	var record DraftRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, models.WorkingItem{}, fmt.Errorf("failed to decode draft: %w", err)
	}

	items := make([]*models.WorkingItem, 0, len(record.Items))
	for i := range record.Items {
		if record.Items[i].Code == "" {
			continue
		}
		item := record.Items[i]
		items = append(items, &item)
	}

	current := record.Current
	if current.Code == "" {
		current = models.WorkingItem{}
	}
	return items, current, nil
}

// Clear removes the stored draft and cancels any pending write for the owner.
func (s *draftService) Clear(ctx context.Context, vendorID string) error {
	if !s.available {
		return nil
	}

	key := draftKey(vendorID)

	s.mu.Lock()
	if p, ok := s.pending[key]; ok {
		p.timer.Stop()
		delete(s.pending, key)
	}
	s.mu.Unlock()

	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to clear draft: %w", err)
	}
	return nil
}

// Close cancels all pending writes without persisting them.
func (s *draftService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for key, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, key)
	}
}
