package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/teskapnj/book-container/internal/config"
	"github.com/teskapnj/book-container/internal/models"
	"github.com/teskapnj/book-container/internal/pricing"
	"github.com/teskapnj/book-container/internal/utils"
)

// ScanState is the lookup lifecycle of the item currently in the scan form.
type ScanState string

const (
	ScanIdle     ScanState = "idle"
	ScanQuerying ScanState = "querying"
	ScanDecided  ScanState = "decided"
	ScanFailed   ScanState = "failed"
)

// ErrNothingToAdd is returned when a commit is requested with no scanned code.
var ErrNothingToAdd = errors.New("no scanned item to add")

// ErrItemIncomplete is returned for a manual commit without a positive price.
var ErrItemIncomplete = errors.New("item needs a price before it can be added")

// ErrItemNotFound is returned for out-of-range bundle item indexes.
var ErrItemNotFound = errors.New("bundle item not found")

// ScanSnapshot is a point-in-time view of a session for API responses.
type ScanSnapshot struct {
	State   ScanState            `json:"state"`
	Message string               `json:"message,omitempty"`
	Current models.WorkingItem   `json:"current"`
	Items   []models.WorkingItem `json:"items"`
}

// ScanSession drives the scan-to-bundle flow for one vendor: each scanned
// code goes through a price lookup, an accepted item sits in the form for a
// short window and is added automatically unless the vendor acts first. Any
// manual action (add, edit, discard, new scan) cancels the pending auto-add.
type ScanSession struct {
	cfg    *config.Config
	lookup pricing.ILookupClient

	mu      sync.Mutex
	state   ScanState
	message string
	current models.WorkingItem
	items   []*models.WorkingItem

	// gen invalidates in-flight lookups and armed auto-add timers. Every
	// user action bumps it; stale callbacks compare and bail out.
	gen     uint64
	autoAdd *time.Timer

	// onChange fires after every bundle or form mutation with sanitized
	// copies, typically wired to the draft store's debounced Save.
	onChange func([]*models.WorkingItem, models.WorkingItem)
}

// NewScanSession creates a session with an empty bundle.
func NewScanSession(cfg *config.Config, lookup pricing.ILookupClient, onChange func([]*models.WorkingItem, models.WorkingItem)) *ScanSession {
	return &ScanSession{
		cfg:      cfg,
		lookup:   lookup,
		state:    ScanIdle,
		current:  models.NewWorkingItem(),
		onChange: onChange,
	}
}

// Restore seeds the bundle and the form item from a previously saved draft.
func (s *ScanSession) Restore(items []*models.WorkingItem, current models.WorkingItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = s.items[:0]
	for _, item := range items {
		if item == nil || item.Code == "" {
			continue
		}
		copied := *item
		s.items = append(s.items, &copied)
	}
	if current.Code != "" {
		s.current = current
	}
}

// Scan starts an asynchronous price lookup for a scanned code. It cancels
// any pending auto-add and invalidates in-flight lookups from earlier scans.
func (s *ScanSession) Scan(ctx context.Context, code string) {
	if code == "" {
		return
	}

	s.mu.Lock()
	s.cancelAutoAddLocked()
	s.gen++
	gen := s.gen
	s.state = ScanQuerying
	s.message = ""
	s.current = models.NewWorkingItem()
	s.current.Code = code
	s.mu.Unlock()

	go func() {
		product, decision, err := s.lookup.Lookup(ctx, code)

		s.mu.Lock()
		if gen != s.gen {
			// A newer action superseded this lookup; drop the result.
			s.mu.Unlock()
			return
		}

		if err != nil {
			log.Printf("WARN: lookup failed for code %s: %v", code, err)
			s.state = ScanFailed
			s.message = "Unable to look up this item. You can still add it manually."
			s.mu.Unlock()
			return
		}

		// The catalog answered: the form is populated either way. A
		// rejection only skips the auto-add and surfaces its message.
		s.state = ScanDecided
		s.current.Product = product
		if product != nil {
			original := product.Price
			s.current.OriginalPrice = &original
		}
		catalogCategory := decision.Category
		if catalogCategory == "" && product != nil {
			catalogCategory = product.Category
		}
		s.current.Category = models.CategoryFromCatalog(catalogCategory)

		if decision.Accepted {
			s.current.Price = *decision.OurPrice
			s.armAutoAddLocked(gen)
		} else {
			s.message = decision.Message
			if s.message == "" {
				s.message = "This item does not meet our buying criteria."
			}
		}
		items := s.itemsCopyLocked()
		current := s.current
		s.mu.Unlock()
		s.notify(items, current)
	}()
}

// armAutoAddLocked starts the delayed automatic add for the generation that
// produced the decision. Caller holds s.mu.
func (s *ScanSession) armAutoAddLocked(gen uint64) {
	s.autoAdd = time.AfterFunc(s.cfg.AutoAddDelay, func() {
		s.mu.Lock()
		if gen != s.gen || s.state != ScanDecided {
			s.mu.Unlock()
			return
		}
		s.commitLocked()
		items := s.itemsCopyLocked()
		current := s.current
		s.mu.Unlock()
		s.notify(items, current)
	})
}

// cancelAutoAddLocked stops a pending auto-add timer. Caller holds s.mu.
func (s *ScanSession) cancelAutoAddLocked() {
	if s.autoAdd != nil {
		s.autoAdd.Stop()
		s.autoAdd = nil
	}
}

// commitLocked moves the current form item into the bundle and resets the
// form. Caller holds s.mu.
func (s *ScanSession) commitLocked() {
	item := s.current
	item.ID = utils.NewSixID()
	s.items = append(s.items, &item)
	s.current = models.NewWorkingItem()
	s.state = ScanIdle
	s.message = ""
	s.cancelAutoAddLocked()
}

// AddCurrent commits the form item immediately, whether it came from a
// successful lookup or was filled in manually after a failed one.
func (s *ScanSession) AddCurrent() error {
	s.mu.Lock()
	s.gen++
	s.cancelAutoAddLocked()
	if s.current.Code == "" {
		s.mu.Unlock()
		return ErrNothingToAdd
	}
	if s.current.Price <= 0 {
		s.mu.Unlock()
		return ErrItemIncomplete
	}
	s.commitLocked()
	items := s.itemsCopyLocked()
	current := s.current
	s.mu.Unlock()
	s.notify(items, current)
	return nil
}

// DiscardCurrent abandons the form item and returns to idle.
func (s *ScanSession) DiscardCurrent() {
	s.mu.Lock()
	s.gen++
	s.cancelAutoAddLocked()
	s.current = models.NewWorkingItem()
	s.state = ScanIdle
	s.message = ""
	items := s.itemsCopyLocked()
	current := s.current
	s.mu.Unlock()
	s.notify(items, current)
}

// UpdateCurrent applies a manual edit to the form item. Editing counts as a
// user action: the pending auto-add is cancelled, but a decided item stays
// decided so it can still be added by hand.
func (s *ScanSession) UpdateCurrent(mutate func(*models.WorkingItem)) {
	s.mu.Lock()
	s.gen++
	s.cancelAutoAddLocked()
	mutate(&s.current)
	items := s.itemsCopyLocked()
	current := s.current
	s.mu.Unlock()
	s.notify(items, current)
}

// UpdateItem edits an already-added bundle item in place.
func (s *ScanSession) UpdateItem(index int, mutate func(*models.WorkingItem)) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.items) {
		s.mu.Unlock()
		return ErrItemNotFound
	}
	mutate(s.items[index])
	items := s.itemsCopyLocked()
	current := s.current
	s.mu.Unlock()
	s.notify(items, current)
	return nil
}

// RemoveItem deletes a bundle item by position.
func (s *ScanSession) RemoveItem(index int) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.items) {
		s.mu.Unlock()
		return ErrItemNotFound
	}
	s.items = append(s.items[:index], s.items[index+1:]...)
	items := s.itemsCopyLocked()
	current := s.current
	s.mu.Unlock()
	s.notify(items, current)
	return nil
}

// Items returns a copy of the committed bundle items.
func (s *ScanSession) Items() []*models.WorkingItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.itemsCopyLocked()
}

// Snapshot returns the session state with all image payloads stripped.
func (s *ScanSession) Snapshot() ScanSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := ScanSnapshot{
		State:   s.state,
		Message: s.message,
		Current: s.current.Sanitized(),
		Items:   make([]models.WorkingItem, 0, len(s.items)),
	}
	snap.Current.ImageStats = s.current.ImageStats
	for _, item := range s.items {
		view := item.Sanitized()
		view.ImageStats = item.ImageStats
		snap.Items = append(snap.Items, view)
	}
	return snap
}

// Clear empties the bundle and resets the form.
func (s *ScanSession) Clear() {
	s.mu.Lock()
	s.gen++
	s.cancelAutoAddLocked()
	s.items = nil
	s.current = models.NewWorkingItem()
	s.state = ScanIdle
	s.message = ""
	items := s.itemsCopyLocked()
	current := s.current
	s.mu.Unlock()
	s.notify(items, current)
}

// Close cancels timers and invalidates in-flight lookups.
func (s *ScanSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.cancelAutoAddLocked()
}

func (s *ScanSession) itemsCopyLocked() []*models.WorkingItem {
	out := make([]*models.WorkingItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *ScanSession) notify(items []*models.WorkingItem, current models.WorkingItem) {
	if s.onChange != nil {
		s.onChange(items, current)
	}
}

// sessionKey identifies a vendor's live session; guests share one.
func sessionKey(vendorID string) string {
	if vendorID == "" {
		return guestDraftOwner
	}
	return vendorID
}

// IScanService hands out one live ScanSession per vendor.
type IScanService interface {
	Session(vendorID string) *ScanSession
	Drop(vendorID string)
}

// scanService implements IScanService with an in-memory session registry.
type scanService struct {
	cfg    *config.Config
	lookup pricing.ILookupClient
	drafts IDraftService

	mu       sync.Mutex
	sessions map[string]*ScanSession
}

// NewScanService creates the session registry. New sessions are seeded from
// the vendor's saved draft and wired so every bundle change schedules a
// debounced draft save.
func NewScanService(cfg *config.Config, lookup pricing.ILookupClient, drafts IDraftService) IScanService {
	return &scanService{
		cfg:      cfg,
		lookup:   lookup,
		drafts:   drafts,
		sessions: make(map[string]*ScanSession),
	}
}

// Session returns the vendor's live session, creating and restoring it on
// first use.
func (s *scanService) Session(vendorID string) *ScanSession {
	key := sessionKey(vendorID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[key]; ok {
		return sess
	}

	sess := NewScanSession(s.cfg, s.lookup, func(items []*models.WorkingItem, current models.WorkingItem) {
		s.drafts.Save(vendorID, items, current)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if saved, current, err := s.drafts.Load(ctx, vendorID); err != nil {
		log.Printf("WARN: failed to restore draft for %s: %v", key, err)
	} else if len(saved) > 0 || current.Code != "" {
		sess.Restore(saved, current)
		log.Printf("Restored draft with %d items for %s", len(saved), key)
	}

	s.sessions[key] = sess
	return sess
}

// Drop closes and forgets a vendor's session, e.g. after submission.
func (s *scanService) Drop(vendorID string) {
	key := sessionKey(vendorID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[key]; ok {
		sess.Close()
		delete(s.sessions, key)
	}
}
