package services

import (
	"errors"
	"fmt"

	"github.com/teskapnj/book-container/internal/config"
	"github.com/teskapnj/book-container/internal/models"
)

// ErrBelowMinimum is returned when a bundle has fewer items than the
// configured submission minimum.
var ErrBelowMinimum = errors.New("bundle is below the minimum item count")

// ErrEmptyBundle is returned when a bundle has no items at all.
var ErrEmptyBundle = errors.New("bundle has no items")

// Aggregates holds the derived totals of a bundle.
type Aggregates struct {
	TotalItems int
	TotalValue float64
}

// IBundleService defines the pure bundle assembly operations: titles,
// descriptions, totals and submission validation.
type IBundleService interface {
	ComputeTitle(items []*models.WorkingItem) string
	ComputeDescription(items []*models.WorkingItem) string
	ComputeAggregates(items []*models.WorkingItem) Aggregates
	ValidateForSubmission(items []*models.WorkingItem) error
}

// bundleService implements IBundleService.
type bundleService struct {
	cfg *config.Config
}

// NewBundleService creates a new BundleService.
func NewBundleService(cfg *config.Config) IBundleService {
	return &bundleService{cfg: cfg}
}

// dominantCategory returns the category with the most bundle entries.
// Each entry counts once regardless of quantity; ties go to the category
// encountered first in item order.
func dominantCategory(items []*models.WorkingItem) models.Category {
	counts := map[models.Category]int{}
	var order []models.Category
	for _, item := range items {
		if _, seen := counts[item.Category]; !seen {
			order = append(order, item.Category)
		}
		counts[item.Category]++
	}

	best := models.CategoryMix
	bestCount := -1
	for _, cat := range order {
		if counts[cat] > bestCount {
			best = cat
			bestCount = counts[cat]
		}
	}
	return best
}

// dominantCondition returns the condition with the most bundle entries,
// first-encountered wins ties.
func dominantCondition(items []*models.WorkingItem) models.Condition {
	counts := map[models.Condition]int{}
	var order []models.Condition
	for _, item := range items {
		if _, seen := counts[item.Condition]; !seen {
			order = append(order, item.Condition)
		}
		counts[item.Condition]++
	}

	best := models.ConditionGood
	bestCount := -1
	for _, cond := range order {
		if counts[cond] > bestCount {
			best = cond
			bestCount = counts[cond]
		}
	}
	return best
}

// ComputeTitle derives the listing title from the bundle contents:
// "{N} {Category} Collection in {Condition} Condition".
func (s *bundleService) ComputeTitle(items []*models.WorkingItem) string {
	agg := s.ComputeAggregates(items)
	if agg.TotalItems == 0 {
		return ""
	}
	return fmt.Sprintf("%d %s Collection in %s Condition",
		agg.TotalItems, dominantCategory(items).Label(), dominantCondition(items).Label())
}

// ComputeDescription derives the listing description.
func (s *bundleService) ComputeDescription(items []*models.WorkingItem) string {
	agg := s.ComputeAggregates(items)
	return fmt.Sprintf("Bundle of %d items including various categories.", agg.TotalItems)
}

// ComputeAggregates sums quantities and quantity-weighted prices.
func (s *bundleService) ComputeAggregates(items []*models.WorkingItem) Aggregates {
	var agg Aggregates
	for _, item := range items {
		agg.TotalItems += item.Quantity
		agg.TotalValue += item.Price * float64(item.Quantity)
	}
	return agg
}

// ValidateForSubmission checks a bundle is submittable. The minimum is a
// count of bundle entries, not of total quantity.
func (s *bundleService) ValidateForSubmission(items []*models.WorkingItem) error {
	if len(items) == 0 {
		return ErrEmptyBundle
	}
	if len(items) < s.cfg.MinBundleItems {
		return fmt.Errorf("%w: %d of %d required", ErrBelowMinimum, len(items), s.cfg.MinBundleItems)
	}
	return nil
}
