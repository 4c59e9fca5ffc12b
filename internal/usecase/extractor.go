package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/fdcscrape/scraper/internal/domain"
	"github.com/rs/zerolog"
)

// Extractor turns a food detail page into classified, normalized records
type Extractor struct {
	pages      domain.PageSource
	classifier *Classifier
	normalizer *Normalizer
	logger     zerolog.Logger
}

// NewExtractor creates a new extractor with dependencies
func NewExtractor(
	pages domain.PageSource,
	classifier *Classifier,
	normalizer *Normalizer,
	logger zerolog.Logger,
) *Extractor {
	return &Extractor{
		pages:      pages,
		classifier: classifier,
		normalizer: normalizer,
		logger:     logger.With().Str("component", "extractor").Logger(),
	}
}

// Extract loads the detail page at url and classifies its rows
func (e *Extractor) Extract(ctx context.Context, url string) (*domain.Extraction, error) {
	page, err := e.pages.FoodPage(ctx, url)
	if err != nil {
		return nil, err
	}

	food := strings.TrimSpace(page.Description)
	if food == "" {
		return nil, fmt.Errorf("%w: food description on %s", domain.ErrElementNotFound, url)
	}

	buckets, rendered := e.classifier.classify(page.Rows)
	e.logger.Debug().
		Str("food", food).
		Int("rows", len(page.Rows)).
		Int("categories", len(buckets)).
		Msg("classified nutrient table")

	return &domain.Extraction{
		Food:     food,
		Page:     *page,
		Buckets:  buckets,
		Rendered: rendered,
	}, nil
}

// Record normalizes one bucket of an extraction
func (e *Extractor) Record(extraction *domain.Extraction, bucket domain.Bucket) (*domain.CategoryRecord, error) {
	return e.normalizer.Record(extraction.Food, bucket)
}

// Records normalizes every bucket in category order. On a malformed value
// it returns the records built so far together with the error.
func (e *Extractor) Records(extraction *domain.Extraction) ([]*domain.CategoryRecord, error) {
	records := make([]*domain.CategoryRecord, 0, len(extraction.Buckets))
	for _, bucket := range extraction.Buckets {
		rec, err := e.Record(extraction, bucket)
		if err != nil {
			return records, err
		}
		if len(rec.Attributes) == 0 {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
