package usecase

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fdcscrape/scraper/internal/domain"
	"github.com/rs/zerolog"
)

// Unit symbols as rendered on FDC pages. The micro sign appears both as
// U+00B5 and as the Greek letter mu.
const (
	unitMicrogram      = "µg"
	unitMicrogramGreek = "μg"
	unitGram           = "g"
	unitMilligram      = "mg"
)

// NormalizerConfig holds configuration for unit normalization
type NormalizerConfig struct {
	// Strict rejects units outside Known instead of passing them through
	Strict bool
	Known  []string
}

// Normalizer converts rendered amounts to milligrams
type Normalizer struct {
	strict bool
	known  map[string]bool
	logger zerolog.Logger
}

// NewNormalizer creates a unit normalizer
func NewNormalizer(config NormalizerConfig, logger zerolog.Logger) *Normalizer {
	known := map[string]bool{unitMicrogram: true, unitMicrogramGreek: true, unitGram: true, unitMilligram: true}
	for _, u := range config.Known {
		known[u] = true
	}
	return &Normalizer{
		strict: config.Strict,
		known:  known,
		logger: logger.With().Str("component", "normalizer").Logger(),
	}
}

// Normalize converts one row's amount to milligrams. A leading "<" marks a
// detection limit and is carried on the result as a Below bound.
func (n *Normalizer) Normalize(row domain.NutrientRow) (domain.Value, error) {
	text := strings.TrimSpace(row.Value)
	bound := domain.Exact
	if strings.HasPrefix(text, domain.BelowMarker) {
		bound = domain.Below
		text = strings.TrimSpace(strings.TrimPrefix(text, domain.BelowMarker))
	}

	amount, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return domain.Value{}, fmt.Errorf("%w: %s = %q", domain.ErrMalformedValue, row.Label, row.Value)
	}

	unit := strings.TrimSpace(row.Unit)
	switch unit {
	case unitMicrogram, unitMicrogramGreek:
		amount /= 1000
	case unitGram:
		amount *= 1000
	default:
		if !n.known[unit] {
			if n.strict {
				return domain.Value{}, fmt.Errorf("%w: %s has unrecognized unit %q", domain.ErrMalformedValue, row.Label, unit)
			}
			n.logger.Debug().Str("nutrient", row.Label).Str("unit", unit).Msg("unrecognized unit passed through")
		}
	}

	return domain.Value{MG: amount, Bound: bound}, nil
}

// Record builds the normalized record of one bucket. A malformed amount
// fails the whole record. Rows with an empty name or amount are skipped.
func (n *Normalizer) Record(food string, bucket domain.Bucket) (*domain.CategoryRecord, error) {
	rec := domain.NewCategoryRecord(food, bucket.Category)
	for _, row := range bucket.Rows {
		if strings.TrimSpace(row.Label) == "" || strings.TrimSpace(row.Value) == "" {
			n.logger.Debug().Str("food", food).Str("nutrient", row.Label).Msg("skipping row without amount")
			continue
		}
		value, err := n.Normalize(row)
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", food, bucket.Category.Table, err)
		}
		rec.Set(strings.TrimSpace(row.Label), value)
	}
	return rec, nil
}
