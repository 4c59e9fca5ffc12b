package usecase

import (
	"strings"

	"github.com/fdcscrape/scraper/internal/domain"
)

// Classifier partitions the flat row stream of a nutrient table into
// category buckets. Header rows switch the current category; every other
// row belongs to the current category. Rows before the first header have
// no category and are dropped.
type Classifier struct {
	categories []domain.Category
	byHeader   map[string]int
}

// NewClassifier creates a classifier for an ordered category set
func NewClassifier(categories []domain.Category) *Classifier {
	c := &Classifier{
		categories: append([]domain.Category(nil), categories...),
		byHeader:   make(map[string]int, len(categories)),
	}
	for i, cat := range categories {
		c.byHeader[strings.TrimSpace(cat.Header)] = i
	}
	return c
}

// Categories returns the configured categories in order
func (c *Classifier) Categories() []domain.Category {
	return append([]domain.Category(nil), c.categories...)
}

// Lookup returns the category whose header matches the trimmed cell text
func (c *Classifier) Lookup(cell string) (domain.Category, bool) {
	i, ok := c.byHeader[strings.TrimSpace(cell)]
	if !ok {
		return domain.Category{}, false
	}
	return c.categories[i], true
}

// Classify assigns rows to buckets. Only categories that received at least
// one row are returned, in configured order.
func (c *Classifier) Classify(rows [][]string) domain.Buckets {
	buckets, _ := c.classify(rows)
	return buckets
}

// classify also returns every kept row with the label of the section it
// appeared in, for the per-food table dump
func (c *Classifier) classify(rows [][]string) (domain.Buckets, []domain.RenderedRow) {
	collected := make([][]domain.NutrientRow, len(c.categories))
	var rendered []domain.RenderedRow

	current := -1
	for _, raw := range rows {
		cells := domain.PadCells(raw)
		if isBlankRow(cells) {
			continue
		}

		if i, ok := c.byHeader[strings.TrimSpace(cells[0])]; ok {
			current = i
			rendered = append(rendered, domain.RenderedRow{Category: c.categories[i].Label(), Cells: cells})
			continue
		}

		label := ""
		if current >= 0 {
			label = c.categories[current].Label()
			collected[current] = append(collected[current], domain.RowFromCells(cells))
		}
		rendered = append(rendered, domain.RenderedRow{Category: label, Cells: cells})
	}

	var buckets domain.Buckets
	for i, rows := range collected {
		if len(rows) == 0 {
			continue
		}
		buckets = append(buckets, domain.Bucket{Category: c.categories[i], Rows: rows})
	}
	return buckets, rendered
}

func isBlankRow(cells []string) bool {
	for _, cell := range cells {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
