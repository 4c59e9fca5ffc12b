package domain

import (
	"context"
	"time"
)

// SearchPage drives the food search interface. LinkFor looks up a detail
// link by the exact text of a description from the most recent Search.
type SearchPage interface {
	Search(ctx context.Context, query string) ([]string, error)
	LinkFor(ctx context.Context, description string) (string, error)
}

// PageSource retrieves rendered food detail pages
type PageSource interface {
	FoodPage(ctx context.Context, url string) (*FoodPage, error)
}

// MatchCache defines the interface for caching resolved queries
type MatchCache interface {
	Get(ctx context.Context, key string) ([]FoodMatch, error)
	Set(ctx context.Context, key string, value []FoodMatch, ttl time.Duration) error
}

// ResolutionSink receives the resolver's persisted lists
type ResolutionSink interface {
	Missing(query string) error
	Corrected(description string) error
	URL(url string) error
	Match(match FoodMatch) error
}

// CategoryStore persists CategoryRecords, one table per category
type CategoryStore interface {
	Write(ctx context.Context, record *CategoryRecord) (*WriteResult, error)
	Read(ctx context.Context, table, food string) (*CategoryRecord, error)
	Table(ctx context.Context, table string) (*CategoryTable, error)
	Count(ctx context.Context, table string) (int64, error)
	Tables(ctx context.Context) ([]string, error)
	Close() error
}

// FoodTableWriter writes the full rendered table of one food
type FoodTableWriter interface {
	WriteFood(extraction *Extraction) (string, error)
}

// AggregateWriter merges records into the per-category aggregate files
type AggregateWriter interface {
	Merge(record *CategoryRecord) error
	Rewrite(table *CategoryTable) error
}
