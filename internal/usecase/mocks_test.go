package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fdcscrape/scraper/internal/domain"
)

// MockSearchPage is a mock implementation of domain.SearchPage
type MockSearchPage struct {
	results     map[string][]string
	links       map[string]string
	searchErrs  []error // returned in order, one per call, before results
	linkErr     error
	searchCalls int
	queries     []string
}

func NewMockSearchPage() *MockSearchPage {
	return &MockSearchPage{
		results: make(map[string][]string),
		links:   make(map[string]string),
	}
}

func (m *MockSearchPage) Search(ctx context.Context, query string) ([]string, error) {
	m.searchCalls++
	m.queries = append(m.queries, query)
	if len(m.searchErrs) > 0 {
		err := m.searchErrs[0]
		m.searchErrs = m.searchErrs[1:]
		return nil, err
	}
	return m.results[query], nil
}

func (m *MockSearchPage) LinkFor(ctx context.Context, description string) (string, error) {
	if m.linkErr != nil {
		return "", m.linkErr
	}
	link, ok := m.links[description]
	if !ok {
		return "", domain.ErrElementNotFound
	}
	return link, nil
}

// MockPageSource is a mock implementation of domain.PageSource
type MockPageSource struct {
	pages map[string]*domain.FoodPage
	errs  map[string]error
}

func NewMockPageSource() *MockPageSource {
	return &MockPageSource{
		pages: make(map[string]*domain.FoodPage),
		errs:  make(map[string]error),
	}
}

func (m *MockPageSource) FoodPage(ctx context.Context, url string) (*domain.FoodPage, error) {
	if err, ok := m.errs[url]; ok {
		return nil, err
	}
	page, ok := m.pages[url]
	if !ok {
		return nil, domain.ErrNavigation
	}
	return page, nil
}

// MockSink records everything the resolver writes
type MockSink struct {
	missing   []string
	corrected []string
	urls      []string
	matches   []domain.FoodMatch
}

func (m *MockSink) Missing(query string) error {
	m.missing = append(m.missing, query)
	return nil
}

func (m *MockSink) Corrected(description string) error {
	m.corrected = append(m.corrected, description)
	return nil
}

func (m *MockSink) URL(url string) error {
	m.urls = append(m.urls, url)
	return nil
}

func (m *MockSink) Match(match domain.FoodMatch) error {
	m.matches = append(m.matches, match)
	return nil
}

// MockMatchCache is a mock implementation of domain.MatchCache
type MockMatchCache struct {
	data      map[string][]domain.FoodMatch
	setCalled bool
}

func NewMockMatchCache() *MockMatchCache {
	return &MockMatchCache{data: make(map[string][]domain.FoodMatch)}
}

func (m *MockMatchCache) Get(ctx context.Context, key string) ([]domain.FoodMatch, error) {
	v, ok := m.data[key]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return v, nil
}

func (m *MockMatchCache) Set(ctx context.Context, key string, value []domain.FoodMatch, ttl time.Duration) error {
	m.setCalled = true
	m.data[key] = value
	return nil
}

// MockStore is an in-memory domain.CategoryStore
type MockStore struct {
	mu       sync.Mutex
	rows     map[string]map[string]*domain.CategoryRecord
	writeErr map[string]error
	writes   int
}

func NewMockStore() *MockStore {
	return &MockStore{
		rows:     make(map[string]map[string]*domain.CategoryRecord),
		writeErr: make(map[string]error),
	}
}

func (m *MockStore) Write(ctx context.Context, record *domain.CategoryRecord) (*domain.WriteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := record.Category.Table
	if err, ok := m.writeErr[table]; ok {
		return nil, err
	}
	m.writes++
	if m.rows[table] == nil {
		m.rows[table] = make(map[string]*domain.CategoryRecord)
	}
	_, replaced := m.rows[table][record.Food]
	before := int64(len(m.rows[table]))
	m.rows[table][record.Food] = record
	return &domain.WriteResult{
		Table:       table,
		Food:        record.Food,
		Replaced:    replaced,
		CountBefore: before,
		CountAfter:  int64(len(m.rows[table])),
	}, nil
}

func (m *MockStore) Read(ctx context.Context, table, food string) (*domain.CategoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[table][food]
	if !ok {
		return nil, domain.ErrFoodNotFound
	}
	return rec, nil
}

func (m *MockStore) Table(ctx context.Context, table string) (*domain.CategoryTable, error) {
	return nil, errors.New("not implemented")
}

func (m *MockStore) Count(ctx context.Context, table string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.rows[table])), nil
}

func (m *MockStore) Tables(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var tables []string
	for t := range m.rows {
		tables = append(tables, t)
	}
	return tables, nil
}

func (m *MockStore) Close() error { return nil }

// MockFoodWriter records per-food table writes
type MockFoodWriter struct {
	foods []string
}

func (m *MockFoodWriter) WriteFood(extraction *domain.Extraction) (string, error) {
	m.foods = append(m.foods, extraction.Food)
	return extraction.Food + ".csv", nil
}

// MockAggregateWriter records merged records
type MockAggregateWriter struct {
	merged []*domain.CategoryRecord
}

func (m *MockAggregateWriter) Merge(record *domain.CategoryRecord) error {
	m.merged = append(m.merged, record)
	return nil
}

func (m *MockAggregateWriter) Rewrite(table *domain.CategoryTable) error { return nil }

var testCategories = []domain.Category{
	{Header: "Proximates:", Table: "proximates"},
	{Header: "Carbohydrates:", Table: "carbohydrates"},
	{Header: "Minerals:", Table: "minerals"},
	{Header: "Vitamins and Other Components:", Table: "vitamins"},
}
