package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/fdcscrape/scraper/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(search *MockSearchPage, pages *MockPageSource, store *MockStore, extract bool) (*Pipeline, *MockSink, *MockFoodWriter, *MockAggregateWriter) {
	sink := &MockSink{}
	foods := &MockFoodWriter{}
	aggregates := &MockAggregateWriter{}
	resolver := NewResolver(search, sink, nil, ResolverConfig{
		MaxRetries:     1,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	}, zerolog.Nop())
	p := NewPipeline(resolver, newTestExtractor(pages), store, foods, aggregates,
		PipelineConfig{ExtractResolved: extract}, zerolog.Nop())
	return p, sink, foods, aggregates
}

func applePage(url string) *domain.FoodPage {
	return &domain.FoodPage{
		URL:         url,
		Description: "Apples, raw",
		Rows: [][]string{
			{"Proximates:"},
			{"Protein", "0.26", "g"},
			{"Minerals:"},
			{"Calcium", "6", "mg"},
		},
	}
}

func TestPipelineRunNames(t *testing.T) {
	search := NewMockSearchPage()
	search.results["apple"] = []string{"Apples, raw"}
	search.links["Apples, raw"] = "https://fdc.example/food/1"
	pages := NewMockPageSource()
	pages.pages["https://fdc.example/food/1"] = applePage("https://fdc.example/food/1")
	store := NewMockStore()

	p, sink, foods, aggregates := newTestPipeline(search, pages, store, true)

	report, err := p.RunNames(context.Background(), "run-1", []string{"apple", "unobtainium"})
	require.NoError(t, err)
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, 2, report.Queries)
	assert.Equal(t, 1, report.Missing)
	assert.Equal(t, 1, report.URLs)
	assert.Equal(t, 1, report.Foods)
	assert.Equal(t, 2, report.Records)
	assert.Equal(t, map[string]int{"proximates": 1, "minerals": 1}, report.Tables)
	assert.Empty(t, report.Failures)

	assert.Equal(t, []string{"unobtainium"}, sink.missing)
	assert.Equal(t, []string{"Apples, raw"}, foods.foods)
	assert.Len(t, aggregates.merged, 2)

	rec, err := store.Read(context.Background(), "proximates", "Apples, raw")
	require.NoError(t, err)
	v, _ := rec.Get("Protein")
	assert.InDelta(t, 260.0, v.MG, 1e-9)
}

func TestPipelineRunNamesWithoutExtraction(t *testing.T) {
	search := NewMockSearchPage()
	search.results["apple"] = []string{"Apples, raw"}
	search.links["Apples, raw"] = "https://fdc.example/food/1"
	store := NewMockStore()

	p, _, _, _ := newTestPipeline(search, NewMockPageSource(), store, false)

	report, err := p.RunNames(context.Background(), "run-2", []string{"apple"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.URLs)
	assert.Equal(t, 0, report.Foods)
	assert.Equal(t, 0, store.writes)
}

func TestPipelineRunURLs(t *testing.T) {
	ctx := context.Background()

	t.Run("failing page is skipped", func(t *testing.T) {
		pages := NewMockPageSource()
		pages.pages["good"] = applePage("good")
		store := NewMockStore()
		p, _, _, _ := newTestPipeline(NewMockSearchPage(), pages, store, true)

		report, err := p.RunURLs(ctx, "run-3", []string{"bad", "good"})
		require.NoError(t, err)
		assert.Equal(t, 2, report.URLs)
		assert.Equal(t, 1, report.Foods)
		require.Len(t, report.Failures, 1)
		assert.Equal(t, "bad", report.Failures[0].Item)
		assert.Equal(t, StageExtract, report.Failures[0].Stage)
	})

	t.Run("malformed value keeps earlier categories", func(t *testing.T) {
		pages := NewMockPageSource()
		pages.pages["bad-value"] = &domain.FoodPage{
			URL:         "bad-value",
			Description: "Odd food",
			Rows: [][]string{
				{"Proximates:"},
				{"Protein", "1", "g"},
				{"Minerals:"},
				{"Calcium", "??", "mg"},
			},
		}
		store := NewMockStore()
		p, _, _, _ := newTestPipeline(NewMockSearchPage(), pages, store, true)

		report, err := p.RunURLs(ctx, "run-4", []string{"bad-value"})
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"proximates": 1}, report.Tables)
		require.Len(t, report.Failures, 1)
		assert.Equal(t, StageExtract, report.Failures[0].Stage)
	})

	t.Run("integrity mismatch is reported and the run continues", func(t *testing.T) {
		pages := NewMockPageSource()
		pages.pages["a"] = applePage("a")
		store := NewMockStore()
		store.writeErr["minerals"] = domain.ErrIntegrityMismatch
		p, _, _, aggregates := newTestPipeline(NewMockSearchPage(), pages, store, true)

		report, err := p.RunURLs(ctx, "run-5", []string{"a"})
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"proximates": 1}, report.Tables)
		require.Len(t, report.Failures, 1)
		assert.Equal(t, StageWrite, report.Failures[0].Stage)
		assert.Len(t, aggregates.merged, 1)
	})

	t.Run("unavailable driver stops the run", func(t *testing.T) {
		pages := NewMockPageSource()
		pages.errs["a"] = domain.ErrDriverUnavailable
		pages.pages["b"] = applePage("b")
		p, _, _, _ := newTestPipeline(NewMockSearchPage(), pages, NewMockStore(), true)

		report, err := p.RunURLs(ctx, "run-6", []string{"a", "b"})
		assert.ErrorIs(t, err, domain.ErrDriverUnavailable)
		assert.Equal(t, 0, report.Foods)
	})

	t.Run("cancelled context stops the run", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		p, _, _, _ := newTestPipeline(NewMockSearchPage(), NewMockPageSource(), NewMockStore(), true)

		report, err := p.RunURLs(cctx, "run-7", []string{"a"})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, report.URLs)
	})
}
