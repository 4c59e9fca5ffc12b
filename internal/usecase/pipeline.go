package usecase

import (
	"context"
	"errors"

	"github.com/fdcscrape/scraper/internal/domain"
	"github.com/rs/zerolog"
)

// Pipeline stages
const (
	StageResolve = "resolve"
	StageExtract = "extract"
	StageWrite   = "write"
)

// PipelineConfig holds configuration for the batch driver
type PipelineConfig struct {
	// ExtractResolved extracts each resolved URL right after its query
	ExtractResolved bool
}

// Failure is one item that did not make it through a stage
type Failure struct {
	Item  string `json:"item"`
	Stage string `json:"stage"`
	Err   string `json:"error"`
}

// Report summarizes a batch run
type Report struct {
	RunID    string         `json:"runId"`
	Queries  int            `json:"queries"`
	Missing  int            `json:"missing"`
	Matches  int            `json:"matches"`
	URLs     int            `json:"urls"`
	Foods    int            `json:"foods"`
	Records  int            `json:"records"`
	Tables   map[string]int `json:"tables"`
	Failures []Failure      `json:"failures,omitempty"`
}

func (r *Report) fail(item, stage string, err error) {
	r.Failures = append(r.Failures, Failure{Item: item, Stage: stage, Err: err.Error()})
}

// Pipeline drives resolution, extraction and persistence one item at a
// time. A failing item is logged and skipped; only an unavailable browser
// or a cancelled context stops the run.
type Pipeline struct {
	resolver        *Resolver
	extractor       *Extractor
	store           domain.CategoryStore
	foods           domain.FoodTableWriter
	aggregates      domain.AggregateWriter
	extractResolved bool
	logger          zerolog.Logger
}

// NewPipeline creates a new pipeline. resolver, foods and aggregates may be nil.
func NewPipeline(
	resolver *Resolver,
	extractor *Extractor,
	store domain.CategoryStore,
	foods domain.FoodTableWriter,
	aggregates domain.AggregateWriter,
	config PipelineConfig,
	logger zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		resolver:        resolver,
		extractor:       extractor,
		store:           store,
		foods:           foods,
		aggregates:      aggregates,
		extractResolved: config.ExtractResolved,
		logger:          logger.With().Str("component", "pipeline").Logger(),
	}
}

// RunNames resolves every name and, when configured, extracts the links found
func (p *Pipeline) RunNames(ctx context.Context, runID string, names []string) (*Report, error) {
	report := newReport(runID)
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		report.Queries++
		res, err := p.resolver.Resolve(ctx, name)
		if err != nil {
			if isFatal(ctx, err) {
				return report, err
			}
			p.logger.Error().Err(err).Str("query", name).Msg("resolution failed")
			report.fail(name, StageResolve, err)
		}
		if res == nil {
			continue
		}
		if res.Missing {
			report.Missing++
			continue
		}
		report.Matches += len(res.Matches)
		urls := res.URLs()
		report.URLs += len(urls)

		if !p.extractResolved {
			continue
		}
		for _, url := range urls {
			if err := p.processURL(ctx, url, report); err != nil {
				return report, err
			}
		}
	}
	return report, nil
}

// RunURLs extracts and persists every detail page
func (p *Pipeline) RunURLs(ctx context.Context, runID string, urls []string) (*Report, error) {
	report := newReport(runID)
	for _, url := range urls {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.URLs++
		if err := p.processURL(ctx, url, report); err != nil {
			return report, err
		}
	}
	return report, nil
}

// processURL handles one detail page. Only fatal errors are returned.
func (p *Pipeline) processURL(ctx context.Context, url string, report *Report) error {
	logger := p.logger.With().Str("url", url).Logger()

	extraction, err := p.extractor.Extract(ctx, url)
	if err != nil {
		if isFatal(ctx, err) {
			return err
		}
		logger.Error().Err(err).Msg("extraction failed, skipping food")
		report.fail(url, StageExtract, err)
		return nil
	}
	logger = logger.With().Str("food", extraction.Food).Logger()
	report.Foods++

	if p.foods != nil {
		path, err := p.foods.WriteFood(extraction)
		if err != nil {
			logger.Error().Err(err).Msg("failed to write food table")
		} else {
			logger.Debug().Str("path", path).Msg("wrote food table")
		}
	}

	// on a malformed value the categories before it are still written
	records, err := p.extractor.Records(extraction)
	for _, record := range records {
		p.write(ctx, record, report, logger)
	}
	if err != nil {
		logger.Error().Err(err).Int("written", len(records)).Msg("aborting extraction")
		report.fail(extraction.Food, StageExtract, err)
		return nil
	}

	logger.Info().Int("categories", len(extraction.Buckets)).Msg("extracted")
	return nil
}

func (p *Pipeline) write(ctx context.Context, record *domain.CategoryRecord, report *Report, logger zerolog.Logger) {
	table := record.Category.Table
	result, err := p.store.Write(ctx, record)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrIntegrityMismatch):
		logger.Error().Err(err).Str("table", table).Msg("integrity check failed")
		report.fail(record.Food, StageWrite, err)
	case errors.Is(err, domain.ErrSchemaWrite) && result != nil:
		logger.Warn().Err(err).Str("table", table).Strs("dropped", result.DroppedAttributes).Msg("schema partially updated")
	default:
		logger.Error().Err(err).Str("table", table).Msg("failed to write record")
		report.fail(record.Food, StageWrite, err)
	}
	if result == nil || (err != nil && !errors.Is(err, domain.ErrSchemaWrite)) {
		return
	}

	report.Records++
	report.Tables[table]++
	logger.Debug().
		Str("table", table).
		Bool("created", result.Created).
		Bool("replaced", result.Replaced).
		Strs("added_columns", result.AddedColumns).
		Msg("record written")

	if p.aggregates != nil {
		if err := p.aggregates.Merge(record); err != nil {
			logger.Error().Err(err).Str("table", table).Msg("failed to merge aggregate csv")
		}
	}
}

func newReport(runID string) *Report {
	return &Report{RunID: runID, Tables: make(map[string]int)}
}

func isFatal(ctx context.Context, err error) bool {
	return errors.Is(err, domain.ErrDriverUnavailable) || ctx.Err() != nil
}
