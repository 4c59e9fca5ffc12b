package commands

import (
	"context"
	"fmt"

	"github.com/fdcscrape/scraper/config"
	"github.com/fdcscrape/scraper/internal/domain"
	"github.com/fdcscrape/scraper/internal/infrastructure/browser"
	"github.com/fdcscrape/scraper/internal/infrastructure/cache"
	"github.com/fdcscrape/scraper/internal/infrastructure/fdcapi"
	"github.com/fdcscrape/scraper/internal/infrastructure/files"
	"github.com/fdcscrape/scraper/internal/infrastructure/sqlite"
	"github.com/fdcscrape/scraper/internal/usecase"
	"github.com/rs/zerolog"
)

// openStore opens the category store in the configured layout
func (a *app) openStore(ctx context.Context) (domain.CategoryStore, error) {
	db, err := sqlite.Open(ctx, a.cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if a.cfg.Store.Layout == config.LayoutLong {
		store, err := sqlite.NewLongStore(ctx, db, a.logger)
		if err != nil {
			db.Close()
			return nil, err
		}
		return store, nil
	}
	return sqlite.NewWideStore(db, a.textInexact(), a.logger), nil
}

// textInexact reports whether the store reads below-detection values back
// as "<x". The long layout always keeps the bound flag.
func (a *app) textInexact() bool {
	return a.cfg.Store.Layout == config.LayoutLong || a.cfg.Store.InexactPolicy == config.InexactText
}

func (a *app) browserOptions() browser.Options {
	b := a.cfg.Browser
	return browser.Options{
		Headless:          b.Headless,
		ExecPaths:         b.ExecPaths,
		WaitTimeout:       b.WaitTimeout,
		SettleDelay:       b.SettleDelay,
		RequestsPerSecond: b.RequestsPerSecond,
		Burst:             b.Burst,
		SearchURLTemplate: a.cfg.Source.SearchURLTemplate,
		Selectors: browser.Selectors{
			ResultRows:        b.Selectors.ResultRows,
			ResultDescription: b.Selectors.ResultDescription,
			FoodDescription:   b.Selectors.FoodDescription,
			TableHeaders:      b.Selectors.TableHeaders,
			TableRows:         b.Selectors.TableRows,
			TableCells:        b.Selectors.TableCells,
		},
	}
}

// stages selects what a command needs wired
type stages struct {
	resolve bool
	extract bool
}

// runtime is a wired pipeline plus everything that must be released after it
type runtime struct {
	pipeline *usecase.Pipeline
	closers  []func()
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// build wires the pipeline for one run. The browser is only started when
// a stage needs it.
func (a *app) build(ctx context.Context, need stages, logger zerolog.Logger) (*runtime, error) {
	rt := &runtime{}
	fail := func(err error) (*runtime, error) {
		rt.Close()
		return nil, err
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return fail(err)
	}
	rt.closers = append(rt.closers, func() { store.Close() })

	outDir := a.cfg.Output.Dir
	foods, err := files.NewFoodWriter(outDir)
	if err != nil {
		return fail(err)
	}
	aggregates, err := files.NewAggregateWriter(outDir, a.textInexact())
	if err != nil {
		return fail(err)
	}

	useBrowser := need.extract || (need.resolve && a.cfg.Resolver.Backend == config.BackendBrowser)
	var session *browser.Session
	if useBrowser {
		session, err = browser.Start(ctx, a.browserOptions(), logger)
		if err != nil {
			return fail(err)
		}
		rt.closers = append(rt.closers, func() { session.Close() })
	}

	var resolver *usecase.Resolver
	if need.resolve {
		lists, err := files.NewLists(outDir)
		if err != nil {
			return fail(err)
		}

		var search domain.SearchPage = session
		if a.cfg.Resolver.Backend == config.BackendAPI {
			search = fdcapi.NewClient(fdcapi.ClientConfig{
				APIKey:            a.cfg.Source.APIKey,
				BaseURL:           a.cfg.Source.APIBaseURL,
				DataType:          a.cfg.Source.DataType,
				DetailURLTemplate: a.cfg.Source.DetailURLTemplate,
			}, logger)
		}

		matchCache := cache.NewMatchCache()
		rt.closers = append(rt.closers, matchCache.Close)

		resolver = usecase.NewResolver(search, lists, matchCache, usecase.ResolverConfig{
			MaxRetries:     a.cfg.Resolver.MaxRetries,
			InitialBackoff: a.cfg.Resolver.InitialBackoff,
			MaxBackoff:     a.cfg.Resolver.MaxBackoff,
			CacheTTL:       a.cfg.Resolver.CacheTTL,
		}, logger)
	}

	var pages domain.PageSource
	if session != nil {
		pages = session
	}
	extractor := usecase.NewExtractor(
		pages,
		usecase.NewClassifier(a.cfg.Categories),
		usecase.NewNormalizer(usecase.NormalizerConfig{
			Strict: a.cfg.Units.Strict,
			Known:  a.cfg.Units.Known,
		}, logger),
		logger,
	)

	rt.pipeline = usecase.NewPipeline(resolver, extractor, store, foods, aggregates,
		usecase.PipelineConfig{ExtractResolved: need.extract}, logger)
	return rt, nil
}

// inputItems returns args, or the lines of the input file when no args are given
func inputItems(args []string, path string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if path == "" {
		return nil, fmt.Errorf("%w: no items given and no input file configured", domain.ErrInvalidRequest)
	}
	return files.ReadLines(path)
}
