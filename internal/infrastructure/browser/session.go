package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/fdcscrape/scraper/internal/domain"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Options configures a browser session
type Options struct {
	Headless          bool
	ExecPaths         []string // tried in order; empty means autodetect
	WaitTimeout       time.Duration
	SettleDelay       time.Duration
	RequestsPerSecond float64
	Burst             int
	SearchURLTemplate string // %s is the escaped query
	Selectors         Selectors
}

// Session is one headless browser tab driving the FDC web UI. It serves
// both as the resolver's search page and as the extractor's page source.
// Calls are serialized.
type Session struct {
	opts    Options
	limiter *rate.Limiter
	logger  zerolog.Logger

	tab         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc

	mu         sync.Mutex
	lastSearch *goquery.Document
	lastURL    string
}

var (
	_ domain.SearchPage = (*Session)(nil)
	_ domain.PageSource = (*Session)(nil)
)

// Start launches the browser, trying each configured executable in turn.
// It returns ErrDriverUnavailable when none of them start.
func Start(ctx context.Context, opts Options, logger zerolog.Logger) (*Session, error) {
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 10 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 1
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	logger = logger.With().Str("component", "browser").Logger()

	paths := opts.ExecPaths
	if len(paths) == 0 {
		paths = []string{""}
	}

	var errs []error
	for _, path := range paths {
		allocOpts := make([]chromedp.ExecAllocatorOption, 0, len(chromedp.DefaultExecAllocatorOptions)+2)
		allocOpts = append(allocOpts, chromedp.DefaultExecAllocatorOptions[:]...)
		allocOpts = append(allocOpts, chromedp.Flag("headless", opts.Headless))
		if path != "" {
			allocOpts = append(allocOpts, chromedp.ExecPath(path))
		}
		allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
		tab, cancelTab := chromedp.NewContext(allocCtx)

		// the first Run starts the browser
		if err := chromedp.Run(tab); err != nil {
			cancelTab()
			cancelAlloc()
			logger.Warn().Err(err).Str("exec_path", path).Msg("browser failed to start")
			errs = append(errs, fmt.Errorf("%s: %w", displayPath(path), err))
			continue
		}

		logger.Info().Str("exec_path", displayPath(path)).Bool("headless", opts.Headless).Msg("browser started")
		return &Session{
			opts:        opts,
			limiter:     rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
			logger:      logger,
			tab:         tab,
			cancelTab:   cancelTab,
			cancelAlloc: cancelAlloc,
		}, nil
	}

	return nil, fmt.Errorf("%w: %w", domain.ErrDriverUnavailable, errors.Join(errs...))
}

func displayPath(path string) string {
	if path == "" {
		return "autodetect"
	}
	return path
}

// Search runs a query on the search page and returns the result
// descriptions. The rendered page is kept for LinkFor.
func (s *Session) Search(ctx context.Context, query string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := fmt.Sprintf(s.opts.SearchURLTemplate, url.QueryEscape(query))
	html, err := s.render(ctx, target, "body")
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse search page: %w", err)
	}
	s.lastSearch = doc
	s.lastURL = target

	descriptions := searchDescriptions(doc, s.opts.Selectors)
	s.logger.Debug().Str("query", query).Int("results", len(descriptions)).Msg("search rendered")
	return descriptions, nil
}

// LinkFor returns the detail link whose text is exactly description on the
// most recent search page
func (s *Session) LinkFor(ctx context.Context, description string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastSearch == nil {
		return "", fmt.Errorf("%w: no search page loaded", domain.ErrElementNotFound)
	}
	return findLink(s.lastSearch, s.lastURL, description)
}

// FoodPage renders a food detail page and reads its nutrient table
func (s *Session) FoodPage(ctx context.Context, pageURL string) (*domain.FoodPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	html, err := s.render(ctx, pageURL, s.opts.Selectors.TableRows)
	if err != nil {
		return nil, err
	}
	page, err := ParseFoodPage(strings.NewReader(html), pageURL, s.opts.Selectors)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", pageURL, err)
	}
	return page, nil
}

// render navigates to target, waits for selector and the settle delay, and
// returns the page HTML
func (s *Session) render(ctx context.Context, target, selector string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	navCtx, cancel := s.scoped(ctx, s.opts.WaitTimeout)
	if err := chromedp.Run(navCtx, chromedp.Navigate(target)); err != nil {
		cancel()
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %s: %v", domain.ErrNavigation, target, err)
	}
	cancel()

	waitCtx, cancel := s.scoped(ctx, s.opts.WaitTimeout)
	defer cancel()
	if err := chromedp.Run(waitCtx, chromedp.WaitReady(selector, chromedp.ByQuery)); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %q on %s: %v", domain.ErrElementNotFound, selector, target, err)
	}

	var html string
	actions := []chromedp.Action{chromedp.OuterHTML("html", &html, chromedp.ByQuery)}
	if s.opts.SettleDelay > 0 {
		actions = append([]chromedp.Action{chromedp.Sleep(s.opts.SettleDelay)}, actions...)
	}
	readCtx, cancelRead := s.scoped(ctx, s.opts.WaitTimeout+s.opts.SettleDelay)
	defer cancelRead()
	if err := chromedp.Run(readCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %s: %v", domain.ErrNavigation, target, err)
	}
	return html, nil
}

// scoped derives a per-step context from the tab that also ends when ctx does
func (s *Session) scoped(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	stepCtx, cancel := context.WithTimeout(s.tab, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return stepCtx, func() {
		stop()
		cancel()
	}
}

// Close shuts the browser down
func (s *Session) Close() error {
	s.cancelTab()
	s.cancelAlloc()
	return nil
}
