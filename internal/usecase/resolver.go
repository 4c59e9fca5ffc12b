package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fdcscrape/scraper/internal/domain"
	"github.com/rs/zerolog"
)

// ResolverConfig holds configuration for the resolver
type ResolverConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	CacheTTL       time.Duration
}

// Resolver maps free-text food names to FDC descriptions and detail links
type Resolver struct {
	search         domain.SearchPage
	sink           domain.ResolutionSink
	cache          domain.MatchCache
	ranker         *Ranker
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	cacheTTL       time.Duration
	logger         zerolog.Logger
}

// NewResolver creates a new resolver. cache may be nil.
func NewResolver(
	search domain.SearchPage,
	sink domain.ResolutionSink,
	cache domain.MatchCache,
	config ResolverConfig,
	logger zerolog.Logger,
) *Resolver {
	initial := config.InitialBackoff
	if initial <= 0 {
		initial = time.Second
	}
	maxBackoff := config.MaxBackoff
	if maxBackoff < initial {
		maxBackoff = initial
	}
	cacheTTL := config.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}

	return &Resolver{
		search:         search,
		sink:           sink,
		cache:          cache,
		ranker:         NewRanker(),
		maxRetries:     config.MaxRetries,
		initialBackoff: initial,
		maxBackoff:     maxBackoff,
		cacheTTL:       cacheTTL,
		logger:         logger.With().Str("component", "resolver").Logger(),
	}
}

// Resolve searches for query and records the outcome in the sink.
// Transient search failures are retried with exponential backoff; once
// retries are exhausted the query is recorded as missing and ErrGaveUp is
// returned.
//
// The query is searched trimmed but recorded verbatim.
func (r *Resolver) Resolve(ctx context.Context, query string) (*domain.Resolution, error) {
	term := strings.TrimSpace(query)
	if term == "" {
		return nil, domain.ErrInvalidRequest
	}
	logger := r.logger.With().Str("query", query).Logger()

	key := "resolve:" + normalizeQuery(term)
	if r.cache != nil {
		if matches, err := r.cache.Get(ctx, key); err == nil {
			logger.Debug().Int("matches", len(matches)).Msg("answered from cache")
			matches = r.attribute(matches, query)
			res := &domain.Resolution{Query: query, Matches: matches, Missing: len(matches) == 0, Cached: true}
			r.record(res)
			return res, nil
		}
	}

	var res *domain.Resolution
	operation := func() error {
		descriptions, err := r.search.Search(ctx, term)
		if err != nil {
			if errors.Is(err, domain.ErrDriverUnavailable) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		res = r.collect(ctx, query, descriptions)
		return nil
	}

	notify := func(err error, wait time.Duration) {
		logger.Warn().Err(err).Dur("retry_in", wait).Msg("search failed, retrying")
	}

	if err := backoff.RetryNotify(operation, r.newBackOff(ctx), notify); err != nil {
		if errors.Is(err, domain.ErrDriverUnavailable) || ctx.Err() != nil {
			return nil, err
		}
		logger.Error().Err(err).Int("retries", r.maxRetries).Msg("giving up on query")
		res = &domain.Resolution{Query: query, Missing: true}
		r.record(res)
		return res, fmt.Errorf("%w: %s: %v", domain.ErrGaveUp, query, err)
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, res.Matches, r.cacheTTL); err != nil {
			logger.Warn().Err(err).Msg("failed to cache resolution")
		}
	}

	r.record(res)
	logger.Info().Int("matches", len(res.Matches)).Int("urls", len(res.URLs())).Msg("resolved")
	return res, nil
}

func (r *Resolver) newBackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = r.initialBackoff
	exp.MaxInterval = r.maxBackoff
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(r.maxRetries)), ctx)
}

// attribute copies cached matches over to the spelling of query that hit
// the cache
func (r *Resolver) attribute(matches []domain.FoodMatch, query string) []domain.FoodMatch {
	out := make([]domain.FoodMatch, len(matches))
	for i, m := range matches {
		m.Query = query
		m.Score = r.ranker.Score(query, m.Description)
		out[i] = m
	}
	return out
}

// collect looks up the detail link of every description. A failed lookup
// only affects its own match.
func (r *Resolver) collect(ctx context.Context, query string, descriptions []string) *domain.Resolution {
	res := &domain.Resolution{Query: query, Missing: len(descriptions) == 0}
	for _, description := range descriptions {
		match := domain.FoodMatch{
			Query:       query,
			Description: description,
			Score:       r.ranker.Score(query, description),
		}
		link, err := r.search.LinkFor(ctx, description)
		if err != nil {
			r.logger.Error().Err(err).Str("query", query).Str("description", description).Msg("failed to locate detail link")
		} else {
			match.URL = link
		}
		res.Matches = append(res.Matches, match)
	}
	return res
}

// record writes a resolution to the output lists: the query to missing,
// or every description to corrected names followed by the found links
func (r *Resolver) record(res *domain.Resolution) {
	if r.sink == nil {
		return
	}
	if res.Missing {
		if err := r.sink.Missing(res.Query); err != nil {
			r.logger.Error().Err(err).Str("query", res.Query).Msg("failed to write missing list")
		}
		return
	}
	for _, m := range res.Matches {
		if err := r.sink.Corrected(m.Description); err != nil {
			r.logger.Error().Err(err).Str("description", m.Description).Msg("failed to write corrected list")
		}
	}
	for _, m := range res.Matches {
		if m.URL != "" {
			if err := r.sink.URL(m.URL); err != nil {
				r.logger.Error().Err(err).Str("url", m.URL).Msg("failed to write url list")
			}
		}
		if err := r.sink.Match(m); err != nil {
			r.logger.Error().Err(err).Str("description", m.Description).Msg("failed to write match report")
		}
	}
}
