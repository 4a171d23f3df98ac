package source

import (
	"context"
	"sort"
	"time"

	"github.com/content-pipeline/internal/models"
	"github.com/content-pipeline/pkg/logger"
	"github.com/content-pipeline/pkg/ratelimit"
)

// DefaultWindowDays is the trailing window applied when none is configured
const DefaultWindowDays = 7

// Toucher records when a content source was last fetched
type Toucher interface {
	TouchContentSource(ctx context.Context, id uint, fetchedAt time.Time) error
}

// SourceError describes one source that failed during a fetch run
type SourceError struct {
	SourceID   uint   `json:"source_id"`
	SourceName string `json:"source_name"`
	Error      string `json:"error"`
}

// FetchResult is the outcome of one fetch run
type FetchResult struct {
	Articles       []*models.Article
	SourcesFetched int
	FailedSources  []SourceError
}

// Fetcher pulls articles from every given content source
type Fetcher struct {
	newSource  Factory
	store      Toucher
	limiter    *ratelimit.MultiLimiter
	windowDays int
	log        *logger.Logger
}

// NewFetcher creates a fetcher. store and limiter may be nil.
func NewFetcher(newSource Factory, store Toucher, limiter *ratelimit.MultiLimiter, windowDays int, log *logger.Logger) *Fetcher {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	return &Fetcher{
		newSource:  newSource,
		store:      store,
		limiter:    limiter,
		windowDays: windowDays,
		log:        log.WithComponent("fetcher"),
	}
}

// Fetch reads the sources one after another. A failing source is logged and
// skipped; it never aborts the run and is not retried.
func (f *Fetcher) Fetch(ctx context.Context, sources []*models.ContentSource, now time.Time) FetchResult {
	result := FetchResult{Articles: make([]*models.Article, 0)}
	cutoff := now.Add(-time.Duration(f.windowDays) * 24 * time.Hour)
	seen := make(map[string]bool)

	for _, src := range sources {
		if ctx.Err() != nil {
			result.FailedSources = append(result.FailedSources, SourceError{
				SourceID: src.ID, SourceName: src.Name, Error: ctx.Err().Error(),
			})
			continue
		}

		if f.limiter != nil {
			if err := f.limiter.Wait(ctx, ratelimit.LimiterRSS); err != nil {
				result.FailedSources = append(result.FailedSources, SourceError{
					SourceID: src.ID, SourceName: src.Name, Error: err.Error(),
				})
				continue
			}
		}

		articles, err := f.newSource(src).Fetch(ctx)
		if err != nil {
			f.log.Warn().Err(err).
				Str("source", src.Name).
				Str("feed_url", src.FeedURL).
				Msg("Failed to fetch source")
			result.FailedSources = append(result.FailedSources, SourceError{
				SourceID: src.ID, SourceName: src.Name, Error: err.Error(),
			})
			continue
		}
		result.SourcesFetched++

		kept := 0
		for _, a := range articles {
			if a == nil || a.URL == "" {
				continue
			}
			if a.PublishedAt.Before(cutoff) {
				continue
			}
			key := NormalizeURL(a.URL)
			if seen[key] {
				continue
			}
			seen[key] = true
			result.Articles = append(result.Articles, a)
			kept++
		}

		if f.store != nil && src.ID != 0 {
			if err := f.store.TouchContentSource(ctx, src.ID, now); err != nil {
				f.log.Warn().Err(err).Str("source", src.Name).Msg("Failed to record fetch time")
			}
		}

		f.log.Debug().
			Str("source", src.Name).
			Int("fetched", len(articles)).
			Int("kept", kept).
			Msg("Fetched source")
	}

	sort.SliceStable(result.Articles, func(i, j int) bool {
		return result.Articles[i].PublishedAt.After(result.Articles[j].PublishedAt)
	})

	f.log.Info().
		Int("sources", len(sources)).
		Int("failed", len(result.FailedSources)).
		Int("articles", len(result.Articles)).
		Msg("Fetch complete")

	return result
}
