package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/content-pipeline/internal/ai"
	"github.com/content-pipeline/internal/approval"
	"github.com/content-pipeline/internal/curation"
	"github.com/content-pipeline/internal/metrics"
	"github.com/content-pipeline/internal/models"
	"github.com/content-pipeline/internal/source"
	"github.com/content-pipeline/internal/storage"
	"github.com/content-pipeline/internal/validation"
	"github.com/content-pipeline/pkg/logger"
)

// DraftGenerator produces a draft from the selected articles
type DraftGenerator interface {
	GenerateDraft(ctx context.Context, articles []*models.Article, topics []models.TrendingTopic, guidelines string) (*ai.Draft, error)
}

// CoverFinder looks up a cover image for a set of keywords
type CoverFinder interface {
	FindCover(ctx context.Context, keywords []string) (url, credit string, err error)
}

// Options configures selection and prompting
type Options struct {
	WindowDays        int
	MaxArticles       int
	PreferTrending    bool
	DefaultGuidelines string
}

// Agent runs the fetch → score → select → generate → validate → submit pipeline
type Agent struct {
	repository storage.Repository
	fetcher    *source.Fetcher
	scorer     *curation.Scorer
	selector   *curation.Selector
	generator  DraftGenerator
	validator  *validation.Validator
	workflow   *approval.Workflow
	covers     CoverFinder
	opts       Options
	now        func() time.Time
	log        *logger.Logger
}

// NewAgent creates a new pipeline agent
func NewAgent(
	repository storage.Repository,
	fetcher *source.Fetcher,
	scorer *curation.Scorer,
	generator DraftGenerator,
	validator *validation.Validator,
	workflow *approval.Workflow,
	opts Options,
	log *logger.Logger,
) *Agent {
	return &Agent{
		repository: repository,
		fetcher:    fetcher,
		scorer:     scorer,
		selector:   curation.NewSelector(scorer),
		generator:  generator,
		validator:  validator,
		workflow:   workflow,
		opts:       opts,
		now:        time.Now,
		log:        log.WithComponent("pipeline"),
	}
}

// SetCoverFinder enables cover images for generated posts
func (a *Agent) SetCoverFinder(c CoverFinder) {
	a.covers = c
}

// FetchResult contains the results of a fetch-only run
type FetchResult struct {
	ArticlesFound  int                  `json:"articlesFound"`
	SourcesFetched int                  `json:"sourcesFetched"`
	SourcesSkipped int                  `json:"sourcesSkipped"`
	SourcesFailed  []source.SourceError `json:"sourcesFailed"`
	Duration       time.Duration        `json:"duration"`
}

// Fetch polls the active sources that are due and reports what they yielded
func (a *Agent) Fetch(ctx context.Context) (*FetchResult, error) {
	startTime := time.Now()
	now := a.now().UTC()
	result := &FetchResult{SourcesFailed: []source.SourceError{}}

	sources, err := a.repository.ListContentSources(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list content sources: %w", err)
	}

	due := make([]*models.ContentSource, 0, len(sources))
	for _, src := range sources {
		if src.IsDue(now) {
			due = append(due, src)
		}
	}
	result.SourcesSkipped = len(sources) - len(due)

	if len(due) == 0 {
		a.log.Info().Int("active_sources", len(sources)).Msg("No content sources due")
		result.Duration = time.Since(startTime)
		return result, nil
	}

	fetched := a.fetcher.Fetch(ctx, due, now)
	metrics.RecordFetch(len(fetched.Articles), fetched.SourcesFetched, len(fetched.FailedSources))

	result.ArticlesFound = len(fetched.Articles)
	result.SourcesFetched = fetched.SourcesFetched
	result.SourcesFailed = append(result.SourcesFailed, fetched.FailedSources...)
	result.Duration = time.Since(startTime)

	a.log.Info().
		Int("articles_found", result.ArticlesFound).
		Int("sources_fetched", result.SourcesFetched).
		Int("sources_failed", len(result.SourcesFailed)).
		Dur("duration", result.Duration).
		Msg("Fetch completed")

	return result, nil
}

// RunResult contains the results of a full pipeline run
type RunResult struct {
	ArticlesFound    int                    `json:"articlesFound"`
	SourcesFetched   int                    `json:"sourcesFetched"`
	SourcesFailed    []source.SourceError   `json:"sourcesFailed"`
	TopicsFound      int                    `json:"topicsFound"`
	Topics           []models.TrendingTopic `json:"topics"`
	ArticlesSelected int                    `json:"articlesSelected"`
	PostID           uint                   `json:"postId,omitempty"`
	Slug             string                 `json:"slug,omitempty"`
	Validation       *validation.Result     `json:"validation,omitempty"`
	EmailError       string                 `json:"emailError,omitempty"`
	Skipped          string                 `json:"skipped,omitempty"`
	Duration         time.Duration          `json:"duration"`
}

// Run executes the whole pipeline once. An empty selection ends the run
// without calling the generator; an invalid draft is reported, not saved.
func (a *Agent) Run(ctx context.Context) (*RunResult, error) {
	startTime := time.Now()
	now := a.now().UTC()
	result := &RunResult{SourcesFailed: []source.SourceError{}, Topics: []models.TrendingTopic{}}
	defer func() {
		result.Duration = time.Since(startTime)
		metrics.PipelineDuration.Observe(result.Duration.Seconds())
	}()

	a.log.Info().Msg("Starting blog pipeline run")

	// Step 1: Fetch articles from all active sources
	sources, err := a.repository.ListContentSources(ctx, true)
	if err != nil {
		return result, fmt.Errorf("failed to list content sources: %w", err)
	}

	fetched := a.fetcher.Fetch(ctx, sources, now)
	metrics.RecordFetch(len(fetched.Articles), fetched.SourcesFetched, len(fetched.FailedSources))
	result.ArticlesFound = len(fetched.Articles)
	result.SourcesFetched = fetched.SourcesFetched
	result.SourcesFailed = append(result.SourcesFailed, fetched.FailedSources...)

	// Step 2: Score trending topics
	topics := a.scorer.Score(fetched.Articles, now)
	result.Topics = topics
	result.TopicsFound = len(topics)

	// Step 3: Select articles
	selected := a.selector.Select(fetched.Articles, topics, curation.SelectOptions{
		MaxArticles:    a.opts.MaxArticles,
		WindowDays:     a.opts.WindowDays,
		PreferTrending: a.opts.PreferTrending,
	}, now)
	result.ArticlesSelected = len(selected)

	a.log.Info().
		Int("articles_found", result.ArticlesFound).
		Int("topics_found", result.TopicsFound).
		Int("articles_selected", result.ArticlesSelected).
		Msg("Curated articles")

	if len(selected) == 0 {
		result.Skipped = "no articles in window"
		metrics.Drafts.WithLabelValues("skipped").Inc()
		a.log.Warn().Msg("No articles selected, nothing to generate")
		return result, nil
	}

	// Step 4: Generate
	guidelines, err := a.guidelines(ctx)
	if err != nil {
		return result, err
	}

	draft, err := a.generator.GenerateDraft(ctx, selected, topics, guidelines)
	if err != nil {
		metrics.Drafts.WithLabelValues("error").Inc()
		return result, fmt.Errorf("failed to generate draft: %w", err)
	}

	// Step 5: Validate
	check := a.validator.Validate(draft)
	result.Validation = &check
	if !check.Valid {
		metrics.Drafts.WithLabelValues("invalid").Inc()
		a.log.Warn().
			Strs("errors", check.Errors).
			Str("title", draft.Title).
			Msg("Draft failed validation, not saved")
		return result, nil
	}
	metrics.Drafts.WithLabelValues("valid").Inc()

	// Step 6: Persist and send for approval
	var opts []approval.PostOption
	if cover := a.findCover(ctx, draft.Keywords); cover != nil {
		opts = append(opts, cover)
	}

	submitted, err := a.workflow.CreateAndSubmit(ctx, draft, models.OriginPipeline, opts...)
	if err != nil {
		return result, fmt.Errorf("failed to save draft: %w", err)
	}
	result.PostID = submitted.Post.ID
	result.Slug = submitted.Post.Slug
	result.EmailError = submitted.EmailError

	a.log.Info().
		Uint("post_id", result.PostID).
		Str("slug", result.Slug).
		Dur("duration", time.Since(startTime)).
		Msg("Pipeline run completed")

	return result, nil
}

func (a *Agent) guidelines(ctx context.Context) (string, error) {
	g, err := a.repository.GetGuideline(ctx, models.BlogGuidelineName)
	if errors.Is(err, storage.ErrNotFound) {
		return a.opts.DefaultGuidelines, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load guidelines: %w", err)
	}
	if strings.TrimSpace(g.Content) == "" {
		return a.opts.DefaultGuidelines, nil
	}
	return g.Content, nil
}

func (a *Agent) findCover(ctx context.Context, keywords []string) approval.PostOption {
	if a.covers == nil || len(keywords) == 0 {
		return nil
	}
	url, credit, err := a.covers.FindCover(ctx, keywords)
	if err != nil {
		a.log.Warn().Err(err).Strs("keywords", keywords).Msg("No cover image, continuing without one")
		return nil
	}
	return approval.WithCover(url, credit)
}
