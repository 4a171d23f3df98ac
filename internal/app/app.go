// Package app wires configuration into the running components shared by the
// CLI and the scheduler daemon.
package app

import (
	"context"
	"fmt"

	"github.com/content-pipeline/internal/agent/pipeline"
	"github.com/content-pipeline/internal/agent/publisher"
	"github.com/content-pipeline/internal/ai"
	"github.com/content-pipeline/internal/approval"
	"github.com/content-pipeline/internal/config"
	"github.com/content-pipeline/internal/curation"
	"github.com/content-pipeline/internal/media/unsplash"
	"github.com/content-pipeline/internal/notify"
	"github.com/content-pipeline/internal/source"
	"github.com/content-pipeline/internal/source/rss"
	"github.com/content-pipeline/internal/storage/gormstore"
	"github.com/content-pipeline/internal/tracker"
	"github.com/content-pipeline/internal/validation"
	"github.com/content-pipeline/pkg/logger"
	"github.com/content-pipeline/pkg/ratelimit"
)

// App holds the wired components
type App struct {
	Config    *config.Config
	Log       *logger.Logger
	Repo      *gormstore.Repository
	Limiter   *ratelimit.MultiLimiter
	Validator *validation.Validator
	Workflow  *approval.Workflow
	Publisher *publisher.Agent
	Tracker   *tracker.SheetsTracker

	pipeline *pipeline.Agent
}

// NewLogger builds the process logger from config
func NewLogger(cfg *config.Config) *logger.Logger {
	return logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// New opens storage and builds everything that does not need AI credentials.
// The pipeline agent is built lazily by Pipeline.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	repo, err := gormstore.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := repo.Migrate(); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	limiter := ratelimit.New(ratelimit.Limits{
		AIRequestsPerMinute:    cfg.RateLimit.AIRequestsPerMinute,
		SourceRequestsPerHour:  cfg.RateLimit.SourceRequestsPerHour,
		EmailRequestsPerMinute: cfg.RateLimit.EmailRequestsPerMinute,
	})

	mailer, err := notify.New(cfg.Email, limiter, log)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	days, err := approval.ParseWeekdays(cfg.Approval.PublishDays)
	if err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("invalid approval.publish_days: %w", err)
	}

	validator := validation.New(cfg.Validation)
	workflow := approval.NewWorkflow(repo, mailer, approval.Options{
		BaseURL:       cfg.Approval.BaseURL,
		ReviewerEmail: cfg.Approval.ReviewerEmail,
		Slot: approval.SlotConfig{
			Days:           days,
			Hour:           cfg.Approval.PublishHour,
			UTCOffsetHours: cfg.Approval.UTCOffsetHours,
		},
		DefaultCategory: cfg.Blog.DefaultCategory,
		MaxTags:         cfg.Blog.MaxTags,
		Validator:       validator,
	}, log)

	pub := publisher.NewAgent(repo, cfg.Publishing, log)

	a := &App{
		Config:    cfg,
		Log:       log,
		Repo:      repo,
		Limiter:   limiter,
		Validator: validator,
		Workflow:  workflow,
		Publisher: pub,
	}

	if cfg.Tracker.Enabled {
		t, err := tracker.NewSheetsTracker(ctx, cfg.Tracker, log)
		if err != nil {
			// The sheet is a mirror; the pipeline keeps running without it
			log.Warn().Err(err).Msg("Tracker disabled")
		} else {
			a.Tracker = t
			workflow.SetRecorder(t)
			pub.SetRecorder(t)
		}
	}

	return a, nil
}

// Pipeline returns the fetch and generate agent, building the AI client on first use
func (a *App) Pipeline() (*pipeline.Agent, error) {
	if a.pipeline != nil {
		return a.pipeline, nil
	}

	completer, err := ai.NewCompleter(a.Config, a.Limiter, a.Log)
	if err != nil {
		return nil, err
	}
	cfg := a.Config

	fetcher := source.NewFetcher(rss.Factory(a.Log), a.Repo, a.Limiter, cfg.Pipeline.WindowDays, a.Log)
	scorer := curation.NewScorer(curation.ScorerOptions{
		TopK:           cfg.Pipeline.TopTopics,
		MinFrequency:   cfg.Pipeline.MinFrequency,
		ExtraStopWords: cfg.Pipeline.ExtraStopWords,
	})

	agent := pipeline.NewAgent(
		a.Repo,
		fetcher,
		scorer,
		ai.NewGenerator(completer, cfg.Validation, a.Log),
		a.Validator,
		a.Workflow,
		pipeline.Options{
			WindowDays:        cfg.Pipeline.WindowDays,
			MaxArticles:       cfg.Pipeline.MaxArticles,
			PreferTrending:    cfg.Pipeline.PreferTrending,
			DefaultGuidelines: cfg.Pipeline.DefaultGuidelines,
		},
		a.Log,
	)
	if cfg.Media.Enabled && cfg.Media.UnsplashAPIKey != "" {
		agent.SetCoverFinder(unsplash.NewClient(cfg.Media.UnsplashAPIKey, a.Limiter, a.Log))
	}

	a.pipeline = agent
	return agent, nil
}

// FetchOnly returns a pipeline agent usable for Fetch without AI credentials
func (a *App) FetchOnly() *pipeline.Agent {
	cfg := a.Config
	fetcher := source.NewFetcher(rss.Factory(a.Log), a.Repo, a.Limiter, cfg.Pipeline.WindowDays, a.Log)
	scorer := curation.NewScorer(curation.ScorerOptions{TopK: cfg.Pipeline.TopTopics})
	return pipeline.NewAgent(a.Repo, fetcher, scorer, nil, a.Validator, a.Workflow, pipeline.Options{
		WindowDays: cfg.Pipeline.WindowDays,
	}, a.Log)
}

// Close releases the database connection
func (a *App) Close() error {
	return a.Repo.Close()
}
