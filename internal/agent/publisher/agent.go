package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/content-pipeline/internal/approval"
	"github.com/content-pipeline/internal/config"
	"github.com/content-pipeline/internal/metrics"
	"github.com/content-pipeline/internal/models"
	"github.com/content-pipeline/internal/storage"
	"github.com/content-pipeline/pkg/logger"
)

// Agent publishes posts whose slot has arrived
type Agent struct {
	repository storage.Repository
	recorder   approval.Recorder
	config     config.PublishingConfig
	log        *logger.Logger
}

// NewAgent creates a new publisher agent
func NewAgent(repository storage.Repository, publishConfig config.PublishingConfig, log *logger.Logger) *Agent {
	return &Agent{
		repository: repository,
		config:     publishConfig,
		log:        log.WithComponent("publisher"),
	}
}

// SetRecorder attaches a lifecycle event recorder
func (a *Agent) SetRecorder(r approval.Recorder) {
	a.recorder = r
}

// SweepResult contains the results of one publish sweep
type SweepResult struct {
	Candidates int    `json:"candidates"`
	Published  int    `json:"published"`
	PostIDs    []uint `json:"postIds"`
	Errors     int    `json:"errors"`
}

// Sweep publishes APPROVED posts due by now and scheduled DRAFTs due within the
// configured lookahead. Each row is flipped with an update scoped to the status
// it was read in, so a repeated or concurrent sweep publishes nothing twice.
func (a *Agent) Sweep(ctx context.Context, now time.Time) (*SweepResult, error) {
	now = now.UTC()
	result := &SweepResult{PostIDs: []uint{}}

	posts, err := a.repository.ListDuePosts(ctx, now, now.Add(a.config.DraftLookahead))
	if err != nil {
		return nil, fmt.Errorf("failed to list due posts: %w", err)
	}
	result.Candidates = len(posts)

	for _, post := range posts {
		log := a.log.WithPostID(post.ID)

		ok, err := a.repository.PublishPost(ctx, post.ID, post.Status, now)
		if err != nil {
			log.Error().Err(err).Msg("Failed to publish post")
			result.Errors++
			continue
		}
		if !ok {
			log.Debug().Msg("Post already moved on, skipping")
			continue
		}

		result.Published++
		result.PostIDs = append(result.PostIDs, post.ID)
		metrics.PostsPublished.WithLabelValues(string(post.Status)).Inc()

		log.Info().
			Str("slug", post.Slug).
			Str("from", string(post.Status)).
			Msg("Post published")

		if a.recorder != nil {
			post.Status = models.PostStatusPublished
			post.PublishedAt = &now
			a.recorder.Record(ctx, approval.EventPublished, post)
		}
	}

	a.log.Info().
		Int("candidates", result.Candidates).
		Int("published", result.Published).
		Int("errors", result.Errors).
		Msg("Publish sweep complete")

	return result, nil
}

// Schedule sets the publish time of a DRAFT or APPROVED post
func (a *Agent) Schedule(ctx context.Context, postID uint, scheduledFor time.Time) error {
	ok, err := a.repository.SchedulePost(ctx, postID, scheduledFor)
	if err != nil {
		return fmt.Errorf("failed to schedule post: %w", err)
	}
	if !ok {
		if _, err := a.repository.GetPostByID(ctx, postID); err != nil {
			return err
		}
		return fmt.Errorf("%w: only drafts and approved posts can be scheduled", approval.ErrInvalidState)
	}

	a.log.WithPostID(postID).Info().
		Time("scheduled_for", scheduledFor.UTC()).
		Msg("Post scheduled")
	return nil
}
