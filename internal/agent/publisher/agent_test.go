package publisher

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/content-pipeline/internal/approval"
	"github.com/content-pipeline/internal/config"
	"github.com/content-pipeline/internal/models"
	"github.com/content-pipeline/internal/storage"
	"github.com/content-pipeline/internal/storage/gormstore"
	"github.com/content-pipeline/pkg/logger"
)

type countingRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *countingRecorder) Record(ctx context.Context, event string, post *models.BlogPost) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func newTestRepo(t *testing.T) *gormstore.Repository {
	t.Helper()
	repo, err := gormstore.New(config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "publisher.db")})
	require.NoError(t, err)
	require.NoError(t, repo.Migrate())
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func approvedPost(t *testing.T, repo *gormstore.Repository, slug string, scheduledFor time.Time) *models.BlogPost {
	t.Helper()
	ctx := context.Background()
	post := &models.BlogPost{Slug: slug, Title: slug, Status: models.PostStatusDraft, Origin: models.OriginPipeline}
	require.NoError(t, repo.CreatePost(ctx, post))
	ok, err := repo.SubmitPost(ctx, post.ID, "tok-"+slug, scheduledFor.Add(-48*time.Hour))
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = repo.ApprovePost(ctx, "tok-"+slug, "editor", scheduledFor.Add(-24*time.Hour), scheduledFor)
	require.NoError(t, err)
	require.True(t, ok)
	return post
}

func TestSweepTwicePublishesOnce(t *testing.T) {
	repo := newTestRepo(t)
	rec := &countingRecorder{}
	agent := NewAgent(repo, config.PublishingConfig{}, logger.Nop())
	agent.SetRecorder(rec)

	now := time.Date(2026, 3, 4, 9, 5, 0, 0, time.UTC)
	post := approvedPost(t, repo, "due-post", now.Add(-5*time.Minute))

	first, err := agent.Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Published)
	assert.Equal(t, []uint{post.ID}, first.PostIDs)

	second, err := agent.Sweep(context.Background(), now.Add(500*time.Millisecond))
	require.NoError(t, err)
	assert.Zero(t, second.Published)
	assert.Zero(t, second.Candidates)

	got, err := repo.GetPostByID(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPublished, got.Status)
	require.NotNil(t, got.PublishedAt)
	assert.True(t, now.Equal(*got.PublishedAt))
	assert.Equal(t, []string{approval.EventPublished}, rec.events)
}

func TestConcurrentSweepsPublishOnce(t *testing.T) {
	repo := newTestRepo(t)
	agent := NewAgent(repo, config.PublishingConfig{}, logger.Nop())
	now := time.Date(2026, 3, 4, 9, 5, 0, 0, time.UTC)
	approvedPost(t, repo, "race-post", now.Add(-time.Minute))

	var wg sync.WaitGroup
	results := make([]*SweepResult, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := agent.Sweep(context.Background(), now)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	total := 0
	for _, r := range results {
		if r != nil {
			total += r.Published
		}
	}
	assert.Equal(t, 1, total)
}

func TestSweepSkipsFuturePosts(t *testing.T) {
	repo := newTestRepo(t)
	agent := NewAgent(repo, config.PublishingConfig{}, logger.Nop())
	now := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	approvedPost(t, repo, "later", now.Add(2*time.Hour))

	res, err := agent.Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Zero(t, res.Published)
}

func TestSweepDraftLookahead(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)

	draft := &models.BlogPost{Slug: "scheduled-draft", Title: "d", Status: models.PostStatusDraft, Origin: models.OriginManual}
	require.NoError(t, repo.CreatePost(ctx, draft))

	agent := NewAgent(repo, config.PublishingConfig{}, logger.Nop())
	require.NoError(t, agent.Schedule(ctx, draft.ID, now.Add(3*time.Hour)))

	res, err := agent.Sweep(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, res.Published)

	lookahead := NewAgent(repo, config.PublishingConfig{DraftLookahead: 24 * time.Hour}, logger.Nop())
	res, err = lookahead.Sweep(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Published)
}

func TestScheduleRejectsPublishedPost(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	agent := NewAgent(repo, config.PublishingConfig{}, logger.Nop())
	now := time.Now().UTC()

	post := approvedPost(t, repo, "published", now.Add(-time.Hour))
	_, err := agent.Sweep(ctx, now)
	require.NoError(t, err)

	err = agent.Schedule(ctx, post.ID, now.Add(time.Hour))
	assert.ErrorIs(t, err, approval.ErrInvalidState)

	err = agent.Schedule(ctx, 999, now)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
