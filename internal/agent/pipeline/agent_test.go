package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/content-pipeline/internal/ai"
	"github.com/content-pipeline/internal/approval"
	"github.com/content-pipeline/internal/config"
	"github.com/content-pipeline/internal/curation"
	"github.com/content-pipeline/internal/models"
	"github.com/content-pipeline/internal/notify"
	"github.com/content-pipeline/internal/source"
	"github.com/content-pipeline/internal/storage"
	"github.com/content-pipeline/internal/storage/gormstore"
	"github.com/content-pipeline/internal/validation"
	"github.com/content-pipeline/pkg/logger"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type staticSource struct {
	articles []*models.Article
	err      error
}

func (s *staticSource) Name() string { return "static" }

func (s *staticSource) Fetch(ctx context.Context) ([]*models.Article, error) {
	return s.articles, s.err
}

func (s *staticSource) HealthCheck(ctx context.Context) error { return nil }

type fakeGenerator struct {
	draft *ai.Draft
	err   error
	calls int
	got   []*models.Article
}

func (f *fakeGenerator) GenerateDraft(ctx context.Context, articles []*models.Article, topics []models.TrendingTopic, guidelines string) (*ai.Draft, error) {
	f.calls++
	f.got = articles
	return f.draft, f.err
}

type fakeMailer struct {
	sent int
}

func (f *fakeMailer) Send(ctx context.Context, msg notify.Message) error {
	f.sent++
	return nil
}

type fakeCovers struct{}

func (fakeCovers) FindCover(ctx context.Context, keywords []string) (string, string, error) {
	return "https://images.example/" + keywords[0] + ".jpg", "Photo by Jane on Unsplash", nil
}

type harness struct {
	agent     *Agent
	repo      *gormstore.Repository
	feeds     map[string]*staticSource
	generator *fakeGenerator
	mailer    *fakeMailer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	repo, err := gormstore.New(config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "pipeline.db")})
	require.NoError(t, err)
	require.NoError(t, repo.Migrate())
	t.Cleanup(func() { _ = repo.Close() })

	h := &harness{
		repo:      repo,
		feeds:     map[string]*staticSource{},
		generator: &fakeGenerator{draft: validDraft()},
		mailer:    &fakeMailer{},
	}

	fetcher := source.NewFetcher(func(src *models.ContentSource) source.ArticleSource {
		if f, ok := h.feeds[src.Name]; ok {
			return f
		}
		return &staticSource{err: errors.New("unreachable")}
	}, repo, nil, 7, logger.Nop())

	workflow := approval.NewWorkflow(repo, h.mailer, approval.Options{
		BaseURL:       "https://site.example",
		ReviewerEmail: "editor@example.com",
		Slot:          approval.SlotConfig{Hour: 9},
	}, logger.Nop())

	h.agent = NewAgent(repo, fetcher, curation.NewScorer(curation.ScorerOptions{}), h.generator,
		validation.New(config.ValidationConfig{}), workflow,
		Options{WindowDays: 7, MaxArticles: 5, PreferTrending: true, DefaultGuidelines: "default rules"},
		logger.Nop())
	h.agent.now = func() time.Time { return now }
	return h
}

func (h *harness) addSource(t *testing.T, name string, articles []*models.Article) {
	t.Helper()
	require.NoError(t, h.repo.CreateContentSource(context.Background(), &models.ContentSource{
		Name: name, FeedURL: "https://" + name + ".example/feed", Active: true,
	}))
	h.feeds[name] = &staticSource{articles: articles}
}

func validDraft() *ai.Draft {
	return &ai.Draft{
		Title:      "Kubernetes Security This Week",
		Slug:       "kubernetes-security-this-week",
		Excerpt:    "The week in cluster security.",
		Content:    strings.Repeat("Cluster hardening matters. ", 80),
		Keywords:   []string{"kubernetes", "security"},
		SourceURLs: []string{"https://a.example/1"},
	}
}

func recentArticles(n int) []*models.Article {
	articles := make([]*models.Article, 0, n)
	for i := 0; i < n; i++ {
		articles = append(articles, &models.Article{
			Title:       fmt.Sprintf("Kubernetes security note %d", i),
			URL:         fmt.Sprintf("https://news.example/k8s-%d", i),
			Summary:     "cluster hardening",
			PublishedAt: now.Add(-time.Duration(i+1) * time.Hour),
			SourceName:  "news",
		})
	}
	return articles
}

func countPosts(t *testing.T, repo storage.Repository) int {
	t.Helper()
	posts, err := repo.ListPosts(context.Background(), storage.PostFilter{})
	require.NoError(t, err)
	return len(posts)
}

func TestFetchWithNoSources(t *testing.T) {
	h := newHarness(t)

	res, err := h.agent.Fetch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.ArticlesFound)

	run, err := h.agent.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, run.ArticlesFound)
	assert.Zero(t, h.generator.calls)
	assert.Zero(t, countPosts(t, h.repo))
}

func TestRunSkipsGenerationWhenNothingInWindow(t *testing.T) {
	h := newHarness(t)
	h.addSource(t, "stale", []*models.Article{
		{Title: "Old news", URL: "https://old.example/1", PublishedAt: now.AddDate(0, 0, -30)},
	})

	res, err := h.agent.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.ArticlesSelected)
	assert.NotEmpty(t, res.Skipped)
	assert.Zero(t, h.generator.calls)
	assert.Zero(t, countPosts(t, h.repo))
}

func TestRunCreatesPendingPost(t *testing.T) {
	h := newHarness(t)
	h.addSource(t, "news", recentArticles(5))
	h.agent.SetCoverFinder(fakeCovers{})

	res, err := h.agent.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, res.ArticlesFound)
	assert.Equal(t, 5, res.ArticlesSelected)
	assert.Equal(t, 1, h.generator.calls)
	require.NotZero(t, res.PostID)
	require.NotNil(t, res.Validation)
	assert.True(t, res.Validation.Valid)

	post, err := h.repo.GetPostByID(context.Background(), res.PostID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPendingApproval, post.Status)
	require.NotNil(t, post.ApprovalToken)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{64}$`), *post.ApprovalToken)
	assert.Equal(t, models.OriginPipeline, post.Origin)
	assert.Equal(t, "https://images.example/kubernetes.jpg", post.CoverImageURL)
	assert.Equal(t, 1, h.mailer.sent)

	src, err := h.repo.ListContentSources(context.Background(), true)
	require.NoError(t, err)
	require.NotNil(t, src[0].LastFetchedAt)
}

func TestRunInvalidDraftNotPersisted(t *testing.T) {
	h := newHarness(t)
	h.addSource(t, "news", recentArticles(3))
	h.generator.draft = &ai.Draft{Title: "Only a title"}

	res, err := h.agent.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Validation)
	assert.False(t, res.Validation.Valid)
	assert.Contains(t, res.Validation.Errors, "content is required")
	assert.Contains(t, res.Validation.Errors, "keywords is required")
	assert.Zero(t, res.PostID)
	assert.Zero(t, countPosts(t, h.repo))
	assert.Zero(t, h.mailer.sent)
}

func TestRunGeneratorFailure(t *testing.T) {
	h := newHarness(t)
	h.addSource(t, "news", recentArticles(2))
	h.generator.err = ai.ErrMalformedDraft
	h.generator.draft = nil

	_, err := h.agent.Run(context.Background())
	assert.ErrorIs(t, err, ai.ErrMalformedDraft)
	assert.Zero(t, countPosts(t, h.repo))
}

func TestRunFailingSourceDoesNotAbort(t *testing.T) {
	h := newHarness(t)
	h.addSource(t, "news", recentArticles(3))
	require.NoError(t, h.repo.CreateContentSource(context.Background(), &models.ContentSource{
		Name: "broken", FeedURL: "https://broken.example/feed", Active: true,
	}))

	res, err := h.agent.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.SourcesFetched)
	require.Len(t, res.SourcesFailed, 1)
	assert.Equal(t, "broken", res.SourcesFailed[0].SourceName)
	assert.NotZero(t, res.PostID)
}

func TestRunUsesStoredGuidelines(t *testing.T) {
	h := newHarness(t)
	h.addSource(t, "news", recentArticles(2))

	g, err := h.agent.guidelines(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "default rules", g)

	require.NoError(t, h.repo.SaveGuideline(context.Background(), &models.Guideline{Name: models.BlogGuidelineName, Content: "house style"}))
	g, err = h.agent.guidelines(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "house style", g)
}

func TestFetchSkipsSourcesNotDue(t *testing.T) {
	h := newHarness(t)
	h.addSource(t, "news", recentArticles(2))

	first, err := h.agent.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.ArticlesFound)

	second, err := h.agent.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, second.SourcesSkipped)
	assert.Zero(t, second.ArticlesFound)
}
