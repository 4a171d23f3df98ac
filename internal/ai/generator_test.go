package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/content-pipeline/internal/config"
	"github.com/content-pipeline/internal/models"
	"github.com/content-pipeline/pkg/logger"
)

type fakeCompleter struct {
	response string
	err      error
	calls    int
	system   string
	user     string
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	f.calls++
	f.system = systemPrompt
	f.user = userMessage
	return f.response, f.err
}

var testLimits = config.ValidationConfig{
	TitleMax: 70, ExcerptMax: 300, ContentMin: 1500,
	MetaTitleMax: 70, MetaDescriptionMax: 160, KeywordsMin: 1,
}

func testArticles() []*models.Article {
	return []*models.Article{
		{Title: "Kubernetes 1.33 released", URL: "https://k8s.example/133", Summary: "New scheduler features", SourceName: "K8s Blog", PublishedAt: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)},
		{Title: "Platform teams in 2026", URL: "https://infoq.example/platform", Summary: "Survey results", SourceName: "InfoQ", PublishedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
}

const fencedResponse = "Here is your draft:\n```json\n" + `{
  "title": "What Kubernetes 1.33 Means for Platform Teams",
  "slug": "kubernetes-133-platform-teams",
  "excerpt": "A short teaser.",
  "content": "## Intro\nBody text.",
  "metaTitle": "Kubernetes 1.33 for Platform Teams",
  "metaDescription": "What changed and why it matters.",
  "keywords": ["kubernetes", " platform engineering ", ""]
}` + "\n```"

func TestGenerateDraftParsesFencedJSON(t *testing.T) {
	fc := &fakeCompleter{response: fencedResponse}
	g := NewGenerator(fc, testLimits, logger.Nop())

	draft, err := g.GenerateDraft(context.Background(), testArticles(),
		[]models.TrendingTopic{{Keyword: "kubernetes", Frequency: 2}}, "Be concrete.")
	require.NoError(t, err)

	assert.Equal(t, 1, fc.calls)
	assert.Equal(t, "What Kubernetes 1.33 Means for Platform Teams", draft.Title)
	assert.Equal(t, "kubernetes-133-platform-teams", draft.Slug)
	assert.Equal(t, []string{"kubernetes", "platform engineering"}, draft.Keywords)
	assert.Equal(t, []string{"https://k8s.example/133", "https://infoq.example/platform"}, draft.SourceURLs)

	assert.Contains(t, fc.system, "Be concrete.")
	assert.Contains(t, fc.system, "at least 1500 characters")
	assert.Contains(t, fc.user, "kubernetes (mentioned in 2 articles)")
	assert.Contains(t, fc.user, "URL: https://infoq.example/platform")
}

func TestGenerateDraftDerivesMissingSlug(t *testing.T) {
	fc := &fakeCompleter{response: `{"title": "Zero Trust, Explained", "content": "x", "keywords": ["security"]}`}
	draft, err := NewGenerator(fc, testLimits, logger.Nop()).GenerateDraft(context.Background(), testArticles(), nil, "")
	require.NoError(t, err)
	assert.Equal(t, "zero-trust-explained", draft.Slug)
}

func TestGenerateDraftErrors(t *testing.T) {
	tests := []struct {
		name    string
		fc      *fakeCompleter
		wantErr error
	}{
		{"no json", &fakeCompleter{response: "I cannot help with that."}, ErrMalformedDraft},
		{"broken json", &fakeCompleter{response: `{"title": "x", "keywords": "not-a-list"}`}, ErrMalformedDraft},
		{"api error", &fakeCompleter{err: errors.New("overloaded")}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGenerator(tt.fc, testLimits, logger.Nop())
			draft, err := g.GenerateDraft(context.Background(), testArticles(), nil, "")
			require.Error(t, err)
			assert.Nil(t, draft)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, 1, tt.fc.calls)
		})
	}
}

func TestGenerateDraftNoArticles(t *testing.T) {
	fc := &fakeCompleter{response: fencedResponse}
	_, err := NewGenerator(fc, testLimits, logger.Nop()).GenerateDraft(context.Background(), nil, nil, "")
	assert.ErrorIs(t, err, ErrNoArticles)
	assert.Zero(t, fc.calls)
}
