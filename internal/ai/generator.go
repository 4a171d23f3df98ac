package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/content-pipeline/internal/config"
	"github.com/content-pipeline/internal/models"
	"github.com/content-pipeline/pkg/logger"
)

var (
	// ErrMalformedDraft is returned when the response holds no decodable draft
	ErrMalformedDraft = errors.New("malformed draft response")
	// ErrNoArticles is returned when there is nothing to write about
	ErrNoArticles = errors.New("no articles to generate from")
)

// Draft is an unpersisted generated blog post
type Draft struct {
	Title           string   `json:"title"`
	Slug            string   `json:"slug"`
	Excerpt         string   `json:"excerpt"`
	Content         string   `json:"content"`
	MetaTitle       string   `json:"metaTitle"`
	MetaDescription string   `json:"metaDescription"`
	Keywords        []string `json:"keywords"`
	SourceURLs      []string `json:"sourceUrls,omitempty"`
}

// Generator turns selected articles into a draft with one completion call
type Generator struct {
	completer Completer
	limits    config.ValidationConfig
	log       *logger.Logger
}

// NewGenerator creates a draft generator
func NewGenerator(completer Completer, limits config.ValidationConfig, log *logger.Logger) *Generator {
	return &Generator{
		completer: completer,
		limits:    limits,
		log:       log.WithComponent("generator"),
	}
}

// GenerateDraft builds the prompt, calls the completer once and parses the reply.
// It never retries; the caller must not persist a draft when err != nil.
func (g *Generator) GenerateDraft(ctx context.Context, articles []*models.Article, topics []models.TrendingTopic, guidelines string) (*Draft, error) {
	if len(articles) == 0 {
		return nil, ErrNoArticles
	}

	systemPrompt, userPrompt := g.BuildPrompt(articles, topics, guidelines)

	response, err := g.completer.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("draft generation failed: %w", err)
	}

	draft, err := ParseDraft(response)
	if err != nil {
		g.log.Error().
			Err(err).
			Str("response", truncateForLog(response, 500)).
			Msg("Failed to parse draft response")
		return nil, err
	}

	draft.SourceURLs = make([]string, 0, len(articles))
	for _, a := range articles {
		draft.SourceURLs = append(draft.SourceURLs, a.URL)
	}
	if draft.Slug == "" {
		draft.Slug = models.Slugify(draft.Title)
	}

	g.log.Info().
		Str("title", draft.Title).
		Str("slug", draft.Slug).
		Int("content_length", len(draft.Content)).
		Int("sources", len(draft.SourceURLs)).
		Msg("Generated draft")

	return draft, nil
}

// BuildPrompt returns the system instruction and the single user turn
func (g *Generator) BuildPrompt(articles []*models.Article, topics []models.TrendingTopic, guidelines string) (string, string) {
	if strings.TrimSpace(guidelines) == "" {
		guidelines = "(none provided)"
	}
	systemPrompt := fmt.Sprintf(DraftSystemPrompt,
		guidelines,
		g.limits.ContentMin,
		g.limits.TitleMax,
		g.limits.ExcerptMax,
		g.limits.MetaTitleMax,
		g.limits.MetaDescriptionMax,
	)

	var topicsText strings.Builder
	if len(topics) == 0 {
		topicsText.WriteString("- (no clear trend this week)\n")
	}
	for _, t := range topics {
		fmt.Fprintf(&topicsText, "- %s (mentioned in %d articles)\n", t.Keyword, t.Frequency)
	}

	var articlesText strings.Builder
	for i, a := range articles {
		fmt.Fprintf(&articlesText, "[%d] %s\nSource: %s\nPublished: %s\nURL: %s\nSummary: %s\n\n",
			i+1, a.Title, a.SourceName, a.PublishedAt.Format("2006-01-02"), a.URL, a.Summary)
	}

	return systemPrompt, fmt.Sprintf(DraftUserPrompt, topicsText.String(), articlesText.String())
}

// ParseDraft extracts the outermost JSON object from a model response
func ParseDraft(response string) (*Draft, error) {
	raw, ok := extractJSONObject(response)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object in response", ErrMalformedDraft)
	}

	var draft Draft
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDraft, err)
	}

	draft.Title = strings.TrimSpace(draft.Title)
	draft.Slug = strings.TrimSpace(draft.Slug)
	draft.Excerpt = strings.TrimSpace(draft.Excerpt)
	draft.Content = strings.TrimSpace(draft.Content)
	draft.MetaTitle = strings.TrimSpace(draft.MetaTitle)
	draft.MetaDescription = strings.TrimSpace(draft.MetaDescription)

	keywords := make([]string, 0, len(draft.Keywords))
	for _, k := range draft.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	draft.Keywords = keywords

	return &draft, nil
}

// extractJSONObject strips code fences and surrounding prose
func extractJSONObject(response string) (string, bool) {
	response = strings.TrimSpace(response)

	// Find the first { which starts valid JSON
	startIdx := strings.Index(response, "{")
	if startIdx == -1 {
		return "", false
	}

	// Find the last } which ends valid JSON
	endIdx := strings.LastIndex(response, "}")
	if endIdx == -1 || endIdx < startIdx {
		return "", false
	}

	return response[startIdx : endIdx+1], true
}

func truncateForLog(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
