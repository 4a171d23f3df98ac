package rss

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/content-pipeline/internal/models"
	"github.com/content-pipeline/internal/source"
	"github.com/content-pipeline/pkg/logger"
)

const maxSummaryLength = 1000

// Source implements ArticleSource for RSS and Atom feeds
type Source struct {
	name   string
	url    string
	parser *gofeed.Parser
	now    func() time.Time
	log    *logger.Logger
}

// New creates a new RSS source for a single content source
func New(src *models.ContentSource, log *logger.Logger) *Source {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: 30 * time.Second}
	parser.UserAgent = "content-pipeline/1.0"

	return &Source{
		name:   src.Name,
		url:    src.FeedURL,
		parser: parser,
		now:    time.Now,
		log:    log.WithSource(src.ID, src.Name),
	}
}

// Factory returns a source.Factory producing RSS sources
func Factory(log *logger.Logger) source.Factory {
	return func(src *models.ContentSource) source.ArticleSource {
		return New(src, log)
	}
}

// Name returns the source name
func (s *Source) Name() string {
	return s.name
}

// Fetch retrieves articles from the feed
func (s *Source) Fetch(ctx context.Context) ([]*models.Article, error) {
	s.log.Debug().Str("url", s.url).Msg("Fetching RSS feed")

	feed, err := s.parser.ParseURLWithContext(s.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSS feed %s: %w", s.name, err)
	}

	fetchedAt := s.now().UTC()
	articles := make([]*models.Article, 0, len(feed.Items))

	for _, item := range feed.Items {
		title := cleanText(item.Title)
		link := strings.TrimSpace(item.Link)
		if title == "" || link == "" {
			continue
		}

		summary := cleanText(item.Description)
		if summary == "" {
			summary = cleanText(item.Content)
		}

		articles = append(articles, &models.Article{
			Title:       title,
			URL:         link,
			Summary:     truncate(summary, maxSummaryLength),
			PublishedAt: publishedAt(item, fetchedAt),
			SourceName:  s.name,
		})
	}

	s.log.Info().
		Int("count", len(articles)).
		Str("feed", s.name).
		Msg("Fetched RSS articles")

	return articles, nil
}

// HealthCheck verifies the RSS feed is accessible
func (s *Source) HealthCheck(ctx context.Context) error {
	_, err := s.parser.ParseURLWithContext(s.url, ctx)
	return err
}

// publishedAt prefers the published date, then the updated date, then the fetch time
func publishedAt(item *gofeed.Item, fallback time.Time) time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC()
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC()
	}
	return fallback
}

// cleanText reduces an HTML fragment to single-spaced plain text
func cleanText(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	if strings.ContainsAny(text, "<&") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
		if err == nil {
			doc.Find("script, style").Remove()
			text = doc.Text()
		}
	}
	return strings.Join(strings.Fields(text), " ")
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return strings.TrimSpace(string(r[:maxLen])) + "..."
}

// Ensure Source implements source.ArticleSource
var _ source.ArticleSource = (*Source)(nil)
