package source

import (
	"context"
	"net/url"
	"strings"

	"github.com/content-pipeline/internal/models"
)

// ArticleSource defines the interface for article feeds
type ArticleSource interface {
	// Name returns the unique name of this source
	Name() string

	// Fetch retrieves articles from the source
	Fetch(ctx context.Context) ([]*models.Article, error)

	// HealthCheck verifies the source is accessible
	HealthCheck(ctx context.Context) error
}

// Factory builds the ArticleSource for a configured content source
type Factory func(src *models.ContentSource) ArticleSource

// NormalizeURL returns the key used to deduplicate articles: lower-case
// scheme and host, no fragment, no trailing slash.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimRight(strings.ToLower(raw), "/")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	return u.String()
}
