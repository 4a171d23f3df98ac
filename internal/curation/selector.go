package curation

import (
	"sort"
	"strings"
	"time"

	"github.com/content-pipeline/internal/models"
)

// DefaultMaxArticles caps the selection when no limit is configured
const DefaultMaxArticles = 5

// SelectOptions configures one selection
type SelectOptions struct {
	MaxArticles    int
	WindowDays     int
	PreferTrending bool
}

// Selector picks the articles a draft is generated from
type Selector struct {
	scorer *Scorer
}

// NewSelector creates a selector that tokenizes with the given scorer
func NewSelector(scorer *Scorer) *Selector {
	return &Selector{scorer: scorer}
}

type candidate struct {
	article *models.Article
	hits    int
}

// Select filters articles to the window and truncates to MaxArticles. With
// PreferTrending, articles mentioning more trending keywords come first.
// An empty result means there is nothing to generate.
func (s *Selector) Select(articles []*models.Article, topics []models.TrendingTopic, opts SelectOptions, now time.Time) []*models.Article {
	if opts.MaxArticles <= 0 {
		opts.MaxArticles = DefaultMaxArticles
	}
	if opts.WindowDays <= 0 {
		opts.WindowDays = 7
	}
	cutoff := now.Add(-time.Duration(opts.WindowDays) * 24 * time.Hour)

	candidates := make([]candidate, 0, len(articles))
	for _, a := range articles {
		if a == nil || a.PublishedAt.Before(cutoff) {
			continue
		}
		c := candidate{article: a}
		if opts.PreferTrending {
			c.hits = s.trendingHits(a, topics)
		}
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.hits != b.hits {
			return a.hits > b.hits
		}
		return a.article.PublishedAt.After(b.article.PublishedAt)
	})

	if len(candidates) > opts.MaxArticles {
		candidates = candidates[:opts.MaxArticles]
	}

	selected := make([]*models.Article, 0, len(candidates))
	for _, c := range candidates {
		selected = append(selected, c.article)
	}
	return selected
}

func (s *Selector) trendingHits(a *models.Article, topics []models.TrendingTopic) int {
	if len(topics) == 0 {
		return 0
	}
	var words map[string]bool
	if s.scorer != nil {
		words = s.scorer.Keywords(a.Text())
	} else {
		words = make(map[string]bool)
		for _, tok := range tokenize(a.Text()) {
			words[tok] = true
		}
	}

	hits := 0
	for _, t := range topics {
		if words[strings.ToLower(t.Keyword)] {
			hits++
		}
	}
	return hits
}
