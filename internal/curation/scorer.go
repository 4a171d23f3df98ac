// Package curation ranks trending keywords and picks the articles a draft is built from.
package curation

import (
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/content-pipeline/internal/models"
)

// Scoring weights
const (
	frequencyWeight = 10.0
	recencyWeight   = 5.0
	minTokenLength  = 3

	DefaultTopTopics    = 3
	DefaultMinFrequency = 2
)

// ScorerOptions configures the topic scorer
type ScorerOptions struct {
	TopK           int
	MinFrequency   int
	ExtraStopWords []string
}

// Scorer derives trending keywords from an article set
type Scorer struct {
	topK         int
	minFrequency int
	stopWords    map[string]bool
}

// NewScorer creates a scorer. Zero options fall back to the defaults.
func NewScorer(opts ScorerOptions) *Scorer {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopTopics
	}
	if opts.MinFrequency <= 0 {
		opts.MinFrequency = DefaultMinFrequency
	}

	stop := make(map[string]bool, len(stopWords)+len(opts.ExtraStopWords))
	for _, w := range stopWords {
		stop[w] = true
	}
	for _, w := range opts.ExtraStopWords {
		stop[strings.ToLower(strings.TrimSpace(w))] = true
	}

	return &Scorer{
		topK:         opts.TopK,
		minFrequency: opts.MinFrequency,
		stopWords:    stop,
	}
}

type keywordStats struct {
	frequency int
	recency   float64
	lastSeen  time.Time
}

// Score returns the top keywords, sorted descending by relevance score.
// Ties go to the more recently mentioned keyword, then alphabetical order.
func (s *Scorer) Score(articles []*models.Article, now time.Time) []models.TrendingTopic {
	if len(articles) == 0 {
		return []models.TrendingTopic{}
	}

	stats := make(map[string]*keywordStats)
	for _, a := range articles {
		if a == nil {
			continue
		}
		ageDays := now.Sub(a.PublishedAt).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		weight := 1 / (1 + ageDays)

		for kw := range s.Keywords(a.Text()) {
			st, ok := stats[kw]
			if !ok {
				st = &keywordStats{}
				stats[kw] = st
			}
			st.frequency++
			st.recency += weight
			if a.PublishedAt.After(st.lastSeen) {
				st.lastSeen = a.PublishedAt
			}
		}
	}

	minFreq := s.minFrequency
	if len(articles) < 3 {
		minFreq = 1
	}

	topics := make([]models.TrendingTopic, 0, len(stats))
	for kw, st := range stats {
		if st.frequency < minFreq {
			continue
		}
		topics = append(topics, models.TrendingTopic{
			Keyword:        kw,
			Frequency:      st.frequency,
			RelevanceScore: float64(st.frequency)*frequencyWeight + st.recency*recencyWeight,
			LastSeen:       st.lastSeen,
		})
	}

	sort.Slice(topics, func(i, j int) bool {
		a, b := topics[i], topics[j]
		if a.RelevanceScore != b.RelevanceScore {
			return a.RelevanceScore > b.RelevanceScore
		}
		if !a.LastSeen.Equal(b.LastSeen) {
			return a.LastSeen.After(b.LastSeen)
		}
		return a.Keyword < b.Keyword
	})

	if len(topics) > s.topK {
		topics = topics[:s.topK]
	}
	return topics
}

// Keywords returns the distinct candidate keywords found in text
func (s *Scorer) Keywords(text string) map[string]bool {
	out := make(map[string]bool)
	for _, tok := range tokenize(text) {
		if utf8.RuneCountInString(tok) < minTokenLength || isNumber(tok) || s.stopWords[tok] {
			continue
		}
		out[tok] = true
	}
	return out
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func isNumber(tok string) bool {
	for _, r := range tok {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

var stopWords = []string{
	"a", "about", "above", "after", "again", "against", "all", "also", "am", "an", "and",
	"any", "are", "aren", "as", "at", "be", "because", "been", "before", "being", "below",
	"between", "both", "but", "by", "can", "cannot", "could", "did", "didn", "do", "does",
	"doesn", "doing", "don", "down", "during", "each", "even", "ever", "every", "few", "first",
	"for", "from", "further", "get", "gets", "got", "had", "has", "have", "having", "he", "her",
	"here", "hers", "herself", "him", "himself", "his", "how", "however", "i", "if", "in",
	"into", "is", "isn", "it", "its", "itself", "just", "last", "latest", "let", "like",
	"make", "makes", "many", "may", "me", "might", "more", "most", "much", "must", "my",
	"myself", "need", "new", "news", "next", "no", "nor", "not", "now", "of", "off", "on",
	"once", "one", "only", "or", "other", "our", "ours", "ourselves", "out", "over", "own",
	"read", "really", "said", "same", "says", "see", "she", "should", "since", "so", "some",
	"still", "such", "take", "than", "that", "the", "their", "theirs", "them", "themselves",
	"then", "there", "these", "they", "thing", "things", "this", "those", "through", "time",
	"to", "today", "too", "two", "under", "until", "up", "use", "used", "using", "very",
	"via", "want", "was", "way", "ways", "we", "week", "well", "were", "what", "when",
	"where", "which", "while", "who", "whom", "why", "will", "with", "without", "won",
	"would", "year", "years", "yet", "you", "your", "yours", "yourself", "yourselves",
}
