package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StringSlice is a custom type for storing string arrays in JSON
type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("unsupported StringSlice source %T", value)
	}
}

// Article is a normalized feed entry. It only lives within one pipeline run.
type Article struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Summary     string    `json:"summary"`
	PublishedAt time.Time `json:"published_at"`
	SourceName  string    `json:"source_name"`
}

// Text returns the title and summary joined for keyword matching
func (a *Article) Text() string {
	return a.Title + " " + a.Summary
}

// TrendingTopic is a keyword derived from the current article set
type TrendingTopic struct {
	Keyword        string    `json:"keyword"`
	Frequency      int       `json:"frequency"`
	RelevanceScore float64   `json:"relevance_score"`
	LastSeen       time.Time `json:"last_seen"`
}
