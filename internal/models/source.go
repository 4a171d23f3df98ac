package models

import (
	"time"
)

// ContentSource is a configured external feed polled by the fetcher
type ContentSource struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Name           string     `gorm:"uniqueIndex;not null" json:"name"`
	URL            string     `json:"url"`
	FeedURL        string     `gorm:"uniqueIndex;not null" json:"feed_url"`
	Active         bool       `gorm:"default:true" json:"active"`
	FetchFrequency string     `gorm:"default:'24h'" json:"fetch_frequency"`
	LastFetchedAt  *time.Time `json:"last_fetched_at"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsDue reports whether the source should be polled again at now
func (s *ContentSource) IsDue(now time.Time) bool {
	if s.LastFetchedAt == nil {
		return true
	}
	freq, err := time.ParseDuration(s.FetchFrequency)
	if err != nil || freq <= 0 {
		return true
	}
	return !now.Before(s.LastFetchedAt.Add(freq))
}

// Guideline is operator-edited free text handed to the draft generator
type Guideline struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	Content   string    `gorm:"type:text" json:"content"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// BlogGuidelineName keys the guideline used by the blog pipeline
const BlogGuidelineName = "blog"
