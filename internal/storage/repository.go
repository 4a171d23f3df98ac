package storage

import (
	"context"
	"errors"
	"time"

	"github.com/content-pipeline/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("record not found")
	// ErrSlugTaken is returned when a post slug is already in use
	ErrSlugTaken = errors.New("slug already taken")
)

// Repository defines the interface for data persistence.
//
// Post state changes go through the conditional methods (SubmitPost, ApprovePost,
// RejectPost, ArchivePost, PublishPost). Each one only touches rows still in the
// expected pre-transition state and reports whether a row changed, so callers
// treat false as "someone else got there first".
type Repository interface {
	// Content source operations
	CreateContentSource(ctx context.Context, src *models.ContentSource) error
	GetContentSource(ctx context.Context, id uint) (*models.ContentSource, error)
	ListContentSources(ctx context.Context, activeOnly bool) ([]*models.ContentSource, error)
	UpdateContentSource(ctx context.Context, src *models.ContentSource) error
	DeleteContentSource(ctx context.Context, id uint) error
	TouchContentSource(ctx context.Context, id uint, fetchedAt time.Time) error

	// Post operations
	CreatePost(ctx context.Context, post *models.BlogPost) error
	GetPostByID(ctx context.Context, id uint) (*models.BlogPost, error)
	GetPostBySlug(ctx context.Context, slug string) (*models.BlogPost, error)
	GetPostByToken(ctx context.Context, token string) (*models.BlogPost, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	ListPosts(ctx context.Context, filter PostFilter) ([]*models.BlogPost, error)
	UpdatePostContent(ctx context.Context, post *models.BlogPost) error
	ListDuePosts(ctx context.Context, now, draftHorizon time.Time) ([]*models.BlogPost, error)

	// Conditional state transitions
	SubmitPost(ctx context.Context, id uint, token string, sentAt time.Time) (bool, error)
	ApprovePost(ctx context.Context, token, approvedBy string, approvedAt, scheduledFor time.Time) (bool, error)
	RejectPost(ctx context.Context, token, reason string, at time.Time) (bool, error)
	ArchivePost(ctx context.Context, id uint, at time.Time) (bool, error)
	PublishPost(ctx context.Context, id uint, from models.PostStatus, at time.Time) (bool, error)
	SchedulePost(ctx context.Context, id uint, scheduledFor time.Time) (bool, error)
	RecordApprovalEmail(ctx context.Context, id uint, sendErr string) error

	// Taxonomy operations
	EnsureCategory(ctx context.Context, name string) (*models.Category, error)
	EnsureTags(ctx context.Context, names []string) ([]models.Tag, error)

	// Guideline operations
	GetGuideline(ctx context.Context, name string) (*models.Guideline, error)
	SaveGuideline(ctx context.Context, g *models.Guideline) error

	// Maintenance
	Close() error
	Migrate() error
}

// PostFilter defines filtering options for posts
type PostFilter struct {
	Status    *models.PostStatus
	Origin    string
	Limit     int
	Offset    int
	OrderBy   string // "created_at", "published_at", "scheduled_for"
	OrderDesc bool
}

// DefaultPostFilter returns a filter with sensible defaults
func DefaultPostFilter() PostFilter {
	return PostFilter{
		Limit:     50,
		OrderBy:   "created_at",
		OrderDesc: true,
	}
}

// PublishedPostFilter lists public posts newest first
func PublishedPostFilter(limit int) PostFilter {
	status := models.PostStatusPublished
	return PostFilter{
		Status:    &status,
		Limit:     limit,
		OrderBy:   "published_at",
		OrderDesc: true,
	}
}
