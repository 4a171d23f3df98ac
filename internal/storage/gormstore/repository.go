package gormstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/content-pipeline/internal/config"
	"github.com/content-pipeline/internal/models"
	"github.com/content-pipeline/internal/storage"
)

// Repository implements storage.Repository using GORM (SQLite or Postgres)
type Repository struct {
	db *gorm.DB
}

// New opens the database selected by cfg.Driver
func New(cfg config.DatabaseConfig) (*Repository, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "", "sqlite":
		// Ensure directory exists
		dir := filepath.Dir(cfg.DSN)
		if dir != "." && dir != "" && !strings.HasPrefix(cfg.DSN, "file:") {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.Driver == "" || cfg.Driver == "sqlite" {
		// SQLite allows one writer; a single connection avoids SQLITE_BUSY between our own goroutines
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return &Repository{db: db}, nil
}

// Migrate runs database migrations
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(
		&models.ContentSource{},
		&models.Category{},
		&models.Tag{},
		&models.BlogPost{},
		&models.Guideline{},
	)
}

// Close closes the database connection
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNotFound
	}
	return err
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

// Content source operations

func (r *Repository) CreateContentSource(ctx context.Context, src *models.ContentSource) error {
	active := src.Active
	if err := r.db.WithContext(ctx).Create(src).Error; err != nil {
		return err
	}
	// gorm skips a false bool in favour of the column default
	if !active {
		src.Active = false
		return r.db.WithContext(ctx).Model(src).Update("active", false).Error
	}
	return nil
}

func (r *Repository) GetContentSource(ctx context.Context, id uint) (*models.ContentSource, error) {
	var src models.ContentSource
	if err := r.db.WithContext(ctx).First(&src, id).Error; err != nil {
		return nil, translate(err)
	}
	return &src, nil
}

func (r *Repository) ListContentSources(ctx context.Context, activeOnly bool) ([]*models.ContentSource, error) {
	var sources []*models.ContentSource
	query := r.db.WithContext(ctx).Model(&models.ContentSource{})
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	if err := query.Order("name ASC").Find(&sources).Error; err != nil {
		return nil, err
	}
	return sources, nil
}

func (r *Repository) UpdateContentSource(ctx context.Context, src *models.ContentSource) error {
	// Select("*") so that Active=false is written
	res := r.db.WithContext(ctx).Model(src).Select("*").Omit("created_at").Updates(src)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteContentSource(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.ContentSource{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *Repository) TouchContentSource(ctx context.Context, id uint, fetchedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&models.ContentSource{}).
		Where("id = ?", id).
		Update("last_fetched_at", fetchedAt.UTC()).Error
}

// Post operations

func (r *Repository) CreatePost(ctx context.Context, post *models.BlogPost) error {
	err := r.db.WithContext(ctx).Create(post).Error
	if err != nil && isDuplicate(err) {
		return fmt.Errorf("%w: %s", storage.ErrSlugTaken, post.Slug)
	}
	return err
}

func (r *Repository) GetPostByID(ctx context.Context, id uint) (*models.BlogPost, error) {
	var post models.BlogPost
	if err := r.db.WithContext(ctx).Preload("Category").Preload("Tags").First(&post, id).Error; err != nil {
		return nil, translate(err)
	}
	return &post, nil
}

func (r *Repository) GetPostBySlug(ctx context.Context, slug string) (*models.BlogPost, error) {
	var post models.BlogPost
	if err := r.db.WithContext(ctx).Preload("Category").Preload("Tags").
		Where("slug = ?", slug).First(&post).Error; err != nil {
		return nil, translate(err)
	}
	return &post, nil
}

func (r *Repository) GetPostByToken(ctx context.Context, token string) (*models.BlogPost, error) {
	var post models.BlogPost
	if err := r.db.WithContext(ctx).
		Where("approval_token = ? OR resolved_token = ?", token, token).
		First(&post).Error; err != nil {
		return nil, translate(err)
	}
	return &post, nil
}

func (r *Repository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.BlogPost{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

var postOrderColumns = map[string]bool{
	"created_at":    true,
	"updated_at":    true,
	"published_at":  true,
	"scheduled_for": true,
	"id":            true,
}

func (r *Repository) ListPosts(ctx context.Context, filter storage.PostFilter) ([]*models.BlogPost, error) {
	var posts []*models.BlogPost
	query := r.db.WithContext(ctx).Model(&models.BlogPost{}).Preload("Category").Preload("Tags")

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Origin != "" {
		query = query.Where("origin = ?", filter.Origin)
	}

	orderCol := "created_at"
	if postOrderColumns[filter.OrderBy] {
		orderCol = filter.OrderBy
	}
	query = query.Order(clause.OrderByColumn{Column: clause.Column{Name: orderCol}, Desc: filter.OrderDesc})

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// UpdatePostContent writes the admin-editable fields. Slug, status and approval
// bookkeeping are never touched here.
func (r *Repository) UpdatePostContent(ctx context.Context, post *models.BlogPost) error {
	res := r.db.WithContext(ctx).Model(&models.BlogPost{}).
		Where("id = ?", post.ID).
		Updates(map[string]interface{}{
			"title":              post.Title,
			"excerpt":            post.Excerpt,
			"content":            post.Content,
			"meta_title":         post.MetaTitle,
			"meta_description":   post.MetaDescription,
			"keywords":           post.Keywords,
			"cover_image_url":    post.CoverImageURL,
			"cover_image_credit": post.CoverImageCredit,
			"category_id":        post.CategoryID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *Repository) ListDuePosts(ctx context.Context, now, draftHorizon time.Time) ([]*models.BlogPost, error) {
	var posts []*models.BlogPost
	err := r.db.WithContext(ctx).
		Where("(status = ? AND scheduled_for IS NOT NULL AND scheduled_for <= ?) OR (status = ? AND scheduled_for IS NOT NULL AND scheduled_for <= ?)",
			models.PostStatusApproved, now.UTC(),
			models.PostStatusDraft, draftHorizon.UTC()).
		Order("scheduled_for ASC").
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// Conditional state transitions

func (r *Repository) transition(ctx context.Context, where *gorm.DB, values map[string]interface{}) (bool, error) {
	res := where.WithContext(ctx).Model(&models.BlogPost{}).Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *Repository) SubmitPost(ctx context.Context, id uint, token string, sentAt time.Time) (bool, error) {
	return r.transition(ctx,
		r.db.Where("id = ? AND status = ?", id, models.PostStatusDraft),
		map[string]interface{}{
			"status":               models.PostStatusPendingApproval,
			"approval_token":       token,
			"resolved_token":       nil,
			"sent_for_approval_at": sentAt.UTC(),
			"approval_email_error": "",
		})
}

func (r *Repository) ApprovePost(ctx context.Context, token, approvedBy string, approvedAt, scheduledFor time.Time) (bool, error) {
	return r.transition(ctx,
		r.db.Where("approval_token = ? AND status = ?", token, models.PostStatusPendingApproval),
		map[string]interface{}{
			"status":         models.PostStatusApproved,
			"approval_token": nil,
			"resolved_token": token,
			"approved_at":    approvedAt.UTC(),
			"approved_by":    approvedBy,
			"scheduled_for":  scheduledFor.UTC(),
		})
}

func (r *Repository) RejectPost(ctx context.Context, token, reason string, at time.Time) (bool, error) {
	return r.transition(ctx,
		r.db.Where("approval_token = ? AND status = ?", token, models.PostStatusPendingApproval),
		map[string]interface{}{
			"status":           models.PostStatusRejected,
			"approval_token":   nil,
			"resolved_token":   token,
			"rejection_reason": reason,
			"revision_count":   gorm.Expr("revision_count + 1"),
			"updated_at":       at.UTC(),
		})
}

func (r *Repository) ArchivePost(ctx context.Context, id uint, at time.Time) (bool, error) {
	return r.transition(ctx,
		r.db.Where("id = ? AND status <> ?", id, models.PostStatusArchived),
		map[string]interface{}{
			"status":         models.PostStatusArchived,
			"resolved_token": gorm.Expr("COALESCE(approval_token, resolved_token)"),
			"approval_token": nil,
			"updated_at":     at.UTC(),
		})
}

func (r *Repository) PublishPost(ctx context.Context, id uint, from models.PostStatus, at time.Time) (bool, error) {
	return r.transition(ctx,
		r.db.Where("id = ? AND status = ?", id, from),
		map[string]interface{}{
			"status":       models.PostStatusPublished,
			"published_at": at.UTC(),
		})
}

func (r *Repository) SchedulePost(ctx context.Context, id uint, scheduledFor time.Time) (bool, error) {
	return r.transition(ctx,
		r.db.Where("id = ? AND status IN ?", id, []models.PostStatus{models.PostStatusDraft, models.PostStatusApproved}),
		map[string]interface{}{
			"scheduled_for": scheduledFor.UTC(),
		})
}

func (r *Repository) RecordApprovalEmail(ctx context.Context, id uint, sendErr string) error {
	return r.db.WithContext(ctx).Model(&models.BlogPost{}).
		Where("id = ?", id).
		Update("approval_email_error", sendErr).Error
}

// Taxonomy operations

func (r *Repository) EnsureCategory(ctx context.Context, name string) (*models.Category, error) {
	slug := models.Slugify(name)
	if slug == "" {
		return nil, fmt.Errorf("invalid category name %q", name)
	}
	category := models.Category{Name: name, Slug: slug}
	if err := r.db.WithContext(ctx).
		Where(models.Category{Slug: slug}).
		FirstOrCreate(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *Repository) EnsureTags(ctx context.Context, names []string) ([]models.Tag, error) {
	tags := make([]models.Tag, 0, len(names))
	seen := make(map[string]bool)
	for _, name := range names {
		name = strings.TrimSpace(name)
		slug := models.Slugify(name)
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true

		tag := models.Tag{Name: name, Slug: slug}
		if err := r.db.WithContext(ctx).
			Where(models.Tag{Slug: slug}).
			FirstOrCreate(&tag).Error; err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// Guideline operations

func (r *Repository) GetGuideline(ctx context.Context, name string) (*models.Guideline, error) {
	var g models.Guideline
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&g).Error; err != nil {
		return nil, translate(err)
	}
	return &g, nil
}

func (r *Repository) SaveGuideline(ctx context.Context, g *models.Guideline) error {
	// Upsert - update if exists, create if not
	var existing models.Guideline
	if err := r.db.WithContext(ctx).Where("name = ?", g.Name).First(&existing).Error; err == nil {
		g.ID = existing.ID
	}
	return r.db.WithContext(ctx).Save(g).Error
}

// Ensure Repository implements storage.Repository
var _ storage.Repository = (*Repository)(nil)
