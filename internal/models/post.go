package models

import (
	"time"
)

// PostStatus represents the current state of a blog post
type PostStatus string

const (
	PostStatusDraft           PostStatus = "DRAFT"
	PostStatusPendingApproval PostStatus = "PENDING_APPROVAL"
	PostStatusApproved        PostStatus = "APPROVED"
	PostStatusPublished       PostStatus = "PUBLISHED"
	PostStatusRejected        PostStatus = "REJECTED"
	PostStatusArchived        PostStatus = "ARCHIVED"
)

// Valid reports whether s is one of the known statuses
func (s PostStatus) Valid() bool {
	switch s {
	case PostStatusDraft, PostStatusPendingApproval, PostStatusApproved,
		PostStatusPublished, PostStatusRejected, PostStatusArchived:
		return true
	}
	return false
}

// Post origins
const (
	OriginPipeline = "pipeline"
	OriginManual   = "manual"
)

// BlogPost is a blog article moving through the approval pipeline
type BlogPost struct {
	ID                 uint        `gorm:"primaryKey" json:"id"`
	Slug               string      `gorm:"uniqueIndex;not null" json:"slug"`
	Title              string      `gorm:"not null" json:"title"`
	Excerpt            string      `gorm:"type:text" json:"excerpt"`
	Content            string      `gorm:"type:text" json:"content"`
	Status             PostStatus  `gorm:"size:32;index;default:'DRAFT'" json:"status"`
	ScheduledFor       *time.Time  `gorm:"index" json:"scheduled_for"`
	PublishedAt        *time.Time  `json:"published_at"`
	ApprovalToken      *string     `gorm:"uniqueIndex;size:64" json:"-"`
	ResolvedToken      *string     `gorm:"uniqueIndex;size:64" json:"-"`
	SentForApprovalAt  *time.Time  `json:"sent_for_approval_at"`
	ApprovalEmailError string      `json:"approval_email_error,omitempty"`
	ApprovedAt         *time.Time  `json:"approved_at"`
	ApprovedBy         string      `json:"approved_by,omitempty"`
	RejectionReason    string      `gorm:"type:text" json:"rejection_reason,omitempty"`
	RevisionCount      int         `gorm:"default:0" json:"revision_count"`
	SourceURLs         StringSlice `gorm:"type:text" json:"source_urls"`
	MetaTitle          string      `json:"meta_title"`
	MetaDescription    string      `json:"meta_description"`
	Keywords           StringSlice `gorm:"type:text" json:"keywords"`
	CoverImageURL      string      `json:"cover_image_url,omitempty"`
	CoverImageCredit   string      `json:"cover_image_credit,omitempty"`
	Origin             string      `gorm:"size:16;default:'manual'" json:"origin"`
	CategoryID         *uint       `gorm:"index" json:"category_id"`
	Category           *Category   `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Tags               []Tag       `gorm:"many2many:blog_post_tags" json:"tags,omitempty"`
	CreatedAt          time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// Category groups blog posts
type Category struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"not null" json:"name"`
	Slug string `gorm:"uniqueIndex;not null" json:"slug"`
}

// Tag labels blog posts
type Tag struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"not null" json:"name"`
	Slug string `gorm:"uniqueIndex;not null" json:"slug"`
}

// IsPublic returns true if the post may be shown on the public blog
func (p *BlogPost) IsPublic() bool {
	return p.Status == PostStatusPublished
}

// Editable returns true if an admin may still change the post body
func (p *BlogPost) Editable() bool {
	switch p.Status {
	case PostStatusDraft, PostStatusPendingApproval, PostStatusRejected, PostStatusApproved:
		return true
	}
	return false
}
