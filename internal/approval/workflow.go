// Package approval moves blog posts through the email approval state machine.
package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/content-pipeline/internal/ai"
	"github.com/content-pipeline/internal/metrics"
	"github.com/content-pipeline/internal/models"
	"github.com/content-pipeline/internal/notify"
	"github.com/content-pipeline/internal/config"
	"github.com/content-pipeline/internal/storage"
	"github.com/content-pipeline/internal/validation"
	"github.com/content-pipeline/pkg/logger"
)

// ErrInvalidState is returned when a post is not in the state an action needs
var ErrInvalidState = errors.New("post is not in a valid state for this action")

// MaxReasonLength bounds a rejection reason
const MaxReasonLength = 2000

const maxSlugAttempts = 50

// Outcome of a token-driven transition
type Outcome string

const (
	OutcomeApplied          Outcome = "applied"
	OutcomeAlreadyProcessed Outcome = "already_processed"
	OutcomeNotFound         Outcome = "not_found"
)

// Lifecycle events passed to the Recorder
const (
	EventSubmitted = "submitted"
	EventApproved  = "approved"
	EventRejected  = "rejected"
	EventArchived  = "archived"
	EventPublished = "published"
)

// Recorder is notified of lifecycle events. Implementations must not fail the caller.
type Recorder interface {
	Record(ctx context.Context, event string, post *models.BlogPost)
}

// Options configures the workflow
type Options struct {
	BaseURL         string
	ReviewerEmail   string
	Slot            SlotConfig
	DefaultCategory string
	MaxTags         int
	// Validator checks a post on submit; nil uses the default limits
	Validator *validation.Validator
}

// Result of an approve or reject attempt
type Result struct {
	Outcome      Outcome
	Post         *models.BlogPost
	ScheduledFor *time.Time
}

// SubmitResult of moving a draft to PENDING_APPROVAL
type SubmitResult struct {
	Post       *models.BlogPost
	Token      string
	EmailError string
}

// ResendResult summarizes one send-approval sweep
type ResendResult struct {
	Submitted int `json:"submitted"`
	Resent    int `json:"resent"`
	Failed    int `json:"failed"`
}

// PostOption adjusts a post before it is persisted
type PostOption func(*models.BlogPost)

// WithCover attaches a cover image
func WithCover(url, credit string) PostOption {
	return func(p *models.BlogPost) {
		p.CoverImageURL = url
		p.CoverImageCredit = credit
	}
}

// Workflow owns the post state transitions
type Workflow struct {
	repo     storage.Repository
	mailer   notify.Mailer
	recorder Recorder
	opts     Options
	now      func() time.Time
	log      *logger.Logger
}

// NewWorkflow creates an approval workflow
func NewWorkflow(repo storage.Repository, mailer notify.Mailer, opts Options, log *logger.Logger) *Workflow {
	if opts.Validator == nil {
		opts.Validator = validation.New(config.ValidationConfig{})
	}
	return &Workflow{
		repo:   repo,
		mailer: mailer,
		opts:   opts,
		now:    time.Now,
		log:    log.WithComponent("approval"),
	}
}

// SetRecorder attaches a lifecycle event recorder
func (w *Workflow) SetRecorder(r Recorder) {
	w.recorder = r
}

func (w *Workflow) record(ctx context.Context, event string, post *models.BlogPost) {
	if w.recorder != nil && post != nil {
		w.recorder.Record(ctx, event, post)
	}
}

// NewPost maps a generated draft onto an unsaved DRAFT post
func NewPost(draft *ai.Draft, origin string) *models.BlogPost {
	metaTitle := draft.MetaTitle
	if metaTitle == "" {
		metaTitle = draft.Title
	}
	metaDescription := draft.MetaDescription
	if metaDescription == "" {
		metaDescription = draft.Excerpt
	}
	return &models.BlogPost{
		Slug:            draft.Slug,
		Title:           draft.Title,
		Excerpt:         draft.Excerpt,
		Content:         draft.Content,
		Status:          models.PostStatusDraft,
		SourceURLs:      models.StringSlice(draft.SourceURLs),
		MetaTitle:       metaTitle,
		MetaDescription: metaDescription,
		Keywords:        models.StringSlice(draft.Keywords),
		Origin:          origin,
	}
}

// draftOf maps a stored post back onto the draft shape the validator checks.
// Meta fields that only mirror the title or excerpt were filled in by NewPost
// and are left out.
func draftOf(post *models.BlogPost) *ai.Draft {
	d := &ai.Draft{
		Title:      post.Title,
		Slug:       post.Slug,
		Excerpt:    post.Excerpt,
		Content:    post.Content,
		Keywords:   []string(post.Keywords),
		SourceURLs: []string(post.SourceURLs),
	}
	if post.MetaTitle != post.Title {
		d.MetaTitle = post.MetaTitle
	}
	if post.MetaDescription != post.Excerpt {
		d.MetaDescription = post.MetaDescription
	}
	return d
}

// CreateDraft persists post as DRAFT with a unique slug, the default category
// and its keywords as tags.
func (w *Workflow) CreateDraft(ctx context.Context, post *models.BlogPost) error {
	post.Status = models.PostStatusDraft
	post.ApprovalToken = nil
	post.ResolvedToken = nil

	if post.CategoryID == nil && w.opts.DefaultCategory != "" {
		category, err := w.repo.EnsureCategory(ctx, w.opts.DefaultCategory)
		if err != nil {
			return fmt.Errorf("failed to ensure category: %w", err)
		}
		post.CategoryID = &category.ID
	}

	if len(post.Tags) == 0 && len(post.Keywords) > 0 {
		names := []string(post.Keywords)
		if w.opts.MaxTags > 0 && len(names) > w.opts.MaxTags {
			names = names[:w.opts.MaxTags]
		}
		tags, err := w.repo.EnsureTags(ctx, names)
		if err != nil {
			return fmt.Errorf("failed to ensure tags: %w", err)
		}
		post.Tags = tags
	}

	base := post.Slug
	if base == "" {
		base = models.Slugify(post.Title)
	}
	if base == "" {
		base = "post"
	}

	for attempt := 1; attempt <= maxSlugAttempts; attempt++ {
		candidate := slugCandidate(base, attempt)
		exists, err := w.repo.SlugExists(ctx, candidate)
		if err != nil {
			return fmt.Errorf("failed to check slug: %w", err)
		}
		if exists {
			continue
		}

		post.Slug = candidate
		err = w.repo.CreatePost(ctx, post)
		if errors.Is(err, storage.ErrSlugTaken) {
			post.ID = 0
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to create post: %w", err)
		}

		w.log.Info().
			Uint("post_id", post.ID).
			Str("slug", post.Slug).
			Str("origin", post.Origin).
			Msg("Draft saved")
		return nil
	}

	return fmt.Errorf("%w: no free slug for %q", storage.ErrSlugTaken, base)
}

func slugCandidate(base string, attempt int) string {
	if attempt == 1 {
		if len(base) > 100 {
			return strings.TrimRight(base[:100], "-")
		}
		return base
	}
	suffix := fmt.Sprintf("-%d", attempt)
	if len(base)+len(suffix) > 100 {
		base = strings.TrimRight(base[:100-len(suffix)], "-")
	}
	return base + suffix
}

// CreateAndSubmit persists a validated draft and sends it for approval
func (w *Workflow) CreateAndSubmit(ctx context.Context, draft *ai.Draft, origin string, opts ...PostOption) (*SubmitResult, error) {
	post := NewPost(draft, origin)
	for _, opt := range opts {
		opt(post)
	}
	if err := w.CreateDraft(ctx, post); err != nil {
		return nil, err
	}
	return w.Submit(ctx, post.ID)
}

// Submit moves a DRAFT to PENDING_APPROVAL with a fresh token and emails the
// reviewer. The post must pass draft validation first; a *validation.DraftError
// lists every broken rule and leaves it a DRAFT. A failed email is stored on
// the post and logged; the status change stands.
func (w *Workflow) Submit(ctx context.Context, postID uint) (*SubmitResult, error) {
	current, err := w.repo.GetPostByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if current.Status != models.PostStatusDraft {
		return nil, fmt.Errorf("%w: only drafts can be submitted", ErrInvalidState)
	}
	if err := w.opts.Validator.Check(draftOf(current)); err != nil {
		w.log.WithPostID(postID).Warn().Err(err).Msg("Draft failed validation on submit")
		return nil, err
	}

	token, err := NewToken()
	if err != nil {
		return nil, err
	}

	ok, err := w.repo.SubmitPost(ctx, postID, token, w.now())
	if err != nil {
		return nil, fmt.Errorf("failed to submit post: %w", err)
	}
	if !ok {
		if _, err := w.repo.GetPostByID(ctx, postID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: only drafts can be submitted", ErrInvalidState)
	}

	post, err := w.repo.GetPostByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	log := w.log.WithPostID(post.ID)
	log.Info().Str("slug", post.Slug).Msg("Post sent for approval")
	w.record(ctx, EventSubmitted, post)

	result := &SubmitResult{Post: post, Token: token}
	if err := w.sendApprovalEmail(ctx, post, token); err != nil {
		result.EmailError = err.Error()
		post.ApprovalEmailError = result.EmailError
	}
	return result, nil
}

func (w *Workflow) sendApprovalEmail(ctx context.Context, post *models.BlogPost, token string) error {
	log := w.log.WithPostID(post.ID)

	msg, err := notify.ApprovalMessage(post, notify.LinksFor(w.opts.BaseURL, token), w.opts.ReviewerEmail)
	if err == nil {
		err = w.mailer.Send(ctx, msg)
	}
	metrics.RecordEmail(err)

	status := ""
	if err != nil {
		status = err.Error()
		log.Error().Err(err).Msg("Failed to send approval email")
	}
	if recErr := w.repo.RecordApprovalEmail(ctx, post.ID, status); recErr != nil {
		log.Error().Err(recErr).Msg("Failed to record approval email status")
	}
	return err
}

// Approve resolves a token to PENDING_APPROVAL → APPROVED and schedules the
// next publish slot. A token that was already used, or whose post moved on,
// reports OutcomeAlreadyProcessed and changes nothing.
func (w *Workflow) Approve(ctx context.Context, token, approvedBy string, now time.Time) (*Result, error) {
	if token == "" {
		metrics.RecordApproval("approve", string(OutcomeNotFound))
		return &Result{Outcome: OutcomeNotFound}, nil
	}

	slot := NextPublishSlot(now, w.opts.Slot)
	ok, err := w.repo.ApprovePost(ctx, token, approvedBy, now, slot)
	if err != nil {
		return nil, fmt.Errorf("failed to approve post: %w", err)
	}
	if !ok {
		result, err := w.unresolved(ctx, token)
		if err == nil {
			metrics.RecordApproval("approve", string(result.Outcome))
		}
		return result, err
	}

	post, err := w.repo.GetPostByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	scheduled := slot.UTC()

	w.log.WithPostID(post.ID).WithToken(token).Info().
		Str("approved_by", approvedBy).
		Time("scheduled_for", scheduled).
		Msg("Post approved")
	w.record(ctx, EventApproved, post)
	metrics.RecordApproval("approve", string(OutcomeApplied))

	return &Result{Outcome: OutcomeApplied, Post: post, ScheduledFor: &scheduled}, nil
}

// Reject resolves a token to PENDING_APPROVAL → REJECTED and bumps the revision count
func (w *Workflow) Reject(ctx context.Context, token, reason string, now time.Time) (*Result, error) {
	if token == "" {
		metrics.RecordApproval("reject", string(OutcomeNotFound))
		return &Result{Outcome: OutcomeNotFound}, nil
	}

	reason = strings.TrimSpace(reason)
	if r := []rune(reason); len(r) > MaxReasonLength {
		reason = string(r[:MaxReasonLength])
	}

	ok, err := w.repo.RejectPost(ctx, token, reason, now)
	if err != nil {
		return nil, fmt.Errorf("failed to reject post: %w", err)
	}
	if !ok {
		result, err := w.unresolved(ctx, token)
		if err == nil {
			metrics.RecordApproval("reject", string(result.Outcome))
		}
		return result, err
	}

	post, err := w.repo.GetPostByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	w.log.WithPostID(post.ID).WithToken(token).Info().
		Int("revision_count", post.RevisionCount).
		Msg("Post rejected")
	w.record(ctx, EventRejected, post)
	metrics.RecordApproval("reject", string(OutcomeApplied))

	return &Result{Outcome: OutcomeApplied, Post: post}, nil
}

// unresolved classifies a token whose conditional update matched no row
func (w *Workflow) unresolved(ctx context.Context, token string) (*Result, error) {
	post, err := w.repo.GetPostByToken(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return &Result{Outcome: OutcomeNotFound}, nil
	}
	if err != nil {
		return nil, err
	}
	return &Result{Outcome: OutcomeAlreadyProcessed, Post: post}, nil
}

// Preview resolves a pending or used token to its post
func (w *Workflow) Preview(ctx context.Context, token string) (*models.BlogPost, error) {
	if token == "" {
		return nil, storage.ErrNotFound
	}
	return w.repo.GetPostByToken(ctx, token)
}

// Archive moves a post in any other state to ARCHIVED, invalidating a pending token
func (w *Workflow) Archive(ctx context.Context, postID uint) (*models.BlogPost, error) {
	ok, err := w.repo.ArchivePost(ctx, postID, w.now())
	if err != nil {
		return nil, fmt.Errorf("failed to archive post: %w", err)
	}

	post, err := w.repo.GetPostByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: post is already archived", ErrInvalidState)
	}

	w.log.WithPostID(post.ID).Info().Msg("Post archived")
	w.record(ctx, EventArchived, post)
	return post, nil
}

// ResendPending submits pipeline drafts that never made it to the reviewer and
// retries the email for pending posts whose last send failed.
func (w *Workflow) ResendPending(ctx context.Context) (*ResendResult, error) {
	result := &ResendResult{}

	draft := models.PostStatusDraft
	drafts, err := w.repo.ListPosts(ctx, storage.PostFilter{
		Status:  &draft,
		Origin:  models.OriginPipeline,
		OrderBy: "created_at",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}

	// posts submitted above already had their one email attempt this sweep
	handled := make(map[uint]bool, len(drafts))
	for _, post := range drafts {
		// Scheduled drafts publish directly without review
		if post.ScheduledFor != nil {
			continue
		}
		handled[post.ID] = true
		sub, err := w.Submit(ctx, post.ID)
		if err != nil {
			if errors.Is(err, ErrInvalidState) {
				continue
			}
			w.log.WithPostID(post.ID).Error().Err(err).Msg("Failed to submit draft")
			result.Failed++
			continue
		}
		if sub.EmailError != "" {
			result.Failed++
			continue
		}
		result.Submitted++
	}

	pending := models.PostStatusPendingApproval
	posts, err := w.repo.ListPosts(ctx, storage.PostFilter{
		Status:  &pending,
		OrderBy: "created_at",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pending posts: %w", err)
	}

	for _, post := range posts {
		if handled[post.ID] || post.ApprovalEmailError == "" || post.ApprovalToken == nil {
			continue
		}
		if err := w.sendApprovalEmail(ctx, post, *post.ApprovalToken); err != nil {
			result.Failed++
			continue
		}
		result.Resent++
	}

	w.log.Info().
		Int("submitted", result.Submitted).
		Int("resent", result.Resent).
		Int("failed", result.Failed).
		Msg("Approval sweep complete")

	return result, nil
}
