package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/content-pipeline/internal/approval"
	"github.com/content-pipeline/internal/models"
	"github.com/content-pipeline/internal/notify"
	"github.com/content-pipeline/internal/storage"
)

func (s *Server) site() pageData {
	return pageData{Site: s.cfg.Blog.Name}
}

func (s *Server) handlePreview(c echo.Context) error {
	token := c.Param("token")
	post, err := s.workflow.Preview(c.Request().Context(), token)
	if errors.Is(err, storage.ErrNotFound) {
		return s.renderOutcome(c, "preview", &approval.Result{Outcome: approval.OutcomeNotFound})
	}
	if err != nil {
		return err
	}

	body, err := s.renderer.HTML(post.Content)
	if err != nil {
		return err
	}

	pending := post.Status == models.PostStatusPendingApproval &&
		post.ApprovalToken != nil && *post.ApprovalToken == token

	d := previewData{
		pageData: s.site(),
		Post:     post,
		Body:     safeHTML(body),
		Links:    notify.LinksFor(s.cfg.Approval.BaseURL, token),
		Pending:  pending,
	}
	d.Title = "Preview: " + post.Title
	return Render(c, previewPage(d))
}

func (s *Server) handleApprove(c echo.Context) error {
	result, err := s.workflow.Approve(c.Request().Context(), c.Param("token"), s.cfg.Approval.ApprovedBy, s.now())
	if err != nil {
		return err
	}
	return s.renderOutcome(c, "approve", result)
}

// handleReject applies the rejection on GET (link click, optional ?reason=)
// and on POST (form field reason).
func (s *Server) handleReject(c echo.Context) error {
	reason := c.FormValue("reason")
	result, err := s.workflow.Reject(c.Request().Context(), c.Param("token"), reason, s.now())
	if err != nil {
		return err
	}
	return s.renderOutcome(c, "reject", result)
}

func (s *Server) handleEditRedirect(c echo.Context) error {
	post, err := s.workflow.Preview(c.Request().Context(), c.Param("token"))
	if errors.Is(err, storage.ErrNotFound) {
		return s.renderOutcome(c, "edit", &approval.Result{Outcome: approval.OutcomeNotFound})
	}
	if err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, fmt.Sprintf(s.cfg.Approval.AdminEditPath, post.ID))
}

func (s *Server) renderOutcome(c echo.Context, action string, result *approval.Result) error {
	d := outcomeData{pageData: s.site(), Post: result.Post}

	switch result.Outcome {
	case approval.OutcomeApplied:
		d.Class = "ok"
		if action == "approve" {
			d.Heading = "Post approved"
			d.Message = "Thanks, the post is queued for publishing."
			if result.ScheduledFor != nil {
				d.Scheduled = s.formatSlot(*result.ScheduledFor)
			}
		} else {
			d.Heading = "Post rejected"
			d.Message = "The draft was sent back for revision."
		}
	case approval.OutcomeAlreadyProcessed:
		d.Class = "warn"
		d.Heading = "Already processed"
		d.Message = "This link has already been used. Nothing was changed."
	default:
		d.Class = "warn"
		d.Heading = "Link not found"
		d.Message = "This approval link is not valid."
		d.Post = nil
		d.Title = d.Heading
		return RenderStatus(c, http.StatusNotFound, outcomePage(d))
	}

	d.Title = d.Heading
	return Render(c, outcomePage(d))
}
