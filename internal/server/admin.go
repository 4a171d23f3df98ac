package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/content-pipeline/internal/models"
	"github.com/content-pipeline/internal/storage"
)

type loginRequest struct {
	Password string `json:"password" form:"password" validate:"required"`
	Next     string `json:"next" form:"next"`
}

type sourceRequest struct {
	Name           string `json:"name" validate:"required,max=100"`
	URL            string `json:"url" validate:"omitempty,url"`
	FeedURL        string `json:"feed_url" validate:"required,url"`
	Active         *bool  `json:"active"`
	FetchFrequency string `json:"fetch_frequency" validate:"omitempty,duration"`
}

type postRequest struct {
	Title            string   `json:"title" validate:"required,max=200"`
	Slug             string   `json:"slug" validate:"omitempty,slug"`
	Excerpt          string   `json:"excerpt" validate:"max=1000"`
	Content          string   `json:"content" validate:"required"`
	MetaTitle        string   `json:"meta_title" validate:"max=200"`
	MetaDescription  string   `json:"meta_description" validate:"max=500"`
	Keywords         []string `json:"keywords" validate:"dive,required"`
	CoverImageURL    string   `json:"cover_image_url" validate:"omitempty,url"`
	CoverImageCredit string   `json:"cover_image_credit"`
}

type scheduleRequest struct {
	ScheduledFor time.Time `json:"scheduled_for" validate:"required"`
}

type guidelinesRequest struct {
	Content string `json:"content" validate:"required"`
}

func wantsJSON(c echo.Context) bool {
	return strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
}

// safeNext only allows local redirect targets
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/blog"
	}
	return next
}

func (s *Server) handleLoginPage(c echo.Context) error {
	d := loginData{pageData: s.site(), Next: safeNext(c.QueryParam("next"))}
	d.Title = "Admin login"
	return Render(c, loginPage(d))
}

func (s *Server) handleLogin(c echo.Context) error {
	if !s.login.Allow(c.RealIP()) {
		return jsonError(c, http.StatusTooManyRequests, "too many login attempts, try again later")
	}

	var req loginRequest
	if err := bind(c, &req); err != nil {
		return s.apiError(c, err)
	}

	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.cfg.Server.AdminPassword)) != 1 {
		s.log.Warn().Str("remote_ip", c.RealIP()).Msg("Failed admin login")
		if wantsJSON(c) {
			return jsonError(c, http.StatusUnauthorized, "invalid password")
		}
		d := loginData{pageData: s.site(), Failed: true, Next: safeNext(req.Next)}
		d.Title = "Admin login"
		return RenderStatus(c, http.StatusUnauthorized, loginPage(d))
	}

	if err := setAdminSession(c); err != nil {
		return err
	}
	if wantsJSON(c) {
		return c.JSON(http.StatusOK, map[string]bool{"authenticated": true})
	}
	return c.Redirect(http.StatusSeeOther, safeNext(req.Next))
}

func (s *Server) handleLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func paramID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return uint(id), nil
}

// Sources

func (s *Server) handleListSources(c echo.Context) error {
	sources, err := s.repo.ListContentSources(c.Request().Context(), false)
	if err != nil {
		return s.apiError(c, err)
	}
	return c.JSON(http.StatusOK, sources)
}

func (s *Server) handleCreateSource(c echo.Context) error {
	var req sourceRequest
	if err := bind(c, &req); err != nil {
		return s.apiError(c, err)
	}

	src := &models.ContentSource{
		Name:           strings.TrimSpace(req.Name),
		URL:            req.URL,
		FeedURL:        req.FeedURL,
		Active:         req.Active == nil || *req.Active,
		FetchFrequency: req.FetchFrequency,
	}
	if src.FetchFrequency == "" {
		src.FetchFrequency = "24h"
	}

	if err := s.repo.CreateContentSource(c.Request().Context(), src); err != nil {
		if isConflict(err) {
			return jsonError(c, http.StatusConflict, "a source with that name or feed URL already exists")
		}
		return s.apiError(c, err)
	}
	return c.JSON(http.StatusCreated, src)
}

func (s *Server) handleUpdateSource(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return s.apiError(c, err)
	}
	var req sourceRequest
	if err := bind(c, &req); err != nil {
		return s.apiError(c, err)
	}

	ctx := c.Request().Context()
	src, err := s.repo.GetContentSource(ctx, id)
	if err != nil {
		return s.apiError(c, err)
	}
	src.Name = strings.TrimSpace(req.Name)
	src.URL = req.URL
	src.FeedURL = req.FeedURL
	if req.Active != nil {
		src.Active = *req.Active
	}
	if req.FetchFrequency != "" {
		src.FetchFrequency = req.FetchFrequency
	}

	if err := s.repo.UpdateContentSource(ctx, src); err != nil {
		if isConflict(err) {
			return jsonError(c, http.StatusConflict, "a source with that name or feed URL already exists")
		}
		return s.apiError(c, err)
	}
	return c.JSON(http.StatusOK, src)
}

func (s *Server) handleDeleteSource(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return s.apiError(c, err)
	}
	if err := s.repo.DeleteContentSource(c.Request().Context(), id); err != nil {
		return s.apiError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Posts

func (s *Server) handleListPosts(c echo.Context) error {
	filter := storage.DefaultPostFilter()
	if raw := c.QueryParam("status"); raw != "" {
		status := models.PostStatus(strings.ToUpper(raw))
		if !status.Valid() {
			return jsonError(c, http.StatusBadRequest, "unknown status")
		}
		filter.Status = &status
	}
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			filter.Limit = n
		}
	}
	if raw := c.QueryParam("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	posts, err := s.repo.ListPosts(c.Request().Context(), filter)
	if err != nil {
		return s.apiError(c, err)
	}
	return c.JSON(http.StatusOK, posts)
}

func (s *Server) handleGetPost(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return s.apiError(c, err)
	}
	post, err := s.repo.GetPostByID(c.Request().Context(), id)
	if err != nil {
		return s.apiError(c, err)
	}
	return c.JSON(http.StatusOK, post)
}

func (s *Server) handleCreatePost(c echo.Context) error {
	var req postRequest
	if err := bind(c, &req); err != nil {
		return s.apiError(c, err)
	}

	post := &models.BlogPost{
		Slug:             req.Slug,
		Title:            strings.TrimSpace(req.Title),
		Excerpt:          req.Excerpt,
		Content:          req.Content,
		MetaTitle:        req.MetaTitle,
		MetaDescription:  req.MetaDescription,
		Keywords:         models.StringSlice(req.Keywords),
		CoverImageURL:    req.CoverImageURL,
		CoverImageCredit: req.CoverImageCredit,
		Origin:           models.OriginManual,
	}
	if err := s.workflow.CreateDraft(c.Request().Context(), post); err != nil {
		return s.apiError(c, err)
	}
	return c.JSON(http.StatusCreated, post)
}

func (s *Server) handleUpdatePost(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return s.apiError(c, err)
	}
	var req postRequest
	if err := bind(c, &req); err != nil {
		return s.apiError(c, err)
	}

	ctx := c.Request().Context()
	post, err := s.repo.GetPostByID(ctx, id)
	if err != nil {
		return s.apiError(c, err)
	}
	if req.Slug != "" && req.Slug != post.Slug {
		return jsonError(c, http.StatusBadRequest, "slug cannot be changed")
	}
	if !post.Editable() {
		return jsonError(c, http.StatusConflict, "post can no longer be edited")
	}

	post.Title = strings.TrimSpace(req.Title)
	post.Excerpt = req.Excerpt
	post.Content = req.Content
	post.MetaTitle = req.MetaTitle
	post.MetaDescription = req.MetaDescription
	post.Keywords = models.StringSlice(req.Keywords)
	post.CoverImageURL = req.CoverImageURL
	post.CoverImageCredit = req.CoverImageCredit

	if err := s.repo.UpdatePostContent(ctx, post); err != nil {
		return s.apiError(c, err)
	}
	updated, err := s.repo.GetPostByID(ctx, id)
	if err != nil {
		return s.apiError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) handleSubmitPost(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return s.apiError(c, err)
	}
	result, err := s.workflow.Submit(c.Request().Context(), id)
	if err != nil {
		return s.apiError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"post":       result.Post,
		"emailError": result.EmailError,
	})
}

func (s *Server) handleArchivePost(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return s.apiError(c, err)
	}
	post, err := s.workflow.Archive(c.Request().Context(), id)
	if err != nil {
		return s.apiError(c, err)
	}
	return c.JSON(http.StatusOK, post)
}

func (s *Server) handleSchedulePost(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return s.apiError(c, err)
	}
	var req scheduleRequest
	if err := bind(c, &req); err != nil {
		return s.apiError(c, err)
	}

	ctx := c.Request().Context()
	if err := s.publisher.Schedule(ctx, id, req.ScheduledFor); err != nil {
		return s.apiError(c, err)
	}
	post, err := s.repo.GetPostByID(ctx, id)
	if err != nil {
		return s.apiError(c, err)
	}
	return c.JSON(http.StatusOK, post)
}

// Guidelines

func (s *Server) handleGetGuidelines(c echo.Context) error {
	g, err := s.repo.GetGuideline(c.Request().Context(), models.BlogGuidelineName)
	if errors.Is(err, storage.ErrNotFound) {
		return c.JSON(http.StatusOK, &models.Guideline{
			Name:    models.BlogGuidelineName,
			Content: s.cfg.Pipeline.DefaultGuidelines,
		})
	}
	if err != nil {
		return s.apiError(c, err)
	}
	return c.JSON(http.StatusOK, g)
}

func (s *Server) handleSaveGuidelines(c echo.Context) error {
	var req guidelinesRequest
	if err := bind(c, &req); err != nil {
		return s.apiError(c, err)
	}
	g := &models.Guideline{Name: models.BlogGuidelineName, Content: req.Content}
	if err := s.repo.SaveGuideline(c.Request().Context(), g); err != nil {
		return s.apiError(c, err)
	}
	return c.JSON(http.StatusOK, g)
}

func (s *Server) handleRunPipeline(c echo.Context) error {
	result, err := s.pipeline.Run(c.Request().Context())
	if err != nil {
		s.log.Error().Err(err).Msg("Manual pipeline run failed")
		return jsonError(c, http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

// HTML edit page reached from the approval email

func (s *Server) handleEditPage(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	post, err := s.repo.GetPostByID(c.Request().Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return echo.ErrNotFound
	}
	if err != nil {
		return err
	}

	d := editData{pageData: s.site(), Post: post, CSRF: csrfToken(c)}
	if c.QueryParam("saved") == "1" {
		d.Message = "Saved."
	}
	d.Title = "Edit: " + post.Title
	return Render(c, editPage(d))
}

func (s *Server) handleEditSave(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	post, err := s.repo.GetPostByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return echo.ErrNotFound
	}
	if err != nil {
		return err
	}

	post.Title = strings.TrimSpace(c.FormValue("title"))
	post.Excerpt = c.FormValue("excerpt")
	post.Content = c.FormValue("content")
	post.MetaTitle = c.FormValue("meta_title")
	post.MetaDescription = c.FormValue("meta_description")

	var problems []string
	if !post.Editable() {
		problems = append(problems, "This post can no longer be edited.")
	}
	if post.Title == "" {
		problems = append(problems, "Title is required.")
	}
	if strings.TrimSpace(post.Content) == "" {
		problems = append(problems, "Content is required.")
	}
	if len(problems) > 0 {
		d := editData{pageData: s.site(), Post: post, CSRF: csrfToken(c), Errors: problems}
		d.Title = "Edit: " + post.Title
		return RenderStatus(c, http.StatusBadRequest, editPage(d))
	}

	if err := s.repo.UpdatePostContent(ctx, post); err != nil {
		return err
	}
	s.log.WithPostID(post.ID).Info().Msg("Post edited")
	return c.Redirect(http.StatusSeeOther, c.Request().URL.Path+"?saved=1")
}

func isConflict(err error) bool {
	msg := strings.ToLower(err.Error())
	return errors.Is(err, storage.ErrSlugTaken) ||
		strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
