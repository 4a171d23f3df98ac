// Package server exposes the approval pages, cron endpoints, admin API and
// public blog over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/content-pipeline/internal/agent/pipeline"
	"github.com/content-pipeline/internal/agent/publisher"
	"github.com/content-pipeline/internal/approval"
	"github.com/content-pipeline/internal/config"
	"github.com/content-pipeline/internal/render"
	"github.com/content-pipeline/internal/storage"
	"github.com/content-pipeline/internal/validation"
	"github.com/content-pipeline/pkg/logger"
	"github.com/content-pipeline/pkg/ratelimit"
)

// Pipeline runs the fetch and generate steps
type Pipeline interface {
	Fetch(ctx context.Context) (*pipeline.FetchResult, error)
	Run(ctx context.Context) (*pipeline.RunResult, error)
}

// Publisher runs the publish sweep and admin scheduling
type Publisher interface {
	Sweep(ctx context.Context, now time.Time) (*publisher.SweepResult, error)
	Schedule(ctx context.Context, postID uint, at time.Time) error
}

// Deps holds everything the handlers call into
type Deps struct {
	Config    *config.Config
	Repo      storage.Repository
	Workflow  *approval.Workflow
	Pipeline  Pipeline
	Publisher Publisher
	Validator *validation.Validator
	Renderer  *render.Renderer
	Log       *logger.Logger
}

// Server is the HTTP front end
type Server struct {
	echo      *echo.Echo
	cfg       *config.Config
	repo      storage.Repository
	workflow  *approval.Workflow
	pipeline  Pipeline
	publisher Publisher
	renderer  *render.Renderer
	login     *ratelimit.KeyedLimiter
	now       func() time.Time
	log       *logger.Logger
}

// New builds the echo instance with middleware and routes
func New(d Deps) *Server {
	renderer := d.Renderer
	if renderer == nil {
		renderer = render.New()
	}
	attempts := d.Config.RateLimit.LoginAttemptsPerHour
	if attempts <= 0 {
		attempts = 10
	}

	s := &Server{
		echo:      echo.New(),
		cfg:       d.Config,
		repo:      d.Repo,
		workflow:  d.Workflow,
		pipeline:  d.Pipeline,
		publisher: d.Publisher,
		renderer:  renderer,
		login:     ratelimit.NewKeyedLimiter(attempts, time.Hour),
		now:       time.Now,
		log:       d.Log.WithComponent("http"),
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Validator = &echoValidator{v: d.Validator}
	s.echo.HTTPErrorHandler = s.httpErrorHandler

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler returns the underlying http.Handler
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on the configured port until Shutdown
func (s *Server) Start() error {
	addr := ":" + s.cfg.Server.Port
	s.log.Info().Str("addr", addr).Msg("HTTP server listening")
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	e := s.echo

	e.GET("/health", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(metricsHandler()))

	// Approval links from the reviewer email
	ap := e.Group("/approval/:token")
	ap.GET("/preview", s.handlePreview)
	ap.GET("/approve", s.handleApprove)
	ap.GET("/reject", s.handleReject)
	ap.POST("/reject", s.handleReject)
	ap.GET("/edit", s.handleEditRedirect)

	// External cron triggers
	cron := e.Group("/api/cron", cronAuth(s.cfg.Server.CronSecret))
	cron.POST("/fetch", s.handleCronFetch)
	cron.POST("/generate", s.handleCronGenerate)
	cron.POST("/send-approval", s.handleCronSendApproval)
	cron.POST("/publish", s.handleCronPublish)

	// Admin session
	e.GET("/admin/login", s.handleLoginPage)
	e.POST("/admin/login", s.handleLogin)
	e.POST("/admin/logout", s.handleLogout)

	pages := e.Group("/admin/posts", s.requireAdminPage, csrfMiddleware(s.cfg.Server.CookieSecure))
	pages.GET("/:id/edit", s.handleEditPage)
	pages.POST("/:id/edit", s.handleEditSave)

	api := e.Group("/api/admin", s.requireAdmin)
	api.GET("/sources", s.handleListSources)
	api.POST("/sources", s.handleCreateSource)
	api.PUT("/sources/:id", s.handleUpdateSource)
	api.DELETE("/sources/:id", s.handleDeleteSource)
	api.GET("/posts", s.handleListPosts)
	api.POST("/posts", s.handleCreatePost)
	api.GET("/posts/:id", s.handleGetPost)
	api.PUT("/posts/:id", s.handleUpdatePost)
	api.POST("/posts/:id/submit", s.handleSubmitPost)
	api.POST("/posts/:id/archive", s.handleArchivePost)
	api.POST("/posts/:id/schedule", s.handleSchedulePost)
	api.GET("/guidelines", s.handleGetGuidelines)
	api.PUT("/guidelines", s.handleSaveGuidelines)
	api.POST("/pipeline/run", s.handleRunPipeline)

	// Public blog
	e.GET("/blog", s.handleBlogIndex)
	e.GET("/blog/:slug", s.handleBlogPost)
	e.GET("/feed.xml", s.handleFeed)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// echoValidator adapts the go-playground wrapper to echo.Validator
type echoValidator struct {
	v *validation.Validator
}

func (ev *echoValidator) Validate(i interface{}) error {
	if ev.v == nil {
		return nil
	}
	return ev.v.Struct(i)
}

// bind decodes and validates a request body
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return c.Validate(req)
}

// jsonError writes the error envelope used by every JSON endpoint
func jsonError(c echo.Context, code int, msg string) error {
	return c.JSON(code, map[string]string{"error": msg})
}

// apiError maps domain errors onto status codes
func (s *Server) apiError(c echo.Context, err error) error {
	var verr *validation.ValidationError
	var derr *validation.DraftError
	var herr *echo.HTTPError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   "validation failed",
			"details": verr.Errors,
		})
	case errors.As(err, &derr):
		return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{
			"error":   "draft failed validation",
			"details": derr.Errors,
		})
	case errors.As(err, &herr):
		msg, _ := herr.Message.(string)
		if msg == "" {
			msg = http.StatusText(herr.Code)
		}
		return jsonError(c, herr.Code, msg)
	case errors.Is(err, storage.ErrNotFound):
		return jsonError(c, http.StatusNotFound, "not found")
	case errors.Is(err, storage.ErrSlugTaken):
		return jsonError(c, http.StatusConflict, "slug already taken")
	case errors.Is(err, approval.ErrInvalidState):
		return jsonError(c, http.StatusConflict, err.Error())
	default:
		s.log.Error().Err(err).
			Str("method", c.Request().Method).
			Str("path", c.Path()).
			Msg("Request failed")
		return jsonError(c, http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	path := c.Request().URL.Path
	if strings.HasPrefix(path, "/api/") || path == "/admin/login" || path == "/admin/logout" {
		_ = s.apiError(c, err)
		return
	}

	code := http.StatusInternalServerError
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
	}
	if code == http.StatusNotFound {
		_ = RenderStatus(c, code, notFoundPage(s.cfg.Blog.Name))
		return
	}
	if code >= 500 {
		s.log.Error().Err(err).Str("path", path).Msg("Server error")
		_ = RenderStatus(c, code, errorPage(s.cfg.Blog.Name))
		return
	}
	s.echo.DefaultHTTPErrorHandler(err, c)
}
