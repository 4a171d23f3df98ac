package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/content-pipeline/internal/agent/pipeline"
	"github.com/content-pipeline/internal/agent/publisher"
	"github.com/content-pipeline/internal/ai"
	"github.com/content-pipeline/internal/approval"
	"github.com/content-pipeline/internal/config"
	"github.com/content-pipeline/internal/models"
	"github.com/content-pipeline/internal/notify"
	"github.com/content-pipeline/internal/storage/gormstore"
	"github.com/content-pipeline/internal/validation"
	"github.com/content-pipeline/pkg/logger"
)

const (
	testCronSecret = "cron-secret"
	testPassword   = "admin-password"
)

type fakeMailer struct {
	sent []notify.Message
}

func (f *fakeMailer) Send(ctx context.Context, msg notify.Message) error {
	f.sent = append(f.sent, msg)
	return nil
}

type fakePipeline struct {
	runs int
}

func (f *fakePipeline) Fetch(ctx context.Context) (*pipeline.FetchResult, error) {
	return &pipeline.FetchResult{ArticlesFound: 3, SourcesFetched: 1}, nil
}

func (f *fakePipeline) Run(ctx context.Context) (*pipeline.RunResult, error) {
	f.runs++
	return &pipeline.RunResult{Skipped: "no articles"}, nil
}

type harness struct {
	srv      *Server
	repo     *gormstore.Repository
	workflow *approval.Workflow
	mailer   *fakeMailer
	pipeline *fakePipeline
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	repo, err := gormstore.New(config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "server.db")})
	require.NoError(t, err)
	require.NoError(t, repo.Migrate())
	t.Cleanup(func() { _ = repo.Close() })

	cfg := &config.Config{
		Server: config.ServerConfig{
			CronSecret:    testCronSecret,
			AdminPassword: testPassword,
			SessionSecret: strings.Repeat("s", 32),
		},
		Approval: config.ApprovalConfig{
			BaseURL:        "https://blog.example",
			ApprovedBy:     "editor",
			PublishHour:    9,
			UTCOffsetHours: 0,
			AdminEditPath:  "/admin/posts/%d/edit",
		},
		Blog:      config.BlogConfig{Name: "Field Notes", Description: "Notes from the field"},
		RateLimit: config.RateLimitConfig{LoginAttemptsPerHour: 5},
	}

	mailer := &fakeMailer{}
	wf := approval.NewWorkflow(repo, mailer, approval.Options{
		BaseURL:       cfg.Approval.BaseURL,
		ReviewerEmail: "editor@example.com",
		Slot:          approval.SlotConfig{Hour: 9},
	}, logger.Nop())
	fp := &fakePipeline{}

	srv := New(Deps{
		Config:    cfg,
		Repo:      repo,
		Workflow:  wf,
		Pipeline:  fp,
		Publisher: publisher.NewAgent(repo, config.PublishingConfig{}, logger.Nop()),
		Validator: validation.New(config.ValidationConfig{}),
		Log:       logger.Nop(),
	})
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	srv.now = func() time.Time { return now }

	return &harness{srv: srv, repo: repo, workflow: wf, mailer: mailer, pipeline: fp, now: now}
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	return rec
}

var postBody = "## Why\n\nTelemetry costs grow faster than traffic.\n\n" +
	strings.Repeat("Sampling and retention decide most of the bill. ", 40)

func (h *harness) submit(t *testing.T) *approval.SubmitResult {
	t.Helper()
	res, err := h.workflow.CreateAndSubmit(context.Background(), &ai.Draft{
		Title:    "Observability Budgets",
		Slug:     "observability-budgets",
		Excerpt:  "Spending less on telemetry.",
		Content:  postBody,
		Keywords: []string{"observability", "cost"},
	}, models.OriginPipeline)
	require.NoError(t, err)
	return res
}

func (h *harness) login(t *testing.T) []*http.Cookie {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(`{"password":"`+testPassword+`"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := h.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

func withCookies(req *http.Request, cookies []*http.Cookie) *http.Request {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	rec := h.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestApproveLinkTwice(t *testing.T) {
	h := newHarness(t)
	res := h.submit(t)

	first := h.do(httptest.NewRequest(http.MethodGet, "/approval/"+res.Token+"/approve", nil))
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Contains(t, first.Body.String(), "Post approved")
	assert.Contains(t, first.Body.String(), "Wednesday, 11 March 2026 at 09:00")
	assert.Equal(t, "no-store", first.Header().Get("Cache-Control"))

	second := h.do(httptest.NewRequest(http.MethodGet, "/approval/"+res.Token+"/approve", nil))
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Contains(t, second.Body.String(), "Already processed")

	post, err := h.repo.GetPostByID(context.Background(), res.Post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusApproved, post.Status)
	assert.Equal(t, "editor", post.ApprovedBy)
}

func TestUnknownTokenIsNotFound(t *testing.T) {
	h := newHarness(t)
	for _, action := range []string{"approve", "reject", "preview"} {
		rec := h.do(httptest.NewRequest(http.MethodGet, "/approval/deadbeef/"+action, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, action)
	}
}

func TestRejectWithReason(t *testing.T) {
	h := newHarness(t)
	res := h.submit(t)

	form := url.Values{"reason": {"Needs a stronger intro"}}
	req := httptest.NewRequest(http.MethodPost, "/approval/"+res.Token+"/reject", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := h.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Post rejected")

	post, err := h.repo.GetPostByID(context.Background(), res.Post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusRejected, post.Status)
	assert.Equal(t, "Needs a stronger intro", post.RejectionReason)
	assert.Equal(t, 1, post.RevisionCount)
}

func TestPreviewShowsActionsWhilePending(t *testing.T) {
	h := newHarness(t)
	res := h.submit(t)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/approval/"+res.Token+"/preview", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Observability Budgets")
	assert.Contains(t, body, "<h2")
	assert.Contains(t, body, "/approval/"+res.Token+"/approve")
	assert.Contains(t, body, "noindex")
}

func TestEditLinkRedirectsToAdminPage(t *testing.T) {
	h := newHarness(t)
	res := h.submit(t)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/approval/"+res.Token+"/edit", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/posts/1/edit", rec.Header().Get("Location"))

	page := h.do(httptest.NewRequest(http.MethodGet, "/admin/posts/1/edit", nil))
	assert.Equal(t, http.StatusSeeOther, page.Code)
	assert.Equal(t, "/admin/login?next=%2Fadmin%2Fposts%2F1%2Fedit", page.Header().Get("Location"))
}

func TestCronRequiresBearer(t *testing.T) {
	h := newHarness(t)

	rec := h.do(httptest.NewRequest(http.MethodPost, "/api/cron/fetch", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/cron/fetch", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, h.do(req).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/cron/fetch", nil)
	req.Header.Set("Authorization", "Bearer "+testCronSecret)
	rec = h.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var result pipeline.FetchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 3, result.ArticlesFound)
}

func TestCronPublishSweep(t *testing.T) {
	h := newHarness(t)
	res := h.submit(t)
	ctx := context.Background()

	approved, err := h.workflow.Approve(ctx, res.Token, "editor", h.now.Add(-72*time.Hour))
	require.NoError(t, err)
	require.Equal(t, approval.OutcomeApplied, approved.Outcome)

	req := httptest.NewRequest(http.MethodPost, "/api/cron/publish", nil)
	req.Header.Set("Authorization", "Bearer "+testCronSecret)
	rec := h.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result publisher.SweepResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Published)

	blog := h.do(httptest.NewRequest(http.MethodGet, "/blog/observability-budgets", nil))
	assert.Equal(t, http.StatusOK, blog.Code)
	assert.Contains(t, blog.Body.String(), "Telemetry costs grow faster than traffic.")
}

func TestAdminAPIRequiresSession(t *testing.T) {
	h := newHarness(t)
	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/admin/sources", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
}

func TestLoginWrongPassword(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(`{"password":"nope"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := h.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestLoginRateLimited(t *testing.T) {
	h := newHarness(t)
	var last int
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(`{"password":"nope"}`))
		req.Header.Set("Content-Type", "application/json")
		last = h.do(req).Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestAdminSourcesAPI(t *testing.T) {
	h := newHarness(t)
	cookies := h.login(t)

	body := `{"name":"Go Blog","feed_url":"https://go.dev/blog/feed.atom","active":false}`
	req := withCookies(httptest.NewRequest(http.MethodPost, "/api/admin/sources", strings.NewReader(body)), cookies)
	req.Header.Set("Content-Type", "application/json")
	rec := h.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created models.ContentSource
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "24h", created.FetchFrequency)
	assert.False(t, created.Active)

	dup := withCookies(httptest.NewRequest(http.MethodPost, "/api/admin/sources", strings.NewReader(body)), cookies)
	dup.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusConflict, h.do(dup).Code)

	bad := withCookies(httptest.NewRequest(http.MethodPost, "/api/admin/sources", strings.NewReader(`{"name":"x","feed_url":"not a url"}`)), cookies)
	bad.Header.Set("Content-Type", "application/json")
	badRec := h.do(bad)
	assert.Equal(t, http.StatusBadRequest, badRec.Code)
	assert.Contains(t, badRec.Body.String(), "feed_url")

	list := h.do(withCookies(httptest.NewRequest(http.MethodGet, "/api/admin/sources", nil), cookies))
	require.Equal(t, http.StatusOK, list.Code)
	var sources []models.ContentSource
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &sources))
	require.Len(t, sources, 1)
	assert.Equal(t, "Go Blog", sources[0].Name)
}

func TestAdminPostLifecycle(t *testing.T) {
	h := newHarness(t)
	cookies := h.login(t)

	body, err := json.Marshal(map[string]interface{}{
		"title":    "Manual Post",
		"excerpt":  "Written by hand.",
		"content":  postBody,
		"keywords": []string{"manual"},
	})
	require.NoError(t, err)
	create := withCookies(httptest.NewRequest(http.MethodPost, "/api/admin/posts", strings.NewReader(string(body))), cookies)
	create.Header.Set("Content-Type", "application/json")
	rec := h.do(create)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var post models.BlogPost
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &post))
	assert.Equal(t, "manual-post", post.Slug)
	assert.Equal(t, models.OriginManual, post.Origin)
	assert.Equal(t, models.PostStatusDraft, post.Status)

	submit := h.do(withCookies(httptest.NewRequest(http.MethodPost, "/api/admin/posts/1/submit", nil), cookies))
	require.Equal(t, http.StatusOK, submit.Code, submit.Body.String())
	require.Len(t, h.mailer.sent, 1)

	again := h.do(withCookies(httptest.NewRequest(http.MethodPost, "/api/admin/posts/1/submit", nil), cookies))
	assert.Equal(t, http.StatusConflict, again.Code)

	archive := h.do(withCookies(httptest.NewRequest(http.MethodPost, "/api/admin/posts/1/archive", nil), cookies))
	require.Equal(t, http.StatusOK, archive.Code)

	missing := h.do(withCookies(httptest.NewRequest(http.MethodGet, "/api/admin/posts/99", nil), cookies))
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestSubmitShortManualPostIsUnprocessable(t *testing.T) {
	h := newHarness(t)
	cookies := h.login(t)

	create := withCookies(httptest.NewRequest(http.MethodPost, "/api/admin/posts",
		strings.NewReader(`{"title":"Manual Post","content":"Hand written."}`)), cookies)
	create.Header.Set("Content-Type", "application/json")
	require.Equal(t, http.StatusCreated, h.do(create).Code)

	rec := h.do(withCookies(httptest.NewRequest(http.MethodPost, "/api/admin/posts/1/submit", nil), cookies))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	var resp struct {
		Error   string   `json:"error"`
		Details []string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "draft failed validation", resp.Error)
	assert.Contains(t, resp.Details, "excerpt is required")
	assert.Contains(t, resp.Details, "content must be at least 1500 characters long")
	assert.Len(t, resp.Details, 3)
	assert.Empty(t, h.mailer.sent)

	post, err := h.repo.GetPostByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusDraft, post.Status)
	assert.Nil(t, post.ApprovalToken)
}

func TestAdminRunPipeline(t *testing.T) {
	h := newHarness(t)
	cookies := h.login(t)

	rec := h.do(withCookies(httptest.NewRequest(http.MethodPost, "/api/admin/pipeline/run", nil), cookies))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, h.pipeline.runs)
}

func TestBlogHidesUnpublishedPosts(t *testing.T) {
	h := newHarness(t)
	h.submit(t)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/blog/observability-budgets", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	index := h.do(httptest.NewRequest(http.MethodGet, "/blog", nil))
	assert.Equal(t, http.StatusOK, index.Code)
	assert.Contains(t, index.Body.String(), "No posts yet.")
}

func TestFeed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	published := h.now.Add(-time.Hour)
	require.NoError(t, h.repo.CreatePost(ctx, &models.BlogPost{
		Slug:        "shipped",
		Title:       "Shipped & Done",
		Excerpt:     "A finished post.",
		Content:     "Body",
		Status:      models.PostStatusPublished,
		PublishedAt: &published,
	}))
	h.submit(t)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/feed.xml", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/rss+xml; charset=utf-8", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "<?xml"))
	assert.Contains(t, body, `<rss version="2.0">`)
	assert.Contains(t, body, "<link>https://blog.example/blog/shipped</link>")
	assert.Contains(t, body, "Shipped &amp; Done")
	assert.NotContains(t, body, "observability-budgets")
}

func TestRedactToken(t *testing.T) {
	assert.Equal(t, "/approval/***/approve", redactToken("/approval/abc123/approve"))
	assert.Equal(t, "/approval/***", redactToken("/approval/abc123"))
	assert.Equal(t, "/blog/post", redactToken("/blog/post"))
}

func TestSafeNext(t *testing.T) {
	assert.Equal(t, "/admin/posts/1/edit", safeNext("/admin/posts/1/edit"))
	assert.Equal(t, "/blog", safeNext("https://evil.example"))
	assert.Equal(t, "/blog", safeNext("//evil.example"))
	assert.Equal(t, "/blog", safeNext(""))
}
