package server

import (
	"html/template"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/content-pipeline/internal/models"
	"github.com/content-pipeline/internal/notify"
)

// Render writes a templ component as an HTTP 200 HTML response.
func Render(c echo.Context, cmp templ.Component) error {
	return RenderStatus(c, http.StatusOK, cmp)
}

// RenderStatus writes a templ component with a specific HTTP status code.
func RenderStatus(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return cmp.Render(c.Request().Context(), c.Response().Writer)
}

const layoutHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta name="robots" content="{{if .Indexable}}index,follow{{else}}noindex,nofollow{{end}}">
<title>{{.Title}}{{if .Site}} | {{.Site}}{{end}}</title>
{{if .Description}}<meta name="description" content="{{.Description}}">{{end}}
<link rel="alternate" type="application/rss+xml" href="/feed.xml">
<style>
body{font-family:system-ui,sans-serif;max-width:46rem;margin:2rem auto;padding:0 1rem;line-height:1.6;color:#1f2933}
a{color:#1d4ed8}.muted{color:#616e7c;font-size:.9rem}.notice{padding:1rem;border-radius:.5rem;background:#f0f4f8}
.ok{background:#e3f9e5}.warn{background:#fffbea}.actions a,.actions button{margin-right:1rem}
textarea,input[type=text]{width:100%;box-sizing:border-box}img{max-width:100%}
</style>
</head>
<body>
<header class="muted"><a href="/blog">{{.Site}}</a></header>
<main>{{template "content" .}}</main>
</body>
</html>`

type pageData struct {
	Title       string
	Site        string
	Description string
	Indexable   bool
}

func page(content string) *template.Template {
	t := template.Must(template.New("content").Funcs(template.FuncMap{
		"date": func(t *time.Time) string {
			if t == nil {
				return ""
			}
			return t.UTC().Format("Mon, 02 Jan 2006 15:04 MST")
		},
	}).Parse(content))
	template.Must(t.New("layout").Parse(layoutHTML))
	return t.Lookup("layout")
}

var outcomeTmpl = page(`<h1>{{.Heading}}</h1>
<div class="notice {{.Class}}"><p>{{.Message}}</p>
{{if .Scheduled}}<p>Scheduled for <strong>{{.Scheduled}}</strong>.</p>{{end}}</div>
{{with .Post}}<p class="muted">&ldquo;{{.Title}}&rdquo; is currently {{.Status}}.</p>{{end}}`)

type outcomeData struct {
	pageData
	Heading   string
	Message   string
	Class     string
	Scheduled string
	Post      *models.BlogPost
}

func outcomePage(d outcomeData) templ.Component {
	return templ.FromGoHTML(outcomeTmpl, d)
}

var previewTmpl = page(`{{with .Post}}<p class="muted">Status: {{.Status}}{{if .ScheduledFor}} &middot; scheduled {{date .ScheduledFor}}{{end}}</p>
<h1>{{.Title}}</h1>
<p><em>{{.Excerpt}}</em></p>
{{if .CoverImageURL}}<figure><img src="{{.CoverImageURL}}" alt=""><figcaption class="muted">{{.CoverImageCredit}}</figcaption></figure>{{end}}{{end}}
<article>{{.Body}}</article>
{{if .Post.SourceURLs}}<h3>Sources</h3><ul>{{range .Post.SourceURLs}}<li><a href="{{.}}" rel="nofollow noopener">{{.}}</a></li>{{end}}</ul>{{end}}
{{if .Pending}}<hr>
<p class="actions"><a href="{{.Links.Approve}}">Approve</a> <a href="{{.Links.Edit}}">Edit</a></p>
<form method="post" action="{{.Links.Reject}}">
<label for="reason">Reason for rejection (optional)</label>
<textarea id="reason" name="reason" rows="4" maxlength="2000"></textarea>
<button type="submit">Reject</button>
</form>{{else}}<div class="notice warn"><p>This draft has already been processed.</p></div>{{end}}`)

type previewData struct {
	pageData
	Post    *models.BlogPost
	Body    template.HTML
	Links   notify.ApprovalLinks
	Pending bool
}

func previewPage(d previewData) templ.Component {
	return templ.FromGoHTML(previewTmpl, d)
}

var blogIndexTmpl = page(`<h1>{{.Site}}</h1>
{{if .Description}}<p class="muted">{{.Description}}</p>{{end}}
{{range .Posts}}<article>
<h2><a href="/blog/{{.Slug}}">{{.Title}}</a></h2>
<p class="muted">{{date .PublishedAt}}{{with .Category}} &middot; {{.Name}}{{end}}</p>
<p>{{.Excerpt}}</p>
</article>{{else}}<p>No posts yet.</p>{{end}}`)

type blogIndexData struct {
	pageData
	Posts []*models.BlogPost
}

func blogIndexPage(d blogIndexData) templ.Component {
	return templ.FromGoHTML(blogIndexTmpl, d)
}

var blogPostTmpl = page(`{{with .Post}}<article>
<h1>{{.Title}}</h1>
<p class="muted">{{date .PublishedAt}}{{with .Category}} &middot; {{.Name}}{{end}}</p>
{{if .CoverImageURL}}<figure><img src="{{.CoverImageURL}}" alt="{{.Title}}"><figcaption class="muted">{{.CoverImageCredit}}</figcaption></figure>{{end}}{{end}}
{{.Body}}
{{if .Post.Tags}}<p class="muted">Tags: {{range $i, $t := .Post.Tags}}{{if $i}}, {{end}}{{$t.Name}}{{end}}</p>{{end}}
</article>`)

type blogPostData struct {
	pageData
	Post *models.BlogPost
	Body template.HTML
}

func blogPostPage(d blogPostData) templ.Component {
	return templ.FromGoHTML(blogPostTmpl, d)
}

var loginTmpl = page(`<h1>Admin login</h1>
{{if .Failed}}<div class="notice warn"><p>Wrong password.</p></div>{{end}}
<form method="post" action="/admin/login">
<input type="hidden" name="next" value="{{.Next}}">
<label for="password">Password</label>
<input id="password" type="password" name="password" autocomplete="current-password" required>
<button type="submit">Log in</button>
</form>`)

type loginData struct {
	pageData
	Failed bool
	Next   string
}

func loginPage(d loginData) templ.Component {
	return templ.FromGoHTML(loginTmpl, d)
}

var editTmpl = page(`<h1>Edit post #{{.Post.ID}}</h1>
<p class="muted">/blog/{{.Post.Slug}} &middot; {{.Post.Status}}</p>
{{if .Message}}<div class="notice ok"><p>{{.Message}}</p></div>{{end}}
{{range .Errors}}<div class="notice warn"><p>{{.}}</p></div>{{end}}
<form method="post" action="/admin/posts/{{.Post.ID}}/edit">
<input type="hidden" name="_csrf" value="{{.CSRF}}">
<p><label>Title<input type="text" name="title" value="{{.Post.Title}}"></label></p>
<p><label>Excerpt<textarea name="excerpt" rows="3">{{.Post.Excerpt}}</textarea></label></p>
<p><label>Content (Markdown)<textarea name="content" rows="24">{{.Post.Content}}</textarea></label></p>
<p><label>Meta title<input type="text" name="meta_title" value="{{.Post.MetaTitle}}"></label></p>
<p><label>Meta description<input type="text" name="meta_description" value="{{.Post.MetaDescription}}"></label></p>
<button type="submit">Save</button>
</form>`)

type editData struct {
	pageData
	Post    *models.BlogPost
	CSRF    string
	Message string
	Errors  []string
}

func editPage(d editData) templ.Component {
	return templ.FromGoHTML(editTmpl, d)
}

var notFoundTmpl = page(`<h1>Not found</h1><p>The page you were looking for does not exist.</p>`)

func notFoundPage(site string) templ.Component {
	return templ.FromGoHTML(notFoundTmpl, pageData{Title: "Not found", Site: site})
}

var errorTmpl = page(`<h1>Something went wrong</h1><p>Please try again later.</p>`)

func errorPage(site string) templ.Component {
	return templ.FromGoHTML(errorTmpl, pageData{Title: "Error", Site: site})
}
