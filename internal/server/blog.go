package server

import (
	"encoding/xml"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/content-pipeline/internal/models"
	"github.com/content-pipeline/internal/storage"
)

const feedSize = 20

func (s *Server) handleBlogIndex(c echo.Context) error {
	posts, err := s.repo.ListPosts(c.Request().Context(), storage.PublishedPostFilter(50))
	if err != nil {
		return err
	}

	d := blogIndexData{pageData: s.site(), Posts: posts}
	d.Title = "Blog"
	d.Description = s.cfg.Blog.Description
	d.Indexable = true
	return Render(c, blogIndexPage(d))
}

func (s *Server) handleBlogPost(c echo.Context) error {
	post, err := s.repo.GetPostBySlug(c.Request().Context(), c.Param("slug"))
	if errors.Is(err, storage.ErrNotFound) || (err == nil && !post.IsPublic()) {
		return RenderStatus(c, http.StatusNotFound, notFoundPage(s.cfg.Blog.Name))
	}
	if err != nil {
		return err
	}

	body, err := s.renderer.HTML(post.Content)
	if err != nil {
		return err
	}

	d := blogPostData{pageData: s.site(), Post: post, Body: safeHTML(body)}
	d.Title = post.MetaTitle
	if d.Title == "" {
		d.Title = post.Title
	}
	d.Description = post.MetaDescription
	d.Indexable = true
	return Render(c, blogPostPage(d))
}

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Description string   `xml:"description"`
	PubDate     string   `xml:"pubDate,omitempty"`
	GUID        string   `xml:"guid"`
	Categories  []string `xml:"category"`
}

func (s *Server) handleFeed(c echo.Context) error {
	posts, err := s.repo.ListPosts(c.Request().Context(), storage.PublishedPostFilter(feedSize))
	if err != nil {
		return err
	}
	return s.renderRSS(c, posts)
}

func (s *Server) renderRSS(c echo.Context, posts []*models.BlogPost) error {
	base := strings.TrimRight(s.cfg.Approval.BaseURL, "/")
	items := make([]rssItem, 0, len(posts))
	var lastBuild string

	for _, p := range posts {
		link := base + "/blog/" + p.Slug
		item := rssItem{
			Title:       p.Title,
			Link:        link,
			Description: p.Excerpt,
			GUID:        link,
		}
		if p.PublishedAt != nil {
			item.PubDate = p.PublishedAt.UTC().Format(time.RFC1123Z)
			if lastBuild == "" {
				lastBuild = item.PubDate
			}
		}
		if p.Category != nil {
			item.Categories = append(item.Categories, p.Category.Name)
		}
		items = append(items, item)
	}

	feed := rssXML{
		Version: "2.0",
		Channel: rssChannel{
			Title:         s.cfg.Blog.Name,
			Link:          base + "/blog",
			Description:   s.cfg.Blog.Description,
			LastBuildDate: lastBuild,
			Items:         items,
		},
	}

	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	if _, err := c.Response().Write([]byte(xml.Header)); err != nil {
		return err
	}
	return xml.NewEncoder(c.Response()).Encode(feed)
}

// formatSlot shows a publish time in the configured publishing zone
func (s *Server) formatSlot(t time.Time) string {
	offset := s.cfg.Approval.UTCOffsetHours
	zone := time.FixedZone(fmt.Sprintf("UTC%+d", offset), offset*3600)
	return t.In(zone).Format("Monday, 2 January 2006 at 15:04 MST")
}

// safeHTML marks renderer output, which is already sanitized, as trusted markup
func safeHTML(s string) template.HTML {
	return template.HTML(s)
}
