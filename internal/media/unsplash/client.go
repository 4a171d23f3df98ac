package unsplash

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/content-pipeline/pkg/logger"
	"github.com/content-pipeline/pkg/ratelimit"
)

const defaultBaseURL = "https://api.unsplash.com"

// ErrNoPhotos is returned when a search matches nothing
var ErrNoPhotos = errors.New("no photos found")

// Photo represents an Unsplash photo
type Photo struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	AltDesc     string `json:"alt_description"`
	URLs        URLs   `json:"urls"`
	User        User   `json:"user"`
	Links       Links  `json:"links"`
}

// URLs contains different size URLs for the photo
type URLs struct {
	Raw     string `json:"raw"`
	Full    string `json:"full"`
	Regular string `json:"regular"` // 1080px width, used as the post cover
	Small   string `json:"small"`
	Thumb   string `json:"thumb"`
}

// User represents the photographer
type User struct {
	Name     string `json:"name"`
	Username string `json:"username"`
}

// Links contains API links for the photo
type Links struct {
	HTML             string `json:"html"`
	DownloadLocation string `json:"download_location"` // Hit once per use to count the download
}

// SearchResult represents the API response for photo search
type SearchResult struct {
	Total      int     `json:"total"`
	TotalPages int     `json:"total_pages"`
	Results    []Photo `json:"results"`
}

// Client is the Unsplash API client
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *ratelimit.MultiLimiter
	pick       func(n int) int
	log        *logger.Logger
}

// NewClient creates a new Unsplash client. limiter may be nil.
func NewClient(apiKey string, limiter *ratelimit.MultiLimiter, log *logger.Logger) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: limiter,
		pick:    rand.Intn,
		log:     log.WithComponent("unsplash"),
	}
}

// SetBaseURL points the client at another API host
func (c *Client) SetBaseURL(u string) {
	c.baseURL = strings.TrimRight(u, "/")
}

// SearchPhotos searches for photos matching the query
func (c *Client) SearchPhotos(ctx context.Context, query string, perPage int) ([]Photo, error) {
	if perPage <= 0 {
		perPage = 5
	}
	if perPage > 30 {
		perPage = 30
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("per_page", fmt.Sprintf("%d", perPage))
	params.Set("orientation", "landscape")
	params.Set("content_filter", "high")

	var result SearchResult
	if err := c.get(ctx, c.baseURL+"/search/photos?"+params.Encode(), &result); err != nil {
		return nil, err
	}

	c.log.Debug().
		Str("query", query).
		Int("total", result.Total).
		Int("returned", len(result.Results)).
		Msg("Search completed")

	return result.Results, nil
}

// GetBestPhoto searches and returns a random photo from the top results for variety
func (c *Client) GetBestPhoto(ctx context.Context, query string) (*Photo, error) {
	photos, err := c.SearchPhotos(ctx, query, 10)
	if err != nil {
		return nil, err
	}
	if len(photos) == 0 {
		return nil, fmt.Errorf("%w for query: %s", ErrNoPhotos, query)
	}
	idx := c.pick(len(photos))
	c.log.Debug().
		Int("total_results", len(photos)).
		Int("selected_index", idx).
		Str("photo_id", photos[idx].ID).
		Msg("Selected photo from search results")
	return &photos[idx], nil
}

// FindCover picks a cover image for a post and returns its URL and credit line.
// The first two keywords form the query.
func (c *Client) FindCover(ctx context.Context, keywords []string) (string, string, error) {
	terms := make([]string, 0, 2)
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			terms = append(terms, k)
		}
		if len(terms) == 2 {
			break
		}
	}
	if len(terms) == 0 {
		return "", "", fmt.Errorf("%w: no keywords", ErrNoPhotos)
	}

	photo, err := c.GetBestPhoto(ctx, strings.Join(terms, " "))
	if err != nil {
		return "", "", err
	}

	imageURL := photo.URLs.Regular
	if imageURL == "" {
		imageURL = photo.URLs.Full
	}
	c.trackDownload(ctx, photo)

	c.log.Info().
		Str("photo_id", photo.ID).
		Str("photographer", photo.User.Name).
		Msg("Cover image selected")

	return imageURL, Attribution(photo), nil
}

// Attribution returns the credit line required by the Unsplash guidelines
func Attribution(photo *Photo) string {
	return fmt.Sprintf("Photo by %s on Unsplash", photo.User.Name)
}

// trackDownload hits the download endpoint. Failures only get logged.
func (c *Client) trackDownload(ctx context.Context, photo *Photo) {
	if photo.Links.DownloadLocation == "" {
		return
	}
	var ignored map[string]interface{}
	if err := c.get(ctx, photo.Links.DownloadLocation, &ignored); err != nil {
		c.log.Debug().Err(err).Str("photo_id", photo.ID).Msg("Download tracking failed")
	}
}

func (c *Client) get(ctx context.Context, endpoint string, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, ratelimit.LimiterUnsplash); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Client-ID "+c.apiKey)
	req.Header.Set("Accept-Version", "v1")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
