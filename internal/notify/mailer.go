// Package notify sends transactional email.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/content-pipeline/internal/config"
	"github.com/content-pipeline/pkg/logger"
	"github.com/content-pipeline/pkg/ratelimit"
)

const defaultResendURL = "https://api.resend.com"

// Message is one outbound email
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer delivers email
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns the mailer for the configured provider
func New(cfg config.EmailConfig, limiter *ratelimit.MultiLimiter, log *logger.Logger) (Mailer, error) {
	switch cfg.Provider {
	case "", "log":
		return NewLogMailer(log), nil
	case "resend":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("email.api_key is required for the resend provider")
		}
		return NewResendMailer(cfg, limiter, log), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}

// ResendMailer sends email through the Resend HTTP API
type ResendMailer struct {
	apiKey      string
	baseURL     string
	from        string
	httpClient  *http.Client
	rateLimiter *ratelimit.MultiLimiter
	log         *logger.Logger
}

// NewResendMailer creates a new Resend client
func NewResendMailer(cfg config.EmailConfig, limiter *ratelimit.MultiLimiter, log *logger.Logger) *ResendMailer {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultResendURL
	}
	return &ResendMailer{
		apiKey:  cfg.APIKey,
		baseURL: base,
		from:    cfg.From,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		rateLimiter: limiter,
		log:         log.WithComponent("mailer"),
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

type sendResponse struct {
	ID string `json:"id"`
}

// Send posts the message to the /emails endpoint
func (m *ResendMailer) Send(ctx context.Context, msg Message) error {
	if m.rateLimiter != nil {
		if err := m.rateLimiter.Wait(ctx, ratelimit.LimiterEmail); err != nil {
			return fmt.Errorf("rate limit error: %w", err)
		}
	}

	payload, err := json.Marshal(sendRequest{
		From:    m.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return fmt.Errorf("failed to encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	m.log.Info().
		Str("email_id", result.ID).
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Msg("Email sent")

	return nil
}

// LogMailer only logs messages. Used in development.
type LogMailer struct {
	log *logger.Logger
}

// NewLogMailer creates a mailer that writes to the log
func NewLogMailer(log *logger.Logger) *LogMailer {
	return &LogMailer{log: log.WithComponent("mailer")}
}

// Send logs the message and its plain-text body
func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.log.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("text", msg.Text).
		Msg("Email (log provider)")
	return nil
}

var (
	_ Mailer = (*ResendMailer)(nil)
	_ Mailer = (*LogMailer)(nil)
)
