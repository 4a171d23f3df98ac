package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/content-pipeline/internal/config"
	"github.com/content-pipeline/internal/models"
	"github.com/content-pipeline/pkg/logger"
)

func TestResendMailerSend(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "email_1"}`))
	}))
	defer srv.Close()

	m := NewResendMailer(config.EmailConfig{APIKey: "re_test", BaseURL: srv.URL, From: "blog@example.com"}, nil, logger.Nop())
	err := m.Send(context.Background(), Message{To: "editor@example.com", Subject: "Hi", HTML: "<p>x</p>", Text: "x"})
	require.NoError(t, err)

	assert.Equal(t, "blog@example.com", got.From)
	assert.Equal(t, []string{"editor@example.com"}, got.To)
	assert.Equal(t, "Hi", got.Subject)
}

func TestResendMailerAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message": "invalid from"}`))
	}))
	defer srv.Close()

	m := NewResendMailer(config.EmailConfig{APIKey: "re_test", BaseURL: srv.URL}, nil, logger.Nop())
	err := m.Send(context.Background(), Message{To: "editor@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}

func TestNewMailerProvider(t *testing.T) {
	m, err := New(config.EmailConfig{Provider: "log"}, nil, logger.Nop())
	require.NoError(t, err)
	assert.IsType(t, &LogMailer{}, m)

	_, err = New(config.EmailConfig{Provider: "resend"}, nil, logger.Nop())
	assert.Error(t, err)

	_, err = New(config.EmailConfig{Provider: "carrier-pigeon"}, nil, logger.Nop())
	assert.Error(t, err)
}

func TestApprovalMessage(t *testing.T) {
	post := &models.BlogPost{
		Title:      "Zero <Trust>",
		Excerpt:    "Why it matters",
		SourceURLs: models.StringSlice{"https://a.example/1"},
	}
	links := LinksFor("https://site.example/", "abc123")
	assert.Equal(t, "https://site.example/approval/abc123/approve", links.Approve)

	msg, err := ApprovalMessage(post, links, "editor@example.com")
	require.NoError(t, err)

	assert.Equal(t, "editor@example.com", msg.To)
	assert.Equal(t, "Blog draft for approval: Zero <Trust>", msg.Subject)
	assert.Contains(t, msg.HTML, "Zero &lt;Trust&gt;")
	for _, u := range []string{links.Preview, links.Approve, links.Reject, links.Edit} {
		assert.Contains(t, msg.HTML, u)
		assert.Contains(t, msg.Text, u)
	}
	assert.Contains(t, msg.Text, "https://a.example/1")
}
