package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 7, cfg.Pipeline.WindowDays)
	assert.Equal(t, 5, cfg.Pipeline.MaxArticles)
	assert.Equal(t, 3, cfg.Pipeline.TopTopics)
	assert.Equal(t, []string{"monday", "wednesday", "friday"}, cfg.Approval.PublishDays)
	assert.Equal(t, 9, cfg.Approval.PublishHour)
	assert.Equal(t, 70, cfg.Validation.TitleMax)
	assert.Equal(t, time.Duration(0), cfg.Publishing.DraftLookahead)
}

func TestLoad_FileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
pipeline:
  window_days: 3
  max_articles: 8
approval:
  publish_hour: 7
  reviewer_email: editor@example.com
publishing:
  draft_lookahead: 24h
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Pipeline.WindowDays)
	assert.Equal(t, 8, cfg.Pipeline.MaxArticles)
	assert.Equal(t, 7, cfg.Approval.PublishHour)
	assert.Equal(t, "editor@example.com", cfg.Approval.ReviewerEmail)
	assert.Equal(t, 24*time.Hour, cfg.Publishing.DraftLookahead)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			AI:        AIConfig{Provider: "anthropic"},
			Anthropic: AnthropicConfig{APIKey: "key"},
			Approval:  ApprovalConfig{ReviewerEmail: "editor@example.com", PublishHour: 9},
			Email:     EmailConfig{Provider: "log"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing anthropic key", mutate: func(c *Config) { c.Anthropic.APIKey = "" }, wantErr: true},
		{name: "openai without key", mutate: func(c *Config) { c.AI.Provider = "openai" }, wantErr: true},
		{name: "unknown provider", mutate: func(c *Config) { c.AI.Provider = "other" }, wantErr: true},
		{name: "missing reviewer", mutate: func(c *Config) { c.Approval.ReviewerEmail = "" }, wantErr: true},
		{name: "bad hour", mutate: func(c *Config) { c.Approval.PublishHour = 24 }, wantErr: true},
		{name: "resend without key", mutate: func(c *Config) { c.Email.Provider = "resend" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
