package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	AI         AIConfig         `mapstructure:"ai"`
	Anthropic  AnthropicConfig  `mapstructure:"anthropic"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Validation ValidationConfig `mapstructure:"validation"`
	Approval   ApprovalConfig   `mapstructure:"approval"`
	Email      EmailConfig      `mapstructure:"email"`
	Server     ServerConfig     `mapstructure:"server"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Publishing PublishingConfig `mapstructure:"publishing"`
	Blog       BlogConfig       `mapstructure:"blog"`
	Tracker    TrackerConfig    `mapstructure:"tracker"`
	Media      MediaConfig      `mapstructure:"media"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite or postgres
	DSN    string `mapstructure:"dsn"`    // Connection string
}

// AIConfig selects the text-generation provider
type AIConfig struct {
	Provider string `mapstructure:"provider"` // anthropic or openai
}

// AnthropicConfig holds Claude API settings
type AnthropicConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// OpenAIConfig holds OpenAI-compatible chat completion settings
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// PipelineConfig holds fetch, scoring and selection settings
type PipelineConfig struct {
	WindowDays        int      `mapstructure:"window_days"`
	MaxArticles       int      `mapstructure:"max_articles"`
	PreferTrending    bool     `mapstructure:"prefer_trending"`
	TopTopics         int      `mapstructure:"top_topics"`
	MinFrequency      int      `mapstructure:"min_frequency"`
	ExtraStopWords    []string `mapstructure:"extra_stop_words"`
	DefaultGuidelines string   `mapstructure:"default_guidelines"`
}

// ValidationConfig holds draft validation thresholds
type ValidationConfig struct {
	TitleMax           int `mapstructure:"title_max"`
	ExcerptMax         int `mapstructure:"excerpt_max"`
	ContentMin         int `mapstructure:"content_min"`
	MetaTitleMax       int `mapstructure:"meta_title_max"`
	MetaDescriptionMax int `mapstructure:"meta_description_max"`
	KeywordsMin        int `mapstructure:"keywords_min"`
}

// ApprovalConfig holds approval workflow settings
type ApprovalConfig struct {
	BaseURL        string   `mapstructure:"base_url"`        // Public site URL used in email links
	ReviewerEmail  string   `mapstructure:"reviewer_email"`  // Single operator address
	ApprovedBy     string   `mapstructure:"approved_by"`     // Recorded on approval
	PublishDays    []string `mapstructure:"publish_days"`    // Weekday names
	PublishHour    int      `mapstructure:"publish_hour"`    // Local hour, 0-23
	UTCOffsetHours int      `mapstructure:"utc_offset_hours"` // Fixed offset of the publish zone
	AdminEditPath  string   `mapstructure:"admin_edit_path"` // fmt pattern taking the post ID
}

// EmailConfig holds transactional email settings
type EmailConfig struct {
	Provider string `mapstructure:"provider"` // resend or log
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
	From     string `mapstructure:"from"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port          string `mapstructure:"port"`
	CronSecret    string `mapstructure:"cron_secret"`
	AdminPassword string `mapstructure:"admin_password"`
	SessionSecret string `mapstructure:"session_secret"`
	CookieSecure  bool   `mapstructure:"cookie_secure"`
}

// SchedulerConfig holds the in-process cron settings
type SchedulerConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	FetchCron        string `mapstructure:"fetch_cron"`
	GenerateCron     string `mapstructure:"generate_cron"`
	SendApprovalCron string `mapstructure:"send_approval_cron"`
	PublishCron      string `mapstructure:"publish_cron"`
}

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	AIRequestsPerMinute    int `mapstructure:"ai_requests_per_minute"`
	SourceRequestsPerHour  int `mapstructure:"source_requests_per_hour"`
	EmailRequestsPerMinute int `mapstructure:"email_requests_per_minute"`
	LoginAttemptsPerHour   int `mapstructure:"login_attempts_per_hour"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or console
	Output string `mapstructure:"output"` // stdout or file path
}

// PublishingConfig holds publish sweep settings
type PublishingConfig struct {
	DraftLookahead time.Duration `mapstructure:"draft_lookahead"`
}

// BlogConfig holds public blog settings
type BlogConfig struct {
	Name            string `mapstructure:"name"`
	Description     string `mapstructure:"description"`
	DefaultCategory string `mapstructure:"default_category"`
	MaxTags         int    `mapstructure:"max_tags"`
}

// TrackerConfig holds Google Sheets tracker settings
type TrackerConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	SpreadsheetID      string `mapstructure:"spreadsheet_id"`
	SheetName          string `mapstructure:"sheet_name"`
	CredentialsFile    string `mapstructure:"credentials_file"`
	ServiceAccountJSON string `mapstructure:"service_account_json"`
}

// MediaConfig holds cover image settings
type MediaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	UnsplashAPIKey string `mapstructure:"unsplash_api_key"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Load .env file if present (ignore errors if not found)
	_ = godotenv.Load()
	_ = godotenv.Load(".env.local")

	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".content-pipeline"))
		}
	}

	v.SetEnvPrefix("PIPELINE")
	v.AutomaticEnv()

	// Explicit bindings for nested keys (Viper doesn't auto-bind underscored nested keys)
	v.BindEnv("database.driver", "PIPELINE_DATABASE_DRIVER")
	v.BindEnv("database.dsn", "PIPELINE_DATABASE_DSN")
	v.BindEnv("ai.provider", "PIPELINE_AI_PROVIDER")
	v.BindEnv("anthropic.api_key", "PIPELINE_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	v.BindEnv("openai.api_key", "PIPELINE_OPENAI_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("email.api_key", "PIPELINE_EMAIL_API_KEY")
	v.BindEnv("email.from", "PIPELINE_EMAIL_FROM")
	v.BindEnv("approval.base_url", "PIPELINE_APPROVAL_BASE_URL")
	v.BindEnv("approval.reviewer_email", "PIPELINE_APPROVAL_REVIEWER_EMAIL")
	v.BindEnv("server.port", "PIPELINE_SERVER_PORT", "PORT")
	v.BindEnv("server.cron_secret", "PIPELINE_SERVER_CRON_SECRET", "CRON_SECRET")
	v.BindEnv("server.admin_password", "PIPELINE_SERVER_ADMIN_PASSWORD")
	v.BindEnv("server.session_secret", "PIPELINE_SERVER_SESSION_SECRET")
	v.BindEnv("tracker.enabled", "PIPELINE_TRACKER_ENABLED")
	v.BindEnv("tracker.spreadsheet_id", "PIPELINE_TRACKER_SPREADSHEET_ID")
	v.BindEnv("tracker.service_account_json", "PIPELINE_TRACKER_SERVICE_ACCOUNT_JSON")
	v.BindEnv("media.enabled", "PIPELINE_MEDIA_ENABLED")
	v.BindEnv("media.unsplash_api_key", "PIPELINE_MEDIA_UNSPLASH_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/pipeline.db")

	v.SetDefault("ai.provider", "anthropic")

	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("anthropic.temperature", 0.7)

	v.SetDefault("openai.model", "gpt-4o")

	v.SetDefault("pipeline.window_days", 7)
	v.SetDefault("pipeline.max_articles", 5)
	v.SetDefault("pipeline.prefer_trending", true)
	v.SetDefault("pipeline.top_topics", 3)
	v.SetDefault("pipeline.min_frequency", 2)
	v.SetDefault("pipeline.default_guidelines", "Write for IT decision makers at small and mid-sized companies. "+
		"Be practical and vendor neutral, explain the business impact of each development, "+
		"and finish with concrete next steps the reader can take.")

	v.SetDefault("validation.title_max", 70)
	v.SetDefault("validation.excerpt_max", 300)
	v.SetDefault("validation.content_min", 1500)
	v.SetDefault("validation.meta_title_max", 70)
	v.SetDefault("validation.meta_description_max", 160)
	v.SetDefault("validation.keywords_min", 1)

	v.SetDefault("approval.base_url", "http://localhost:10000")
	v.SetDefault("approval.approved_by", "email-approval")
	v.SetDefault("approval.publish_days", []string{"monday", "wednesday", "friday"})
	v.SetDefault("approval.publish_hour", 9)
	v.SetDefault("approval.utc_offset_hours", 0)
	v.SetDefault("approval.admin_edit_path", "/admin/posts/%d/edit")

	v.SetDefault("email.provider", "log")
	v.SetDefault("email.base_url", "https://api.resend.com")
	v.SetDefault("email.from", "Blog Pipeline <blog@localhost>")

	v.SetDefault("server.port", "10000")
	v.SetDefault("server.cookie_secure", false)

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.fetch_cron", "0 6 * * *")
	v.SetDefault("scheduler.generate_cron", "30 6 * * 1,3,5")
	v.SetDefault("scheduler.send_approval_cron", "0 */2 * * *")
	v.SetDefault("scheduler.publish_cron", "*/15 * * * *")

	v.SetDefault("rate_limit.ai_requests_per_minute", 10)
	v.SetDefault("rate_limit.source_requests_per_hour", 3600)
	v.SetDefault("rate_limit.email_requests_per_minute", 60)
	v.SetDefault("rate_limit.login_attempts_per_hour", 10)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("publishing.draft_lookahead", "0s")

	v.SetDefault("blog.name", "Insights")
	v.SetDefault("blog.description", "Notes on infrastructure, security and software delivery")
	v.SetDefault("blog.default_category", "Technology")
	v.SetDefault("blog.max_tags", 5)

	v.SetDefault("tracker.enabled", false)
	v.SetDefault("tracker.sheet_name", "Blog Posts")

	v.SetDefault("media.enabled", false)
}

// Validate checks settings required by the pipeline (generation + approval)
func (c *Config) Validate() error {
	switch c.AI.Provider {
	case "anthropic":
		if c.Anthropic.APIKey == "" {
			return fmt.Errorf("anthropic.api_key is required")
		}
	case "openai":
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("openai.api_key is required")
		}
	default:
		return fmt.Errorf("unknown ai.provider %q", c.AI.Provider)
	}
	if c.Approval.ReviewerEmail == "" {
		return fmt.Errorf("approval.reviewer_email is required")
	}
	if c.Approval.PublishHour < 0 || c.Approval.PublishHour > 23 {
		return fmt.Errorf("approval.publish_hour must be between 0 and 23")
	}
	if c.Email.Provider == "resend" && c.Email.APIKey == "" {
		return fmt.Errorf("email.api_key is required for the resend provider")
	}
	return nil
}

// ValidateServer checks settings required by the HTTP server
func (c *Config) ValidateServer() error {
	if c.Server.SessionSecret == "" || len(c.Server.SessionSecret) < 32 {
		return fmt.Errorf("server.session_secret must be at least 32 characters")
	}
	if c.Server.CronSecret == "" {
		return fmt.Errorf("server.cron_secret is required")
	}
	if c.Server.AdminPassword == "" {
		return fmt.Errorf("server.admin_password is required")
	}
	return nil
}
