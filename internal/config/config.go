package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	Chrome      ChromeConfig      `mapstructure:"chrome" yaml:"chrome"`
	Credentials CredentialsConfig `mapstructure:"credentials" yaml:"credentials"`
	Extractor   ExtractorConfig   `mapstructure:"extractor" yaml:"extractor"`
	Validation  ValidationConfig  `mapstructure:"validation" yaml:"validation"`
	Database    DatabaseConfig    `mapstructure:"database" yaml:"database"`
	Batch       BatchConfig       `mapstructure:"batch" yaml:"batch"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// TargetPolicy selects how a browser tab is chosen when none matches the
// configured origin.
type TargetPolicy string

const (
	// PolicyStrictOrigin fails the attempt when no tab matches the origin.
	PolicyStrictOrigin TargetPolicy = "strict"
	// PolicyAllowFallback falls back to the first non-internal tab.
	PolicyAllowFallback TargetPolicy = "fallback"
)

// ChromeConfig describes the already-running browser we attach to. The tool
// never launches or terminates the browser process itself.
type ChromeConfig struct {
	Host         string        `mapstructure:"host" yaml:"host"`
	Port         int           `mapstructure:"port" yaml:"port"`
	OriginMatch  string        `mapstructure:"origin_match" yaml:"origin_match"`
	TargetPolicy TargetPolicy  `mapstructure:"target_policy" yaml:"target_policy"`
	HTTPTimeout  time.Duration `mapstructure:"http_timeout" yaml:"http_timeout"`
}

// DebugURL returns the base URL of the remote debugging endpoint.
func (c ChromeConfig) DebugURL() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

// CredentialsConfig controls where session cookies are loaded from. When File
// is set it is the only location tried; otherwise CandidatePaths are probed in
// order and the first existing file wins.
type CredentialsConfig struct {
	File           string   `mapstructure:"file" yaml:"file"`
	CandidatePaths []string `mapstructure:"candidate_paths" yaml:"candidate_paths"`
}

// ExtractorConfig tunes the extraction protocol sequence.
type ExtractorConfig struct {
	// CookieLimit bounds how many credentials are injected per attempt.
	CookieLimit int `mapstructure:"cookie_limit" yaml:"cookie_limit"`
	// AuthCookieLimit is the (smaller) bound used by the auth probe.
	AuthCookieLimit int `mapstructure:"auth_cookie_limit" yaml:"auth_cookie_limit"`
	// CookieSettle is the fixed wait after cookie injection before navigating.
	CookieSettle time.Duration `mapstructure:"cookie_settle" yaml:"cookie_settle"`
	// RenderSettle is the fixed wait after navigation for client-side
	// rendering. There is no reliable render-complete signal for arbitrary
	// client-rendered pages, so a conservative fixed wait stands in for a
	// quiescence detector.
	RenderSettle     time.Duration `mapstructure:"render_settle" yaml:"render_settle"`
	AuthRenderSettle time.Duration `mapstructure:"auth_render_settle" yaml:"auth_render_settle"`
	// StepTimeout bounds each individual protocol wait.
	StepTimeout time.Duration `mapstructure:"step_timeout" yaml:"step_timeout"`
	// OverallBudget is the wall-clock ceiling for a full extraction attempt.
	OverallBudget time.Duration `mapstructure:"overall_budget" yaml:"overall_budget"`
	// AuthBudget is the ceiling for the auth-check-only sequence.
	AuthBudget time.Duration `mapstructure:"auth_budget" yaml:"auth_budget"`
	// QueueSize bounds the inbound message queue of a control channel.
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size"`
	// MaxMessageSize bounds a single inbound websocket frame.
	MaxMessageSize int64 `mapstructure:"max_message_size" yaml:"max_message_size"`
}

// ValidationConfig controls outbound identifier verification.
type ValidationConfig struct {
	Enabled       bool          `mapstructure:"enabled" yaml:"enabled"`
	StreamableAPI string        `mapstructure:"streamable_api" yaml:"streamable_api"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// DatabaseConfig holds the database connection details.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// BatchConfig drives batch processing over the pending rows in the store.
type BatchConfig struct {
	// RateLimit is the minimum delay between successive attempts.
	RateLimit time.Duration `mapstructure:"rate_limit" yaml:"rate_limit"`
	// ProgressFile is the checkpoint written between rows.
	ProgressFile string `mapstructure:"progress_file" yaml:"progress_file"`
	// CheckpointEvery controls how many rows pass between checkpoint writes.
	CheckpointEvery int `mapstructure:"checkpoint_every" yaml:"checkpoint_every"`
	// Limit caps how many rows one invocation processes; 0 means no cap.
	Limit int `mapstructure:"limit" yaml:"limit"`
	// Concurrency is the number of parallel attempts. Attempts against the
	// same browser tab are always serialized regardless of this value.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "vidprobe")
	v.SetDefault("logger.log_file", "vidprobe.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Chrome --
	v.SetDefault("chrome.host", "localhost")
	v.SetDefault("chrome.port", 9222)
	v.SetDefault("chrome.origin_match", "")
	v.SetDefault("chrome.target_policy", string(PolicyAllowFallback))
	v.SetDefault("chrome.http_timeout", "5s")

	// -- Credentials --
	v.SetDefault("credentials.file", "")
	v.SetDefault("credentials.candidate_paths", []string{
		"cookies.json",
		"../cookies.json",
		"~/.vidprobe/cookies.json",
	})

	// -- Extractor --
	v.SetDefault("extractor.cookie_limit", 15)
	v.SetDefault("extractor.auth_cookie_limit", 10)
	v.SetDefault("extractor.cookie_settle", "2s")
	v.SetDefault("extractor.render_settle", "15s")
	v.SetDefault("extractor.auth_render_settle", "5s")
	v.SetDefault("extractor.step_timeout", "10s")
	v.SetDefault("extractor.overall_budget", "45s")
	v.SetDefault("extractor.auth_budget", "30s")
	v.SetDefault("extractor.queue_size", 256)
	v.SetDefault("extractor.max_message_size", 32*1024*1024)

	// -- Validation --
	v.SetDefault("validation.enabled", true)
	v.SetDefault("validation.streamable_api", "https://api.streamable.com")
	v.SetDefault("validation.timeout", "5s")

	// -- Database --
	v.SetDefault("database.url", "")

	// -- Batch --
	v.SetDefault("batch.rate_limit", "2s")
	v.SetDefault("batch.progress_file", "extraction_logs/progress.json")
	v.SetDefault("batch.checkpoint_every", 5)
	v.SetDefault("batch.limit", 0)
	v.SetDefault("batch.concurrency", 1)
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with defaults only; fail loudly if it ever does.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewFromViper creates a configuration instance from a viper object.
func NewFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Chrome.Port <= 0 || c.Chrome.Port > 65535 {
		return fmt.Errorf("chrome.port must be a valid TCP port")
	}
	switch c.Chrome.TargetPolicy {
	case PolicyStrictOrigin, PolicyAllowFallback:
	default:
		return fmt.Errorf("chrome.target_policy must be %q or %q", PolicyStrictOrigin, PolicyAllowFallback)
	}
	if c.Extractor.CookieLimit <= 0 {
		return fmt.Errorf("extractor.cookie_limit must be a positive integer")
	}
	if c.Extractor.QueueSize <= 0 {
		return fmt.Errorf("extractor.queue_size must be a positive integer")
	}
	if c.Extractor.StepTimeout <= 0 || c.Extractor.OverallBudget <= 0 {
		return fmt.Errorf("extractor timeouts must be positive durations")
	}
	if c.Extractor.OverallBudget < c.Extractor.RenderSettle+c.Extractor.CookieSettle {
		return fmt.Errorf("extractor.overall_budget must cover the settle delays")
	}
	if c.Batch.Concurrency <= 0 {
		return fmt.Errorf("batch.concurrency must be a positive integer")
	}
	if c.Batch.CheckpointEvery <= 0 {
		return fmt.Errorf("batch.checkpoint_every must be a positive integer")
	}
	return nil
}
