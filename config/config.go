package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the query orchestration system
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Content   ContentConfig   `mapstructure:"content"`
	Sources   SourcesConfig   `mapstructure:"sources"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LLMConfig contains the completion backend configuration.
// An empty provider disables AI-assisted routing and summarization;
// the orchestrator degrades to its deterministic fallbacks.
type LLMConfig struct {
	Provider   string        `mapstructure:"provider"` // openai, local_openai, or empty to disable
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Model      string        `mapstructure:"model"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

func (l LLMConfig) Validate() error {
	switch l.Provider {
	case "", "openai", "local_openai":
	default:
		return fmt.Errorf("llm.provider %q is not supported", l.Provider)
	}
	if l.Provider != "" && l.Model == "" {
		return fmt.Errorf("llm.model is required when llm.provider is set")
	}
	return nil
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	PeriodicLogs bool `mapstructure:"periodic_logs"`
}

// ContentConfig contains chunking and indexing settings
type ContentConfig struct {
	ChunkSize       int           `mapstructure:"chunk_size"`
	OverlapSize     int           `mapstructure:"overlap_size"`
	MaxFileSize     int64         `mapstructure:"max_file_size"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	RefreshSchedule string        `mapstructure:"refresh_schedule"` // cron expression, @hourly, @daily, or empty to disable
}

func (c ContentConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("content.chunk_size must be greater than zero")
	}
	if c.OverlapSize < 0 {
		return fmt.Errorf("content.overlap_size cannot be negative")
	}
	if c.OverlapSize >= c.ChunkSize {
		return fmt.Errorf("content.chunk_size (%d) must be greater than content.overlap_size (%d)", c.ChunkSize, c.OverlapSize)
	}
	return nil
}

// SourcesConfig contains per-connector configurations
type SourcesConfig struct {
	Jira       JiraConfig       `mapstructure:"jira"`
	GitHub     GitHubConfig     `mapstructure:"github"`
	API        APIConfig        `mapstructure:"api"`
	Filesystem FilesystemConfig `mapstructure:"filesystem"`
	Video      VideoConfig      `mapstructure:"video"`
	S3         S3Config         `mapstructure:"s3"`
	URL        URLConfig        `mapstructure:"url"`
}

// JiraConfig contains Jira connector settings
type JiraConfig struct {
	ServerURL string        `mapstructure:"server_url"`
	Email     string        `mapstructure:"email"`
	APIToken  string        `mapstructure:"api_token"`
	Projects  []string      `mapstructure:"projects"`
	MaxIssues int           `mapstructure:"max_issues"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// GitHubConfig contains GitHub connector settings
type GitHubConfig struct {
	Token         string        `mapstructure:"token"`
	Repos         []string      `mapstructure:"repos"`
	Organizations []string      `mapstructure:"organizations"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// APIConfig contains settings for the generic JSON endpoint connector
type APIConfig struct {
	Endpoints []string      `mapstructure:"endpoints"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// FilesystemConfig contains local file connector settings
type FilesystemConfig struct {
	Roots       []string `mapstructure:"roots"`
	Extensions  []string `mapstructure:"extensions"`
	ExcludeGlob []string `mapstructure:"exclude_glob"`
}

// VideoConfig contains video connector settings
type VideoConfig struct {
	YouTubeAPIKey string        `mapstructure:"youtube_api_key"`
	MaxResults    int64         `mapstructure:"max_results"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// S3Config contains object store connector settings
type S3Config struct {
	Bucket         string        `mapstructure:"bucket"`
	Region         string        `mapstructure:"region"`
	Prefixes       []string      `mapstructure:"prefixes"`
	MaxKeys        int32         `mapstructure:"max_keys"`
	TextExtensions []string      `mapstructure:"text_extensions"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// URLConfig contains web page connector settings
type URLConfig struct {
	UserAgent string        `mapstructure:"user_agent"`
	MaxChars  int           `mapstructure:"max_chars"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// Validate checks cross-section configuration invariants.
func (c *Config) Validate() error {
	if err := c.Content.Validate(); err != nil {
		return err
	}
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	return nil
}

// LoadConfig reads configuration from file and environment.
// When path is empty the usual locations are searched and a missing
// file is tolerated; defaults plus SOURCERER_* env vars still apply.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")

	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.default_timeout", 30*time.Second)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("content.chunk_size", 1000)
	v.SetDefault("content.overlap_size", 200)
	v.SetDefault("content.max_file_size", 10*1024*1024)
	v.SetDefault("content.refresh_interval", time.Hour)
	v.SetDefault("sources.jira.max_issues", 50)
	v.SetDefault("sources.jira.timeout", 30*time.Second)
	v.SetDefault("sources.github.timeout", 30*time.Second)
	v.SetDefault("sources.api.timeout", 15*time.Second)
	v.SetDefault("sources.filesystem.extensions", []string{".txt", ".md", ".go", ".py", ".js", ".json"})
	v.SetDefault("sources.filesystem.exclude_glob", []string{"**/node_modules/**", "**/.git/**", "**/vendor/**"})
	v.SetDefault("sources.video.max_results", 10)
	v.SetDefault("sources.video.timeout", 30*time.Second)
	v.SetDefault("sources.s3.region", "us-east-1")
	v.SetDefault("sources.s3.max_keys", 100)
	v.SetDefault("sources.s3.text_extensions", []string{".txt", ".md", ".csv", ".json", ".log"})
	v.SetDefault("sources.s3.timeout", 30*time.Second)
	v.SetDefault("sources.url.max_chars", 12000)
	v.SetDefault("sources.url.timeout", 30*time.Second)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		v.AddConfigPath(exeDir)
		v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("SOURCERER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
