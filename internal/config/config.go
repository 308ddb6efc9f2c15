package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/MimeLyc/react-agent/pkg/log"
)

// Config holds all application configuration.
//
// Values are layered: built-in defaults, then the optional YAML file, then
// a .env file in the working directory, then the process environment, then
// Options.
//
// Environment Variables:
// LLM Configuration:
// - LLM_API_KEY: API key for the LLM provider, falls back to OPENAI_API_KEY (required)
// - LLM_API_URL: API endpoint URL (default: https://api.openai.com/v1)
// - LLM_MODEL: Model name to use (default: gpt-3.5-turbo)
// - LLM_MAX_TOKENS: Maximum tokens for responses (default: 1000)
// - LLM_TEMPERATURE: Temperature for responses (default: 0.7)
// - LLM_TIMEOUT: Request timeout in seconds (default: 30)
// - LLM_SITE_URL: Site URL for HTTP referer header (optional)
// - LLM_APP_NAME: Application name for X-Title header (optional)
//
// Agent Configuration:
// - AGENT_MAX_LOOPS: Tool cycles before giving up (default: 10)
// - AGENT_STOP_SEQUENCES: Comma separated stop sequences, "\n" is unescaped (default: none)
// - AGENT_MAX_TRANSCRIPT_CHARS: Prompt transcript budget, 0 is unbounded (default: 0)
//
// Tool Configuration:
// - HN_API_URL, HN_CRAWL_URLS, HN_MAX_RESULTS (5), HN_EXCERPT_LINES (2000),
//   HN_CACHE_SIZE (128), HN_REQUESTS_PER_SECOND (10)
// - SEARCH_API_KEY: Tavily API key, enables the web search tool
// - SEARCH_API_URL: Tavily API URL (default: https://api.tavily.com/search)
// - TOOL_MAX_RETRIES: Retries per tool call (default: 0)
//
// System Configuration:
// - DATA_DIR: Directory of the run history database, empty disables history
// - HTTP_ADDR: Listen address of the HTTP API (default: :8080)
// - SCHEDULE_CRON, SCHEDULE_QUESTION: Scheduled question
// - LOG_LEVEL: debug, info, warn or error (default: info)
// - LOG_FILE: Append logs to this file instead of stderr (optional)
type Config struct {
	// LLM Configuration
	LLM LLMConfig `json:"llm" yaml:"llm"`

	// Agent Configuration
	Agent AgentConfig `json:"agent" yaml:"agent"`

	// Hacker News tool Configuration
	HackerNews HackerNewsConfig `json:"hacker_news" yaml:"hacker_news"`

	// Search Configuration (for web search tool)
	Search SearchConfig `json:"search" yaml:"search"`

	Tools ToolsConfig `json:"tools" yaml:"tools"`

	// System Configuration
	System SystemConfig `json:"system" yaml:"system"`

	HTTP HTTPConfig `json:"http" yaml:"http"`

	Schedule ScheduleConfig `json:"schedule" yaml:"schedule"`

	Log LogConfig `json:"log" yaml:"log"`

	requireLLMKey bool
}

// LLMConfig holds the configuration for LLM client
// Supports any OpenAI compatible provider
type LLMConfig struct {
	APIKey      string  `json:"api_key" yaml:"api_key"`
	APIURL      string  `json:"api_url" yaml:"api_url"`
	Model       string  `json:"model" yaml:"model"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	Timeout     int     `json:"timeout" yaml:"timeout"`
	SiteURL     string  `json:"site_url" yaml:"site_url"`
	AppName     string  `json:"app_name" yaml:"app_name"`
}

// AgentConfig holds the configuration for the agent loop
type AgentConfig struct {
	MaxLoops           int      `json:"max_loops" yaml:"max_loops"`
	StopSequences      []string `json:"stop_sequences" yaml:"stop_sequences"`
	MaxTranscriptChars int      `json:"max_transcript_chars" yaml:"max_transcript_chars"`
}

// HackerNewsConfig holds the configuration for the Hacker News search tool
type HackerNewsConfig struct {
	APIURL            string  `json:"api_url" yaml:"api_url"`
	CrawlURLs         bool    `json:"crawl_urls" yaml:"crawl_urls"`
	MaxResults        int     `json:"max_results" yaml:"max_results"`
	ExcerptLines      int     `json:"excerpt_lines" yaml:"excerpt_lines"`
	CacheSize         int     `json:"cache_size" yaml:"cache_size"`
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
}

// SearchConfig holds the configuration for web search tool
type SearchConfig struct {
	APIKey string `json:"api_key" yaml:"api_key"` // Tavily API key
	APIURL string `json:"api_url" yaml:"api_url"` // Tavily API URL
}

type ToolsConfig struct {
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// SystemConfig holds the system configuration
type SystemConfig struct {
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

type HTTPConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

type ScheduleConfig struct {
	CronExpr string `json:"cron_expr" yaml:"cron_expr"`
	Question string `json:"question" yaml:"question"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level"`
	File  string `json:"file" yaml:"file"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// WithoutLLMKey skips the API key check, for commands that never call the model.
func WithoutLLMKey() Option {
	return func(c *Config) {
		c.requireLLMKey = false
	}
}

// WithMaxLoops overrides the loop budget when n is positive.
func WithMaxLoops(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Agent.MaxLoops = n
		}
	}
}

// WithDataDir overrides the history directory.
func WithDataDir(dir string) Option {
	return func(c *Config) {
		c.System.DataDir = dir
	}
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		LLM: LLMConfig{
			APIURL:      "https://api.openai.com/v1",
			Model:       "gpt-3.5-turbo",
			MaxTokens:   1000,
			Temperature: 0.7,
			Timeout:     30,
		},
		Agent: AgentConfig{
			MaxLoops: 10,
		},
		HackerNews: HackerNewsConfig{
			APIURL:            "https://hn.algolia.com/api/v1/search_by_date",
			MaxResults:        5,
			ExcerptLines:      2000,
			CacheSize:         128,
			RequestsPerSecond: 10,
		},
		Search: SearchConfig{
			APIURL: "https://api.tavily.com/search",
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level: "info",
		},
		requireLLMKey: true,
	}
}

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	return Load("", opts...)
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty), .env, the environment and opts.
func Load(path string, opts ...Option) (*Config, error) {
	config := Defaults()

	if path != "" {
		if err := readFileInto(path, config); err != nil {
			return nil, err
		}
	}

	// .env never overrides variables already set in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("Failed to load .env file: %v", err)
	}

	config.applyEnv()

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Debug("Config loaded: model=%s max_loops=%d data_dir=%q", config.LLM.Model, config.Agent.MaxLoops, config.System.DataDir)
	return config, nil
}

func (c *Config) applyEnv() {
	c.LLM.APIKey = getEnvString("LLM_API_KEY", getEnvString("OPENAI_API_KEY", c.LLM.APIKey))
	c.LLM.APIURL = getEnvString("LLM_API_URL", c.LLM.APIURL)
	c.LLM.Model = getEnvString("LLM_MODEL", c.LLM.Model)
	c.LLM.MaxTokens = getEnvInt("LLM_MAX_TOKENS", c.LLM.MaxTokens)
	c.LLM.Temperature = getEnvFloat("LLM_TEMPERATURE", c.LLM.Temperature)
	c.LLM.Timeout = getEnvInt("LLM_TIMEOUT", c.LLM.Timeout)
	c.LLM.SiteURL = getEnvString("LLM_SITE_URL", c.LLM.SiteURL)
	c.LLM.AppName = getEnvString("LLM_APP_NAME", c.LLM.AppName)

	c.Agent.MaxLoops = getEnvInt("AGENT_MAX_LOOPS", c.Agent.MaxLoops)
	c.Agent.StopSequences = getEnvList("AGENT_STOP_SEQUENCES", c.Agent.StopSequences)
	c.Agent.MaxTranscriptChars = getEnvInt("AGENT_MAX_TRANSCRIPT_CHARS", c.Agent.MaxTranscriptChars)

	c.HackerNews.APIURL = getEnvString("HN_API_URL", c.HackerNews.APIURL)
	c.HackerNews.CrawlURLs = getEnvBool("HN_CRAWL_URLS", c.HackerNews.CrawlURLs)
	c.HackerNews.MaxResults = getEnvInt("HN_MAX_RESULTS", c.HackerNews.MaxResults)
	c.HackerNews.ExcerptLines = getEnvInt("HN_EXCERPT_LINES", c.HackerNews.ExcerptLines)
	c.HackerNews.CacheSize = getEnvInt("HN_CACHE_SIZE", c.HackerNews.CacheSize)
	c.HackerNews.RequestsPerSecond = getEnvFloat("HN_REQUESTS_PER_SECOND", c.HackerNews.RequestsPerSecond)

	c.Search.APIKey = getEnvString("SEARCH_API_KEY", c.Search.APIKey)
	c.Search.APIURL = getEnvString("SEARCH_API_URL", c.Search.APIURL)
	c.Tools.MaxRetries = getEnvInt("TOOL_MAX_RETRIES", c.Tools.MaxRetries)

	c.System.DataDir = getEnvString("DATA_DIR", c.System.DataDir)
	c.HTTP.Addr = getEnvString("HTTP_ADDR", c.HTTP.Addr)
	c.Schedule.CronExpr = getEnvString("SCHEDULE_CRON", c.Schedule.CronExpr)
	c.Schedule.Question = getEnvString("SCHEDULE_QUESTION", c.Schedule.Question)
	c.Log.Level = getEnvString("LOG_LEVEL", c.Log.Level)
	c.Log.File = getEnvString("LOG_FILE", c.Log.File)
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.requireLLMKey && c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	if c.Agent.MaxLoops < 1 {
		return fmt.Errorf("agent max loops must be greater than 0, got %d", c.Agent.MaxLoops)
	}
	if c.Agent.MaxTranscriptChars < 0 {
		return fmt.Errorf("agent max transcript chars must not be negative")
	}
	if c.Tools.MaxRetries < 0 {
		return fmt.Errorf("tool max retries must not be negative")
	}
	if c.Schedule.CronExpr != "" {
		if _, err := cron.ParseStandard(c.Schedule.CronExpr); err != nil {
			return fmt.Errorf("invalid SCHEDULE_CRON: %w", err)
		}
	}
	return nil
}

// HistoryEnabled reports whether runs are recorded.
func (c *Config) HistoryEnabled() bool {
	return c.System.DataDir != ""
}

// DBPath returns the run history database path, or "" when history is disabled.
func (c *Config) DBPath() string {
	if !c.HistoryEnabled() {
		return ""
	}
	return filepath.Join(c.System.DataDir, "react-agent.db")
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Warn("Ignoring invalid integer %s=%q", key, value)
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
		log.Warn("Ignoring invalid number %s=%q", key, value)
	}
	return defaultValue
}

// getEnvBool gets a boolean value from environment variables with default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
		log.Warn("Ignoring invalid boolean %s=%q", key, value)
	}
	return defaultValue
}

// getEnvList splits a comma separated value. A literal \n in an item
// becomes a newline so stop sequences can be written on one line.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	items := make([]string, 0)
	for _, item := range strings.Split(value, ",") {
		item = strings.ReplaceAll(item, `\n`, "\n")
		if strings.TrimSpace(item) == "" {
			continue
		}
		items = append(items, item)
	}
	return items
}
