package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultConsoleMaxChars      = 2000
	defaultFileMaxChars         = 4000
	defaultMastodonMaxChars     = 500
	defaultTelegramMaxChars     = 4096
	defaultRequestTimeoutSecs   = 30
	defaultPollDelaySecs        = 0
	defaultIntervalSecs         = 300
	defaultPostMaxChars         = 500
	defaultGlobalSoftLimit      = 500
	defaultInputSamplePercent   = 0.3
	defaultSummarizeTimeoutSecs = 120
	defaultCacheDir             = "./cache"
	defaultNPAListLimit         = 50
)

// Config is the top-level YAML configuration tree for Luminis.
type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Crawler  CrawlerConfig  `yaml:"crawler"`
	Output   OutputConfig   `yaml:"output"`
	Mastodon MastodonConfig `yaml:"mastodon"`
	Telegram TelegramConfig `yaml:"telegram"`
	Run      RunConfig      `yaml:"run"`
}

// LLMConfig wires provider selection and credentials for the summarizer.
type LLMConfig struct {
	Provider          string `yaml:"provider"`
	Model             string `yaml:"model"`
	APIKey            string `yaml:"api_key"`
	BaseURL           string `yaml:"base_url"`
	Proxy             string `yaml:"proxy"`
	RequestTimeoutSec int    `yaml:"request_timeout_secs"`
}

// CrawlerConfig configures the discovery loop and its two sources.
type CrawlerConfig struct {
	IntervalSeconds   int           `yaml:"interval_seconds"`
	RequestTimeoutSec int           `yaml:"request_timeout_secs"`
	PollDelaySecs     int           `yaml:"poll_delay_secs"`
	MaxRetryAttempts  int           `yaml:"max_retry_attempts"`
	NPAList           NPAListConfig `yaml:"npalist"`
	RSS               RSSConfig     `yaml:"rss"`
}

// NPAListConfig configures the paged listing primary source.
type NPAListConfig struct {
	Enabled             bool   `yaml:"enabled"`
	URL                 string `yaml:"url"`
	Limit               int    `yaml:"limit"`
	Regex               string `yaml:"regex"`
	DocumentURLTemplate string `yaml:"document_url_template"`
}

// RSSConfig configures the flat-feed fallback source.
type RSSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Regex   string `yaml:"regex"`
}

// OutputConfig configures the console and file publishers.
type OutputConfig struct {
	ConsoleEnabled  bool   `yaml:"console_enabled"`
	ConsoleMaxChars int    `yaml:"console_max_chars"`
	FileEnabled     bool   `yaml:"file_enabled"`
	FilePath        string `yaml:"file_path"`
	FileAppend      bool   `yaml:"file_append"`
	FileMaxChars    int    `yaml:"file_max_chars"`
}

// MastodonConfig configures the Mastodon publisher.
type MastodonConfig struct {
	BaseURL     string `yaml:"base_url"`
	AccessToken string `yaml:"access_token"`
	Enabled     bool   `yaml:"enabled"`
	LoginCLI    bool   `yaml:"login_cli"`
	Visibility  string `yaml:"visibility"`
	Language    string `yaml:"language"`
	SpoilerText string `yaml:"spoiler_text"`
	Sensitive   bool   `yaml:"sensitive"`
	MaxChars    int    `yaml:"max_chars"`
}

// TelegramConfig configures the Telegram publisher.
type TelegramConfig struct {
	APIBaseURL   string `yaml:"api_base_url"`
	BotToken     string `yaml:"bot_token"`
	TargetChatID int64  `yaml:"target_chat_id"`
	Enabled      bool   `yaml:"enabled"`
	MaxChars     int    `yaml:"max_chars"`
}

// RunConfig configures run-wide knobs: templates, limits, cache location.
type RunConfig struct {
	PostTemplate             string  `yaml:"post_template"`
	PostMaxChars             int     `yaml:"post_max_chars"`
	GlobalSoftLimit          int     `yaml:"global_soft_limit"`
	InputSamplePercent       float64 `yaml:"input_sample_percent"`
	SummarizationTimeoutSecs int     `yaml:"summarization_timeout_secs"`
	CacheDir                 string  `yaml:"cache_dir"`
	MaxPostsPerRun           int     `yaml:"max_posts_per_run"`
}

// Load reads YAML configuration from path, applies defaults for any unset
// numeric fields, then applies environment overrides.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LLM.RequestTimeoutSec == 0 {
		c.LLM.RequestTimeoutSec = defaultRequestTimeoutSecs
	}
	if c.Crawler.IntervalSeconds == 0 {
		c.Crawler.IntervalSeconds = defaultIntervalSecs
	}
	if c.Crawler.RequestTimeoutSec == 0 {
		c.Crawler.RequestTimeoutSec = defaultRequestTimeoutSecs
	}
	if c.Crawler.NPAList.Limit == 0 {
		c.Crawler.NPAList.Limit = defaultNPAListLimit
	}
	if c.Crawler.NPAList.DocumentURLTemplate == "" && c.Crawler.NPAList.URL != "" {
		c.Crawler.NPAList.DocumentURLTemplate = strings.TrimSuffix(c.Crawler.NPAList.URL, "/") + "/{id}"
	}
	if c.Output.ConsoleMaxChars == 0 {
		c.Output.ConsoleMaxChars = defaultConsoleMaxChars
	}
	if c.Output.FileMaxChars == 0 {
		c.Output.FileMaxChars = defaultFileMaxChars
	}
	if c.Mastodon.MaxChars == 0 {
		c.Mastodon.MaxChars = defaultMastodonMaxChars
	}
	if c.Mastodon.Visibility == "" {
		c.Mastodon.Visibility = "unlisted"
	}
	if c.Mastodon.Language == "" {
		c.Mastodon.Language = "en"
	}
	if c.Mastodon.SpoilerText == "" {
		c.Mastodon.SpoilerText = ""
	}
	if c.Telegram.MaxChars == 0 {
		c.Telegram.MaxChars = defaultTelegramMaxChars
	}
	if c.Run.PostMaxChars == 0 {
		c.Run.PostMaxChars = defaultPostMaxChars
	}
	if c.Run.GlobalSoftLimit == 0 {
		c.Run.GlobalSoftLimit = defaultGlobalSoftLimit
	}
	if c.Run.InputSamplePercent == 0 {
		c.Run.InputSamplePercent = defaultInputSamplePercent
	}
	if c.Run.SummarizationTimeoutSecs == 0 {
		c.Run.SummarizationTimeoutSecs = defaultSummarizeTimeoutSecs
	}
	if c.Run.CacheDir == "" {
		c.Run.CacheDir = defaultCacheDir
	}
}

func (c *Config) applyEnvOverrides() {
	if c.LLM.Provider == "" {
		return
	}
	envKey := strings.ToUpper(c.LLM.Provider) + "_API_KEY"
	if v := os.Getenv(envKey); v != "" {
		c.LLM.APIKey = v
	}
}

// Validate performs the startup checks spec §6 requires: a required post
// template, and Mastodon credentials present whenever Mastodon is enabled
// and no interactive login is permitted.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Run.PostTemplate) == "" {
		return fmt.Errorf("run.post_template is required")
	}
	if c.Mastodon.Enabled && c.Mastodon.AccessToken == "" && !c.Mastodon.LoginCLI {
		if _, err := LoadMastodonSecret("./secrets/mastodon.yaml"); err != nil {
			return fmt.Errorf("mastodon enabled but no credentials available: %w", err)
		}
	}
	return nil
}

// LoadMastodonSecret reads the access token from the secrets file used to
// keep Mastodon credentials out of the main config tree.
func LoadMastodonSecret(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var secret struct {
		AccessToken string `yaml:"access_token"`
	}
	if err := yaml.Unmarshal(raw, &secret); err != nil {
		return "", fmt.Errorf("parse %s: %w", path, err)
	}
	if secret.AccessToken == "" {
		return "", fmt.Errorf("%s has no access_token", path)
	}
	return secret.AccessToken, nil
}
