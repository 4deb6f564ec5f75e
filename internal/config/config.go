package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Feed is one configured syndication source.
type Feed struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Selector string `yaml:"selector"` // CSS class of the article body container
}

// Symbol is one tracked asset supplied by the asset registry.
type Symbol struct {
	Ticker string `yaml:"ticker"`
	Name   string `yaml:"name"`
}

// Config holds all application configuration.
type Config struct {
	Feeds   []Feed   `yaml:"feeds"`
	Symbols []Symbol `yaml:"symbols"`

	Cache struct {
		Dir         string `yaml:"dir"`
		Enabled     bool   `yaml:"enabled"`
		MaxAgeHours int    `yaml:"max_age_hours"`
	} `yaml:"cache"`

	AI struct {
		Provider       string `yaml:"provider"` // "gemini" or "openai"
		GeminiAPIKey   string `yaml:"gemini_api_key"`
		GeminiModel    string `yaml:"gemini_model"`
		OpenAIEndpoint string `yaml:"openai_endpoint"`
		OpenAIModel    string `yaml:"openai_model"`
		OpenAIAPIKey   string `yaml:"openai_api_key"`
		MaxRequests    int    `yaml:"max_requests"`   // per-run/day budget, 0 = unlimited
		ContentBudget  int    `yaml:"content_budget"` // max content chars per prompt
	} `yaml:"ai"`

	Pipeline struct {
		DigestTarget int           `yaml:"digest_target"` // accepted articles per digest run
		QueryTarget  int           `yaml:"query_target"`  // accepted articles per on-demand query
		MaxItemAge   time.Duration `yaml:"-"`
	} `yaml:"pipeline"`

	Schedule struct {
		DigestCron string `yaml:"digest_cron"`
	} `yaml:"schedule"`

	RequestTimeout time.Duration `yaml:"-"`
	RetryAttempts  int           `yaml:"retry_attempts"`
	RetryDelay     time.Duration `yaml:"-"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.Cache.Dir = "data/articles"
	cfg.Cache.Enabled = true
	cfg.Cache.MaxAgeHours = 72
	cfg.AI.Provider = "gemini"
	cfg.AI.GeminiModel = "gemini-1.5-flash"
	cfg.AI.MaxRequests = 30
	cfg.AI.ContentBudget = 6000
	cfg.Pipeline.DigestTarget = 8
	cfg.Pipeline.QueryTarget = 3
	cfg.Pipeline.MaxItemAge = 24 * time.Hour
	cfg.Schedule.DigestCron = "0 8 * * *"
	cfg.RequestTimeout = 15 * time.Second
	cfg.RetryAttempts = 3
	cfg.RetryDelay = 2 * time.Second

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.AI.GeminiAPIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.AI.OpenAIAPIKey = v
	}
	if v := os.Getenv("AI_PROVIDER"); v != "" {
		cfg.AI.Provider = v
	}
	if v := os.Getenv("CACHE_DIR"); v != "" {
		cfg.Cache.Dir = v
	}
	if v := os.Getenv("CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = v != "false"
	}
	if v := os.Getenv("DIGEST_CRON"); v != "" {
		cfg.Schedule.DigestCron = v
	}
	if v := getEnvInt("MAX_AI_REQUESTS"); v > 0 {
		cfg.AI.MaxRequests = v
	}
	if v := getEnvInt("DIGEST_TARGET"); v > 0 {
		cfg.Pipeline.DigestTarget = v
	}
	if v := getEnvInt("QUERY_TARGET"); v > 0 {
		cfg.Pipeline.QueryTarget = v
	}

	return cfg, cfg.Validate()
}

func getEnvInt(key string) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return 0
}

func (c *Config) Validate() error {
	if len(c.Feeds) == 0 {
		return fmt.Errorf("no feeds configured")
	}
	for i, f := range c.Feeds {
		if f.URL == "" {
			return fmt.Errorf("feed %d: url is required", i)
		}
		if f.Name == "" {
			return fmt.Errorf("feed %d: name is required", i)
		}
	}
	switch c.AI.Provider {
	case "gemini":
		if c.AI.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for the gemini provider")
		}
	case "openai":
		if c.AI.OpenAIAPIKey == "" || c.AI.OpenAIEndpoint == "" || c.AI.OpenAIModel == "" {
			return fmt.Errorf("openai provider needs endpoint, model and OPENAI_API_KEY")
		}
	default:
		return fmt.Errorf("unknown AI provider %q", c.AI.Provider)
	}
	return nil
}
