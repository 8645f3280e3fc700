// Package config loads server and CLI settings from defaults, an optional
// YAML file, a .env file, and the process environment, in that order of
// increasing precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/vitalis-health/vitalis/backend/internal/analysis"
	"github.com/vitalis-health/vitalis/backend/internal/extraction"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreMemory    = "memory"
	StoreFirestore = "firestore"
)

type Config struct {
	// NOTE: Default port is 8111 to avoid conflicts with other local services
	Port           string   `yaml:"port"`
	Env            string   `yaml:"env"`
	SkipAuth       bool     `yaml:"skip_auth"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`
	OCRServiceURL  string   `yaml:"ocr_service_url"`

	Log     LogConfig     `yaml:"log"`
	AI      AIConfig      `yaml:"ai"`
	Store   StoreConfig   `yaml:"store"`
	Redis   RedisConfig   `yaml:"redis"`
	Algolia AlgoliaConfig `yaml:"algolia"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type AIConfig struct {
	Provider          string        `yaml:"provider"`
	Model             string        `yaml:"model"`
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	MaxRetries        int           `yaml:"max_retries"`
}

type StoreConfig struct {
	Backend        string `yaml:"backend"`
	ProjectID      string `yaml:"project_id"`
	DocumentBucket string `yaml:"document_bucket"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AlgoliaConfig struct {
	AppID     string `yaml:"app_id"`
	APIKey    string `yaml:"api_key"`
	IndexName string `yaml:"index_name"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port: "8111",
		Env:  "development",
		AllowedOrigins: []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
		},
		MaxUploadBytes: extraction.DefaultMaxUploadBytes,
		Log:            LogConfig{Level: "info", Format: "json"},
		AI: AIConfig{
			Provider:          analysis.ProviderGemini,
			Timeout:           analysis.DefaultTimeout,
			RequestsPerMinute: 30,
			MaxRetries:        extraction.DefaultAIRetryConfig.MaxRetries,
		},
		Store: StoreConfig{Backend: StoreMemory},
		Redis: RedisConfig{TTL: 24 * time.Hour},
		Algolia: AlgoliaConfig{
			IndexName: "vitalis_reports",
		},
	}
}

// Load builds the configuration. path may be empty to skip the YAML file.
func Load(path string) (*Config, error) {
	// Try to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.Env, "ENV")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
	setString(&c.OCRServiceURL, "OCR_SERVICE_URL")
	if v, ok := os.LookupEnv("ALLOWED_ORIGINS"); ok {
		c.AllowedOrigins = splitList(v)
	}

	setString(&c.AI.Provider, "AI_PROVIDER")
	setString(&c.AI.Model, "AI_MODEL")
	setString(&c.AI.APIKey, "AI_API_KEY")
	setString(&c.AI.BaseURL, "AI_BASE_URL")
	if c.AI.APIKey == "" {
		if name := providerKeyEnv(c.AI.Provider); name != "" {
			c.AI.APIKey = os.Getenv(name)
		}
	}

	setString(&c.Store.Backend, "STORE_BACKEND")
	setString(&c.Store.ProjectID, "GOOGLE_CLOUD_PROJECT")
	setString(&c.Store.DocumentBucket, "DOCUMENT_BUCKET")

	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")

	setString(&c.Algolia.AppID, "ALGOLIA_APP_ID")
	setString(&c.Algolia.APIKey, "ALGOLIA_API_KEY")
	setString(&c.Algolia.IndexName, "ALGOLIA_INDEX_NAME")

	// Legacy switch from the original server
	if os.Getenv("USE_MEMORY_STORE") == "true" {
		c.Store.Backend = StoreMemory
	}

	if err := setBool(&c.SkipAuth, "SKIP_AUTH"); err != nil {
		return err
	}
	if err := setInt64(&c.MaxUploadBytes, "MAX_UPLOAD_BYTES"); err != nil {
		return err
	}
	if err := setDuration(&c.AI.Timeout, "AI_TIMEOUT"); err != nil {
		return err
	}
	if err := setInt(&c.AI.RequestsPerMinute, "AI_REQUESTS_PER_MINUTE"); err != nil {
		return err
	}
	if err := setInt(&c.AI.MaxRetries, "AI_MAX_RETRIES"); err != nil {
		return err
	}
	if err := setInt(&c.Redis.DB, "REDIS_DB"); err != nil {
		return err
	}
	return setDuration(&c.Redis.TTL, "ANALYSIS_CACHE_TTL")
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.AI.Provider {
	case analysis.ProviderGemini, analysis.ProviderOpenAI, analysis.ProviderAnthropic, analysis.ProviderNone:
	default:
		return fmt.Errorf("unknown AI provider %q", c.AI.Provider)
	}
	switch c.Store.Backend {
	case StoreMemory, StoreFirestore:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive, got %d", c.MaxUploadBytes)
	}
	if c.AI.MaxRetries < 0 {
		return fmt.Errorf("AI max retries must not be negative, got %d", c.AI.MaxRetries)
	}
	return nil
}

// IsLocal reports whether the server runs on a developer machine.
func (c *Config) IsLocal() bool { return c.Env == "local" }

// UseLocalAuth reports whether Firebase auth is replaced by the dev user.
func (c *Config) UseLocalAuth() bool { return c.SkipAuth || c.IsLocal() }

// AnalysisConfig is the completer configuration.
func (c *Config) AnalysisConfig() analysis.Config {
	return analysis.Config{
		Provider: c.AI.Provider,
		Model:    c.AI.Model,
		APIKey:   c.AI.APIKey,
		BaseURL:  c.AI.BaseURL,
		Timeout:  c.AI.Timeout,
	}
}

// RetryConfig is the AI retry policy with the configured retry count.
func (c *Config) RetryConfig() extraction.RetryConfig {
	rc := extraction.DefaultAIRetryConfig
	rc.MaxRetries = c.AI.MaxRetries
	return rc
}

func providerKeyEnv(provider string) string {
	switch provider {
	case analysis.ProviderGemini:
		return "GEMINI_API_KEY"
	case analysis.ProviderOpenAI:
		return "OPENAI_API_KEY"
	case analysis.ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	}
	return ""
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = b
	return nil
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setInt64(dst *int64, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
