// Package analysis produces the narrative MedicalAIAnalysis for a scored
// report. An external completion provider writes the narrative; any failure
// degrades to a deterministic rule-based analysis.
package analysis

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Completer sends a system+user prompt pair to a completion provider and
// returns the raw reply text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
	// Name identifies the provider and model, e.g. "gemini:gemini-1.5-flash".
	Name() string
}

// Provider names accepted by NewCompleter.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderNone      = "none"
)

// Default models per provider.
const (
	DefaultGeminiModel    = "gemini-1.5-flash"
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-3-5-haiku-latest"
)

// DefaultTimeout bounds one completion call.
const DefaultTimeout = 60 * time.Second

// Config selects and configures a completion provider.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
}

// NewCompleter builds the Completer for cfg.Provider. It returns an
// AI_DISABLED error when the provider is "none" or when a remote provider
// has no API key.
func NewCompleter(cfg Config, logger *zap.Logger) (Completer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "", ProviderNone:
		return nil, &AIError{Code: ErrAIDisabled, Message: "AI analysis disabled", Provider: ProviderNone}
	case ProviderGemini, ProviderOpenAI, ProviderAnthropic:
	default:
		return nil, &AIError{Code: ErrAIDisabled, Message: "unknown AI provider " + cfg.Provider, Provider: provider}
	}

	if cfg.APIKey == "" && !isLocalURL(cfg.BaseURL) {
		return nil, &AIError{Code: ErrAIDisabled, Message: provider + " API key not configured", Provider: provider}
	}

	switch provider {
	case ProviderGemini:
		return NewGeminiCompleter(cfg, logger), nil
	case ProviderOpenAI:
		return NewChatCompleter(cfg, logger), nil
	default:
		return NewAnthropicCompleter(cfg, logger), nil
	}
}

// isLocalURL reports whether base points at this machine, where self-hosted
// OpenAI-compatible servers usually run without a key.
func isLocalURL(base string) bool {
	if base == "" {
		return false
	}
	u, err := url.Parse(base)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1", "host.docker.internal":
		return true
	}
	return false
}
