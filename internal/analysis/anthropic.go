package analysis

import (
	"context"
	"errors"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

// AnthropicCompleter calls the Anthropic Messages API.
type AnthropicCompleter struct {
	client anthropic.Client
	model  string
	logger *zap.Logger
}

// NewAnthropicCompleter creates an Anthropic client. The SDK's own retries
// are disabled; the Analyzer retries.
func NewAnthropicCompleter(cfg Config, logger *zap.Logger) *AnthropicCompleter {
	if logger == nil {
		logger = zap.NewNop()
	}
	model := cfg.Model
	if model == "" {
		model = DefaultAnthropicModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicCompleter{
		client: anthropic.NewClient(opts...),
		model:  model,
		logger: logger,
	}
}

// Name returns "anthropic:<model>".
func (a *AnthropicCompleter) Name() string {
	return ProviderAnthropic + ":" + a.model
}

// Complete sends one Messages request and concatenates the text blocks.
func (a *AnthropicCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	response, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 4096,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", statusError(ProviderAnthropic, apiErr.StatusCode, http.StatusText(apiErr.StatusCode))
		}
		return "", networkError(ProviderAnthropic, err)
	}

	var text string
	for _, block := range response.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", invalidResponse(ProviderAnthropic, "empty response from Anthropic", nil)
	}

	a.logger.Debug("Anthropic completion received",
		zap.String("model", a.model),
		zap.String("stop_reason", string(response.StopReason)),
	)
	return text, nil
}
