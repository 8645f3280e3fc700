package analysis

import (
	"context"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const defaultChatBaseURL = "https://api.openai.com/v1"

// ChatCompleter calls an OpenAI-compatible /chat/completions endpoint.
type ChatCompleter struct {
	httpClient *resty.Client
	model      string
	logger     *zap.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// NewChatCompleter creates an OpenAI-compatible client. Retries are left to
// the Analyzer.
func NewChatCompleter(cfg Config, logger *zap.Logger) *ChatCompleter {
	if logger == nil {
		logger = zap.NewNop()
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultChatBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &ChatCompleter{httpClient: client, model: model, logger: logger}
}

// Name returns "openai:<model>".
func (c *ChatCompleter) Name() string {
	return ProviderOpenAI + ":" + c.model
}

// Complete sends one chat completion request.
func (c *ChatCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	request := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    0.2,
		MaxTokens:      4096,
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	var response chatResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(request).
		SetResult(&response).
		Post("/chat/completions")
	if err != nil {
		return "", networkError(ProviderOpenAI, err)
	}
	if resp.IsError() {
		return "", statusError(ProviderOpenAI, resp.StatusCode(), resp.String())
	}

	if len(response.Choices) == 0 || strings.TrimSpace(response.Choices[0].Message.Content) == "" {
		return "", invalidResponse(ProviderOpenAI, "empty chat completion", nil)
	}

	c.logger.Debug("Chat completion received",
		zap.String("model", c.model),
		zap.String("finish_reason", response.Choices[0].FinishReason),
	)
	return response.Choices[0].Message.Content, nil
}
