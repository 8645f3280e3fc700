// Package extraction turns uploaded medical reports into structured data:
// decoding to text, format classification, and per-format field extraction.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// TextRecognizer turns an image of a document into text.
type TextRecognizer interface {
	Recognize(ctx context.Context, data []byte, filename string) (*RecognizedText, error)
}

// RecognizedText is the output of a TextRecognizer.
type RecognizedText struct {
	Text       string   `json:"text"`
	Confidence float64  `json:"confidence"`
	PageCount  int      `json:"page_count"`
	Warnings   []string `json:"warnings,omitempty"`
	Model      string   `json:"model,omitempty"`
}

// ErrNoRecognizer is returned by NoopRecognizer.
var ErrNoRecognizer = errors.New("no text recognizer configured")

// NoopRecognizer is used when no OCR service is configured. It never
// invents text.
type NoopRecognizer struct{}

// Recognize always returns ErrNoRecognizer.
func (NoopRecognizer) Recognize(context.Context, []byte, string) (*RecognizedText, error) {
	return nil, ErrNoRecognizer
}

// HTTPRecognizer is an HTTP client for an OCR service that accepts a
// multipart upload on /ocr.
type HTTPRecognizer struct {
	baseURL    string
	httpClient *http.Client
	retry      RetryConfig
	logger     *zap.Logger
}

// NewHTTPRecognizer creates a new OCR service client.
func NewHTTPRecognizer(baseURL string, logger *zap.Logger) *HTTPRecognizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPRecognizer{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // OCR of multi-page scans is slow
		},
		retry:  DefaultRecognizerRetryConfig,
		logger: logger,
	}
}

// WithRetryConfig overrides the retry policy.
func (c *HTTPRecognizer) WithRetryConfig(cfg RetryConfig) *HTTPRecognizer {
	c.retry = cfg
	return c
}

// RecognizerHealth represents the health check response.
type RecognizerHealth struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	ModelName   string `json:"model_name"`
	Version     string `json:"version"`
}

// HealthCheck checks if the OCR service is healthy.
func (c *HTTPRecognizer) HealthCheck(ctx context.Context) (*RecognizerHealth, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("health check failed: status %d, body: %s", resp.StatusCode, string(body))
	}

	var health RecognizerHealth
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &health, nil
}

// Recognize sends an image to the OCR service, retrying transient failures.
func (c *HTTPRecognizer) Recognize(ctx context.Context, data []byte, filename string) (*RecognizedText, error) {
	start := time.Now()
	result, err := WithRetry(ctx, c.retry, func(ctx context.Context) (*RecognizedText, error) {
		return c.recognizeOnce(ctx, data, filename)
	})
	if err != nil {
		c.logger.Warn("text recognition failed",
			zap.String("filename", filename),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, err
	}
	c.logger.Debug("text recognized",
		zap.String("filename", filename),
		zap.Int("chars", len(result.Text)),
		zap.Float64("confidence", result.Confidence),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

func (c *HTTPRecognizer) recognizeOnce(ctx context.Context, data []byte, filename string) (*RecognizedText, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write file data: %w", err)
	}
	if err := writer.WriteField("document_type", "medical_report"); err != nil {
		return nil, fmt.Errorf("write document_type: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ocr", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &DocumentError{
			Code:      ErrRecognizerTransient,
			Message:   "OCR service unreachable",
			Filename:  filename,
			Retryable: true,
			Cause:     err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		code := ErrRecognizerFailed
		if retryable {
			code = ErrRecognizerTransient
		}
		return nil, &DocumentError{
			Code:      code,
			Message:   fmt.Sprintf("OCR failed: status %d, body: %s", resp.StatusCode, string(body)),
			Filename:  filename,
			Retryable: retryable,
		}
	}

	var result RecognizedText
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &DocumentError{
			Code:     ErrRecognizerFailed,
			Message:  "decode OCR response",
			Filename: filename,
			Cause:    err,
		}
	}
	return &result, nil
}
