package analysis

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func aiErrCode(t *testing.T, err error) *AIError {
	t.Helper()
	aiErr, ok := AsAIError(err)
	if !ok {
		t.Fatalf("error %v is not an AIError", err)
	}
	return aiErr
}

func TestNewCompleter(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantName string
		disabled bool
	}{
		{"none", Config{Provider: "none", APIKey: "k"}, "", true},
		{"empty provider", Config{}, "", true},
		{"unknown provider", Config{Provider: "cohere", APIKey: "k"}, "", true},
		{"gemini without key", Config{Provider: "gemini"}, "", true},
		{"gemini", Config{Provider: "Gemini", APIKey: "k"}, "gemini:gemini-1.5-flash", false},
		{"openai custom model", Config{Provider: "openai", APIKey: "k", Model: "gpt-4o"}, "openai:gpt-4o", false},
		{"local openai server without key", Config{Provider: "openai", BaseURL: "http://localhost:11434/v1", Model: "llama3"}, "openai:llama3", false},
		{"remote openai server without key", Config{Provider: "openai", BaseURL: "https://llm.example.com/v1"}, "", true},
		{"anthropic", Config{Provider: "anthropic", APIKey: "k"}, "anthropic:claude-3-5-haiku-latest", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, err := NewCompleter(tc.cfg, nil)
			if tc.disabled {
				if err == nil {
					t.Fatalf("NewCompleter() = %v, want AI_DISABLED", c.Name())
				}
				if code := aiErrCode(t, err).Code; code != ErrAIDisabled {
					t.Errorf("code = %s, want %s", code, ErrAIDisabled)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewCompleter() error = %v", err)
			}
			if c.Name() != tc.wantName {
				t.Errorf("Name() = %q, want %q", c.Name(), tc.wantName)
			}
		})
	}
}

func TestGeminiCompleter_Complete(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-1.5-flash:generateContent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("key = %q", r.URL.Query().Get("key"))
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"{\"a\":"},{"text":"1}"}]},"finishReason":"STOP"}]}`)
	}))
	defer srv.Close()

	g := NewGeminiCompleter(Config{APIKey: "test-key", BaseURL: srv.URL}, nil)
	text, err := g.Complete(context.Background(), "be brief", "hello")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if text != `{"a":1}` {
		t.Errorf("text = %q", text)
	}
	if _, ok := gotBody["systemInstruction"]; !ok {
		t.Error("request has no systemInstruction")
	}
}

func TestGeminiCompleter_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCode  AIErrorCode
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, `{}`, ErrAIRateLimited, true},
		{"server error", http.StatusServiceUnavailable, `overloaded`, ErrAIUnavailable, true},
		{"bad request", http.StatusBadRequest, `bad`, ErrAIUnavailable, false},
		{"no candidates", http.StatusOK, `{"candidates":[]}`, ErrAIInvalidResponse, false},
		{"garbage body", http.StatusOK, `not json`, ErrAIInvalidResponse, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			g := NewGeminiCompleter(Config{APIKey: "k", BaseURL: srv.URL}, nil)
			_, err := g.Complete(context.Background(), "s", "u")
			aiErr := aiErrCode(t, err)
			if aiErr.Code != tc.wantCode {
				t.Errorf("code = %s, want %s", aiErr.Code, tc.wantCode)
			}
			if aiErr.IsRetryable() != tc.retryable {
				t.Errorf("retryable = %v, want %v", aiErr.IsRetryable(), tc.retryable)
			}
		})
	}
}

func TestGeminiCompleter_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	g := NewGeminiCompleter(Config{APIKey: "k", BaseURL: url}, nil)
	_, err := g.Complete(context.Background(), "s", "u")
	aiErr := aiErrCode(t, err)
	if aiErr.Code != ErrAIUnavailable || !aiErr.Retryable {
		t.Errorf("err = %+v, want retryable AI_UNAVAILABLE", aiErr)
	}
}

func TestChatCompleter_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "hello" {
			t.Errorf("messages = %+v", req.Messages)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"{\"ok\":true}"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	c := NewChatCompleter(Config{APIKey: "test-key", BaseURL: srv.URL + "/"}, nil)
	text, err := c.Complete(context.Background(), "be brief", "hello")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if text != `{"ok":true}` {
		t.Errorf("text = %q", text)
	}
}

func TestChatCompleter_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCode  AIErrorCode
		retryable bool
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"bad key"}`, ErrAIUnavailable, false},
		{"server error", http.StatusInternalServerError, `{}`, ErrAIUnavailable, true},
		{"rate limited", http.StatusTooManyRequests, `{}`, ErrAIRateLimited, true},
		{"empty choices", http.StatusOK, `{"choices":[]}`, ErrAIInvalidResponse, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			c := NewChatCompleter(Config{APIKey: "k", BaseURL: srv.URL}, nil)
			_, err := c.Complete(context.Background(), "s", "u")
			aiErr := aiErrCode(t, err)
			if aiErr.Code != tc.wantCode {
				t.Errorf("code = %s, want %s", aiErr.Code, tc.wantCode)
			}
			if aiErr.IsRetryable() != tc.retryable {
				t.Errorf("retryable = %v, want %v", aiErr.IsRetryable(), tc.retryable)
			}
		})
	}
}

func TestAnthropicCompleter_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Api-Key"); got != "test-key" {
			t.Errorf("x-api-key = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"be brief"`) {
			t.Errorf("system prompt missing from %s", body)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-haiku-latest",
			"content": [{"type": "text", "text": "{\"ok\":"}, {"type": "text", "text": "true}"}],
			"stop_reason": "end_turn",
			"stop_sequence": null,
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`)
	}))
	defer srv.Close()

	a := NewAnthropicCompleter(Config{APIKey: "test-key", BaseURL: srv.URL}, nil)
	text, err := a.Complete(context.Background(), "be brief", "hello")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if text != `{"ok":true}` {
		t.Errorf("text = %q", text)
	}
}

func TestAnthropicCompleter_BadRequestNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`)
	}))
	defer srv.Close()

	a := NewAnthropicCompleter(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	_, err := a.Complete(context.Background(), "s", "u")
	aiErr := aiErrCode(t, err)
	if aiErr.Code != ErrAIUnavailable || aiErr.Retryable {
		t.Errorf("err = %+v, want non-retryable AI_UNAVAILABLE", aiErr)
	}
}
