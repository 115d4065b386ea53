package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"droidrun/internal/agent/ports"
	droidrunerrors "droidrun/internal/errors"
)

func newTestClient(t *testing.T, url, model string, vision bool) ports.LLMClient {
	t.Helper()
	client, err := NewOpenAIClient(Config{
		Model:   model,
		BaseURL: url,
		APIKey:  "test-key",
		Vision:  vision,
	})
	if err != nil {
		t.Fatalf("NewOpenAIClient: %v", err)
	}
	return client
}

func TestCompleteParsesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"content": "hello"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "gpt-4o-mini", false)
	resp, err := client.Complete(context.Background(), ports.CompletionRequest{
		Messages: []ports.Message{ports.UserMessage("hi")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hello" {
		t.Errorf("content = %q, want %q", resp.Content, "hello")
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("total tokens = %d, want 15", resp.Usage.TotalTokens)
	}
}

func TestCompleteMapsRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limited"}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "gpt-4o-mini", false)
	_, err := client.Complete(context.Background(), ports.CompletionRequest{})
	if !droidrunerrors.IsRateLimited(err) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	if got := droidrunerrors.RetryAfter(err); got != 30 {
		t.Errorf("RetryAfter = %d, want 30", got)
	}
}

func TestCompleteMapsOverload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`overloaded`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "gpt-4o-mini", false)
	_, err := client.Complete(context.Background(), ports.CompletionRequest{})
	if !droidrunerrors.IsOverloaded(err) {
		t.Fatalf("expected overloaded, got %v", err)
	}
	if !droidrunerrors.IsTransient(err) {
		t.Error("overload should be transient")
	}
}

func TestCompleteMapsClientErrorsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "bad key"}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "gpt-4o-mini", false)
	_, err := client.Complete(context.Background(), ports.CompletionRequest{})
	if !droidrunerrors.IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func decodeRequestMessages(t *testing.T, body io.Reader) []map[string]any {
	t.Helper()
	var payload struct {
		Messages []map[string]any `json:"messages"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	return payload.Messages
}

func TestVisionMessagesCarryImageParts(t *testing.T) {
	var messages []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		messages = decodeRequestMessages(t, r.Body)
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "ok"}}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "gpt-4o", true)
	_, err := client.Complete(context.Background(), ports.CompletionRequest{
		Messages: []ports.Message{
			ports.UserMessageWithImages("look at this", []byte{0x89, 0x50, 0x4e, 0x47}),
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(messages))
	}
	parts, ok := messages[0]["content"].([]any)
	if !ok {
		t.Fatalf("content should be a parts array, got %T", messages[0]["content"])
	}
	if len(parts) != 2 {
		t.Errorf("parts = %d, want text + image", len(parts))
	}
}

func TestDeepSeekNeverReceivesImages(t *testing.T) {
	var messages []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		messages = decodeRequestMessages(t, r.Body)
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "ok"}}]}`))
	}))
	defer server.Close()

	// Vision requested but the model family cannot accept image parts.
	client := newTestClient(t, server.URL, "deepseek-chat", true)
	_, err := client.Complete(context.Background(), ports.CompletionRequest{
		Messages: []ports.Message{
			ports.UserMessageWithImages("look at this", []byte{0x89, 0x50, 0x4e, 0x47}),
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := messages[0]["content"].(string); !ok {
		t.Errorf("deepseek content should stay a plain string, got %T", messages[0]["content"])
	}
}
