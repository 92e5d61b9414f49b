package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewAnthropicClientRequiresKey(t *testing.T) {
	if _, err := NewAnthropicClient(ClientConfig{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, but got %v", err)
	}
}

func TestAnthropicClientComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "test-key" {
			t.Errorf("Expected the API key header, but got %q", r.Header.Get("X-Api-Key"))
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "test-model",
			"content": [{"type": "text", "text": "  Paris  "}],
			"stop_reason": "end_turn",
			"stop_sequence": null,
			"usage": {"input_tokens": 3, "output_tokens": 1}
		}`)
	}))
	defer srv.Close()

	client, err := NewAnthropicClient(ClientConfig{APIKey: "test-key", Model: "test-model", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	text, err := client.Complete(context.Background(), Request{System: "Be brief.", Prompt: "Capital of France?", MaxTokens: 64})
	if err != nil {
		t.Fatalf("Complete() returned an unexpected error: %v", err)
	}
	if text != "Paris" {
		t.Errorf("Expected 'Paris', but got %q", text)
	}
	if got["model"] != "test-model" || got["max_tokens"] != float64(64) {
		t.Errorf("Unexpected request body: %v", got)
	}
	if _, ok := got["system"]; !ok {
		t.Errorf("Expected a system prompt in the request: %v", got)
	}
}

func TestAnthropicClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"type": "error", "error": {"type": "invalid_request_error", "message": "bad"}}`)
	}))
	defer srv.Close()

	client, err := NewAnthropicClient(ClientConfig{APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.Complete(context.Background(), Request{Prompt: "hi"}); err == nil {
		t.Error("Expected an error for a 400 response")
	}
}
