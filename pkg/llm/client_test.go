package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/TryMightyAI/decoy/pkg/config"
)

func TestNewClientNoneProvider(t *testing.T) {
	if c := NewClient(Options{Provider: config.ProviderNone}); c != nil {
		t.Error("expected nil client for provider=none")
	}
	if c := NewClient(Options{}); c != nil {
		t.Error("expected nil client for empty provider")
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Options{Provider: config.ProviderOllama})
	if c == nil {
		t.Fatal("expected client")
	}
	if c.baseURL != "http://localhost:11434/v1" {
		t.Errorf("unexpected ollama base URL: %s", c.baseURL)
	}
	if c.model == "" {
		t.Error("expected a default model")
	}

	c = NewClient(Options{Provider: config.ProviderGroq, APIKey: "k", BaseURL: "http://example.com/v1"})
	if c.baseURL != "http://example.com/v1" {
		t.Errorf("base URL override not applied: %s", c.baseURL)
	}
}

func TestCompleteSuccess(t *testing.T) {
	var gotAuth, gotPath string
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"IS_SCAM: yes"}}]}`))
	}))
	defer server.Close()

	c := NewClient(Options{
		Provider: config.ProviderCustom,
		APIKey:   "test-key",
		Model:    "test-model",
		BaseURL:  server.URL,
	})

	out, err := c.Complete(context.Background(), "classify this", "hello")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "IS_SCAM: yes" {
		t.Errorf("unexpected content: %q", out)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("unexpected auth header: %q", gotAuth)
	}
	if gotPath != "/chat/completions" {
		t.Errorf("unexpected path: %s", gotPath)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Errorf("unexpected messages: %+v", gotReq.Messages)
	}
	if gotReq.Model != "test-model" {
		t.Errorf("unexpected model: %s", gotReq.Model)
	}
}

func TestCompleteAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer server.Close()

	c := NewClient(Options{Provider: config.ProviderCustom, Model: "m", BaseURL: server.URL})
	_, err := c.Complete(context.Background(), "", "hi")
	if err == nil {
		t.Fatal("expected error on 429")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error should carry status code: %v", err)
	}
}

func TestCompleteNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	c := NewClient(Options{Provider: config.ProviderCustom, Model: "m", BaseURL: server.URL})
	if _, err := c.Complete(context.Background(), "", "hi"); err == nil {
		t.Fatal("expected error on empty choices")
	}
}

func TestCompleteOpenRouterRequiresKey(t *testing.T) {
	c := NewClient(Options{Provider: config.ProviderOpenRouter, Model: "m"})
	if _, err := c.Complete(context.Background(), "", "hi"); err == nil {
		t.Fatal("expected error without API key")
	}
}
