// Package llm is a minimal chat-completions client shared by the scam
// classifier and the engagement generator. It speaks the OpenAI-compatible
// wire format used by OpenRouter, Groq, Ollama, and custom endpoints.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/TryMightyAI/decoy/pkg/config"
	"github.com/TryMightyAI/decoy/pkg/httputil"
)

// DefaultTemperature keeps classification output near-deterministic.
const DefaultTemperature = 0.1

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Options configures a Client.
type Options struct {
	Provider    config.LLMProvider
	APIKey      string // Optional for Ollama
	Model       string
	BaseURL     string  // Optional override
	Temperature float64 // Defaults to DefaultTemperature
	Timeout     time.Duration
}

// Client calls an OpenAI-compatible chat-completions endpoint.
type Client struct {
	client      *http.Client
	provider    config.LLMProvider
	baseURL     string
	apiKey      string
	model       string
	temperature float64
}

// NewClient creates a chat client for the configured provider.
// Returns nil when the provider is "none": callers treat a nil client as
// an absent external capability.
func NewClient(opts Options) *Client {
	if opts.Provider == config.ProviderNone || opts.Provider == "" {
		return nil
	}

	if opts.Model == "" {
		if opts.Provider == config.ProviderOllama {
			opts.Model = "qwen2.5:7b"
		} else {
			opts.Model = "nvidia/nemotron-3-nano-30b-a3b:free"
		}
	}

	var baseURL string
	switch opts.Provider {
	case config.ProviderOllama:
		baseURL = "http://localhost:11434/v1"
	case config.ProviderGroq:
		baseURL = "https://api.groq.com/openai/v1"
	case config.ProviderOpenAI:
		baseURL = "https://api.openai.com/v1"
	case config.ProviderOpenRouter, config.ProviderCustom:
		fallthrough
	default:
		baseURL = "https://openrouter.ai/api/v1"
	}
	if opts.BaseURL != "" {
		baseURL = opts.BaseURL
	}

	temperature := opts.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		client:      httputil.NewClient(timeout),
		provider:    opts.Provider,
		baseURL:     baseURL,
		apiKey:      opts.APIKey,
		model:       opts.Model,
		temperature: temperature,
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.model }

// Complete sends a system+user prompt pair and returns the assistant text.
// The context bounds the call; callers absorb errors into local fallbacks.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if c.provider == config.ProviderOpenRouter && c.apiKey == "" {
		return "", fmt.Errorf("API key not configured for OpenRouter")
	}

	var msgs []chatMessage
	if system != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: system})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: user})

	jsonBody, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", err
	}

	endpoint := strings.TrimRight(c.baseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer httputil.DrainAndClose(resp.Body)

	body, err := httputil.ReadResponseBody(resp.Body, httputil.MaxResponseSize)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("unmarshal error: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return result.Choices[0].Message.Content, nil
}
