// Package agent layers model completion on top of thought memory: provider
// clients, the orchestrator that injects recalled context and auto-persists
// tagged output, and the multi-turn loop.
package agent

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// CompletionRequest is one chat completion call.
type CompletionRequest struct {
	// SystemPrompt is the full system instruction, enforcement suffix
	// included.
	SystemPrompt string

	// UserPrompt is the user message, recalled context included.
	UserPrompt string

	// Model is the provider-side model name.
	Model string

	// Temperature is the sampling temperature.
	Temperature float64

	// MaxTokens caps the generated tokens.
	MaxTokens int
}

// Client generates completions against one model provider.
type Client interface {
	// Complete returns the raw model output for the request.
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// Provider names the backing provider.
	Provider() string
}

// Default configuration values.
const (
	defaultOpenAIBaseURL    = "https://api.openai.com/v1"
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	defaultXAIBaseURL       = "https://api.x.ai/v1"
	defaultOllamaBaseURL    = "http://localhost:11434"
	defaultLlamaCppBaseURL  = "http://localhost:8080/v1"

	anthropicVersion = "2023-06-01"

	defaultTimeout     = 60 * time.Second
	defaultMaxRetries  = 3
	defaultBaseBackoff = 1 * time.Second
)

// Rate limiter defaults: 50 requests per minute for every provider.
const (
	defaultRateLimit = 50.0 / 60.0
	defaultBurst     = 5
)

// ClientConfig selects and configures a provider client.
type ClientConfig struct {
	// Provider is one of openai, anthropic, xai, ollama, llamacpp.
	Provider string

	// APIKey overrides the provider's environment variable.
	APIKey string

	// BaseURL overrides the provider's default endpoint.
	BaseURL string

	// Timeout bounds one HTTP request. Default: 60s.
	Timeout time.Duration
}

// NewClient builds the client for the configured provider. API keys fall
// back to OPENAI_API_KEY, ANTHROPIC_API_KEY, XAI_API_KEY or
// LLAMACPP_API_KEY; ollama needs none.
func NewClient(cfg ClientConfig) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "openai":
		key := resolveKey(cfg.APIKey, "OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("openai API key required")
		}
		return newOpenAICompatClient("openai", key, baseURLOr(cfg.BaseURL, defaultOpenAIBaseURL), cfg.Timeout), nil
	case "xai":
		key := resolveKey(cfg.APIKey, "XAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("xai API key required")
		}
		return newOpenAICompatClient("xai", key, baseURLOr(cfg.BaseURL, defaultXAIBaseURL), cfg.Timeout), nil
	case "llamacpp", "llama.cpp":
		// llama.cpp servers usually run unauthenticated.
		key := resolveKey(cfg.APIKey, "LLAMACPP_API_KEY")
		return newOpenAICompatClient("llama.cpp", key, baseURLOr(cfg.BaseURL, defaultLlamaCppBaseURL), cfg.Timeout), nil
	case "anthropic":
		key := resolveKey(cfg.APIKey, "ANTHROPIC_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("anthropic API key required")
		}
		return newAnthropicClient(key, baseURLOr(cfg.BaseURL, defaultAnthropicBaseURL), cfg.Timeout), nil
	case "ollama":
		return newOllamaClient(baseURLOr(cfg.BaseURL, defaultOllamaBaseURL), cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %q", cfg.Provider)
	}
}

func resolveKey(key, envVar string) string {
	if key != "" {
		return key
	}
	return os.Getenv(envVar)
}

func baseURLOr(url, fallback string) string {
	if url == "" {
		return fallback
	}
	return strings.TrimRight(url, "/")
}

func timeoutOr(timeout time.Duration) time.Duration {
	if timeout > 0 {
		return timeout
	}
	return defaultTimeout
}

// retryableError wraps an error to indicate it can be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryableError checks if an error should be retried.
func isRetryableError(err error) bool {
	for e := err; e != nil; {
		if _, ok := e.(*retryableError); ok {
			return true
		}
		if unwrapper, ok := e.(interface{ Unwrap() error }); ok {
			e = unwrapper.Unwrap()
		} else {
			break
		}
	}
	return false
}
