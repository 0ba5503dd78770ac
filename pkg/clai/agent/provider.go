// Package agent – provider.go defines the closed set of supported LLM
// providers. Provider selection happens once, through an explicit lookup
// (config name or base-URL detection), so every switch over Provider is
// exhaustive and a new provider cannot sneak in through a config typo.
package agent

import (
	"fmt"
	"net/http"
	"strings"
)

// Provider identifies an LLM provider variant. The set is closed: adding a
// provider means adding a constant here and handling it in every switch.
type Provider int

const (
	// ProviderOpenAI is api.openai.com and the generic OpenAI-compatible default.
	ProviderOpenAI Provider = iota

	// ProviderAnthropic is api.anthropic.com via its OpenAI-compatible endpoint.
	// Uses x-api-key auth instead of a Bearer token.
	ProviderAnthropic

	// ProviderOpenRouter is openrouter.ai.
	ProviderOpenRouter

	// ProviderGroq is api.groq.com.
	ProviderGroq

	// ProviderOllama is a local Ollama server (no API key required).
	ProviderOllama
)

// String returns the config-facing provider name.
func (p Provider) String() string {
	switch p {
	case ProviderOpenAI:
		return "openai"
	case ProviderAnthropic:
		return "anthropic"
	case ProviderOpenRouter:
		return "openrouter"
	case ProviderGroq:
		return "groq"
	case ProviderOllama:
		return "ollama"
	}
	return fmt.Sprintf("provider(%d)", int(p))
}

// ParseProvider resolves a config-supplied provider name to a variant.
// Empty string means "detect from base URL" and returns ok=false.
func ParseProvider(name string) (Provider, bool, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return ProviderOpenAI, false, nil
	case "openai":
		return ProviderOpenAI, true, nil
	case "anthropic":
		return ProviderAnthropic, true, nil
	case "openrouter":
		return ProviderOpenRouter, true, nil
	case "groq":
		return ProviderGroq, true, nil
	case "ollama":
		return ProviderOllama, true, nil
	default:
		return ProviderOpenAI, false, fmt.Errorf("unknown provider %q (supported: openai, anthropic, openrouter, groq, ollama)", name)
	}
}

// DetectProvider infers the provider variant from the API base URL.
// Unrecognized hosts default to the OpenAI-compatible variant.
func DetectProvider(baseURL string) Provider {
	switch {
	case strings.Contains(baseURL, "anthropic.com"):
		return ProviderAnthropic
	case strings.Contains(baseURL, "openrouter.ai"):
		return ProviderOpenRouter
	case strings.Contains(baseURL, "api.groq.com"):
		return ProviderGroq
	case strings.Contains(baseURL, "localhost:11434"),
		strings.Contains(baseURL, "127.0.0.1:11434"),
		strings.Contains(baseURL, "/ollama"):
		return ProviderOllama
	default:
		return ProviderOpenAI
	}
}

// defaultBaseURL returns the provider's canonical API root.
func (p Provider) defaultBaseURL() string {
	switch p {
	case ProviderOpenAI:
		return "https://api.openai.com/v1"
	case ProviderAnthropic:
		return "https://api.anthropic.com/v1"
	case ProviderOpenRouter:
		return "https://openrouter.ai/api/v1"
	case ProviderGroq:
		return "https://api.groq.com/openai/v1"
	case ProviderOllama:
		return "http://localhost:11434/v1"
	}
	return "https://api.openai.com/v1"
}

// requiresKey reports whether the provider rejects unauthenticated requests.
func (p Provider) requiresKey() bool {
	switch p {
	case ProviderOllama:
		return false
	case ProviderOpenAI, ProviderAnthropic, ProviderOpenRouter, ProviderGroq:
		return true
	}
	return true
}

// setAuthHeaders applies the provider's auth scheme to an outgoing request.
func (p Provider) setAuthHeaders(req *http.Request, apiKey string) {
	switch p {
	case ProviderAnthropic:
		req.Header.Set("x-api-key", apiKey)
		req.Header.Set("anthropic-version", "2023-06-01")
	case ProviderOpenAI, ProviderOpenRouter, ProviderGroq:
		req.Header.Set("Authorization", "Bearer "+apiKey)
	case ProviderOllama:
		if apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+apiKey)
		}
	}
}
