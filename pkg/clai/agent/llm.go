// Package agent – llm.go implements the completion client for chat
// completions with function calling / tool use support. Uses the
// OpenAI-compatible API format, which works with OpenAI, Anthropic's
// compatibility endpoint, OpenRouter, Groq, Ollama, and any compatible
// endpoint. The client only translates shapes: domain messages and tool
// schemas out, text and tool calls back in.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// LLMClient handles communication with the LLM provider API.
//
// There is deliberately no retry or fallback here: a failed completion
// request propagates to the turn driver and ends the turn.
type LLMClient struct {
	baseURL    string
	provider   Provider
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewLLMClient creates a completion client from config.
// The provider variant comes from the config name when set, otherwise it is
// detected from the base URL.
func NewLLMClient(cfg *Config, logger *slog.Logger) (*LLMClient, error) {
	provider, explicit, err := ParseProvider(cfg.API.Provider)
	if err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(cfg.API.BaseURL, "/")
	if baseURL == "" {
		baseURL = provider.defaultBaseURL()
	}
	if !explicit {
		provider = DetectProvider(baseURL)
	}

	return &LLMClient{
		baseURL:  baseURL,
		provider: provider,
		apiKey:   cfg.API.APIKey,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger.With("component", "llm", "provider", provider.String()),
	}, nil
}

// Provider returns the resolved provider variant.
func (c *LLMClient) Provider() Provider {
	return c.provider
}

// ---------- Domain / Wire Types (OpenAI-compatible) ----------

// Message is one entry of the conversation in the OpenAI chat format.
// The ordering of messages is significant and append-only within a turn.
type Message struct {
	Role       string     `json:"role"` // "system", "user", "assistant", "tool"
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // set on tool-role messages
}

// ToolDefinition is an OpenAI-compatible tool definition for function calling.
type ToolDefinition struct {
	Type     string      `json:"type"`
	Function FunctionDef `json:"function"`
}

// FunctionDef describes a callable function exposed to the LLM.
type FunctionDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolCall represents a tool invocation requested by the LLM. The ID
// correlates the call to its result and must be unique within one reply.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall holds the function name and serialized arguments from the LLM.
// Arguments stay raw JSON text until the executor parses them; a malformed
// payload surfaces as a tool-execution failure, not a client error.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// chatRequest is the OpenAI-compatible chat completions request.
type chatRequest struct {
	Model     string           `json:"model"`
	Messages  []Message        `json:"messages"`
	Tools     []ToolDefinition `json:"tools,omitempty"`
	MaxTokens int              `json:"max_tokens,omitempty"`
}

// chatResponse is the OpenAI-compatible chat completions response.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   string     `json:"content"`
			ToolCalls []ToolCall `json:"tool_calls,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// LLMResponse holds the parsed response from a chat completion.
type LLMResponse struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
	Usage        LLMUsage
}

// LLMUsage holds token usage information from the API response.
type LLMUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ---------- Completion ----------

// Complete sends a chat completion request. The system prompt, prior
// messages, and tool schemas are serialized into the provider's request
// shape; the structured reply comes back as text and/or tool calls.
// The message history goes out in full — never truncated or reordered.
func (c *LLMClient) Complete(ctx context.Context, systemPrompt string, messages []Message, tools []ToolDefinition, model string, maxTokens int) (*LLMResponse, error) {
	if c.apiKey == "" && c.provider.requiresKey() {
		return nil, fmt.Errorf("API key not configured. Run 'clai config set-key' or set CLAI_API_KEY")
	}

	wire := make([]Message, 0, len(messages)+1)
	if systemPrompt != "" {
		wire = append(wire, Message{Role: "system", Content: systemPrompt})
	}
	wire = append(wire, messages...)

	reqBody := chatRequest{
		Model:     model,
		Messages:  wire,
		MaxTokens: maxTokens,
	}
	if len(tools) > 0 {
		reqBody.Tools = tools
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	c.provider.setAuthHeaders(req, c.apiKey)

	c.logger.Debug("sending chat completion",
		"model", model,
		"messages", len(wire),
		"tools", len(tools),
		"endpoint", endpoint,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	duration := time.Since(start)

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("API error",
			"status", resp.StatusCode,
			"body", truncate(string(respBody), 500),
		)
		return nil, fmt.Errorf("API returned %d: %s", resp.StatusCode, truncate(string(respBody), 500))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	if chatResp.Error != nil {
		return nil, fmt.Errorf("API error: %s", chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("no response from model")
	}

	choice := chatResp.Choices[0]
	content := strings.TrimSpace(choice.Message.Content)

	c.logger.Info("chat completion done",
		"model", model,
		"duration_ms", duration.Milliseconds(),
		"prompt_tokens", chatResp.Usage.PromptTokens,
		"completion_tokens", chatResp.Usage.CompletionTokens,
		"finish_reason", choice.FinishReason,
		"tool_calls", len(choice.Message.ToolCalls),
	)

	return &LLMResponse{
		Content:      content,
		ToolCalls:    choice.Message.ToolCalls,
		FinishReason: choice.FinishReason,
		Usage: LLMUsage{
			PromptTokens:     chatResp.Usage.PromptTokens,
			CompletionTokens: chatResp.Usage.CompletionTokens,
			TotalTokens:      chatResp.Usage.TotalTokens,
		},
	}, nil
}

// ---------- Model Discovery ----------

// ModelInfo is one entry from the provider's model listing.
type ModelInfo struct {
	ID      string `json:"id"`
	OwnedBy string `json:"owned_by"`
}

// ListModels queries the provider's /models endpoint.
func (c *LLMClient) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.provider.setAuthHeaders(req, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned %d: %s", resp.StatusCode, truncate(string(body), 500))
	}

	var listing struct {
		Data []ModelInfo `json:"data"`
	}
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("parsing model list: %w", err)
	}
	return listing.Data, nil
}

// truncate shortens s to at most n bytes for log and error output.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
