package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCompleteSerializesRequest(t *testing.T) {
	var captured struct {
		Model     string           `json:"model"`
		Messages  []Message        `json:"messages"`
		Tools     []ToolDefinition `json:"tools"`
		MaxTokens int              `json:"max_tokens"`
	}
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices":[{"message":{"content":"  trimmed  "},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":7,"completion_tokens":2,"total_tokens":9}
		}`))
	}))
	defer server.Close()

	cfg := &Config{API: APIConfig{BaseURL: server.URL, APIKey: "sk-unit"}}
	client, err := NewLLMClient(cfg, testLogger())
	if err != nil {
		t.Fatalf("NewLLMClient: %v", err)
	}

	tools := []ToolDefinition{MakeToolDefinition("probe", "a probe", nil)}
	history := []Message{{Role: "user", Content: "hi"}}

	resp, err := client.Complete(context.Background(), "stay sharp", history, tools, "gpt-test", 512)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if gotAuth != "Bearer sk-unit" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if captured.Model != "gpt-test" || captured.MaxTokens != 512 {
		t.Errorf("model/max_tokens = %q/%d", captured.Model, captured.MaxTokens)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" || captured.Messages[0].Content != "stay sharp" {
		t.Errorf("system prompt not prepended: %+v", captured.Messages)
	}
	if len(captured.Tools) != 1 || captured.Tools[0].Function.Name != "probe" {
		t.Errorf("tools = %+v", captured.Tools)
	}

	if resp.Content != "trimmed" {
		t.Errorf("content = %q, want whitespace trimmed", resp.Content)
	}
	if resp.Usage.TotalTokens != 9 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestCompleteParsesToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices":[{"message":{"content":"","tool_calls":[
				{"id":"call_abc","type":"function","function":{"name":"read_file","arguments":"{\"path\":\"x\"}"}}
			]},"finish_reason":"tool_calls"}]
		}`))
	}))
	defer server.Close()

	cfg := &Config{API: APIConfig{BaseURL: server.URL, APIKey: "k"}}
	client, err := NewLLMClient(cfg, testLogger())
	if err != nil {
		t.Fatalf("NewLLMClient: %v", err)
	}

	resp, err := client.Complete(context.Background(), "", nil, nil, "m", 0)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if len(resp.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(resp.ToolCalls))
	}
	tc := resp.ToolCalls[0]
	if tc.ID != "call_abc" || tc.Function.Name != "read_file" {
		t.Errorf("tool call = %+v", tc)
	}
	// Arguments stay raw JSON for the executor to parse.
	if tc.Function.Arguments != `{"path":"x"}` {
		t.Errorf("arguments = %q", tc.Function.Arguments)
	}
	if resp.FinishReason != "tool_calls" {
		t.Errorf("finish reason = %q", resp.FinishReason)
	}
}

func TestCompleteErrors(t *testing.T) {
	t.Run("missing api key", func(t *testing.T) {
		cfg := &Config{API: APIConfig{BaseURL: "https://api.openai.com/v1"}}
		client, err := NewLLMClient(cfg, testLogger())
		if err != nil {
			t.Fatalf("NewLLMClient: %v", err)
		}
		_, err = client.Complete(context.Background(), "", nil, nil, "m", 0)
		if err == nil || !strings.Contains(err.Error(), "API key not configured") {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("http error status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		}))
		defer server.Close()

		cfg := &Config{API: APIConfig{BaseURL: server.URL, APIKey: "k"}}
		client, _ := NewLLMClient(cfg, testLogger())
		_, err := client.Complete(context.Background(), "", nil, nil, "m", 0)
		if err == nil || !strings.Contains(err.Error(), "API returned 429") {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("api error payload", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"error":{"message":"model gone","type":"invalid_request_error"},"choices":[]}`))
		}))
		defer server.Close()

		cfg := &Config{API: APIConfig{BaseURL: server.URL, APIKey: "k"}}
		client, _ := NewLLMClient(cfg, testLogger())
		_, err := client.Complete(context.Background(), "", nil, nil, "m", 0)
		if err == nil || !strings.Contains(err.Error(), "model gone") {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("empty choices", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}))
		defer server.Close()

		cfg := &Config{API: APIConfig{BaseURL: server.URL, APIKey: "k"}}
		client, _ := NewLLMClient(cfg, testLogger())
		_, err := client.Complete(context.Background(), "", nil, nil, "m", 0)
		if err == nil || !strings.Contains(err.Error(), "no response from model") {
			t.Errorf("err = %v", err)
		}
	})
}

func TestNewLLMClientProviderResolution(t *testing.T) {
	t.Run("explicit provider wins over url", func(t *testing.T) {
		cfg := &Config{API: APIConfig{Provider: "groq", BaseURL: "https://api.anthropic.com/v1", APIKey: "k"}}
		client, err := NewLLMClient(cfg, testLogger())
		if err != nil {
			t.Fatalf("NewLLMClient: %v", err)
		}
		if client.Provider() != ProviderGroq {
			t.Errorf("provider = %v, want groq", client.Provider())
		}
	})

	t.Run("detected from url when unset", func(t *testing.T) {
		cfg := &Config{API: APIConfig{BaseURL: "https://openrouter.ai/api/v1", APIKey: "k"}}
		client, err := NewLLMClient(cfg, testLogger())
		if err != nil {
			t.Fatalf("NewLLMClient: %v", err)
		}
		if client.Provider() != ProviderOpenRouter {
			t.Errorf("provider = %v, want openrouter", client.Provider())
		}
	})

	t.Run("empty url falls back to provider default", func(t *testing.T) {
		cfg := &Config{API: APIConfig{Provider: "ollama", APIKey: ""}}
		client, err := NewLLMClient(cfg, testLogger())
		if err != nil {
			t.Fatalf("NewLLMClient: %v", err)
		}
		if client.baseURL != "http://localhost:11434/v1" {
			t.Errorf("baseURL = %q", client.baseURL)
		}
	})

	t.Run("unknown provider name rejected", func(t *testing.T) {
		cfg := &Config{API: APIConfig{Provider: "watsonx"}}
		if _, err := NewLLMClient(cfg, testLogger()); err == nil {
			t.Error("expected error for unknown provider")
		}
	})
}

func TestListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"gpt-4o-mini","owned_by":"openai"},{"id":"o3"}]}`))
	}))
	defer server.Close()

	cfg := &Config{API: APIConfig{BaseURL: server.URL, APIKey: "k"}}
	client, err := NewLLMClient(cfg, testLogger())
	if err != nil {
		t.Fatalf("NewLLMClient: %v", err)
	}

	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 2 || models[0].ID != "gpt-4o-mini" || models[0].OwnedBy != "openai" {
		t.Errorf("models = %+v", models)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncate("0123456789", 4); got != "0123..." {
		t.Errorf("got %q", got)
	}
}
