// Package agent – agent.go implements the turn driver that orchestrates
// LLM calls with tool execution. One turn iterates: call LLM → if tool
// calls → execute the whole batch in order → append results → call LLM
// again, until the model answers with plain text, the finished sentinel
// appears, or the depth ceiling is reached.
//
// The loop is an explicit iteration with a depth counter, not call-stack
// recursion, so long tool chains cannot grow the stack and the ceiling is
// enforced in one place.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	// DefaultMaxDepth is the maximum number of tool-resolution rounds in a
	// single turn when the caller does not configure one.
	DefaultMaxDepth = 10

	// DefaultMaxTokens is the completion token limit when unconfigured.
	DefaultMaxTokens = 4096
)

// MaxDepthMessage is the fixed advisory appended as the final assistant
// message when a turn hits the tool-depth ceiling. Hitting the ceiling is a
// normal turn outcome, not an error.
const MaxDepthMessage = "Maximum number of tool calls reached. Stopping here."

// ToolRunner resolves a batch of tool calls. Implemented by ToolExecutor;
// tests substitute a scripted runner.
type ToolRunner interface {
	Tools() []ToolDefinition
	Execute(ctx context.Context, calls []ToolCall) []ToolResult
}

// TurnOutcome classifies how a turn ended.
type TurnOutcome int

const (
	// TurnDone means the model produced a final answer (plain text or the
	// finished sentinel).
	TurnDone TurnOutcome = iota

	// TurnDepthLimited means the depth ceiling cut the turn short.
	TurnDepthLimited
)

// TurnRequest carries everything one turn needs. The driver treats model,
// depth ceiling, and token limit as opaque inputs supplied per turn.
type TurnRequest struct {
	Prior        []Message // conversation so far, owned by the caller
	UserInput    string
	SystemPrompt string
	Model        string
	MaxDepth     int // 0 → DefaultMaxDepth
	MaxTokens    int // 0 → DefaultMaxTokens
}

// TurnResult is the pure outcome of a turn: the full message sequence
// (prior history plus this turn's additions) and the final text. The caller
// applies it to its own state; the driver retains nothing between turns.
type TurnResult struct {
	Messages  []Message
	FinalText string
	Outcome   TurnOutcome
}

// TurnDriver runs single conversation turns. It is the only writer of the
// message sequence while a turn is in flight.
type TurnDriver struct {
	llm    *LLMClient
	tools  ToolRunner
	logger *slog.Logger
}

// NewTurnDriver creates a turn driver. Dependencies are passed explicitly;
// the driver holds no global state.
func NewTurnDriver(llm *LLMClient, tools ToolRunner, logger *slog.Logger) *TurnDriver {
	return &TurnDriver{
		llm:    llm,
		tools:  tools,
		logger: logger.With("component", "agent"),
	}
}

// Run executes one full turn. It appends the user message, then loops:
// completion call, tool resolution, repeat. The returned error is non-nil
// only for unrecoverable completion-request failures; tool failures,
// declined approvals, and the depth ceiling are all ordinary results.
//
// Invariant: every tool call in an assistant message is followed by exactly
// one tool result with a matching id before the next completion request,
// and the history sent upstream is never truncated or reordered.
func (d *TurnDriver) Run(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	maxDepth := req.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	// Copy the prior history so the caller's slice is never aliased.
	messages := make([]Message, 0, len(req.Prior)+4)
	messages = append(messages, req.Prior...)
	messages = append(messages, Message{Role: "user", Content: req.UserInput})

	tools := d.tools.Tools()

	d.logger.Debug("turn started",
		"history", len(req.Prior),
		"tools", len(tools),
		"model", req.Model,
		"max_depth", maxDepth,
	)

	// depth counts completed tool-resolution rounds within this turn.
	depth := 0
	turnStart := time.Now()

	for {
		resp, err := d.llm.Complete(ctx, req.SystemPrompt, messages, tools, req.Model, maxTokens)
		if err != nil {
			return nil, fmt.Errorf("completion request failed (depth %d): %w", depth, err)
		}

		// No tool calls → final answer, turn over.
		if len(resp.ToolCalls) == 0 {
			messages = append(messages, Message{Role: "assistant", Content: resp.Content})
			d.logger.Info("turn completed",
				"depth", depth,
				"duration_ms", time.Since(turnStart).Milliseconds(),
			)
			return &TurnResult{
				Messages:  messages,
				FinalText: resp.Content,
				Outcome:   TurnDone,
			}, nil
		}

		// Ceiling check happens before the assistant's tool calls enter the
		// history: a blocked round leaves only the advisory message behind.
		if depth >= maxDepth {
			messages = append(messages, Message{Role: "assistant", Content: MaxDepthMessage})
			d.logger.Warn("turn hit tool depth ceiling", "depth", depth)
			return &TurnResult{
				Messages:  messages,
				FinalText: MaxDepthMessage,
				Outcome:   TurnDepthLimited,
			}, nil
		}

		messages = append(messages, Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		d.logger.Info("executing tool calls",
			"count", len(resp.ToolCalls),
			"tools", joinToolNames(resp.ToolCalls),
			"depth", depth,
		)

		// Execute the whole batch before evaluating termination, so every
		// call gets its result even when the sentinel appears mid-batch.
		results := d.tools.Execute(ctx, resp.ToolCalls)

		finished := false
		summary := ""
		for _, result := range results {
			messages = append(messages, Message{
				Role:       "tool",
				Content:    result.Content,
				ToolCallID: result.ToolCallID,
			})
			if !finished && IsTerminationSignal(result.Content) {
				finished = true
				summary = TerminationSummary(result.Content)
			}
		}

		if finished {
			final := strings.TrimSpace(resp.Content)
			if final == "" {
				final = "Task completed: " + summary
			}
			messages = append(messages, Message{Role: "assistant", Content: final})
			d.logger.Info("turn finished via sentinel",
				"depth", depth,
				"summary", summary,
				"duration_ms", time.Since(turnStart).Milliseconds(),
			)
			return &TurnResult{
				Messages:  messages,
				FinalText: final,
				Outcome:   TurnDone,
			}, nil
		}

		depth++
	}
}

// joinToolNames formats a batch's tool names for logging.
func joinToolNames(calls []ToolCall) string {
	names := make([]string, len(calls))
	for i, c := range calls {
		names[i] = c.Function.Name
	}
	return strings.Join(names, ",")
}
