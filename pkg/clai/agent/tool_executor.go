// Package agent – tool_executor.go manages the registry of callable tools
// and dispatches tool calls from the LLM to the appropriate handlers.
//
// Execute never panics and never returns an error: every failure inside a
// handler — unknown tool, malformed arguments, I/O error — is converted to
// a descriptive result string so the conversation can continue.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultToolTimeout is the maximum time a single tool execution can take.
const DefaultToolTimeout = 120 * time.Second

// ToolHandlerFunc is the signature for tool execution handlers.
// Receives parsed arguments and returns the result text or an error.
type ToolHandlerFunc func(ctx context.Context, args map[string]any) (string, error)

// registeredTool bundles a tool definition with its handler.
type registeredTool struct {
	Definition ToolDefinition
	Handler    ToolHandlerFunc
}

// ToolResult holds the output of a single tool execution. Exactly one result
// is produced per call, failure or not.
type ToolResult struct {
	ToolCallID string
	Name       string
	Content    string
	Err        error
}

// ToolExecutor manages tool registration and dispatches tool calls.
// The registry is populated once at startup and treated as immutable after.
type ToolExecutor struct {
	tools   map[string]*registeredTool
	order   []string // registration order, for stable Tools() output
	timeout time.Duration
	audit   AuditRecorder // optional
	logger  *slog.Logger
	mu      sync.RWMutex
}

// AuditRecorder receives a record of each tool execution and approval
// decision. Implemented by the SQLite audit log; nil disables auditing.
type AuditRecorder interface {
	Record(tool, caller string, allowed bool, argsSummary, resultSummary string)
}

// NewToolExecutor creates a new empty tool executor.
func NewToolExecutor(logger *slog.Logger) *ToolExecutor {
	return &ToolExecutor{
		tools:   make(map[string]*registeredTool),
		timeout: DefaultToolTimeout,
		logger:  logger.With("component", "tool_executor"),
	}
}

// SetAuditRecorder attaches an audit recorder. Call before the first Execute.
func (e *ToolExecutor) SetAuditRecorder(a AuditRecorder) {
	e.audit = a
}

// Register adds a tool with its definition and handler.
// If a tool with the same name already exists, it is overwritten.
func (e *ToolExecutor) Register(def ToolDefinition, handler ToolHandlerFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()

	name := def.Function.Name
	if _, exists := e.tools[name]; !exists {
		e.order = append(e.order, name)
	}
	e.tools[name] = &registeredTool{
		Definition: def,
		Handler:    handler,
	}

	e.logger.Debug("tool registered", "name", name)
}

// Tools returns all registered tool definitions in registration order.
func (e *ToolExecutor) Tools() []ToolDefinition {
	e.mu.RLock()
	defer e.mu.RUnlock()

	defs := make([]ToolDefinition, 0, len(e.tools))
	for _, name := range e.order {
		defs = append(defs, e.tools[name].Definition)
	}
	return defs
}

// HasTool checks if a tool is registered by name.
func (e *ToolExecutor) HasTool(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.tools[name]
	return ok
}

// Execute dispatches a batch of tool calls to their registered handlers.
// Calls run strictly sequentially, in the order supplied by the model,
// because later calls may depend on side effects of earlier ones.
// Returns results in the same order as the input calls.
func (e *ToolExecutor) Execute(ctx context.Context, calls []ToolCall) []ToolResult {
	results := make([]ToolResult, len(calls))
	for i, call := range calls {
		results[i] = e.executeSingle(ctx, call)
	}
	return results
}

// executeSingle runs a single tool call and returns the result.
func (e *ToolExecutor) executeSingle(ctx context.Context, call ToolCall) ToolResult {
	name := call.Function.Name
	result := ToolResult{
		ToolCallID: call.ID,
		Name:       name,
	}

	e.mu.RLock()
	tool, ok := e.tools[name]
	e.mu.RUnlock()

	if !ok {
		result.Content = fmt.Sprintf("Unknown tool: %s", name)
		result.Err = fmt.Errorf("unknown tool: %s", name)
		e.logger.Warn("unknown tool called", "name", name)
		e.record(name, call.ID, false, call.Function.Arguments, result.Content)
		return result
	}

	// Parse arguments from the raw JSON the model sent.
	args, err := parseToolArgs(call.Function.Arguments)
	if err != nil {
		result.Content = fmt.Sprintf("Error: parsing arguments: %v", err)
		result.Err = err
		e.logger.Warn("tool argument parse error", "name", name, "error", err)
		e.record(name, call.ID, false, call.Function.Arguments, result.Content)
		return result
	}

	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	e.logger.Debug("executing tool", "name", name, "call_id", call.ID)

	start := time.Now()
	output, err := tool.Handler(execCtx, args)
	duration := time.Since(start)

	if err != nil {
		result.Content = fmt.Sprintf("Error: %v", err)
		result.Err = err
		e.logger.Warn("tool execution failed",
			"name", name,
			"error", err,
			"duration_ms", duration.Milliseconds(),
		)
		e.record(name, call.ID, false, call.Function.Arguments, result.Content)
		return result
	}

	if output == "" {
		output = "OK"
	}
	result.Content = output

	e.logger.Info("tool executed",
		"name", name,
		"duration_ms", duration.Milliseconds(),
		"output_len", len(result.Content),
	)
	e.record(name, call.ID, true, call.Function.Arguments, result.Content)

	return result
}

// record writes an audit entry when a recorder is attached.
func (e *ToolExecutor) record(tool, caller string, allowed bool, args, result string) {
	if e.audit == nil {
		return
	}
	e.audit.Record(tool, caller, allowed, args, result)
}

// MakeToolDefinition creates a ToolDefinition from name, description, and a
// parameter schema map (matching JSON Schema format).
func MakeToolDefinition(name, description string, params map[string]any) ToolDefinition {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
	if params != nil {
		schema = params
	}

	schemaJSON, _ := json.Marshal(schema)

	return ToolDefinition{
		Type: "function",
		Function: FunctionDef{
			Name:        name,
			Description: description,
			Parameters:  schemaJSON,
		},
	}
}

// parseToolArgs parses JSON-encoded tool arguments into a map.
func parseToolArgs(raw string) (map[string]any, error) {
	if raw == "" || raw == "{}" {
		return map[string]any{}, nil
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("invalid JSON arguments: %w", err)
	}
	return args, nil
}
