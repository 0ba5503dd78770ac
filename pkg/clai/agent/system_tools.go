// Package agent – system_tools.go registers the built-in tools exposed to
// the model: file read/write, directory listing, shell execution, and the
// finished signal. write_file routes through the approval gate before
// touching storage.
package agent

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// TerminationPrefix is the literal prefix that marks a tool result as the
// termination sentinel. It must not appear in unrelated tool output.
const TerminationPrefix = "CONVERSATION_COMPLETE:"

// maxReadBytes caps how much of a file is returned to the model.
const maxReadBytes = 100_000

// maxCommandOutput caps captured shell output.
const maxCommandOutput = 50_000

// IsTerminationSignal reports whether a tool result carries the sentinel.
func IsTerminationSignal(content string) bool {
	return strings.HasPrefix(content, TerminationPrefix)
}

// TerminationSummary extracts the operator-facing summary from a sentinel
// result. Returns "" for non-sentinel content.
func TerminationSummary(content string) string {
	if !IsTerminationSignal(content) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(content, TerminationPrefix))
}

// RegisterSystemTools registers the built-in tool set in the executor.
// The gate guards write_file; the other tools run unattended.
func RegisterSystemTools(executor *ToolExecutor, gate *ApprovalGate) {
	registerReadFileTool(executor)
	registerWriteFileTool(executor, gate)
	registerListFilesTool(executor)
	registerRunCommandTool(executor)
	registerFinishedTool(executor)
}

func registerReadFileTool(executor *ToolExecutor) {
	executor.Register(
		MakeToolDefinition("read_file", "Read the contents of a file. Supports absolute and relative paths.", map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "File path (absolute or relative)",
				},
			},
			"required": []string{"path"},
		}),
		func(_ context.Context, args map[string]any) (string, error) {
			path, _ := args["path"].(string)
			if path == "" {
				return "", fmt.Errorf("path is required")
			}
			path = resolvePath(path)

			content, err := os.ReadFile(path)
			if err != nil {
				return "", fmt.Errorf("reading file: %w", err)
			}

			text := string(content)
			if len(text) > maxReadBytes {
				text = text[:maxReadBytes] + "\n... [truncated at 100KB]"
			}
			return text, nil
		},
	)
}

func registerWriteFileTool(executor *ToolExecutor, gate *ApprovalGate) {
	executor.Register(
		MakeToolDefinition("write_file", "Write content to a file. The user is shown a diff and asked to approve before anything is written. Creates parent directories if needed.", map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "File path (absolute or relative)",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "Content to write to the file",
				},
			},
			"required": []string{"path", "content"},
		}),
		func(_ context.Context, args map[string]any) (string, error) {
			path, _ := args["path"].(string)
			content, _ := args["content"].(string)
			if path == "" {
				return "", fmt.Errorf("path is required")
			}
			path = resolvePath(path)

			// Existing content feeds the diff; nil means creation.
			var oldContent *string
			if existing, err := os.ReadFile(path); err == nil {
				s := string(existing)
				oldContent = &s
			}

			if !gate.ConfirmWrite(path, oldContent, content) {
				return fmt.Sprintf("Write to %s cancelled by user.", path), nil
			}

			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return "", fmt.Errorf("creating directory: %w", err)
			}
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return "", fmt.Errorf("writing file: %w", err)
			}

			return fmt.Sprintf("Written %d bytes to %s", len(content), path), nil
		},
	)
}

func registerListFilesTool(executor *ToolExecutor) {
	executor.Register(
		MakeToolDefinition("list_files", "List files and directories at a path. Directories are marked with 'd', files with '-'.", map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Directory path (absolute or relative). Default: current directory",
				},
			},
		}),
		func(_ context.Context, args map[string]any) (string, error) {
			path, _ := args["path"].(string)
			if path == "" {
				path = "."
			}
			path = resolvePath(path)

			entries, err := os.ReadDir(path)
			if err != nil {
				return "", fmt.Errorf("reading directory: %w", err)
			}

			if len(entries) == 0 {
				return "(empty directory)", nil
			}

			lines := make([]string, 0, len(entries))
			for _, e := range entries {
				marker := "-"
				if e.IsDir() {
					marker = "d"
				}
				lines = append(lines, marker+" "+e.Name())
			}
			return strings.Join(lines, "\n"), nil
		},
	)
}

func registerRunCommandTool(executor *ToolExecutor) {
	executor.Register(
		MakeToolDefinition("run_command", "Execute a shell command via 'sh -c' and return its output. Non-zero exit codes are reported with stderr.", map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command": map[string]any{
					"type":        "string",
					"description": "Shell command to execute",
				},
			},
			"required": []string{"command"},
		}),
		func(ctx context.Context, args map[string]any) (string, error) {
			command, _ := args["command"].(string)
			if command == "" {
				return "", fmt.Errorf("command is required")
			}

			var stdout, stderr bytes.Buffer
			cmd := exec.CommandContext(ctx, "sh", "-c", command)
			cmd.Stdout = &stdout
			cmd.Stderr = &stderr
			cmd.Env = os.Environ()

			err := cmd.Run()

			out := strings.TrimRight(stdout.String(), "\n ")
			errOut := strings.TrimRight(stderr.String(), "\n ")
			if len(out) > maxCommandOutput {
				out = out[:maxCommandOutput] + "\n... [truncated]"
			}
			if len(errOut) > maxCommandOutput {
				errOut = errOut[:maxCommandOutput] + "\n... [truncated]"
			}

			if err != nil {
				if ctx.Err() != nil {
					return "", fmt.Errorf("command timed out: %s", errOut)
				}
				exitCode := -1
				if exitErr, ok := err.(*exec.ExitError); ok {
					exitCode = exitErr.ExitCode()
				}
				return "", fmt.Errorf("command exited with code %d\nstderr:\n%s", exitCode, errOut)
			}

			if out == "" {
				out = "(no output)"
			}
			return out, nil
		},
	)
}

func registerFinishedTool(executor *ToolExecutor) {
	executor.Register(
		MakeToolDefinition("finished", "Signal that the task is complete. Call this as the final step with a short summary of what was done.", map[string]any{
			"type": "object",
			"properties": map[string]any{
				"summary": map[string]any{
					"type":        "string",
					"description": "Short summary of the completed work",
				},
			},
			"required": []string{"summary"},
		}),
		func(_ context.Context, args map[string]any) (string, error) {
			summary, _ := args["summary"].(string)
			// Pure signaling tool: no side effect beyond the sentinel.
			return TerminationPrefix + " " + summary, nil
		},
	)
}

// resolvePath expands ~ to the user's home directory.
func resolvePath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
