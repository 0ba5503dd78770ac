package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// newSystemExecutor registers the built-in tools behind a scripted approver.
func newSystemExecutor(approve bool, previews *[]string) *ToolExecutor {
	executor := NewToolExecutor(testLogger())
	gate := NewApprovalGate(ApproverFunc(func(_, preview string) bool {
		if previews != nil {
			*previews = append(*previews, preview)
		}
		return approve
	}), testLogger())
	RegisterSystemTools(executor, gate)
	return executor
}

func callTool(t *testing.T, executor *ToolExecutor, name, args string) ToolResult {
	t.Helper()
	results := executor.Execute(context.Background(), []ToolCall{
		{ID: "call_1", Function: FunctionCall{Name: name, Arguments: args}},
	})
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	return results[0]
}

func TestReadFileTool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.txt")
	if err := os.WriteFile(path, []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}

	executor := newSystemExecutor(true, nil)

	result := callTool(t, executor, "read_file", `{"path":`+jsonQuote(path)+`}`)
	if result.Content != "hello world" {
		t.Errorf("content = %q", result.Content)
	}

	result = callTool(t, executor, "read_file", `{"path":`+jsonQuote(filepath.Join(dir, "absent.txt"))+`}`)
	if !strings.HasPrefix(result.Content, "Error: reading file:") {
		t.Errorf("content = %q, want read error", result.Content)
	}
}

func TestWriteFileApproved(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	executor := newSystemExecutor(true, nil)
	result := callTool(t, executor, "write_file",
		`{"path":`+jsonQuote(path)+`,"content":"fresh content"}`)

	want := fmt.Sprintf("Written %d bytes to %s", len("fresh content"), path)
	if result.Content != want {
		t.Errorf("content = %q, want %q", result.Content, want)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("file not written: %v", err)
	}
	if string(data) != "fresh content" {
		t.Errorf("file content = %q", data)
	}
}

func TestWriteFileDeclined(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kept.txt")
	if err := os.WriteFile(path, []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}

	executor := newSystemExecutor(false, nil)
	result := callTool(t, executor, "write_file",
		`{"path":`+jsonQuote(path)+`,"content":"replacement"}`)

	want := fmt.Sprintf("Write to %s cancelled by user.", path)
	if result.Content != want {
		t.Errorf("content = %q, want %q", result.Content, want)
	}
	if result.Err != nil {
		t.Errorf("a declined write is not a tool error, got %v", result.Err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "original" {
		t.Errorf("declined write modified storage: %q", data)
	}
}

func TestWriteFilePreviews(t *testing.T) {
	dir := t.TempDir()

	t.Run("creation shows head preview", func(t *testing.T) {
		var previews []string
		executor := newSystemExecutor(true, &previews)

		lines := make([]string, 14)
		for i := range lines {
			lines[i] = fmt.Sprintf("line %d", i+1)
		}
		content := strings.Join(lines, "\n")
		callTool(t, executor, "write_file",
			`{"path":`+jsonQuote(filepath.Join(dir, "new.txt"))+`,"content":`+jsonQuote(content)+`}`)

		if len(previews) != 1 {
			t.Fatalf("previews = %d, want 1", len(previews))
		}
		if !strings.HasPrefix(previews[0], "New file:") {
			t.Errorf("preview = %q, want creation preview", previews[0])
		}
		if !strings.Contains(previews[0], "... (4 more lines)") {
			t.Errorf("preview missing remainder count: %q", previews[0])
		}
	})

	t.Run("identical content shows no-changes notice", func(t *testing.T) {
		var previews []string
		executor := newSystemExecutor(true, &previews)

		path := filepath.Join(dir, "same.txt")
		if err := os.WriteFile(path, []byte("unchanged"), 0o644); err != nil {
			t.Fatal(err)
		}
		callTool(t, executor, "write_file",
			`{"path":`+jsonQuote(path)+`,"content":"unchanged"}`)

		if len(previews) != 1 || previews[0] != NoChangesNotice {
			t.Errorf("previews = %v, want [%q]", previews, NoChangesNotice)
		}
	})

	t.Run("overwrite shows line diff", func(t *testing.T) {
		var previews []string
		executor := newSystemExecutor(true, &previews)

		path := filepath.Join(dir, "diff.txt")
		if err := os.WriteFile(path, []byte("a\nb\nc"), 0o644); err != nil {
			t.Fatal(err)
		}
		callTool(t, executor, "write_file",
			`{"path":`+jsonQuote(path)+`,"content":"a\nX\nc"}`)

		if len(previews) != 1 {
			t.Fatalf("previews = %d, want 1", len(previews))
		}
		if previews[0] != "- b\n+ X" {
			t.Errorf("preview = %q", previews[0])
		}
	})
}

func TestListFilesTool(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	executor := newSystemExecutor(true, nil)

	result := callTool(t, executor, "list_files", `{"path":`+jsonQuote(dir)+`}`)
	lines := strings.Split(result.Content, "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %v", lines)
	}
	if lines[0] != "- a.txt" || lines[1] != "d sub" {
		t.Errorf("listing = %v", lines)
	}

	empty := t.TempDir()
	result = callTool(t, executor, "list_files", `{"path":`+jsonQuote(empty)+`}`)
	if result.Content != "(empty directory)" {
		t.Errorf("content = %q", result.Content)
	}
}

func TestRunCommandTool(t *testing.T) {
	executor := newSystemExecutor(true, nil)

	t.Run("captures stdout", func(t *testing.T) {
		result := callTool(t, executor, "run_command", `{"command":"echo hi there"}`)
		if result.Content != "hi there" {
			t.Errorf("content = %q", result.Content)
		}
	})

	t.Run("no output placeholder", func(t *testing.T) {
		result := callTool(t, executor, "run_command", `{"command":"true"}`)
		if result.Content != "(no output)" {
			t.Errorf("content = %q", result.Content)
		}
	})

	t.Run("non-zero exit reports code and stderr", func(t *testing.T) {
		result := callTool(t, executor, "run_command",
			`{"command":"echo bad >&2; exit 3"}`)
		if !strings.Contains(result.Content, "command exited with code 3") {
			t.Errorf("content = %q", result.Content)
		}
		if !strings.Contains(result.Content, "bad") {
			t.Errorf("stderr missing from result: %q", result.Content)
		}
		if result.Err == nil {
			t.Error("expected recorded error for non-zero exit")
		}
	})
}

func TestFinishedTool(t *testing.T) {
	executor := newSystemExecutor(true, nil)

	result := callTool(t, executor, "finished", `{"summary":"Listed 3 files"}`)
	if !IsTerminationSignal(result.Content) {
		t.Fatalf("content = %q, want termination sentinel", result.Content)
	}
	if got := TerminationSummary(result.Content); got != "Listed 3 files" {
		t.Errorf("summary = %q", got)
	}
}

func TestSystemToolsRegistered(t *testing.T) {
	executor := newSystemExecutor(true, nil)

	defs := executor.Tools()
	want := []string{"read_file", "write_file", "list_files", "run_command", "finished"}
	if len(defs) != len(want) {
		t.Fatalf("registered %d tools, want %d", len(defs), len(want))
	}
	for i, name := range want {
		if defs[i].Function.Name != name {
			t.Errorf("tool %d = %q, want %q", i, defs[i].Function.Name, name)
		}
	}
}

func TestResolvePath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	if got := resolvePath("~/notes.txt"); got != filepath.Join(home, "notes.txt") {
		t.Errorf("resolvePath(~/notes.txt) = %q", got)
	}
	if got := resolvePath("/abs/path"); got != "/abs/path" {
		t.Errorf("resolvePath(/abs/path) = %q", got)
	}
	if got := resolvePath("rel/path"); got != "rel/path" {
		t.Errorf("resolvePath(rel/path) = %q", got)
	}
}
