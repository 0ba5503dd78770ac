// chat.go implements the `clai chat` command: a single-shot question or an
// interactive readline REPL. The REPL owns the conversation history for the
// lifetime of the process; the turn driver returns a pure result that is
// applied here. Nothing is persisted across sessions.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/evanmorren/clai/pkg/clai/agent"
)

// newChatCmd creates the `clai chat` command.
func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with the assistant",
		Long: `Starts a conversation with the assistant. Pass a message for a
single answer, or no arguments for interactive mode.

Interactive commands:
  /model <id>   switch model for this session
  /reset        clear the conversation
  /quit         exit`,
		Args: cobra.MaximumNArgs(1),
		RunE: runChat,
	}

	cmd.Flags().StringP("model", "m", "", "LLM model to use (overrides config)")
	return cmd
}

// chatSession bundles everything a chat run needs.
type chatSession struct {
	driver       *agent.TurnDriver
	audit        *agent.AuditLog // nil when disabled
	systemPrompt string
	model        string
	maxDepth     int
	maxTokens    int

	// history is the conversation so far. The session is its owner; the
	// turn driver only ever receives a copy and returns the new sequence.
	history []agent.Message
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := buildLogger(cmd, cfg)

	agent.ResolveAPIKey(cfg, logger)

	session, err := newChatSession(cmd, cfg, logger)
	if err != nil {
		return err
	}
	defer session.close()

	if len(args) > 0 {
		return session.runTurn(cmd.Context(), args[0])
	}
	return session.repl(cmd.Context())
}

// newChatSession wires the turn driver and its collaborators from config.
func newChatSession(cmd *cobra.Command, cfg *agent.Config, logger *slog.Logger) (*chatSession, error) {
	llm, err := agent.NewLLMClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	executor := agent.NewToolExecutor(logger)
	gate := agent.NewApprovalGate(terminalApprover(), logger)

	var audit *agent.AuditLog
	if cfg.Audit.Enabled && cfg.Audit.Path != "" {
		audit, err = agent.OpenAuditLog(cfg.Audit.Path, logger)
		if err != nil {
			// A broken audit store should not block the conversation.
			logger.Warn("audit log unavailable", "error", err)
		} else {
			executor.SetAuditRecorder(audit)
			gate.SetAuditRecorder(audit)
		}
	}

	agent.RegisterSystemTools(executor, gate)

	systemPrompt, err := cfg.SystemPrompt()
	if err != nil {
		return nil, err
	}

	model := cfg.Model
	if override, _ := cmd.Flags().GetString("model"); override != "" {
		model = override
	}

	return &chatSession{
		driver:       agent.NewTurnDriver(llm, executor, logger),
		audit:        audit,
		systemPrompt: systemPrompt,
		model:        model,
		maxDepth:     cfg.Agent.MaxToolDepth,
		maxTokens:    cfg.Agent.MaxTokens,
	}, nil
}

// close releases session resources.
func (s *chatSession) close() {
	if s.audit != nil {
		s.audit.Close()
	}
}

// runTurn executes one conversation turn and prints the outcome.
func (s *chatSession) runTurn(ctx context.Context, input string) error {
	result, err := s.driver.Run(ctx, agent.TurnRequest{
		Prior:        s.history,
		UserInput:    input,
		SystemPrompt: s.systemPrompt,
		Model:        s.model,
		MaxDepth:     s.maxDepth,
		MaxTokens:    s.maxTokens,
	})
	if err != nil {
		// A completion failure ends the turn; the conversation keeps its
		// previous state and the operator sees an explicit error.
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return nil
	}

	s.history = result.Messages
	fmt.Println(result.FinalText)
	return nil
}

// repl runs the interactive loop until /quit or EOF.
func (s *chatSession) repl(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "you> ",
		HistoryFile:     replHistoryFile(),
		InterruptPrompt: "^C",
		EOFPrompt:       "bye",
	})
	if err != nil {
		return fmt.Errorf("initializing readline: %w", err)
	}
	defer rl.Close()

	fmt.Printf("clai — model %s. /quit to exit.\n", s.model)

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			}
			continue
		}
		if err == io.EOF {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if s.handleSlashCommand(line) {
				break
			}
			continue
		}

		if err := s.runTurn(ctx, line); err != nil {
			return err
		}
	}
	return nil
}

// handleSlashCommand processes REPL commands. Returns true to exit.
func (s *chatSession) handleSlashCommand(line string) bool {
	parts := strings.Fields(line)
	switch parts[0] {
	case "/quit", "/exit":
		return true
	case "/reset":
		s.history = nil
		fmt.Println("Conversation cleared.")
	case "/model":
		if len(parts) < 2 {
			fmt.Printf("Current model: %s\n", s.model)
			break
		}
		s.model = parts[1]
		fmt.Printf("Model set to %s.\n", s.model)
	default:
		fmt.Printf("Unknown command: %s\n", parts[0])
	}
	return false
}

// replHistoryFile returns the readline history location.
func replHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	dir := filepath.Join(home, ".cache", "clai")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ""
	}
	return filepath.Join(dir, "history")
}

// terminalApprover renders the write preview and blocks on a confirm form.
func terminalApprover() agent.Approver {
	return agent.ApproverFunc(func(title, preview string) bool {
		fmt.Println()
		fmt.Println(preview)

		var accepted bool
		confirm := huh.NewConfirm().
			Title(title).
			Affirmative("Approve").
			Negative("Decline").
			Value(&accepted)

		if err := huh.NewForm(huh.NewGroup(confirm)).Run(); err != nil {
			// A cancelled form counts as a decline.
			return false
		}
		return accepted
	})
}
