// Package agent – approval.go implements the human-in-the-loop checkpoint
// guarding destructive file writes. The gate renders a diff (or creation
// preview), blocks the current tool execution until the operator answers,
// and records the decision in the audit trail. Declining is a normal branch,
// not an error: the write tool returns a cancellation message and storage
// stays untouched.
package agent

import (
	"log/slog"

	"github.com/google/uuid"
)

// Approver blocks until the operator accepts or declines a proposed action.
// The terminal implementation lives in the CLI layer; tests use a scripted
// approver.
type Approver interface {
	Confirm(title, preview string) bool
}

// ApproverFunc adapts a function to the Approver interface.
type ApproverFunc func(title, preview string) bool

// Confirm implements Approver.
func (f ApproverFunc) Confirm(title, preview string) bool {
	return f(title, preview)
}

// ApprovalGate computes a human-readable preview of a pending write and
// suspends the turn until the operator responds.
type ApprovalGate struct {
	approver Approver
	audit    AuditRecorder // optional
	logger   *slog.Logger
}

// NewApprovalGate creates a gate backed by the given approver.
func NewApprovalGate(approver Approver, logger *slog.Logger) *ApprovalGate {
	return &ApprovalGate{
		approver: approver,
		logger:   logger.With("component", "approval_gate"),
	}
}

// SetAuditRecorder attaches an audit recorder for approval decisions.
func (g *ApprovalGate) SetAuditRecorder(a AuditRecorder) {
	g.audit = a
}

// ConfirmWrite asks the operator to approve writing newContent to path.
// oldContent is nil when the file does not exist yet, in which case a
// creation preview is shown instead of a diff. The call blocks — this is
// the one place a turn suspends for human input.
func (g *ApprovalGate) ConfirmWrite(path string, oldContent *string, newContent string) bool {
	var preview string
	if oldContent == nil {
		preview = CreationPreview(newContent)
	} else {
		preview = DiffLines(*oldContent, newContent)
	}

	id := uuid.New().String()
	g.logger.Info("approval requested", "id", id, "path", path)

	accepted := g.approver.Confirm("Write "+path, preview)

	if accepted {
		g.logger.Info("approval granted", "id", id, "path", path)
	} else {
		g.logger.Info("approval declined", "id", id, "path", path)
	}
	if g.audit != nil {
		g.audit.Record("write_file", id, accepted, path, previewSummary(preview))
	}

	return accepted
}

// previewSummary condenses a preview for audit storage.
func previewSummary(preview string) string {
	return truncate(preview, 200)
}
