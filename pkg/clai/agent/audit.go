// Package agent – audit.go provides a SQLite-backed audit trail of tool
// executions and approval decisions. Entries older than 30 days are pruned
// on startup. The trail records operations, not conversation state.
package agent

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver.
)

// auditSchema is the DDL executed on every open (idempotent).
const auditSchema = `
CREATE TABLE IF NOT EXISTS audit_log (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    tool           TEXT NOT NULL,
    caller         TEXT DEFAULT '',
    allowed        INTEGER NOT NULL,
    args_summary   TEXT DEFAULT '',
    result_summary TEXT DEFAULT '',
    created_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_log_created ON audit_log(created_at);
`

// auditRetention is how long entries are kept.
const auditRetention = 30 * 24 * time.Hour

// AuditLog writes tool execution and approval records to a SQLite file.
// It implements AuditRecorder.
type AuditLog struct {
	db     *sql.DB
	logger *slog.Logger

	pruneOnce sync.Once
}

// OpenAuditLog opens (or creates) the audit database at the given path.
func OpenAuditLog(path string, logger *slog.Logger) (*AuditLog, error) {
	path = resolvePath(path)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audit directory %q: %w", dir, err)
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit database %q: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping audit database: %w", err)
	}
	if _, err := db.Exec(auditSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create audit schema: %w", err)
	}

	a := &AuditLog{db: db, logger: logger.With("component", "audit")}
	a.pruneOnce.Do(a.prune)
	return a, nil
}

// Record implements AuditRecorder. Failures are logged, never propagated:
// a broken audit disk must not break the conversation.
func (a *AuditLog) Record(tool, caller string, allowed bool, argsSummary, resultSummary string) {
	allowedInt := 0
	if allowed {
		allowedInt = 1
	}
	now := time.Now().UTC().Format(time.RFC3339)

	if len(argsSummary) > 500 {
		argsSummary = argsSummary[:500] + "...[truncated]"
	}
	if len(resultSummary) > 500 {
		resultSummary = resultSummary[:500] + "...[truncated]"
	}

	_, err := a.db.Exec(`
		INSERT INTO audit_log (tool, caller, allowed, args_summary, result_summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		tool, caller, allowedInt, argsSummary, resultSummary, now,
	)
	if err != nil {
		a.logger.Warn("failed to write audit log", "tool", tool, "err", err)
	}
}

// prune deletes entries older than the retention window.
func (a *AuditLog) prune() {
	cutoff := time.Now().Add(-auditRetention).UTC().Format(time.RFC3339)
	result, err := a.db.Exec("DELETE FROM audit_log WHERE created_at < ?", cutoff)
	if err != nil {
		a.logger.Warn("audit log prune failed", "err", err)
		return
	}
	if n, _ := result.RowsAffected(); n > 0 {
		a.logger.Info("audit log pruned", "removed", n)
	}
}

// Count returns the total number of audit log entries.
func (a *AuditLog) Count() int {
	var count int
	_ = a.db.QueryRow("SELECT COUNT(*) FROM audit_log").Scan(&count)
	return count
}

// Recent returns the last n audit log entries as formatted strings,
// newest first.
func (a *AuditLog) Recent(n int) []string {
	rows, err := a.db.Query(`
		SELECT tool, caller, allowed, args_summary, result_summary, created_at
		FROM audit_log
		ORDER BY id DESC
		LIMIT ?`, n)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var entries []string
	for rows.Next() {
		var (
			tool, caller, argsSummary, resultSummary, createdAt string
			allowed                                             int
		)
		if err := rows.Scan(&tool, &caller, &allowed, &argsSummary, &resultSummary, &createdAt); err != nil {
			continue
		}
		status := "DENIED"
		if allowed != 0 {
			status = "OK"
		}
		entries = append(entries, fmt.Sprintf("[%s] tool=%s caller=%s %s args=%s result=%s",
			createdAt, tool, caller, status, truncate(argsSummary, 80), truncate(resultSummary, 80)))
	}
	return entries
}

// Close closes the underlying database.
func (a *AuditLog) Close() error {
	return a.db.Close()
}
