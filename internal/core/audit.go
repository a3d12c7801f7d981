package core

import (
	"context"
	"log/slog"
)

// AuditAction names a mutation recorded in the audit log.
type AuditAction string

const (
	ActionInsert     AuditAction = "insert"
	ActionUpdate     AuditAction = "update"
	ActionDelete     AuditAction = "delete"
	ActionBulkDelete AuditAction = "bulk_delete"
	ActionAssignType AuditAction = "assign_type"
	ActionImport     AuditAction = "import"
)

// AuditEntry describes one completed mutation.
type AuditEntry struct {
	Action       AuditAction
	Collection   string
	RecordID     string
	RowsAffected int64
	Detail       string
}

// LogAudit writes entry as a structured "audit" line, tagged with the client
// recorded on ctx.
func LogAudit(ctx context.Context, logger *slog.Logger, entry AuditEntry) {
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{
		"action", string(entry.Action),
		"collection", entry.Collection,
		"rows_affected", entry.RowsAffected,
	}
	if entry.RecordID != "" {
		attrs = append(attrs, "record_id", entry.RecordID)
	}
	if entry.Detail != "" {
		attrs = append(attrs, "detail", entry.Detail)
	}
	if ip := ClientIP(ctx); ip != "" {
		attrs = append(attrs, "ip", ip)
	}
	if ua := UserAgent(ctx); ua != "" {
		attrs = append(attrs, "user_agent", ua)
	}
	logger.InfoContext(ctx, "audit", attrs...)
}
