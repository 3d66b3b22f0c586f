package sqlstore

import (
	"context"
	"fmt"
	"time"

	"clubsync/internal/domain/audit"
	"clubsync/internal/infrastructure/storage"
)

const auditColumns = "session_id, device_id, table_name, record_id, remote_id, operation, direction, status, error, created_at"

// Audit таблица sync_audit_log. На удалённой стороне используется как зеркало.
type Audit struct {
	store storage.Store
	codec codec
}

func NewAudit(store storage.Store) *Audit {
	return &Audit{store: store, codec: codec{dialect: store.Dialect()}}
}

func (a *Audit) Append(ctx context.Context, e audit.Entry) error {
	_, err := a.store.Execute(ctx,
		"INSERT INTO sync_audit_log ("+auditColumns+") VALUES ("+placeholders(10)+")",
		e.SessionID, e.DeviceID, e.Table, e.RecordID, a.codec.value(e.RemoteID),
		string(e.Operation), string(e.Direction), string(e.Status), e.Error, a.codec.value(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (a *Audit) Recent(ctx context.Context, limit int) ([]audit.Entry, error) {
	return a.list(ctx, "SELECT id, "+auditColumns+" FROM sync_audit_log ORDER BY created_at DESC, id DESC LIMIT ?", limit)
}

func (a *Audit) Failed(ctx context.Context, limit int) ([]audit.Entry, error) {
	return a.list(ctx, "SELECT id, "+auditColumns+" FROM sync_audit_log WHERE status = ? ORDER BY created_at DESC, id DESC LIMIT ?",
		string(audit.StatusFailed), limit)
}

func (a *Audit) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := a.store.Execute(ctx, "DELETE FROM sync_audit_log WHERE created_at < ?", a.codec.value(before))
	if err != nil {
		return 0, fmt.Errorf("delete audit entries: %w", err)
	}
	return res.RowsAffected, nil
}

func (a *Audit) list(ctx context.Context, query string, args ...any) ([]audit.Entry, error) {
	rows, err := a.store.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	out := make([]audit.Entry, 0, len(rows))
	for _, row := range rows {
		e := audit.Entry{
			SessionID: asString(row["session_id"]),
			DeviceID:  asString(row["device_id"]),
			Table:     asString(row["table_name"]),
			Operation: audit.Operation(asString(row["operation"])),
			Direction: audit.Direction(asString(row["direction"])),
			Status:    audit.Status(asString(row["status"])),
			Error:     asString(row["error"]),
		}
		if e.ID, err = asInt64(row["id"]); err != nil {
			return nil, fmt.Errorf("audit entry: id: %w", err)
		}
		if e.RecordID, err = asInt64(row["record_id"]); err != nil {
			return nil, fmt.Errorf("audit entry %d: record_id: %w", e.ID, err)
		}
		if e.RemoteID, err = asOptInt64(row["remote_id"]); err != nil {
			return nil, fmt.Errorf("audit entry %d: remote_id: %w", e.ID, err)
		}
		if e.CreatedAt, err = asTime(row["created_at"]); err != nil {
			return nil, fmt.Errorf("audit entry %d: created_at: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, nil
}
